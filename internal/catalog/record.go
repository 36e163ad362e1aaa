// Package catalog converts upstream shop records into canonical products.
package catalog

// StockOutOfStock is the stock level reported for exhausted variants.
const StockOutOfStock = "OUT_OF_STOCK"

// Record is a product as returned by the shop API. Optional fields are
// pointers or may be empty; Normalize supplies defaults for all of them.
type Record struct {
	ID            string
	Name          string
	Slug          string
	Description   string
	FeaturedAsset *Asset
	Variants      []Variant
	Collections   []CollectionRef
}

// Asset is an image reference.
type Asset struct {
	ID      string
	Preview string
	Source  string
}

// Variant is a purchasable SKU of a product. Prices are in minor units.
type Variant struct {
	ID           string
	Name         string
	SKU          string
	Price        int64
	PriceWithTax int64
	CurrencyCode string
	StockLevel   string
}

// CollectionRef is a collection a product belongs to.
type CollectionRef struct {
	ID   string
	Name string
	Slug string
}

// Collection is a catalog collection record.
type Collection struct {
	ID          string
	Name        string
	Slug        string
	Description string
}

// CollectionNames returns the names of r's collections in order.
func (r Record) CollectionNames() []string {
	if len(r.Collections) == 0 {
		return nil
	}
	names := make([]string, len(r.Collections))
	for i, c := range r.Collections {
		names[i] = c.Name
	}
	return names
}
