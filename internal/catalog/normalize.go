package catalog

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-voice/internal/domain/product"
)

const imageBase = "https://images.pexels.com/photos/"

const imageQuery = "?auto=compress&cs=tinysrgb&w=400&h=400&dpr=1"

var defaultImages = map[string]string{
	"running":    imageBase + "2529148/pexels-photo-2529148.jpeg" + imageQuery,
	"casual":     imageBase + "1598505/pexels-photo-1598505.jpeg" + imageQuery,
	"outdoor":    imageBase + "1598506/pexels-photo-1598506.jpeg" + imageQuery,
	"athletic":   imageBase + "1598508/pexels-photo-1598508.jpeg" + imageQuery,
	"walking":    imageBase + "1598509/pexels-photo-1598509.jpeg" + imageQuery,
	"basketball": imageBase + "1598510/pexels-photo-1598510.jpeg" + imageQuery,
	"training":   imageBase + "1456706/pexels-photo-1456706.jpeg" + imageQuery,
	"playground": imageBase + "1456737/pexels-photo-1456737.jpeg" + imageQuery,
}

// DefaultImage returns the representative image for a category, falling
// back to the casual image for unmapped slugs.
func DefaultImage(category string) string {
	if img, ok := defaultImages[category]; ok {
		return img
	}
	return defaultImages[DefaultCategory]
}

// DefaultDescription synthesizes a description from a product name.
func DefaultDescription(name string) string {
	return name + " - Premium quality footwear"
}

// WholeUnits converts a minor-unit amount (cents) to whole currency units,
// rounding half away from zero. Negative amounts clamp to zero.
func WholeUnits(minor int64) int {
	if minor <= 0 {
		return 0
	}
	return int(decimal.New(minor, -2).Round(0).IntPart())
}

// Normalize converts an upstream record into a canonical Product. The first
// listed variant determines price and stock; missing optional fields fall
// back to defaults. Normalize never fails.
func Normalize(r Record) product.Product {
	collections := r.CollectionNames()
	p := product.Product{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Category:    Classify(r.Name, collections),
		Collections: collections,
		InStock:     true,
		Source:      product.SourceLive,
	}

	if len(r.Variants) > 0 {
		first := r.Variants[0]
		p.Price = WholeUnits(first.PriceWithTax)
		p.InStock = first.StockLevel != StockOutOfStock
	}

	if r.FeaturedAsset != nil && r.FeaturedAsset.Preview != "" {
		p.Image = r.FeaturedAsset.Preview
	} else {
		p.Image = DefaultImage(p.Category)
	}

	if p.Description == "" {
		p.Description = DefaultDescription(p.Name)
	}
	return p
}

// NormalizeAll normalizes every record, preserving order.
func NormalizeAll(records []Record) []product.Product {
	out := make([]product.Product, len(records))
	for i, r := range records {
		out[i] = Normalize(r)
	}
	return out
}

// Canonicalize fills defaults on an already-built product: empty category,
// image and description are derived the same way Normalize derives them.
// Applying it to a normalized product is a no-op.
func Canonicalize(p product.Product) product.Product {
	if p.Category == "" {
		p.Category = Classify(p.Name, p.Collections)
	}
	if p.Image == "" {
		p.Image = DefaultImage(p.Category)
	}
	if p.Description == "" {
		p.Description = DefaultDescription(p.Name)
	}
	if p.Price < 0 {
		p.Price = 0
	}
	return p
}
