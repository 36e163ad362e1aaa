// Package fixture serves the embedded static catalog used when no database is
// configured.
package fixture

import (
	"context"
	"slices"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-voice/db"
	"github.com/xenking/kart-voice/internal/catalog"
	"github.com/xenking/kart-voice/internal/domain/product"
)

var _ product.Repository = (*Repository)(nil)

// Repository is an immutable in-memory product catalog.
type Repository struct {
	products []product.Product
}

// New returns a Repository over a copy of products.
func New(products []product.Product) *Repository {
	return &Repository{products: slices.Clone(products)}
}

// Load decodes the embedded seed catalog.
func Load() (*Repository, error) {
	products, err := Decode(db.Products)
	if err != nil {
		return nil, errors.Wrap(err, "decode embedded catalog")
	}
	return &Repository{products: products}, nil
}

// List returns a copy of the catalog in fixture order.
func (r *Repository) List(context.Context) ([]product.Product, error) {
	return slices.Clone(r.products), nil
}

// Decode parses a JSON array of fixture products. Missing image,
// description and category are derived with catalog.Canonicalize.
func Decode(data []byte) ([]product.Product, error) {
	var out []product.Product
	if err := jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		p, err := decodeProduct(d)
		if err != nil {
			return errors.Wrapf(err, "product %d", len(out))
		}
		out = append(out, catalog.Canonicalize(p))
		return nil
	}); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeProduct(d *jx.Decoder) (product.Product, error) {
	p := product.Product{InStock: true, Source: product.SourceFallback}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			p.ID, err = d.Str()
		case "name":
			p.Name, err = d.Str()
		case "price":
			p.Price, err = d.Int()
		case "image":
			p.Image, err = d.Str()
		case "description":
			p.Description, err = d.Str()
		case "category":
			p.Category, err = d.Str()
		case "collections":
			err = d.Arr(func(d *jx.Decoder) error {
				name, err := d.Str()
				if err != nil {
					return err
				}
				p.Collections = append(p.Collections, name)
				return nil
			})
		case "inStock":
			p.InStock, err = d.Bool()
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
	if err != nil {
		return product.Product{}, err
	}
	if p.ID == "" {
		return product.Product{}, errors.New("missing id")
	}
	return p, nil
}
