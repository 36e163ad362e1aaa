package vendure

import (
	"math"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-voice/internal/catalog"
)

// decodeList walks data.<root>.items and calls item for each element. Each
// element is decoded from its own raw value, so an element item rejects is
// counted in skipped and the rest of the list still decodes.
func decodeList(d *jx.Decoder, root string, item func(d *jx.Decoder) error) (skipped int, err error) {
	err = d.Obj(func(d *jx.Decoder, key string) error {
		if key != root {
			return d.Skip()
		}
		if d.Next() == jx.Null {
			return d.Null()
		}
		return d.Obj(func(d *jx.Decoder, key string) error {
			if key != "items" {
				return d.Skip()
			}
			if d.Next() == jx.Null {
				return d.Null()
			}
			return d.Arr(func(d *jx.Decoder) error {
				raw, err := d.Raw()
				if err != nil {
					return err
				}
				if err := item(jx.DecodeBytes(raw)); err != nil {
					skipped++
				}
				return nil
			})
		})
	})
	return skipped, err
}

// optStr decodes a string that may be null.
func optStr(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}

// minorUnits decodes a money amount, tolerating fractional encodings.
func minorUnits(d *jx.Decoder) (int64, error) {
	switch d.Next() {
	case jx.Null:
		return 0, d.Null()
	case jx.Number:
		f, err := d.Float64()
		if err != nil {
			return 0, err
		}
		return int64(math.Round(f)), nil
	default:
		return 0, errors.Errorf("price: unexpected %v", d.Next())
	}
}

// decodeID accepts both string and numeric identifiers.
func decodeID(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.Number:
		n, err := d.Int64()
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(n, 10), nil
	default:
		return optStr(d)
	}
}

func decodeRecord(d *jx.Decoder) (catalog.Record, error) {
	var r catalog.Record
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			r.ID, err = decodeID(d)
		case "name":
			r.Name, err = optStr(d)
		case "slug":
			r.Slug, err = optStr(d)
		case "description":
			r.Description, err = optStr(d)
		case "featuredAsset":
			if d.Next() == jx.Null {
				return d.Null()
			}
			var a catalog.Asset
			a, err = decodeAsset(d)
			r.FeaturedAsset = &a
		case "variants":
			if d.Next() == jx.Null {
				return d.Null()
			}
			err = d.Arr(func(d *jx.Decoder) error {
				v, err := decodeVariant(d)
				if err != nil {
					return err
				}
				r.Variants = append(r.Variants, v)
				return nil
			})
		case "collections":
			if d.Next() == jx.Null {
				return d.Null()
			}
			err = d.Arr(func(d *jx.Decoder) error {
				c, err := decodeCollection(d)
				if err != nil {
					return err
				}
				r.Collections = append(r.Collections, catalog.CollectionRef{ID: c.ID, Name: c.Name, Slug: c.Slug})
				return nil
			})
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "product.%s", key)
		}
		return nil
	})
	return r, err
}

func decodeAsset(d *jx.Decoder) (catalog.Asset, error) {
	var a catalog.Asset
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			a.ID, err = decodeID(d)
		case "preview":
			a.Preview, err = optStr(d)
		case "source":
			a.Source, err = optStr(d)
		default:
			err = d.Skip()
		}
		return err
	})
	return a, err
}

func decodeVariant(d *jx.Decoder) (catalog.Variant, error) {
	var v catalog.Variant
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			v.ID, err = decodeID(d)
		case "name":
			v.Name, err = optStr(d)
		case "sku":
			v.SKU, err = optStr(d)
		case "price":
			v.Price, err = minorUnits(d)
		case "priceWithTax":
			v.PriceWithTax, err = minorUnits(d)
		case "currencyCode":
			v.CurrencyCode, err = optStr(d)
		case "stockLevel":
			v.StockLevel, err = optStr(d)
		default:
			err = d.Skip()
		}
		return err
	})
	return v, err
}

func decodeCollection(d *jx.Decoder) (catalog.Collection, error) {
	var c catalog.Collection
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			c.ID, err = decodeID(d)
		case "name":
			c.Name, err = optStr(d)
		case "slug":
			c.Slug, err = optStr(d)
		case "description":
			c.Description, err = optStr(d)
		default:
			err = d.Skip()
		}
		return err
	})
	return c, err
}

func decodeErrorMessage(d *jx.Decoder) (string, error) {
	var msg string
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "message" {
			return d.Skip()
		}
		var err error
		msg, err = optStr(d)
		return err
	})
	return msg, err
}

// DecodeRecord decodes a single upstream product object, as found in
// catalog dumps.
func DecodeRecord(data []byte) (catalog.Record, error) {
	return decodeRecord(jx.DecodeBytes(data))
}
