package handler

import (
	"github.com/go-faster/jx"

	"github.com/xenking/kart-voice/internal/domain/product"
	"github.com/xenking/kart-voice/internal/intent"
)

func encodeStrings(e *jx.Encoder, values []string) {
	e.ArrStart()
	for _, v := range values {
		e.Str(v)
	}
	e.ArrEnd()
}

func encodeProduct(e *jx.Encoder, p product.Product) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(p.ID)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("price")
	e.Int(p.Price)
	e.FieldStart("image")
	e.Str(p.Image)
	e.FieldStart("description")
	e.Str(p.Description)
	e.FieldStart("category")
	e.Str(p.Category)
	if len(p.Collections) > 0 {
		e.FieldStart("collections")
		encodeStrings(e, p.Collections)
	}
	e.FieldStart("inStock")
	e.Bool(p.InStock)
	e.FieldStart("source")
	e.Str(p.Source.String())
	e.ObjEnd()
}

func encodeProducts(e *jx.Encoder, products []product.Product) {
	e.ArrStart()
	for _, p := range products {
		encodeProduct(e, p)
	}
	e.ArrEnd()
}

// encodeCriteria omits unset constraints.
func encodeCriteria(e *jx.Encoder, c intent.Criteria) {
	e.ObjStart()
	if c.MinPrice != nil {
		e.FieldStart("minPrice")
		e.Int(*c.MinPrice)
	}
	if c.MaxPrice != nil {
		e.FieldStart("maxPrice")
		e.Int(*c.MaxPrice)
	}
	if c.Category != "" {
		e.FieldStart("category")
		e.Str(c.Category)
	}
	if len(c.Categories) > 0 {
		e.FieldStart("categories")
		encodeStrings(e, c.Categories)
	}
	e.FieldStart("keywords")
	encodeStrings(e, c.Keywords)
	e.FieldStart("inStock")
	e.Bool(c.InStock)
	e.ObjEnd()
}
