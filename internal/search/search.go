// Package search filters and ranks products against shopper criteria.
//
// All functions are pure: inputs are never mutated and the returned slices
// are freshly allocated.
package search

import (
	"cmp"
	"slices"
	"strings"

	"github.com/xenking/kart-voice/internal/domain/product"
	"github.com/xenking/kart-voice/internal/intent"
)

// predicate reports whether a product passes a filter stage.
type predicate func(p product.Product) bool

// stages builds the filter pipeline for c. Stages for unset criteria are
// omitted, so an empty pipeline keeps everything.
func stages(c intent.Criteria) []predicate {
	var out []predicate

	if c.MaxPrice != nil {
		limit := *c.MaxPrice
		out = append(out, func(p product.Product) bool { return p.Price <= limit })
	}
	if c.MinPrice != nil {
		limit := *c.MinPrice
		out = append(out, func(p product.Product) bool { return p.Price >= limit })
	}
	if c.InStock {
		out = append(out, func(p product.Product) bool { return p.InStock })
	}
	if c.Category != "" {
		category := c.Category
		out = append(out, func(p product.Product) bool { return p.Category == category })
	}
	if len(c.Categories) > 0 {
		terms := lowerAll(c.Categories)
		out = append(out, func(p product.Product) bool { return matchesCategory(p, terms) })
	}
	if len(c.Keywords) > 0 {
		keywords := lowerAll(c.Keywords)
		out = append(out, func(p product.Product) bool { return matchesKeyword(p, keywords) })
	}
	return out
}

// matchesCategory reports whether any term is a substring of the product's
// category or of one of its collection names.
func matchesCategory(p product.Product, terms []string) bool {
	category := strings.ToLower(p.Category)
	for _, term := range terms {
		if strings.Contains(category, term) {
			return true
		}
		for _, col := range p.Collections {
			if strings.Contains(strings.ToLower(col), term) {
				return true
			}
		}
	}
	return false
}

func matchesKeyword(p product.Product, keywords []string) bool {
	text := strings.ToLower(p.Name + " " + p.Description + " " + p.Category)
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}

// Filter returns the products matching every set criterion, in input order.
func Filter(products []product.Product, c intent.Criteria) []product.Product {
	pipeline := stages(c)
	out := make([]product.Product, 0, len(products))
next:
	for _, p := range products {
		for _, keep := range pipeline {
			if !keep(p) {
				continue next
			}
		}
		out = append(out, p)
	}
	return out
}

// Rank returns a stably sorted copy of products: live before fallback,
// in-stock before out-of-stock, then ascending price. Equal products keep
// their input order.
func Rank(products []product.Product) []product.Product {
	out := slices.Clone(products)
	slices.SortStableFunc(out, compare)
	return out
}

func compare(a, b product.Product) int {
	if d := boolFirst(a.IsLive(), b.IsLive()); d != 0 {
		return d
	}
	if d := boolFirst(a.InStock, b.InStock); d != 0 {
		return d
	}
	return cmp.Compare(a.Price, b.Price)
}

// boolFirst orders true before false.
func boolFirst(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return -1
	default:
		return 1
	}
}

// Search filters products by c and ranks the result.
func Search(products []product.Product, c intent.Criteria) []product.Product {
	return Rank(Filter(products, c))
}
