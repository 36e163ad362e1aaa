// Package reply renders spoken summaries of search results.
package reply

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/xenking/kart-voice/internal/domain/product"
	"github.com/xenking/kart-voice/internal/intent"
)

// Suggestions are example queries offered when nothing matched.
var Suggestions = []string{
	"running shoes under 50 dollars",
	"casual shoes for kids",
	"athletic shoes in stock",
}

// maxListed is the largest result count that is enumerated in full.
const maxListed = 3

// topPicks is the number of products named when results are summarized.
const topPicks = 2

// Synthesizer renders summaries. It is safe for concurrent use. The zero
// value is not usable; use New.
type Synthesizer struct {
	pick func(n int) int
}

// New returns a Synthesizer choosing suggestions with r. A nil r uses the
// global random source. Access to r is serialized.
func New(r *rand.Rand) *Synthesizer {
	if r == nil {
		return &Synthesizer{pick: rand.IntN}
	}
	var mu sync.Mutex
	return &Synthesizer{pick: func(n int) int {
		mu.Lock()
		defer mu.Unlock()
		return r.IntN(n)
	}}
}

var defaultSynthesizer = New(nil)

// Synthesize renders a summary with the default Synthesizer.
func Synthesize(products []product.Product, c intent.Criteria) string {
	return defaultSynthesizer.Synthesize(products, c)
}

// Synthesize renders a natural-language summary of ranked products.
func (s *Synthesizer) Synthesize(products []product.Product, c intent.Criteria) string {
	count := len(products)
	if count == 0 {
		suggestion := Suggestions[s.pick(len(Suggestions))]
		return fmt.Sprintf("I couldn't find any shoes matching your criteria. Try asking for something like '%s'.", suggestion)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d", count)
	if category := categoryWord(c); category != "" {
		b.WriteString(" " + category)
	}
	b.WriteString(" " + plural("shoe", count))
	b.WriteString(priceQualifier(c))
	b.WriteString(". ")

	if live := liveCount(products); live > 0 {
		fmt.Fprintf(&b, "Including %d live %s from our store. ", live, plural("product", live))
	}

	if count <= maxListed {
		names := make([]string, count)
		for i, p := range products {
			names[i] = describe(p, " from our live inventory")
		}
		fmt.Fprintf(&b, "Here they are: %s.", strings.Join(names, ", "))
		return b.String()
	}

	lo, hi := priceRange(products)
	fmt.Fprintf(&b, "The prices range from $%d to $%d. ", lo, hi)

	picks := make([]string, topPicks)
	for i, p := range products[:topPicks] {
		picks[i] = describe(p, " from live inventory")
	}
	fmt.Fprintf(&b, "Top picks are %s.", strings.Join(picks, " and "))
	return b.String()
}

func describe(p product.Product, liveSuffix string) string {
	s := fmt.Sprintf("%s for $%d", p.DisplayName(), p.Price)
	if p.IsLive() {
		s += liveSuffix
	}
	return s
}

func categoryWord(c intent.Criteria) string {
	if c.Category != "" {
		return c.Category
	}
	if len(c.Categories) > 0 {
		return c.Categories[0]
	}
	return ""
}

func priceQualifier(c intent.Criteria) string {
	switch {
	case c.MinPrice != nil && c.MaxPrice != nil:
		return fmt.Sprintf(" between $%d and $%d", *c.MinPrice, *c.MaxPrice)
	case c.MaxPrice != nil:
		return fmt.Sprintf(" under $%d", *c.MaxPrice)
	case c.MinPrice != nil:
		return fmt.Sprintf(" over $%d", *c.MinPrice)
	default:
		return ""
	}
}

func plural(word string, n int) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

func liveCount(products []product.Product) int {
	n := 0
	for _, p := range products {
		if p.IsLive() {
			n++
		}
	}
	return n
}

// priceRange returns the min and max price of a non-empty slice.
func priceRange(products []product.Product) (lo, hi int) {
	lo, hi = products[0].Price, products[0].Price
	for _, p := range products[1:] {
		lo = min(lo, p.Price)
		hi = max(hi, p.Price)
	}
	return lo, hi
}
