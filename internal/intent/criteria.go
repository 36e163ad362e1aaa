// Package intent extracts structured search criteria from shopper transcripts.
package intent

// Criteria is the structured form of a shopper request. Nil bounds and an
// empty keyword list mean "no constraint". Criteria values are built by
// Parser and treated as immutable afterwards.
type Criteria struct {
	MinPrice *int
	MaxPrice *int
	// Category is the single slug matched by the fixed category list.
	Category string
	// Categories are terms matched against the dynamic category list.
	Categories []string
	Keywords   []string
	// InStock narrows results to in-stock products. False means no filter.
	InStock bool
}

// IsZero reports whether c carries no constraint at all.
func (c Criteria) IsZero() bool {
	return c.MinPrice == nil && c.MaxPrice == nil &&
		c.Category == "" && len(c.Categories) == 0 &&
		len(c.Keywords) == 0 && !c.InStock
}

// FirstKeyword returns the first keyword or "" when there are none.
func (c Criteria) FirstKeyword() string {
	if len(c.Keywords) == 0 {
		return ""
	}
	return c.Keywords[0]
}

// Int returns a pointer to v, for building criteria literals.
func Int(v int) *int {
	return &v
}
