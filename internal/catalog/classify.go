package catalog

import (
	"strings"
)

// DefaultCategory is assigned when no rule matches.
const DefaultCategory = "casual"

// rule maps any of its keywords, matched as substrings, to a category slug.
type rule struct {
	keywords []string
	slug     string
}

func (r rule) match(s string) bool {
	for _, kw := range r.keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// Rule tables are evaluated in declaration order; the first match wins.
var (
	directRules = []rule{
		{keywords: []string{"running", "runner"}, slug: "running"},
		{keywords: []string{"casual"}, slug: "casual"},
		{keywords: []string{"outdoor", "hiking"}, slug: "outdoor"},
		{keywords: []string{"athletic", "sport"}, slug: "athletic"},
		{keywords: []string{"walking", "walker"}, slug: "walking"},
		{keywords: []string{"basketball"}, slug: "basketball"},
		{keywords: []string{"training", "trainer"}, slug: "training"},
		{keywords: []string{"playground"}, slug: "playground"},
	}

	broadCollectionRules = []rule{
		{keywords: []string{"footwear"}, slug: "casual"},
		{keywords: []string{"shoes"}, slug: "casual"},
		{keywords: []string{"sneakers"}, slug: "casual"},
		{keywords: []string{"boots"}, slug: "outdoor"},
		{keywords: []string{"sandals"}, slug: "casual"},
	}

	nameRules = []rule{
		{keywords: []string{"running", "runner"}, slug: "running"},
		{keywords: []string{"casual"}, slug: "casual"},
		{keywords: []string{"outdoor", "hiking", "boot"}, slug: "outdoor"},
		{keywords: []string{"athletic", "sport"}, slug: "athletic"},
		{keywords: []string{"walking", "walker"}, slug: "walking"},
		{keywords: []string{"basketball"}, slug: "basketball"},
		{keywords: []string{"training", "trainer"}, slug: "training"},
		{keywords: []string{"playground"}, slug: "playground"},
		{keywords: []string{"sneaker"}, slug: "casual"},
		{keywords: []string{"sandal"}, slug: "casual"},
	}
)

func firstMatch(rules []rule, s string) (string, bool) {
	for _, r := range rules {
		if r.match(s) {
			return r.slug, true
		}
	}
	return "", false
}

// Classify infers a category slug from a product name and its collection
// names. Collections are trusted over the name; within each tier earlier
// rules and earlier collections win. The result is never empty.
func Classify(name string, collections []string) string {
	for _, c := range collections {
		c = strings.ToLower(c)
		if slug, ok := firstMatch(directRules, c); ok {
			return slug
		}
		if slug, ok := firstMatch(broadCollectionRules, c); ok {
			return slug
		}
	}

	if slug, ok := firstMatch(nameRules, strings.ToLower(name)); ok {
		return slug
	}

	if len(collections) > 0 {
		if slug := lettersOnly(collections[0]); slug != "" {
			return slug
		}
	}
	return DefaultCategory
}

// lettersOnly lowercases s and drops everything outside a-z.
func lettersOnly(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if r >= 'a' && r <= 'z' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeCategoryName turns a collection name into a category term:
// lowercase, only letters, digits and single spaces.
func NormalizeCategoryName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '\t', r == '\n', r == '\r':
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
