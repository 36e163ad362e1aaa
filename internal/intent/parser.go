package intent

import (
	"regexp"
	"strconv"
	"strings"
)

// priceRule extracts numeric groups from a transcript and applies them.
type priceRule struct {
	pattern *regexp.Regexp
	apply   func(c *Criteria, values []int)
}

// priceRules run in order; later rules overwrite bounds set by earlier ones.
var priceRules = []priceRule{
	{
		pattern: regexp.MustCompile(`under \$?(\d+)|below \$?(\d+)|less than \$?(\d+)`),
		apply:   func(c *Criteria, v []int) { c.MaxPrice = Int(v[0]) },
	},
	{
		pattern: regexp.MustCompile(`over \$?(\d+)|above \$?(\d+)|more than \$?(\d+)`),
		apply:   func(c *Criteria, v []int) { c.MinPrice = Int(v[0]) },
	},
	{
		pattern: regexp.MustCompile(`between \$?(\d+) and \$?(\d+)`),
		apply: func(c *Criteria, v []int) {
			c.MinPrice = Int(v[0])
			c.MaxPrice = Int(v[1])
		},
	},
}

// KnownCategories is the fixed category vocabulary, in match priority order.
var KnownCategories = []string{
	"running", "casual", "outdoor", "athletic",
	"walking", "basketball", "playground", "training",
}

type keywordRule struct {
	terms   []string
	keyword string
}

var keywordRules = []keywordRule{
	{terms: []string{"shoes", "sneakers"}, keyword: "shoes"},
	{terms: []string{"kids", "children", "baby"}, keyword: "kids"},
	{terms: []string{"toddler"}, keyword: "toddler"},
}

// catalogKeywordRules is the vocabulary used alongside a dynamic category
// source. Each term is its own keyword.
var catalogKeywordRules = selfKeywords(
	"shoes", "footwear", "sneakers", "boots", "sandals",
	"athletic", "casual", "running", "walking",
)

func selfKeywords(terms ...string) []keywordRule {
	rules := make([]keywordRule, len(terms))
	for i, t := range terms {
		rules[i] = keywordRule{terms: []string{t}, keyword: t}
	}
	return rules
}

var stockPhrases = []string{"in stock", "available"}

// CategorySource provides the last known list of catalog category terms.
type CategorySource interface {
	Categories() []string
}

// Option configures a Parser.
type Option func(p *Parser)

// WithCategorySource switches category extraction from the fixed vocabulary
// to the dynamic list provided by src. Every listed term found in the
// transcript is collected into Criteria.Categories, and keywords are taken
// from the catalog vocabulary.
func WithCategorySource(src CategorySource) Option {
	return func(p *Parser) {
		p.categories = src
		p.keywords = catalogKeywordRules
	}
}

// Parser converts transcripts into Criteria. It is safe for concurrent use.
type Parser struct {
	categories CategorySource
	keywords   []keywordRule
}

// NewParser creates a Parser.
func NewParser(opts ...Option) *Parser {
	p := &Parser{keywords: keywordRules}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Parse extracts criteria from transcript using the fixed category list.
func Parse(transcript string) Criteria {
	return defaultParser.Parse(transcript)
}

var defaultParser = NewParser()

// Parse extracts criteria from transcript. All extraction rules run
// independently over the lowercased transcript; a rule that does not match
// leaves its fields unset.
func (p *Parser) Parse(transcript string) Criteria {
	text := strings.ToLower(transcript)
	var c Criteria

	for _, r := range priceRules {
		if values, ok := extractInts(r.pattern, text); ok {
			r.apply(&c, values)
		}
	}

	if p.categories != nil {
		for _, category := range p.categories.Categories() {
			term := strings.ToLower(category)
			if term != "" && strings.Contains(text, term) {
				c.Categories = append(c.Categories, category)
			}
		}
	} else {
		for _, category := range KnownCategories {
			if strings.Contains(text, category) {
				c.Category = category
				break
			}
		}
	}

	for _, r := range p.keywords {
		if containsAny(text, r.terms) {
			c.Keywords = append(c.Keywords, r.keyword)
		}
	}

	if containsAny(text, stockPhrases) {
		c.InStock = true
	}
	return c
}

// extractInts returns the non-empty capture groups of the leftmost match.
// Alternatives of a pattern each contribute one group, so the first
// non-empty group belongs to the alternative that matched.
func extractInts(re *regexp.Regexp, text string) ([]int, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	var out []int
	for _, g := range m[1:] {
		if g == "" {
			continue
		}
		n, err := strconv.Atoi(g)
		if err != nil {
			// Overflowing numbers are treated as no match.
			return nil, false
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

func containsAny(text string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}
