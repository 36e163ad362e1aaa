// Package merge combines the fallback catalog with the live shop catalog.
package merge

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-voice/internal/catalog"
	"github.com/xenking/kart-voice/internal/domain/product"
	"github.com/xenking/kart-voice/internal/vendure"
)

// LiveCatalog is the remote catalog the merger pulls live products from.
// *vendure.Client implements it.
type LiveCatalog interface {
	ListProducts(ctx context.Context, opts vendure.ListOptions) ([]catalog.Record, error)
	ListCollections(ctx context.Context, take int) ([]catalog.Collection, error)
}

var _ LiveCatalog = (*vendure.Client)(nil)

// Config bounds the size of live fetches.
type Config struct {
	// Take is the size of the live snapshot fetched by Refresh.
	Take int
	// SearchTake is the size of a name-filtered live lookup.
	SearchTake int
	// CollectionsTake is the number of collections scanned for categories.
	CollectionsTake int
}

func (c *Config) setDefaults() {
	if c.Take <= 0 {
		c.Take = 5
	}
	if c.SearchTake <= 0 {
		c.SearchTake = 20
	}
	if c.CollectionsTake <= 0 {
		c.CollectionsTake = 20
	}
}

// Merger serves a combined product collection of fallback and live items.
//
// Live items get product.LiveIDPrefix on their id and product.LiveMarker on
// their name. Live fetch failures never reach the caller: they are logged
// and the last good snapshot is used instead.
type Merger struct {
	fallback product.Repository
	live     LiveCatalog
	cfg      Config

	snapshot   Cache[[]product.Product]
	categories Cache[[]string]
}

// New creates a Merger. A nil live catalog makes the merger serve the
// fallback catalog only.
func New(fallback product.Repository, live LiveCatalog, cfg Config) *Merger {
	cfg.setDefaults()
	return &Merger{
		fallback: fallback,
		live:     live,
		cfg:      cfg,
	}
}

// Refresh refetches the live snapshot and the category list concurrently.
// Either fetch may fail independently; failures keep the previous value.
func (m *Merger) Refresh(ctx context.Context) {
	if m.live == nil {
		return
	}
	lg := zctx.From(ctx)

	var wg sync.WaitGroup
	wg.Go(func() {
		products, err := m.fetch(ctx, vendure.ListOptions{Take: m.cfg.Take})
		if err != nil {
			lg.Warn("Live catalog refresh failed", zap.Error(err))
			return
		}
		m.snapshot.Store(products)
		lg.Debug("Live catalog refreshed", zap.Int("products", len(products)))
	})
	wg.Go(func() {
		categories, err := m.fetchCategories(ctx)
		if err != nil {
			lg.Warn("Category refresh failed", zap.Error(err))
			return
		}
		if len(categories) > 0 {
			m.categories.Store(categories)
		}
	})
	wg.Wait()
}

// RefreshAll replaces the live snapshot with up to SearchTake products and
// returns the combined collection.
func (m *Merger) RefreshAll(ctx context.Context) []product.Product {
	if m.live != nil {
		products, err := m.fetch(ctx, vendure.ListOptions{Take: m.cfg.SearchTake})
		if err != nil {
			zctx.From(ctx).Warn("Live catalog fetch failed", zap.Error(err))
		} else {
			m.snapshot.Store(products)
		}
	}
	return m.Products(ctx)
}

// Products returns the fallback catalog followed by the cached live snapshot.
func (m *Merger) Products(ctx context.Context) []product.Product {
	live, _ := m.snapshot.Load()
	return m.combine(ctx, live)
}

// Lookup fetches live products whose name contains nameContains and returns
// them after the fallback catalog. When the live fetch fails the cached
// snapshot is used in its place.
func (m *Merger) Lookup(ctx context.Context, nameContains string) []product.Product {
	if m.live == nil {
		return m.Products(ctx)
	}
	live, err := m.fetch(ctx, vendure.ListOptions{
		Take:         m.cfg.SearchTake,
		NameContains: nameContains,
	})
	if err != nil {
		zctx.From(ctx).Warn("Live search failed, using cached products",
			zap.String("name_contains", nameContains),
			zap.Error(err),
		)
		live, _ = m.snapshot.Load()
	}
	return m.combine(ctx, live)
}

// LiveCount returns the size of the cached live snapshot.
func (m *Merger) LiveCount() int {
	live, _ := m.snapshot.Load()
	return len(live)
}

// Categories returns the cached category terms without fetching. It
// implements intent.CategorySource.
func (m *Merger) Categories() []string {
	categories, _ := m.categories.Load()
	return categories
}

// LoadCategories returns the cached category terms, fetching them from the
// live catalog collections when the cache is empty. Failures yield an empty
// list.
func (m *Merger) LoadCategories(ctx context.Context) []string {
	if cached := m.Categories(); len(cached) > 0 {
		return cached
	}
	if m.live == nil {
		return []string{}
	}
	categories, err := m.fetchCategories(ctx)
	if err != nil {
		zctx.From(ctx).Warn("Fetch categories failed", zap.Error(err))
		return []string{}
	}
	if len(categories) > 0 {
		m.categories.Store(categories)
	}
	return categories
}

func (m *Merger) fetch(ctx context.Context, opts vendure.ListOptions) ([]product.Product, error) {
	records, err := m.live.ListProducts(ctx, opts)
	if err != nil {
		return nil, err
	}
	return catalog.NormalizeAll(records), nil
}

func (m *Merger) fetchCategories(ctx context.Context) ([]string, error) {
	collections, err := m.live.ListCollections(ctx, m.cfg.CollectionsTake)
	if err != nil {
		return nil, err
	}
	return CategoryTerms(collections), nil
}

func (m *Merger) combine(ctx context.Context, live []product.Product) []product.Product {
	fallback, err := m.fallback.List(ctx)
	if err != nil {
		zctx.From(ctx).Warn("Fallback catalog unavailable", zap.Error(err))
		fallback = nil
	}
	out := make([]product.Product, 0, len(fallback)+len(live))
	out = append(out, fallback...)
	for _, p := range live {
		out = append(out, MarkLive(p))
	}
	return out
}

// MarkLive tags p as a live product. It is idempotent.
func MarkLive(p product.Product) product.Product {
	p.Source = product.SourceLive
	if !strings.HasPrefix(p.ID, product.LiveIDPrefix) {
		p.ID = product.LiveIDPrefix + p.ID
	}
	if !strings.HasSuffix(p.Name, product.LiveMarker) {
		p.Name += product.LiveMarker
	}
	return p
}

// CategoryTerms turns collection names into category terms: normalized,
// longer than two characters, without duplicates, in collection order.
func CategoryTerms(collections []catalog.Collection) []string {
	out := make([]string, 0, len(collections))
	for _, c := range collections {
		term := catalog.NormalizeCategoryName(c.Name)
		if len(term) <= 2 || slices.Contains(out, term) {
			continue
		}
		out = append(out, term)
	}
	return out
}
