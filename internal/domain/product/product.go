package product

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Source identifies which catalog a product was fetched from.
type Source uint8

const (
	// SourceFallback is the static catalog (embedded fixtures or Postgres).
	SourceFallback Source = iota
	// SourceLive is the remote shop API.
	SourceLive
)

// String implements fmt.Stringer.
func (s Source) String() string {
	switch s {
	case SourceLive:
		return "live"
	default:
		return "fallback"
	}
}

const (
	// LiveIDPrefix disambiguates live identifiers from fallback ones.
	LiveIDPrefix = "vendure-"
	// LiveMarker is appended to live product names when merged.
	LiveMarker = " (Live)"
)

// Product represents a catalog item as seen by the search core.
//
// Price is in whole currency units. Category is always non-empty.
type Product struct {
	ID          string
	Name        string
	Price       int
	Image       string
	Description string
	Category    string
	Collections []string
	InStock     bool
	Source      Source
}

// IsLive reports whether p came from the live catalog.
func (p Product) IsLive() bool {
	return p.Source == SourceLive || strings.HasPrefix(p.ID, LiveIDPrefix)
}

// DisplayName returns the name with the live marker stripped.
func (p Product) DisplayName() string {
	return strings.Replace(p.Name, LiveMarker, "", 1)
}

// Repository defines read operations for a product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
}
