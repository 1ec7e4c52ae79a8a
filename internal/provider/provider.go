// Package provider defines where raw listings come from. The pipeline only
// sees the Source interface; concrete sources cover a JSON feed file and a
// scraped HTML search-results page.
package provider

import (
	"context"
	"errors"

	"vehicle-curation-portal/internal/models"
)

// ErrSourceUnavailable means the upstream could not be reached at all.
// The pipeline treats a fetch failure as fatal for the run.
var ErrSourceUnavailable = errors.New("listing source unavailable")

// Criteria narrows what the source is asked for. Sources are free to
// ignore fields they cannot express upstream; the hard filter re-checks
// everything locally.
type Criteria struct {
	Makes      []string `json:"makes,omitempty"`
	PriceMin   int      `json:"price_min,omitempty"`
	PriceMax   int      `json:"price_max,omitempty"`
	YearMin    int      `json:"year_min,omitempty"`
	ZipCode    string   `json:"zip_code,omitempty"`
	RadiusMi   int      `json:"radius_miles,omitempty"`
	MaxResults int      `json:"max_results,omitempty"`
}

// Source produces the raw listings for one pipeline run.
type Source interface {
	// Name identifies the source in run summaries and stored records.
	Name() string
	// Fetch returns every listing matching the criteria. An error here
	// fails the whole run; per-listing problems are represented as
	// incomplete RawListings instead.
	Fetch(ctx context.Context, criteria Criteria) ([]models.RawListing, error)
}
