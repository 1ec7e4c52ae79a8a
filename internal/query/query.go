// Package query implements the read-side Filter / Sort / Pagination
// services over an already-curated collection of vehicles. Everything here
// is pure and stateless: safe for concurrent callers, no I/O.
package query

import (
	"errors"

	"vehicle-curation-portal/internal/models"
)

// Validation errors surfaced synchronously to callers. Invalid input is
// never silently clamped to a default.
var (
	ErrInvalidPage      = errors.New("page number must be >= 1")
	ErrInvalidPageSize  = errors.New("page size must be >= 1")
	ErrInvalidSortField = errors.New("unrecognized sort field")
)

// Query is the caller-supplied, per-request configuration. Unset fields
// impose no constraint.
type Query struct {
	Makes      []string             `json:"makes,omitempty"`
	Models     []string             `json:"models,omitempty"`
	PriceMin   *int                 `json:"price_min,omitempty"`
	PriceMax   *int                 `json:"price_max,omitempty"`
	MileageMax *int                 `json:"mileage_max,omitempty"`
	YearMin    *int                 `json:"year_min,omitempty"`
	YearMax    *int                 `json:"year_max,omitempty"`
	Tiers      []models.QualityTier `json:"tiers,omitempty"`
	SearchText string               `json:"search_text,omitempty"`

	SortBy   string `json:"sort_by,omitempty"`
	SortDesc bool   `json:"sort_desc,omitempty"`

	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// Result is one page of vehicles plus pagination metadata
type Result struct {
	Items      []models.Vehicle `json:"items"`
	TotalItems int              `json:"total_items"`
	TotalPages int              `json:"total_pages"`
	Page       int              `json:"page"`
	PageSize   int              `json:"page_size"`
	HasNext    bool             `json:"has_next_page"`
	HasPrev    bool             `json:"has_previous_page"`
}

// FilterSortPaginate composes the three services: filter, then stable sort,
// then slice out the requested page. Sort is skipped when SortBy is unset.
func FilterSortPaginate(records []models.Vehicle, q Query) (*Result, error) {
	filtered := Filter(records, q)

	if q.SortBy != "" {
		sorted, err := Sort(filtered, q.SortBy, q.SortDesc)
		if err != nil {
			return nil, err
		}
		filtered = sorted
	}

	return Paginate(filtered, q.Page, q.PageSize)
}
