package search

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/meilisearch/meilisearch-go"

	"vehicle-curation-portal/internal/models"
)

type FilterParams struct {
	Query         string
	Makes         []string
	MinPrice      *int
	MaxPrice      *int
	MaxMileage    *int
	MinYear       *int
	MinScore      *int
	MileageRating string
	SortBy        string
	Limit         int64
}

// FilterSearch performs a filtered vehicle search against the index.
func (s *SearchClient) FilterSearch(params FilterParams) ([]models.Vehicle, error) {
	var filters []string

	if len(params.Makes) > 0 {
		makeFilters := make([]string, len(params.Makes))
		for i, m := range params.Makes {
			makeFilters[i] = fmt.Sprintf("make = '%s'", m)
		}
		filters = append(filters, fmt.Sprintf("(%s)", strings.Join(makeFilters, " OR ")))
	}

	if params.MinPrice != nil {
		filters = append(filters, fmt.Sprintf("price >= %d", *params.MinPrice))
	}
	if params.MaxPrice != nil {
		filters = append(filters, fmt.Sprintf("price <= %d", *params.MaxPrice))
	}
	if params.MaxMileage != nil {
		filters = append(filters, fmt.Sprintf("mileage <= %d", *params.MaxMileage))
	}
	if params.MinYear != nil {
		filters = append(filters, fmt.Sprintf("year >= %d", *params.MinYear))
	}
	if params.MinScore != nil {
		filters = append(filters, fmt.Sprintf("priority_score >= %d", *params.MinScore))
	}
	if params.MileageRating != "" {
		filters = append(filters, fmt.Sprintf("mileage_rating = '%s'", params.MileageRating))
	}

	var filterStr string
	if len(filters) > 0 {
		filterStr = strings.Join(filters, " AND ")
	}

	var sort []string
	if params.SortBy != "" {
		sort = []string{params.SortBy}
	}

	if params.Limit == 0 {
		params.Limit = 20
	}

	searchReq := &meilisearch.SearchRequest{
		Limit: params.Limit,
	}
	if filterStr != "" {
		searchReq.Filter = filterStr
	}
	if len(sort) > 0 {
		searchReq.Sort = sort
	}

	searchRes, err := s.client.Index(s.index).Search(params.Query, searchReq)
	if err != nil {
		return nil, err
	}

	var vehicles []models.Vehicle
	for _, hit := range searchRes.Hits {
		hitJSON, err := json.Marshal(hit)
		if err != nil {
			continue
		}

		var vehicle models.Vehicle
		if err := json.Unmarshal(hitJSON, &vehicle); err != nil {
			continue
		}

		vehicles = append(vehicles, vehicle)
	}

	return vehicles, nil
}
