package search

import (
	"github.com/meilisearch/meilisearch-go"

	"vehicle-curation-portal/internal/models"
)

type SearchClient struct {
	client *meilisearch.Client
	index  string
}

func NewSearchClient(host, apiKey string) *SearchClient {
	client := meilisearch.NewClient(meilisearch.ClientConfig{
		Host:   host,
		APIKey: apiKey,
	})

	return &SearchClient{
		client: client,
		index:  "vehicles",
	}
}

// InitIndex initializes the Meilisearch index
func (s *SearchClient) InitIndex() error {
	_, err := s.client.CreateIndex(&meilisearch.IndexConfig{
		Uid:        s.index,
		PrimaryKey: "vin",
	})
	// Ignore error if index already exists
	if err != nil && err.Error() != "index already exists" {
		return err
	}

	_, err = s.client.Index(s.index).UpdateSearchableAttributes(&[]string{
		"vin",
		"make",
		"model",
		"body_type",
		"location",
	})
	if err != nil {
		return err
	}

	_, err = s.client.Index(s.index).UpdateFilterableAttributes(&[]string{
		"vin",
		"make",
		"year",
		"price",
		"mileage",
		"priority_score",
		"mileage_rating",
		"state_of_origin",
	})
	if err != nil {
		return err
	}

	_, err = s.client.Index(s.index).UpdateSortableAttributes(&[]string{
		"price",
		"mileage",
		"year",
		"priority_score",
		"first_seen_at",
	})
	return err
}

// IndexVehicle indexes a single vehicle
func (s *SearchClient) IndexVehicle(vehicle *models.Vehicle) error {
	_, err := s.client.Index(s.index).AddDocuments([]models.Vehicle{*vehicle})
	return err
}

// IndexVehicles indexes multiple vehicles
func (s *SearchClient) IndexVehicles(vehicles []models.Vehicle) error {
	if len(vehicles) == 0 {
		return nil
	}
	_, err := s.client.Index(s.index).AddDocuments(vehicles)
	return err
}

// DeleteVehicle removes a vehicle from the index by VIN
func (s *SearchClient) DeleteVehicle(vin string) error {
	_, err := s.client.Index(s.index).DeleteDocument(vin)
	return err
}

// SearchRequest represents advanced search parameters
type SearchRequest struct {
	Query  string
	Limit  int64
	Offset int64
	Filter []string
	Sort   []string
	Facets []string
}

// SearchResult represents search results with facets
type SearchResult struct {
	Hits           []models.Vehicle
	TotalHits      int64
	Facets         map[string]interface{}
	ProcessingTime int64
}

// Search searches for vehicles with basic options
func (s *SearchClient) Search(query string, limit int64) ([]models.Vehicle, error) {
	result, err := s.AdvancedSearch(SearchRequest{
		Query: query,
		Limit: limit,
	})
	if err != nil {
		return nil, err
	}
	return result.Hits, nil
}

// AdvancedSearch performs search with filters, sorting and facets
func (s *SearchClient) AdvancedSearch(req SearchRequest) (*SearchResult, error) {
	if req.Limit == 0 {
		req.Limit = 20
	}

	searchReq := &meilisearch.SearchRequest{
		Limit:  req.Limit,
		Offset: req.Offset,
	}

	if len(req.Filter) > 0 {
		filterStr := ""
		for i, f := range req.Filter {
			if i > 0 {
				filterStr += " AND "
			}
			filterStr += f
		}
		searchReq.Filter = filterStr
	}

	if len(req.Sort) > 0 {
		searchReq.Sort = req.Sort
	}
	if len(req.Facets) > 0 {
		searchReq.Facets = req.Facets
	}

	searchRes, err := s.client.Index(s.index).Search(req.Query, searchReq)
	if err != nil {
		return nil, err
	}

	vehicles := make([]models.Vehicle, 0, len(searchRes.Hits))
	for _, hit := range searchRes.Hits {
		vehicles = append(vehicles, parseVehicleFromHit(hit))
	}

	var facets map[string]interface{}
	if searchRes.FacetDistribution != nil {
		facets, _ = searchRes.FacetDistribution.(map[string]interface{})
	}

	return &SearchResult{
		Hits:           vehicles,
		TotalHits:      searchRes.EstimatedTotalHits,
		Facets:         facets,
		ProcessingTime: searchRes.ProcessingTimeMs,
	}, nil
}

// parseVehicleFromHit converts a search hit to a Vehicle
func parseVehicleFromHit(hit interface{}) models.Vehicle {
	hitMap, ok := hit.(map[string]interface{})
	if !ok {
		return models.Vehicle{}
	}

	vehicle := models.Vehicle{
		VIN:           getString(hitMap, "vin"),
		Make:          getString(hitMap, "make"),
		Model:         getString(hitMap, "model"),
		BodyType:      getString(hitMap, "body_type"),
		TitleStatus:   getString(hitMap, "title_status"),
		StateOfOrigin: getString(hitMap, "state_of_origin"),
		Location:      getString(hitMap, "location"),
		Source:        getString(hitMap, "source"),
		SourceURL:     getString(hitMap, "source_url"),
		MileageRating: models.MileageRating(getString(hitMap, "mileage_rating")),
	}

	vehicle.Year = getInt(hitMap, "year")
	vehicle.Price = getInt(hitMap, "price")
	vehicle.Mileage = getInt(hitMap, "mileage")
	vehicle.AccidentCount = getInt(hitMap, "accident_count")
	vehicle.OwnerCount = getInt(hitMap, "owner_count")
	vehicle.AgeYears = getInt(hitMap, "age_years")
	vehicle.MileagePerYear = getInt(hitMap, "mileage_per_year")
	vehicle.PriorityScore = getInt(hitMap, "priority_score")

	if d, ok := hitMap["distance_miles"].(float64); ok {
		dist := int(d)
		vehicle.DistanceMiles = &dist
	}

	return vehicle
}

// getString safely extracts a string from map
func getString(m map[string]interface{}, key string) string {
	if val, ok := m[key].(string); ok {
		return val
	}
	return ""
}

// getInt safely extracts an integer (JSON numbers decode as float64)
func getInt(m map[string]interface{}, key string) int {
	if val, ok := m[key].(float64); ok {
		return int(val)
	}
	return 0
}

// GetFacets retrieves facet distribution for specified fields
func (s *SearchClient) GetFacets(facets []string) (map[string]interface{}, error) {
	searchRes, err := s.client.Index(s.index).Search("", &meilisearch.SearchRequest{
		Limit:  0,
		Facets: facets,
	})
	if err != nil {
		return nil, err
	}

	if searchRes.FacetDistribution != nil {
		if facetMap, ok := searchRes.FacetDistribution.(map[string]interface{}); ok {
			return facetMap, nil
		}
	}
	return map[string]interface{}{}, nil
}
