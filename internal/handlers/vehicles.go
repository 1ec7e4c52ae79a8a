package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"vehicle-curation-portal/internal/database"
	"vehicle-curation-portal/internal/models"
	"vehicle-curation-portal/internal/query"
	"vehicle-curation-portal/internal/search"
)

// VehicleStore is the read/review surface the vehicle handlers need.
type VehicleStore interface {
	GetAllVehicles() ([]models.Vehicle, error)
	GetVehicleByVIN(vin string) (*models.Vehicle, error)
	SaveReview(vin string, rating *int, notes string) error
}

// Searcher is the search-index surface the vehicle handlers need.
type Searcher interface {
	Search(query string, limit int64) ([]models.Vehicle, error)
	FilterSearch(params search.FilterParams) ([]models.Vehicle, error)
	GetFacets(facets []string) (map[string]interface{}, error)
	IndexVehicle(vehicle *models.Vehicle) error
}

// VehicleHandler serves the curated vehicle collection.
type VehicleHandler struct {
	store  VehicleStore
	search Searcher
}

// NewVehicleHandler creates a vehicle handler. search may be nil when the
// search index is disabled.
func NewVehicleHandler(store VehicleStore, searchClient Searcher) *VehicleHandler {
	return &VehicleHandler{store: store, search: searchClient}
}

// ListVehicles returns one filtered, sorted page of the curated set.
// GET /api/vehicles?makes=Toyota,Honda&price_max=20000&sort_by=price&page=1&page_size=20
func (h *VehicleHandler) ListVehicles(c *gin.Context) {
	q, err := parseListQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	vehicles, err := h.store.GetAllVehicles()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	result, err := query.FilterSortPaginate(vehicles, q)
	if err != nil {
		// Validation errors from the query services map to 400
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetVehicle returns a single vehicle by VIN.
// GET /api/vehicles/:vin
func (h *VehicleHandler) GetVehicle(c *gin.Context) {
	vinParam := strings.ToUpper(c.Param("vin"))

	vehicle, err := h.store.GetVehicleByVIN(vinParam)
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "vehicle not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, vehicle)
}

// ReviewVehicle saves a user's rating and notes for a vehicle.
// PUT /api/vehicles/:vin/review
func (h *VehicleHandler) ReviewVehicle(c *gin.Context) {
	vinParam := strings.ToUpper(c.Param("vin"))

	var req struct {
		Rating *int   `json:"rating" binding:"omitempty,min=1,max=5"`
		Notes  string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.store.SaveReview(vinParam, req.Rating, req.Notes)
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "vehicle not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// Keep the search index in step with the review fields. Best-effort:
	// the review is already saved.
	if h.search != nil {
		if vehicle, err := h.store.GetVehicleByVIN(vinParam); err == nil {
			if err := h.search.IndexVehicle(vehicle); err != nil {
				log.Printf("Handlers: failed to reindex %s after review: %v", vinParam, err)
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{"vin": vinParam, "reviewed": true})
}

// SearchVehicles runs a search against the index: full-text only when just
// q is given, filtered when any filter or sort param is present.
// GET /api/search?q=rav4&makes=Toyota,Honda&price_max=20000&sort_by=price&order=desc
func (h *VehicleHandler) SearchVehicles(c *gin.Context) {
	if h.search == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "search is not configured"})
		return
	}

	params, err := parseSearchParams(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var vehicles []models.Vehicle
	if searchHasFilters(params) {
		vehicles, err = h.search.FilterSearch(params)
	} else {
		vehicles, err = h.search.Search(params.Query, params.Limit)
	}
	if err != nil {
		log.Printf("Handlers: search failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"vehicles": vehicles,
		"count":    len(vehicles),
	})
}

// SearchFacets returns facet distributions over the indexed set.
// GET /api/search/facets?facets=make,year
func (h *VehicleHandler) SearchFacets(c *gin.Context) {
	if h.search == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "search is not configured"})
		return
	}

	facets := []string{"make", "year", "mileage_rating"}
	if raw := c.Query("facets"); raw != "" {
		facets = splitCSV(raw)
	}

	distribution, err := h.search.GetFacets(facets)
	if err != nil {
		log.Printf("Handlers: facet query failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"facets": distribution})
}

func parseSearchParams(c *gin.Context) (search.FilterParams, error) {
	params := search.FilterParams{Query: c.Query("q")}

	limit, err := strconv.ParseInt(c.DefaultQuery("limit", "20"), 10, 64)
	if err != nil || limit < 1 {
		return params, errors.New("limit must be a positive integer")
	}
	params.Limit = limit

	if makes := c.Query("makes"); makes != "" {
		params.Makes = splitCSV(makes)
	}
	if params.MinPrice, err = intParam(c, "price_min"); err != nil {
		return params, err
	}
	if params.MaxPrice, err = intParam(c, "price_max"); err != nil {
		return params, err
	}
	if params.MaxMileage, err = intParam(c, "mileage_max"); err != nil {
		return params, err
	}
	if params.MinYear, err = intParam(c, "year_min"); err != nil {
		return params, err
	}
	if params.MinScore, err = intParam(c, "score_min"); err != nil {
		return params, err
	}
	params.MileageRating = c.Query("mileage_rating")

	if sortBy := c.Query("sort_by"); sortBy != "" {
		direction := "asc"
		if c.Query("order") == "desc" {
			direction = "desc"
		}
		params.SortBy = sortBy + ":" + direction
	}

	return params, nil
}

func searchHasFilters(p search.FilterParams) bool {
	return len(p.Makes) > 0 || p.MinPrice != nil || p.MaxPrice != nil ||
		p.MaxMileage != nil || p.MinYear != nil || p.MinScore != nil ||
		p.MileageRating != "" || p.SortBy != ""
}

// parseListQuery maps request query params onto a query.Query. Defaults:
// page 1, page size 20.
func parseListQuery(c *gin.Context) (query.Query, error) {
	q := query.Query{
		SearchText: c.Query("q"),
		SortBy:     c.Query("sort_by"),
		SortDesc:   c.Query("order") == "desc",
	}

	if makes := c.Query("makes"); makes != "" {
		q.Makes = splitCSV(makes)
	}
	if modelNames := c.Query("models"); modelNames != "" {
		q.Models = splitCSV(modelNames)
	}
	if tiers := c.Query("tiers"); tiers != "" {
		for _, t := range splitCSV(tiers) {
			q.Tiers = append(q.Tiers, models.QualityTier(t))
		}
	}

	var err error
	if q.PriceMin, err = intParam(c, "price_min"); err != nil {
		return q, err
	}
	if q.PriceMax, err = intParam(c, "price_max"); err != nil {
		return q, err
	}
	if q.MileageMax, err = intParam(c, "mileage_max"); err != nil {
		return q, err
	}
	if q.YearMin, err = intParam(c, "year_min"); err != nil {
		return q, err
	}
	if q.YearMax, err = intParam(c, "year_max"); err != nil {
		return q, err
	}

	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		return q, errors.New("page must be an integer")
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if err != nil {
		return q, errors.New("page_size must be an integer")
	}
	q.Page = page
	q.PageSize = pageSize

	return q, nil
}

func intParam(c *gin.Context, name string) (*int, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, errors.New(name + " must be an integer")
	}
	return &n, nil
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
