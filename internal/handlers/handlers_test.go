package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vehicle-curation-portal/internal/database"
	"vehicle-curation-portal/internal/models"
	"vehicle-curation-portal/internal/query"
	"vehicle-curation-portal/internal/search"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeVehicleStore struct {
	vehicles []models.Vehicle
	reviews  map[string]string
}

func (s *fakeVehicleStore) GetAllVehicles() ([]models.Vehicle, error) {
	return s.vehicles, nil
}

func (s *fakeVehicleStore) GetVehicleByVIN(vin string) (*models.Vehicle, error) {
	for i := range s.vehicles {
		if s.vehicles[i].VIN == vin {
			return &s.vehicles[i], nil
		}
	}
	return nil, database.ErrNotFound
}

func (s *fakeVehicleStore) SaveReview(vin string, rating *int, notes string) error {
	if _, err := s.GetVehicleByVIN(vin); err != nil {
		return err
	}
	if s.reviews == nil {
		s.reviews = map[string]string{}
	}
	s.reviews[vin] = notes
	return nil
}

func testVehicles() []models.Vehicle {
	return []models.Vehicle{
		{VIN: "JTMB1RFV8KD000001", Make: "Toyota", Model: "RAV4", Year: 2019, Price: 19500, PriorityScore: 92},
		{VIN: "2HKRW2H57KH000002", Make: "Honda", Model: "CR-V", Year: 2019, Price: 18800, PriorityScore: 88},
		{VIN: "1FMCU9GD5KU000003", Make: "Ford", Model: "Escape", Year: 2016, Price: 9800, PriorityScore: 31},
	}
}

type fakeSearcher struct {
	searchQuery  string
	searchLimit  int64
	filterParams *search.FilterParams
	facetsAsked  []string
	indexed      []string
	results      []models.Vehicle
	facets       map[string]interface{}
}

func (f *fakeSearcher) Search(query string, limit int64) ([]models.Vehicle, error) {
	f.searchQuery = query
	f.searchLimit = limit
	return f.results, nil
}

func (f *fakeSearcher) FilterSearch(params search.FilterParams) ([]models.Vehicle, error) {
	f.filterParams = &params
	return f.results, nil
}

func (f *fakeSearcher) GetFacets(facets []string) (map[string]interface{}, error) {
	f.facetsAsked = facets
	return f.facets, nil
}

func (f *fakeSearcher) IndexVehicle(vehicle *models.Vehicle) error {
	f.indexed = append(f.indexed, vehicle.VIN)
	return nil
}

func newVehicleRouter(store *fakeVehicleStore) *gin.Engine {
	return newSearchRouter(store, nil)
}

func newSearchRouter(store *fakeVehicleStore, searcher Searcher) *gin.Engine {
	h := NewVehicleHandler(store, searcher)
	r := gin.New()
	r.GET("/api/vehicles", h.ListVehicles)
	r.GET("/api/search", h.SearchVehicles)
	r.GET("/api/search/facets", h.SearchFacets)
	r.GET("/api/vehicles/:vin", h.GetVehicle)
	r.PUT("/api/vehicles/:vin/review", h.ReviewVehicle)
	return r
}

func doRequest(t *testing.T, r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestListVehiclesFiltersAndPaginates(t *testing.T) {
	r := newVehicleRouter(&fakeVehicleStore{vehicles: testVehicles()})

	w := doRequest(t, r, http.MethodGet, "/api/vehicles?makes=Toyota,Honda&price_max=20000&sort_by=price&page=1&page_size=10", "")
	require.Equal(t, http.StatusOK, w.Code)

	var result query.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	require.Len(t, result.Items, 2)
	assert.Equal(t, 2, result.TotalItems)
	// Sorted by price ascending
	assert.Equal(t, "2HKRW2H57KH000002", result.Items[0].VIN)
	assert.False(t, result.HasNext)
}

func TestListVehiclesDefaultsPageSize(t *testing.T) {
	r := newVehicleRouter(&fakeVehicleStore{vehicles: testVehicles()})

	w := doRequest(t, r, http.MethodGet, "/api/vehicles", "")
	require.Equal(t, http.StatusOK, w.Code)

	var result query.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, 1, result.Page)
	assert.Equal(t, 20, result.PageSize)
	assert.Equal(t, 3, result.TotalItems)
}

func TestListVehiclesRejectsBadInput(t *testing.T) {
	r := newVehicleRouter(&fakeVehicleStore{vehicles: testVehicles()})

	assert.Equal(t, http.StatusBadRequest,
		doRequest(t, r, http.MethodGet, "/api/vehicles?sort_by=horsepower", "").Code)
	assert.Equal(t, http.StatusBadRequest,
		doRequest(t, r, http.MethodGet, "/api/vehicles?page=0", "").Code)
	assert.Equal(t, http.StatusBadRequest,
		doRequest(t, r, http.MethodGet, "/api/vehicles?price_max=cheap", "").Code)
}

func TestGetVehicle(t *testing.T) {
	r := newVehicleRouter(&fakeVehicleStore{vehicles: testVehicles()})

	w := doRequest(t, r, http.MethodGet, "/api/vehicles/JTMB1RFV8KD000001", "")
	require.Equal(t, http.StatusOK, w.Code)

	var v models.Vehicle
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	assert.Equal(t, "RAV4", v.Model)

	// Lowercase VIN in the path is normalized
	assert.Equal(t, http.StatusOK,
		doRequest(t, r, http.MethodGet, "/api/vehicles/jtmb1rfv8kd000001", "").Code)

	assert.Equal(t, http.StatusNotFound,
		doRequest(t, r, http.MethodGet, "/api/vehicles/XXXXXXXXXXXXXXXXX", "").Code)
}

func TestReviewVehicle(t *testing.T) {
	store := &fakeVehicleStore{vehicles: testVehicles()}
	r := newVehicleRouter(store)

	w := doRequest(t, r, http.MethodPut, "/api/vehicles/JTMB1RFV8KD000001/review",
		`{"rating": 4, "notes": "worth a look"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "worth a look", store.reviews["JTMB1RFV8KD000001"])

	// Rating out of range fails binding
	assert.Equal(t, http.StatusBadRequest,
		doRequest(t, r, http.MethodPut, "/api/vehicles/JTMB1RFV8KD000001/review",
			`{"rating": 9}`).Code)

	assert.Equal(t, http.StatusNotFound,
		doRequest(t, r, http.MethodPut, "/api/vehicles/XXXXXXXXXXXXXXXXX/review",
			`{"rating": 3}`).Code)
}

func TestSearchUnconfiguredReturns503(t *testing.T) {
	r := newVehicleRouter(&fakeVehicleStore{})
	assert.Equal(t, http.StatusServiceUnavailable,
		doRequest(t, r, http.MethodGet, "/api/search?q=rav4", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable,
		doRequest(t, r, http.MethodGet, "/api/search/facets", "").Code)
}

func TestSearchPlainQueryUsesFullTextSearch(t *testing.T) {
	searcher := &fakeSearcher{results: testVehicles()[:1]}
	r := newSearchRouter(&fakeVehicleStore{}, searcher)

	w := doRequest(t, r, http.MethodGet, "/api/search?q=rav4&limit=5", "")
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, "rav4", searcher.searchQuery)
	assert.Equal(t, int64(5), searcher.searchLimit)
	assert.Nil(t, searcher.filterParams)

	var body struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
}

func TestSearchWithFiltersUsesFilteredSearch(t *testing.T) {
	searcher := &fakeSearcher{results: testVehicles()[:2]}
	r := newSearchRouter(&fakeVehicleStore{}, searcher)

	w := doRequest(t, r, http.MethodGet,
		"/api/search?q=suv&makes=Toyota,Honda&price_min=10000&price_max=20000&score_min=65&sort_by=price&order=desc", "")
	require.Equal(t, http.StatusOK, w.Code)

	require.NotNil(t, searcher.filterParams)
	p := searcher.filterParams
	assert.Equal(t, "suv", p.Query)
	assert.Equal(t, []string{"Toyota", "Honda"}, p.Makes)
	require.NotNil(t, p.MinPrice)
	assert.Equal(t, 10000, *p.MinPrice)
	require.NotNil(t, p.MaxPrice)
	assert.Equal(t, 20000, *p.MaxPrice)
	require.NotNil(t, p.MinScore)
	assert.Equal(t, 65, *p.MinScore)
	assert.Equal(t, "price:desc", p.SortBy)
	assert.Equal(t, int64(20), p.Limit)
}

func TestSearchRejectsBadFilterInput(t *testing.T) {
	r := newSearchRouter(&fakeVehicleStore{}, &fakeSearcher{})

	assert.Equal(t, http.StatusBadRequest,
		doRequest(t, r, http.MethodGet, "/api/search?price_max=cheap", "").Code)
	assert.Equal(t, http.StatusBadRequest,
		doRequest(t, r, http.MethodGet, "/api/search?q=rav4&limit=zero", "").Code)
}

func TestSearchFacets(t *testing.T) {
	searcher := &fakeSearcher{facets: map[string]interface{}{
		"make": map[string]interface{}{"Toyota": float64(2)},
	}}
	r := newSearchRouter(&fakeVehicleStore{}, searcher)

	w := doRequest(t, r, http.MethodGet, "/api/search/facets", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"make", "year", "mileage_rating"}, searcher.facetsAsked)

	var body struct {
		Facets map[string]interface{} `json:"facets"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body.Facets, "make")

	doRequest(t, r, http.MethodGet, "/api/search/facets?facets=make,price", "")
	assert.Equal(t, []string{"make", "price"}, searcher.facetsAsked)
}

func TestReviewVehicleUpdatesSearchIndex(t *testing.T) {
	store := &fakeVehicleStore{vehicles: testVehicles()}
	searcher := &fakeSearcher{}
	r := newSearchRouter(store, searcher)

	w := doRequest(t, r, http.MethodPut, "/api/vehicles/JTMB1RFV8KD000001/review",
		`{"rating": 5, "notes": "clean history"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"JTMB1RFV8KD000001"}, searcher.indexed)

	// A failed review never touches the index
	doRequest(t, r, http.MethodPut, "/api/vehicles/XXXXXXXXXXXXXXXXX/review", `{"rating": 3}`)
	assert.Len(t, searcher.indexed, 1)
}

type fakeAdminStore struct {
	runs []models.RunSummary
}

func (s *fakeAdminStore) TierCounts() (map[models.QualityTier]int64, error) {
	return map[models.QualityTier]int64{models.TierTopPick: 2, models.TierCaution: 1}, nil
}

func (s *fakeAdminStore) MakeCounts() (map[string]int64, error) {
	return map[string]int64{"Toyota": 2, "Ford": 1}, nil
}

func (s *fakeAdminStore) PriceBuckets() (map[string]int64, error) {
	return map[string]int64{"5k_10k": 1, "15k_20k": 2}, nil
}

func (s *fakeAdminStore) GetRecentRuns(limit int) ([]models.RunSummary, error) {
	if limit < len(s.runs) {
		return s.runs[:limit], nil
	}
	return s.runs, nil
}

func (s *fakeAdminStore) GetRunByID(id string) (*models.RunSummary, error) {
	for i := range s.runs {
		if s.runs[i].ID == id {
			return &s.runs[i], nil
		}
	}
	return nil, database.ErrNotFound
}

type fakeTrigger struct {
	called chan struct{}
}

func (f *fakeTrigger) RunNow() error {
	close(f.called)
	return nil
}

func newAdminRouter(store *fakeAdminStore, trigger Trigger) *gin.Engine {
	h := NewAdminHandler(store, trigger, nil, nil)
	r := gin.New()
	r.GET("/api/admin/stats", h.GetStats)
	r.GET("/api/admin/activity", h.GetRecentActivity)
	r.GET("/api/admin/make-stats", h.GetMakeStats)
	r.GET("/api/admin/price-distribution", h.GetPriceDistribution)
	r.GET("/api/admin/runs", h.GetRuns)
	r.GET("/api/admin/runs/:id", h.GetRun)
	r.POST("/api/admin/curate", h.TriggerCuration)
	r.POST("/api/admin/cleanup/run", h.RunCleanup)
	return r
}

func TestGetStats(t *testing.T) {
	r := newAdminRouter(&fakeAdminStore{}, nil)

	w := doRequest(t, r, http.MethodGet, "/api/admin/stats", "")
	require.Equal(t, http.StatusOK, w.Code)

	var stats map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	vehicles := stats["vehicles"].(map[string]interface{})
	assert.Equal(t, float64(3), vehicles["total"])
}

func TestStatsBreakdowns(t *testing.T) {
	store := &fakeAdminStore{runs: []models.RunSummary{{ID: "run-1"}}}
	r := newAdminRouter(store, nil)

	w := doRequest(t, r, http.MethodGet, "/api/admin/make-stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	var makes struct {
		Makes map[string]int64 `json:"makes"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &makes))
	assert.Equal(t, int64(2), makes.Makes["Toyota"])

	w = doRequest(t, r, http.MethodGet, "/api/admin/price-distribution", "")
	require.Equal(t, http.StatusOK, w.Code)
	var dist struct {
		Distribution map[string]int64 `json:"distribution"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &dist))
	assert.Equal(t, int64(2), dist.Distribution["15k_20k"])

	w = doRequest(t, r, http.MethodGet, "/api/admin/activity", "")
	require.Equal(t, http.StatusOK, w.Code)
	var activity struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &activity))
	assert.Equal(t, 1, activity.Count)
}

func TestGetRuns(t *testing.T) {
	store := &fakeAdminStore{runs: []models.RunSummary{
		{ID: "run-1", Status: models.RunStatusCompleted},
		{ID: "run-2", Status: models.RunStatusFailed},
	}}
	r := newAdminRouter(store, nil)

	w := doRequest(t, r, http.MethodGet, "/api/admin/runs", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Runs  []models.RunSummary `json:"runs"`
		Count int                 `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)

	assert.Equal(t, http.StatusOK,
		doRequest(t, r, http.MethodGet, "/api/admin/runs/run-1", "").Code)
	assert.Equal(t, http.StatusNotFound,
		doRequest(t, r, http.MethodGet, "/api/admin/runs/run-99", "").Code)
}

func TestTriggerCuration(t *testing.T) {
	trigger := &fakeTrigger{called: make(chan struct{})}
	r := newAdminRouter(&fakeAdminStore{}, trigger)

	w := doRequest(t, r, http.MethodPost, "/api/admin/curate", "")
	assert.Equal(t, http.StatusAccepted, w.Code)
	<-trigger.called

	// No scheduler wired
	r = newAdminRouter(&fakeAdminStore{}, nil)
	assert.Equal(t, http.StatusServiceUnavailable,
		doRequest(t, r, http.MethodPost, "/api/admin/curate", "").Code)
}

func TestCleanupUnavailable(t *testing.T) {
	r := newAdminRouter(&fakeAdminStore{}, nil)
	assert.Equal(t, http.StatusServiceUnavailable,
		doRequest(t, r, http.MethodPost, "/api/admin/cleanup/run", "").Code)
}
