package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"vehicle-curation-portal/internal/cleanup"
	"vehicle-curation-portal/internal/database"
	"vehicle-curation-portal/internal/models"
	"vehicle-curation-portal/internal/ratelimit"
)

// AdminStore is the reporting surface the admin handlers need.
type AdminStore interface {
	TierCounts() (map[models.QualityTier]int64, error)
	MakeCounts() (map[string]int64, error)
	PriceBuckets() (map[string]int64, error)
	GetRecentRuns(limit int) ([]models.RunSummary, error)
	GetRunByID(id string) (*models.RunSummary, error)
}

// Trigger starts a curation run on demand.
type Trigger interface {
	RunNow() error
}

// AdminHandler handles run inspection, manual triggers and cleanup.
type AdminHandler struct {
	store     AdminStore
	scheduler Trigger
	cleanup   *cleanup.Service
	limiter   *ratelimit.Limiter
}

// NewAdminHandler creates an admin handler. scheduler and cleanup may be
// nil when those features are disabled.
func NewAdminHandler(store AdminStore, scheduler Trigger, cleanupSvc *cleanup.Service, limiter *ratelimit.Limiter) *AdminHandler {
	return &AdminHandler{
		store:     store,
		scheduler: scheduler,
		cleanup:   cleanupSvc,
		limiter:   limiter,
	}
}

// GetStats returns collection statistics by tier and make.
// GET /api/admin/stats
func (h *AdminHandler) GetStats(c *gin.Context) {
	stats := make(map[string]interface{})

	tiers, err := h.store.TierCounts()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	var total int64
	for _, n := range tiers {
		total += n
	}
	stats["vehicles"] = map[string]interface{}{
		"total":   total,
		"by_tier": tiers,
	}

	makes, err := h.store.MakeCounts()
	if err != nil {
		log.Printf("Admin: make counts failed: %v", err)
	} else {
		stats["by_make"] = makes
	}

	if h.limiter != nil {
		stats["rate_limit"] = h.limiter.StatsFor(c.ClientIP())
	}

	c.JSON(http.StatusOK, stats)
}

// GetMakeStats returns the vehicle count per make.
// GET /api/admin/make-stats
func (h *AdminHandler) GetMakeStats(c *gin.Context) {
	makes, err := h.store.MakeCounts()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"makes": makes})
}

// GetPriceDistribution returns the vehicle count per price band.
// GET /api/admin/price-distribution
func (h *AdminHandler) GetPriceDistribution(c *gin.Context) {
	buckets, err := h.store.PriceBuckets()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"distribution": buckets})
}

// GetRecentActivity returns the most recent runs as an activity feed.
// GET /api/admin/activity
func (h *AdminHandler) GetRecentActivity(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	runs, err := h.store.GetRecentRuns(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"activity": runs,
		"count":    len(runs),
	})
}

// GetRuns returns recent run summaries.
// GET /api/admin/runs?limit=20
func (h *AdminHandler) GetRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	runs, err := h.store.GetRecentRuns(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"runs":  runs,
		"count": len(runs),
	})
}

// GetRun returns one run summary with its error entries.
// GET /api/admin/runs/:id
func (h *AdminHandler) GetRun(c *gin.Context) {
	run, err := h.store.GetRunByID(c.Param("id"))
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, run)
}

// TriggerCuration manually starts a curation run.
// POST /api/admin/curate
func (h *AdminHandler) TriggerCuration(c *gin.Context) {
	if h.scheduler == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scheduler not available"})
		return
	}

	log.Println("Admin: manual curation trigger requested")

	// Run in goroutine to avoid blocking the request
	go func() {
		if err := h.scheduler.RunNow(); err != nil {
			log.Printf("Admin: manual curation run failed: %v", err)
			return
		}
		log.Println("Admin: manual curation run completed")
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"message": "curation run started",
		"status":  "running",
	})
}

// RunCleanup executes the retention policy on demand.
// POST /api/admin/cleanup
func (h *AdminHandler) RunCleanup(c *gin.Context) {
	if h.cleanup == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "cleanup not available"})
		return
	}

	result, err := h.cleanup.Execute()
	if err != nil {
		log.Printf("Admin: cleanup failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	log.Printf("Admin: cleanup removed %d vehicles and %d runs (dry-run: %v)",
		result.VehiclesDeleted, result.RunsDeleted, result.DryRun)
	c.JSON(http.StatusOK, result)
}
