package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"vehicle-curation-portal/internal/cleanup"
	"vehicle-curation-portal/internal/config"
	"vehicle-curation-portal/internal/database"
	"vehicle-curation-portal/internal/handlers"
	"vehicle-curation-portal/internal/pipeline"
	"vehicle-curation-portal/internal/provider"
	"vehicle-curation-portal/internal/ratelimit"
	"vehicle-curation-portal/internal/scheduler"
	"vehicle-curation-portal/internal/scoring"
	"vehicle-curation-portal/internal/search"
	"vehicle-curation-portal/internal/vin"
)

var (
	db           *database.DB
	gormDB       *database.GormDB
	searchClient *search.SearchClient
	appConfig    *config.Config
	rateLimiter  *ratelimit.Limiter
	appScheduler *scheduler.Scheduler
	cleanupSvc   *cleanup.Service
	curation     *pipeline.Pipeline
)

func main() {
	// Load configuration
	configPath := getEnv("CONFIG_PATH", "/app/config/curation_config.yaml")
	var err error
	appConfig, err = config.LoadConfig(configPath)
	if err != nil {
		log.Printf("Warning: Failed to load config from %s: %v. Using defaults.", configPath, err)
		appConfig = config.DefaultConfig()
	} else {
		log.Printf("Loaded configuration from %s", configPath)
	}

	// Initialize database based on configuration
	dbType := appConfig.Database.Type
	if dbType == "" {
		dbType = getEnv("DB_TYPE", "mysql")
	}

	if dbType == "postgres" {
		log.Println("Using PostgreSQL")
		pgCfg := appConfig.Database.Postgres

		portStr := ""
		if pgCfg.Port > 0 {
			portStr = fmt.Sprintf("%d", pgCfg.Port)
		}

		db, err = database.NewDB(
			getEnvOrConfig(pgCfg.Host, "DB_HOST", "db"),
			getEnvOrConfig(portStr, "DB_PORT", "5432"),
			getEnvOrConfig(pgCfg.User, "DB_USER", "curation_user"),
			getEnvOrConfig(pgCfg.Password, "DB_PASSWORD", "curation_pass"),
			getEnvOrConfig(pgCfg.Database, "DB_NAME", "curation_db"),
		)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		if err := db.InitSchema(); err != nil {
			log.Fatalf("Failed to initialize schema: %v", err)
		}
	} else {
		log.Println("Using MySQL with GORM")
		mysqlCfg := appConfig.Database.MySQL

		portStr := ""
		if mysqlCfg.Port > 0 {
			portStr = fmt.Sprintf("%d", mysqlCfg.Port)
		}

		gormDB, err = database.NewGormDB(
			getEnvOrConfig(mysqlCfg.Host, "DB_HOST", "mysql"),
			getEnvOrConfig(portStr, "DB_PORT", "3306"),
			getEnvOrConfig(mysqlCfg.User, "DB_USER", "curation_user"),
			getEnvOrConfig(mysqlCfg.Password, "DB_PASSWORD", "curation_pass"),
			getEnvOrConfig(mysqlCfg.Database, "DB_NAME", "curation_db"),
		)
		if err != nil {
			log.Fatalf("Failed to connect to MySQL: %v", err)
		}
		defer gormDB.Close()

		if err := gormDB.InitSchema(); err != nil {
			log.Fatalf("Failed to initialize schema: %v", err)
		}
	}

	// Initialize Meilisearch when search is enabled
	if appConfig.Search.Enabled {
		meilisearchHost := appConfig.Search.Meilisearch.Host
		if meilisearchHost == "" {
			meilisearchHost = getEnv("MEILISEARCH_HOST", "http://meilisearch:7700")
		}
		meilisearchKey := appConfig.Search.Meilisearch.APIKey
		if meilisearchKey == "" {
			meilisearchKey = getEnv("MEILISEARCH_KEY", "masterKey123")
		}

		searchClient = search.NewSearchClient(meilisearchHost, meilisearchKey)

		if err := searchClient.InitIndex(); err != nil {
			log.Printf("Warning: Failed to initialize search index: %v", err)
		}
	}

	// Initialize inbound rate limiter
	rateLimiter = ratelimit.NewLimiter(
		appConfig.RateLimit.RequestsPerMinute,
		appConfig.RateLimit.RequestsPerHour,
		appConfig.RateLimit.Enabled,
	)
	log.Printf("Rate limiter initialized: %d req/min, %d req/hour (enabled: %v)",
		appConfig.RateLimit.RequestsPerMinute,
		appConfig.RateLimit.RequestsPerHour,
		appConfig.RateLimit.Enabled,
	)

	// The curation pipeline, retention cleanup and scheduler need the
	// primary store: run summaries and dedup bookkeeping live there.
	if gormDB != nil {
		curation = buildPipeline(gormDB)

		var searchIndex cleanup.Index
		if searchClient != nil {
			searchIndex = searchClient
		}
		cleanupSvc = cleanup.NewService(gormDB, searchIndex, cleanup.Config{
			VehicleRetentionDays: appConfig.Cleanup.VehicleRetentionDays,
			RunRetentionDays:     appConfig.Cleanup.RunRetentionDays,
			MaxDeletionCount:     appConfig.Cleanup.MaxDeletionCount,
			DryRun:               appConfig.Cleanup.DryRun,
		})

		appScheduler = scheduler.NewScheduler(curation, cleanupSvc, scheduler.Config{
			Enabled:    appConfig.Scheduler.DailyRunEnabled,
			DailyRunAt: appConfig.Scheduler.DailyRunTime,
			RunTimeout: appConfig.Scheduler.GetRunTimeout(),
		})
		if err := appScheduler.Start(); err != nil {
			log.Printf("Warning: Failed to start scheduler: %v", err)
		}
		defer appScheduler.Stop()
	} else {
		log.Println("Curation pipeline disabled: requires MySQL/GORM store")
	}

	// Setup Gin router
	r := gin.Default()

	// CORS configuration
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:5176"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		AllowCredentials: true,
	}))

	r.GET("/health", healthCheck)

	var vehicleStore handlers.VehicleStore = db
	if gormDB != nil {
		vehicleStore = gormDB
	}
	var searcher handlers.Searcher
	if searchClient != nil {
		searcher = searchClient
	}
	vehicleHandler := handlers.NewVehicleHandler(vehicleStore, searcher)

	api := r.Group("/api", rateLimiter.Middleware())
	{
		api.GET("/vehicles", vehicleHandler.ListVehicles)
		api.GET("/vehicles/:vin", vehicleHandler.GetVehicle)
		api.PUT("/vehicles/:vin/review", vehicleHandler.ReviewVehicle)

		api.GET("/search", vehicleHandler.SearchVehicles)
		api.GET("/search/facets", vehicleHandler.SearchFacets)
		api.POST("/search/reindex", reindexAllVehicles)

		api.POST("/pipeline/run", runPipeline)
		api.GET("/ratelimit/stats", getRateLimitStats)
	}

	// Admin API routes (requires authentication in production)
	if gormDB != nil {
		adminHandler := handlers.NewAdminHandler(gormDB, appScheduler, cleanupSvc, rateLimiter)

		api.GET("/runs", adminHandler.GetRuns)
		api.GET("/runs/:id", adminHandler.GetRun)

		admin := r.Group("/api/admin")
		{
			admin.GET("/stats", adminHandler.GetStats)
			admin.GET("/activity", adminHandler.GetRecentActivity)
			admin.GET("/make-stats", adminHandler.GetMakeStats)
			admin.GET("/price-distribution", adminHandler.GetPriceDistribution)
			admin.GET("/runs", adminHandler.GetRuns)
			admin.GET("/runs/:id", adminHandler.GetRun)
			admin.POST("/curate", adminHandler.TriggerCuration)
			admin.POST("/cleanup/run", adminHandler.RunCleanup)
		}

		log.Println("Admin API routes registered at /api/admin/*")
	}

	port := getEnv("PORT", "8084")
	log.Printf("Server starting on port %s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// buildPipeline assembles the curation pipeline from configuration: the
// listing source, the hard-filter policy, the priority scorer and the VIN
// services.
func buildPipeline(store *database.GormDB) *pipeline.Pipeline {
	source := buildSource()
	scorer := scoring.NewScorer(appConfig.Curation.PriorityTable)

	var decoder vin.Decoder
	var history vin.HistoryProvider
	if !appConfig.VinAPI.SkipValidation && appConfig.VinAPI.DecodeBaseURL != "" {
		client := vin.NewClient(vin.ClientConfig{
			DecodeBaseURL:     appConfig.VinAPI.DecodeBaseURL,
			HistoryBaseURL:    appConfig.VinAPI.HistoryBaseURL,
			Timeout:           appConfig.VinAPI.GetTimeout(),
			MaxRetries:        appConfig.VinAPI.MaxRetries,
			RequestsPerSecond: appConfig.VinAPI.RequestsPerSecond,
		})
		decoder = client
		if !appConfig.VinAPI.SkipHistoryCheck && appConfig.VinAPI.HistoryBaseURL != "" {
			history = client
		}
	} else {
		log.Println("VIN validation disabled: no decode service configured")
	}

	var indexer pipeline.Indexer
	if searchClient != nil {
		indexer = searchClient
	}

	policy := appConfig.Curation.Policy
	return pipeline.New(source, policy, scorer, decoder, history, store, indexer, pipeline.Options{
		Criteria: provider.Criteria{
			Makes:      appConfig.Provider.Makes,
			PriceMin:   policy.MinPrice,
			PriceMax:   policy.MaxPrice,
			YearMin:    policy.MinYear,
			ZipCode:    appConfig.Provider.ZipCode,
			RadiusMi:   appConfig.Provider.RadiusMiles,
			MaxResults: appConfig.Provider.MaxResults,
		},
		SkipHistoryCheck: appConfig.VinAPI.SkipHistoryCheck,
		VinConcurrency:   appConfig.VinAPI.Concurrency,
	})
}

// buildSource selects the listing source from configuration.
func buildSource() provider.Source {
	if appConfig.Provider.Type == "html" && appConfig.Provider.BaseURL != "" {
		log.Printf("Using HTML listing source: %s", appConfig.Provider.BaseURL)
		return provider.NewHTMLSource(provider.HTMLSourceConfig{
			BaseURL:          appConfig.Provider.BaseURL,
			SearchPath:       appConfig.Provider.SearchPath,
			Timeout:          appConfig.Provider.GetTimeout(),
			MaxRetries:       appConfig.Provider.MaxRetries,
			MaxPages:         appConfig.Provider.MaxPages,
			HeadlessFallback: appConfig.Provider.HeadlessFallback,
			ChromePath:       appConfig.Provider.ChromePath,
		})
	}

	feedPath := getEnvOrConfig(appConfig.Provider.FeedPath, "LISTINGS_FEED", "listings.json")
	log.Printf("Using file listing source: %s", feedPath)
	return provider.NewFileSource(feedPath)
}

// runPipeline starts a curation run in the background. A run already in
// flight yields 409; runs never queue or overlap.
func runPipeline(c *gin.Context) {
	if curation == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "pipeline requires the MySQL store"})
		return
	}
	if curation.Busy() {
		c.JSON(http.StatusConflict, gin.H{"error": "a curation run is already in progress"})
		return
	}

	go func() {
		if err := appScheduler.RunNow(); err != nil {
			log.Printf("API: pipeline run failed: %v", err)
			return
		}
		log.Println("API: pipeline run completed")
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"message": "curation run started",
		"status":  "running",
	})
}

// getRateLimitStats returns the caller's current rate limiter windows
func getRateLimitStats(c *gin.Context) {
	c.JSON(http.StatusOK, rateLimiter.StatsFor(c.ClientIP()))
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now(),
	})
}

// reindexAllVehicles re-indexes every stored vehicle into Meilisearch
func reindexAllVehicles(c *gin.Context) {
	if searchClient == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "search is not configured"})
		return
	}

	var vehicleStore handlers.VehicleStore = db
	if gormDB != nil {
		vehicleStore = gormDB
	}

	vehicles, err := vehicleStore.GetAllVehicles()
	if err != nil {
		log.Printf("[Reindex] Error fetching vehicles from database: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch vehicles from database"})
		return
	}

	log.Printf("[Reindex] Found %d vehicles in database", len(vehicles))

	if err := searchClient.IndexVehicles(vehicles); err != nil {
		log.Printf("[Reindex] Indexing failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Reindex complete",
		"total":   len(vehicles),
	})
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrConfig returns config value if set, otherwise falls back to environment variable, then default
func getEnvOrConfig(configValue, envKey, defaultValue string) string {
	if configValue != "" {
		return configValue
	}
	return getEnv(envKey, defaultValue)
}
