// Command curate executes a single curation run from the command line and
// prints the run summary. Intended for cron-less environments and manual
// backfills.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"vehicle-curation-portal/internal/config"
	"vehicle-curation-portal/internal/database"
	"vehicle-curation-portal/internal/pipeline"
	"vehicle-curation-portal/internal/provider"
	"vehicle-curation-portal/internal/scoring"
	"vehicle-curation-portal/internal/search"
	"vehicle-curation-portal/internal/vin"
)

func main() {
	configPath := flag.String("config", "/app/config/curation_config.yaml", "path to YAML configuration")
	feedPath := flag.String("feed", "", "override the listing feed file (forces the file source)")
	skipVin := flag.Bool("skip-vin", false, "skip VIN decode validation and the history check")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Curate: failed to load config: %v", err)
	}
	if *feedPath != "" {
		cfg.Provider.Type = "file"
		cfg.Provider.FeedPath = *feedPath
	}
	if *skipVin {
		cfg.VinAPI.SkipValidation = true
		cfg.VinAPI.SkipHistoryCheck = true
	}

	mysqlCfg := cfg.Database.MySQL
	store, err := database.NewGormDB(
		mysqlCfg.Host,
		fmt.Sprintf("%d", mysqlCfg.Port),
		mysqlCfg.User,
		mysqlCfg.Password,
		mysqlCfg.Database,
	)
	if err != nil {
		log.Fatalf("Curate: failed to connect to MySQL: %v", err)
	}
	defer store.Close()

	if err := store.InitSchema(); err != nil {
		log.Fatalf("Curate: failed to initialize schema: %v", err)
	}

	var source provider.Source
	if cfg.Provider.Type == "html" && cfg.Provider.BaseURL != "" {
		source = provider.NewHTMLSource(provider.HTMLSourceConfig{
			BaseURL:          cfg.Provider.BaseURL,
			SearchPath:       cfg.Provider.SearchPath,
			Timeout:          cfg.Provider.GetTimeout(),
			MaxRetries:       cfg.Provider.MaxRetries,
			MaxPages:         cfg.Provider.MaxPages,
			HeadlessFallback: cfg.Provider.HeadlessFallback,
			ChromePath:       cfg.Provider.ChromePath,
		})
	} else {
		source = provider.NewFileSource(cfg.Provider.FeedPath)
	}

	var decoder vin.Decoder
	var history vin.HistoryProvider
	if !cfg.VinAPI.SkipValidation && cfg.VinAPI.DecodeBaseURL != "" {
		client := vin.NewClient(vin.ClientConfig{
			DecodeBaseURL:     cfg.VinAPI.DecodeBaseURL,
			HistoryBaseURL:    cfg.VinAPI.HistoryBaseURL,
			Timeout:           cfg.VinAPI.GetTimeout(),
			MaxRetries:        cfg.VinAPI.MaxRetries,
			RequestsPerSecond: cfg.VinAPI.RequestsPerSecond,
		})
		decoder = client
		if !cfg.VinAPI.SkipHistoryCheck && cfg.VinAPI.HistoryBaseURL != "" {
			history = client
		}
	}

	var indexer pipeline.Indexer
	if cfg.Search.Enabled && cfg.Search.Meilisearch.Host != "" {
		searchClient := search.NewSearchClient(cfg.Search.Meilisearch.Host, cfg.Search.Meilisearch.APIKey)
		if err := searchClient.InitIndex(); err != nil {
			log.Printf("Curate: warning: failed to initialize search index: %v", err)
		} else {
			indexer = searchClient
		}
	}

	policy := cfg.Curation.Policy
	p := pipeline.New(source, policy, scoring.NewScorer(cfg.Curation.PriorityTable),
		decoder, history, store, indexer, pipeline.Options{
			Criteria: provider.Criteria{
				Makes:      cfg.Provider.Makes,
				PriceMin:   policy.MinPrice,
				PriceMax:   policy.MaxPrice,
				YearMin:    policy.MinYear,
				ZipCode:    cfg.Provider.ZipCode,
				RadiusMi:   cfg.Provider.RadiusMiles,
				MaxResults: cfg.Provider.MaxResults,
			},
			SkipHistoryCheck: cfg.VinAPI.SkipHistoryCheck,
			VinConcurrency:   cfg.VinAPI.Concurrency,
		})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Scheduler.GetRunTimeout())
	defer cancel()

	summary, err := p.Run(ctx)
	if err != nil {
		log.Fatalf("Curate: run failed: %v", err)
	}

	fmt.Printf("Run %s: %s\n", summary.ID, summary.Status)
	fmt.Printf("  fetched:            %d\n", summary.Fetched)
	fmt.Printf("  passed hard filter: %d\n", summary.PassedHardFilter)
	fmt.Printf("  stored:             %d\n", summary.Stored)
	fmt.Printf("  duplicates:         %d\n", summary.DuplicatesSkipped)
	fmt.Printf("  errors:             %d\n", summary.ErrorCount)
	for _, e := range summary.ErrorEntries {
		fmt.Printf("    [%s] %s: %s\n", e.Stage, e.VIN, e.Message)
	}
}
