package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"vehicle-curation-portal/internal/scoring"
	"vehicle-curation-portal/internal/screening"
)

// Config represents the application configuration
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Search    SearchConfig    `yaml:"search"`
	Provider  ProviderConfig  `yaml:"provider"`
	VinAPI    VinAPIConfig    `yaml:"vin_api"`
	Curation  CurationConfig  `yaml:"curation"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Cleanup   CleanupConfig   `yaml:"cleanup"`
	Logging   LoggingConfig   `yaml:"logging"`
	Timezone  string          `yaml:"timezone"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Type     string         `yaml:"type"` // "mysql" or "postgres"
	MySQL    MySQLConfig    `yaml:"mysql"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// MySQLConfig contains MySQL connection settings
type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// PostgresConfig contains PostgreSQL connection settings
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
}

// SearchConfig contains search engine settings
type SearchConfig struct {
	Enabled     bool              `yaml:"enabled"`
	Meilisearch MeilisearchConfig `yaml:"meilisearch"`
}

// MeilisearchConfig contains Meilisearch connection settings
type MeilisearchConfig struct {
	Host   string `yaml:"host"`
	APIKey string `yaml:"api_key"`
}

// ProviderConfig selects and configures the listing source
type ProviderConfig struct {
	Type             string   `yaml:"type"` // "file" or "html"
	FeedPath         string   `yaml:"feed_path"`
	BaseURL          string   `yaml:"base_url"`
	SearchPath       string   `yaml:"search_path"`
	TimeoutSeconds   int      `yaml:"timeout_seconds"`
	MaxRetries       int      `yaml:"max_retries"`
	MaxPages         int      `yaml:"max_pages"`
	HeadlessFallback bool     `yaml:"headless_fallback"`
	ChromePath       string   `yaml:"chrome_path"`
	Makes            []string `yaml:"makes"`
	ZipCode          string   `yaml:"zip_code"`
	RadiusMiles      int      `yaml:"radius_miles"`
	MaxResults       int      `yaml:"max_results"`
}

// VinAPIConfig configures the VIN decode and history services
type VinAPIConfig struct {
	DecodeBaseURL     string  `yaml:"decode_base_url"`
	HistoryBaseURL    string  `yaml:"history_base_url"`
	TimeoutSeconds    int     `yaml:"timeout_seconds"`
	MaxRetries        int     `yaml:"max_retries"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	SkipValidation    bool    `yaml:"skip_validation"`
	SkipHistoryCheck  bool    `yaml:"skip_history_check"`
	Concurrency       int     `yaml:"concurrency"`
}

// CurationConfig carries the hard-filter policy and the model priority
// table, both injected into the pipeline at startup.
type CurationConfig struct {
	Policy        screening.Policy `yaml:"policy"`
	PriorityTable scoring.Table    `yaml:"priority_table"`
}

// RateLimitConfig contains inbound API rate limiting settings
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	RequestsPerHour   int  `yaml:"requests_per_hour"`
}

// SchedulerConfig contains the daily run schedule
type SchedulerConfig struct {
	DailyRunEnabled   bool   `yaml:"daily_run_enabled"`
	DailyRunTime      string `yaml:"daily_run_time"`
	RunTimeoutMinutes int    `yaml:"run_timeout_minutes"`
}

// CleanupConfig contains retention settings
type CleanupConfig struct {
	VehicleRetentionDays int  `yaml:"vehicle_retention_days"`
	RunRetentionDays     int  `yaml:"run_retention_days"`
	MaxDeletionCount     int  `yaml:"max_deletion_count"`
	DryRun               bool `yaml:"dry_run"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level       string `yaml:"level"`
	LogRequests bool   `yaml:"log_requests"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Type: "mysql",
		},
		Provider: ProviderConfig{
			Type:           "file",
			FeedPath:       "listings.json",
			SearchPath:     "/used-cars",
			TimeoutSeconds: 30,
			MaxRetries:     3,
			MaxPages:       5,
			RadiusMiles:    100,
		},
		VinAPI: VinAPIConfig{
			TimeoutSeconds:    15,
			MaxRetries:        3,
			RequestsPerSecond: 4,
			Concurrency:       4,
		},
		Curation: CurationConfig{
			Policy:        screening.DefaultPolicy(),
			PriorityTable: scoring.DefaultTable(),
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 60,
			RequestsPerHour:   1800,
		},
		Scheduler: SchedulerConfig{
			DailyRunEnabled:   false,
			DailyRunTime:      "06:00",
			RunTimeoutMinutes: 30,
		},
		Cleanup: CleanupConfig{
			VehicleRetentionDays: 30,
			RunRetentionDays:     90,
			MaxDeletionCount:     10000,
		},
		Logging: LoggingConfig{
			Level:       "info",
			LogRequests: true,
		},
	}
}

// LoadConfig loads configuration from a YAML file. A missing file yields
// the defaults; file values override defaults field by field.
func LoadConfig(filepath string) (*Config, error) {
	config := DefaultConfig()

	if _, err := os.Stat(filepath); os.IsNotExist(err) {
		return config, nil
	}

	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// GetTimeout returns the provider timeout as a duration
func (c *ProviderConfig) GetTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// GetTimeout returns the VIN API timeout as a duration
func (c *VinAPIConfig) GetTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// GetRunTimeout returns the scheduled run timeout as a duration
func (c *SchedulerConfig) GetRunTimeout() time.Duration {
	return time.Duration(c.RunTimeoutMinutes) * time.Minute
}
