package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "mysql", cfg.Database.Type)
	assert.Equal(t, "file", cfg.Provider.Type)
	assert.Equal(t, 4.0, cfg.VinAPI.RequestsPerSecond)
	assert.Equal(t, 4, cfg.VinAPI.Concurrency)
	assert.Equal(t, 3000, cfg.Curation.Policy.MinPrice)
	assert.Equal(t, 25000, cfg.Curation.Policy.MaxPrice)
	assert.Equal(t, 2012, cfg.Curation.Policy.MinYear)
	assert.Equal(t, 10, cfg.Curation.PriorityTable["toyota rav4"])
	assert.True(t, cfg.RateLimit.Enabled)
	assert.False(t, cfg.Scheduler.DailyRunEnabled)
	assert.Equal(t, 30, cfg.Cleanup.VehicleRetentionDays)
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	yaml := `
database:
  type: postgres
  postgres:
    host: db.internal
    port: 5432
    user: curator
    database: vehicles
provider:
  type: html
  base_url: https://listings.example.com
  headless_fallback: true
  makes:
    - Toyota
    - Honda
vin_api:
  requests_per_second: 2
  skip_history_check: true
curation:
  policy:
    min_price: 5000
    max_price: 20000
    min_year: 2015
    mileage_ceiling_per_year: 20000
    required_title_status: clean
    max_owners: 1
  priority_table:
    "toyota rav4": 10
    "subaru crosstrek": 8
scheduler:
  daily_run_enabled: true
  daily_run_time: "04:30"
  run_timeout_minutes: 45
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Type)
	assert.Equal(t, "db.internal", cfg.Database.Postgres.Host)
	assert.Equal(t, "html", cfg.Provider.Type)
	assert.True(t, cfg.Provider.HeadlessFallback)
	assert.Equal(t, []string{"Toyota", "Honda"}, cfg.Provider.Makes)
	assert.Equal(t, 2.0, cfg.VinAPI.RequestsPerSecond)
	assert.True(t, cfg.VinAPI.SkipHistoryCheck)
	assert.Equal(t, 5000, cfg.Curation.Policy.MinPrice)
	assert.Equal(t, 1, cfg.Curation.Policy.MaxOwners)
	assert.Equal(t, 8, cfg.Curation.PriorityTable["subaru crosstrek"])
	assert.True(t, cfg.Scheduler.DailyRunEnabled)
	assert.Equal(t, "04:30", cfg.Scheduler.DailyRunTime)
	assert.Equal(t, 45*time.Minute, cfg.Scheduler.GetRunTimeout())

	// Untouched sections keep their defaults
	assert.Equal(t, 60, cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, 90, cfg.Cleanup.RunRetentionDays)
}

func TestLoadConfigMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database: [broken"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}
