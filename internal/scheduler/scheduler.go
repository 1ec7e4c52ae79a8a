// Package scheduler runs the curation pipeline and retention cleanup on a
// daily cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"vehicle-curation-portal/internal/pipeline"
)

// Cleaner is the retention job run after each scheduled curation pass.
type Cleaner interface {
	Run() error
}

// Config controls the schedule.
type Config struct {
	Enabled    bool
	DailyRunAt string // "HH:MM" local time
	RunTimeout time.Duration
}

// Scheduler triggers daily pipeline runs.
type Scheduler struct {
	cron      *cron.Cron
	pipeline  *pipeline.Pipeline
	cleaner   Cleaner
	cfg       Config
	isRunning bool
}

// NewScheduler creates a scheduler for the given pipeline. cleaner may be
// nil when retention cleanup is disabled.
func NewScheduler(p *pipeline.Pipeline, cleaner Cleaner, cfg Config) *Scheduler {
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 30 * time.Minute
	}
	return &Scheduler{
		cron:     cron.New(),
		pipeline: p,
		cleaner:  cleaner,
		cfg:      cfg,
	}
}

// Start registers the daily job and starts the cron loop.
func (s *Scheduler) Start() error {
	if !s.cfg.Enabled {
		log.Println("Scheduler: daily run is disabled in configuration")
		return nil
	}

	cronSpec := parseDailyRunTime(s.cfg.DailyRunAt)

	_, err := s.cron.AddFunc(cronSpec, func() {
		log.Println("Scheduler: starting daily curation run...")
		if err := s.runOnce(); err != nil {
			log.Printf("Scheduler: daily curation run failed: %v", err)
			return
		}
		log.Println("Scheduler: daily curation run completed")
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.isRunning = true
	log.Printf("Scheduler: started with daily run at %s (cron: %s)", s.cfg.DailyRunAt, cronSpec)
	return nil
}

// Stop stops the cron loop. An in-flight run finishes.
func (s *Scheduler) Stop() {
	if s.isRunning {
		s.cron.Stop()
		s.isRunning = false
		log.Println("Scheduler: stopped")
	}
}

// RunNow triggers a run immediately (manual trigger from the admin API).
func (s *Scheduler) RunNow() error {
	log.Println("Scheduler: manual trigger - starting curation run...")
	return s.runOnce()
}

func (s *Scheduler) runOnce() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RunTimeout)
	defer cancel()

	summary, err := s.pipeline.Run(ctx)
	if errors.Is(err, pipeline.ErrRunInProgress) {
		log.Println("Scheduler: a run is already in progress, skipping this trigger")
		return nil
	}
	if err != nil {
		return err
	}
	log.Printf("Scheduler: run %s stored %d vehicles (%d duplicates, %d errors)",
		summary.ID, summary.Stored, summary.DuplicatesSkipped, summary.ErrorCount)

	if s.cleaner != nil {
		if err := s.cleaner.Run(); err != nil {
			log.Printf("Scheduler: retention cleanup failed: %v", err)
		}
	}
	return nil
}

// parseDailyRunTime converts HH:MM format to cron specification
// Example: "02:30" -> "30 2 * * *"
func parseDailyRunTime(timeStr string) string {
	var hour, minute int
	n, _ := fmt.Sscanf(timeStr, "%d:%d", &hour, &minute)
	if n == 2 && hour >= 0 && hour <= 23 && minute >= 0 && minute <= 59 {
		return fmt.Sprintf("%d %d * * *", minute, hour)
	}

	// Default to 6:00 AM if parsing fails
	log.Printf("Scheduler: failed to parse time %q, using default 06:00", timeStr)
	return "0 6 * * *"
}
