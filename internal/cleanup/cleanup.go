// Package cleanup enforces the retention policy: stale vehicle records
// whose listings have disappeared, and old run summaries, are pruned on a
// schedule or by manual trigger.
package cleanup

import (
	"fmt"
	"log"
	"time"
)

// Store is the persistence surface the cleanup service needs.
type Store interface {
	CountVehiclesUnseenSince(cutoff time.Time) (int64, error)
	ListStaleVehicleVINs(cutoff time.Time, limit int) ([]string, error)
	DeleteVehiclesUnseenSince(cutoff time.Time, limit int) (int64, error)
	DeleteRunsBefore(cutoff time.Time) (int64, error)
}

// Index removes pruned vehicles from the search index. Optional: nil means
// no index is configured.
type Index interface {
	DeleteVehicle(vin string) error
}

// Config holds the retention thresholds.
type Config struct {
	// VehicleRetentionDays prunes vehicles not seen in any fetch for this
	// many days. 0 disables vehicle pruning.
	VehicleRetentionDays int
	// RunRetentionDays prunes run summaries older than this. 0 disables.
	RunRetentionDays int
	// MaxDeletionCount aborts a vehicle prune that would delete more than
	// this many records in one pass.
	MaxDeletionCount int
	// DryRun logs what would be deleted without deleting.
	DryRun bool
}

// DefaultConfig returns the shipped retention policy.
func DefaultConfig() Config {
	return Config{
		VehicleRetentionDays: 30,
		RunRetentionDays:     90,
		MaxDeletionCount:     10000,
	}
}

// Result summarizes one cleanup pass.
type Result struct {
	VehiclesDeleted int64     `json:"vehicles_deleted"`
	RunsDeleted     int64     `json:"runs_deleted"`
	DryRun          bool      `json:"dry_run"`
	ExecutedAt      time.Time `json:"executed_at"`
}

// Service prunes stale records per the retention config.
type Service struct {
	store Store
	index Index
	cfg   Config
}

// NewService creates a cleanup service. index may be nil when search is
// disabled.
func NewService(store Store, index Index, cfg Config) *Service {
	return &Service{store: store, index: index, cfg: cfg}
}

// Run satisfies the scheduler's Cleaner interface.
func (s *Service) Run() error {
	_, err := s.Execute()
	return err
}

// Execute performs one cleanup pass and reports what was pruned.
func (s *Service) Execute() (*Result, error) {
	result := &Result{DryRun: s.cfg.DryRun, ExecutedAt: time.Now()}

	if s.cfg.VehicleRetentionDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -s.cfg.VehicleRetentionDays)

		target, err := s.store.CountVehiclesUnseenSince(cutoff)
		if err != nil {
			return nil, fmt.Errorf("count stale vehicles: %w", err)
		}

		if s.cfg.MaxDeletionCount > 0 && target > int64(s.cfg.MaxDeletionCount) {
			return nil, fmt.Errorf("safety check failed: %d stale vehicles exceed deletion limit of %d",
				target, s.cfg.MaxDeletionCount)
		}

		if s.cfg.DryRun {
			log.Printf("Cleanup: [dry-run] would delete %d vehicles unseen since %s",
				target, cutoff.Format("2006-01-02"))
			result.VehiclesDeleted = target
		} else if target > 0 {
			// Capture the VINs before the rows go away so the search index
			// can be pruned to match.
			var staleVINs []string
			if s.index != nil {
				staleVINs, err = s.store.ListStaleVehicleVINs(cutoff, s.cfg.MaxDeletionCount)
				if err != nil {
					return nil, fmt.Errorf("list stale vehicles: %w", err)
				}
			}

			deleted, err := s.store.DeleteVehiclesUnseenSince(cutoff, s.cfg.MaxDeletionCount)
			if err != nil {
				return nil, fmt.Errorf("delete stale vehicles: %w", err)
			}
			result.VehiclesDeleted = deleted
			log.Printf("Cleanup: deleted %d vehicles unseen since %s", deleted, cutoff.Format("2006-01-02"))

			// Index removal is best-effort: a failed deletion leaves a dead
			// search hit, not inconsistent records.
			for _, vin := range staleVINs {
				if err := s.index.DeleteVehicle(vin); err != nil {
					log.Printf("Cleanup: failed to remove %s from search index: %v", vin, err)
				}
			}
		}
	}

	if s.cfg.RunRetentionDays > 0 && !s.cfg.DryRun {
		cutoff := time.Now().AddDate(0, 0, -s.cfg.RunRetentionDays)
		deleted, err := s.store.DeleteRunsBefore(cutoff)
		if err != nil {
			return nil, fmt.Errorf("delete old runs: %w", err)
		}
		result.RunsDeleted = deleted
		if deleted > 0 {
			log.Printf("Cleanup: deleted %d run summaries older than %d days", deleted, s.cfg.RunRetentionDays)
		}
	}

	return result, nil
}
