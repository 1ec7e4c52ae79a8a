package models

import "time"

// RunSummary is the audit record of one curation pipeline execution.
// Created at run start, finalized and persisted exactly once at run end,
// immutable afterwards.
type RunSummary struct {
	ID         string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	Status     RunStatus  `gorm:"type:varchar(20);not null;index" json:"status"`
	StartedAt  time.Time  `gorm:"type:datetime;not null;index" json:"started_at"`
	FinishedAt *time.Time `gorm:"type:datetime" json:"finished_at,omitempty"`
	DurationMs int64      `gorm:"type:bigint;not null;default:0" json:"duration_ms"`

	// ステージ別カウント
	Fetched             int `gorm:"type:int;not null;default:0" json:"fetched"`
	PassedHardFilter    int `gorm:"type:int;not null;default:0" json:"passed_hard_filter"`
	PassedVinValidation int `gorm:"type:int;not null;default:0" json:"passed_vin_validation"`
	PassedHistoryCheck  int `gorm:"type:int;not null;default:0" json:"passed_history_check"`
	Stored              int `gorm:"type:int;not null;default:0" json:"stored"`
	DuplicatesSkipped   int `gorm:"type:int;not null;default:0" json:"duplicates_skipped"`
	ErrorCount          int `gorm:"type:int;not null;default:0" json:"error_count"`

	FailureReason string `gorm:"type:text" json:"failure_reason,omitempty"`

	ErrorEntries []RunError `gorm:"foreignKey:RunID" json:"error_entries,omitempty"`

	CreatedAt time.Time `gorm:"type:datetime;not null;autoCreateTime" json:"created_at"`
}

// TableName はテーブル名を明示的に指定
func (RunSummary) TableName() string {
	return "run_summaries"
}

// RunStatus is the terminal state of a pipeline run
type RunStatus string

const (
	RunStatusCompleted  RunStatus = "completed"
	RunStatusFailed     RunStatus = "failed"
	RunStatusIncomplete RunStatus = "incomplete" // cancelled between stages
)

// Pipeline stage identifiers, used to tag per-item errors
const (
	StageFetch         = "fetch"
	StageHardFilter    = "hard_filter"
	StageVinValidation = "vin_validation"
	StageHistoryCheck  = "history_check"
	StageScore         = "score"
	StageDedup         = "dedup"
	StageStore         = "store"
	StageLog           = "log"
)

// RunError is one per-item failure recorded during a run. Rejections are
// never recorded here; only transient per-item failures are.
type RunError struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	RunID      string    `gorm:"type:varchar(36);not null;index" json:"run_id"`
	Stage      string    `gorm:"type:varchar(30);not null" json:"stage"`
	VIN        string    `gorm:"type:varchar(17)" json:"vin,omitempty"`
	Message    string    `gorm:"type:text;not null" json:"message"`
	OccurredAt time.Time `gorm:"type:datetime;not null" json:"occurred_at"`
}

// TableName はテーブル名を明示的に指定
func (RunError) TableName() string {
	return "run_errors"
}

// RecordError appends a per-item error and bumps the error count
func (r *RunSummary) RecordError(stage, vin, message string) {
	r.ErrorEntries = append(r.ErrorEntries, RunError{
		RunID:      r.ID,
		Stage:      stage,
		VIN:        vin,
		Message:    message,
		OccurredAt: time.Now(),
	})
	r.ErrorCount = len(r.ErrorEntries)
}

// Finalize stamps the terminal status and timing. Safe to call once.
func (r *RunSummary) Finalize(status RunStatus) {
	now := time.Now()
	r.Status = status
	r.FinishedAt = &now
	r.DurationMs = now.Sub(r.StartedAt).Milliseconds()
}
