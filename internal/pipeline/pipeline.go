// Package pipeline orchestrates one curation run: fetch listings, apply
// the hard filter, validate VINs, check history, score, dedup and store.
// Stage counts and per-item errors are collected into a RunSummary that is
// persisted exactly once when the run reaches a terminal state.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"vehicle-curation-portal/internal/models"
	"vehicle-curation-portal/internal/provider"
	"vehicle-curation-portal/internal/scoring"
	"vehicle-curation-portal/internal/screening"
	"vehicle-curation-portal/internal/vin"
)

// ErrRunInProgress is returned when a run is requested while another is
// still executing. Runs never queue or overlap.
var ErrRunInProgress = errors.New("curation run already in progress")

// Store is the persistence surface the pipeline needs.
type Store interface {
	UpsertVehicle(v *models.Vehicle) error
	GetVehicleByVIN(vin string) (*models.Vehicle, error)
	TouchVehicle(vin string, seenAt time.Time) error
	InsertRunSummary(summary *models.RunSummary) error
}

// Indexer pushes stored vehicles into the search index. Indexing is best
// effort: failures are logged, never fatal.
type Indexer interface {
	IndexVehicles(vehicles []models.Vehicle) error
}

// Options tunes one pipeline instance.
type Options struct {
	Criteria          provider.Criteria
	SkipVinValidation bool
	SkipHistoryCheck  bool
	VinConcurrency    int
	CurrentYear       int
}

// Pipeline wires the stages together. Construct once, Run per schedule.
type Pipeline struct {
	source  provider.Source
	policy  screening.Policy
	scorer  scoring.Strategy
	decoder vin.Decoder
	history vin.HistoryProvider
	store   Store
	indexer Indexer
	opts    Options

	mu sync.Mutex
}

// New creates a pipeline. decoder, history and indexer may be nil when the
// corresponding stage is skipped or indexing is disabled.
func New(source provider.Source, policy screening.Policy, scorer scoring.Strategy,
	decoder vin.Decoder, history vin.HistoryProvider, store Store, indexer Indexer, opts Options) *Pipeline {
	if opts.VinConcurrency <= 0 {
		opts.VinConcurrency = 4
	}
	if opts.CurrentYear <= 0 {
		opts.CurrentYear = time.Now().Year()
	}
	if decoder == nil {
		opts.SkipVinValidation = true
	}
	if history == nil {
		opts.SkipHistoryCheck = true
	}
	return &Pipeline{
		source:  source,
		policy:  policy,
		scorer:  scorer,
		decoder: decoder,
		history: history,
		store:   store,
		indexer: indexer,
		opts:    opts,
	}
}

// Busy reports whether a run is currently in flight. Advisory only: a run
// may start between the check and any follow-up call, which then returns
// ErrRunInProgress.
func (p *Pipeline) Busy() bool {
	if p.mu.TryLock() {
		p.mu.Unlock()
		return false
	}
	return true
}

// Run executes one curation run. Exactly one run may be in flight; a second
// call while running returns ErrRunInProgress immediately. The returned
// summary is always non-nil once a run has started.
func (p *Pipeline) Run(ctx context.Context) (*models.RunSummary, error) {
	if !p.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer p.mu.Unlock()

	summary := &models.RunSummary{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
	}
	log.Printf("Pipeline: run %s started (source=%s)", summary.ID, p.source.Name())

	// Stage 1: fetch. A fetch failure is fatal for the run.
	listings, err := p.source.Fetch(ctx, p.opts.Criteria)
	if err != nil {
		summary.FailureReason = fmt.Sprintf("fetch: %v", err)
		return p.finish(summary, models.RunStatusFailed, err)
	}
	summary.Fetched = len(listings)
	log.Printf("Pipeline: run %s fetched %d listings", summary.ID, len(listings))

	if err := ctx.Err(); err != nil {
		return p.finish(summary, models.RunStatusIncomplete, err)
	}

	// Stage 2: hard filter. Rejections are logged, never recorded as errors.
	accepted := p.hardFilter(listings, summary)
	summary.PassedHardFilter = len(accepted)

	if err := ctx.Err(); err != nil {
		return p.finish(summary, models.RunStatusIncomplete, err)
	}

	// Stage 3: convert and validate VINs against the decode service.
	vehicles := p.toVehicles(accepted)
	if !p.opts.SkipVinValidation {
		vehicles = p.validateVINs(ctx, vehicles, summary)
	}
	summary.PassedVinValidation = len(vehicles)

	if err := ctx.Err(); err != nil {
		return p.finish(summary, models.RunStatusIncomplete, err)
	}

	// Stage 4: history check re-applies the title/usage rules against the
	// history provider's report.
	if !p.opts.SkipHistoryCheck {
		vehicles = p.checkHistory(ctx, vehicles, summary)
	}
	summary.PassedHistoryCheck = len(vehicles)

	if err := ctx.Err(); err != nil {
		return p.finish(summary, models.RunStatusIncomplete, err)
	}

	// Stage 5: score and classify. Pure computation, cannot fail per item.
	for i := range vehicles {
		v := &vehicles[i]
		v.MileageRating = scoring.ClassifyMileage(v.Mileage, v.Year, p.opts.CurrentYear)
		v.PriorityScore = p.scorer.Score(v.Make, v.Model)
	}

	if err := ctx.Err(); err != nil {
		return p.finish(summary, models.RunStatusIncomplete, err)
	}

	// Stage 6: dedup by VIN and store.
	stored := p.dedupAndStore(vehicles, summary)

	// Best-effort search indexing of what was stored this run.
	if p.indexer != nil && len(stored) > 0 {
		if err := p.indexer.IndexVehicles(stored); err != nil {
			log.Printf("Pipeline: run %s search indexing failed: %v", summary.ID, err)
		}
	}

	return p.finish(summary, models.RunStatusCompleted, nil)
}

// finish finalizes and persists the summary exactly once. A summary that
// cannot be persisted escalates the whole run to an error.
func (p *Pipeline) finish(summary *models.RunSummary, status models.RunStatus, runErr error) (*models.RunSummary, error) {
	summary.Finalize(status)
	if err := p.store.InsertRunSummary(summary); err != nil {
		log.Printf("Pipeline: run %s could not persist summary: %v", summary.ID, err)
		return summary, fmt.Errorf("persist run summary: %w", err)
	}
	log.Printf("Pipeline: run %s %s in %dms (fetched=%d stored=%d duplicates=%d errors=%d)",
		summary.ID, summary.Status, summary.DurationMs,
		summary.Fetched, summary.Stored, summary.DuplicatesSkipped, summary.ErrorCount)
	return summary, runErr
}

func (p *Pipeline) hardFilter(listings []models.RawListing, summary *models.RunSummary) []models.RawListing {
	engine := screening.NewEngine(p.policy, p.opts.CurrentYear)
	accepted := make([]models.RawListing, 0, len(listings))
	for i := range listings {
		l := &listings[i]
		verdict := engine.Evaluate(l)
		if !verdict.Accepted {
			log.Printf("Pipeline: rejected %s (%s): %s", l.VIN, verdict.Reason, verdict.Detail)
			continue
		}
		accepted = append(accepted, *l)
	}
	return accepted
}

func (p *Pipeline) toVehicles(listings []models.RawListing) []models.Vehicle {
	vehicles := make([]models.Vehicle, 0, len(listings))
	for i := range listings {
		vehicles = append(vehicles, listings[i].ToVehicle(p.opts.CurrentYear))
	}
	return vehicles
}

// validateVINs runs syntax and decode checks concurrently. Bad VIN syntax
// and a decoded identity contradicting the listing are rejections (logged,
// dropped); only a decode transport failure records a per-item error.
func (p *Pipeline) validateVINs(ctx context.Context, vehicles []models.Vehicle, summary *models.RunSummary) []models.Vehicle {
	var mu sync.Mutex
	passed := make([]models.Vehicle, 0, len(vehicles))

	p.forEachConcurrent(ctx, vehicles, func(v *models.Vehicle) {
		if !vin.Valid(v.VIN) {
			log.Printf("Pipeline: rejected %s: vin failed syntax check", v.VIN)
			return
		}

		result, err := p.decoder.Decode(ctx, v.VIN)
		if err != nil {
			mu.Lock()
			summary.RecordError(models.StageVinValidation, v.VIN, err.Error())
			mu.Unlock()
			return
		}

		if result.ModelYear != 0 && result.ModelYear != v.Year {
			log.Printf("Pipeline: rejected %s: decoded year %d contradicts listing year %d", v.VIN, result.ModelYear, v.Year)
			return
		}
		if result.Make != "" && !strings.EqualFold(result.Make, v.Make) {
			log.Printf("Pipeline: rejected %s: decoded make %q contradicts listing make %q", v.VIN, result.Make, v.Make)
			return
		}

		v.DecodePayload = string(result.Raw)
		if v.BodyType == "" {
			v.BodyType = result.BodyType
		}

		mu.Lock()
		passed = append(passed, *v)
		mu.Unlock()
	})
	return passed
}

// checkHistory fetches history reports concurrently and re-applies the
// title and usage rules against them.
func (p *Pipeline) checkHistory(ctx context.Context, vehicles []models.Vehicle, summary *models.RunSummary) []models.Vehicle {
	engine := screening.NewEngine(p.policy, p.opts.CurrentYear)
	var mu sync.Mutex
	passed := make([]models.Vehicle, 0, len(vehicles))

	p.forEachConcurrent(ctx, vehicles, func(v *models.Vehicle) {
		report, err := p.history.History(ctx, v.VIN)
		if err != nil {
			mu.Lock()
			summary.RecordError(models.StageHistoryCheck, v.VIN, err.Error())
			mu.Unlock()
			return
		}

		verdict := engine.EvaluateHistory(screening.HistoryFields{
			TitleStatus:   report.TitleStatus,
			AccidentCount: report.AccidentCount,
			OwnerCount:    report.OwnerCount,
			IsRental:      report.IsRental,
			IsFleet:       report.IsFleet,
			HasLien:       report.HasLien,
			FloodDamage:   report.FloodDamage,
		})
		if !verdict.Accepted {
			log.Printf("Pipeline: rejected %s on history (%s): %s", v.VIN, verdict.Reason, verdict.Detail)
			return
		}

		// History is authoritative over the listing's self-reported fields
		v.AccidentCount = report.AccidentCount
		v.OwnerCount = report.OwnerCount
		v.HistoryPayload = string(report.Raw)

		mu.Lock()
		passed = append(passed, *v)
		mu.Unlock()
	})
	return passed
}

// forEachConcurrent runs fn over the vehicles with a bounded worker pool.
// A cancelled context stops dispatching; in-flight items finish.
func (p *Pipeline) forEachConcurrent(ctx context.Context, vehicles []models.Vehicle, fn func(*models.Vehicle)) {
	jobs := make(chan *models.Vehicle)
	var wg sync.WaitGroup

	for w := 0; w < p.opts.VinConcurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for v := range jobs {
				fn(v)
			}
		}()
	}

	for i := range vehicles {
		select {
		case jobs <- &vehicles[i]:
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return
		}
	}
	close(jobs)
	wg.Wait()
}

// dedupAndStore writes each vehicle, skipping exact duplicates of what is
// already stored under the same VIN.
func (p *Pipeline) dedupAndStore(vehicles []models.Vehicle, summary *models.RunSummary) []models.Vehicle {
	stored := make([]models.Vehicle, 0, len(vehicles))
	for i := range vehicles {
		v := &vehicles[i]

		existing, err := p.store.GetVehicleByVIN(v.VIN)
		if err == nil && existing != nil && existing.ContentEquals(v) {
			if err := p.store.TouchVehicle(v.VIN, time.Now()); err != nil {
				summary.RecordError(models.StageStore, v.VIN, err.Error())
				continue
			}
			summary.DuplicatesSkipped++
			continue
		}

		if err := p.store.UpsertVehicle(v); err != nil {
			summary.RecordError(models.StageStore, v.VIN, err.Error())
			continue
		}
		summary.Stored++
		stored = append(stored, *v)
	}
	return stored
}
