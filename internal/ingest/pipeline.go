package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/david/opportunity-finder/internal/db"
	"github.com/david/opportunity-finder/internal/logger"
	"github.com/david/opportunity-finder/internal/models"
)

// ErrNoBatches is returned by IngestAll when no source produced a readable batch.
var ErrNoBatches = errors.New("no source batch could be loaded")

// Pipeline runs ingest cycles: normalize each batch, merge, apply overrides
// and publish the result to the store. A cycle is single-threaded.
type Pipeline struct {
	Store     db.SnapshotStore
	Registry  *Registry
	Overrides *Overrides
	Log       logger.Logger
	Now       func() time.Time
}

func NewPipeline(store db.SnapshotStore, registry *Registry, overrides *Overrides, log logger.Logger) *Pipeline {
	if log == nil {
		log = logger.NewNop()
	}
	return &Pipeline{
		Store:     store,
		Registry:  registry,
		Overrides: overrides,
		Log:       log,
		Now:       time.Now,
	}
}

// BatchStats counts what happened to one batch.
type BatchStats struct {
	Source    string  `json:"source"`
	Read      int     `json:"read"`
	Accepted  int     `json:"accepted"`
	Rejected  int     `json:"rejected"`
	LoadError string  `json:"load_error,omitempty"`
	Errors    []error `json:"-"`
}

// RunResult describes one finished cycle.
type RunResult struct {
	RunID      string        `json:"run_id,omitempty"`
	Batches    []BatchStats  `json:"batches"`
	Kept       int           `json:"kept"`
	Total      int           `json:"total"`
	Overrides  OverrideStats `json:"overrides"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`

	// Opportunities is the published snapshot.
	Opportunities []models.Opportunity `json:"-"`
}

func (p *Pipeline) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}

func (p *Pipeline) log() logger.Logger {
	if p.Log == nil {
		return logger.NewNop()
	}
	return p.Log
}

// Normalize converts a batch record by record. Invalid records are logged,
// counted and skipped; they never abort the batch.
func (p *Pipeline) Normalize(b Batch) ([]models.Opportunity, BatchStats) {
	stats := BatchStats{Source: b.Source, Read: len(b.Records) + len(b.Invalid)}
	observedAt := b.ObservedAt
	if observedAt.IsZero() {
		observedAt = p.now()
	}

	reject := func(recErr *RecordError) {
		stats.Rejected++
		stats.Errors = append(stats.Errors, recErr)
		p.log().Warn("Rejected record",
			logger.String("source", b.Source),
			logger.Int("index", recErr.Index),
			logger.Error(recErr.Err),
		)
	}
	for _, recErr := range b.Invalid {
		reject(recErr)
	}

	opps := make([]models.Opportunity, 0, len(b.Records))
	for i, raw := range b.Records {
		opp, err := FromRaw(raw, observedAt)
		if err != nil {
			reject(&RecordError{Source: b.Source, Index: b.position(i), Err: err})
			continue
		}
		opps = append(opps, opp)
	}
	stats.Accepted = len(opps)
	return opps, stats
}

// Run replaces the whole snapshot with the given batches.
func (p *Pipeline) Run(ctx context.Context, batches ...Batch) (RunResult, error) {
	return p.cycle(ctx, "batch", nil, batches, nil)
}

// IngestSource re-ingests one registry source. Records owned by other
// sources are carried over from the current snapshot.
func (p *Pipeline) IngestSource(ctx context.Context, sourceID string) (RunResult, error) {
	if p.Registry == nil {
		return RunResult{}, fmt.Errorf("%w: %s", ErrUnknownSource, sourceID)
	}
	src, err := p.Registry.Get(sourceID)
	if err != nil {
		return RunResult{}, err
	}
	if !src.Active {
		return RunResult{}, fmt.Errorf("%w: %s", ErrInactiveSource, sourceID)
	}

	batch, err := LoadBatch(src.ID, src.Input)
	if err != nil {
		return RunResult{}, fmt.Errorf("failed to load batch for %s: %w", src.ID, err)
	}

	existing, err := p.Store.Load(ctx)
	if err != nil {
		return RunResult{}, fmt.Errorf("failed to load snapshot: %w", err)
	}
	base := withoutOwned(existing, []SourceConfig{src})
	return p.cycle(ctx, src.ID, base, []Batch{batch}, nil)
}

// IngestAll ingests every active source. A source whose batch cannot be read
// is logged and skipped, and its records stay as they were.
func (p *Pipeline) IngestAll(ctx context.Context) (RunResult, error) {
	if p.Registry == nil {
		return RunResult{}, errors.New("no source registry configured")
	}

	var (
		batches []Batch
		loaded  []SourceConfig
		failed  []BatchStats
	)
	for _, src := range p.Registry.Active() {
		batch, err := LoadBatch(src.ID, src.Input)
		if err != nil {
			p.log().Error("Error loading source batch",
				logger.String("source", src.ID),
				logger.String("input", src.Input),
				logger.Error(err),
			)
			failed = append(failed, BatchStats{Source: src.ID, LoadError: err.Error()})
			continue
		}
		batches = append(batches, batch)
		loaded = append(loaded, src)
	}
	if len(batches) == 0 {
		return RunResult{Batches: failed}, ErrNoBatches
	}

	existing, err := p.Store.Load(ctx)
	if err != nil {
		return RunResult{}, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return p.cycle(ctx, "all", withoutOwned(existing, loaded), batches, failed)
}

func (p *Pipeline) cycle(ctx context.Context, runSource string, base []models.Opportunity, batches []Batch, failed []BatchStats) (RunResult, error) {
	log := p.log().With(logger.String("run_source", runSource))
	result := RunResult{StartedAt: p.now(), Kept: len(base)}

	recorder, _ := p.Store.(db.RunRecorder)
	if recorder != nil {
		runID, err := recorder.RecordRun(ctx, runSource)
		if err != nil {
			log.Warn("Failed to create ingest run", logger.Error(err))
		} else {
			result.RunID = runID
		}
	}

	groups := make([][]models.Opportunity, 0, len(batches)+1)
	groups = append(groups, base)
	found, accepted, rejected := 0, 0, 0
	for _, b := range batches {
		opps, stats := p.Normalize(b)
		groups = append(groups, opps)
		result.Batches = append(result.Batches, stats)
		found += stats.Read
		accepted += stats.Accepted
		rejected += stats.Rejected
		log.Info("Normalized batch",
			logger.String("source", b.Source),
			logger.Int("read", stats.Read),
			logger.Int("accepted", stats.Accepted),
			logger.Int("rejected", stats.Rejected),
		)
	}
	result.Batches = append(result.Batches, failed...)

	merged := Merge(groups...)
	final, ostats := p.Overrides.Apply(merged)
	result.Overrides = ostats
	if ostats.Applied > 0 || ostats.Deleted > 0 {
		log.Info("Applied overrides", logger.Int("applied", ostats.Applied), logger.Int("deleted", ostats.Deleted))
	}
	if p.Overrides != nil {
		for _, site := range p.Overrides.BlockedSites {
			log.Warn("Blocked site needs a manual check",
				logger.String("domain", site.Domain),
				logger.String("reason", site.Reason),
			)
		}
	}

	err := p.Store.Replace(ctx, final)
	result.FinishedAt = p.now()

	status := db.RunCompleted
	switch {
	case err != nil:
		status = db.RunFailed
	case found > 0 && accepted == 0:
		status = db.RunFailed
	}
	if recorder != nil && result.RunID != "" {
		summary := db.RunSummary{
			Status:     status,
			ItemsFound: found,
			ItemsSaved: accepted,
			Errors:     rejected + len(failed),
			Duration:   result.FinishedAt.Sub(result.StartedAt),
			Details: map[string]any{
				"kept":  len(base),
				"total": len(final),
			},
		}
		// The run log is written even when ctx was cancelled mid-cycle.
		if ferr := recorder.FinishRun(context.WithoutCancel(ctx), result.RunID, summary); ferr != nil {
			log.Warn("Failed to update ingest run", logger.String("run_id", result.RunID), logger.Error(ferr))
		}
	}
	if err != nil {
		return result, fmt.Errorf("failed to publish snapshot: %w", err)
	}

	result.Total = len(final)
	result.Opportunities = final
	log.Info("Ingestion complete",
		logger.Int("found", found),
		logger.Int("accepted", accepted),
		logger.Int("kept", len(base)),
		logger.Int("total", len(final)),
		logger.Duration("duration", result.FinishedAt.Sub(result.StartedAt)),
	)
	return result, nil
}

// withoutOwned drops the records any of sources produced.
func withoutOwned(opps []models.Opportunity, sources []SourceConfig) []models.Opportunity {
	out := make([]models.Opportunity, 0, len(opps))
	for _, opp := range opps {
		owned := false
		for _, src := range sources {
			if src.Owns(opp) {
				owned = true
				break
			}
		}
		if !owned {
			out = append(out, opp)
		}
	}
	return out
}
