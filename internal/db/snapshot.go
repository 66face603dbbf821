package db

import (
	"context"
	"time"

	"github.com/david/opportunity-finder/internal/models"
)

// SnapshotStore persists the whole opportunity set. Replace swaps the stored
// set wholesale; readers never observe a half-written cycle.
type SnapshotStore interface {
	Load(ctx context.Context) ([]models.Opportunity, error)
	Replace(ctx context.Context, opps []models.Opportunity) error
}

// RunRecorder is implemented by stores that keep an ingest run log.
type RunRecorder interface {
	RecordRun(ctx context.Context, sourceID string) (string, error)
	FinishRun(ctx context.Context, runID string, summary RunSummary) error
}

// Run statuses.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// RunSummary is what a finished ingest cycle reports.
type RunSummary struct {
	Status     string
	ItemsFound int
	ItemsSaved int
	Errors     int
	Duration   time.Duration
	Details    map[string]any
}

// Run is one row of the ingest run log.
type Run struct {
	ID          string         `json:"run_id"`
	SourceID    string         `json:"source_id"`
	Status      string         `json:"status"`
	ItemsFound  int            `json:"items_found"`
	ItemsSaved  int            `json:"items_saved"`
	Errors      int            `json:"errors"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
}
