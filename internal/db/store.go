package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/david/opportunity-finder/internal/models"
)

// Store is the Postgres-backed snapshot store. It also keeps the ingest run log.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

var opportunityColumns = []string{
	"id", "position", "name", "description", "url", "source", "source_url",
	"tag_level", "tag_citizenship", "tag_type", "tag_field", "tag_funding",
	"deadline", "deadline_display", "scraped_at",
}

const selectCols = `id, name, description, url, source, source_url,
	tag_level, tag_citizenship, tag_type, tag_field, tag_funding,
	deadline, deadline_display, scraped_at`

// Load returns the stored snapshot in its original order.
func (s *Store) Load(ctx context.Context) ([]models.Opportunity, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+selectCols+" FROM opportunities ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("query opportunities: %w", err)
	}
	defer rows.Close()

	opps := []models.Opportunity{}
	for rows.Next() {
		opp, err := scanOpportunity(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan opportunity: %w", err)
		}
		opps = append(opps, opp)
	}
	return opps, rows.Err()
}

// Replace swaps the stored snapshot inside one transaction.
func (s *Store) Replace(ctx context.Context, opps []models.Opportunity) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer tx.Rollback(ctx) // no-op after commit

	if _, err := tx.Exec(ctx, "DELETE FROM opportunities"); err != nil {
		return fmt.Errorf("clear opportunities: %w", err)
	}

	rows := make([][]any, len(opps))
	for i, opp := range opps {
		rows[i] = opportunityRow(i, opp)
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"opportunities"}, opportunityColumns, pgx.CopyFromRows(rows)); err != nil {
		return fmt.Errorf("copy opportunities: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit replace: %w", err)
	}
	return nil
}

// opportunityRow lays an opportunity out in opportunityColumns order.
func opportunityRow(position int, opp models.Opportunity) []any {
	var deadline any
	if !opp.Deadline.IsUnknown() {
		deadline = opp.Deadline.String()
	}
	var display any
	if opp.DeadlineDisplay != nil {
		display = *opp.DeadlineDisplay
	}
	tags := opp.Tags.Filled()
	return []any{
		opp.ID, position, opp.Name, opp.Description, opp.URL, opp.Source, opp.SourceURL,
		[]string(tags.Level), []string(tags.Citizenship), []string(tags.Type), []string(tags.Field), []string(tags.Funding),
		deadline, display, opp.ScrapedAt.UTC(),
	}
}

func scanOpportunity(scan func(dest ...any) error) (models.Opportunity, error) {
	var o models.Opportunity
	var level, citizenship, kind, field, funding []string
	var deadline *string

	err := scan(
		&o.ID, &o.Name, &o.Description, &o.URL, &o.Source, &o.SourceURL,
		&level, &citizenship, &kind, &field, &funding,
		&deadline, &o.DeadlineDisplay, &o.ScrapedAt,
	)
	if err != nil {
		return o, err
	}

	o.Tags = models.Tags{
		Level:       models.NewTagSet(level...),
		Citizenship: models.NewTagSet(citizenship...),
		Type:        models.NewTagSet(kind...),
		Field:       models.NewTagSet(field...),
		Funding:     models.NewTagSet(funding...),
	}.Filled()

	if deadline != nil {
		d, err := models.ParseDeadline(*deadline)
		if err != nil {
			return o, err
		}
		o.Deadline = d
	}
	o.ScrapedAt = o.ScrapedAt.UTC()
	return o, nil
}

// RecordRun opens a run log entry and returns its id.
func (s *Store) RecordRun(ctx context.Context, sourceID string) (string, error) {
	runID := uuid.NewString()
	_, err := s.pool.Exec(ctx,
		"INSERT INTO ingest_runs (run_id, source_id, status) VALUES ($1, $2, $3)",
		runID, sourceID, RunRunning)
	if err != nil {
		return "", fmt.Errorf("insert ingest run: %w", err)
	}
	return runID, nil
}

// FinishRun closes a run log entry.
func (s *Store) FinishRun(ctx context.Context, runID string, summary RunSummary) error {
	details := map[string]any{"duration_ms": summary.Duration.Milliseconds()}
	for k, v := range summary.Details {
		details[k] = v
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("encode run details: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`UPDATE ingest_runs SET
			status = $1,
			items_found = $2,
			items_saved = $3,
			errors = $4,
			completed_at = NOW(),
			details = $5
		WHERE run_id = $6`,
		summary.Status, summary.ItemsFound, summary.ItemsSaved, summary.Errors, detailsJSON, runID,
	)
	if err != nil {
		return fmt.Errorf("update ingest run %s: %w", runID, err)
	}
	return nil
}

// ListRuns returns the most recent runs first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT run_id::text, source_id, status, items_found, items_saved, errors,
			started_at, completed_at, details
		FROM ingest_runs
		ORDER BY started_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query ingest runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var details []byte
		var completed *time.Time
		if err := rows.Scan(&r.ID, &r.SourceID, &r.Status, &r.ItemsFound, &r.ItemsSaved, &r.Errors,
			&r.StartedAt, &completed, &details); err != nil {
			return nil, fmt.Errorf("scan ingest run: %w", err)
		}
		r.CompletedAt = completed
		if len(details) > 0 {
			_ = json.Unmarshal(details, &r.Details)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
