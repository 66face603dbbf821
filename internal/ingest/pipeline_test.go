package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david/opportunity-finder/internal/db"
	"github.com/david/opportunity-finder/internal/logger"
	"github.com/david/opportunity-finder/internal/models"
)

type memoryStore struct {
	opps       []models.Opportunity
	replaceErr error
	runs       map[string]db.RunSummary
	replaced   int
}

func (m *memoryStore) Load(ctx context.Context) ([]models.Opportunity, error) {
	return append([]models.Opportunity(nil), m.opps...), nil
}

func (m *memoryStore) Replace(ctx context.Context, opps []models.Opportunity) error {
	if m.replaceErr != nil {
		return m.replaceErr
	}
	m.replaced++
	m.opps = append([]models.Opportunity(nil), opps...)
	return nil
}

func (m *memoryStore) RecordRun(ctx context.Context, sourceID string) (string, error) {
	if m.runs == nil {
		m.runs = map[string]db.RunSummary{}
	}
	id := sourceID + "-run"
	m.runs[id] = db.RunSummary{Status: db.RunRunning}
	return id, nil
}

func (m *memoryStore) FinishRun(ctx context.Context, runID string, s db.RunSummary) error {
	m.runs[runID] = s
	return nil
}

func writeBatch(t *testing.T, dir, name string, records []models.RawRecord) string {
	t.Helper()
	data, err := json.Marshal(records)
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func fixedNow() time.Time { return time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC) }

func TestPipeline_NormalizeCountsRejections(t *testing.T) {
	p := NewPipeline(&memoryStore{}, nil, nil, logger.NewNop())
	p.Now = fixedNow

	opps, stats := p.Normalize(Batch{Source: "urf", Records: []models.RawRecord{
		{Name: "Good", Source: "URF"},
		{Name: "", Source: "URF"},
		{Name: "No source"},
	}})

	require.Len(t, opps, 1)
	assert.Equal(t, fixedNow(), opps[0].ScrapedAt, "missing scraped_at falls back to the observation time")
	assert.Equal(t, 3, stats.Read)
	assert.Equal(t, 1, stats.Accepted)
	assert.Equal(t, 2, stats.Rejected)
	require.Len(t, stats.Errors, 2)

	var recErr *RecordError
	require.True(t, errors.As(stats.Errors[0], &recErr))
	assert.Equal(t, 1, recErr.Index)
	assert.ErrorIs(t, stats.Errors[1], ErrMissingSource)
}

func TestPipeline_RunMergesAppliesOverridesAndRecords(t *testing.T) {
	store := &memoryStore{}
	dup := ResolveID("URF", "Shared")
	p := NewPipeline(store, nil, &Overrides{
		Overrides:    map[string]Override{ResolveID("MEI", "Gone"): {Deleted: true}},
		BlockedSites: []BlockedSite{{Domain: "blocked.example", Reason: "captcha"}},
	}, logger.NewNop())
	p.Now = fixedNow

	res, err := p.Run(context.Background(),
		Batch{Source: "a", ObservedAt: fixedNow(), Records: []models.RawRecord{
			{Name: "Shared", Source: "URF", ScrapedAt: "2026-01-01T00:00:00Z"},
			{Name: "Gone", Source: "MEI"},
		}},
		Batch{Source: "b", ObservedAt: fixedNow(), Records: []models.RawRecord{
			{Name: "shared", Source: "urf", DeadlineDisplay: strPtr("Rolling"), ScrapedAt: "2026-01-02T00:00:00Z"},
		}},
	)
	require.NoError(t, err)

	require.Len(t, store.opps, 1)
	assert.Equal(t, dup, store.opps[0].ID)
	assert.Equal(t, models.DeadlineRolling, store.opps[0].Deadline.Kind)
	assert.Equal(t, 1, res.Total)
	assert.Equal(t, OverrideStats{Deleted: 1}, res.Overrides)
	assert.Equal(t, "batch-run", res.RunID)

	summary := store.runs["batch-run"]
	assert.Equal(t, db.RunCompleted, summary.Status)
	assert.Equal(t, 3, summary.ItemsFound)
	assert.Equal(t, 3, summary.ItemsSaved)
}

func TestPipeline_RunReportsStoreFailure(t *testing.T) {
	store := &memoryStore{replaceErr: errors.New("disk full")}
	p := NewPipeline(store, nil, nil, logger.NewNop())

	_, err := p.Run(context.Background(), Batch{Source: "a", Records: []models.RawRecord{{Name: "X", Source: "Y"}}})
	require.Error(t, err)
	assert.Equal(t, db.RunFailed, store.runs["batch-run"].Status)
}

func TestPipeline_IngestSourceKeepsOtherSources(t *testing.T) {
	dir := t.TempDir()
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := &memoryStore{opps: []models.Opportunity{
		opp("Old URF", "URF", ts, models.UnknownDeadline()),
		opp("MEI Fellowship", "Middle East Institute", ts, models.UnknownDeadline()),
	}}
	reg := &Registry{Sources: []SourceConfig{
		{ID: "urf", Active: true, Labels: []string{"URF"}, Input: writeBatch(t, dir, "urf.json", []models.RawRecord{
			{Name: "New URF", Source: "URF", Deadline: strPtr("2026-04-01")},
		})},
		{ID: "mei", Active: true, Labels: []string{"Middle East Institute"}, Input: filepath.Join(dir, "missing.json")},
	}}
	p := NewPipeline(store, reg, nil, logger.NewNop())

	res, err := p.IngestSource(context.Background(), "urf")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Kept)

	names := []string{}
	for _, o := range store.opps {
		names = append(names, o.Name)
	}
	assert.ElementsMatch(t, []string{"MEI Fellowship", "New URF"}, names)

	_, err = p.IngestSource(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrUnknownSource)

	_, err = p.IngestSource(context.Background(), "mei")
	assert.Error(t, err)
}

func TestPipeline_IngestAllSkipsUnreadableSources(t *testing.T) {
	dir := t.TempDir()
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := &memoryStore{opps: []models.Opportunity{
		opp("Stale URF", "URF", ts, models.UnknownDeadline()),
		opp("MEI Fellowship", "Middle East Institute", ts, models.UnknownDeadline()),
	}}
	reg := &Registry{Sources: []SourceConfig{
		{ID: "urf", Active: true, Labels: []string{"URF"}, Input: writeBatch(t, dir, "urf.json", []models.RawRecord{
			{Name: "Fresh URF", Source: "URF"},
		})},
		{ID: "mei", Active: true, Labels: []string{"Middle East Institute"}, Input: filepath.Join(dir, "missing.json")},
		{ID: "off", Active: false, Input: filepath.Join(dir, "off.json")},
	}}
	p := NewPipeline(store, reg, nil, logger.NewNop())

	res, err := p.IngestAll(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Batches, 2)
	assert.Equal(t, "mei", res.Batches[1].Source)
	assert.NotEmpty(t, res.Batches[1].LoadError)

	names := []string{}
	for _, o := range store.opps {
		names = append(names, o.Name)
	}
	assert.ElementsMatch(t, []string{"MEI Fellowship", "Fresh URF"}, names)
	assert.Equal(t, 1, store.runs["all-run"].Errors)
}

func TestPipeline_IngestAllNothingLoaded(t *testing.T) {
	store := &memoryStore{}
	reg := &Registry{Sources: []SourceConfig{{ID: "urf", Active: true, Input: filepath.Join(t.TempDir(), "missing.json")}}}
	p := NewPipeline(store, reg, nil, logger.NewNop())

	_, err := p.IngestAll(context.Background())
	assert.ErrorIs(t, err, ErrNoBatches)
	assert.Zero(t, store.replaced)
}
