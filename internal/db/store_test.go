package db

import (
	"fmt"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david/opportunity-finder/internal/models"
)

// rowScanner feeds an opportunityRow back through scanOpportunity's
// destinations, minus the position column.
func rowScanner(row []any) func(dest ...any) error {
	vals := append(row[:1:1], row[2:]...)
	return func(dest ...any) error {
		if len(dest) != len(vals) {
			return fmt.Errorf("got %d destinations for %d values", len(dest), len(vals))
		}
		for i, d := range dest {
			switch p := d.(type) {
			case *string:
				*p = vals[i].(string)
			case *[]string:
				*p = vals[i].([]string)
			case **string:
				if vals[i] != nil {
					s := vals[i].(string)
					*p = &s
				}
			case *time.Time:
				*p = vals[i].(time.Time)
			default:
				return fmt.Errorf("unexpected destination %T", d)
			}
		}
		return nil
	}
}

func TestOpportunityRow_RoundTrip(t *testing.T) {
	display := "Spring 2026"
	scraped := time.Date(2026, 1, 10, 8, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		opp  models.Opportunity
	}{
		{"known deadline", models.Opportunity{
			ID: "a", Name: "Alpha", Description: "desc", URL: "https://a.example", Source: "URF",
			Tags: models.Tags{
				Level: models.NewTagSet("undergraduate", "graduate"),
				Field: models.NewTagSet("arts"),
			}.Filled(),
			Deadline:        models.KnownDeadline(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)),
			DeadlineDisplay: &display,
			ScrapedAt:       scraped,
		}},
		{"rolling", models.Opportunity{ID: "b", Name: "Beta", Source: "MEI", Tags: models.Tags{}.Filled(),
			Deadline: models.RollingDeadline(), ScrapedAt: scraped}},
		{"unknown stays null", models.Opportunity{ID: "c", Name: "Gamma", Source: "MEI", Tags: models.Tags{}.Filled(),
			Deadline: models.UnknownDeadline(), ScrapedAt: scraped}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := opportunityRow(7, tt.opp)
			require.Len(t, row, len(opportunityColumns))
			assert.Equal(t, 7, row[1])
			if tt.opp.Deadline.IsUnknown() {
				assert.Nil(t, row[12])
			}

			got, err := scanOpportunity(rowScanner(row))
			require.NoError(t, err)
			assert.Equal(t, tt.opp, got)
		})
	}
}

func TestScanOpportunity_BadDeadline(t *testing.T) {
	row := opportunityRow(0, models.Opportunity{ID: "x", Name: "X", Source: "S", Tags: models.Tags{}.Filled()})
	row[12] = "next spring"
	_, err := scanOpportunity(rowScanner(row))
	assert.Error(t, err)
}

func TestMigrationFiles(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/002_runs.sql":          {Data: []byte("SELECT 2;")},
		"migrations/001_opportunities.sql": {Data: []byte("SELECT 1;")},
		"migrations/README.md":             {Data: []byte("notes")},
		"migrations/old/003_skip.sql":      {Data: []byte("SELECT 3;")},
	}
	files, err := migrationFiles(fsys)
	require.NoError(t, err)
	assert.Equal(t, []string{"001_opportunities.sql", "002_runs.sql"}, files)

	embedded, err := migrationFiles(migrationsFS)
	require.NoError(t, err)
	assert.Equal(t, []string{"001_opportunities.sql", "002_ingest_runs.sql"}, embedded)
}
