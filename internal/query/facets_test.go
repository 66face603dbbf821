package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david/opportunity-finder/internal/models"
)

func facetCount(fc []FacetCount, value string) int {
	for _, f := range fc {
		if f.Value == value {
			return f.Count
		}
	}
	return 0
}

func TestComputeFacets_ExcludesOwnDimension(t *testing.T) {
	entities := []models.Opportunity{
		entity("u1", inDays(3), models.Tags{Level: models.NewTagSet("undergraduate"), Type: models.NewTagSet("fellowship")}),
		entity("u2", inDays(3), models.Tags{Level: models.NewTagSet("undergraduate"), Type: models.NewTagSet("grant")}),
		entity("g1", inDays(3), models.Tags{Level: models.NewTagSet("graduate"), Type: models.NewTagSet("fellowship")}),
		entity("old", inDays(-3), models.Tags{Level: models.NewTagSet("graduate"), Type: models.NewTagSet("fellowship")}),
	}

	st := NewState().ToggleTag(models.CategoryLevel, "undergraduate")
	f := ComputeFacets(entities, st, now)

	// level counts ignore the level selection but honour the open filter
	assert.Equal(t, 2, facetCount(f.Tags[models.CategoryLevel], "undergraduate"))
	assert.Equal(t, 1, facetCount(f.Tags[models.CategoryLevel], "graduate"))

	// type counts are narrowed by the level selection
	assert.Equal(t, 1, facetCount(f.Tags[models.CategoryType], "fellowship"))
	assert.Equal(t, 1, facetCount(f.Tags[models.CategoryType], "grant"))

	// status counts ignore the status selection
	assert.Equal(t, 2, facetCount(f.Status, "open"))
	assert.Equal(t, 0, facetCount(f.Status, "closed"))

	require.Contains(t, f.Tags, models.CategoryField)
	assert.Empty(t, f.Tags[models.CategoryField])
}

func TestComputeFacets_Ordering(t *testing.T) {
	entities := []models.Opportunity{
		entity("a", inDays(1), models.Tags{Type: models.NewTagSet("grant")}),
		entity("b", inDays(1), models.Tags{Type: models.NewTagSet("fellowship", "grant")}),
		entity("c", inDays(1), models.Tags{Type: models.NewTagSet("award")}),
	}
	f := ComputeFacets(entities, NewState(), now)
	got := f.Tags[models.CategoryType]
	require.Len(t, got, 3)
	assert.Equal(t, []string{"grant", "award", "fellowship"}, []string{got[0].Value, got[1].Value, got[2].Value})
	assert.Equal(t, "Grant", got[0].Label)
}

func TestSummarize(t *testing.T) {
	a := entity("a", inDays(3), models.Tags{})
	b := entity("b", inDays(45), models.Tags{})
	b.Source = "MEI"
	c := entity("c", models.RollingDeadline(), models.Tags{})
	d := entity("d", models.ClosedDeadline(), models.Tags{})
	e := entity("e", models.UnknownDeadline(), models.Tags{})
	e.ScrapedAt = now

	s := Summarize([]models.Opportunity{a, b, c, d, e}, now)
	assert.Equal(t, 5, s.Total)
	assert.Equal(t, 4, s.Open)
	assert.Equal(t, 1, s.Closed)
	assert.Equal(t, 2, s.WithDeadline)
	assert.Equal(t, 1, s.Rolling)
	assert.Equal(t, 1, s.NoDeadline)
	assert.Equal(t, 1, s.ByUrgency[models.UrgencyUrgent])
	assert.Equal(t, 1, s.ByUrgency[models.UrgencyNormal])
	assert.Equal(t, 2, s.ByUrgency[models.UrgencyNone])
	assert.Equal(t, []FacetCount{{Value: "URF", Label: "URF", Count: 4}, {Value: "MEI", Label: "MEI", Count: 1}}, s.BySource)
	require.NotNil(t, s.LastScraped)
	assert.Equal(t, now, *s.LastScraped)
}
