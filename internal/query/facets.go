package query

import (
	"cmp"
	"slices"
	"time"

	"github.com/david/opportunity-finder/internal/ingest"
	"github.com/david/opportunity-finder/internal/models"
)

// FacetCount is how many results a filter value would have.
type FacetCount struct {
	Value string `json:"value"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Facets holds per-value counts for the filter sidebar.
type Facets struct {
	Status []FacetCount                      `json:"status"`
	Tags   map[models.Category][]FacetCount `json:"tags"`
}

// ComputeFacets counts filter values under st. Each dimension is counted
// with every other filter applied but its own, so selecting a value never
// hides its siblings.
func ComputeFacets(entities []models.Opportunity, st State, now time.Time) Facets {
	st = st.Normalized()
	m := newMatcher(st)
	l := newLabeler()

	status := map[string]int{string(models.StatusOpen): 0, string(models.StatusClosed): 0}
	tags := make(map[models.Category]map[string]int, len(models.Categories))
	for _, c := range models.Categories {
		tags[c] = map[string]int{}
	}

	for _, opp := range entities {
		e := entry{opp: opp, decision: ingest.Classify(opp.Deadline, now)}
		if m.match(e, dimStatus) {
			status[string(e.decision.Status)]++
		}
		for _, c := range models.Categories {
			if !m.match(e, dimension(c)) {
				continue
			}
			for _, v := range opp.Tags.Get(c) {
				tags[c][v]++
			}
		}
	}

	out := Facets{
		Status: toFacetCounts(status, l.label),
		Tags:   make(map[models.Category][]FacetCount, len(models.Categories)),
	}
	for _, c := range models.Categories {
		out.Tags[c] = toFacetCounts(tags[c], l.label)
	}
	return out
}

// toFacetCounts orders by count, highest first, then by value.
func toFacetCounts(counts map[string]int, label func(string) string) []FacetCount {
	out := make([]FacetCount, 0, len(counts))
	for v, n := range counts {
		out = append(out, FacetCount{Value: v, Label: label(v), Count: n})
	}
	slices.SortFunc(out, func(a, b FacetCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Value, b.Value)
	})
	return out
}
