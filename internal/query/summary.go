package query

import (
	"time"

	"github.com/david/opportunity-finder/internal/ingest"
	"github.com/david/opportunity-finder/internal/models"
)

// Summary is the catalog overview shown after a scrape and on the stats page.
type Summary struct {
	Total        int                    `json:"total"`
	Open         int                    `json:"open"`
	Closed       int                    `json:"closed"`
	WithDeadline int                    `json:"with_deadline"`
	Rolling      int                    `json:"rolling"`
	NoDeadline   int                    `json:"no_deadline"`
	ByUrgency    map[models.Urgency]int `json:"by_urgency"`
	BySource     []FacetCount           `json:"by_source"`
	LastScraped  *time.Time             `json:"last_scraped,omitempty"`
}

// Summarize counts entities by status, urgency, deadline kind and source.
func Summarize(entities []models.Opportunity, now time.Time) Summary {
	s := Summary{
		Total: len(entities),
		ByUrgency: map[models.Urgency]int{
			models.UrgencyUrgent: 0,
			models.UrgencySoon:   0,
			models.UrgencyNormal: 0,
			models.UrgencyNone:   0,
		},
	}

	for _, opp := range entities {
		d := ingest.Classify(opp.Deadline, now)
		if d.Status == models.StatusOpen {
			s.Open++
			s.ByUrgency[d.Urgency]++
		} else {
			s.Closed++
		}

		switch opp.Deadline.Kind {
		case models.DeadlineKnown:
			s.WithDeadline++
		case models.DeadlineRolling:
			s.Rolling++
		case models.DeadlineUnknown:
			s.NoDeadline++
		}

		if s.LastScraped == nil || opp.ScrapedAt.After(*s.LastScraped) {
			ts := opp.ScrapedAt
			s.LastScraped = &ts
		}
	}

	s.BySource = Sources(entities)
	return s
}

// Sources lists the distinct source labels with their record counts.
func Sources(entities []models.Opportunity) []FacetCount {
	counts := map[string]int{}
	for _, opp := range entities {
		counts[opp.Source]++
	}
	return toFacetCounts(counts, func(v string) string { return v })
}
