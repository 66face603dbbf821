package ingest

import "github.com/david/opportunity-finder/internal/models"

// Merge combines batches into one set with a single record per id.
//
// When two records share an id the one scraped later wins. On equal
// scrape times a known-kind deadline beats Unknown, and past that the
// first one seen is kept. Output follows the order ids were first seen.
func Merge(batches ...[]models.Opportunity) []models.Opportunity {
	total := 0
	for _, b := range batches {
		total += len(b)
	}

	index := make(map[string]int, total)
	out := make([]models.Opportunity, 0, total)
	for _, batch := range batches {
		for _, opp := range batch {
			i, seen := index[opp.ID]
			if !seen {
				index[opp.ID] = len(out)
				out = append(out, opp)
				continue
			}
			if supersedes(opp, out[i]) {
				out[i] = opp
			}
		}
	}
	return out
}

// supersedes reports whether candidate should replace current.
func supersedes(candidate, current models.Opportunity) bool {
	switch {
	case candidate.ScrapedAt.After(current.ScrapedAt):
		return true
	case candidate.ScrapedAt.Before(current.ScrapedAt):
		return false
	}
	return current.Deadline.IsUnknown() && !candidate.Deadline.IsUnknown()
}
