package query

import (
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/david/opportunity-finder/internal/ingest"
	"github.com/david/opportunity-finder/internal/models"
)

// Result is one page of a query.
type Result struct {
	Items        []View `json:"items"`
	Page         int    `json:"page"`
	PageSize     int    `json:"page_size"`
	TotalPages   int    `json:"total_pages"`
	TotalMatched int    `json:"total_matched"`
	TotalOverall int    `json:"total_overall"`
}

// entry pairs an opportunity with its classification for the current query.
type entry struct {
	opp      models.Opportunity
	decision ingest.Decision
}

// dimension names a filter so facet counting can leave one out.
type dimension string

const (
	dimNone   dimension = ""
	dimStatus dimension = "status"
)

// Run filters, sorts and pages entities under st, as of now. It reads
// entities and never modifies them.
func Run(entities []models.Opportunity, st State, now time.Time) Result {
	st = st.Normalized()

	m := newMatcher(st)
	matched := make([]entry, 0, len(entities))
	for _, opp := range entities {
		e := entry{opp: opp, decision: ingest.Classify(opp.Deadline, now)}
		if m.match(e, dimNone) {
			matched = append(matched, e)
		}
	}
	sortEntries(matched, st.Sort)

	totalPages := max(1, (len(matched)+st.PageSize-1)/st.PageSize)
	page := min(max(st.Page, 1), totalPages)
	start := min((page-1)*st.PageSize, len(matched))
	end := min(start+st.PageSize, len(matched))

	l := newLabeler()
	items := make([]View, 0, end-start)
	for _, e := range matched[start:end] {
		items = append(items, l.view(e.opp, e.decision))
	}

	return Result{
		Items:        items,
		Page:         page,
		PageSize:     st.PageSize,
		TotalPages:   totalPages,
		TotalMatched: len(matched),
		TotalOverall: len(entities),
	}
}

// matcher holds the prepared filters of one query.
type matcher struct {
	st   State
	fold cases.Caser
	text string
}

func newMatcher(st State) *matcher {
	fold := cases.Fold()
	return &matcher{st: st, fold: fold, text: fold.String(st.Text)}
}

// match applies every filter except the one named by skip.
func (m *matcher) match(e entry, skip dimension) bool {
	if skip != dimStatus && len(m.st.Filters.Status) > 0 && !slices.Contains(m.st.Filters.Status, e.decision.Status) {
		return false
	}
	if m.text != "" {
		haystack := m.fold.String(e.opp.Name + " " + e.opp.Description + " " + e.opp.Source)
		if !strings.Contains(haystack, m.text) {
			return false
		}
	}
	for _, c := range models.Categories {
		if skip == dimension(c) {
			continue
		}
		want := m.st.Filters.Tags.Get(c)
		if want.Len() > 0 && !e.opp.Tags.Get(c).Intersects(want) {
			return false
		}
	}
	return true
}

func sortEntries(entries []entry, mode SortMode) {
	switch mode {
	case SortName:
		col := collate.New(language.English)
		slices.SortStableFunc(entries, func(a, b entry) int {
			return col.CompareString(a.opp.Name, b.opp.Name)
		})
	case SortDeadlineDesc:
		slices.SortStableFunc(entries, func(a, b entry) int {
			return compareDated(a, b, true)
		})
	default:
		slices.SortStableFunc(entries, func(a, b entry) int {
			if r := statusRank(a) - statusRank(b); r != 0 {
				return r
			}
			return compareDated(a, b, false)
		})
	}
}

func statusRank(e entry) int {
	if e.decision.Status == models.StatusClosed {
		return 1
	}
	return 0
}

// compareDated orders dated entries by date and puts undated ones last.
func compareDated(a, b entry, desc bool) int {
	ak, bk := a.opp.Deadline.IsKnown(), b.opp.Deadline.IsKnown()
	switch {
	case ak && !bk:
		return -1
	case !ak && bk:
		return 1
	case !ak && !bk:
		return 0
	}
	c := a.opp.Deadline.Date.Compare(b.opp.Deadline.Date)
	if desc {
		return -c
	}
	return c
}
