// Package query evaluates a filter/sort/page state against an opportunity set.
// Everything here is a pure function of its arguments.
package query

import (
	"slices"
	"strings"

	"github.com/david/opportunity-finder/internal/ingest"
	"github.com/david/opportunity-finder/internal/models"
)

// DefaultPageSize is the number of cards on one results page.
const DefaultPageSize = 24

// SortMode selects the result order.
type SortMode string

const (
	SortDeadline     SortMode = "deadline"
	SortDeadlineDesc SortMode = "deadline-desc"
	SortName         SortMode = "name"
)

// ParseSortMode maps a request value to a SortMode. Anything unrecognised
// becomes SortDeadline.
func ParseSortMode(s string) SortMode {
	switch SortMode(strings.ToLower(strings.TrimSpace(s))) {
	case SortDeadlineDesc:
		return SortDeadlineDesc
	case SortName:
		return SortName
	default:
		return SortDeadline
	}
}

// Filters holds the selected values per dimension. An empty set places no
// restriction on its dimension.
type Filters struct {
	Status []models.Status `json:"status"`
	Tags   models.Tags     `json:"tags"`
}

// State is one user's view of the result list.
type State struct {
	Filters  Filters  `json:"filters"`
	Text     string   `json:"text"`
	Sort     SortMode `json:"sort"`
	Page     int      `json:"page"`
	PageSize int      `json:"page_size"`
}

// NewState returns the starting state: open opportunities by deadline, page 1.
func NewState() State {
	return State{
		Filters: Filters{
			Status: []models.Status{models.StatusOpen},
			Tags:   models.Tags{}.Filled(),
		},
		Sort:     SortDeadline,
		Page:     1,
		PageSize: DefaultPageSize,
	}
}

// Normalized fills defaults and drops unknown values so the engine never
// has to guess.
func (s State) Normalized() State {
	s.Sort = ParseSortMode(string(s.Sort))
	if s.PageSize <= 0 {
		s.PageSize = DefaultPageSize
	}
	if s.Page < 1 {
		s.Page = 1
	}
	s.Text = strings.TrimSpace(s.Text)
	s.Filters.Status = normalizeStatuses(s.Filters.Status)
	for _, c := range models.Categories {
		s.Filters.Tags = s.Filters.Tags.With(c, canonicalTags(s.Filters.Tags.Get(c)))
	}
	return s
}

// ToggleStatus adds or removes a status from the filter and returns to page 1.
func (s State) ToggleStatus(st models.Status) State {
	out := make([]models.Status, 0, len(s.Filters.Status)+1)
	found := false
	for _, v := range s.Filters.Status {
		if v == st {
			found = true
			continue
		}
		out = append(out, v)
	}
	if !found {
		out = append(out, st)
	}
	s.Filters.Status = normalizeStatuses(out)
	s.Page = 1
	return s
}

// ToggleTag adds or removes one tag value and returns to page 1. The value
// is canonicalized the same way scraped tags are.
func (s State) ToggleTag(c models.Category, value string) State {
	tok := filterToken(value)
	if tok == "" {
		return s
	}
	s.Filters.Tags = s.Filters.Tags.With(c, s.Filters.Tags.Get(c).Toggle(tok))
	s.Page = 1
	return s
}

// WithTags replaces the selection for one category and returns to page 1.
// Repeated or aliased values collapse to one entry; no values clears it.
func (s State) WithTags(c models.Category, values ...string) State {
	toks := make([]string, 0, len(values))
	for _, v := range values {
		toks = append(toks, filterToken(v))
	}
	s.Filters.Tags = s.Filters.Tags.With(c, models.NewTagSet(toks...))
	s.Page = 1
	return s
}

// WithText sets the free-text query and returns to page 1.
func (s State) WithText(text string) State {
	s.Text = text
	s.Page = 1
	return s
}

func (s State) WithSort(mode SortMode) State {
	s.Sort = ParseSortMode(string(mode))
	s.Page = 1
	return s
}

// WithPage requests a page. Out-of-range values are clamped at query time.
func (s State) WithPage(page int) State {
	s.Page = page
	return s
}

// ClearFilters drops every status and tag selection and the text query.
func (s State) ClearFilters() State {
	s.Filters = Filters{Tags: models.Tags{}.Filled()}
	s.Text = ""
	s.Page = 1
	return s
}

func canonicalTags(values models.TagSet) models.TagSet {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, filterToken(v))
	}
	return models.NewTagSet(out...)
}

// filterToken canonicalizes a selected tag value. A value with nothing
// canonical in it is kept as typed: no stored tag equals it, so it restricts
// its category to nothing instead of lifting the restriction.
func filterToken(v string) string {
	if tok := ingest.NormalizeTagToken(v); tok != "" {
		return tok
	}
	return strings.TrimSpace(v)
}

func normalizeStatuses(in []models.Status) []models.Status {
	out := make([]models.Status, 0, len(in))
	for _, v := range in {
		if v != models.StatusOpen && v != models.StatusClosed {
			continue
		}
		if !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	slices.Sort(out)
	return out
}
