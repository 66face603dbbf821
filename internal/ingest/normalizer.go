package ingest

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/david/opportunity-finder/internal/models"
)

var (
	ErrMissingName   = errors.New("record has no name")
	ErrMissingSource = errors.New("record has no source")
)

// RecordError reports one rejected record of a batch.
type RecordError struct {
	Source string
	Index  int
	Err    error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %d from %q: %v", e.Index, e.Source, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// scrapedAtLayouts covers RFC 3339 and the zone-less ISO timestamps some
// scrapers emit. Zone-less values are read as UTC.
var scrapedAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// FromRaw converts a scraped record into a canonical Opportunity.
// Only a blank name or source rejects the record; every other defect
// degrades the field it affects.
func FromRaw(raw models.RawRecord, observedAt time.Time) (models.Opportunity, error) {
	name := cleanInline(raw.Name)
	if name == "" {
		return models.Opportunity{}, ErrMissingName
	}
	source := cleanInline(raw.Source)
	if source == "" {
		return models.Opportunity{}, ErrMissingSource
	}

	rawTags := raw.Tags
	if fields := NormalizeDiscipline(raw.Discipline); len(fields) > 0 {
		rawTags = make(map[string][]string, len(raw.Tags)+1)
		for k, v := range raw.Tags {
			rawTags[k] = v
		}
		key := string(models.CategoryField)
		rawTags[key] = append(append([]string(nil), rawTags[key]...), fields...)
	}

	var display *string
	if raw.DeadlineDisplay != nil {
		if d := cleanInline(*raw.DeadlineDisplay); d != "" {
			display = &d
		}
	}

	return models.Opportunity{
		ID:              ResolveID(source, name),
		Name:            name,
		Description:     HTMLToText(raw.Description),
		URL:             strings.TrimSpace(raw.URL),
		Source:          source,
		SourceURL:       strings.TrimSpace(raw.SourceURL),
		Tags:            NormalizeTags(rawTags),
		Deadline:        InterpretDeadline(raw.Deadline, display),
		DeadlineDisplay: display,
		ScrapedAt:       parseScrapedAt(raw.ScrapedAt, observedAt),
	}, nil
}

// parseScrapedAt reads the record's observation time, falling back to the
// batch's when the field is missing or unreadable.
func parseScrapedAt(s string, fallback time.Time) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback.UTC()
	}
	for _, layout := range scrapedAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return fallback.UTC()
}
