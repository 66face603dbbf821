package ingest

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	isoDateRegex      = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	slashDateRegex    = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)
	monthFirstRegex   = regexp.MustCompile(`(?i)\b(January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sept|Sep|Oct|Nov|Dec)\.?\s+(\d{1,2}),?\s+(\d{4})\b`)
	dayFirstRegex     = regexp.MustCompile(`(?i)\b(\d{1,2})\s+(January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sept|Sep|Oct|Nov|Dec)\.?,?\s+(\d{4})\b`)
	spanishMonthRegex = regexp.MustCompile(`(?i)\b(\d{1,2})\s+de\s+(enero|febrero|marzo|abril|mayo|junio|julio|agosto|septiembre|octubre|noviembre|diciembre)\s+(?:de|del)\s+(\d{4})\b`)
	ordinalRegex      = regexp.MustCompile(`(?i)\b(\d{1,2})(st|nd|rd|th)\b`)
	weekdayRegex      = regexp.MustCompile(`(?i)\b(monday|tuesday|wednesday|thursday|friday|saturday|sunday|mon|tue|tues|wed|thu|thur|thurs|fri|sat|sun)\b\.?,?\s*`)
)

// englishLayouts are tried in order against the cleaned text. Every layout
// carries a year; year-less dates are never guessed.
var englishLayouts = []string{
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"2 January 2006",
	"2 January, 2006",
	"2 Jan 2006",
	"02 January 2006",
	"01/02/2006",
	"1/2/2006",
	"2006/01/02",
	"01-02-2006",
	"2006-01-02",
	"January 2, 2006 3:04 PM",
	"January 2, 2006 3 PM",
	"2006-01-02 15:04:05",
}

var spanishMonths = map[string]time.Month{
	"enero":      time.January,
	"febrero":    time.February,
	"marzo":      time.March,
	"abril":      time.April,
	"mayo":       time.May,
	"junio":      time.June,
	"julio":      time.July,
	"agosto":     time.August,
	"septiembre": time.September,
	"octubre":    time.October,
	"noviembre":  time.November,
	"diciembre":  time.December,
}

// parseISODate accepts a bare ISO calendar date or an RFC 3339 timestamp and
// returns its civil date.
func parseISODate(text string) (time.Time, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse("2006-01-02", text); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, text); err == nil {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

// parseDateRobust is the permissive parser for human-written deadline text.
// time.Parse rejects out-of-range days (e.g. "February 30"), which is what we
// want: nothing is clamped.
func parseDateRobust(text string) (time.Time, error) {
	cleaned := cleanDateString(text)
	if cleaned == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	if t, ok := parseISODate(cleaned); ok {
		return t, nil
	}

	for _, layout := range englishLayouts {
		if t, err := time.Parse(layout, titleMonth(cleaned)); err == nil {
			return civilDate(t), nil
		}
	}

	if t, ok := parseDateWithRegex(cleaned); ok {
		return t, nil
	}

	if t, ok := parseSpanishDate(cleaned); ok {
		return t, nil
	}

	return time.Time{}, fmt.Errorf("unable to parse date: %s", text)
}

// parseDateWithRegex pulls the first well-formed date out of surrounding prose.
func parseDateWithRegex(text string) (time.Time, bool) {
	if m := isoDateRegex.FindString(text); m != "" {
		if t, err := time.Parse("2006-01-02", m); err == nil {
			return t, true
		}
	}

	if m := monthFirstRegex.FindStringSubmatch(text); len(m) == 4 {
		candidate := fmt.Sprintf("%s %s %s", normalizeMonthToken(m[1]), m[2], m[3])
		for _, layout := range []string{"January 2 2006", "Jan 2 2006"} {
			if t, err := time.Parse(layout, candidate); err == nil {
				return t, true
			}
		}
		// A matched but invalid date ("March 32, 2026") is not retried with other patterns.
		return time.Time{}, false
	}

	if m := dayFirstRegex.FindStringSubmatch(text); len(m) == 4 {
		candidate := fmt.Sprintf("%s %s %s", m[1], normalizeMonthToken(m[2]), m[3])
		for _, layout := range []string{"2 January 2006", "2 Jan 2006"} {
			if t, err := time.Parse(layout, candidate); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	}

	if m := slashDateRegex.FindStringSubmatch(text); len(m) == 4 {
		// US order first; fall back to day/month when the first part cannot be a month.
		if t, err := time.Parse("1/2/2006", fmt.Sprintf("%s/%s/%s", m[1], m[2], m[3])); err == nil {
			return t, true
		}
		if t, err := time.Parse("2/1/2006", fmt.Sprintf("%s/%s/%s", m[1], m[2], m[3])); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}

func parseSpanishDate(text string) (time.Time, bool) {
	m := spanishMonthRegex.FindStringSubmatch(text)
	if len(m) != 4 {
		return time.Time{}, false
	}
	month, ok := spanishMonths[strings.ToLower(m[2])]
	if !ok {
		return time.Time{}, false
	}
	candidate := fmt.Sprintf("%s %s %s", m[1], month.String(), m[3])
	t, err := time.Parse("2 January 2006", candidate)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// cleanDateString strips label prefixes, weekday names and ordinal suffixes.
func cleanDateString(s string) string {
	prefixes := []string{
		"application deadline:", "closing date:", "deadline:", "due date:", "due:",
		"applications due:", "expires:", "ends:", "fecha límite:", "fecha de cierre:", "cierre:",
	}
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	for _, p := range prefixes {
		if idx := strings.Index(lower, p); idx != -1 {
			s = s[idx+len(p):]
			lower = lower[idx+len(p):]
		}
	}

	s = weekdayRegex.ReplaceAllString(s, "")
	s = ordinalRegex.ReplaceAllString(s, "$1")
	return normalizeSpace(strings.Trim(s, " .;"))
}

// titleMonth upper-cases the first letter of each word so that "march 15, 2026"
// matches the "January 2, 2006" layout.
func titleMonth(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = normalizeMonthToken(w)
	}
	return strings.Join(words, " ")
}

func normalizeMonthToken(w string) string {
	if w == "" {
		return w
	}
	lower := strings.ToLower(strings.TrimSuffix(w, "."))
	if lower == "sept" {
		lower = "sep"
	}
	if lower == "" || lower[0] < 'a' || lower[0] > 'z' {
		return w
	}
	return strings.ToUpper(lower[:1]) + lower[1:]
}

func civilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
