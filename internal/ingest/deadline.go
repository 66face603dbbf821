package ingest

import (
	"strings"
	"time"

	"github.com/david/opportunity-finder/internal/models"
)

// InterpretDeadline turns the scraped deadline fields into a Deadline.
//
// Order of preference:
//  1. deadline is an ISO date (or a persisted "Rolling"/"Closed" marker)
//  2. display says "closed"
//  3. display says "rolling"
//  4. display parses as a date
//  5. Unknown
//
// It never fails; anything it cannot read becomes Unknown.
func InterpretDeadline(deadline, display *string) models.Deadline {
	if deadline != nil {
		raw := strings.TrimSpace(*deadline)
		if t, ok := parseISODate(raw); ok {
			return models.KnownDeadline(t)
		}
		switch {
		case strings.EqualFold(raw, models.RollingMarker):
			return models.RollingDeadline()
		case strings.EqualFold(raw, models.ClosedMarker):
			return models.ClosedDeadline()
		}
	}

	if display == nil {
		return models.UnknownDeadline()
	}

	text := strings.TrimSpace(*display)
	switch {
	case text == "":
		return models.UnknownDeadline()
	case strings.EqualFold(text, "closed"):
		return models.ClosedDeadline()
	case strings.EqualFold(text, "rolling"):
		return models.RollingDeadline()
	}

	if t, err := parseDateRobust(text); err == nil {
		return models.KnownDeadline(t)
	}
	return models.UnknownDeadline()
}

// DaysUntil counts whole days from now's calendar day to date's calendar day,
// both taken in now's location. Today is 0, yesterday is -1.
func DaysUntil(date, now time.Time) int {
	ny, nm, nd := now.Date()
	dy, dm, dd := date.Date()
	// Both sides are rebuilt in UTC so DST transitions cannot produce 23h or 25h days.
	from := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)
	to := time.Date(dy, dm, dd, 0, 0, 0, 0, time.UTC)
	return int(to.Sub(from).Hours() / 24)
}
