package ingest

import (
	"time"

	"github.com/david/opportunity-finder/internal/models"
)

// Urgency tier upper bounds, in days until the deadline.
const (
	UrgentWithinDays = 7
	SoonWithinDays   = 30
	NormalWithinDays = 60
)

// Decision is the derived temporal state of an opportunity at a given moment.
// It is recomputed for every query and never stored on the entity.
type Decision struct {
	Status    models.Status
	Urgency   models.Urgency
	DaysUntil *int // nil unless the deadline is a known date
	Reason    string
}

// Classify derives status and urgency from a deadline, relative to now.
// Rules, in priority order:
//   - Closed marker -> closed
//   - known date in the past -> closed
//   - Rolling or Unknown -> open, no urgency
//   - known date today or later -> open, urgency by days left
func Classify(d models.Deadline, now time.Time) Decision {
	switch d.Kind {
	case models.DeadlineClosed:
		return Decision{Status: models.StatusClosed, Urgency: models.UrgencyNone, Reason: "closed_marker"}

	case models.DeadlineKnown:
		days := DaysUntil(d.Date, now)
		if days < 0 {
			return Decision{Status: models.StatusClosed, Urgency: models.UrgencyNone, DaysUntil: &days, Reason: "deadline_passed"}
		}
		return Decision{Status: models.StatusOpen, Urgency: UrgencyFor(days), DaysUntil: &days, Reason: "future_deadline"}

	case models.DeadlineRolling:
		return Decision{Status: models.StatusOpen, Urgency: models.UrgencyNone, Reason: "rolling"}

	default:
		return Decision{Status: models.StatusOpen, Urgency: models.UrgencyNone, Reason: "no_deadline"}
	}
}

// UrgencyFor buckets a non-negative day count.
func UrgencyFor(days int) models.Urgency {
	switch {
	case days < 0:
		return models.UrgencyNone
	case days <= UrgentWithinDays:
		return models.UrgencyUrgent
	case days <= SoonWithinDays:
		return models.UrgencySoon
	case days <= NormalWithinDays:
		return models.UrgencyNormal
	default:
		return models.UrgencyNone
	}
}
