package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DeadlineKind discriminates the Deadline variant.
type DeadlineKind int

const (
	DeadlineUnknown DeadlineKind = iota
	DeadlineKnown
	DeadlineRolling
	DeadlineClosed
)

func (k DeadlineKind) String() string {
	switch k {
	case DeadlineKnown:
		return "known"
	case DeadlineRolling:
		return "rolling"
	case DeadlineClosed:
		return "closed"
	default:
		return "unknown"
	}
}

const (
	DateLayout    = "2006-01-02"
	RollingMarker = "Rolling"
	ClosedMarker  = "Closed"
)

// Deadline is Known(date) | Rolling | Closed | Unknown. Date is only
// meaningful for DeadlineKnown and always holds a civil date at midnight UTC.
type Deadline struct {
	Kind DeadlineKind
	Date time.Time
}

func KnownDeadline(t time.Time) Deadline {
	return Deadline{Kind: DeadlineKnown, Date: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
}

func RollingDeadline() Deadline { return Deadline{Kind: DeadlineRolling} }
func ClosedDeadline() Deadline  { return Deadline{Kind: DeadlineClosed} }
func UnknownDeadline() Deadline { return Deadline{Kind: DeadlineUnknown} }

func (d Deadline) IsKnown() bool   { return d.Kind == DeadlineKnown }
func (d Deadline) IsUnknown() bool { return d.Kind == DeadlineUnknown }

// String renders the interchange form: an ISO date, "Rolling", "Closed", or "".
func (d Deadline) String() string {
	switch d.Kind {
	case DeadlineKnown:
		return d.Date.Format(DateLayout)
	case DeadlineRolling:
		return RollingMarker
	case DeadlineClosed:
		return ClosedMarker
	default:
		return ""
	}
}

func (d Deadline) Equal(o Deadline) bool {
	if d.Kind != o.Kind {
		return false
	}
	return d.Kind != DeadlineKnown || d.Date.Equal(o.Date)
}

// MarshalJSON writes null for Unknown so that null and "Rolling" stay distinct.
func (d Deadline) MarshalJSON() ([]byte, error) {
	if d.Kind == DeadlineUnknown {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Deadline) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*d = UnknownDeadline()
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("deadline must be a string or null: %w", err)
	}

	parsed, err := ParseDeadline(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseDeadline reads the interchange form written by String.
func ParseDeadline(s string) (Deadline, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return UnknownDeadline(), nil
	case strings.EqualFold(s, RollingMarker):
		return RollingDeadline(), nil
	case strings.EqualFold(s, ClosedMarker):
		return ClosedDeadline(), nil
	}

	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return UnknownDeadline(), fmt.Errorf("invalid deadline %q: %w", s, err)
	}
	return KnownDeadline(t), nil
}
