// Package calendar bridges structured tool operations onto the Google
// Calendar backend, applying partial-update merge rules.
package calendar

import (
	"fmt"
	"time"
)

// EventDateTime is the backend's timestamp shape.
type EventDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone,omitempty"`
}

// EventAttendee is one invited participant.
type EventAttendee struct {
	Email string `json:"email"`
}

// EventResource is the backend event record as it goes over the wire.
type EventResource struct {
	ID          string          `json:"id,omitempty"`
	Summary     string          `json:"summary,omitempty"`
	Location    string          `json:"location,omitempty"`
	Description string          `json:"description,omitempty"`
	Start       *EventDateTime  `json:"start,omitempty"`
	End         *EventDateTime  `json:"end,omitempty"`
	Attendees   []EventAttendee `json:"attendees,omitempty"`
	HTMLLink    string          `json:"htmlLink,omitempty"`
}

// EventRef is the normalized outcome handed back to the dispatcher.
type EventRef struct {
	ID       string
	Summary  string
	Start    time.Time
	End      time.Time
	HTMLLink string
}

// ParseTime parses an ISO-8601 timestamp. Timestamps without an offset
// (the shape the dialogue engine produces) are taken as local time.
func ParseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02T15:04:05", s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid start time %q: %w", s, err)
	}
	return t, nil
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339)
}

func parseStored(dt *EventDateTime) (time.Time, error) {
	if dt == nil || dt.DateTime == "" {
		return time.Time{}, fmt.Errorf("event has no timestamp")
	}
	t, err := time.Parse(time.RFC3339, dt.DateTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("stored timestamp %q: %w", dt.DateTime, err)
	}
	return t, nil
}
