package calendar

import (
	"context"
	"fmt"
	"time"
)

// CreateParams are the resolved arguments for a create operation.
type CreateParams struct {
	Summary         string
	Start           time.Time
	DurationMinutes int
	Description     string
	Location        string
	Attendees       []string
}

// UpdateParams are the resolved arguments for an update. Zero values
// mean "not supplied": those fields are left as stored.
type UpdateParams struct {
	Summary         string
	Start           *time.Time
	DurationMinutes int
	Description     string
	Location        string
	Attendees       []string
}

// Bridge turns create/update operations into backend calls. It is
// stateless; the backend and its credential cache carry all state.
type Bridge struct {
	backend Backend
}

// NewBridge creates a calendar bridge.
func NewBridge(backend Backend) *Bridge {
	return &Bridge{backend: backend}
}

// CreateEvent inserts a new event with end = start + duration.
func (b *Bridge) CreateEvent(ctx context.Context, p CreateParams) (EventRef, error) {
	end := p.Start.Add(time.Duration(p.DurationMinutes) * time.Minute)

	ev := &EventResource{
		Summary:     p.Summary,
		Location:    p.Location,
		Description: p.Description,
		Start:       &EventDateTime{DateTime: formatTime(p.Start), TimeZone: "UTC"},
		End:         &EventDateTime{DateTime: formatTime(end), TimeZone: "UTC"},
		Attendees:   attendees(p.Attendees),
	}

	created, err := b.backend.Insert(ctx, ev)
	if err != nil {
		return EventRef{}, err
	}
	return EventRef{
		ID:       created.ID,
		Summary:  created.Summary,
		Start:    p.Start,
		End:      end,
		HTMLLink: created.HTMLLink,
	}, nil
}

// UpdateEvent fetches the stored event, overwrites only the supplied
// fields and writes it back. End is recomputed whenever start or
// duration changes: a new start without a new duration keeps the stored
// duration, a new duration without a new start keeps the stored start.
func (b *Bridge) UpdateEvent(ctx context.Context, eventID string, p UpdateParams) (EventRef, error) {
	cur, err := b.backend.Get(ctx, eventID)
	if err != nil {
		return EventRef{}, err
	}

	if p.Summary != "" {
		cur.Summary = p.Summary
	}
	if p.Location != "" {
		cur.Location = p.Location
	}
	if p.Description != "" {
		cur.Description = p.Description
	}
	if len(p.Attendees) > 0 {
		cur.Attendees = attendees(p.Attendees)
	}

	if p.Start != nil || p.DurationMinutes > 0 {
		storedStart, err := parseStored(cur.Start)
		if err != nil {
			return EventRef{}, fmt.Errorf("event %s: %w", eventID, err)
		}
		storedEnd, err := parseStored(cur.End)
		if err != nil {
			return EventRef{}, fmt.Errorf("event %s: %w", eventID, err)
		}

		start := storedStart
		if p.Start != nil {
			start = *p.Start
		}
		duration := storedEnd.Sub(storedStart)
		if p.DurationMinutes > 0 {
			duration = time.Duration(p.DurationMinutes) * time.Minute
		}

		cur.Start.DateTime = formatTime(start)
		cur.End.DateTime = formatTime(start.Add(duration))
	}

	updated, err := b.backend.Update(ctx, eventID, cur)
	if err != nil {
		return EventRef{}, err
	}

	ref := EventRef{ID: updated.ID, Summary: updated.Summary, HTMLLink: updated.HTMLLink}
	if t, err := parseStored(updated.Start); err == nil {
		ref.Start = t
	}
	if t, err := parseStored(updated.End); err == nil {
		ref.End = t
	}
	return ref, nil
}

func attendees(emails []string) []EventAttendee {
	if len(emails) == 0 {
		return nil
	}
	out := make([]EventAttendee, 0, len(emails))
	for _, email := range emails {
		out = append(out, EventAttendee{Email: email})
	}
	return out
}
