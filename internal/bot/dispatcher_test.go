package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/ashureev/voicecal/internal/calendar"
)

type fakeCalendar struct {
	createParams calendar.CreateParams
	createRef    calendar.EventRef
	createErr    error
	createCalls  int

	updateID     string
	updateParams calendar.UpdateParams
	updateRef    calendar.EventRef
	updateErr    error
	updateCalls  int

	panicOnCreate bool
}

func (f *fakeCalendar) CreateEvent(_ context.Context, p calendar.CreateParams) (calendar.EventRef, error) {
	if f.panicOnCreate {
		panic("backend exploded")
	}
	f.createCalls++
	f.createParams = p
	return f.createRef, f.createErr
}

func (f *fakeCalendar) UpdateEvent(_ context.Context, eventID string, p calendar.UpdateParams) (calendar.EventRef, error) {
	f.updateCalls++
	f.updateID = eventID
	f.updateParams = p
	return f.updateRef, f.updateErr
}

func newTestDispatcher(t *testing.T, cal CalendarService) *Dispatcher {
	t.Helper()
	d, err := NewDispatcher(cal)
	if err != nil {
		t.Fatalf("NewDispatcher failed: %v", err)
	}
	return d
}

func asMap(t *testing.T, result any) map[string]any {
	t.Helper()
	m, ok := result.(map[string]any)
	if !ok {
		t.Fatalf("result is %T, want map", result)
	}
	return m
}

func TestDispatchGetCurrentDate(t *testing.T) {
	d := newTestDispatcher(t, &fakeCalendar{})
	fixed := time.Date(2024, 5, 1, 10, 42, 3, 0, time.Local)
	d.now = func() time.Time { return fixed }

	result := d.Dispatch(context.Background(), ToolCall{ID: "c1", Name: ToolGetCurrentDate})

	s, ok := result.(string)
	if !ok {
		t.Fatalf("result is %T, want string", result)
	}
	if s != "2024-05-01 10:42" {
		t.Errorf("result = %q", s)
	}
	if !regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}$`).MatchString(s) {
		t.Errorf("result %q does not match YYYY-MM-DD HH:MM", s)
	}
}

func TestDispatchMakeReservation(t *testing.T) {
	cal := &fakeCalendar{createRef: calendar.EventRef{
		ID:       "evt-1",
		Summary:  "Demo",
		HTMLLink: "https://calendar.example.com/evt-1",
	}}
	d := newTestDispatcher(t, cal)

	result := d.Dispatch(context.Background(), ToolCall{
		ID:   "c1",
		Name: ToolMakeReservation,
		Arguments: json.RawMessage(`{
			"summary": "Demo",
			"start_time": "2024-05-01T10:00:00"
		}`),
	})

	m := asMap(t, result)
	if m["status"] != "success" {
		t.Fatalf("status = %v, message = %v", m["status"], m["message"])
	}
	if m["event_id"] != "evt-1" || m["summary"] != "Demo" || m["start_time"] != "2024-05-01T10:00:00" {
		t.Errorf("unexpected result: %v", m)
	}
	if m["link"] != "https://calendar.example.com/evt-1" {
		t.Errorf("link = %v", m["link"])
	}

	// Duration defaults to 30 minutes.
	if cal.createParams.DurationMinutes != 30 {
		t.Errorf("duration = %d, want 30", cal.createParams.DurationMinutes)
	}
	wantStart := time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local)
	if !cal.createParams.Start.Equal(wantStart) {
		t.Errorf("start = %v, want %v", cal.createParams.Start, wantStart)
	}
}

func TestDispatchMakeReservationAllFields(t *testing.T) {
	cal := &fakeCalendar{createRef: calendar.EventRef{ID: "evt-2"}}
	d := newTestDispatcher(t, cal)

	result := d.Dispatch(context.Background(), ToolCall{
		ID:   "c1",
		Name: ToolMakeReservation,
		Arguments: json.RawMessage(`{
			"summary": "Planning",
			"start_time": "2024-05-01T10:00:00Z",
			"duration_minutes": 90,
			"description": "Q3 planning",
			"location": "Room 1",
			"attendees": ["a@example.com"]
		}`),
	})

	if m := asMap(t, result); m["status"] != "success" {
		t.Fatalf("status = %v, message = %v", m["status"], m["message"])
	}
	if cal.createParams.DurationMinutes != 90 {
		t.Errorf("duration = %d, want 90", cal.createParams.DurationMinutes)
	}
	if cal.createParams.Location != "Room 1" || cal.createParams.Description != "Q3 planning" {
		t.Errorf("params = %+v", cal.createParams)
	}
	if len(cal.createParams.Attendees) != 1 {
		t.Errorf("attendees = %v", cal.createParams.Attendees)
	}
}

func TestDispatchMakeReservationBadStartTime(t *testing.T) {
	cal := &fakeCalendar{}
	d := newTestDispatcher(t, cal)

	result := d.Dispatch(context.Background(), ToolCall{
		ID:        "c1",
		Name:      ToolMakeReservation,
		Arguments: json.RawMessage(`{"summary": "Demo", "start_time": "next tuesday"}`),
	})

	m := asMap(t, result)
	if m["status"] != "error" {
		t.Fatalf("status = %v, want error", m["status"])
	}
	if m["message"] == "" {
		t.Error("error result has no message")
	}
	if cal.createCalls != 0 {
		t.Errorf("bridge was called %d times, want 0", cal.createCalls)
	}
}

func TestDispatchMakeReservationMissingRequired(t *testing.T) {
	cal := &fakeCalendar{}
	d := newTestDispatcher(t, cal)

	result := d.Dispatch(context.Background(), ToolCall{
		ID:        "c1",
		Name:      ToolMakeReservation,
		Arguments: json.RawMessage(`{"summary": "Demo"}`),
	})

	if m := asMap(t, result); m["status"] != "error" {
		t.Fatalf("status = %v, want error", m["status"])
	}
	if cal.createCalls != 0 {
		t.Errorf("bridge was called %d times, want 0", cal.createCalls)
	}
}

func TestDispatchMakeReservationBackendFailure(t *testing.T) {
	cal := &fakeCalendar{createErr: fmt.Errorf("calendar insert: status 503")}
	d := newTestDispatcher(t, cal)

	result := d.Dispatch(context.Background(), ToolCall{
		ID:        "c1",
		Name:      ToolMakeReservation,
		Arguments: json.RawMessage(`{"summary": "Demo", "start_time": "2024-05-01T10:00:00"}`),
	})

	m := asMap(t, result)
	if m["status"] != "error" {
		t.Fatalf("status = %v, want error", m["status"])
	}
}

func TestDispatchUpdateReservation(t *testing.T) {
	cal := &fakeCalendar{updateRef: calendar.EventRef{
		ID:      "E1",
		Summary: "Kickoff",
		Start:   time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		End:     time.Date(2024, 5, 1, 10, 45, 0, 0, time.UTC),
	}}
	d := newTestDispatcher(t, cal)

	result := d.Dispatch(context.Background(), ToolCall{
		ID:        "c1",
		Name:      ToolUpdateReservation,
		Arguments: json.RawMessage(`{"event_id": "E1", "location": "Room 2"}`),
	})

	m := asMap(t, result)
	if m["status"] != "success" {
		t.Fatalf("status = %v, message = %v", m["status"], m["message"])
	}
	if cal.updateID != "E1" {
		t.Errorf("update id = %q", cal.updateID)
	}
	if cal.updateParams.Location != "Room 2" {
		t.Errorf("location = %q", cal.updateParams.Location)
	}
	// Unsupplied fields arrive as zero values so the bridge leaves
	// them as stored.
	if cal.updateParams.Summary != "" || cal.updateParams.Start != nil || cal.updateParams.DurationMinutes != 0 {
		t.Errorf("unsupplied fields were set: %+v", cal.updateParams)
	}
}

func TestDispatchUpdateReservationMissingEventID(t *testing.T) {
	cal := &fakeCalendar{}
	d := newTestDispatcher(t, cal)

	result := d.Dispatch(context.Background(), ToolCall{
		ID:        "c1",
		Name:      ToolUpdateReservation,
		Arguments: json.RawMessage(`{"location": "Room 2"}`),
	})

	m := asMap(t, result)
	if m["status"] != "error" {
		t.Fatalf("status = %v, want error", m["status"])
	}
	if cal.updateCalls != 0 {
		t.Errorf("bridge was called %d times, want 0", cal.updateCalls)
	}
}

func TestDispatchUpdateReservationUnknownEvent(t *testing.T) {
	cal := &fakeCalendar{updateErr: fmt.Errorf("get: %w", calendar.ErrEventNotFound)}
	d := newTestDispatcher(t, cal)

	result := d.Dispatch(context.Background(), ToolCall{
		ID:        "c1",
		Name:      ToolUpdateReservation,
		Arguments: json.RawMessage(`{"event_id": "ZZZ", "summary": "nope"}`),
	})

	m := asMap(t, result)
	if m["status"] != "error" {
		t.Fatalf("status = %v, want error", m["status"])
	}
	if m["message"] == "" {
		t.Error("error result has no message")
	}
}

func TestDispatchInvalidArgumentTypes(t *testing.T) {
	d := newTestDispatcher(t, &fakeCalendar{})

	result := d.Dispatch(context.Background(), ToolCall{
		ID:        "c1",
		Name:      ToolMakeReservation,
		Arguments: json.RawMessage(`{"summary": "Demo", "start_time": "2024-05-01T10:00:00", "duration_minutes": "thirty"}`),
	})

	if m := asMap(t, result); m["status"] != "error" {
		t.Fatalf("status = %v, want error", m["status"])
	}
}

func TestDispatchEmptyArguments(t *testing.T) {
	d := newTestDispatcher(t, &fakeCalendar{})

	result := d.Dispatch(context.Background(), ToolCall{ID: "c1", Name: ToolGetCurrentDate, Arguments: nil})
	if _, ok := result.(string); !ok {
		t.Fatalf("result is %T, want string", result)
	}
}

// A panic inside a tool must come back as an error result, never escape.
func TestDispatchRecoversPanic(t *testing.T) {
	d := newTestDispatcher(t, &fakeCalendar{panicOnCreate: true})

	result := d.Dispatch(context.Background(), ToolCall{
		ID:        "c1",
		Name:      ToolMakeReservation,
		Arguments: json.RawMessage(`{"summary": "Demo", "start_time": "2024-05-01T10:00:00"}`),
	})

	m := asMap(t, result)
	if m["status"] != "error" {
		t.Fatalf("status = %v, want error", m["status"])
	}
}

// Every call yields exactly one result value, success or failure.
func TestDispatchAlwaysOneResult(t *testing.T) {
	d := newTestDispatcher(t, &fakeCalendar{createRef: calendar.EventRef{ID: "evt-1"}})

	calls := []ToolCall{
		{ID: "1", Name: ToolGetCurrentDate},
		{ID: "2", Name: ToolMakeReservation, Arguments: json.RawMessage(`{"summary":"a","start_time":"2024-05-01T10:00:00"}`)},
		{ID: "3", Name: ToolMakeReservation, Arguments: json.RawMessage(`{"summary":"a","start_time":"bogus"}`)},
		{ID: "4", Name: ToolUpdateReservation, Arguments: json.RawMessage(`{}`)},
		{ID: "5", Name: "no_such_tool"},
	}
	for _, call := range calls {
		if result := d.Dispatch(context.Background(), call); result == nil {
			t.Errorf("call %s returned nil result", call.ID)
		}
	}
}
