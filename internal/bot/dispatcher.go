package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/voicecal/internal/calendar"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// currentDateLayout is the shape spoken back for get_current_date.
const currentDateLayout = "2006-01-02 15:04"

const defaultDurationMinutes = 30

// ToolCall is one structured invocation emitted by the dialogue engine.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// CalendarService is the bridge surface the dispatcher drives.
type CalendarService interface {
	CreateEvent(ctx context.Context, p calendar.CreateParams) (calendar.EventRef, error)
	UpdateEvent(ctx context.Context, eventID string, p calendar.UpdateParams) (calendar.EventRef, error)
}

// Dispatcher resolves tool calls into calendar operations. Every call
// produces exactly one result value, success or failure; no failure
// inside argument handling or the bridge escapes to the dialogue loop,
// because an uncaught failure there stalls the spoken conversation.
type Dispatcher struct {
	calendar   CalendarService
	validators map[string]*jsonschema.Schema
	now        func() time.Time
}

// NewDispatcher creates a dispatcher over the given calendar service.
func NewDispatcher(cal CalendarService) (*Dispatcher, error) {
	validators, err := compileToolSchemas()
	if err != nil {
		return nil, err
	}
	return &Dispatcher{
		calendar:   cal,
		validators: validators,
		now:        time.Now,
	}, nil
}

// Dispatch executes one tool call and returns its result payload: a
// plain string for get_current_date, otherwise a map carrying either
// {status:"success", event_id, summary, start_time, link} or
// {status:"error", message}.
func (d *Dispatcher) Dispatch(ctx context.Context, call ToolCall) (result any) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Tool call panicked", "tool", call.Name, "tool_call_id", call.ID, "panic", r)
			result = errorResult(fmt.Sprintf("internal error in %s", call.Name))
		}
	}()

	args := call.Arguments
	if len(bytes.TrimSpace(args)) == 0 {
		args = json.RawMessage(`{}`)
	}

	if msg, ok := d.validate(call.Name, args); !ok {
		slog.Warn("Tool arguments rejected", "tool", call.Name, "tool_call_id", call.ID, "reason", msg)
		return errorResult(msg)
	}

	switch call.Name {
	case ToolGetCurrentDate:
		return d.now().Format(currentDateLayout)
	case ToolMakeReservation:
		return d.makeReservation(ctx, args)
	case ToolUpdateReservation:
		return d.updateReservation(ctx, args)
	default:
		// The tool set is fixed by the schema handed to the model;
		// an unknown name is a caller contract violation.
		return errorResult("unknown tool: " + call.Name)
	}
}

// validate checks the raw arguments against the tool's declared schema.
func (d *Dispatcher) validate(name string, args json.RawMessage) (string, bool) {
	sch, ok := d.validators[name]
	if !ok {
		return "unknown tool: " + name, false
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(args))
	if err != nil {
		return "arguments are not valid JSON: " + err.Error(), false
	}
	if err := sch.Validate(inst); err != nil {
		return "invalid arguments for " + name + ": " + err.Error(), false
	}
	return "", true
}

type makeReservationArgs struct {
	Summary         string   `json:"summary"`
	StartTime       string   `json:"start_time"`
	DurationMinutes int      `json:"duration_minutes"`
	Description     string   `json:"description"`
	Location        string   `json:"location"`
	Attendees       []string `json:"attendees"`
}

func (d *Dispatcher) makeReservation(ctx context.Context, raw json.RawMessage) any {
	var args makeReservationArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return errorResult("invalid arguments: " + err.Error())
	}
	if args.DurationMinutes <= 0 {
		args.DurationMinutes = defaultDurationMinutes
	}

	start, err := calendar.ParseTime(args.StartTime)
	if err != nil {
		return errorResult(err.Error())
	}

	ref, err := d.calendar.CreateEvent(ctx, calendar.CreateParams{
		Summary:         args.Summary,
		Start:           start,
		DurationMinutes: args.DurationMinutes,
		Description:     args.Description,
		Location:        args.Location,
		Attendees:       args.Attendees,
	})
	if err != nil {
		slog.Error("Create event failed", "error", err)
		return errorResult(fmt.Sprintf("Failed to create calendar event: %s", err))
	}

	slog.Info("Calendar event created", "event_id", ref.ID, "summary", args.Summary)
	return successResult(ref.ID, args.Summary, args.StartTime, ref.HTMLLink)
}

type updateReservationArgs struct {
	EventID string `json:"event_id"`
	makeReservationArgs
}

func (d *Dispatcher) updateReservation(ctx context.Context, raw json.RawMessage) any {
	var args updateReservationArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return errorResult("invalid arguments: " + err.Error())
	}
	if args.EventID == "" {
		return errorResult("Event ID is required")
	}

	var start *time.Time
	if args.StartTime != "" {
		t, err := calendar.ParseTime(args.StartTime)
		if err != nil {
			return errorResult(err.Error())
		}
		start = &t
	}

	ref, err := d.calendar.UpdateEvent(ctx, args.EventID, calendar.UpdateParams{
		Summary:         args.Summary,
		Start:           start,
		DurationMinutes: args.DurationMinutes,
		Description:     args.Description,
		Location:        args.Location,
		Attendees:       args.Attendees,
	})
	if err != nil {
		slog.Error("Update event failed", "event_id", args.EventID, "error", err)
		return errorResult(fmt.Sprintf("Failed to update calendar event: %s", err))
	}

	startTime := args.StartTime
	if startTime == "" && !ref.Start.IsZero() {
		startTime = ref.Start.Format(time.RFC3339)
	}

	slog.Info("Calendar event updated", "event_id", ref.ID)
	return successResult(ref.ID, ref.Summary, startTime, ref.HTMLLink)
}

func successResult(eventID, summary, startTime, link string) map[string]any {
	return map[string]any{
		"status":     "success",
		"event_id":   eventID,
		"summary":    summary,
		"start_time": startTime,
		"link":       link,
	}
}

func errorResult(message string) map[string]any {
	return map[string]any{
		"status":  "error",
		"message": message,
	}
}
