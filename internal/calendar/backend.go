package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultCalendarBaseURL = "https://www.googleapis.com/calendar/v3"

// ErrEventNotFound is returned when the backend has no event for an id.
var ErrEventNotFound = errors.New("event not found")

// BackendError reports a failed remote calendar call.
type BackendError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *BackendError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("calendar %s: status %d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("calendar %s: %s", e.Op, e.Message)
}

// Backend is the remote calendar surface the bridge depends on.
// Tests substitute an in-memory fake.
type Backend interface {
	Insert(ctx context.Context, ev *EventResource) (*EventResource, error)
	Get(ctx context.Context, eventID string) (*EventResource, error)
	Update(ctx context.Context, eventID string, ev *EventResource) (*EventResource, error)
}

// TokenProvider supplies a bearer token for backend calls.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// GoogleBackend implements Backend against the Google Calendar v3 REST API.
type GoogleBackend struct {
	calendarID string
	baseURL    string
	tokens     TokenProvider
	httpClient *http.Client
}

// NewGoogleBackend creates a backend bound to one calendar.
func NewGoogleBackend(calendarID string, tokens TokenProvider) *GoogleBackend {
	return &GoogleBackend{
		calendarID: calendarID,
		baseURL:    defaultCalendarBaseURL,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}
}

// WithBaseURL overrides the API base URL, used by tests.
func (g *GoogleBackend) WithBaseURL(base string) *GoogleBackend {
	g.baseURL = strings.TrimRight(base, "/")
	return g
}

// Insert creates a new event.
func (g *GoogleBackend) Insert(ctx context.Context, ev *EventResource) (*EventResource, error) {
	return g.do(ctx, http.MethodPost, g.eventsPath(""), "insert", ev)
}

// Get fetches an event by id.
func (g *GoogleBackend) Get(ctx context.Context, eventID string) (*EventResource, error) {
	return g.do(ctx, http.MethodGet, g.eventsPath(eventID), "get", nil)
}

// Update replaces an event by id.
func (g *GoogleBackend) Update(ctx context.Context, eventID string, ev *EventResource) (*EventResource, error) {
	return g.do(ctx, http.MethodPut, g.eventsPath(eventID), "update", ev)
}

func (g *GoogleBackend) eventsPath(eventID string) string {
	p := g.baseURL + "/calendars/" + url.PathEscape(g.calendarID) + "/events"
	if eventID != "" {
		p += "/" + url.PathEscape(eventID)
	}
	return p
}

func (g *GoogleBackend) do(ctx context.Context, method, u, op string, body *EventResource) (*EventResource, error) {
	token, err := g.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("calendar %s: %w", op, err)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("calendar %s: encode event: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("calendar %s: build request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, &BackendError{Op: op, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("calendar %s: %w", op, ErrEventNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &BackendError{Op: op, StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}

	var out EventResource
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &BackendError{Op: op, Message: "decode response: " + err.Error()}
	}
	return &out, nil
}
