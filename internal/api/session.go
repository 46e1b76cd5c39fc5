package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ashureev/voicecal/internal/session"
	"github.com/go-chi/chi/v5"
)

// SessionStarter provisions one voice session and returns its room URL.
type SessionStarter interface {
	StartSession(ctx context.Context) (string, error)
}

// SessionHandler handles session provisioning endpoints.
type SessionHandler struct {
	provisioner SessionStarter
	registry    *session.Registry
}

// NewSessionHandler creates a session handler.
func NewSessionHandler(provisioner SessionStarter, registry *session.Registry) *SessionHandler {
	return &SessionHandler{provisioner: provisioner, registry: registry}
}

// RegisterRoutes registers session routes.
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/", h.Connect)
		r.Get("/sessions/{pid}", h.GetSession)
	})
}

// Connect provisions a room and an assistant process and redirects the
// caller into the room. Provisioning failures end the attempt before
// any audio session starts.
func (h *SessionHandler) Connect(w http.ResponseWriter, r *http.Request) {
	roomURL, err := h.provisioner.StartSession(r.Context())
	if err != nil {
		slog.Error("Failed to start session", "error", err)
		switch {
		case errors.Is(err, session.ErrRoomCreation):
			Error(w, http.StatusInternalServerError, "failed to create room")
		case errors.Is(err, session.ErrToken):
			Error(w, http.StatusInternalServerError, "failed to get room token")
		case errors.Is(err, session.ErrSpawn):
			Error(w, http.StatusInternalServerError, "failed to start assistant process")
		default:
			Error(w, http.StatusInternalServerError, "failed to start session")
		}
		return
	}

	http.Redirect(w, r, roomURL, http.StatusTemporaryRedirect)
}

// GetSession reports the room a tracked assistant process serves.
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	pid, err := strconv.Atoi(chi.URLParam(r, "pid"))
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid pid")
		return
	}

	_, roomURL, err := h.registry.Get(pid)
	if err != nil {
		Error(w, http.StatusNotFound, "session not found")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"pid":      pid,
		"room_url": roomURL,
	})
}
