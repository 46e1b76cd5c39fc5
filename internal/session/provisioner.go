package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ashureev/voicecal/internal/daily"
)

// Provisioning failure modes group under these sentinels so the HTTP
// boundary can report which step failed without parsing messages.
var (
	// ErrRoomCreation means the room provider returned no usable room.
	ErrRoomCreation = errors.New("room creation failed")

	// ErrToken means no credential was issued for the room.
	ErrToken = errors.New("token acquisition failed")

	// ErrSpawn means the assistant process could not be started.
	ErrSpawn = errors.New("assistant process spawn failed")
)

// RoomProvider is the subset of the Daily client the provisioner uses.
type RoomProvider interface {
	CreateRoom(ctx context.Context, params daily.RoomParams) (daily.Room, error)
	GetToken(ctx context.Context, roomURL string, expirySeconds int) (string, error)
}

// Provisioner creates a room, issues a scoped token and launches one
// isolated assistant process bound to both.
type Provisioner struct {
	rooms       RoomProvider
	registry    *Registry
	launch      Launcher
	tokenExpiry int
}

// NewProvisioner creates a session provisioner.
func NewProvisioner(rooms RoomProvider, registry *Registry, launch Launcher, tokenExpirySecs int) *Provisioner {
	return &Provisioner{
		rooms:       rooms,
		registry:    registry,
		launch:      launch,
		tokenExpiry: tokenExpirySecs,
	}
}

// StartSession provisions a room and credential, spawns the assistant
// process and registers it. On success exactly one process is running
// and tracked; on failure none is.
//
// A spawn failure after the room and token were created leaves them
// unused; Daily rooms expire on their own and the token is scoped to
// that room, so no compensating cleanup is attempted here.
func (p *Provisioner) StartSession(ctx context.Context) (string, error) {
	room, err := p.rooms.CreateRoom(ctx, daily.RoomParams{})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRoomCreation, err)
	}
	if room.URL == "" {
		return "", fmt.Errorf("%w: provider returned empty room url", ErrRoomCreation)
	}

	token, err := p.rooms.GetToken(ctx, room.URL, p.tokenExpiry)
	if err != nil {
		return "", fmt.Errorf("%w: room %s: %v", ErrToken, room.URL, err)
	}
	if token == "" {
		return "", fmt.Errorf("%w: provider returned empty token for room %s", ErrToken, room.URL)
	}

	// The spawn happens outside the registry lock; only Add below
	// touches shared state.
	proc, err := p.launch(room.URL, token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSpawn, err)
	}

	if err := p.registry.Add(proc, room.URL); err != nil {
		return "", fmt.Errorf("register session: %w", err)
	}

	slog.Info("Session started", "pid", proc.Pid(), "room_url", room.URL)
	return room.URL, nil
}
