package session

import (
	"context"
	"errors"
	"testing"

	"github.com/ashureev/voicecal/internal/daily"
)

type fakeRooms struct {
	room     daily.Room
	roomErr  error
	token    string
	tokenErr error

	tokenCalls int
}

func (f *fakeRooms) CreateRoom(_ context.Context, _ daily.RoomParams) (daily.Room, error) {
	return f.room, f.roomErr
}

func (f *fakeRooms) GetToken(_ context.Context, _ string, _ int) (string, error) {
	f.tokenCalls++
	return f.token, f.tokenErr
}

type fakeLauncher struct {
	proc    Process
	err     error
	calls   int
	roomURL string
	token   string
}

func (f *fakeLauncher) launch(roomURL, token string) (Process, error) {
	f.calls++
	f.roomURL = roomURL
	f.token = token
	if f.err != nil {
		return nil, f.err
	}
	return f.proc, nil
}

func TestStartSession(t *testing.T) {
	rooms := &fakeRooms{
		room:  daily.Room{URL: "https://example.daily.co/abc", Name: "abc"},
		token: "tok-1",
	}
	launcher := &fakeLauncher{proc: &fakeProcess{pid: 101}}
	registry := NewRegistry()
	p := NewProvisioner(rooms, registry, launcher.launch, 3600)

	roomURL, err := p.StartSession(context.Background())
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	if roomURL != "https://example.daily.co/abc" {
		t.Errorf("StartSession returned %q", roomURL)
	}
	if launcher.roomURL != roomURL || launcher.token != "tok-1" {
		t.Errorf("launcher got (%q, %q), want room url and token", launcher.roomURL, launcher.token)
	}

	_, gotRoom, err := registry.Get(101)
	if err != nil {
		t.Fatalf("session not registered: %v", err)
	}
	if gotRoom != roomURL {
		t.Errorf("registry tracks room %q, want %q", gotRoom, roomURL)
	}
}

func TestStartSessionRoomCreationFails(t *testing.T) {
	rooms := &fakeRooms{roomErr: errors.New("upstream down")}
	launcher := &fakeLauncher{}
	registry := NewRegistry()
	p := NewProvisioner(rooms, registry, launcher.launch, 3600)

	_, err := p.StartSession(context.Background())
	if !errors.Is(err, ErrRoomCreation) {
		t.Fatalf("got %v, want ErrRoomCreation", err)
	}
	if rooms.tokenCalls != 0 {
		t.Error("token was requested after room creation failed")
	}
	if launcher.calls != 0 {
		t.Error("process was launched after room creation failed")
	}
}

func TestStartSessionEmptyRoomURL(t *testing.T) {
	rooms := &fakeRooms{room: daily.Room{URL: ""}}
	registry := NewRegistry()
	p := NewProvisioner(rooms, registry, (&fakeLauncher{}).launch, 3600)

	if _, err := p.StartSession(context.Background()); !errors.Is(err, ErrRoomCreation) {
		t.Fatalf("got %v, want ErrRoomCreation", err)
	}
}

// Room obtained, token step errors: no process spawned, no registry entry.
func TestStartSessionTokenFails(t *testing.T) {
	rooms := &fakeRooms{
		room:     daily.Room{URL: "https://example.daily.co/abc"},
		tokenErr: errors.New("no token for you"),
	}
	launcher := &fakeLauncher{proc: &fakeProcess{pid: 101}}
	registry := NewRegistry()
	p := NewProvisioner(rooms, registry, launcher.launch, 3600)

	_, err := p.StartSession(context.Background())
	if !errors.Is(err, ErrToken) {
		t.Fatalf("got %v, want ErrToken", err)
	}
	if launcher.calls != 0 {
		t.Error("process was launched after token failure")
	}
	if n := registry.Len(); n != 0 {
		t.Errorf("registry has %d entries, want 0", n)
	}
}

func TestStartSessionEmptyToken(t *testing.T) {
	rooms := &fakeRooms{room: daily.Room{URL: "https://example.daily.co/abc"}, token: ""}
	registry := NewRegistry()
	p := NewProvisioner(rooms, registry, (&fakeLauncher{}).launch, 3600)

	if _, err := p.StartSession(context.Background()); !errors.Is(err, ErrToken) {
		t.Fatalf("got %v, want ErrToken", err)
	}
}

func TestStartSessionSpawnFails(t *testing.T) {
	rooms := &fakeRooms{
		room:  daily.Room{URL: "https://example.daily.co/abc"},
		token: "tok-1",
	}
	launcher := &fakeLauncher{err: errors.New("exec: not found")}
	registry := NewRegistry()
	p := NewProvisioner(rooms, registry, launcher.launch, 3600)

	_, err := p.StartSession(context.Background())
	if !errors.Is(err, ErrSpawn) {
		t.Fatalf("got %v, want ErrSpawn", err)
	}
	if n := registry.Len(); n != 0 {
		t.Errorf("registry has %d entries after spawn failure, want 0", n)
	}
}
