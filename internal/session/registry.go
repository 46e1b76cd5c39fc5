// Package session provides the assistant-process registry and the
// session provisioner.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrSessionNotFound is returned when no session is tracked for a pid.
var ErrSessionNotFound = errors.New("session not found")

type entry struct {
	proc    Process
	roomURL string
}

// Registry is the process-wide table of running assistant processes,
// keyed by pid. It owns the process handles: termination goes through
// Cleanup or Remove, nobody else signals the processes.
type Registry struct {
	mu    sync.Mutex
	procs map[int]entry
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{procs: make(map[int]entry)}
}

// Add records a newly spawned assistant process. A duplicate pid means
// the provisioner handed the same process in twice; that is a
// programming error, not a recoverable condition.
func (r *Registry) Add(proc Process, roomURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	pid := proc.Pid()
	if _, exists := r.procs[pid]; exists {
		return fmt.Errorf("session for pid %d already registered", pid)
	}
	r.procs[pid] = entry{proc: proc, roomURL: roomURL}
	slog.Info("Session registered", "pid", pid, "room_url", roomURL)
	return nil
}

// Get returns the process handle and room URL tracked for a pid.
func (r *Registry) Get(pid int) (Process, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.procs[pid]
	if !ok {
		return nil, "", fmt.Errorf("pid %d: %w", pid, ErrSessionNotFound)
	}
	return e.proc, e.roomURL, nil
}

// Remove drops the entry for a pid without touching the process.
func (r *Registry) Remove(pid int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.procs[pid]; !ok {
		return fmt.Errorf("pid %d: %w", pid, ErrSessionNotFound)
	}
	delete(r.procs, pid)
	slog.Info("Session removed", "pid", pid)
	return nil
}

// Len returns the number of tracked sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.procs)
}

// Cleanup terminates every tracked process, waits for each to exit and
// drains the registry. It runs at server shutdown and is idempotent:
// with zero entries it is a no-op. A process that fails to terminate is
// logged and the sweep continues to the next entry.
func (r *Registry) Cleanup() {
	r.mu.Lock()
	entries := make(map[int]entry, len(r.procs))
	for pid, e := range r.procs {
		entries[pid] = e
	}
	r.procs = make(map[int]entry)
	r.mu.Unlock()

	for pid, e := range entries {
		slog.Info("Terminating session", "pid", pid, "room_url", e.roomURL)
		if err := e.proc.Terminate(); err != nil {
			slog.Warn("Failed to terminate session process", "pid", pid, "error", err)
			continue
		}
		if err := e.proc.Wait(); err != nil {
			slog.Warn("Session process exited with error", "pid", pid, "error", err)
		}
	}
}
