package session

import (
	"errors"
	"sync"
	"testing"
)

// fakeProcess implements Process for tests.
type fakeProcess struct {
	pid        int
	mu         sync.Mutex
	terminated bool
	waited     bool
	termErr    error
}

func (p *fakeProcess) Pid() int { return p.pid }

func (p *fakeProcess) Terminate() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.terminated = true
	return p.termErr
}

func (p *fakeProcess) Wait() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.waited = true
	return nil
}

func (p *fakeProcess) wasTerminated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.terminated
}

func (p *fakeProcess) wasWaited() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waited
}

func TestRegistryAddGet(t *testing.T) {
	r := NewRegistry()
	proc := &fakeProcess{pid: 42}

	if err := r.Add(proc, "https://example.daily.co/room-a"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	got, roomURL, err := r.Get(42)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != proc {
		t.Errorf("Get returned a different process handle")
	}
	if roomURL != "https://example.daily.co/room-a" {
		t.Errorf("Get returned room %q", roomURL)
	}
}

func TestRegistryAddDuplicatePid(t *testing.T) {
	r := NewRegistry()
	if err := r.Add(&fakeProcess{pid: 7}, "room-1"); err != nil {
		t.Fatalf("first Add failed: %v", err)
	}
	if err := r.Add(&fakeProcess{pid: 7}, "room-2"); err == nil {
		t.Fatal("expected error on duplicate pid, got nil")
	}
}

func TestRegistryRemove(t *testing.T) {
	r := NewRegistry()
	if err := r.Add(&fakeProcess{pid: 9}, "room"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if err := r.Remove(9); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, _, err := r.Get(9); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get after Remove: got %v, want ErrSessionNotFound", err)
	}
	if err := r.Remove(9); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("second Remove: got %v, want ErrSessionNotFound", err)
	}
}

func TestRegistryGetUnknown(t *testing.T) {
	r := NewRegistry()
	if _, _, err := r.Get(12345); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get: got %v, want ErrSessionNotFound", err)
	}
}

func TestRegistryCleanup(t *testing.T) {
	r := NewRegistry()
	procs := []*fakeProcess{{pid: 1}, {pid: 2}, {pid: 3}}
	for i, p := range procs {
		if err := r.Add(p, "room"); err != nil {
			t.Fatalf("Add %d failed: %v", i, err)
		}
	}

	r.Cleanup()

	if n := r.Len(); n != 0 {
		t.Errorf("registry has %d entries after Cleanup, want 0", n)
	}
	for _, p := range procs {
		if !p.wasTerminated() {
			t.Errorf("process %d was not terminated", p.pid)
		}
		if !p.wasWaited() {
			t.Errorf("process %d was not waited on", p.pid)
		}
	}

	// Second sweep is a no-op, not an error.
	r.Cleanup()
	if n := r.Len(); n != 0 {
		t.Errorf("registry has %d entries after second Cleanup, want 0", n)
	}
}

func TestRegistryCleanupEmpty(t *testing.T) {
	r := NewRegistry()
	r.Cleanup()
	if n := r.Len(); n != 0 {
		t.Errorf("registry has %d entries, want 0", n)
	}
}

func TestRegistryCleanupContinuesPastFailure(t *testing.T) {
	r := NewRegistry()
	stuck := &fakeProcess{pid: 1, termErr: errors.New("won't die")}
	ok := &fakeProcess{pid: 2}
	if err := r.Add(stuck, "room-1"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := r.Add(ok, "room-2"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	r.Cleanup()

	if !ok.wasTerminated() || !ok.wasWaited() {
		t.Error("sweep did not reach the healthy process after a failed terminate")
	}
	if n := r.Len(); n != 0 {
		t.Errorf("registry has %d entries after Cleanup, want 0", n)
	}
}

func TestRegistryConcurrentAddAndCleanup(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(pid int) {
			defer wg.Done()
			_ = r.Add(&fakeProcess{pid: pid}, "room")
		}(i + 1)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.Cleanup()
	}()
	wg.Wait()

	// Whatever interleaving happened, a final sweep must drain it.
	r.Cleanup()
	if n := r.Len(); n != 0 {
		t.Errorf("registry has %d entries after final Cleanup, want 0", n)
	}
}
