// Package fakehost is a deterministic, in-memory containerhost.Host used by
// tests in place of a real Docker daemon, the way pkg/app/app_test.go and
// pkg/commands' tests in the teacher repo stand up fakes instead of hitting
// a live engine.
package fakehost

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/caelus-sim/orchestrator/internal/containerhost"
)

// Behavior scripts how a created container behaves: it exits with ExitCode
// after Delay, unless halted first (in which case Stop succeeds or fails
// according to StopFails).
type Behavior struct {
	Delay     time.Duration
	ExitCode  int
	ExitErr   string
	StopFails bool
	// CreateErr/StartErr, when set, make Create/Start fail instead of
	// succeeding, exercising spec.md's startup-failure path.
	CreateErr error
	StartErr  error
}

type instance struct {
	behavior Behavior
	started  time.Time
	stopped  bool
	removed  bool
}

// Host is a fake ContainerHost. Images named in Missing are reported absent
// by HasImage; every other image is considered present.
type Host struct {
	mu        sync.Mutex
	Missing   map[string]bool
	Behaviors map[string]Behavior // keyed by image ref
	instances map[containerhost.Handle]*instance
	nextID    int
}

// New constructs an empty fake host.
func New() *Host {
	return &Host{
		Missing:   map[string]bool{},
		Behaviors: map[string]Behavior{},
		instances: map[containerhost.Handle]*instance{},
	}
}

func (h *Host) HasImage(ctx context.Context, ref string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.Missing[ref], nil
}

func (h *Host) Create(ctx context.Context, ref string, opts containerhost.CreateOptions) (containerhost.Handle, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	behavior := h.Behaviors[ref]
	if behavior.CreateErr != nil {
		return "", behavior.CreateErr
	}

	h.nextID++
	handle := containerhost.Handle(fmt.Sprintf("fake-%d", h.nextID))
	h.instances[handle] = &instance{behavior: behavior}
	return handle, nil
}

func (h *Host) Start(ctx context.Context, handle containerhost.Handle) error {
	h.mu.Lock()
	inst, ok := h.instances[handle]
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("fakehost: unknown handle %q", handle)
	}
	if inst.behavior.StartErr != nil {
		return inst.behavior.StartErr
	}
	h.mu.Lock()
	inst.started = time.Now()
	h.mu.Unlock()
	return nil
}

func (h *Host) Wait(ctx context.Context, handle containerhost.Handle, timeout time.Duration) (containerhost.WaitResult, error) {
	h.mu.Lock()
	inst, ok := h.instances[handle]
	h.mu.Unlock()
	if !ok {
		return containerhost.WaitResult{}, fmt.Errorf("fakehost: unknown handle %q", handle)
	}

	remaining := inst.behavior.Delay - time.Since(inst.started)
	if remaining > timeout {
		select {
		case <-time.After(timeout):
			return containerhost.WaitResult{}, containerhost.ErrWaitTimeout
		case <-ctx.Done():
			return containerhost.WaitResult{}, ctx.Err()
		}
	}

	if remaining > 0 {
		select {
		case <-time.After(remaining):
		case <-ctx.Done():
			return containerhost.WaitResult{}, ctx.Err()
		}
	}

	h.mu.Lock()
	stopped := inst.stopped
	h.mu.Unlock()
	if stopped {
		return containerhost.WaitResult{}, containerhost.ErrWaitTimeout
	}

	return containerhost.WaitResult{ExitCode: inst.behavior.ExitCode, Err: inst.behavior.ExitErr}, nil
}

func (h *Host) Stop(ctx context.Context, handle containerhost.Handle, grace time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	inst, ok := h.instances[handle]
	if !ok {
		return fmt.Errorf("fakehost: unknown handle %q", handle)
	}
	if inst.behavior.StopFails {
		return fmt.Errorf("fakehost: stop failed for %q", handle)
	}
	inst.stopped = true
	return nil
}

func (h *Host) Remove(ctx context.Context, handle containerhost.Handle) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	inst, ok := h.instances[handle]
	if !ok {
		return fmt.Errorf("fakehost: unknown handle %q", handle)
	}
	inst.removed = true
	return nil
}

// Removed reports whether Remove was called for handle (used by tests to
// assert on DELETE_CONTAINERS behavior).
func (h *Host) Removed(handle containerhost.Handle) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	inst, ok := h.instances[handle]
	return ok && inst.removed
}
