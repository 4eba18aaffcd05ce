// Package containerhost defines the abstract ContainerHost capability
// (spec.md §6) and its two implementations: dockerhost, which talks to a
// real Docker Engine, and fakehost, a deterministic in-memory double for
// tests.
package containerhost

import (
	"context"
	"errors"
	"time"
)

// ErrWaitTimeout is returned by Wait when the container has not exited
// within the requested timeout. Process.monitor treats it like any other
// transient wait failure: loop again (spec.md §7).
var ErrWaitTimeout = errors.New("containerhost: wait timed out")

// Handle opaquely identifies a created container to its host.
type Handle string

// CreateOptions mirrors the container configuration spec.md §4.1 step 2
// requires: detached, no auto-remove, joined to a named network, stdin
// open, TTY on, with PAYLOAD passed via Env.
type CreateOptions struct {
	NetworkName string
	Env         []string
	OpenStdin   bool
	TTY         bool
}

// WaitResult is what Wait returns once the container has exited.
type WaitResult struct {
	ExitCode int
	Err      string // the underlying runtime's reported error, if any
}

// Host is the capability a Process's supervisor uses to run one container
// end to end.
type Host interface {
	// HasImage reports whether ref is present on the host, without pulling
	// it (spec.md: schedule() returns nil id when the image is missing).
	HasImage(ctx context.Context, ref string) (bool, error)

	Create(ctx context.Context, ref string, opts CreateOptions) (Handle, error)
	Start(ctx context.Context, h Handle) error

	// Wait blocks for at most timeout, returning ErrWaitTimeout if the
	// container has not exited by then.
	Wait(ctx context.Context, h Handle, timeout time.Duration) (WaitResult, error)

	// Stop requests termination, allowing grace before a forceful kill.
	Stop(ctx context.Context, h Handle, grace time.Duration) error

	Remove(ctx context.Context, h Handle) error
}
