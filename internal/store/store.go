// Package store defines the abstract StateStore capability (spec.md §6).
package store

import (
	"context"

	"github.com/caelus-sim/orchestrator/internal/process"
)

// Store persists process records and recovers from a prior run's dangling
// state on boot.
type Store interface {
	StoreNewProcess(ctx context.Context, record process.Record) error
	UpdateProcessStatus(ctx context.Context, record process.Record) error

	// CleanupDangling marks any record still in a non-terminal state from a
	// prior run as ERROR (spec.md §4.5 "Boot sequence").
	CleanupDangling(ctx context.Context) error
}
