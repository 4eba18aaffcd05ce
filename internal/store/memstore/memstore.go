// Package memstore is an in-process StateStore backed by a plain map. It is
// the default store for tests and for short-lived demo runs; sqlitestore is
// the persistent alternative.
package memstore

import (
	"context"
	"sync"

	"github.com/caelus-sim/orchestrator/internal/process"
)

// Store is a StateStore with no durability across process restarts: its
// CleanupDangling is therefore a no-op, since an in-memory store never
// survives to see a "prior run".
type Store struct {
	mu      sync.Mutex
	records map[string]process.Record
}

// New returns an empty Store.
func New() *Store {
	return &Store{records: map[string]process.Record{}}
}

func (s *Store) StoreNewProcess(ctx context.Context, record process.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.ID] = record
	return nil
}

func (s *Store) UpdateProcessStatus(ctx context.Context, record process.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.ID] = record
	return nil
}

func (s *Store) CleanupDangling(ctx context.Context) error {
	return nil
}

// Get returns the record stored for id, for test assertions.
func (s *Store) Get(id string) (process.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	return r, ok
}

// All returns a snapshot of every stored record.
func (s *Store) All() []process.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]process.Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	return out
}
