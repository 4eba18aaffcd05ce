// Package sqlitestore is the persistent StateStore adapter, backed by
// github.com/mattn/go-sqlite3 — already an indirect dependency of the
// teacher's podman stack, given a real job to do here: a durable table for
// process records that CleanupDangling can sweep on boot.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/caelus-sim/orchestrator/internal/process"
)

const schema = `
CREATE TABLE IF NOT EXISTS processes (
	id             TEXT PRIMARY KEY,
	issuer_id      TEXT NOT NULL,
	group_id       TEXT NOT NULL,
	operation_id   TEXT NOT NULL,
	image          TEXT NOT NULL,
	mission_payload TEXT NOT NULL,
	status         INTEGER NOT NULL,
	status_message TEXT NOT NULL,
	error_code     INTEGER,
	has_error_code INTEGER NOT NULL,
	created_at     INTEGER NOT NULL
);
`

// Store is a Store backed by a single SQLite file.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the SQLite database at dsn and ensures
// the schema exists.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open %s: %w", dsn, err)
	}

	// Every active Process's supervisor goroutine calls back into this
	// Store concurrently (spec.md §5: "StateStore writes must be safe
	// under concurrent callers"; O4 requires every transition committed
	// before the delegate returns). SQLite serializes writers internally
	// and returns SQLITE_BUSY on lock contention rather than queuing the
	// caller, and manager.OnStatusChanged only logs a write error rather
	// than retrying — so without a busy timeout a concurrent collision
	// would silently drop a status transition. A single pooled
	// connection plus a busy timeout serializes writers application-side
	// instead.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitestore: set busy_timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitestore: set journal_mode: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitestore: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) upsert(ctx context.Context, record process.Record) error {
	payload, err := json.Marshal(record.MissionPayload)
	if err != nil {
		return fmt.Errorf("sqlitestore: marshal payload: %w", err)
	}

	var errorCode sql.NullInt64
	hasErrorCode := 0
	if record.ErrorCode != nil {
		errorCode = sql.NullInt64{Int64: int64(*record.ErrorCode), Valid: true}
		hasErrorCode = 1
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO processes (id, issuer_id, group_id, operation_id, image, mission_payload, status, status_message, error_code, has_error_code, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			status_message = excluded.status_message,
			error_code = excluded.error_code,
			has_error_code = excluded.has_error_code
	`,
		record.ID, record.IssuerID, record.GroupID, record.OperationID, record.Image,
		string(payload), int(record.Status), record.StatusMessage,
		errorCode, hasErrorCode, record.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("sqlitestore: upsert: %w", err)
	}
	return nil
}

func (s *Store) StoreNewProcess(ctx context.Context, record process.Record) error {
	return s.upsert(ctx, record)
}

func (s *Store) UpdateProcessStatus(ctx context.Context, record process.Record) error {
	return s.upsert(ctx, record)
}

// CleanupDangling marks every record still in a non-terminal status
// (CREATED or RUNNING) as ERROR, per spec.md §4.5's boot sequence — a prior
// run's process can no longer be supervised once the orchestrator restarts.
func (s *Store) CleanupDangling(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE processes
		SET status = ?, status_message = 'abandoned: orchestrator restarted', has_error_code = 0, error_code = NULL
		WHERE status IN (?, ?)
	`, int(process.Error), int(process.Created), int(process.Running))
	if err != nil {
		return fmt.Errorf("sqlitestore: cleanup dangling: %w", err)
	}
	return nil
}
