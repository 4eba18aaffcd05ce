package sqlitestore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caelus-sim/orchestrator/internal/process"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func sampleRecord(id string, status process.Status) process.Record {
	return process.Record{
		ID:             id,
		IssuerID:       "issuer-1",
		GroupID:        "group-1",
		OperationID:    "op-1",
		Image:          "sim:latest",
		MissionPayload: map[string]any{"operation_id": "op-1"},
		Status:         status,
		StatusMessage:  "",
		CreatedAt:      time.Unix(1000, 0),
	}
}

func TestSqliteStore_StoreAndUpdateUpsert(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	record := sampleRecord("p1", process.Created)
	require.NoError(t, st.StoreNewProcess(ctx, record))

	record.Status = process.Running
	require.NoError(t, st.UpdateProcessStatus(ctx, record))

	var status int
	err := st.db.QueryRowContext(ctx, `SELECT status FROM processes WHERE id = ?`, "p1").Scan(&status)
	require.NoError(t, err)
	assert.Equal(t, int(process.Running), status)
}

func TestSqliteStore_UpsertPersistsErrorCode(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	code := process.TooMuchWind
	record := sampleRecord("p2", process.Error)
	record.ErrorCode = &code
	require.NoError(t, st.StoreNewProcess(ctx, record))

	var errorCode int64
	var hasErrorCode int
	err := st.db.QueryRowContext(ctx, `SELECT error_code, has_error_code FROM processes WHERE id = ?`, "p2").Scan(&errorCode, &hasErrorCode)
	require.NoError(t, err)
	assert.Equal(t, int64(process.TooMuchWind), errorCode)
	assert.Equal(t, 1, hasErrorCode)
}

func TestSqliteStore_CleanupDanglingMarksNonTerminalAsError(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.StoreNewProcess(ctx, sampleRecord("running", process.Running)))
	require.NoError(t, st.StoreNewProcess(ctx, sampleRecord("created", process.Created)))
	require.NoError(t, st.StoreNewProcess(ctx, sampleRecord("terminated", process.Terminated)))

	require.NoError(t, st.CleanupDangling(ctx))

	for _, id := range []string{"running", "created"} {
		var status int
		err := st.db.QueryRowContext(ctx, `SELECT status FROM processes WHERE id = ?`, id).Scan(&status)
		require.NoError(t, err)
		assert.Equal(t, int(process.Error), status, "id %s should have been marked ERROR", id)
	}

	var status int
	err := st.db.QueryRowContext(ctx, `SELECT status FROM processes WHERE id = ?`, "terminated").Scan(&status)
	require.NoError(t, err)
	assert.Equal(t, int(process.Terminated), status, "a terminal record must not be touched by cleanup")
}
