package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/ownership-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_MigrateIdempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.NoError(t, st.Migrate(context.Background()))
}

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "reopen.db")

	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Migrate(ctx))
	a := testAssignment("ci-9", baseTime)
	require.NoError(t, st.AppendAssignment(ctx, a))
	require.NoError(t, st.Close())

	st2, err := NewSQLite(dbPath)
	require.NoError(t, err)
	defer st2.Close() //nolint:errcheck

	got, err := st2.GetAssignment(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "ci-9", got.CIID)
}

func TestSQLite_DuplicateAssignmentID(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a := testAssignment("ci-1", baseTime)
	a.ID = "fixed-id"
	require.NoError(t, st.AppendAssignment(ctx, a))

	dup := testAssignment("ci-2", baseTime)
	dup.ID = "fixed-id"
	err := st.AppendAssignment(ctx, dup)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert assignment for ci ci-2")
}

func TestSQLite_SecondUndoRejected(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	orig := testAssignment("ci-1", baseTime)
	require.NoError(t, st.AppendAssignment(ctx, orig))
	// Plain assignments share an empty undoes_assignment_id without conflict.
	require.NoError(t, st.AppendAssignment(ctx, testAssignment("ci-1", baseTime.Add(time.Minute))))

	undo := testAssignment("ci-1", baseTime.Add(time.Hour))
	undo.IsUndo = true
	undo.UndoesAssignmentID = orig.ID
	require.NoError(t, st.AppendAssignment(ctx, undo))

	again := testAssignment("ci-1", baseTime.Add(2*time.Hour))
	again.IsUndo = true
	again.UndoesAssignmentID = orig.ID
	err := st.AppendAssignment(ctx, again)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrDuplicateUndo))

	got, err := st.UndoOf(ctx, orig.ID)
	require.NoError(t, err)
	assert.Equal(t, undo.ID, got.ID)
}

func TestSQLite_ScanRunWithNoStaleCIs(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run := &model.ScanRun{Source: "snapshot", Result: &model.ScanResult{}}
	require.NoError(t, st.SaveScanRun(ctx, run))

	cis, err := st.ScanRunCIs(ctx, run.ID)
	require.NoError(t, err)
	assert.Empty(t, cis)

	got, err := st.LatestScanRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, 0, got.Result.Summary.StaleCIsFound)
}

func TestSQLite_DefaultSource(t *testing.T) {
	st := newTestSQLiteStore(t)
	run := &model.ScanRun{Result: &model.ScanResult{}}
	require.NoError(t, st.SaveScanRun(context.Background(), run))
	assert.Equal(t, "unknown", run.Source)
	assert.NotEmpty(t, run.ID)
	assert.False(t, run.CreatedAt.IsZero())
}
