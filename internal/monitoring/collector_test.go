package monitoring

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/ownership-cli/internal/model"
	"github.com/sells-group/ownership-cli/internal/store"
)

var collectNow = time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "monitoring.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func newTestCollector(st store.Store) *Collector {
	c := NewCollector(st)
	c.now = func() time.Time { return collectNow }
	return c
}

func TestCollector_Empty(t *testing.T) {
	snap, err := newTestCollector(newTestStore(t)).Collect(context.Background(), 24)
	require.NoError(t, err)
	assert.Empty(t, snap.LatestScanID)
	assert.Nil(t, snap.LatestSummary)
	assert.Zero(t, snap.Assignments)
	assert.Equal(t, 24, snap.LookbackHours)
	assert.Equal(t, collectNow, snap.CollectedAt)
}

func TestCollector_Collect(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	require.NoError(t, st.SaveScanRun(ctx, &model.ScanRun{
		Source:    "scheduled",
		CreatedAt: collectNow.Add(-time.Hour),
		Result:    &model.ScanResult{Summary: model.ScanSummary{TotalCIsAnalyzed: 5, CriticalRisk: 1}},
	}))

	for i, at := range []time.Duration{-2 * time.Hour, -3 * time.Hour, -30 * time.Hour} {
		require.NoError(t, st.AppendAssignment(ctx, &model.Assignment{
			Timestamp: collectNow.Add(at),
			CIID:      "ci-1",
			IsUndo:    i == 0,
		}))
	}

	snap, err := newTestCollector(st).Collect(ctx, 24)
	require.NoError(t, err)
	assert.NotEmpty(t, snap.LatestScanID)
	assert.Equal(t, "scheduled", snap.LatestSource)
	require.NotNil(t, snap.LatestSummary)
	assert.Equal(t, 5, snap.LatestSummary.TotalCIsAnalyzed)
	require.NotNil(t, snap.LatestScanAt)
	assert.True(t, snap.LatestScanAt.Equal(collectNow.Add(-time.Hour)))
	assert.Equal(t, 1, snap.Assignments)
	assert.Equal(t, 1, snap.Undos)
}
