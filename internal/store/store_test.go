package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/ownership-cli/internal/config"
	"github.com/sells-group/ownership-cli/internal/model"
)

func newTestSQLite(t *testing.T) Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

var baseTime = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func testAssignment(ciID string, at time.Time) *model.Assignment {
	return &model.Assignment{
		Timestamp:     at,
		CIID:          ciID,
		CIName:        "app-server-" + ciID,
		CIClass:       "cmdb_ci_server",
		PreviousOwner: model.OwnerRef{Username: "jdoe", DisplayName: "John Doe", SysID: "u1"},
		NewOwner:      model.OwnerRef{Username: "asmith", DisplayName: "Alice Smith", SysID: "u2"},
		InstanceURL:   "https://dev1234.service-now.com",
	}
}

func testScanResult() *model.ScanResult {
	return &model.ScanResult{
		Summary: model.ScanSummary{TotalCIsAnalyzed: 3, CIsWithOwners: 2, StaleCIsFound: 2, CriticalRisk: 1, HighRisk: 1},
		StaleCIs: []model.StaleCIResult{
			{
				CIID: "ci-1", CIName: "db01", IsStale: true, Confidence: 0.95, RiskLevel: model.RiskCritical,
				RecommendedOwners: []model.RecommendationCandidate{{Username: "asmith", Score: 75}},
			},
			{CIID: "ci-2", CIName: "web01", IsStale: true, Confidence: 0.85, RiskLevel: model.RiskHigh},
		},
		ScannedAt: baseTime,
	}
}

func storeTestSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("AppendAndGetAssignment", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		a := testAssignment("ci-1", baseTime)
		require.NoError(t, s.AppendAssignment(ctx, a))
		assert.NotEmpty(t, a.ID)

		got, err := s.GetAssignment(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, a.CIID, got.CIID)
		assert.Equal(t, "app-server-ci-1", got.CIName)
		assert.Equal(t, a.PreviousOwner, got.PreviousOwner)
		assert.Equal(t, a.NewOwner, got.NewOwner)
		assert.False(t, got.IsUndo)
		assert.Empty(t, got.UndoesAssignmentID)
		assert.True(t, got.Timestamp.Equal(baseTime))
	})

	t.Run("AppendFillsTimestamp", func(t *testing.T) {
		s := newStore(t)
		a := testAssignment("ci-1", time.Time{})
		require.NoError(t, s.AppendAssignment(context.Background(), a))
		assert.False(t, a.Timestamp.IsZero())
	})

	t.Run("GetAssignmentNotFound", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetAssignment(context.Background(), "missing")
		require.Error(t, err)
		assert.True(t, eris.Is(err, ErrNotFound))
	})

	t.Run("ListNewestFirst", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		for i, ci := range []string{"ci-1", "ci-2", "ci-3"} {
			require.NoError(t, s.AppendAssignment(ctx, testAssignment(ci, baseTime.Add(time.Duration(i)*time.Hour))))
		}

		list, err := s.ListAssignments(ctx, AssignmentFilter{})
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, "ci-3", list[0].CIID)
		assert.Equal(t, "ci-2", list[1].CIID)
		assert.Equal(t, "ci-1", list[2].CIID)
	})

	t.Run("ListFilterAndLimit", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.AppendAssignment(ctx, testAssignment("ci-1", baseTime)))
		require.NoError(t, s.AppendAssignment(ctx, testAssignment("ci-2", baseTime.Add(time.Hour))))
		require.NoError(t, s.AppendAssignment(ctx, testAssignment("ci-1", baseTime.Add(2*time.Hour))))

		list, err := s.ListAssignments(ctx, AssignmentFilter{CIID: "ci-1"})
		require.NoError(t, err)
		assert.Len(t, list, 2)
		for _, a := range list {
			assert.Equal(t, "ci-1", a.CIID)
		}

		list, err = s.ListAssignments(ctx, AssignmentFilter{Limit: 1})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "ci-1", list[0].CIID)
		assert.True(t, list[0].Timestamp.Equal(baseTime.Add(2*time.Hour)))

		list, err = s.ListAssignments(ctx, AssignmentFilter{Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "ci-2", list[0].CIID)
	})

	t.Run("ListEmpty", func(t *testing.T) {
		s := newStore(t)
		list, err := s.ListAssignments(context.Background(), AssignmentFilter{})
		require.NoError(t, err)
		assert.NotNil(t, list)
		assert.Empty(t, list)
	})

	t.Run("UndoOf", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		orig := testAssignment("ci-1", baseTime)
		require.NoError(t, s.AppendAssignment(ctx, orig))

		_, err := s.UndoOf(ctx, orig.ID)
		assert.True(t, eris.Is(err, ErrNotFound))

		undo := &model.Assignment{
			Timestamp:          baseTime.Add(time.Hour),
			CIID:               orig.CIID,
			CIName:             orig.CIName,
			CIClass:            orig.CIClass,
			PreviousOwner:      orig.NewOwner,
			NewOwner:           orig.PreviousOwner,
			InstanceURL:        orig.InstanceURL,
			IsUndo:             true,
			UndoesAssignmentID: orig.ID,
		}
		require.NoError(t, s.AppendAssignment(ctx, undo))

		got, err := s.UndoOf(ctx, orig.ID)
		require.NoError(t, err)
		assert.Equal(t, undo.ID, got.ID)
		assert.True(t, got.IsUndo)
		assert.Equal(t, "jdoe", got.NewOwner.Username)

		// The original record is untouched.
		first, err := s.GetAssignment(ctx, orig.ID)
		require.NoError(t, err)
		assert.False(t, first.IsUndo)
		assert.Equal(t, "asmith", first.NewOwner.Username)
	})

	t.Run("SaveAndLatestScanRun", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.LatestScanRun(ctx)
		assert.True(t, eris.Is(err, ErrNotFound))

		older := &model.ScanRun{Source: "snapshot", Result: testScanResult(), CreatedAt: baseTime}
		require.NoError(t, s.SaveScanRun(ctx, older))
		newer := &model.ScanRun{Source: "servicenow", Result: testScanResult(), CreatedAt: baseTime.Add(time.Hour)}
		newer.Result.Summary.StaleCIsFound = 7
		require.NoError(t, s.SaveScanRun(ctx, newer))

		got, err := s.LatestScanRun(ctx)
		require.NoError(t, err)
		assert.Equal(t, newer.ID, got.ID)
		assert.Equal(t, "servicenow", got.Source)
		require.NotNil(t, got.Result)
		assert.Equal(t, 7, got.Result.Summary.StaleCIsFound)
		require.Len(t, got.Result.StaleCIs, 2)
		assert.Equal(t, model.RiskCritical, got.Result.StaleCIs[0].RiskLevel)
	})

	t.Run("ScanRunCIs", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run := &model.ScanRun{Source: "snapshot", Result: testScanResult()}
		require.NoError(t, s.SaveScanRun(ctx, run))

		cis, err := s.ScanRunCIs(ctx, run.ID)
		require.NoError(t, err)
		require.Len(t, cis, 2)
		assert.Equal(t, "ci-1", cis[0].CIID)
		assert.Equal(t, "asmith", cis[0].RecommendedUsername)
		assert.Equal(t, model.RiskCritical, cis[0].RiskLevel)
		assert.InDelta(t, 0.95, cis[0].Confidence, 1e-9)
		assert.Empty(t, cis[1].RecommendedUsername)
	})

	t.Run("SaveScanRunWithoutResult", func(t *testing.T) {
		s := newStore(t)
		err := s.SaveScanRun(context.Background(), &model.ScanRun{Source: "snapshot"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no result")
	})
}

func TestSQLiteStore_Suite(t *testing.T) {
	storeTestSuite(t, newTestSQLite)
}

func TestOpen_SQLite(t *testing.T) {
	cfg := config.StoreConfig{Driver: "sqlite", DatabaseURL: filepath.Join(t.TempDir(), "open.db")}
	s, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer s.Close()

	list, err := s.ListAssignments(context.Background(), AssignmentFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.StoreConfig{Driver: "mysql", DatabaseURL: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown driver")
}

func TestListLimit(t *testing.T) {
	assert.Equal(t, defaultListLimit, listLimit(0))
	assert.Equal(t, defaultListLimit, listLimit(-5))
	assert.Equal(t, 10, listLimit(10))
}
