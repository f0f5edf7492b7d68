package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/ownership-cli/internal/config"
	"github.com/sells-group/ownership-cli/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = eris.New("store: not found")

// ErrDuplicateUndo is returned when an undo record is appended for an
// assignment that already has one.
var ErrDuplicateUndo = eris.New("store: assignment already undone")

// AssignmentFilter specifies criteria for listing assignments.
type AssignmentFilter struct {
	CIID   string `json:"ci_id,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// AssignmentLog is an append-only record of owner changes. Records are never
// updated; an undo is a new record that references the assignment it
// reverts.
type AssignmentLog interface {
	AppendAssignment(ctx context.Context, a *model.Assignment) error
	GetAssignment(ctx context.Context, id string) (*model.Assignment, error)
	// UndoOf returns the undo record for an assignment, or ErrNotFound.
	UndoOf(ctx context.Context, assignmentID string) (*model.Assignment, error)
	// ListAssignments returns records newest first.
	ListAssignments(ctx context.Context, filter AssignmentFilter) ([]model.Assignment, error)
}

// ScanRunStore persists scan outcomes.
type ScanRunStore interface {
	SaveScanRun(ctx context.Context, run *model.ScanRun) error
	// LatestScanRun returns the most recent run, or ErrNotFound.
	LatestScanRun(ctx context.Context) (*model.ScanRun, error)
	// ScanRunCIs returns the flattened stale CI rows of a saved run ordered
	// by CI id.
	ScanRunCIs(ctx context.Context, runID string) ([]ScanRunCI, error)
}

// Store defines the persistence interface for the ownership service.
type Store interface {
	AssignmentLog
	ScanRunStore

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open connects to the configured backend and runs migrations.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var (
		st  Store
		err error
	)
	switch cfg.Driver {
	case "postgres":
		st, err = NewPostgres(ctx, cfg.DatabaseURL, nil)
	case "sqlite", "":
		st, err = NewSQLite(cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

const defaultListLimit = 100

func listLimit(n int) int {
	if n <= 0 {
		return defaultListLimit
	}
	return n
}
