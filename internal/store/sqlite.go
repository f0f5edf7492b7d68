package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sells-group/ownership-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS assignments (
	id                    TEXT PRIMARY KEY,
	timestamp             DATETIME NOT NULL,
	ci_id                 TEXT NOT NULL,
	ci_name               TEXT NOT NULL DEFAULT '',
	ci_class              TEXT NOT NULL DEFAULT '',
	previous_username     TEXT NOT NULL DEFAULT '',
	previous_display_name TEXT NOT NULL DEFAULT '',
	previous_sys_id       TEXT NOT NULL DEFAULT '',
	new_username          TEXT NOT NULL DEFAULT '',
	new_display_name      TEXT NOT NULL DEFAULT '',
	new_sys_id            TEXT NOT NULL DEFAULT '',
	instance_url          TEXT NOT NULL DEFAULT '',
	is_undo               INTEGER NOT NULL DEFAULT 0,
	undoes_assignment_id  TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS scan_runs (
	id         TEXT PRIMARY KEY,
	source     TEXT NOT NULL,
	summary    TEXT NOT NULL,
	result     TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS scan_run_cis (
	run_id               TEXT NOT NULL REFERENCES scan_runs(id),
	ci_id                TEXT NOT NULL,
	ci_name              TEXT NOT NULL,
	confidence           REAL NOT NULL,
	risk_level           TEXT NOT NULL,
	recommended_username TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_assignments_ci_id ON assignments(ci_id);
CREATE INDEX IF NOT EXISTS idx_assignments_timestamp ON assignments(timestamp);
DROP INDEX IF EXISTS idx_assignments_undoes;
CREATE UNIQUE INDEX IF NOT EXISTS idx_assignments_undo_once ON assignments(undoes_assignment_id) WHERE is_undo = 1;
CREATE INDEX IF NOT EXISTS idx_scan_runs_created_at ON scan_runs(created_at);
CREATE INDEX IF NOT EXISTS idx_scan_run_cis_run_id ON scan_run_cis(run_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const assignmentColumns = `id, timestamp, ci_id, ci_name, ci_class,
	previous_username, previous_display_name, previous_sys_id,
	new_username, new_display_name, new_sys_id,
	instance_url, is_undo, undoes_assignment_id`

func (s *SQLiteStore) AppendAssignment(ctx context.Context, a *model.Assignment) error {
	prepareAssignment(a)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO assignments (`+assignmentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		assignmentArgs(a)...,
	)
	var se *sqlite.Error
	if a.IsUndo && errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return eris.Wrapf(ErrDuplicateUndo, "sqlite: undo of %s", a.UndoesAssignmentID)
	}
	return eris.Wrapf(err, "sqlite: insert assignment for ci %s", a.CIID)
}

func (s *SQLiteStore) GetAssignment(ctx context.Context, id string) (*model.Assignment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+assignmentColumns+` FROM assignments WHERE id = ?`, id,
	)
	a, err := scanAssignment(row)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get assignment %s", id)
	}
	return a, nil
}

func (s *SQLiteStore) UndoOf(ctx context.Context, assignmentID string) (*model.Assignment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+assignmentColumns+` FROM assignments
		 WHERE is_undo = 1 AND undoes_assignment_id = ?
		 ORDER BY timestamp DESC LIMIT 1`,
		assignmentID,
	)
	a, err := scanAssignment(row)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: undo of %s", assignmentID)
	}
	return a, nil
}

func (s *SQLiteStore) ListAssignments(ctx context.Context, filter AssignmentFilter) ([]model.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments WHERE 1=1`
	var args []any

	if filter.CIID != "" {
		query += ` AND ci_id = ?`
		args = append(args, filter.CIID)
	}
	query += ` ORDER BY timestamp DESC, rowid DESC LIMIT ?`
	args = append(args, listLimit(filter.Limit))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list assignments")
	}
	defer rows.Close()

	out := []model.Assignment{}
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: list assignments")
		}
		out = append(out, *a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list assignments iterate")
}

func (s *SQLiteStore) SaveScanRun(ctx context.Context, run *model.ScanRun) error {
	summaryJSON, resultJSON, err := prepareScanRun(run)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin scan run")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO scan_runs (id, source, summary, result, created_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Source, string(summaryJSON), string(resultJSON), run.CreatedAt,
	); err != nil {
		return eris.Wrapf(err, "sqlite: insert scan run %s", run.ID)
	}

	for _, row := range scanRunCIRows(run) {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO scan_run_cis (`+scanRunCIColumnList+`) VALUES (?, ?, ?, ?, ?, ?)`,
			row...,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert scan run ci for %s", run.ID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit scan run")
}

func (s *SQLiteStore) LatestScanRun(ctx context.Context) (*model.ScanRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source, result, created_at FROM scan_runs ORDER BY created_at DESC, rowid DESC LIMIT 1`,
	)

	var run model.ScanRun
	var resultJSON string
	err := row.Scan(&run.ID, &run.Source, &resultJSON, &run.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: latest scan run")
	}
	run.Result = &model.ScanResult{}
	if err := json.Unmarshal([]byte(resultJSON), run.Result); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal scan result")
	}
	return &run, nil
}

func (s *SQLiteStore) ScanRunCIs(ctx context.Context, runID string) ([]ScanRunCI, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+scanRunCIColumnList+` FROM scan_run_cis WHERE run_id = ? ORDER BY ci_id`, runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list scan run cis %s", runID)
	}
	defer rows.Close()

	var out []ScanRunCI
	for rows.Next() {
		var c ScanRunCI
		var risk string
		if err := rows.Scan(&c.RunID, &c.CIID, &c.CIName, &c.Confidence, &risk, &c.RecommendedUsername); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run ci")
		}
		c.RiskLevel = model.RiskLevel(risk)
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: scan run cis iterate")
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanAssignment(row scannable) (*model.Assignment, error) {
	var a model.Assignment
	err := row.Scan(
		&a.ID, &a.Timestamp, &a.CIID, &a.CIName, &a.CIClass,
		&a.PreviousOwner.Username, &a.PreviousOwner.DisplayName, &a.PreviousOwner.SysID,
		&a.NewOwner.Username, &a.NewOwner.DisplayName, &a.NewOwner.SysID,
		&a.InstanceURL, &a.IsUndo, &a.UndoesAssignmentID,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func prepareAssignment(a *model.Assignment) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}
}

func assignmentArgs(a *model.Assignment) []any {
	return []any{
		a.ID, a.Timestamp, a.CIID, a.CIName, a.CIClass,
		a.PreviousOwner.Username, a.PreviousOwner.DisplayName, a.PreviousOwner.SysID,
		a.NewOwner.Username, a.NewOwner.DisplayName, a.NewOwner.SysID,
		a.InstanceURL, a.IsUndo, a.UndoesAssignmentID,
	}
}
