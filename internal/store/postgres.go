package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/ownership-cli/internal/db"
	"github.com/sells-group/ownership-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const pgAssignmentSelect = `SELECT ` + assignmentColumns + ` FROM assignments`

// preparedStatements lists queries to prepare on each new connection.
var preparedStatements = map[string]string{
	"insert_assignment": `INSERT INTO assignments (` + assignmentColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
	"get_assignment":    pgAssignmentSelect + ` WHERE id = $1`,
	"undo_of":           pgAssignmentSelect + ` WHERE is_undo AND undoes_assignment_id = $1 ORDER BY timestamp DESC LIMIT 1`,
	"latest_scan_run":   `SELECT id, source, result, created_at FROM scan_runs ORDER BY created_at DESC LIMIT 1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS assignments (
	id                    TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	timestamp             TIMESTAMPTZ NOT NULL DEFAULT now(),
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
	is_undo               BOOLEAN NOT NULL DEFAULT false,
	undoes_assignment_id  TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS scan_runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	source     TEXT NOT NULL,
	summary    JSONB NOT NULL,
	result     JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS scan_run_cis (
	run_id               TEXT NOT NULL REFERENCES scan_runs(id) ON DELETE CASCADE,
	ci_id                TEXT NOT NULL,
	ci_name              TEXT NOT NULL,
	confidence           DOUBLE PRECISION NOT NULL,
	risk_level           TEXT NOT NULL,
	recommended_username TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_assignments_ci_id ON assignments(ci_id);
CREATE INDEX IF NOT EXISTS idx_assignments_timestamp ON assignments(timestamp DESC);
DROP INDEX IF EXISTS idx_assignments_undoes;
CREATE UNIQUE INDEX IF NOT EXISTS idx_assignments_undo_once ON assignments(undoes_assignment_id) WHERE is_undo;
CREATE INDEX IF NOT EXISTS idx_scan_runs_created_at ON scan_runs(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_scan_run_cis_run_id ON scan_run_cis(run_id);
CREATE INDEX IF NOT EXISTS idx_scan_run_cis_recommended ON scan_run_cis(recommended_username);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) AppendAssignment(ctx context.Context, a *model.Assignment) error {
	prepareAssignment(a)
	_, err := s.pool.Exec(ctx, preparedStatements["insert_assignment"], assignmentArgs(a)...)
	var pgErr *pgconn.PgError
	if a.IsUndo && errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "idx_assignments_undo_once" {
		return eris.Wrapf(ErrDuplicateUndo, "postgres: undo of %s", a.UndoesAssignmentID)
	}
	return eris.Wrapf(err, "postgres: insert assignment for ci %s", a.CIID)
}

func (s *PostgresStore) GetAssignment(ctx context.Context, id string) (*model.Assignment, error) {
	a, err := pgScanAssignment(s.pool.QueryRow(ctx, preparedStatements["get_assignment"], id))
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get assignment %s", id)
	}
	return a, nil
}

func (s *PostgresStore) UndoOf(ctx context.Context, assignmentID string) (*model.Assignment, error) {
	a, err := pgScanAssignment(s.pool.QueryRow(ctx, preparedStatements["undo_of"], assignmentID))
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: undo of %s", assignmentID)
	}
	return a, nil
}

func (s *PostgresStore) ListAssignments(ctx context.Context, filter AssignmentFilter) ([]model.Assignment, error) {
	query := pgAssignmentSelect + ` WHERE true`
	args := []any{}
	argIdx := 1

	if filter.CIID != "" {
		query += fmt.Sprintf(` AND ci_id = $%d`, argIdx)
		args = append(args, filter.CIID)
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY timestamp DESC, id DESC LIMIT $%d`, argIdx)
	args = append(args, listLimit(filter.Limit))
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list assignments")
	}
	defer rows.Close()

	out := []model.Assignment{}
	for rows.Next() {
		a, err := pgScanAssignment(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan assignment")
		}
		out = append(out, *a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list assignments iterate")
}

// SaveScanRun writes the run row and bulk-loads its stale CIs with COPY in a
// single transaction.
func (s *PostgresStore) SaveScanRun(ctx context.Context, run *model.ScanRun) error {
	summaryJSON, resultJSON, err := prepareScanRun(run)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin scan run")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`INSERT INTO scan_runs (id, source, summary, result, created_at) VALUES ($1, $2, $3, $4, $5)`,
		run.ID, run.Source, summaryJSON, resultJSON, run.CreatedAt,
	); err != nil {
		return eris.Wrapf(err, "postgres: insert scan run %s", run.ID)
	}

	if _, err := db.CopyFrom(ctx, tx, "scan_run_cis", scanRunCIColumns, scanRunCIRows(run)); err != nil {
		return eris.Wrapf(err, "postgres: load scan run cis %s", run.ID)
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit scan run")
}

func (s *PostgresStore) LatestScanRun(ctx context.Context) (*model.ScanRun, error) {
	var run model.ScanRun
	var resultJSON []byte

	err := s.pool.QueryRow(ctx, preparedStatements["latest_scan_run"]).
		Scan(&run.ID, &run.Source, &resultJSON, &run.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: latest scan run")
	}
	run.Result = &model.ScanResult{}
	if err := json.Unmarshal(resultJSON, run.Result); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal scan result")
	}
	return &run, nil
}

func (s *PostgresStore) ScanRunCIs(ctx context.Context, runID string) ([]ScanRunCI, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+scanRunCIColumnList+` FROM scan_run_cis WHERE run_id = $1 ORDER BY ci_id`, runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list scan run cis %s", runID)
	}
	defer rows.Close()

	var out []ScanRunCI
	for rows.Next() {
		var c ScanRunCI
		var risk string
		if err := rows.Scan(&c.RunID, &c.CIID, &c.CIName, &c.Confidence, &risk, &c.RecommendedUsername); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run ci")
		}
		c.RiskLevel = model.RiskLevel(risk)
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: scan run cis iterate")
}

func pgScanAssignment(row scannable) (*model.Assignment, error) {
	var a model.Assignment
	err := row.Scan(
		&a.ID, &a.Timestamp, &a.CIID, &a.CIName, &a.CIClass,
		&a.PreviousOwner.Username, &a.PreviousOwner.DisplayName, &a.PreviousOwner.SysID,
		&a.NewOwner.Username, &a.NewOwner.DisplayName, &a.NewOwner.SysID,
		&a.InstanceURL, &a.IsUndo, &a.UndoesAssignmentID,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}
