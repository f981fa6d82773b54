package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/survey-sampler/internal/db"
	"github.com/sells-group/survey-sampler/internal/model"
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

// preparedStatements lists queries to prepare on each new connection.
var preparedStatements = map[string]string{
	"insert_run":   `INSERT INTO runs (id, input, status, params, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
	"fail_run":     `UPDATE runs SET status = $1, error = $2, updated_at = $3 WHERE id = $4`,
	"get_run":      `SELECT ` + postgresRunColumns + ` FROM runs WHERE id = $1`,
	"complete_run": `UPDATE runs SET status = $1, params = $2, seed = $3, totals = $4, warnings = $5, updated_at = $6 WHERE id = $7`,
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

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	input      TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	params     JSONB NOT NULL,
	seed       TEXT NOT NULL DEFAULT '',
	totals     JSONB,
	warnings   INTEGER NOT NULL DEFAULT 0,
	error      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS allocations (
	run_id                  TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	position                INTEGER NOT NULL,
	unique_id               TEXT NOT NULL,
	site_id                 TEXT NOT NULL,
	name                    TEXT NOT NULL,
	admin                   TEXT NOT NULL,
	stratum                 TEXT NOT NULL,
	households              INTEGER NOT NULL,
	stratum_name            TEXT NOT NULL,
	psu_type                TEXT NOT NULL,
	selections              INTEGER NOT NULL,
	original_target         INTEGER NOT NULL,
	target                  INTEGER NOT NULL,
	effective_limit         INTEGER NOT NULL,
	is_constrained          BOOLEAN NOT NULL,
	excess                  INTEGER NOT NULL,
	received_redistribution BOOLEAN NOT NULL,
	PRIMARY KEY (run_id, position)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_input ON runs(input);
CREATE INDEX IF NOT EXISTS idx_allocations_unique_id ON allocations(run_id, unique_id);
`

const postgresRunColumns = `id, input, status, params, seed, totals, warnings, error, created_at, updated_at`

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

func (s *PostgresStore) CreateRun(ctx context.Context, input string, params model.Params) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal params")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, input, status, params, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, input, string(model.RunStatusRunning), paramsJSON, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		Input:     input,
		Status:    model.RunStatusRunning,
		Params:    params,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, result *model.Result) error {
	totalsJSON, err := json.Marshal(result.Totals)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal totals")
	}
	paramsJSON, err := json.Marshal(result.Params)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal params")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`UPDATE runs SET status = $1, params = $2, seed = $3, totals = $4, warnings = $5, updated_at = $6 WHERE id = $7`,
		string(model.RunStatusComplete), paramsJSON, strconv.FormatUint(result.Seed, 10),
		totalsJSON, len(result.Warnings), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrRunNotFound, "run %s", runID)
	}

	rows := make([][]any, len(result.Allocations))
	for i, a := range result.Allocations {
		rows[i] = allocationRow(runID, i, a)
	}
	if _, err := db.CopyFrom(ctx, tx, "allocations", allocationColumns, rows); err != nil {
		return eris.Wrapf(err, "postgres: copy allocations for run %s", runID)
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit run")
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, runErr error) error {
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, error = $2, updated_at = $3 WHERE id = $4`,
		string(model.RunStatusFailed), msg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrRunNotFound, "run %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+postgresRunColumns+` FROM runs WHERE id = $1`,
		runID,
	)
	r, err := scanPgRun(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + postgresRunColumns + ` FROM runs WHERE 1=1`
	var args []any
	n := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, n)
		args = append(args, string(filter.Status))
		n++
	}
	if filter.Input != "" {
		query += fmt.Sprintf(` AND input = $%d`, n)
		args = append(args, filter.Input)
		n++
	}
	query += ` ORDER BY created_at DESC, id`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += fmt.Sprintf(` LIMIT $%d`, n)
	args = append(args, limit)
	n++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, n)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: list runs")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) ListAllocations(ctx context.Context, runID string) ([]model.Allocation, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+strings.Join(allocationColumns[2:], ", ")+` FROM allocations WHERE run_id = $1 ORDER BY position`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list allocations %s", runID)
	}
	defer rows.Close()

	var out []model.Allocation
	for rows.Next() {
		a, err := scanAllocation(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan allocation")
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list allocations iterate")
}

func scanPgRun(row scannable) (*model.Run, error) {
	var r model.Run
	var status, seed string
	var paramsJSON, totalsJSON []byte

	err := row.Scan(&r.ID, &r.Input, &status, &paramsJSON, &seed, &totalsJSON, &r.Warnings, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan run")
	}
	r.Status = model.RunStatus(status)
	if err := decodeRun(&r, paramsJSON, seed, totalsJSON != nil, totalsJSON); err != nil {
		return nil, err
	}
	return &r, nil
}

var _ Store = (*PostgresStore)(nil)
