package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/survey-sampler/internal/model"
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
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	input      TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	params     TEXT NOT NULL,
	seed       TEXT NOT NULL DEFAULT '',
	totals     TEXT,
	warnings   INTEGER NOT NULL DEFAULT 0,
	error      TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
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

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, input string, params model.Params) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal params")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, input, status, params, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, input, string(model.RunStatusRunning), string(paramsJSON), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
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

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, result *model.Result) error {
	totalsJSON, err := json.Marshal(result.Totals)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal totals")
	}
	paramsJSON, err := json.Marshal(result.Params)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal params")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`UPDATE runs SET status = ?, params = ?, seed = ?, totals = ?, warnings = ?, updated_at = ? WHERE id = ?`,
		string(model.RunStatusComplete), string(paramsJSON), strconv.FormatUint(result.Seed, 10),
		string(totalsJSON), len(result.Warnings), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run %s", runID)
	}
	if err := checkRowsAffected(res, runID); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO allocations (`+strings.Join(allocationColumns, ", ")+`) VALUES (?`+strings.Repeat(", ?", len(allocationColumns)-1)+`)`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare allocation insert")
	}
	defer stmt.Close() //nolint:errcheck

	for i, a := range result.Allocations {
		if _, err := stmt.ExecContext(ctx, allocationRow(runID, i, a)...); err != nil {
			return eris.Wrapf(err, "sqlite: insert allocation %s", a.UniqueID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit run")
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, runErr error) error {
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(model.RunStatusFailed), msg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, runID)
}

const sqliteRunColumns = `id, input, status, params, seed, totals, warnings, error, created_at, updated_at`

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteRunColumns+` FROM runs WHERE id = ?`,
		runID,
	)
	r, err := scanRun(row)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	return r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + sqliteRunColumns + ` FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Input != "" {
		query += ` AND input = ?`
		args = append(args, filter.Input)
	}
	query += ` ORDER BY created_at DESC, id`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) ListAllocations(ctx context.Context, runID string) ([]model.Allocation, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+strings.Join(allocationColumns[2:], ", ")+` FROM allocations WHERE run_id = ? ORDER BY position`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list allocations %s", runID)
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Allocation
	for rows.Next() {
		a, err := scanAllocation(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan allocation")
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list allocations iterate")
}

func checkRowsAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrRunNotFound, "run %s", id)
	}
	return nil
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var status, paramsJSON, seed string
	var totalsJSON sql.NullString

	err := row.Scan(&r.ID, &r.Input, &status, &paramsJSON, &seed, &totalsJSON, &r.Warnings, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrap(ErrRunNotFound, "sqlite: scan run")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	r.Status = model.RunStatus(status)
	if err := decodeRun(&r, []byte(paramsJSON), seed, totalsJSON.Valid, []byte(totalsJSON.String)); err != nil {
		return nil, eris.Wrap(err, "sqlite: decode run")
	}
	return &r, nil
}

// decodeRun fills the JSON-encoded and textual columns of a run.
func decodeRun(r *model.Run, params []byte, seed string, hasTotals bool, totals []byte) error {
	if err := json.Unmarshal(params, &r.Params); err != nil {
		return eris.Wrap(err, "unmarshal params")
	}
	if seed != "" {
		v, err := strconv.ParseUint(seed, 10, 64)
		if err != nil {
			return eris.Wrapf(err, "parse seed %q", seed)
		}
		r.Seed = v
	}
	if hasTotals {
		r.Totals = &model.Totals{}
		if err := json.Unmarshal(totals, r.Totals); err != nil {
			return eris.Wrap(err, "unmarshal totals")
		}
	}
	return nil
}

var _ Store = (*SQLiteStore)(nil)
