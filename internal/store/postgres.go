package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/funding-intake/internal/db"
	"github.com/sells-group/funding-intake/internal/model"
)

// PostgresStore implements Store on a pgx pool.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres opens a pool for connString.
func NewPostgres(ctx context.Context, connString string, poolCfg db.PoolConfig) (*PostgresStore, error) {
	pool, err := db.Open(ctx, connString, poolCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: open")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	kind       TEXT NOT NULL,
	request    JSONB NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	result     JSONB,
	error_kind TEXT NOT NULL DEFAULT '',
	error      TEXT NOT NULL DEFAULT '',
	pushes     JSONB NOT NULL DEFAULT '[]'::jsonb,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS records (
	table_name TEXT NOT NULL,
	key        TEXT NOT NULL,
	name       TEXT NOT NULL DEFAULT '',
	run_id     TEXT NOT NULL,
	data       JSONB NOT NULL,
	result     JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (table_name, key)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_kind ON runs(kind);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);
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
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, req model.ExtractionRequest) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal request")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, kind, request, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, string(req.Kind), reqJSON, string(model.RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		Kind:      req.Kind,
		Request:   req,
		Status:    model.RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, result *model.NormalizedResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal result")
	}
	return s.updateRun(ctx, "complete run", runID,
		`UPDATE runs SET result = $1, status = $2, error_kind = '', error = '', updated_at = $3 WHERE id = $4`,
		resultJSON, string(model.RunStatusPendingReview), time.Now().UTC(), runID,
	)
}

func (s *PostgresStore) FailRun(ctx context.Context, runID, errorKind, message string) error {
	return s.updateRun(ctx, "fail run", runID,
		`UPDATE runs SET status = $1, error_kind = $2, error = $3, updated_at = $4 WHERE id = $5`,
		string(model.RunStatusFailed), errorKind, message, time.Now().UTC(), runID,
	)
}

func (s *PostgresStore) RecordPush(ctx context.Context, runID string, push model.Push) error {
	pushJSON, err := json.Marshal([]model.Push{push})
	if err != nil {
		return eris.Wrap(err, "postgres: marshal push")
	}
	return s.updateRun(ctx, "record push", runID,
		`UPDATE runs SET pushes = pushes || $1::jsonb, status = $2, updated_at = $3 WHERE id = $4`,
		pushJSON, string(model.RunStatusApproved), time.Now().UTC(), runID,
	)
}

func (s *PostgresStore) updateRun(ctx context.Context, op, runID, sql string, args ...any) error {
	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return eris.Wrapf(err, "postgres: %s %s", op, runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	r, err := scanPgRun(s.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM runs WHERE id = $1`, runID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Kind != "" {
		query += fmt.Sprintf(` AND kind = $%d`, argIdx)
		args = append(args, string(filter.Kind))
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if !filter.CreatedAfter.IsZero() {
		query += fmt.Sprintf(` AND created_at >= $%d`, argIdx)
		args = append(args, filter.CreatedAfter.UTC())
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, argIdx)
	args = append(args, limitOrDefault(filter.Limit))
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
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
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) WriteRecord(ctx context.Context, rec Record) error {
	dataJSON, err := json.Marshal(rec.Data)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal record")
	}
	resultJSON, err := json.Marshal(rec.Result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal record result")
	}
	now := time.Now().UTC()

	_, err = s.pool.Exec(ctx,
		`INSERT INTO records (table_name, key, name, run_id, data, result, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (table_name, key) DO UPDATE SET
		   name = EXCLUDED.name, run_id = EXCLUDED.run_id, data = EXCLUDED.data,
		   result = EXCLUDED.result, updated_at = EXCLUDED.updated_at`,
		rec.Table, rec.Key, rec.Name, rec.RunID, dataJSON, resultJSON, now, now,
	)
	return eris.Wrapf(err, "postgres: write record %s/%s", rec.Table, rec.Key)
}

func (s *PostgresStore) ListRecords(ctx context.Context, table string, limit int) ([]Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT table_name, key, name, run_id, data, result, created_at, updated_at
		 FROM records WHERE table_name = $1 ORDER BY updated_at DESC LIMIT $2`,
		table, limitOrDefault(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list records")
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var dataJSON, resultJSON []byte
		if err := rows.Scan(&rec.Table, &rec.Key, &rec.Name, &rec.RunID, &dataJSON, &resultJSON, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan record")
		}
		if err := decodeRecord(&rec, dataJSON, resultJSON); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list records iterate")
}

func scanPgRun(row pgx.Row) (*model.Run, error) {
	var r model.Run
	var kind, status string
	var reqJSON, resultJSON, pushesJSON []byte

	if err := row.Scan(&r.ID, &kind, &reqJSON, &status, &resultJSON, &r.ErrorKind, &r.Error, &pushesJSON, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Kind = model.Kind(kind)
	r.Status = model.RunStatus(status)
	if err := decodeRun(&r, reqJSON, resultJSON, pushesJSON); err != nil {
		return nil, err
	}
	return &r, nil
}
