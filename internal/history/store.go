package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/JonMunkholm/barcodereport/internal/config"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultRecentLimit caps Recent when the caller passes no limit.
const DefaultRecentLimit = 50

const schemaSQL = `CREATE TABLE IF NOT EXISTS report_runs (
	id            UUID PRIMARY KEY,
	source        TEXT NOT NULL,
	input         TEXT NOT NULL DEFAULT '',
	output        TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL,
	row_count     INTEGER NOT NULL DEFAULT 0,
	fields        INTEGER NOT NULL DEFAULT 0,
	encoded       INTEGER NOT NULL DEFAULT 0,
	failed_fields INTEGER NOT NULL DEFAULT 0,
	bytes         BIGINT NOT NULL DEFAULT 0,
	error_code    TEXT,
	error         TEXT,
	duration_ms   BIGINT NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const insertRunSQL = `INSERT INTO report_runs
	(id, source, input, output, status, row_count, fields, encoded, failed_fields,
	 bytes, error_code, error, duration_ms, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

const selectRunSQL = `SELECT id, source, input, output, status, row_count, fields,
	encoded, failed_fields, bytes, error_code, error, duration_ms, created_at
	FROM report_runs`

const recentRunsSQL = selectRunSQL + ` ORDER BY created_at DESC LIMIT $1`

// Store is the PostgreSQL Recorder.
type Store struct {
	db DBTX
}

// NewStore creates a store over db.
func NewStore(db DBTX) *Store {
	return &Store{db: db}
}

// Connect opens a pool for cfg, verifies it with a ping and makes sure the
// report_runs table exists.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if err := NewStore(pool).EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// EnsureSchema creates report_runs if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create report_runs: %w", err)
	}
	return nil
}

// Record inserts run.
func (s *Store) Record(ctx context.Context, run Run) error {
	id := toPgUUID(run.ID)
	if !id.Valid {
		return fmt.Errorf("record run: invalid id %q", run.ID)
	}

	_, err := s.db.Exec(ctx, insertRunSQL,
		id,
		string(run.Source),
		run.Input,
		run.Output,
		run.Status,
		run.Rows,
		run.Fields,
		run.Encoded,
		run.FailedFields,
		run.Bytes,
		pgtype.Text{String: run.ErrorCode, Valid: run.ErrorCode != ""},
		pgtype.Text{String: run.Error, Valid: run.Error != ""},
		run.DurationMS,
		pgtype.Timestamptz{Time: run.CreatedAt, Valid: !run.CreatedAt.IsZero()},
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", run.ID, err)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	rows, err := s.db.Query(ctx, recentRunsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

// Get returns one run by id. Unknown or malformed ids give ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (Run, error) {
	pgID := toPgUUID(id)
	if !pgID.Valid {
		return Run{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}

	run, err := scanRun(s.db.QueryRow(ctx, selectRunSQL+` WHERE id = $1`, pgID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", id, err)
	}
	return run, nil
}

// scanRun scans a single report_runs row.
func scanRun(row pgx.Row) (Run, error) {
	var (
		id        pgtype.UUID
		source    string
		run       Run
		errorCode pgtype.Text
		errText   pgtype.Text
		createdAt pgtype.Timestamptz
	)

	err := row.Scan(
		&id, &source, &run.Input, &run.Output, &run.Status,
		&run.Rows, &run.Fields, &run.Encoded, &run.FailedFields, &run.Bytes,
		&errorCode, &errText, &run.DurationMS, &createdAt,
	)
	if err != nil {
		return Run{}, err
	}

	run.ID = pgUUIDToString(id)
	run.Source = Source(source)
	run.CreatedAt = createdAt.Time
	if errorCode.Valid {
		run.ErrorCode = errorCode.String
	}
	if errText.Valid {
		run.Error = errText.String
	}
	return run, nil
}
