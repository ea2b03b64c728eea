// Package history records report runs in PostgreSQL.
//
// History is optional: without a database URL the application uses Nop,
// which accepts records and reports ErrDisabled on reads. A failure to
// record a run is logged by the caller and never fails the run itself.
package history

import (
	"context"
	"errors"
	"time"

	"github.com/JonMunkholm/barcodereport/internal/core"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

var (
	// ErrDisabled is returned by reads when no database is configured.
	ErrDisabled = errors.New("run history disabled")

	// ErrNotFound is returned by Get for an unknown run id.
	ErrNotFound = errors.New("run not found")
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Source identifies what started a run.
type Source string

const (
	SourceCLI  Source = "cli"
	SourceHTTP Source = "http"
)

// Status values stored for a run.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Run is one row of report_runs.
type Run struct {
	ID           string    `json:"id"`
	Source       Source    `json:"source"`
	Input        string    `json:"input"`
	Output       string    `json:"output"`
	Status       string    `json:"status"`
	Rows         int       `json:"rows"`
	Fields       int       `json:"fields"`
	Encoded      int       `json:"encoded"`
	FailedFields int       `json:"failedFields"`
	Bytes        int64     `json:"bytes"`
	ErrorCode    string    `json:"errorCode,omitempty"`
	Error        string    `json:"error,omitempty"`
	DurationMS   int64     `json:"durationMs"`
	CreatedAt    time.Time `json:"createdAt"`
}

// FromResult converts a pipeline result and its error into a Run.
func FromResult(source Source, res *core.Result, err error) Run {
	run := Run{
		ID:        res.RunID,
		Source:    source,
		Input:     res.Input,
		Output:    res.Output,
		Status:    StatusSucceeded,
		Rows:      res.Rows,
		Fields:    res.Fields,
		Encoded:   res.Encoded,
		Bytes:     res.Bytes,
		CreatedAt: time.Now().UTC(),
	}
	run.FailedFields = len(res.Failures)
	run.DurationMS = res.Duration.Milliseconds()

	if err != nil {
		run.Status = StatusFailed
		run.Error = err.Error()
		run.ErrorCode = core.MapError(err).Code
	}
	return run
}

// Recorder stores and lists runs.
type Recorder interface {
	Record(ctx context.Context, run Run) error
	Recent(ctx context.Context, limit int) ([]Run, error)
	Get(ctx context.Context, id string) (Run, error)
}

// Nop is the Recorder used when history is disabled.
type Nop struct{}

func (Nop) Record(context.Context, Run) error { return nil }

func (Nop) Recent(context.Context, int) ([]Run, error) { return nil, ErrDisabled }

func (Nop) Get(context.Context, string) (Run, error) { return Run{}, ErrDisabled }

// toPgUUID converts a string UUID to pgtype.UUID.
// Returns an invalid UUID (SQL NULL) if the string is empty or malformed.
func toPgUUID(s string) pgtype.UUID {
	if s == "" {
		return pgtype.UUID{Valid: false}
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return pgtype.UUID{Valid: false}
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}
}

// pgUUIDToString converts a pgtype.UUID to its string representation.
func pgUUIDToString(u pgtype.UUID) string {
	if !u.Valid {
		return ""
	}
	return uuid.UUID(u.Bytes).String()
}
