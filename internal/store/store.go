// Package store persists extraction runs and the records approved from
// them.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/sells-group/funding-intake/internal/model"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Kind         model.Kind      `json:"kind,omitempty"`
	Status       model.RunStatus `json:"status,omitempty"`
	CreatedAfter time.Time       `json:"created_after,omitempty"`
	Limit        int             `json:"limit,omitempty"`
	Offset       int             `json:"offset,omitempty"`
}

// Record is an approved result written to a table, keyed by website host
// or name.
type Record struct {
	Table     string                  `json:"table"`
	Key       string                  `json:"key"`
	Name      string                  `json:"name"`
	RunID     string                  `json:"run_id"`
	Data      map[string]any          `json:"data"`
	Result    *model.NormalizedResult `json:"result,omitempty"`
	CreatedAt time.Time               `json:"created_at"`
	UpdatedAt time.Time               `json:"updated_at"`
}

// NewRecord builds the table row for a run's result.
func NewRecord(runID string, res *model.NormalizedResult) Record {
	return Record{
		Table:  res.Kind.Table(),
		Key:    res.Key(),
		Name:   res.Name(),
		RunID:  runID,
		Data:   res.Record(),
		Result: res,
	}
}

// Store defines the persistence interface for runs and records.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, req model.ExtractionRequest) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, result *model.NormalizedResult) error
	FailRun(ctx context.Context, runID, errorKind, message string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)
	RecordPush(ctx context.Context, runID string, push model.Push) error

	// Records
	WriteRecord(ctx context.Context, rec Record) error
	ListRecords(ctx context.Context, table string, limit int) ([]Record, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

const defaultListLimit = 100

func limitOrDefault(n int) int {
	if n <= 0 {
		return defaultListLimit
	}
	return n
}
