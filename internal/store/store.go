// Package store persists analysis runs, their stage outcomes and the derived
// tables so they can be listed and served after the batch finishes.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/sells-group/pressure-cli/internal/model"
)

// ErrNotFound is returned when a run or table does not exist.
var ErrNotFound = errors.New("not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status       model.RunStatus `json:"status,omitempty"`
	CreatedAfter time.Time       `json:"created_after,omitempty"`
	Limit        int             `json:"limit,omitempty"`
	Offset       int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the analysis pipeline.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, inputs model.RunInputs) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	UpdateRunInputs(ctx context.Context, runID string, inputs model.RunInputs) error
	UpdateRunError(ctx context.Context, runID string, msg string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)
	LatestRun(ctx context.Context) (*model.Run, error)

	// Stages
	CreateStage(ctx context.Context, runID string, name string) (string, error)
	CompleteStage(ctx context.Context, stageID string, result *model.StageResult) error

	// Tables
	SaveTables(ctx context.Context, runID string, tables *model.Tables) error
	GetTable(ctx context.Context, runID string, name string) (json.RawMessage, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// finishedStatuses are the run states whose tables are complete enough to
// serve as "latest".
var finishedStatuses = []string{string(model.RunStatusComplete), string(model.RunStatusPartial)}

func listLimit(filter RunFilter) int {
	if filter.Limit <= 0 {
		return 100
	}
	return filter.Limit
}

// tableRows serializes each table that exists. Missing tables are skipped.
func tableRows(tables *model.Tables) (map[string][]byte, map[string]int, error) {
	data := make(map[string][]byte)
	counts := make(map[string]int)
	for _, name := range model.TableNames {
		rows, ok := tables.Table(name)
		if !ok {
			continue
		}
		b, err := json.Marshal(rows)
		if err != nil {
			return nil, nil, err
		}
		data[name] = b
		counts[name], _ = tables.RowCount(name)
	}
	return data, counts, nil
}
