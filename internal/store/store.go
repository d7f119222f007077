// Package store persists the run ledger: one row per pipeline invocation and
// one per stage execution.
package store

import (
	"context"

	"github.com/sells-group/watchlog/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the run ledger.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, stages []string, window model.Window) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus, errMsg string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Stages
	CreateStage(ctx context.Context, runID string, name string) (*model.RunStage, error)
	CompleteStage(ctx context.Context, stageID string, result *model.StageResult) error
	ListStages(ctx context.Context, runID string) ([]model.RunStage, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

const defaultListLimit = 50

func listLimit(f RunFilter) int {
	if f.Limit <= 0 {
		return defaultListLimit
	}
	return f.Limit
}

// results collects the recorded results of finished stages in start order.
func results(stages []model.RunStage) []model.StageResult {
	var out []model.StageResult
	for _, st := range stages {
		if st.Result != nil {
			out = append(out, *st.Result)
		}
	}
	return out
}
