// Package store persists the history of scoring runs.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/puff-cli/internal/model"
	"github.com/sells-group/puff-cli/internal/scoring"
)

// ErrRunNotFound is returned when a run ID does not exist.
var ErrRunNotFound = eris.New("store: run not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status       model.RunStatus `json:"status,omitempty"`
	Input        string          `json:"input,omitempty"`
	CreatedAfter time.Time       `json:"created_after,omitempty"`
	Limit        int             `json:"limit,omitempty"`
	Offset       int             `json:"offset,omitempty"`
}

// DayRecord is one stored day summary and the run that produced it.
type DayRecord struct {
	RunID     string    `json:"run_id"`
	CreatedAt time.Time `json:"created_at"`
	model.DaySummary
}

// Store defines the persistence interface for run history.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, input, outputDir string, th scoring.Thresholds) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, result *model.RunResult) error
	FailRun(ctx context.Context, runID string, runErr error) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Days
	DayHistory(ctx context.Context, date string, limit int) ([]DayRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

const defaultListLimit = 100

func listLimit(n int) int {
	if n <= 0 {
		return defaultListLimit
	}
	return n
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// dayRows flattens day summaries into (run_id, date, avg_score, color)
// rows for both backends.
func dayRows(runID string, days []model.DaySummary) [][]any {
	rows := make([][]any, 0, len(days))
	for _, d := range days {
		rows = append(rows, []any{runID, d.Date, d.AvgScore, d.Color.String()})
	}
	return rows
}

var dayColumns = []string{"run_id", "date", "avg_score", "color"}
