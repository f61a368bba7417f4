package model

import (
	"time"

	"github.com/sells-group/puff-cli/internal/scoring"
)

// RunStatus represents the state of a scoring run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one recorded invocation of the scoring pipeline.
type Run struct {
	ID         string             `json:"id"`
	Input      string             `json:"input"`
	OutputDir  string             `json:"output_dir"`
	Status     RunStatus          `json:"status"`
	Thresholds scoring.Thresholds `json:"thresholds"`
	Result     *RunResult         `json:"result,omitempty"`
	Error      string             `json:"error,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

// RunResult is the stored outcome of a completed run. Only the day level
// is kept in full; lower levels are summarized as color counts.
type RunResult struct {
	Puffs      int                    `json:"puffs"`
	Inhalers   int                    `json:"inhalers"`
	Treatments int                    `json:"treatments"`
	Colors     map[string]ColorCounts `json:"colors"`
	Days       []DaySummary           `json:"days"`
	Warnings   []Warning              `json:"warnings,omitempty"`
}

// NewRunResult summarizes a scoring result for storage.
func NewRunResult(res *Result) *RunResult {
	return &RunResult{
		Puffs:      len(res.Puffs),
		Inhalers:   len(res.Inhalers),
		Treatments: len(res.Treatments),
		Colors:     res.ColorCounts(),
		Days:       res.Days,
		Warnings:   res.Warnings,
	}
}
