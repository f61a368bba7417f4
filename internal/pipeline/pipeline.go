// Package pipeline scores puff records and rolls the scores up through
// inhaler, treatment and day.
package pipeline

import (
	"go.uber.org/zap"

	"github.com/sells-group/puff-cli/internal/model"
	"github.com/sells-group/puff-cli/internal/scoring"
)

// Engine runs one full batch: score every puff, then aggregate inhalers,
// treatments and days in that order. Each stage is fully materialized
// before the next starts.
type Engine struct {
	th   scoring.Thresholds
	proc *Processor
}

// New creates an Engine bound to one immutable set of thresholds.
func New(th scoring.Thresholds, dateLayouts []string) *Engine {
	return &Engine{
		th:   th,
		proc: NewProcessor(scoring.NewScorer(th), dateLayouts),
	}
}

// Thresholds returns the constants the engine grades with.
func (e *Engine) Thresholds() scoring.Thresholds {
	return e.th
}

// Evaluate recomputes every level from records. Nothing is carried over
// between calls.
func (e *Engine) Evaluate(records []model.RawRecord) (*model.Result, error) {
	puffs, warnings, err := e.proc.Process(records)
	if err != nil {
		return nil, err
	}
	zap.L().Debug("pipeline: puffs scored", zap.Int("puffs", len(puffs)), zap.Int("warnings", len(warnings)))

	inhalers := AggregateInhalers(puffs, e.th)
	treatments, dayScores := AggregateTreatments(inhalers, e.th)
	days := AggregateDays(dayScores, e.th)

	zap.L().Info("pipeline: evaluation complete",
		zap.Int("puffs", len(puffs)),
		zap.Int("inhalers", len(inhalers)),
		zap.Int("treatments", len(treatments)),
		zap.Int("days", len(days)),
		zap.Int("warnings", len(warnings)),
	)

	return &model.Result{
		Puffs:      puffs,
		Inhalers:   inhalers,
		Treatments: treatments,
		Days:       days,
		Warnings:   warnings,
	}, nil
}
