// Package monitoring summarizes scoring runs as Prometheus textfile
// metrics.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/puff-cli/internal/model"
	"github.com/sells-group/puff-cli/internal/store"
)

// RunSnapshot is a point-in-time view of run history.
type RunSnapshot struct {
	Total    int     `json:"total"`
	Complete int     `json:"complete"`
	Failed   int     `json:"failed"`
	Running  int     `json:"running"`
	FailRate float64 `json:"fail_rate"`

	// Mean of the average day score over completed runs.
	AvgDayScore float64 `json:"avg_day_score"`

	Lookback    time.Duration `json:"lookback"`
	CollectedAt time.Time     `json:"collected_at"`
}

// RunLister is the part of store.Store the collector reads.
type RunLister interface {
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error)
}

// Collector gathers run statistics from the store.
type Collector struct {
	runs RunLister
}

// NewCollector creates a new run statistics collector.
func NewCollector(runs RunLister) *Collector {
	return &Collector{runs: runs}
}

// maxCollectRuns bounds how many runs one snapshot reads.
const maxCollectRuns = 10000

// Collect summarizes the runs created within lookback.
func (c *Collector) Collect(ctx context.Context, lookback time.Duration) (*RunSnapshot, error) {
	now := time.Now().UTC()
	snap := &RunSnapshot{Lookback: lookback, CollectedAt: now}

	runs, err := c.runs.ListRuns(ctx, store.RunFilter{
		CreatedAfter: now.Add(-lookback),
		Limit:        maxCollectRuns,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	snap.Total = len(runs)
	var dayScoreSum float64
	var scored int
	for _, r := range runs {
		switch r.Status {
		case model.RunStatusComplete:
			snap.Complete++
		case model.RunStatusFailed:
			snap.Failed++
		case model.RunStatusRunning:
			snap.Running++
		}
		if r.Result != nil && len(r.Result.Days) > 0 {
			var sum float64
			for _, d := range r.Result.Days {
				sum += d.AvgScore
			}
			dayScoreSum += sum / float64(len(r.Result.Days))
			scored++
		}
	}

	if finished := snap.Complete + snap.Failed; finished > 0 {
		snap.FailRate = float64(snap.Failed) / float64(finished)
	}
	if scored > 0 {
		snap.AvgDayScore = dayScoreSum / float64(scored)
	}
	return snap, nil
}
