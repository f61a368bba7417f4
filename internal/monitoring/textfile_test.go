package monitoring

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/puff-cli/internal/model"
	"github.com/sells-group/puff-cli/internal/scoring"
)

func sampleResult() *model.Result {
	return &model.Result{
		Puffs: []model.ScoredPuff{
			{Score: 6, Color: scoring.ColorGreen},
			{Score: 3, Color: scoring.ColorYellow},
			{Score: 0, Color: scoring.ColorRed},
		},
		Inhalers:   []model.InhalerSummary{{Color: scoring.ColorYellow}},
		Treatments: []model.TreatmentSummary{{Color: scoring.ColorYellow}},
		Days:       []model.DaySummary{{Date: "2024-03-01", AvgScore: 3, Color: scoring.ColorYellow}},
		Warnings:   []model.Warning{{Row: 3, Column: "seconds"}},
	}
}

func TestFamilies(t *testing.T) {
	at := time.Unix(1700000000, 0)
	mfs := Families(sampleResult(), nil, at)
	require.Len(t, mfs, 5)

	byName := make(map[string]int)
	for i, mf := range mfs {
		byName[mf.GetName()] = i
	}
	require.Contains(t, byName, "puff_rows")
	require.Contains(t, byName, "puff_color_rows")

	rows := mfs[byName["puff_rows"]]
	require.Len(t, rows.GetMetric(), 4)
	assert.Equal(t, 3.0, rows.GetMetric()[0].GetGauge().GetValue())
	assert.Equal(t, "level", rows.GetMetric()[0].GetLabel()[0].GetName())
	assert.Equal(t, "puff", rows.GetMetric()[0].GetLabel()[0].GetValue())

	// 4 levels x 3 colors, zero counts included.
	assert.Len(t, mfs[byName["puff_color_rows"]].GetMetric(), 12)

	last := mfs[byName["puff_last_run_timestamp_seconds"]]
	assert.Equal(t, 1700000000.0, last.GetMetric()[0].GetGauge().GetValue())
}

func TestFamilies_WithSnapshot(t *testing.T) {
	snap := &RunSnapshot{Complete: 3, Failed: 1, FailRate: 0.25}
	mfs := Families(sampleResult(), snap, time.Now())
	require.Len(t, mfs, 7)
	assert.Equal(t, "puff_run_failure_ratio", mfs[6].GetName())
	assert.Equal(t, 0.25, mfs[6].GetMetric()[0].GetGauge().GetValue())
}

func TestWriteText_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, Families(sampleResult(), nil, time.Now())))
	assert.Contains(t, buf.String(), "# TYPE puff_rows gauge")
	assert.Contains(t, buf.String(), `puff_color_rows{level="day",color="yellow"} 1`)

	mfs, err := ParseText(&buf)
	require.NoError(t, err)
	require.Contains(t, mfs, "puff_seconds_recovered")
	assert.Equal(t, 1.0, mfs["puff_seconds_recovered"].GetMetric()[0].GetGauge().GetValue())
	require.Contains(t, mfs, "puff_day_avg_score")
	assert.Equal(t, 3.0, mfs["puff_day_avg_score"].GetMetric()[0].GetGauge().GetValue())
}

func TestWriteText_SkipsEmptyFamilies(t *testing.T) {
	res := sampleResult()
	res.Days = nil

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, Families(res, nil, time.Now())))
	assert.NotContains(t, buf.String(), "puff_day_avg_score")
}

func TestWriteTextfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node", "puff.prom")
	require.NoError(t, WriteTextfile(path, Families(sampleResult(), nil, time.Now())))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "puff_rows")

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not be left behind")
}
