package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/puff-cli/internal/model"
	"github.com/sells-group/puff-cli/internal/scoring"
)

func sampleResult() *model.Result {
	return &model.Result{
		Puffs: []model.ScoredPuff{
			{
				PuffRecord: model.PuffRecord{
					Date: "2024-03-01", Treatment: 1, Inhaler: "A", Puff: 1,
					Seconds: 20, Sequence: "2 - 3", DoublePuff: true,
				},
				BreathCount: 5, BlockCount: 2, ContinuityScore: 3, TimeScore: 3,
				Score: 6, Color: scoring.ColorGreen,
			},
		},
		Inhalers: []model.InhalerSummary{
			{
				Date: "2024-03-01", Treatment: 1, Inhaler: "A", AvgScore: 4.5, Color: scoring.ColorGreen,
				Puffs: []model.PuffCell{{Score: 6, Color: scoring.ColorGreen}, {Score: 3, Color: scoring.ColorYellow}},
			},
			{
				Date: "2024-03-01", Treatment: 1, Inhaler: "B", AvgScore: 0, Color: scoring.ColorRed,
				Puffs: []model.PuffCell{{Score: 0, Color: scoring.ColorRed}},
			},
		},
		Treatments: []model.TreatmentSummary{
			{Date: "2024-03-01", Treatment: 1, NumInhalers: 2, AvgScore: 3, Color: scoring.ColorYellow, DoublePuff: true},
		},
		Days: []model.DaySummary{
			{Date: "2024-03-01", AvgScore: 3, Color: scoring.ColorYellow},
		},
	}
}

func TestPuffTable(t *testing.T) {
	t.Parallel()

	tbl := PuffTable(sampleResult().Puffs)
	assert.Equal(t, TablePuffs, tbl.Name)
	assert.Equal(t, puffColumns, tbl.Columns)
	require.Len(t, tbl.Rows, 1)
	assert.Equal(t, []any{
		"2024-03-01", 1, "A", 1, 6, scoring.ColorGreen, 5, 2, 20, 3, 3, true, false, "2 - 3",
	}, tbl.Rows[0])
}

func TestInhalerTable_WidePuffColumns(t *testing.T) {
	t.Parallel()

	tbl := InhalerTable(sampleResult().Inhalers)
	assert.Equal(t, []string{
		"date", "treatment", "inhaler", "avg_score_inh", "colors_inhaler", "double_puff",
		"puff1_score", "puff1_colors", "puff2_score", "puff2_colors",
	}, tbl.Columns)
	require.Len(t, tbl.Rows, 2)
	assert.Nil(t, tbl.Rows[1][8])
	assert.Nil(t, tbl.Rows[1][9])
	assert.Equal(t, 3, tbl.Rows[0][8])
}

func TestTable_EmptyInputDropsColumns(t *testing.T) {
	t.Parallel()

	// Columns are only emitted when some row produced them.
	tbl := InhalerTable(nil)
	assert.Empty(t, tbl.Columns)
	assert.Empty(t, tbl.Rows)

	tbl = DayTable(nil)
	assert.Empty(t, tbl.Columns)
}

func TestTables(t *testing.T) {
	t.Parallel()

	tables := Tables(sampleResult())
	require.Len(t, tables, 4)
	names := []string{tables[0].Name, tables[1].Name, tables[2].Name, tables[3].Name}
	assert.Equal(t, []string{TablePuffs, TableInhalers, TableTreatments, TableDays}, names)
	assert.Equal(t, treatmentColumns, tables[2].Columns)
	assert.Equal(t, dayColumns, tables[3].Columns)
}

func TestFormatCell(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		v       any
		colored bool
		want    string
	}{
		{"nil", nil, false, ""},
		{"string", "A", false, "A"},
		{"int", 42, false, "42"},
		{"float", 3.6, false, "3.6"},
		{"whole float", 4.0, false, "4"},
		{"true", true, false, "True"},
		{"false", false, true, "False"},
		{"plain color", scoring.ColorYellow, false, "yellow"},
		{"green", scoring.ColorGreen, true, "\033[92mgreen\033[0m"},
		{"yellow", scoring.ColorYellow, true, "\033[93myellow\033[0m"},
		{"red", scoring.ColorRed, true, "\033[91mred\033[0m"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, formatCell(tt.v, tt.colored))
		})
	}
}

func TestWriteTable(t *testing.T) {
	t.Parallel()

	var plain, colored bytes.Buffer
	tbl := DayTable(sampleResult().Days)
	require.NoError(t, WriteTable(&plain, tbl, false))
	require.NoError(t, WriteTable(&colored, tbl, true))

	assert.Equal(t, "date\tavg_score_day\tcolors_day\n2024-03-01\t3\tyellow\n", plain.String())
	assert.Equal(t, "date\tavg_score_day\tcolors_day\n2024-03-01\t3\t\033[93myellow\033[0m\n", colored.String())
}
