// Package export renders scoring results as TSV tables, plain and with
// ANSI-colored classifications.
package export

import (
	"strconv"

	"github.com/sells-group/puff-cli/internal/model"
	"github.com/sells-group/puff-cli/internal/scoring"
)

// Table names, also used as output file stems.
const (
	TablePuffs      = "puffs"
	TableInhalers   = "inhalers"
	TableTreatments = "treatments"
	TableDays       = "days"
)

// Fixed report column orders. Inhaler puff columns are appended after
// inhalerColumns, see puffColumns.
var (
	puffColumns = []string{
		"date", "treatment", "inhaler", "puff", "score", "colors",
		"breath_count", "block_count", "seconds", "continuity_score",
		"time_score", "double_puff", "not_representative", "sequence",
	}
	inhalerColumns = []string{
		"date", "treatment", "inhaler", "avg_score_inh", "colors_inhaler", "double_puff",
	}
	treatmentColumns = []string{
		"date", "treatment", "num_inhalers", "avg_score_treat",
		"colors_treatment", "double_puff_in_treatment",
	}
	dayColumns = []string{"date", "avg_score_day", "colors_day"}
)

// Table is a rendered-ready report. Cells hold int, float64, bool,
// string, scoring.Color or nil (blank).
type Table struct {
	Name    string
	Columns []string
	Rows    [][]any
}

// frame is a table before column selection. Rows are keyed by column.
type frame struct {
	columns map[string]bool
	rows    []map[string]any
}

func newFrame() *frame {
	return &frame{columns: make(map[string]bool)}
}

func (f *frame) add(row map[string]any) {
	for k := range row {
		f.columns[k] = true
	}
	f.rows = append(f.rows, row)
}

// selectColumns projects the frame onto order, skipping any column the
// frame never produced. Cells missing from a row are left blank.
func (f *frame) selectColumns(name string, order []string) Table {
	t := Table{Name: name}
	for _, c := range order {
		if f.columns[c] {
			t.Columns = append(t.Columns, c)
		}
	}
	t.Rows = make([][]any, 0, len(f.rows))
	for _, r := range f.rows {
		row := make([]any, len(t.Columns))
		for i, c := range t.Columns {
			row[i] = r[c]
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// Tables builds the four report tables from a result.
func Tables(res *model.Result) []Table {
	return []Table{
		PuffTable(res.Puffs),
		InhalerTable(res.Inhalers),
		TreatmentTable(res.Treatments),
		DayTable(res.Days),
	}
}

// PuffTable renders scored puffs in input order.
func PuffTable(puffs []model.ScoredPuff) Table {
	f := newFrame()
	for _, p := range puffs {
		f.add(map[string]any{
			"date":               p.Date,
			"treatment":          p.Treatment,
			"inhaler":            p.Inhaler,
			"puff":               p.Puff,
			"score":              p.Score,
			"colors":             p.Color,
			"breath_count":       p.BreathCount,
			"block_count":        p.BlockCount,
			"seconds":            p.Seconds,
			"continuity_score":   p.ContinuityScore,
			"time_score":         p.TimeScore,
			"double_puff":        p.DoublePuff,
			"not_representative": p.NotRepresentative,
			"sequence":           p.Sequence,
		})
	}
	return f.selectColumns(TablePuffs, puffColumns)
}

// InhalerTable renders inhalers in wide form. The number of puff column
// pairs is the largest puff count of any inhaler; shorter inhalers get
// blank cells.
func InhalerTable(inhalers []model.InhalerSummary) Table {
	maxPuffs := 0
	for _, inh := range inhalers {
		maxPuffs = max(maxPuffs, len(inh.Puffs))
	}

	f := newFrame()
	for _, inh := range inhalers {
		row := map[string]any{
			"date":           inh.Date,
			"treatment":      inh.Treatment,
			"inhaler":        inh.Inhaler,
			"avg_score_inh":  inh.AvgScore,
			"colors_inhaler": inh.Color,
			"double_puff":    inh.DoublePuff,
		}
		for i, c := range inh.Puffs {
			row[puffScoreColumn(i)] = c.Score
			row[puffColorColumn(i)] = c.Color
		}
		f.add(row)
	}

	order := append([]string(nil), inhalerColumns...)
	for i := range maxPuffs {
		order = append(order, puffScoreColumn(i), puffColorColumn(i))
	}
	return f.selectColumns(TableInhalers, order)
}

// TreatmentTable renders treatment summaries.
func TreatmentTable(treatments []model.TreatmentSummary) Table {
	f := newFrame()
	for _, t := range treatments {
		f.add(map[string]any{
			"date":                     t.Date,
			"treatment":                t.Treatment,
			"num_inhalers":             t.NumInhalers,
			"avg_score_treat":          t.AvgScore,
			"colors_treatment":         t.Color,
			"double_puff_in_treatment": t.DoublePuff,
		})
	}
	return f.selectColumns(TableTreatments, treatmentColumns)
}

// DayTable renders day summaries.
func DayTable(days []model.DaySummary) Table {
	f := newFrame()
	for _, d := range days {
		f.add(map[string]any{
			"date":          d.Date,
			"avg_score_day": d.AvgScore,
			"colors_day":    d.Color,
		})
	}
	return f.selectColumns(TableDays, dayColumns)
}

func puffScoreColumn(i int) string {
	return "puff" + strconv.Itoa(i+1) + "_score"
}

func puffColorColumn(i int) string {
	return "puff" + strconv.Itoa(i+1) + "_colors"
}

// ansi escape prefixes per color.
var ansi = map[scoring.Color]string{
	scoring.ColorGreen:  "\033[92m",
	scoring.ColorYellow: "\033[93m",
	scoring.ColorRed:    "\033[91m",
}

const ansiReset = "\033[0m"

// Colorize wraps a color name in its ANSI escape sequence.
func Colorize(c scoring.Color) string {
	return ansi[c] + c.String() + ansiReset
}

// formatCell renders one cell. Colors are escaped only when colored is set.
func formatCell(v any, colored bool) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		if x {
			return "True"
		}
		return "False"
	case scoring.Color:
		if colored {
			return Colorize(x)
		}
		return x.String()
	default:
		return ""
	}
}
