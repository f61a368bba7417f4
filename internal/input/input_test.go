package input

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/puff-cli/internal/model"
	"github.com/sells-group/puff-cli/internal/pipeline"
	"github.com/sells-group/puff-cli/internal/scoring"
)

var defaultOpts = Options{Sheet: "Puffs", CommentPrefix: "#"}

func writeXLSX(t *testing.T, sheet string, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sh, err := f.AddSheet(sheet)
	require.NoError(t, err)
	for _, r := range rows {
		row := sh.AddRow()
		for _, v := range r {
			row.AddCell().SetString(v)
		}
	}
	path := filepath.Join(t.TempDir(), "log.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestReadTSV(t *testing.T) {
	in := "# puff log\n" +
		"date\ttreatment\tinhaler\tpuff\tseconds\tsequence\tdouble_puff\tnot_representative\n" +
		"2024-03-01\t1\tA\t1\t25\t2 - 3\tno\t\n" +
		"\n" +
		"2024-03-01\t1\tA\t2\tabc\t1 - 1\tyes\t1\n"

	recs, err := ReadTSV(context.Background(), strings.NewReader(in), defaultOpts)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, model.RawRecord{
		Row: 2, Date: "2024-03-01", Treatment: "1", Inhaler: "A", Puff: "1",
		Seconds: "25", Sequence: "2 - 3", DoublePuff: "no",
	}, recs[0])
	assert.Equal(t, 3, recs[1].Row)
	assert.Equal(t, "abc", recs[1].Seconds)
	assert.Equal(t, "yes", recs[1].DoublePuff)
	assert.Equal(t, "1", recs[1].NotRepresentative)
}

func TestReadTSV_LegacyAliases(t *testing.T) {
	in := "Day\tTreatment\tInhaler\tPuff\tCombine_Puffs\tSeconds\tSequence\n" +
		"2024-03-02\t2\tB\t1\ttrue\t60\t4 - 4\n"

	recs, err := ReadTSV(context.Background(), strings.NewReader(in), defaultOpts)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "2024-03-02", recs[0].Date)
	assert.Equal(t, "true", recs[0].DoublePuff)
	assert.Empty(t, recs[0].NotRepresentative)
}

func TestReadTSV_MissingColumns(t *testing.T) {
	in := "date\ttreatment\tpuff\tsequence\n2024-03-01\t1\t1\t2\n"

	_, err := ReadTSV(context.Background(), strings.NewReader(in), defaultOpts)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingColumns))
	assert.Contains(t, err.Error(), "inhaler, seconds")
}

func TestReadTSV_NoHeader(t *testing.T) {
	_, err := ReadTSV(context.Background(), strings.NewReader("# only a comment\n\n"), defaultOpts)
	assert.ErrorIs(t, err, ErrNoHeader)
}

func TestReadTSV_ShortRow(t *testing.T) {
	in := "date\ttreatment\tinhaler\tpuff\tseconds\tsequence\n2024-03-01\t1\tA\t1\n"

	recs, err := ReadTSV(context.Background(), strings.NewReader(in), defaultOpts)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Empty(t, recs[0].Seconds)
	assert.Empty(t, recs[0].Sequence)
}

func TestReadXLSX_SkipsBlankAndCommentRows(t *testing.T) {
	path := writeXLSX(t, "Puffs", [][]string{
		{"date", "treatment", "inhaler", "puff", "seconds", "sequence"},
		{"2024-03-01", "1", "A", "1", "20", "3"},
		{"", "", "", "", "", ""},
		{"# pause", "", "", "", "", ""},
		{"2024-03-01", "1", "A", "2", "22", "2 - 2"},
	})

	recs, err := ReadXLSX(context.Background(), path, defaultOpts)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "1", recs[0].Puff)
	assert.Equal(t, "2", recs[1].Puff)
	assert.Equal(t, 3, recs[1].Row)
}

func TestReadXLSX_WrongSheet(t *testing.T) {
	path := writeXLSX(t, "Sheet1", [][]string{{"date"}})

	_, err := ReadXLSX(context.Background(), path, defaultOpts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `sheet "Puffs" not found`)
}

func TestLoad_DispatchesByExtension(t *testing.T) {
	dir := t.TempDir()
	tsv := filepath.Join(dir, "log.tsv")
	require.NoError(t, os.WriteFile(tsv, []byte(
		"date\ttreatment\tinhaler\tpuff\tseconds\tsequence\n2024-03-01\t1\tA\t1\t20\t3\n"), 0o644))

	recs, err := Load(context.Background(), tsv, defaultOpts)
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	_, err = Load(context.Background(), filepath.Join(dir, "log.csv"), defaultOpts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file type")

	_, err = Load(context.Background(), filepath.Join(dir, "missing.tsv"), defaultOpts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "input: open")
}

func TestExtract(t *testing.T) {
	path := writeXLSX(t, "Puffs", [][]string{
		{"day", "treatment", "inhaler", "puff", "sequence", "seconds", "combine_puffs", "behavior"},
		{"2024-03-01", "1", "A", "1", "2 - 3", "25", "0", "calm"},
		{"2024-03-01", "1", "A", "2", "1/2 - 4", "30", "1", "calm"},
	})

	var buf bytes.Buffer
	n, err := Extract(context.Background(), path, defaultOpts, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "date\ttreatment\tinhaler\tpuff\tdouble_puff\tseconds\tsequence", lines[0])
	assert.Equal(t, "2024-03-01\t1\tA\t1\t0\t25\t2 - 3", lines[1])

	// The extracted file reads back into the same records.
	recs, err := ReadTSV(context.Background(), &buf, defaultOpts)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "1/2 - 4", recs[1].Sequence)
	assert.Equal(t, "1", recs[1].DoublePuff)
}

func TestExtract_MissingColumns(t *testing.T) {
	path := writeXLSX(t, "Puffs", [][]string{{"day", "treatment"}, {"2024-03-01", "1"}})

	var buf bytes.Buffer
	_, err := Extract(context.Background(), path, defaultOpts, &buf)
	assert.ErrorIs(t, err, ErrMissingColumns)
	assert.Zero(t, buf.Len())
}

func TestReadXLSX_DateCellsNormalized(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	formats := []string{"m/d/yyyy", "d/m/yyyy", "d-mmm-yy", "mm-dd-yy", "yyyy-mm-dd"}

	f := xlsx.NewFile()
	sh, err := f.AddSheet("Puffs")
	require.NoError(t, err)
	header := sh.AddRow()
	for _, h := range []string{"date", "treatment", "inhaler", "puff", "seconds", "sequence"} {
		header.AddCell().SetString(h)
	}
	for i, format := range formats {
		row := sh.AddRow()
		row.AddCell().SetDateWithOptions(day, xlsx.DateTimeOptions{Location: time.UTC, ExcelTimeFormat: format})
		row.AddCell().SetInt(1)
		row.AddCell().SetString("A")
		row.AddCell().SetInt(i + 1)
		row.AddCell().SetInt(20)
		row.AddCell().SetString("2 - 3")
	}
	path := filepath.Join(t.TempDir(), "dates.xlsx")
	require.NoError(t, f.Save(path))

	recs, err := ReadXLSX(context.Background(), path, defaultOpts)
	require.NoError(t, err)
	require.Len(t, recs, len(formats))
	for i, rec := range recs {
		assert.Equal(t, "2024-03-01", rec.Date, "format %s", formats[i])
	}

	res, err := pipeline.New(scoring.DefaultThresholds(), []string{"2006-01-02", "01-02-06"}).Evaluate(recs)
	require.NoError(t, err)
	require.Len(t, res.Days, 1)
	assert.Equal(t, "2024-03-01", res.Days[0].Date)
	require.Len(t, res.Inhalers, 1)
	assert.Len(t, res.Inhalers[0].Puffs, len(formats))
}
