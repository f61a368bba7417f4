package fetcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

// createTestXLSX writes one workbook with the given sheets, in name order
// of the slice.
func createTestXLSX(t *testing.T, names []string, sheets map[string][][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	for _, name := range names {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, rowData := range sheets[name] {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				cell := row.AddCell()
				cell.SetString(cellData)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "test.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

// readAll streams a workbook and collects every row.
func readAll(t *testing.T, path string, opts XLSXOptions) ([][]string, error) {
	t.Helper()
	rowCh, errCh := StreamXLSX(context.Background(), path, opts)
	return collectRows(t, rowCh, errCh)
}

func TestStreamXLSX_Basic(t *testing.T) {
	path := createTestXLSX(t, []string{"Sheet1"}, map[string][][]string{
		"Sheet1": {
			{"date", "puff", "sequence"},
			{"2024-03-01", "1", "2 - 3"},
		},
	})

	rows, err := readAll(t, path, XLSXOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"date", "puff", "sequence"}, rows[0])
	assert.Equal(t, []string{"2024-03-01", "1", "2 - 3"}, rows[1])
}

func TestStreamXLSX_SheetNameWithHeader(t *testing.T) {
	path := createTestXLSX(t, []string{"Notes", "Puffs"}, map[string][][]string{
		"Notes": {{"ignore me"}},
		"Puffs": {{"x", "y"}, {"1", "2"}},
	})

	headerCh := make(chan []string, 1)
	rows, err := readAll(t, path, XLSXOptions{SheetName: "Puffs", SkipRows: 1, HeaderCh: headerCh})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1", "2"}}, rows)
	assert.Equal(t, []string{"x", "y"}, <-headerCh)
}

func TestStreamXLSX_SheetErrors(t *testing.T) {
	path := createTestXLSX(t, []string{"Sheet1", "Summary"}, map[string][][]string{
		"Sheet1":  {{"a"}},
		"Summary": {{"b"}},
	})

	_, err := readAll(t, path, XLSXOptions{SheetName: "Puffs"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `sheet "Puffs" not found (workbook has: Sheet1, Summary)`)

	_, err = readAll(t, path, XLSXOptions{SheetIndex: 5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestStreamXLSX_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o644))

	_, err := readAll(t, path, XLSXOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xlsx: open file")
}

func TestStreamXLSX_NumericCell(t *testing.T) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Puffs")
	require.NoError(t, err)
	row := sheet.AddRow()
	row.AddCell().SetString("seconds")
	row = sheet.AddRow()
	row.AddCell().SetInt(27)
	path := filepath.Join(t.TempDir(), "numeric.xlsx")
	require.NoError(t, f.Save(path))

	rows, err := readAll(t, path, XLSXOptions{SheetName: "Puffs", SkipRows: 1})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"27"}}, rows)
}

func TestStreamXLSX_DateCellsAsISO(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		format string
		value  time.Time
		want   string
	}{
		{"m/d/yyyy", day, "2024-03-01"},
		{"d/m/yyyy", day, "2024-03-01"},
		{"d-mmm-yy", day, "2024-03-01"},
		{"yyyy-mm-dd", day, "2024-03-01"},
		{"mm-dd-yy", day, "2024-03-01"},
		{"m/d/yyyy h:mm", day.Add(14*time.Hour + 30*time.Minute), "2024-03-01 14:30:00"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			f := xlsx.NewFile()
			sheet, err := f.AddSheet("Puffs")
			require.NoError(t, err)
			sheet.AddRow().AddCell().SetString("date")
			sheet.AddRow().AddCell().SetDateWithOptions(tt.value, xlsx.DateTimeOptions{
				Location:        time.UTC,
				ExcelTimeFormat: tt.format,
			})
			path := filepath.Join(t.TempDir(), "dates.xlsx")
			require.NoError(t, f.Save(path))

			rows, err := readAll(t, path, XLSXOptions{SheetName: "Puffs", SkipRows: 1})
			require.NoError(t, err)
			assert.Equal(t, [][]string{{tt.want}}, rows)
		})
	}
}

func TestStreamXLSX_DateTextLeftAlone(t *testing.T) {
	path := createTestXLSX(t, []string{"Puffs"}, map[string][][]string{
		"Puffs": {{"date"}, {"03-01-24"}},
	})

	rows, err := readAll(t, path, XLSXOptions{SheetName: "Puffs", SkipRows: 1})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"03-01-24"}}, rows)
}

func TestStreamXLSX_WithSkipAndHeader(t *testing.T) {
	path := createTestXLSX(t, []string{"Sheet1"}, map[string][][]string{
		"Sheet1": {
			{"Header", "Row"},
			{"data", "here"},
		},
	})

	headerCh := make(chan []string, 1)
	rowCh, errCh := StreamXLSX(context.Background(), path, XLSXOptions{
		SkipRows: 1,
		HeaderCh: headerCh,
	})

	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"data", "here"}, rows[0])
	assert.Equal(t, []string{"Header", "Row"}, <-headerCh)
}

func TestStreamXLSX_SheetNotFound(t *testing.T) {
	path := createTestXLSX(t, []string{"Sheet1"}, map[string][][]string{"Sheet1": {{"a"}}})

	rowCh, errCh := StreamXLSX(context.Background(), path, XLSXOptions{SheetName: "Puffs"})
	_, err := collectRows(t, rowCh, errCh)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
