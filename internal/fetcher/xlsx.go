package fetcher

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// XLSXOptions configures the XLSX parser.
type XLSXOptions struct {
	SheetIndex int             // default 0
	SheetName  string          // if set, overrides SheetIndex
	SkipRows   int             // number of header rows to skip
	HeaderCh   chan<- []string // optional: receives the first row
}

// StreamXLSX reads an XLSX file and sends rows to a channel.
// Both channels are closed when processing completes.
//
// Date-formatted cells are sent as ISO dates (time.DateOnly), or as
// "2006-01-02 15:04:05" when they carry a time of day, whatever display
// format the workbook uses. All other cells are sent as displayed.
func StreamXLSX(ctx context.Context, path string, opts XLSXOptions) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		f, err := xlsx.OpenFile(path)
		if err != nil {
			errCh <- eris.Wrap(err, "xlsx: open file")
			return
		}

		sheet, err := getSheet(f, opts)
		if err != nil {
			errCh <- err
			return
		}

		for i, row := range sheet.Rows {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "xlsx: context cancelled")
				return
			}

			cells := rowToStrings(row, f.Date1904)

			if i == 0 && opts.HeaderCh != nil {
				select {
				case opts.HeaderCh <- cells:
				case <-ctx.Done():
					errCh <- eris.Wrap(ctx.Err(), "xlsx: context cancelled sending header")
					return
				}
			}

			if i < opts.SkipRows {
				continue
			}

			select {
			case rowCh <- cells:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "xlsx: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

func getSheet(f *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found (workbook has: %s)",
				opts.SheetName, strings.Join(sheetNames(f), ", "))
		}
		return sheet, nil
	}

	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("xlsx: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}

	return f.Sheets[opts.SheetIndex], nil
}

func sheetNames(f *xlsx.File) []string {
	names := make([]string, 0, len(f.Sheets))
	for _, s := range f.Sheets {
		names = append(names, s.Name)
	}
	return names
}

func rowToStrings(row *xlsx.Row, date1904 bool) []string {
	if row == nil {
		return nil
	}
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		if cell == nil {
			continue
		}
		cells[j] = cellText(cell, date1904)
	}
	return cells
}

// cellText renders date cells from their serial value so the result does
// not depend on the workbook's locale-specific display format.
func cellText(cell *xlsx.Cell, date1904 bool) string {
	if cell.Type() == xlsx.CellTypeNumeric || cell.Type() == xlsx.CellTypeDate {
		if cell.IsTime() {
			if t, err := cell.GetTime(date1904); err == nil {
				t = t.Round(time.Second)
				if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
					return t.Format(time.DateOnly)
				}
				return t.Format(time.DateTime)
			}
		}
	}
	return cell.String()
}
