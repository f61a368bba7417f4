package input

import (
	"context"
	"encoding/csv"
	"io"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/puff-cli/internal/fetcher"
)

// Extract copies the puff sheet of a workbook into a tab-separated file,
// keeping only ExportColumns under their canonical names. Required columns
// are checked before anything is written; optional ones are omitted when
// the sheet lacks them.
func Extract(ctx context.Context, xlsxPath string, opts Options, w io.Writer) (int, error) {
	headerCh := make(chan []string, 1)
	rowCh, errCh := fetcher.StreamXLSX(ctx, xlsxPath, fetcher.XLSXOptions{
		SheetName: opts.Sheet,
		SkipRows:  1,
		HeaderCh:  headerCh,
	})
	var rows [][]string
	for row := range rowCh {
		if skipRow(row, opts.CommentPrefix) {
			continue
		}
		rows = append(rows, row)
	}
	for err := range errCh {
		if err != nil {
			return 0, eris.Wrap(err, "input: extract")
		}
	}

	var header []string
	select {
	case header = <-headerCh:
	default:
		return 0, ErrNoHeader
	}
	idx, err := newHeaderIndex(header)
	if err != nil {
		return 0, err
	}

	var cols []string
	for _, c := range ExportColumns {
		if idx.has(c) {
			cols = append(cols, c)
		}
	}

	tw := csv.NewWriter(w)
	tw.Comma = '\t'
	if err := tw.Write(cols); err != nil {
		return 0, eris.Wrap(err, "input: extract: write header")
	}
	out := make([]string, len(cols))
	for _, row := range rows {
		for i, c := range cols {
			out[i] = idx.get(row, c)
		}
		if err := tw.Write(out); err != nil {
			return 0, eris.Wrap(err, "input: extract: write row")
		}
	}
	tw.Flush()
	if err := tw.Error(); err != nil {
		return 0, eris.Wrap(err, "input: extract: flush")
	}

	zap.L().Info("input: extracted sheet",
		zap.String("path", xlsxPath),
		zap.String("sheet", opts.Sheet),
		zap.Strings("columns", cols),
		zap.Int("rows", len(rows)),
	)
	return len(rows), nil
}
