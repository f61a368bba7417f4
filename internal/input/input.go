package input

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/puff-cli/internal/fetcher"
	"github.com/sells-group/puff-cli/internal/model"
)

// Options configures reading.
type Options struct {
	Sheet         string // XLSX sheet name
	CommentPrefix string // rows starting with this are skipped
}

// Format identifies an input file type.
type Format string

const (
	FormatTSV  Format = "tsv"
	FormatXLSX Format = "xlsx"
)

// DetectFormat picks a reader from the file extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tsv", ".txt", ".tab":
		return FormatTSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	}
	return "", eris.Errorf("input: unsupported file type %q (want .tsv or .xlsx)", filepath.Ext(path))
}

// Load reads every data row of a puff log in file order.
func Load(ctx context.Context, path string, opts Options) ([]model.RawRecord, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	var records []model.RawRecord
	switch format {
	case FormatXLSX:
		records, err = ReadXLSX(ctx, path, opts)
	default:
		f, openErr := os.Open(path)
		if openErr != nil {
			return nil, eris.Wrapf(openErr, "input: open %s", path)
		}
		defer f.Close() //nolint:errcheck
		records, err = ReadTSV(ctx, f, opts)
	}
	if err != nil {
		return nil, err
	}

	zap.L().Info("input: loaded puff log",
		zap.String("path", path),
		zap.String("format", string(format)),
		zap.Int("rows", len(records)),
	)
	return records, nil
}

// ReadTSV reads a tab-separated puff log. Blank lines and comment lines
// are dropped before parsing.
func ReadTSV(ctx context.Context, r io.Reader, opts Options) ([]model.RawRecord, error) {
	headerCh := make(chan []string, 1)
	csvOpts := fetcher.TSVOptions(headerCh)
	csvOpts.CommentPrefix = opts.CommentPrefix

	rowCh, errCh := fetcher.StreamCSV(ctx, r, csvOpts)
	var rows [][]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	for err := range errCh {
		if err != nil {
			return nil, eris.Wrap(err, "input: read tsv")
		}
	}

	var header []string
	select {
	case header = <-headerCh:
	default:
		return nil, ErrNoHeader
	}
	return toRecords(header, rows)
}

// ReadXLSX reads the configured sheet of a workbook. The first row is the
// header.
func ReadXLSX(ctx context.Context, path string, opts Options) ([]model.RawRecord, error) {
	headerCh := make(chan []string, 1)
	rowCh, errCh := fetcher.StreamXLSX(ctx, path, fetcher.XLSXOptions{
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
			return nil, eris.Wrap(err, "input: read xlsx")
		}
	}

	var header []string
	select {
	case header = <-headerCh:
	default:
		return nil, ErrNoHeader
	}
	return toRecords(header, rows)
}

// skipRow reports whether a spreadsheet row is blank or a comment.
func skipRow(row []string, commentPrefix string) bool {
	for _, cell := range row {
		c := strings.TrimSpace(cell)
		if c == "" {
			continue
		}
		return commentPrefix != "" && strings.HasPrefix(c, commentPrefix)
	}
	return true
}

func toRecords(header []string, rows [][]string) ([]model.RawRecord, error) {
	idx, err := newHeaderIndex(header)
	if err != nil {
		return nil, err
	}

	records := make([]model.RawRecord, 0, len(rows))
	for i, row := range rows {
		records = append(records, model.RawRecord{
			Row:               i + 2, // header is row 1
			Date:              idx.get(row, ColDate),
			Treatment:         idx.get(row, ColTreatment),
			Inhaler:           idx.get(row, ColInhaler),
			Puff:              idx.get(row, ColPuff),
			Seconds:           idx.get(row, ColSeconds),
			Sequence:          idx.get(row, ColSequence),
			DoublePuff:        idx.get(row, ColDoublePuff),
			NotRepresentative: idx.get(row, ColNotRepresentative),
		})
	}
	return records, nil
}
