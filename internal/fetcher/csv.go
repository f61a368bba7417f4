// Package fetcher streams rows out of delimited text and XLSX workbooks.
package fetcher

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// CSVOptions configures the streaming delimited-text parser.
type CSVOptions struct {
	Delimiter     rune            // default ','
	HasHeader     bool            // if true, first row is skipped but sent to HeaderCh
	HeaderCh      chan<- []string // optional: receives the header row
	CommentPrefix string          // lines starting with this after leading whitespace are dropped ("" = none)
	SkipBlank     bool            // drop whitespace-only lines before parsing
	LazyQuotes    bool
	TrimSpace     bool
}

// TSVOptions returns the options used for puff logs: tab-delimited with a
// header row, '#' comments and blank lines removed.
func TSVOptions(headerCh chan<- []string) CSVOptions {
	return CSVOptions{
		Delimiter:     '\t',
		HasHeader:     true,
		HeaderCh:      headerCh,
		CommentPrefix: "#",
		SkipBlank:     true,
		LazyQuotes:    true,
		TrimSpace:     true,
	}
}

// StreamCSV reads delimited text and sends rows to a channel.
// Caller must consume the returned row channel. Errors are sent on the error channel.
// Both channels are closed when processing completes.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		var reader *csv.Reader
		if opts.CommentPrefix != "" || opts.SkipBlank {
			reader = csv.NewReader(newLineFilter(r, opts.CommentPrefix, opts.SkipBlank))
		} else {
			reader = csv.NewReader(r)
		}

		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		reader.LazyQuotes = opts.LazyQuotes
		reader.FieldsPerRecord = -1 // allow variable fields

		first := true
		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}

			if opts.TrimSpace {
				for i, field := range record {
					record[i] = strings.TrimSpace(field)
				}
			}

			if first && opts.HasHeader {
				first = false
				if opts.HeaderCh != nil {
					select {
					case opts.HeaderCh <- record:
					case <-ctx.Done():
						errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled sending header")
						return
					}
				}
				continue
			}
			first = false

			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

// lineFilter drops comment and blank lines before the csv reader sees
// them, so they never count as records.
type lineFilter struct {
	br      *bufio.Reader
	prefix  []byte
	noBlank bool
	pending []byte
	err     error
}

func newLineFilter(r io.Reader, prefix string, skipBlank bool) *lineFilter {
	return &lineFilter{br: bufio.NewReader(r), prefix: []byte(prefix), noBlank: skipBlank}
}

func (f *lineFilter) Read(p []byte) (int, error) {
	for len(f.pending) == 0 {
		if f.err != nil {
			return 0, f.err
		}
		line, err := f.br.ReadBytes('\n')
		f.err = err
		if len(line) > 0 && !f.drop(line) {
			f.pending = line
		}
	}
	n := copy(p, f.pending)
	f.pending = f.pending[n:]
	return n, nil
}

func (f *lineFilter) drop(line []byte) bool {
	trimmed := bytes.TrimLeft(line, " \t")
	if f.noBlank && len(bytes.TrimSpace(trimmed)) == 0 {
		return true
	}
	return len(f.prefix) > 0 && bytes.HasPrefix(trimmed, f.prefix)
}
