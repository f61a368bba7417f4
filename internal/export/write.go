package export

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// WriteTable writes t as tab-separated values with a header row.
func WriteTable(w io.Writer, t Table, colored bool) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'

	if err := cw.Write(t.Columns); err != nil {
		return eris.Wrapf(err, "export: write %s header", t.Name)
	}
	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, v := range row {
			record[i] = formatCell(v, colored)
		}
		if err := cw.Write(record); err != nil {
			return eris.Wrapf(err, "export: write %s row", t.Name)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return eris.Wrapf(err, "export: flush %s", t.Name)
	}
	return nil
}

// FileNames returns the plain and colored file names for a table.
func FileNames(name string) (plain, colored string) {
	return name + ".tsv", name + "_colored.tsv"
}

// WriteAll writes every table to dir as <name>.tsv and <name>_colored.tsv.
// Tables are written concurrently and independently: a failure on one
// file does not stop or roll back the others. Existing files are
// overwritten. The returned paths are sorted and include only files
// written successfully.
func WriteAll(dir string, tables []Table) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "export: create output dir %s", dir)
	}

	var (
		g       errgroup.Group
		mu      sync.Mutex
		written []string
	)
	for _, t := range tables {
		plain, colored := FileNames(t.Name)
		for _, target := range []struct {
			name    string
			colored bool
		}{{plain, false}, {colored, true}} {
			path := filepath.Join(dir, target.name)
			g.Go(func() error {
				if err := writeFile(path, t, target.colored); err != nil {
					zap.L().Error("export: table write failed", zap.String("path", path), zap.Error(err))
					return err
				}
				mu.Lock()
				written = append(written, path)
				mu.Unlock()
				return nil
			})
		}
	}
	err := g.Wait()
	slices.Sort(written)

	zap.L().Info("export: tables written", zap.String("dir", dir), zap.Int("files", len(written)))
	return written, err
}

func writeFile(path string, t Table, colored bool) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	if err := WriteTable(f, t, colored); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	if err := f.Close(); err != nil {
		return eris.Wrapf(err, "export: close %s", path)
	}
	return nil
}
