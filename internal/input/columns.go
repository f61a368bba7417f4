// Package input turns puff logs (TSV or XLSX) into ordered raw records
// and enforces the column contract before any scoring happens.
package input

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Canonical column names.
const (
	ColDate              = "date"
	ColTreatment         = "treatment"
	ColInhaler           = "inhaler"
	ColPuff              = "puff"
	ColSeconds           = "seconds"
	ColSequence          = "sequence"
	ColDoublePuff        = "double_puff"
	ColNotRepresentative = "not_representative"
)

// RequiredColumns must all be present in the header.
var RequiredColumns = []string{ColDate, ColTreatment, ColInhaler, ColPuff, ColSeconds, ColSequence}

// OptionalColumns are read when present and default to false otherwise.
var OptionalColumns = []string{ColDoublePuff, ColNotRepresentative}

// ExportColumns is the column order written by Extract.
var ExportColumns = []string{
	ColDate, ColTreatment, ColInhaler, ColPuff,
	ColDoublePuff, ColNotRepresentative, ColSeconds, ColSequence,
}

// columnAliases maps legacy log headers onto canonical names.
var columnAliases = map[string]string{
	"day":           ColDate,
	"combine_puffs": ColDoublePuff,
	"puff_id":       ColPuff,
}

// ErrMissingColumns is returned when the header lacks a required column.
var ErrMissingColumns = eris.New("input: missing required columns")

// ErrNoHeader is returned when the source has no header row at all.
var ErrNoHeader = eris.New("input: no header row")

// headerIndex maps canonical column names to their position in a row.
type headerIndex map[string]int

// newHeaderIndex normalizes header cells and checks every required column
// is present. The error names each missing column.
func newHeaderIndex(header []string) (headerIndex, error) {
	if len(header) == 0 {
		return nil, ErrNoHeader
	}
	idx := make(headerIndex, len(header))
	for i, h := range header {
		name := normalizeHeader(h)
		if name == "" {
			continue
		}
		if _, dup := idx[name]; dup {
			continue // first occurrence wins
		}
		idx[name] = i
	}

	var missing []string
	for _, c := range RequiredColumns {
		if _, ok := idx[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, eris.Wrapf(ErrMissingColumns, "%s", strings.Join(missing, ", "))
	}
	return idx, nil
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.ToLower(strings.TrimSpace(h))
	if alias, ok := columnAliases[h]; ok {
		return alias
	}
	return h
}

// get returns the cell for a column, or "" when the column is absent or
// the row is short.
func (h headerIndex) get(row []string, col string) string {
	i, ok := h[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func (h headerIndex) has(col string) bool {
	_, ok := h[col]
	return ok
}
