package scoring

import (
	"strings"

	"golang.org/x/text/cases"
)

// truthyTokens is the complete set of values read as true. Matching is
// whitespace-trimmed and case-folded.
var truthyTokens = map[string]bool{
	"1":    true,
	"true": true,
	"yes":  true,
}

// ParseFlag reads a textual boolean column. Any token outside
// truthyTokens, including an empty cell, is false.
func ParseFlag(s string) bool {
	folded := cases.Fold().String(strings.TrimSpace(s))
	return truthyTokens[folded]
}
