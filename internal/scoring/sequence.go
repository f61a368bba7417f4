// Package scoring parses breath sequences and grades individual puffs.
package scoring

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// blockDelimiter splits a sequence into blocks on a hyphen with optional
// surrounding whitespace.
var blockDelimiter = regexp.MustCompile(`\s*-\s*`)

// ParseSequence converts a free-text breath sequence such as
// "1 - 2 - 0.5 - 3/4" into the total number of breaths and the number of
// blocks that contributed at least one breath.
//
// Blocks that read as zero or cannot be parsed are dropped from both
// counts; they mean "no breath detected", not an empty block.
func ParseSequence(sequence string) (breaths, blocks int) {
	if strings.TrimSpace(sequence) == "" {
		return 0, 0
	}
	for _, block := range blockDelimiter.Split(sequence, -1) {
		n := parseBlock(block)
		if n > 0 {
			breaths += n
			blocks++
		}
	}
	return breaths, blocks
}

// countTokens returns the number of delimiter-separated tokens in a
// sequence, including ones that ParseSequence would drop.
func countTokens(sequence string) int {
	if strings.TrimSpace(sequence) == "" {
		return 0
	}
	return len(blockDelimiter.Split(sequence, -1))
}

// parseBlock reads the primary value of one block. Anything after a '/'
// is an uncertain annotation and is ignored.
func parseBlock(block string) int {
	primary, _, _ := strings.Cut(block, "/")
	primary = strings.ReplaceAll(strings.TrimSpace(primary), ",", ".")
	if primary == "" {
		return 0
	}
	f, err := strconv.ParseFloat(primary, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt32 {
		return 0
	}
	return int(f) // truncates toward zero
}
