package model

import "github.com/sells-group/puff-cli/internal/scoring"

// RawRecord is one input row as text, before any coercion. Row is the
// 1-based spreadsheet-style row number (the header is row 1) used in
// warnings and errors.
type RawRecord struct {
	Row               int    `json:"row"`
	Date              string `json:"date"`
	Treatment         string `json:"treatment"`
	Inhaler           string `json:"inhaler"`
	Puff              string `json:"puff"`
	Seconds           string `json:"seconds"`
	Sequence          string `json:"sequence"`
	DoublePuff        string `json:"double_puff"`
	NotRepresentative string `json:"not_representative"`
}

// PuffRecord is a single typed breath attempt.
type PuffRecord struct {
	Date              string `json:"date"` // YYYY-MM-DD
	Treatment         int    `json:"treatment"`
	Inhaler           string `json:"inhaler"`
	Puff              int    `json:"puff"`
	Seconds           int    `json:"seconds"`
	Sequence          string `json:"sequence"`
	DoublePuff        bool   `json:"double_puff"`
	NotRepresentative bool   `json:"not_representative"`

	// Order is the zero-based input row index. It is the only valid
	// tie-break for puffs in the same inhaler and is never recomputed.
	Order int `json:"order"`
}

// ScoredPuff is a PuffRecord with its sub-scores and classification.
type ScoredPuff struct {
	PuffRecord

	BreathCount     int           `json:"breath_count"`
	BlockCount      int           `json:"block_count"`
	ContinuityScore int           `json:"continuity_score"`
	TimeScore       int           `json:"time_score"`
	Score           int           `json:"score"`
	Color           scoring.Color `json:"colors"`
}

// PuffCell is the per-puff detail carried on an inhaler row.
type PuffCell struct {
	Score int           `json:"score"`
	Color scoring.Color `json:"colors"`
}

// InhalerSummary aggregates the puffs of one (date, treatment, inhaler).
type InhalerSummary struct {
	Date       string        `json:"date"`
	Treatment  int           `json:"treatment"`
	Inhaler    string        `json:"inhaler"`
	AvgScore   float64       `json:"avg_score_inh"`
	Color      scoring.Color `json:"colors_inhaler"`
	DoublePuff bool          `json:"double_puff"`

	// Puffs is ordered by the member puffs' Order; index i renders as
	// puff{i+1}_score / puff{i+1}_colors.
	Puffs []PuffCell `json:"puffs"`
}

// TreatmentSummary aggregates the inhalers of one (date, treatment).
type TreatmentSummary struct {
	Date        string        `json:"date"`
	Treatment   int           `json:"treatment"`
	NumInhalers int           `json:"num_inhalers"`
	AvgScore    float64       `json:"avg_score_treat"`
	Color       scoring.Color `json:"colors_treatment"`
	DoublePuff  bool          `json:"double_puff_in_treatment"`
}

// DaySummary aggregates every puff recorded on one date.
type DaySummary struct {
	Date     string        `json:"date"`
	AvgScore float64       `json:"avg_score_day"`
	Color    scoring.Color `json:"colors_day"`
}

// PuffScores is a flattened set of leaf puff scores. Treatment and day
// averages are always reduced from a PuffScores, never from child means.
type PuffScores []int

// Mean returns the arithmetic mean, or 0 for an empty set.
func (s PuffScores) Mean() float64 {
	if len(s) == 0 {
		return 0
	}
	total := 0
	for _, v := range s {
		total += v
	}
	return float64(total) / float64(len(s))
}

// DayScores accumulates leaf puff scores per date.
type DayScores map[string]PuffScores

// Warning is a recoverable, row-level data quality issue.
type Warning struct {
	Row     int    `json:"row" yaml:"row"`
	Column  string `json:"column" yaml:"column"`
	Value   string `json:"value" yaml:"value"`
	Message string `json:"message" yaml:"message"`
}

// Result is the full output of one scoring run.
type Result struct {
	Puffs      []ScoredPuff       `json:"puffs"`
	Inhalers   []InhalerSummary   `json:"inhalers"`
	Treatments []TreatmentSummary `json:"treatments"`
	Days       []DaySummary       `json:"days"`
	Warnings   []Warning          `json:"warnings,omitempty"`
}

// Aggregation levels, as used in summaries and metric labels.
const (
	LevelPuff      = "puff"
	LevelInhaler   = "inhaler"
	LevelTreatment = "treatment"
	LevelDay       = "day"
)

// Levels lists aggregation levels from leaf to root.
var Levels = []string{LevelPuff, LevelInhaler, LevelTreatment, LevelDay}

// ColorCounts tallies rows per color name.
type ColorCounts map[string]int

// ColorCounts returns, per level, how many rows landed in each color.
// Every color appears for every level, with zero counts included.
func (r *Result) ColorCounts() map[string]ColorCounts {
	out := make(map[string]ColorCounts, len(Levels))
	for _, level := range Levels {
		counts := make(ColorCounts, len(scoring.AllColors))
		for _, c := range scoring.AllColors {
			counts[c.String()] = 0
		}
		out[level] = counts
	}
	for _, p := range r.Puffs {
		out[LevelPuff][p.Color.String()]++
	}
	for _, inh := range r.Inhalers {
		out[LevelInhaler][inh.Color.String()]++
	}
	for _, t := range r.Treatments {
		out[LevelTreatment][t.Color.String()]++
	}
	for _, d := range r.Days {
		out[LevelDay][d.Color.String()]++
	}
	return out
}
