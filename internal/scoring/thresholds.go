package scoring

import (
	"github.com/rotisserie/eris"
)

// Bands holds three inclusive upper bounds. A value up to Bands[0] earns
// 3 points, up to Bands[1] 2 points, up to Bands[2] 1 point, and 0 above.
type Bands [3]int

// Score maps v onto the 0-3 point scale.
func (b Bands) Score(v int) int {
	switch {
	case v <= b[0]:
		return 3
	case v <= b[1]:
		return 2
	case v <= b[2]:
		return 1
	default:
		return 0
	}
}

func (b Bands) validate(name string) error {
	if b[0] > b[1] || b[1] > b[2] {
		return eris.Errorf("scoring: %s bands must be non-decreasing, got %v", name, [3]int(b))
	}
	return nil
}

// DoseBands holds separate bands for single and double-dose attempts.
type DoseBands struct {
	Single Bands `json:"single" yaml:"single"`
	Double Bands `json:"double" yaml:"double"`
}

// For returns the bands that apply to the dose type.
func (d DoseBands) For(doublePuff bool) Bands {
	if doublePuff {
		return d.Double
	}
	return d.Single
}

// Thresholds is the immutable set of tunable scoring constants for a run.
// The same Green/Yellow cut-offs classify puffs and every aggregate.
type Thresholds struct {
	Continuity DoseBands `json:"continuity" yaml:"continuity"`
	Time       DoseBands `json:"time" yaml:"time"`
	Green      float64   `json:"green_threshold" yaml:"green_threshold"`
	Yellow     float64   `json:"yellow_threshold" yaml:"yellow_threshold"`
}

// DefaultThresholds returns the constants derived from percentile analysis
// of historical recordings.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Continuity: DoseBands{
			Single: Bands{3, 4, 6},
			Double: Bands{7, 8, 12},
		},
		Time: DoseBands{
			Single: Bands{28, 31, 35},
			Double: Bands{56, 62, 70},
		},
		Green:  4,
		Yellow: 2,
	}
}

// Validate checks that bands are ordered and green is not below yellow.
func (t Thresholds) Validate() error {
	for name, b := range map[string]Bands{
		"continuity.single": t.Continuity.Single,
		"continuity.double": t.Continuity.Double,
		"time.single":       t.Time.Single,
		"time.double":       t.Time.Double,
	} {
		if err := b.validate(name); err != nil {
			return err
		}
	}
	if t.Green < t.Yellow {
		return eris.Errorf("scoring: green_threshold (%g) must be >= yellow_threshold (%g)", t.Green, t.Yellow)
	}
	return nil
}

// Classify grades a score or an average. It is a pure function of v.
func (t Thresholds) Classify(v float64) Color {
	switch {
	case v >= t.Green:
		return ColorGreen
	case v >= t.Yellow:
		return ColorYellow
	default:
		return ColorRed
	}
}
