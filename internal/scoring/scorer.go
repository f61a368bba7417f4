package scoring

// Breakdown is the graded result for one puff.
type Breakdown struct {
	BreathCount int
	BlockCount  int
	Continuity  int
	Time        int
	Total       int
	Color       Color

	// DroppedBlocks counts tokens that read as zero or did not parse.
	DroppedBlocks int
}

// Scorer grades puffs against a fixed set of thresholds.
type Scorer struct {
	th Thresholds
}

// NewScorer returns a Scorer bound to th.
func NewScorer(th Thresholds) *Scorer {
	return &Scorer{th: th}
}

// Thresholds returns the constants this scorer was built with.
func (s *Scorer) Thresholds() Thresholds {
	return s.th
}

// ScoreContinuity rewards fewer blocks. Double doses are allowed more.
func (s *Scorer) ScoreContinuity(blocks int, doublePuff bool) int {
	return s.th.Continuity.For(doublePuff).Score(blocks)
}

// ScoreTime rewards faster completion. Negative seconds are not a valid
// duration and score 0, like any other out-of-range value.
func (s *Scorer) ScoreTime(seconds int, doublePuff bool) int {
	if seconds < 0 {
		return 0
	}
	return s.th.Time.For(doublePuff).Score(seconds)
}

// Score parses the sequence and combines both sub-scores into a 0-6 total.
func (s *Scorer) Score(sequence string, seconds int, doublePuff bool) Breakdown {
	breaths, blocks := ParseSequence(sequence)
	c := s.ScoreContinuity(blocks, doublePuff)
	t := s.ScoreTime(seconds, doublePuff)
	total := c + t
	return Breakdown{
		BreathCount: breaths,
		BlockCount:  blocks,
		Continuity:  c,
		Time:        t,
		Total:       total,
		Color:       s.th.Classify(float64(total)),

		DroppedBlocks: countTokens(sequence) - blocks,
	}
}
