package pipeline

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/puff-cli/internal/model"
	"github.com/sells-group/puff-cli/internal/scoring"
)

// SecondsSentinel replaces an unreadable seconds value. It is far past
// every time band, so the puff gets a zero time score instead of
// aborting the run.
const SecondsSentinel = 999

var (
	// ErrEmptyInput is returned when there are no data rows to score.
	ErrEmptyInput = eris.New("pipeline: input has no puff rows")

	// ErrInvalidField is returned when a grouping field is empty or
	// cannot be read. It aborts the whole run.
	ErrInvalidField = eris.New("pipeline: invalid required field")
)

// Processor coerces raw rows into typed puffs and scores each one.
type Processor struct {
	scorer      *scoring.Scorer
	dateLayouts []string
}

// NewProcessor returns a Processor. Dates are accepted in any of
// dateLayouts and normalized to YYYY-MM-DD.
func NewProcessor(scorer *scoring.Scorer, dateLayouts []string) *Processor {
	return &Processor{scorer: scorer, dateLayouts: dateLayouts}
}

// Process scores every record in input order. Order is the record's index
// in records. Bad seconds values are recovered with SecondsSentinel and
// reported as warnings; a bad grouping field fails the run.
func (p *Processor) Process(records []model.RawRecord) ([]model.ScoredPuff, []model.Warning, error) {
	if len(records) == 0 {
		return nil, nil, ErrEmptyInput
	}

	puffs := make([]model.ScoredPuff, 0, len(records))
	var warnings []model.Warning
	for i, rec := range records {
		pr, warn, err := p.coerce(rec, i)
		if err != nil {
			return nil, nil, err
		}
		if warn != nil {
			zap.L().Warn("pipeline: invalid seconds, assigning sentinel",
				zap.Int("row", warn.Row),
				zap.String("value", warn.Value),
				zap.Int("sentinel", SecondsSentinel),
			)
			warnings = append(warnings, *warn)
		}

		b := p.scorer.Score(pr.Sequence, pr.Seconds, pr.DoublePuff)
		if b.DroppedBlocks > 0 {
			zap.L().Debug("pipeline: dropped breath blocks",
				zap.Int("row", rec.Row),
				zap.String("sequence", pr.Sequence),
				zap.Int("dropped", b.DroppedBlocks),
			)
		}
		puffs = append(puffs, model.ScoredPuff{
			PuffRecord:      pr,
			BreathCount:     b.BreathCount,
			BlockCount:      b.BlockCount,
			ContinuityScore: b.Continuity,
			TimeScore:       b.Time,
			Score:           b.Total,
			Color:           b.Color,
		})
	}
	return puffs, warnings, nil
}

func (p *Processor) coerce(rec model.RawRecord, order int) (model.PuffRecord, *model.Warning, error) {
	var pr model.PuffRecord

	date, err := p.parseDate(rec.Date)
	if err != nil {
		return pr, nil, fieldError(rec.Row, "date", rec.Date)
	}
	treatment, ok := parseWholeNumber(rec.Treatment)
	if !ok {
		return pr, nil, fieldError(rec.Row, "treatment", rec.Treatment)
	}
	if strings.TrimSpace(rec.Inhaler) == "" {
		return pr, nil, fieldError(rec.Row, "inhaler", rec.Inhaler)
	}
	puff, ok := parseWholeNumber(rec.Puff)
	if !ok || puff <= 0 {
		return pr, nil, fieldError(rec.Row, "puff", rec.Puff)
	}

	pr = model.PuffRecord{
		Date:              date,
		Treatment:         treatment,
		Inhaler:           strings.TrimSpace(rec.Inhaler),
		Puff:              puff,
		Sequence:          rec.Sequence,
		DoublePuff:        scoring.ParseFlag(rec.DoublePuff),
		NotRepresentative: scoring.ParseFlag(rec.NotRepresentative),
		Order:             order,
	}

	seconds, ok := parseWholeNumber(rec.Seconds)
	if !ok {
		pr.Seconds = SecondsSentinel
		return pr, &model.Warning{
			Row:     rec.Row,
			Column:  "seconds",
			Value:   rec.Seconds,
			Message: "invalid value for seconds, assigned " + strconv.Itoa(SecondsSentinel),
		}, nil
	}
	pr.Seconds = seconds
	return pr, nil, nil
}

func fieldError(row int, field, value string) error {
	return eris.Wrapf(ErrInvalidField, "row %d: column %q has value %q", row, field, value)
}

func (p *Processor) parseDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", eris.New("empty date")
	}
	for _, layout := range p.dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(time.DateOnly), nil
		}
	}
	return "", eris.Errorf("date %q matches no layout", s)
}

// parseWholeNumber reads an integer, also accepting a float with no
// fractional part such as "30.0" from spreadsheet number cells.
func parseWholeNumber(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}
