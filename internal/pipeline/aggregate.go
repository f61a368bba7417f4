package pipeline

import (
	"cmp"
	"math"
	"slices"

	"github.com/sells-group/puff-cli/internal/model"
	"github.com/sells-group/puff-cli/internal/scoring"
)

type inhalerKey struct {
	date      string
	treatment int
	inhaler   string
}

type treatmentKey struct {
	date      string
	treatment int
}

// AggregateInhalers groups puffs by (date, treatment, inhaler). Members
// are ordered by Order before the per-puff cells are laid out, so cell i
// is always the i-th recorded puff. Output is sorted by key.
func AggregateInhalers(puffs []model.ScoredPuff, th scoring.Thresholds) []model.InhalerSummary {
	groups := make(map[inhalerKey][]model.ScoredPuff)
	for _, p := range puffs {
		k := inhalerKey{p.Date, p.Treatment, p.Inhaler}
		groups[k] = append(groups[k], p)
	}

	out := make([]model.InhalerSummary, 0, len(groups))
	for k, members := range groups {
		slices.SortStableFunc(members, func(a, b model.ScoredPuff) int {
			return cmp.Compare(a.Order, b.Order)
		})

		scores := make(model.PuffScores, 0, len(members))
		cells := make([]model.PuffCell, 0, len(members))
		double := false
		for _, m := range members {
			scores = append(scores, m.Score)
			cells = append(cells, model.PuffCell{Score: m.Score, Color: m.Color})
			double = double || m.DoublePuff
		}

		avg, color := reduce(scores, th)
		out = append(out, model.InhalerSummary{
			Date:       k.date,
			Treatment:  k.treatment,
			Inhaler:    k.inhaler,
			AvgScore:   avg,
			Color:      color,
			DoublePuff: double,
			Puffs:      cells,
		})
	}

	slices.SortFunc(out, func(a, b model.InhalerSummary) int {
		return cmp.Or(
			cmp.Compare(a.Date, b.Date),
			cmp.Compare(a.Treatment, b.Treatment),
			cmp.Compare(a.Inhaler, b.Inhaler),
		)
	})
	return out
}

// AggregateTreatments groups inhalers by (date, treatment). The treatment
// average is taken over every member puff score, not over the inhaler
// averages, which differ whenever inhalers have unequal puff counts. The
// same leaf scores are collected per date for AggregateDays.
func AggregateTreatments(inhalers []model.InhalerSummary, th scoring.Thresholds) ([]model.TreatmentSummary, model.DayScores) {
	groups := make(map[treatmentKey][]model.InhalerSummary)
	var keys []treatmentKey
	for _, inh := range inhalers {
		k := treatmentKey{inh.Date, inh.Treatment}
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], inh)
	}
	slices.SortFunc(keys, func(a, b treatmentKey) int {
		return cmp.Or(cmp.Compare(a.date, b.date), cmp.Compare(a.treatment, b.treatment))
	})

	days := make(model.DayScores)
	out := make([]model.TreatmentSummary, 0, len(keys))
	for _, k := range keys {
		members := groups[k]

		leaves := collectLeaves(members)
		avg, color := reduce(leaves, th)
		days[k.date] = append(days[k.date], leaves...)

		double := false
		for _, m := range members {
			double = double || m.DoublePuff
		}

		out = append(out, model.TreatmentSummary{
			Date:        k.date,
			Treatment:   k.treatment,
			NumInhalers: len(members),
			AvgScore:    round2(avg),
			Color:       color,
			DoublePuff:  double,
		})
	}
	return out, days
}

// AggregateDays reduces the leaf scores collected per date. Output is
// sorted by date.
func AggregateDays(days model.DayScores, th scoring.Thresholds) []model.DaySummary {
	dates := make([]string, 0, len(days))
	for d := range days {
		dates = append(dates, d)
	}
	slices.Sort(dates)

	out := make([]model.DaySummary, 0, len(dates))
	for _, d := range dates {
		avg, color := reduce(days[d], th)
		out = append(out, model.DaySummary{
			Date:     d,
			AvgScore: round2(avg),
			Color:    color,
		})
	}
	return out
}

// collectLeaves flattens every puff cell of every inhaler.
func collectLeaves(inhalers []model.InhalerSummary) model.PuffScores {
	var leaves model.PuffScores
	for _, inh := range inhalers {
		for _, c := range inh.Puffs {
			leaves = append(leaves, c.Score)
		}
	}
	return leaves
}

// reduce averages a leaf set and classifies the unrounded mean. An empty
// set is 0 and red regardless of thresholds.
func reduce(scores model.PuffScores, th scoring.Thresholds) (float64, scoring.Color) {
	if len(scores) == 0 {
		return 0, scoring.ColorRed
	}
	avg := scores.Mean()
	return avg, th.Classify(avg)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
