package projection

import "math"

// TeamTotals is a game total split into the favourite's (High) and underdog's (Low) share.
type TeamTotals struct {
	High float64
	Low  float64
}

// Splitter derives team totals from a game total and a spread.
//
// With AvoidPush set, results sitting on a whole number are moved down half a point so a
// line can never land exactly on a final score.
type Splitter struct {
	AvoidPush bool
}

// SplitTeamTotals splits with the default Splitter.
func SplitTeamTotals(total, spread float64) TeamTotals {
	return Splitter{}.Split(total, spread)
}

// Split is deterministic: the same total and spread always yield the same split.
func (sp Splitter) Split(total, spread float64) TeamTotals {
	s := math.Abs(spread)
	high := (total + s) / 2
	low := total - high

	// Lines already on the half-point grid are settled before the near-even collapse.
	if sp.AvoidPush {
		hf, lf := frac(high), frac(low)
		switch {
		case hf == 0.5 && lf == 0.5:
			return TeamTotals{High: high, Low: low}
		case hf == 0 && lf == 0:
			return TeamTotals{High: high - 0.5, Low: low - 0.5}
		case hf == 0 && lf == 0.5:
			return TeamTotals{High: high - 0.5, Low: low}
		case hf == 0.5 && lf == 0:
			return TeamTotals{High: high, Low: low - 0.5}
		}
	}

	// Near-even teams: the spread is noise, give both sides the same number.
	if s <= 2.0 && math.Abs(high-low) <= 1.0 {
		even := RoundHalf(total / 2)
		return TeamTotals{High: even, Low: even}
	}

	return TeamTotals{High: RoundHalf(high), Low: RoundHalf(low)}
}

// AssignTeamLines maps a split onto sides. A negative spread means the home side is
// favoured and takes the high share.
func AssignTeamLines(tt TeamTotals, spread float64) (home, away float64) {
	if spread < 0 {
		return tt.High, tt.Low
	}
	return tt.Low, tt.High
}

func frac(v float64) float64 {
	return math.Abs(v - math.Trunc(v))
}
