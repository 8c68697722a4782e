package projection

// Momentum labels what the recent rate trend is doing.
type Momentum string

const (
	MomentumOnFire           Momentum = "ON_FIRE"
	MomentumCoolingOff       Momentum = "COOLING_OFF"
	MomentumSteady           Momentum = "STEADY_PACE"
	MomentumHeatingUp        Momentum = "HEATING_UP"
	MomentumSlowingDown      Momentum = "SLOWING_DOWN"
	MomentumInsufficientData Momentum = "INSUFFICIENT_DATA"
)

// Reliability labels how far a projection built on the recent trend can be trusted.
type Reliability string

const (
	ReliabilityReliable         Reliability = "RELIABLE"
	ReliabilityStrongUp         Reliability = "STRONG_UP"
	ReliabilityCautionDown      Reliability = "CAUTION_DOWN"
	ReliabilityRisky            Reliability = "RISKY_UNPREDICTABLE"
	ReliabilityInsufficientData Reliability = "INSUFFICIENT_DATA"
)

// Leader labels which side leads by a meaningful margin.
type Leader string

const (
	LeaderHome Leader = "HOME_LEADER"
	LeaderAway Leader = "AWAY_LEADER"
	LeaderTied Leader = "TIED"
)

const (
	// TrendWindow is how many trailing samples the classifiers look at.
	TrendWindow = 5

	// MomentumEpsilon absorbs float noise in per-second rates.
	MomentumEpsilon = 0.0005

	// ReliableRange is the max-min spread under which the window counts as flat.
	ReliableRange = 0.002
)

func tailDiffs(s Series) ([]float64, Series, bool) {
	if len(s) < TrendWindow {
		return nil, nil, false
	}
	window := s[len(s)-TrendWindow:]
	diffs := make([]float64, 0, TrendWindow-1)
	for i := 1; i < len(window); i++ {
		diffs = append(diffs, window[i]-window[i-1])
	}
	return diffs, window, true
}

func countMoves(diffs []float64, eps float64) (ups, downs int) {
	for _, d := range diffs {
		switch {
		case d > eps:
			ups++
		case d < -eps:
			downs++
		}
	}
	return ups, downs
}

// ClassifyMomentum inspects the last TrendWindow samples.
func ClassifyMomentum(s Series) Momentum {
	diffs, _, ok := tailDiffs(s)
	if !ok {
		return MomentumInsufficientData
	}
	ups, downs := countMoves(diffs, MomentumEpsilon)
	switch {
	case ups >= 3:
		return MomentumOnFire
	case downs >= 3:
		return MomentumCoolingOff
	case ups == downs:
		return MomentumSteady
	case ups > downs:
		return MomentumHeatingUp
	default:
		return MomentumSlowingDown
	}
}

// ClassifyReliability inspects the same window as ClassifyMomentum but answers a different
// question: a flat window is reliable, a monotonic one is a strong trend, and a window that
// changes direction twice or more is risky.
func ClassifyReliability(s Series) Reliability {
	diffs, window, ok := tailDiffs(s)
	if !ok {
		return ReliabilityInsufficientData
	}

	lo, hi := window[0], window[0]
	for _, v := range window[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	if hi-lo <= ReliableRange {
		return ReliabilityReliable
	}

	ups, downs := countMoves(diffs, 0)
	if ups == len(diffs) {
		return ReliabilityStrongUp
	}
	if downs == len(diffs) {
		return ReliabilityCautionDown
	}

	turns := 0
	for i := 0; i < len(diffs)-1; i++ {
		if diffs[i] != 0 && diffs[i+1] != 0 && (diffs[i] > 0) != (diffs[i+1] > 0) {
			turns++
		}
	}
	if turns >= 2 {
		return ReliabilityRisky
	}
	if ups > downs {
		return ReliabilityStrongUp
	}
	return ReliabilityCautionDown
}

// IsAccelerating reports at least three clear upward steps in the window.
func IsAccelerating(s Series) bool {
	diffs, _, ok := tailDiffs(s)
	if !ok {
		return false
	}
	ups, _ := countMoves(diffs, MomentumEpsilon)
	return ups >= 3
}

// LeaderStatus compares scores against a margin threshold.
func LeaderStatus(home, away, threshold int) Leader {
	diff := home - away
	switch {
	case diff >= threshold:
		return LeaderHome
	case -diff >= threshold:
		return LeaderAway
	default:
		return LeaderTied
	}
}
