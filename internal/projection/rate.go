package projection

import "math"

// Rate returns points per second, or 0 when nothing has been played yet.
func Rate(score, played int) float64 {
	if played <= 0 {
		return 0
	}
	return float64(score) / float64(played)
}

// Series is an ordered, append-only sequence of rate samples. Order matters for the
// tail-window classifiers, so it is never sorted or deduplicated.
type Series []float64

// Append adds a sample at the end. History is never truncated; classifiers window on read.
func Append(s Series, rate float64) Series {
	return append(s, rate)
}

// Mean returns the arithmetic mean, false for an empty series.
func (s Series) Mean() (float64, bool) {
	if len(s) == 0 {
		return 0, false
	}
	var sum float64
	for _, v := range s {
		sum += v
	}
	return sum / float64(len(s)), true
}

// Last returns the most recent sample.
func (s Series) Last() (float64, bool) {
	if len(s) == 0 {
		return 0, false
	}
	return s[len(s)-1], true
}

// RawProjection scales the instantaneous rate to a full game.
func RawProjection(score, played, gameSeconds int) float64 {
	return Round1(Rate(score, played) * float64(gameSeconds))
}

// SeriesProjection scales the mean of all samples to a full game. The bool is false for
// an empty series.
func SeriesProjection(s Series, gameSeconds int) (float64, bool) {
	mean, ok := s.Mean()
	if !ok {
		return 0, false
	}
	return Round1(mean * float64(gameSeconds)), true
}

// Blend mixes the raw and averaged projections; ratio is the weight of the raw value.
func Blend(raw, avg, ratio float64) float64 {
	return Round1(raw*ratio + avg*(1-ratio))
}

// Round1 rounds to one decimal place, half away from zero.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// RoundHalf rounds to the nearest 0.5.
func RoundHalf(v float64) float64 {
	return math.Round(v*2) / 2
}
