package monitor

import (
	"math"
	"time"
)

// durationStats keeps a running mean and variance of cycle durations using Welford's method.
type durationStats struct {
	count int
	mean  float64
	m2    float64
}

func (s *durationStats) update(d time.Duration) {
	x := d.Seconds()
	s.count++
	delta := x - s.mean
	s.mean += delta / float64(s.count)
	delta2 := x - s.mean
	s.m2 += delta * delta2
}

// Mean returns the average duration, zero before the first sample.
func (s durationStats) Mean() time.Duration {
	return time.Duration(s.mean * float64(time.Second))
}

// StdDev returns the sample standard deviation, zero with fewer than two samples.
func (s durationStats) StdDev() time.Duration {
	if s.count < 2 {
		return 0
	}
	return time.Duration(math.Sqrt(s.m2/float64(s.count-1)) * float64(time.Second))
}
