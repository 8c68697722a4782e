package tracker

import (
	"errors"
	"fmt"
	"time"

	"github.com/rewired-gh/paceoracle/internal/projection"
)

// PeriodicMode selects when projection updates are sent from Q3 on.
type PeriodicMode string

const (
	// PeriodicThrottled sends at most one update per MinAlertInterval, before and after the
	// decision window.
	PeriodicThrottled PeriodicMode = "throttled"
	// PeriodicPreDecision sends on every accepted tick until the decision window fires.
	PeriodicPreDecision PeriodicMode = "pre_decision"
)

// TiedFinalPolicy decides what happens when the clock runs out on a tied score.
type TiedFinalPolicy string

const (
	TiedFinalSkip   TiedFinalPolicy = "skip"
	TiedFinalReport TiedFinalPolicy = "report"
)

// Config holds the engine's tunables. Clock has no default and must be set.
type Config struct {
	Clock projection.Clock

	// Capacity is how many games may be tracked at once; 0 means unlimited.
	Capacity int
	// EarlyQuarter is the last quarter in which a new game can be picked up and in which a
	// stalled game is released.
	EarlyQuarter   int
	StallThreshold int
	// AbsenceLimit releases a tracked game after that many consecutive ticks missing from
	// the feed; 0 disables it.
	AbsenceLimit int

	AlertThresholdPoints  float64
	ExperimentalThreshold float64
	BlendRatio            float64
	LeaderThreshold       int
	AvoidPush             bool

	MinAlertInterval time.Duration
	PeriodicMode     PeriodicMode
	TiedFinal        TiedFinalPolicy
	// OvertimeFinal also reports a final when an overtime period ends with a winner.
	OvertimeFinal bool

	Workers int
}

// DefaultConfig returns the defaults for everything except Clock.
func DefaultConfig() Config {
	return Config{
		Capacity:              1,
		EarlyQuarter:          2,
		StallThreshold:        8,
		AbsenceLimit:          3,
		AlertThresholdPoints:  5,
		ExperimentalThreshold: 1.5,
		BlendRatio:            0.3,
		LeaderThreshold:       5,
		MinAlertInterval:      30 * time.Second,
		PeriodicMode:          PeriodicThrottled,
		TiedFinal:             TiedFinalSkip,
		OvertimeFinal:         true,
		Workers:               4,
	}
}

// Validate checks the config before the engine is built.
func (c Config) Validate() error {
	if err := c.Clock.Validate(); err != nil {
		return fmt.Errorf("invalid clock: %w", err)
	}
	if c.Capacity < 0 {
		return errors.New("capacity must not be negative")
	}
	if c.EarlyQuarter < 1 {
		return errors.New("early quarter must be at least 1")
	}
	if c.StallThreshold < 1 {
		return errors.New("stall threshold must be at least 1")
	}
	if c.AbsenceLimit < 0 {
		return errors.New("absence limit must not be negative")
	}
	if c.AlertThresholdPoints < 0 || c.ExperimentalThreshold < 0 {
		return errors.New("alert thresholds must not be negative")
	}
	if c.BlendRatio < 0 || c.BlendRatio > 1 {
		return errors.New("blend ratio must be between 0 and 1")
	}
	switch c.PeriodicMode {
	case PeriodicThrottled, PeriodicPreDecision:
	default:
		return fmt.Errorf("unknown periodic mode %q", c.PeriodicMode)
	}
	switch c.TiedFinal {
	case TiedFinalSkip, TiedFinalReport:
	default:
		return fmt.Errorf("unknown tied final policy %q", c.TiedFinal)
	}
	if c.Workers < 1 {
		return errors.New("workers must be at least 1")
	}
	return nil
}
