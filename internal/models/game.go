package models

import (
	"errors"
	"time"
)

// Recommendation is the betting call made when the decision window fires.
type Recommendation string

const (
	RecommendOver  Recommendation = "OVER"
	RecommendUnder Recommendation = "UNDER"
	RecommendNoBet Recommendation = "NO_BET"
)

// SideCall is the projection, market line and call for one quantity (home, away or total).
// Line is nil when the odds collaborator had no line for it.
type SideCall struct {
	Projection     float64        `json:"projection"`
	Line           *float64       `json:"line,omitempty"`
	Recommendation Recommendation `json:"recommendation"`
}

// Diff returns projection minus line, or false when there is no line.
func (c SideCall) Diff() (float64, bool) {
	if c.Line == nil {
		return 0, false
	}
	return c.Projection - *c.Line, true
}

// Decision is the record frozen when the decision window fires.
type Decision struct {
	Total SideCall `json:"total"`
	Home  SideCall `json:"home"`
	Away  SideCall `json:"away"`

	BlendedTotal SideCall `json:"blended_total"`
	BlendedHome  SideCall `json:"blended_home"`
	BlendedAway  SideCall `json:"blended_away"`

	DecidedAt time.Time `json:"decided_at"`
}

// GameState is the per-game tracking record, persisted between ticks.
type GameState struct {
	GameID string `json:"game_id"`

	LastStamp    string `json:"last_stamp"`
	MissedCycles int    `json:"missed_cycles"`

	HomeSamples  []float64 `json:"home_samples"`
	AwaySamples  []float64 `json:"away_samples"`
	TotalSamples []float64 `json:"total_samples"`

	// One-shot flags. Never cleared while the record exists.
	BettingWindowFired     bool `json:"betting_window_fired"`
	DecisionWindowComplete bool `json:"decision_window_complete"`
	FinalReportSent        bool `json:"final_report_sent"`
	OverLockedSent         bool `json:"over_locked_sent"`

	LastAlertAt time.Time `json:"last_alert_at"`

	LastHomeScore int    `json:"last_home_score"`
	LastAwayScore int    `json:"last_away_score"`
	HomeName      string `json:"home_name"`
	AwayName      string `json:"away_name"`

	Decision *Decision `json:"decision,omitempty"`

	TrackedSince time.Time `json:"tracked_since"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewGameState returns the default record for a newly tracked game.
func NewGameState(gameID string, now time.Time) *GameState {
	return &GameState{
		GameID:       gameID,
		HomeSamples:  []float64{},
		AwaySamples:  []float64{},
		TotalSamples: []float64{},
		TrackedSince: now,
		UpdatedAt:    now,
	}
}

// Clone returns a deep copy so a transition can be abandoned without touching the original.
func (g *GameState) Clone() *GameState {
	c := *g
	c.HomeSamples = append([]float64{}, g.HomeSamples...)
	c.AwaySamples = append([]float64{}, g.AwaySamples...)
	c.TotalSamples = append([]float64{}, g.TotalSamples...)
	if g.Decision != nil {
		d := *g.Decision
		c.Decision = &d
	}
	return &c
}

// Validate checks the record's structural invariants.
func (g *GameState) Validate() error {
	if g.GameID == "" {
		return errors.New("game ID must not be empty")
	}
	if g.MissedCycles < 0 {
		return errors.New("missed cycles must not be negative")
	}
	if len(g.HomeSamples) != len(g.TotalSamples) || len(g.AwaySamples) != len(g.TotalSamples) {
		return errors.New("sample series must have equal length")
	}
	if g.BettingWindowFired && !g.DecisionWindowComplete {
		return errors.New("betting window fired without completing the decision window")
	}
	return nil
}

// Result grades a settled call against the actual final value.
type Result string

const (
	ResultWin  Result = "WIN"
	ResultLoss Result = "LOSS"
	ResultPush Result = "PUSH"
	ResultNone Result = ""
)

// Grade settles the call against actual. NO_BET and line-less calls grade as ResultNone.
func (c SideCall) Grade(actual float64) Result {
	if c.Line == nil || c.Recommendation == RecommendNoBet || c.Recommendation == "" {
		return ResultNone
	}
	switch {
	case actual == *c.Line:
		return ResultPush
	case (actual > *c.Line) == (c.Recommendation == RecommendOver):
		return ResultWin
	default:
		return ResultLoss
	}
}
