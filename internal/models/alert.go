package models

import (
	"time"

	"github.com/rewired-gh/paceoracle/internal/projection"
)

// AlertKind categorizes an alert descriptor.
type AlertKind string

const (
	AlertDecisionWindow AlertKind = "DECISION_WINDOW"
	AlertPeriodic       AlertKind = "PERIODIC"
	AlertStall          AlertKind = "STALL"
	AlertFinal          AlertKind = "FINAL"
	AlertReserved       AlertKind = "RESERVED"
	AlertOverLocked     AlertKind = "LOCKED"
)

// Projection holds both full-game estimates for one quantity.
type Projection struct {
	Raw float64 `json:"raw"` // latest sample only
	Avg float64 `json:"avg"` // mean of all samples
}

// ProjectionSet is the per-tick projection output for home, away and total.
type ProjectionSet struct {
	Home  Projection `json:"home"`
	Away  Projection `json:"away"`
	Total Projection `json:"total"`
}

// Odds is what the odds collaborator knows about a game. Spread is signed: negative means
// the home side is favoured; zero when the book had no spread market.
type Odds struct {
	TotalLine    float64 `json:"total_line"`
	Spread       float64 `json:"spread"`
	OverOdds     string  `json:"over_odds,omitempty"`
	UnderOdds    string  `json:"under_odds,omitempty"`
	SourceMarket string  `json:"source_market,omitempty"`
}

// Alert describes one notification the engine wants delivered. Delivery is the
// notifier's concern.
type Alert struct {
	ID     string    `json:"id"`
	Kind   AlertKind `json:"kind"`
	GameID string    `json:"game_id"`
	Title  string    `json:"title"`

	HomeName  string `json:"home_name"`
	AwayName  string `json:"away_name"`
	HomeScore int    `json:"home_score"`
	AwayScore int    `json:"away_score"`
	Quarter   int    `json:"quarter"`
	Minute    int    `json:"minute"`
	Second    int    `json:"second"`

	Projections  *ProjectionSet         `json:"projections,omitempty"`
	HomeMomentum projection.Momentum    `json:"home_momentum,omitempty"`
	AwayMomentum projection.Momentum    `json:"away_momentum,omitempty"`
	Reliability  projection.Reliability `json:"reliability,omitempty"`
	Leader       projection.Leader      `json:"leader,omitempty"`
	Samples      int                    `json:"samples"`

	Odds     *Odds     `json:"odds,omitempty"`
	HomeLine *float64  `json:"home_line,omitempty"`
	AwayLine *float64  `json:"away_line,omitempty"`
	Decision *Decision `json:"decision,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// TotalScore returns the combined score at alert time.
func (a Alert) TotalScore() int {
	return a.HomeScore + a.AwayScore
}
