package tracker

import (
	"math"
	"time"

	"github.com/rewired-gh/paceoracle/internal/models"
	"github.com/rewired-gh/paceoracle/internal/projection"
)

// TickView is what the policy sees of one accepted, sampled tick.
type TickView struct {
	Reading     models.Reading
	Projections models.ProjectionSet
	Odds        *models.Odds
	HomeLine    *float64
	AwayLine    *float64
	Now         time.Time
}

// Verdict is the policy's answer for one game on one tick: at most one alert kind.
type Verdict struct {
	Kind     models.AlertKind // empty when nothing fires
	Decision *models.Decision // set with AlertDecisionWindow
	Destroy  bool
}

// Fires reports whether the verdict carries an alert.
func (v Verdict) Fires() bool {
	return v.Kind != ""
}

// Policy maps engine outputs and the game's one-shot flags to a Verdict. It never mutates
// state; the engine applies the verdict.
type Policy struct {
	cfg      Config
	splitter projection.Splitter
}

// NewPolicy builds a policy from engine config.
func NewPolicy(cfg Config) Policy {
	return Policy{cfg: cfg, splitter: projection.Splitter{AvoidPush: cfg.AvoidPush}}
}

// Decide evaluates an accepted, sampled tick. Precedence: decision window, final,
// over locked, periodic.
func (p Policy) Decide(st *models.GameState, v TickView) Verdict {
	r := v.Reading
	if r.Quarter == projection.RegulationPeriods && !st.BettingWindowFired {
		return Verdict{Kind: models.AlertDecisionWindow, Decision: p.decision(v)}
	}
	if p.final(st, r) {
		return Verdict{Kind: models.AlertFinal, Destroy: true}
	}
	if p.overLocked(st, r) {
		return Verdict{Kind: models.AlertOverLocked}
	}
	if p.periodicDue(st, r, v.Now) {
		return Verdict{Kind: models.AlertPeriodic}
	}
	return Verdict{}
}

// DecideRepeat evaluates a tick whose stamp equals the last accepted one. MissedCycles
// must already include this tick.
func (p Policy) DecideRepeat(st *models.GameState, r models.Reading) Verdict {
	if st.MissedCycles >= p.cfg.StallThreshold && r.Quarter <= p.cfg.EarlyQuarter {
		return Verdict{Kind: models.AlertStall, Destroy: true}
	}
	// Feeds keep repeating the last value after the buzzer.
	if p.final(st, r) {
		return Verdict{Kind: models.AlertFinal, Destroy: true}
	}
	return Verdict{}
}

// TeamLines splits the odds total into per-side lines.
func (p Policy) TeamLines(odds *models.Odds) (home, away *float64) {
	if odds == nil {
		return nil, nil
	}
	tt := p.splitter.Split(odds.TotalLine, odds.Spread)
	h, a := projection.AssignTeamLines(tt, odds.Spread)
	return &h, &a
}

func (p Policy) final(st *models.GameState, r models.Reading) bool {
	if st.FinalReportSent || !r.Stamp().Terminal() {
		return false
	}
	if r.Quarter < projection.RegulationPeriods {
		return false
	}
	if r.Quarter > projection.RegulationPeriods && !p.cfg.OvertimeFinal {
		return false
	}
	if r.Tied() && p.cfg.TiedFinal != TiedFinalReport {
		return false
	}
	return true
}

func (p Policy) overLocked(st *models.GameState, r models.Reading) bool {
	if !st.DecisionWindowComplete || st.OverLockedSent || st.Decision == nil {
		return false
	}
	total := st.Decision.Total
	if total.Recommendation != models.RecommendOver || total.Line == nil {
		return false
	}
	return float64(r.Total()) > *total.Line
}

func (p Policy) periodicDue(st *models.GameState, r models.Reading, now time.Time) bool {
	if r.Quarter < 3 {
		return false
	}
	if p.cfg.PeriodicMode == PeriodicPreDecision {
		return !st.DecisionWindowComplete
	}
	return st.LastAlertAt.IsZero() || now.Sub(st.LastAlertAt) >= p.cfg.MinAlertInterval
}

func (p Policy) decision(v TickView) *models.Decision {
	var totalLine *float64
	if v.Odds != nil {
		line := v.Odds.TotalLine
		totalLine = &line
	}
	proj := v.Projections
	ratio := p.cfg.BlendRatio

	return &models.Decision{
		Total: call(proj.Total.Avg, totalLine, p.cfg.AlertThresholdPoints),
		Home:  call(proj.Home.Avg, v.HomeLine, p.cfg.AlertThresholdPoints),
		Away:  call(proj.Away.Avg, v.AwayLine, p.cfg.AlertThresholdPoints),

		BlendedTotal: call(projection.Blend(proj.Total.Raw, proj.Total.Avg, ratio), totalLine, p.cfg.ExperimentalThreshold),
		BlendedHome:  call(projection.Blend(proj.Home.Raw, proj.Home.Avg, ratio), v.HomeLine, p.cfg.ExperimentalThreshold),
		BlendedAway:  call(projection.Blend(proj.Away.Raw, proj.Away.Avg, ratio), v.AwayLine, p.cfg.ExperimentalThreshold),

		DecidedAt: v.Now,
	}
}

// call recommends OVER or UNDER when the projection clears the line by threshold points.
func call(proj float64, line *float64, threshold float64) models.SideCall {
	c := models.SideCall{Projection: proj, Line: line, Recommendation: models.RecommendNoBet}
	if diff, ok := c.Diff(); ok && math.Abs(diff) >= threshold {
		if diff > 0 {
			c.Recommendation = models.RecommendOver
		} else {
			c.Recommendation = models.RecommendUnder
		}
	}
	return c
}

// apply records a verdict's one-shot effects on the state.
func apply(st *models.GameState, v Verdict, now time.Time) {
	switch v.Kind {
	case models.AlertDecisionWindow:
		st.BettingWindowFired = true
		st.DecisionWindowComplete = true
		st.Decision = v.Decision
	case models.AlertFinal:
		st.FinalReportSent = true
	case models.AlertOverLocked:
		st.OverLockedSent = true
	}
	if v.Fires() {
		st.LastAlertAt = now
	}
}
