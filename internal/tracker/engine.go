// Package tracker owns per-game tracking state: it selects games from each feed batch,
// dedups repeated clock stamps, samples scoring pace, and decides which alerts to emit.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rewired-gh/paceoracle/internal/logger"
	"github.com/rewired-gh/paceoracle/internal/metrics"
	"github.com/rewired-gh/paceoracle/internal/models"
	"github.com/rewired-gh/paceoracle/internal/projection"
)

// Outcome is what happened to one game during one tick.
type Outcome string

const (
	OutcomeAccepted        Outcome = "accepted"
	OutcomeDuplicate       Outcome = "duplicate"
	OutcomeStalled         Outcome = "stalled"
	OutcomeFinal           Outcome = "final"
	OutcomeQ1Tracking      Outcome = "q1_tracking"
	OutcomeNotYetSamplable Outcome = "not_yet_samplable"
	OutcomeParseError      Outcome = "parse_error"
	OutcomeCancelled       Outcome = "cancelled"
	OutcomeAbsent          Outcome = "absent"
	OutcomeReleased        Outcome = "released"
)

// GameResult is the per-game result of a tick. Err is set for ParseError and Cancelled.
type GameResult struct {
	GameID  string
	Outcome Outcome
	Alerts  []models.Alert
	Err     error
}

// TickResult collects every game's result. Alerts is the concatenation of the per-game
// alerts in processing order.
type TickResult struct {
	Games    []GameResult
	Alerts   []models.Alert
	Started  time.Time
	Duration time.Duration
}

// Count returns how many games ended the tick with outcome o.
func (r *TickResult) Count(o Outcome) int {
	n := 0
	for _, g := range r.Games {
		if g.Outcome == o {
			n++
		}
	}
	return n
}

// Option customizes an Engine.
type Option func(*Engine)

// WithOdds sets the market line source. Without one every decision is NO_BET.
func WithOdds(o OddsSource) Option {
	return func(e *Engine) { e.odds = o }
}

// WithRecorder sets the audit trail for samples and alerts.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithNow overrides the wall clock.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine runs ticks against a state store.
type Engine struct {
	store    StateStore
	odds     OddsSource
	recorder Recorder
	cfg      Config
	policy   Policy
	registry *Registry
	locks    *keyedMutex
	now      func() time.Time
}

// New validates cfg and builds an engine.
func New(store StateStore, cfg Config, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, errors.New("state store is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tracker config: %w", err)
	}
	e := &Engine{
		store:    store,
		cfg:      cfg,
		policy:   NewPolicy(cfg),
		registry: NewRegistry(cfg.Capacity),
		locks:    newKeyedMutex(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Restore refills the registry from persisted state, oldest first, up to capacity.
func (e *Engine) Restore(ctx context.Context) error {
	states, err := e.store.List(ctx)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("list").Inc()
		return fmt.Errorf("failed to list persisted states: %w", err)
	}
	sort.SliceStable(states, func(i, j int) bool {
		if states[i].TrackedSince.Equal(states[j].TrackedSince) {
			return states[i].GameID < states[j].GameID
		}
		return states[i].TrackedSince.Before(states[j].TrackedSince)
	})

	restored := 0
	for _, st := range states {
		if !e.registry.Track(st.GameID) {
			logger.Warn("Not restoring game %s: no free slot", st.GameID)
			continue
		}
		restored++
	}
	metrics.TrackedGames.Set(float64(e.registry.Len()))
	logger.Info("Restored %d of %d persisted games", restored, len(states))
	return nil
}

// Tracked returns the ids currently occupying a slot.
func (e *Engine) Tracked() []string {
	return e.registry.Tracked()
}

// State returns the stored state for a game, or nil when there is none.
func (e *Engine) State(ctx context.Context, gameID string) (*models.GameState, error) {
	return e.store.Load(ctx, gameID)
}

type job struct {
	snap  models.Snapshot
	fresh bool
}

// Tick processes one feed batch. Per-game failures are reported in the result; the
// returned error is only set when ctx was already done.
func (e *Engine) Tick(ctx context.Context, snaps []models.Snapshot) (*TickResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	started := time.Now()
	result := &TickResult{Started: started}

	byID := make(map[string]models.Snapshot, len(snaps))
	for _, s := range snaps {
		if s.ID == "" {
			continue
		}
		byID[s.ID] = s
	}
	e.registry.PruneReleased(func(id string) bool {
		_, ok := byID[id]
		return ok
	})

	var jobs []job
	for _, id := range e.registry.Tracked() {
		snap, ok := byID[id]
		if !ok {
			result.Games = append(result.Games, e.handleAbsent(ctx, id))
			continue
		}
		e.registry.MarkSeen(id)
		jobs = append(jobs, job{snap: snap})
	}
	for _, snap := range e.candidates(byID) {
		if !e.registry.Track(snap.ID) {
			break
		}
		logger.Info("Tracking game %s: %s @ %s", snap.ID, snap.AwayName, snap.HomeName)
		jobs = append(jobs, job{snap: snap, fresh: true})
	}

	jobResults := make([]GameResult, len(jobs))
	var g errgroup.Group
	g.SetLimit(e.cfg.Workers)
	for i, j := range jobs {
		i, j := i, j
		g.Go(func() error {
			jobResults[i] = e.processGame(ctx, j.snap, j.fresh)
			return nil
		})
	}
	_ = g.Wait()

	result.Games = append(result.Games, jobResults...)
	for _, gr := range result.Games {
		metrics.GamesProcessed.WithLabelValues(string(gr.Outcome)).Inc()
		for _, a := range gr.Alerts {
			metrics.AlertsEmitted.WithLabelValues(string(a.Kind)).Inc()
		}
		result.Alerts = append(result.Alerts, gr.Alerts...)
	}

	result.Duration = time.Since(started)
	metrics.TicksTotal.Inc()
	metrics.TickDuration.Observe(result.Duration.Seconds())
	metrics.TrackedGames.Set(float64(e.registry.Len()))

	logger.Debug("Tick done: %d games, %d alerts, %d tracked", len(result.Games), len(result.Alerts), e.registry.Len())
	return result, nil
}

// candidates returns untracked snapshots in an early quarter, oldest first: the game with
// the most game time played leads, ties broken by id so selection does not depend on feed order.
func (e *Engine) candidates(byID map[string]models.Snapshot) []models.Snapshot {
	type cand struct {
		snap   models.Snapshot
		played int
	}
	var cs []cand
	for id, snap := range byID {
		if e.registry.Has(id) || e.registry.IsReleased(id) {
			continue
		}
		r, err := snap.Read()
		if err != nil || r.Quarter > e.cfg.EarlyQuarter {
			continue
		}
		cs = append(cs, cand{snap: snap, played: e.cfg.Clock.PlayedSeconds(r.Quarter, r.Minute, r.Second)})
	}
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].played != cs[j].played {
			return cs[i].played > cs[j].played
		}
		return cs[i].snap.ID < cs[j].snap.ID
	})

	out := make([]models.Snapshot, len(cs))
	for i, c := range cs {
		out[i] = c.snap
	}
	return out
}

func (e *Engine) handleAbsent(ctx context.Context, gameID string) GameResult {
	misses := e.registry.MarkAbsent(gameID)
	if e.cfg.AbsenceLimit == 0 || misses < e.cfg.AbsenceLimit {
		logger.Debug("Game %s missing from feed (%d)", gameID, misses)
		return GameResult{GameID: gameID, Outcome: OutcomeAbsent}
	}

	unlock := e.locks.Lock(gameID)
	defer unlock()
	if err := e.store.Delete(ctx, gameID); err != nil {
		metrics.StoreErrors.WithLabelValues("delete").Inc()
		logger.Error("Failed to delete state for absent game %s: %v", gameID, err)
	}
	e.registry.Release(gameID)
	logger.Info("Released game %s after %d ticks off the feed", gameID, misses)
	return GameResult{GameID: gameID, Outcome: OutcomeReleased}
}

// step is the in-memory result of one transition, applied only if the tick survives.
type step struct {
	outcome Outcome
	verdict Verdict
	view    *TickView
	sample  *models.SampleRecord
}

func (e *Engine) processGame(ctx context.Context, snap models.Snapshot, fresh bool) GameResult {
	res := GameResult{GameID: snap.ID}

	reading, err := snap.Read()
	if err != nil {
		logger.Warn("Skipping game %s this tick: %v", snap.ID, err)
		res.Outcome = OutcomeParseError
		res.Err = err
		return res
	}

	unlock := e.locks.Lock(snap.ID)
	defer unlock()

	now := e.now()
	st := e.load(ctx, snap.ID, now).Clone()
	s := e.transition(ctx, st, snap, reading, now)

	if err := ctx.Err(); err != nil {
		if fresh {
			e.registry.Forget(snap.ID)
		}
		res.Outcome = OutcomeCancelled
		res.Err = err
		return res
	}
	apply(st, s.verdict, now)

	if s.verdict.Destroy {
		if err := e.store.Delete(ctx, snap.ID); err != nil {
			metrics.StoreErrors.WithLabelValues("delete").Inc()
			logger.Error("Failed to delete state for game %s: %v", snap.ID, err)
		}
		e.registry.Release(snap.ID)
	} else {
		st.UpdatedAt = now
		if err := e.store.Save(ctx, st); err != nil {
			metrics.StoreErrors.WithLabelValues("save").Inc()
			logger.Error("Failed to save state for game %s: %v", snap.ID, err)
		}
	}

	if fresh {
		res.Alerts = append(res.Alerts, e.buildAlert(models.AlertReserved, st, reading, nil, now))
	}
	if s.verdict.Fires() {
		res.Alerts = append(res.Alerts, e.buildAlert(s.verdict.Kind, st, reading, s.view, now))
	}
	res.Outcome = s.outcome

	e.record(ctx, s.sample, res.Alerts)
	return res
}

// load returns the stored state, or a default one when there is none or the store failed.
func (e *Engine) load(ctx context.Context, gameID string, now time.Time) *models.GameState {
	st, err := e.store.Load(ctx, gameID)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("load").Inc()
		logger.Error("Failed to load state for game %s, starting fresh: %v", gameID, err)
		return models.NewGameState(gameID, now)
	}
	if st == nil {
		return models.NewGameState(gameID, now)
	}
	return st
}

func (e *Engine) transition(ctx context.Context, st *models.GameState, snap models.Snapshot, r models.Reading, now time.Time) step {
	stamp := r.Stamp().String()
	if stamp == st.LastStamp {
		st.MissedCycles++
		v := e.policy.DecideRepeat(st, r)
		switch v.Kind {
		case models.AlertStall:
			logger.Info("Game %s stalled at %s after %d repeats, releasing", st.GameID, stamp, st.MissedCycles)
			return step{outcome: OutcomeStalled, verdict: v}
		case models.AlertFinal:
			view := e.view(st, r, e.cfg.Clock.PlayedSeconds(r.Quarter, r.Minute, r.Second), now)
			return step{outcome: OutcomeFinal, verdict: v, view: view}
		}
		return step{outcome: OutcomeDuplicate}
	}

	st.LastStamp = stamp
	st.MissedCycles = 0
	st.LastHomeScore, st.LastAwayScore = r.HomeScore, r.AwayScore
	st.HomeName, st.AwayName = snap.HomeName, snap.AwayName

	if r.Quarter == 1 {
		return step{outcome: OutcomeQ1Tracking}
	}

	played := e.cfg.Clock.PlayedSeconds(r.Quarter, r.Minute, r.Second)
	if played <= 0 {
		logger.Warn("Game %s has no played time at %s, not sampling", st.GameID, stamp)
		return step{outcome: OutcomeNotYetSamplable}
	}

	homeRate := projection.Rate(r.HomeScore, played)
	awayRate := projection.Rate(r.AwayScore, played)
	totalRate := projection.Rate(r.Total(), played)
	st.HomeSamples = projection.Append(st.HomeSamples, homeRate)
	st.AwaySamples = projection.Append(st.AwaySamples, awayRate)
	st.TotalSamples = projection.Append(st.TotalSamples, totalRate)

	view := e.view(st, r, played, now)
	v := e.policy.Decide(st, *view)
	if v.Fires() && e.odds != nil {
		odds, err := e.odds.LineFor(ctx, st.GameID)
		if err != nil {
			logger.Warn("Failed to fetch odds for game %s: %v", st.GameID, err)
		}
		view.Odds = odds
		view.HomeLine, view.AwayLine = e.policy.TeamLines(odds)
		v = e.policy.Decide(st, *view)
	}

	out := OutcomeAccepted
	if v.Kind == models.AlertFinal {
		out = OutcomeFinal
	}
	return step{
		outcome: out,
		verdict: v,
		view:    view,
		sample: &models.SampleRecord{
			GameID:        st.GameID,
			HomeName:      st.HomeName,
			AwayName:      st.AwayName,
			Quarter:       r.Quarter,
			Minute:        r.Minute,
			Second:        r.Second,
			PlayedSeconds: played,
			HomeScore:     r.HomeScore,
			AwayScore:     r.AwayScore,
			HomePPS:       homeRate,
			AwayPPS:       awayRate,
			TotalPPS:      totalRate,
			Projections:   view.Projections,
			SampleCount:   len(st.TotalSamples),
			RecordedAt:    now,
		},
	}
}

// view computes raw and series projections for the current reading.
func (e *Engine) view(st *models.GameState, r models.Reading, played int, now time.Time) *TickView {
	gs := e.cfg.Clock.GameSeconds()
	project := func(score int, s projection.Series) models.Projection {
		p := models.Projection{Raw: projection.RawProjection(score, played, gs)}
		if avg, ok := projection.SeriesProjection(s, gs); ok {
			p.Avg = avg
		} else {
			p.Avg = p.Raw
		}
		return p
	}
	return &TickView{
		Reading: r,
		Projections: models.ProjectionSet{
			Home:  project(r.HomeScore, st.HomeSamples),
			Away:  project(r.AwayScore, st.AwaySamples),
			Total: project(r.Total(), st.TotalSamples),
		},
		Now: now,
	}
}

func (e *Engine) buildAlert(kind models.AlertKind, st *models.GameState, r models.Reading, v *TickView, now time.Time) models.Alert {
	a := models.Alert{
		ID:        uuid.NewString(),
		Kind:      kind,
		GameID:    st.GameID,
		Title:     title(kind, st, r),
		HomeName:  st.HomeName,
		AwayName:  st.AwayName,
		HomeScore: r.HomeScore,
		AwayScore: r.AwayScore,
		Quarter:   r.Quarter,
		Minute:    r.Minute,
		Second:    r.Second,
		Leader:    projection.LeaderStatus(r.HomeScore, r.AwayScore, e.cfg.LeaderThreshold),
		Samples:   len(st.TotalSamples),
		CreatedAt: now,
	}
	if v == nil {
		return a
	}

	proj := v.Projections
	a.Projections = &proj
	a.HomeMomentum = projection.ClassifyMomentum(st.HomeSamples)
	a.AwayMomentum = projection.ClassifyMomentum(st.AwaySamples)
	a.Reliability = projection.ClassifyReliability(st.TotalSamples)
	a.Odds = v.Odds
	a.HomeLine = v.HomeLine
	a.AwayLine = v.AwayLine
	if kind == models.AlertDecisionWindow || kind == models.AlertOverLocked || kind == models.AlertFinal {
		a.Decision = st.Decision
	}
	return a
}

func title(kind models.AlertKind, st *models.GameState, r models.Reading) string {
	matchup := fmt.Sprintf("%s @ %s", st.AwayName, st.HomeName)
	switch kind {
	case models.AlertDecisionWindow:
		return "Decision window: " + matchup
	case models.AlertPeriodic:
		return fmt.Sprintf("%s projection: %s", projection.PeriodLabel(r.Quarter), matchup)
	case models.AlertStall:
		return "Feed stalled, releasing: " + matchup
	case models.AlertFinal:
		return "Final: " + matchup
	case models.AlertReserved:
		return "Game reserved: " + matchup
	case models.AlertOverLocked:
		return "OVER locked: " + matchup
	}
	return matchup
}

func (e *Engine) record(ctx context.Context, sample *models.SampleRecord, alerts []models.Alert) {
	if e.recorder == nil {
		return
	}
	if sample != nil {
		if err := e.recorder.RecordSample(ctx, *sample); err != nil {
			metrics.StoreErrors.WithLabelValues("record_sample").Inc()
			logger.Warn("Failed to record sample for game %s: %v", sample.GameID, err)
		}
	}
	for _, a := range alerts {
		if err := e.recorder.RecordAlert(ctx, a); err != nil {
			metrics.StoreErrors.WithLabelValues("record_alert").Inc()
			logger.Warn("Failed to record alert %s for game %s: %v", a.Kind, a.GameID, err)
		}
	}
}
