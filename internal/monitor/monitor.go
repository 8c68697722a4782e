// Package monitor runs one polling cycle end to end: fetch the live feed, advance the
// tracker, and hand the resulting alerts to the notifiers.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rewired-gh/paceoracle/internal/logger"
	"github.com/rewired-gh/paceoracle/internal/models"
	"github.com/rewired-gh/paceoracle/internal/tracker"
)

// ErrCycleInProgress is returned when a cycle is requested while another is running.
var ErrCycleInProgress = errors.New("cycle already in progress")

// Feed supplies the current live snapshots.
type Feed interface {
	FetchInplay(ctx context.Context) ([]models.Snapshot, error)
}

// Tracker advances per-game state from a snapshot batch.
type Tracker interface {
	Tick(ctx context.Context, snaps []models.Snapshot) (*tracker.TickResult, error)
	Tracked() []string
}

// Dispatcher delivers alerts and operator notices.
type Dispatcher interface {
	Dispatch(ctx context.Context, alerts []models.Alert) int
	NotifyError(ctx context.Context, cycleErr error)
	NotifyRecovery(ctx context.Context, failureCount int)
}

// Status is a point-in-time view of the monitor for health endpoints and bot commands.
type Status struct {
	Cycles              int           `json:"cycles"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	LastCycleAt         time.Time     `json:"last_cycle_at"`
	LastError           string        `json:"last_error,omitempty"`
	LastAlerts          int           `json:"last_alerts"`
	Tracked             []string      `json:"tracked"`
	MeanCycle           time.Duration `json:"mean_cycle_ns"`
	CycleStdDev         time.Duration `json:"cycle_stddev_ns"`
}

// Monitor serializes cycles and tracks consecutive failures.
type Monitor struct {
	feed       Feed
	tracker    Tracker
	dispatcher Dispatcher

	running sync.Mutex

	mu                  sync.Mutex
	cycles              int
	consecutiveFailures int
	lastCycleAt         time.Time
	lastErr             error
	lastAlerts          int
	durations           durationStats
}

// New creates a monitor. dispatcher may be nil, in which case alerts are only returned.
func New(feed Feed, t Tracker, dispatcher Dispatcher) *Monitor {
	return &Monitor{feed: feed, tracker: t, dispatcher: dispatcher}
}

// RunCycle performs one fetch, tick and dispatch. A cycle already in flight makes this
// return ErrCycleInProgress immediately.
func (m *Monitor) RunCycle(ctx context.Context) (*tracker.TickResult, error) {
	if !m.running.TryLock() {
		return nil, ErrCycleInProgress
	}
	defer m.running.Unlock()

	start := time.Now()
	res, err := m.runCycle(ctx)
	m.finish(ctx, start, res, err)
	return res, err
}

func (m *Monitor) runCycle(ctx context.Context) (*tracker.TickResult, error) {
	logger.Debug("Starting tracking cycle")

	snaps, err := m.feed.FetchInplay(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch live games: %w", err)
	}
	logger.Debug("Fetched %d live games", len(snaps))

	res, err := m.tracker.Tick(ctx, snaps)
	if err != nil {
		return nil, fmt.Errorf("failed to advance tracker: %w", err)
	}

	if len(res.Alerts) > 0 && m.dispatcher != nil {
		if failed := m.dispatcher.Dispatch(ctx, res.Alerts); failed > 0 {
			logger.Warn("%d of %d alert deliveries failed", failed, len(res.Alerts))
		}
	}

	logger.Info("Cycle complete: %d live, %d tracked, %d alerts in %v",
		len(snaps), len(m.tracker.Tracked()), len(res.Alerts), res.Duration)
	return res, nil
}

// finish records the outcome and sends an error notice on the first failure of a streak
// and a recovery notice on the first success after one.
func (m *Monitor) finish(ctx context.Context, start time.Time, res *tracker.TickResult, err error) {
	m.mu.Lock()
	m.cycles++
	m.lastCycleAt = start
	m.lastErr = err
	m.durations.update(time.Since(start))
	if res != nil {
		m.lastAlerts = len(res.Alerts)
	}

	var notifyErr, notifyRecovery bool
	failures := m.consecutiveFailures
	if err != nil {
		m.consecutiveFailures++
		notifyErr = m.consecutiveFailures == 1
	} else {
		notifyRecovery = m.consecutiveFailures > 0
		m.consecutiveFailures = 0
	}
	m.mu.Unlock()

	if err != nil {
		logger.Error("Tracking cycle failed: %v", err)
	}
	if m.dispatcher == nil || ctx.Err() != nil {
		return
	}
	if notifyErr {
		m.dispatcher.NotifyError(ctx, err)
	}
	if notifyRecovery {
		m.dispatcher.NotifyRecovery(ctx, failures)
	}
}

// Status returns the current monitor status.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Status{
		Cycles:              m.cycles,
		ConsecutiveFailures: m.consecutiveFailures,
		LastCycleAt:         m.lastCycleAt,
		LastAlerts:          m.lastAlerts,
		Tracked:             m.tracker.Tracked(),
		MeanCycle:           m.durations.Mean(),
		CycleStdDev:         m.durations.StdDev(),
	}
	if m.lastErr != nil {
		s.LastError = m.lastErr.Error()
	}
	return s
}

// Summary renders Status as a short human-readable line.
func (s Status) Summary() string {
	if s.Cycles == 0 {
		return "No cycles run yet"
	}
	out := fmt.Sprintf("Cycles: %d | Tracking %d game(s) | Last alerts: %d | Avg cycle: %v",
		s.Cycles, len(s.Tracked), s.LastAlerts, s.MeanCycle.Round(time.Millisecond))
	if s.ConsecutiveFailures > 0 {
		out += fmt.Sprintf(" | Failing x%d: %s", s.ConsecutiveFailures, s.LastError)
	}
	return out
}
