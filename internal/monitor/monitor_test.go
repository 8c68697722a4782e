package monitor

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rewired-gh/paceoracle/internal/models"
	"github.com/rewired-gh/paceoracle/internal/projection"
	"github.com/rewired-gh/paceoracle/internal/storage"
	"github.com/rewired-gh/paceoracle/internal/tracker"
)

type fakeFeed struct {
	snaps   []models.Snapshot
	err     error
	block   chan struct{}
	entered chan struct{}
}

func (f *fakeFeed) FetchInplay(ctx context.Context) ([]models.Snapshot, error) {
	if f.block != nil {
		close(f.entered)
		<-f.block
	}
	return f.snaps, f.err
}

type fakeTracker struct {
	alerts []models.Alert
	err    error
	ticks  int
}

func (f *fakeTracker) Tick(_ context.Context, snaps []models.Snapshot) (*tracker.TickResult, error) {
	f.ticks++
	if f.err != nil {
		return nil, f.err
	}
	return &tracker.TickResult{Alerts: f.alerts}, nil
}

func (f *fakeTracker) Tracked() []string { return []string{"g1"} }

type fakeDispatcher struct {
	mu         sync.Mutex
	dispatched []models.Alert
	errs       []error
	recoveries []int
}

func (d *fakeDispatcher) Dispatch(_ context.Context, alerts []models.Alert) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dispatched = append(d.dispatched, alerts...)
	return 0
}

func (d *fakeDispatcher) NotifyError(_ context.Context, err error) {
	d.errs = append(d.errs, err)
}

func (d *fakeDispatcher) NotifyRecovery(_ context.Context, n int) {
	d.recoveries = append(d.recoveries, n)
}

func TestRunCycle_DispatchesAlerts(t *testing.T) {
	feed := &fakeFeed{snaps: []models.Snapshot{{ID: "g1"}}}
	tr := &fakeTracker{alerts: []models.Alert{{Kind: models.AlertPeriodic}, {Kind: models.AlertFinal}}}
	d := &fakeDispatcher{}
	m := New(feed, tr, d)

	res, err := m.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}
	if len(res.Alerts) != 2 {
		t.Errorf("Expected 2 alerts, got %d", len(res.Alerts))
	}
	if len(d.dispatched) != 2 {
		t.Errorf("Expected 2 dispatched alerts, got %d", len(d.dispatched))
	}

	st := m.Status()
	if st.Cycles != 1 || st.LastAlerts != 2 || st.ConsecutiveFailures != 0 {
		t.Errorf("Unexpected status: %+v", st)
	}
}

func TestRunCycle_FeedErrorSkipsTick(t *testing.T) {
	feed := &fakeFeed{err: errors.New("upstream down")}
	tr := &fakeTracker{}
	m := New(feed, tr, nil)

	_, err := m.RunCycle(context.Background())
	if err == nil || !strings.Contains(err.Error(), "upstream down") {
		t.Fatalf("Expected feed error, got %v", err)
	}
	if tr.ticks != 0 {
		t.Errorf("Tracker should not tick on feed failure, ticked %d times", tr.ticks)
	}
}

func TestRunCycle_FailureAndRecoveryNotices(t *testing.T) {
	feed := &fakeFeed{err: errors.New("upstream down")}
	tr := &fakeTracker{}
	d := &fakeDispatcher{}
	m := New(feed, tr, d)

	for i := 0; i < 3; i++ {
		if _, err := m.RunCycle(context.Background()); err == nil {
			t.Fatal("Expected cycle error")
		}
	}
	if len(d.errs) != 1 {
		t.Errorf("Expected one error notice for the streak, got %d", len(d.errs))
	}
	if got := m.Status().ConsecutiveFailures; got != 3 {
		t.Errorf("Expected 3 consecutive failures, got %d", got)
	}

	feed.err = nil
	if _, err := m.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}
	if len(d.recoveries) != 1 || d.recoveries[0] != 3 {
		t.Errorf("Expected recovery notice after 3 failures, got %v", d.recoveries)
	}
	if _, err := m.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}
	if len(d.recoveries) != 1 {
		t.Errorf("Recovery notice should be sent once, got %d", len(d.recoveries))
	}
	if m.Status().LastError != "" {
		t.Errorf("LastError should be cleared after success")
	}
}

func TestRunCycle_RejectsOverlap(t *testing.T) {
	feed := &fakeFeed{block: make(chan struct{}), entered: make(chan struct{})}
	m := New(feed, &fakeTracker{}, nil)

	done := make(chan error, 1)
	go func() {
		_, err := m.RunCycle(context.Background())
		done <- err
	}()

	select {
	case <-feed.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first cycle never started")
	}

	if _, err := m.RunCycle(context.Background()); !errors.Is(err, ErrCycleInProgress) {
		t.Errorf("Expected ErrCycleInProgress, got %v", err)
	}

	close(feed.block)
	if err := <-done; err != nil {
		t.Errorf("First cycle failed: %v", err)
	}
}

func TestRunCycle_WithEngine(t *testing.T) {
	store, err := storage.New(1000, ":memory:")
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	defer store.Close()

	cfg := tracker.DefaultConfig()
	cfg.Clock = projection.Clock{QuarterSeconds: 600, OvertimeSeconds: 300}
	engine, err := tracker.New(store, cfg, tracker.WithRecorder(store))
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	feed := &fakeFeed{snaps: []models.Snapshot{{
		ID: "9001", HomeName: "Lakers", AwayName: "Celtics",
		Score: "10-8", Quarter: "1", Minute: "6", Second: "0",
	}}}
	d := &fakeDispatcher{}
	m := New(feed, engine, d)

	if _, err := m.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}
	if len(d.dispatched) != 1 || d.dispatched[0].Kind != models.AlertReserved {
		t.Fatalf("Expected one RESERVED alert, got %+v", d.dispatched)
	}
	if st := m.Status(); len(st.Tracked) != 1 || st.Tracked[0] != "9001" {
		t.Errorf("Expected game 9001 tracked, got %v", st.Tracked)
	}

	recent, err := store.GetRecentAlerts(context.Background(), 10)
	if err != nil {
		t.Fatalf("GetRecentAlerts failed: %v", err)
	}
	if len(recent) != 1 {
		t.Errorf("Expected 1 recorded alert, got %d", len(recent))
	}
}

func TestStatusSummary(t *testing.T) {
	if got := (Status{}).Summary(); got != "No cycles run yet" {
		t.Errorf("Unexpected empty summary: %q", got)
	}
	s := Status{Cycles: 4, Tracked: []string{"a"}, LastAlerts: 2, ConsecutiveFailures: 1, LastError: "boom"}
	got := s.Summary()
	if !strings.Contains(got, "Tracking 1 game(s)") || !strings.Contains(got, "Failing x1: boom") {
		t.Errorf("Unexpected summary: %q", got)
	}
}

func TestDurationStats(t *testing.T) {
	var s durationStats
	if s.Mean() != 0 || s.StdDev() != 0 {
		t.Error("Empty stats should be zero")
	}
	for _, d := range []time.Duration{time.Second, 2 * time.Second, 3 * time.Second} {
		s.update(d)
	}
	if math.Abs(s.Mean().Seconds()-2) > 1e-9 {
		t.Errorf("Expected mean 2s, got %v", s.Mean())
	}
	if math.Abs(s.StdDev().Seconds()-1) > 1e-9 {
		t.Errorf("Expected stddev 1s, got %v", s.StdDev())
	}
}
