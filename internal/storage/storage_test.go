package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rewired-gh/paceoracle/internal/models"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(100, ":memory:")
	if err != nil {
		t.Fatalf("failed to create test storage: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testState(id string, trackedSince time.Time) *models.GameState {
	st := models.NewGameState(id, trackedSince)
	st.LastStamp = "3-4-0"
	st.HomeSamples = []float64{0.09, 0.091}
	st.AwaySamples = []float64{0.08, 0.082}
	st.TotalSamples = []float64{0.17, 0.173}
	st.LastHomeScore = 60
	st.LastAwayScore = 55
	st.HomeName = "Lakers"
	st.AwayName = "Celtics"
	return st
}

func TestStorage_SaveLoadState(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 19, 30, 0, 0, time.UTC)

	st := testState("g1", now)
	st.BettingWindowFired = true
	st.DecisionWindowComplete = true
	st.LastAlertAt = now.Add(time.Minute)
	line := 210.5
	st.Decision = &models.Decision{
		Total:     models.SideCall{Projection: 218.2, Line: &line, Recommendation: models.RecommendOver},
		Home:      models.SideCall{Projection: 110, Recommendation: models.RecommendNoBet},
		DecidedAt: now,
	}

	if err := s.Save(ctx, st); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load(ctx, "g1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got == nil {
		t.Fatal("expected state, got nil")
	}
	if got.LastStamp != "3-4-0" || got.LastHomeScore != 60 || got.AwayName != "Celtics" {
		t.Errorf("unexpected scalar fields: %+v", got)
	}
	if len(got.TotalSamples) != 2 || got.TotalSamples[1] != 0.173 {
		t.Errorf("samples not round-tripped: %v", got.TotalSamples)
	}
	if !got.BettingWindowFired || !got.DecisionWindowComplete || got.FinalReportSent {
		t.Errorf("flags not round-tripped: %+v", got)
	}
	if !got.LastAlertAt.Equal(st.LastAlertAt) || !got.TrackedSince.Equal(now) {
		t.Errorf("times not round-tripped: %v %v", got.LastAlertAt, got.TrackedSince)
	}
	if got.Decision == nil || got.Decision.Total.Line == nil || *got.Decision.Total.Line != 210.5 {
		t.Fatalf("decision not round-tripped: %+v", got.Decision)
	}
	if got.Decision.Total.Recommendation != models.RecommendOver {
		t.Errorf("recommendation: got %s", got.Decision.Total.Recommendation)
	}
	if got.Decision.Home.Line != nil {
		t.Errorf("expected nil home line, got %v", *got.Decision.Home.Line)
	}
}

func TestStorage_LoadMissing(t *testing.T) {
	s := newTestStorage(t)
	got, err := s.Load(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil state, got %+v", got)
	}
}

func TestStorage_ZeroTimesStayZero(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	st := testState("g1", time.Now())

	if err := s.Save(ctx, st); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, _ := s.Load(ctx, "g1")
	if !got.LastAlertAt.IsZero() {
		t.Errorf("expected zero last alert time, got %v", got.LastAlertAt)
	}
	if got.Decision != nil {
		t.Errorf("expected nil decision, got %+v", got.Decision)
	}
}

func TestStorage_SaveOverwrites(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	st := testState("g1", time.Now())
	if err := s.Save(ctx, st); err != nil {
		t.Fatalf("Save: %v", err)
	}
	st.MissedCycles = 3
	st.TotalSamples = append(st.TotalSamples, 0.18)
	st.HomeSamples = append(st.HomeSamples, 0.1)
	st.AwaySamples = append(st.AwaySamples, 0.08)
	if err := s.Save(ctx, st); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, _ := s.Load(ctx, "g1")
	if got.MissedCycles != 3 || len(got.TotalSamples) != 3 {
		t.Errorf("overwrite lost: missed=%d samples=%d", got.MissedCycles, len(got.TotalSamples))
	}
}

func TestStorage_SaveRejectsInvalidState(t *testing.T) {
	s := newTestStorage(t)
	st := testState("g1", time.Now())
	st.HomeSamples = st.HomeSamples[:1]
	if err := s.Save(context.Background(), st); err == nil {
		t.Error("expected error for mismatched series")
	}
}

func TestStorage_Delete(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	if err := s.Save(ctx, testState("g1", time.Now())); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Delete(ctx, "g1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got, _ := s.Load(ctx, "g1"); got != nil {
		t.Error("expected state to be gone")
	}
	if err := s.Delete(ctx, "g1"); err != nil {
		t.Errorf("deleting a missing game should not fail: %v", err)
	}
}

func TestStorage_List(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	base := time.Now()
	for i, id := range []string{"c", "a", "b"} {
		if err := s.Save(ctx, testState(id, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("Save %s: %v", id, err)
		}
	}

	states, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(states) != 3 {
		t.Fatalf("expected 3 states, got %d", len(states))
	}
	for i, want := range []string{"c", "a", "b"} {
		if states[i].GameID != want {
			t.Errorf("states[%d] = %s, want %s", i, states[i].GameID, want)
		}
	}
}

func TestStorage_RecordAndGetAlerts(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	base := time.Now()

	for i := 0; i < 5; i++ {
		a := models.Alert{
			ID:        fmt.Sprintf("alert-%d", i),
			Kind:      models.AlertPeriodic,
			GameID:    "g1",
			Title:     "Q3 projection",
			HomeScore: 60 + i,
			AwayScore: 55,
			Quarter:   3,
			Projections: &models.ProjectionSet{
				Total: models.Projection{Raw: 210 + float64(i), Avg: 208},
			},
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := s.RecordAlert(ctx, a); err != nil {
			t.Fatalf("RecordAlert: %v", err)
		}
	}

	alerts, err := s.GetRecentAlerts(ctx, 3)
	if err != nil {
		t.Fatalf("GetRecentAlerts: %v", err)
	}
	if len(alerts) != 3 {
		t.Fatalf("expected 3 alerts, got %d", len(alerts))
	}
	if alerts[0].ID != "alert-4" || alerts[2].ID != "alert-2" {
		t.Errorf("alerts not newest first: %s .. %s", alerts[0].ID, alerts[2].ID)
	}
	if alerts[0].Projections == nil || alerts[0].Projections.Total.Raw != 214 {
		t.Errorf("payload not round-tripped: %+v", alerts[0].Projections)
	}
}

func TestStorage_RecordAlert_DuplicateID(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	a := models.Alert{ID: "same", Kind: models.AlertFinal, GameID: "g1", Title: "Final", CreatedAt: time.Now()}
	if err := s.RecordAlert(ctx, a); err != nil {
		t.Fatalf("RecordAlert: %v", err)
	}
	if err := s.RecordAlert(ctx, a); err == nil {
		t.Error("expected error for duplicate alert id")
	}
}

func testSample(gameID string, n int, at time.Time) models.SampleRecord {
	return models.SampleRecord{
		GameID:        gameID,
		HomeName:      "Lakers",
		AwayName:      "Celtics",
		Quarter:       3,
		Minute:        4,
		Second:        n,
		PlayedSeconds: 660 - n,
		HomeScore:     60,
		AwayScore:     55,
		HomePPS:       0.0909,
		AwayPPS:       0.0833,
		TotalPPS:      0.1742,
		Projections: models.ProjectionSet{
			Home:  models.Projection{Raw: 109.1, Avg: 108.5},
			Away:  models.Projection{Raw: 100, Avg: 99.2},
			Total: models.Projection{Raw: 209.1, Avg: 207.7},
		},
		SampleCount: n + 1,
		RecordedAt:  at,
	}
}

func TestStorage_RecordAndGetSamples(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	now := time.Now()
	for i := 0; i < 3; i++ {
		if err := s.RecordSample(ctx, testSample("g1", i, now)); err != nil {
			t.Fatalf("RecordSample: %v", err)
		}
	}
	if err := s.RecordSample(ctx, testSample("g2", 0, now)); err != nil {
		t.Fatalf("RecordSample: %v", err)
	}

	recs, err := s.GetSamples(ctx, "g1")
	if err != nil {
		t.Fatalf("GetSamples: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(recs))
	}
	if recs[0].SampleCount != 1 || recs[2].SampleCount != 3 {
		t.Errorf("samples out of order: %d, %d", recs[0].SampleCount, recs[2].SampleCount)
	}
	if recs[1].Projections.Total.Avg != 207.7 {
		t.Errorf("projection not round-tripped: %v", recs[1].Projections.Total.Avg)
	}
}

func TestStorage_RotateSamples(t *testing.T) {
	s, err := New(2, ":memory:")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := s.RecordSample(ctx, testSample("g1", i, time.Now())); err != nil {
			t.Fatalf("RecordSample: %v", err)
		}
	}
	if err := s.RotateSamples(ctx); err != nil {
		t.Fatalf("RotateSamples: %v", err)
	}
	recs, _ := s.GetSamples(ctx, "g1")
	if len(recs) != 2 {
		t.Fatalf("expected 2 samples after rotation, got %d", len(recs))
	}
	if recs[0].SampleCount != 4 {
		t.Errorf("expected newest samples kept, got sample count %d", recs[0].SampleCount)
	}
}

func TestStorage_DefaultPath(t *testing.T) {
	s, err := New(10, "")
	if err != nil {
		t.Fatalf("New with empty path: %v", err)
	}
	defer s.Close()
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}
