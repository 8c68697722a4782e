// Package storage provides SQLite-backed persistence for game states, alerts, and pace samples.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rewired-gh/paceoracle/internal/models"
	_ "modernc.org/sqlite"
)

// Storage wraps a SQLite database for all persistence operations.
type Storage struct {
	db         *sql.DB
	maxSamples int
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/paceoracle/data.db.
func New(maxSamples int, dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "paceoracle", "data.db")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	s := &Storage{db: db, maxSamples: maxSamples}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS game_state (
			game_id                  TEXT PRIMARY KEY,
			last_stamp               TEXT NOT NULL DEFAULT '',
			missed_cycles            INTEGER NOT NULL DEFAULT 0,
			home_samples             TEXT NOT NULL DEFAULT '[]',
			away_samples             TEXT NOT NULL DEFAULT '[]',
			total_samples            TEXT NOT NULL DEFAULT '[]',
			betting_window_fired     INTEGER NOT NULL DEFAULT 0,
			decision_window_complete INTEGER NOT NULL DEFAULT 0,
			final_report_sent        INTEGER NOT NULL DEFAULT 0,
			over_locked_sent         INTEGER NOT NULL DEFAULT 0,
			last_alert_at            INTEGER NOT NULL DEFAULT 0,
			last_home_score          INTEGER NOT NULL DEFAULT 0,
			last_away_score          INTEGER NOT NULL DEFAULT 0,
			home_name                TEXT NOT NULL DEFAULT '',
			away_name                TEXT NOT NULL DEFAULT '',
			decision                 TEXT,
			tracked_since            INTEGER NOT NULL,
			updated_at               INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS alerts (
			id          TEXT PRIMARY KEY,
			game_id     TEXT NOT NULL,
			kind        TEXT NOT NULL,
			title       TEXT NOT NULL,
			home_score  INTEGER NOT NULL,
			away_score  INTEGER NOT NULL,
			quarter     INTEGER NOT NULL,
			payload     TEXT NOT NULL,
			created_at  INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_created_at ON alerts(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_game ON alerts(game_id)`,
		`CREATE TABLE IF NOT EXISTS samples (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			game_id        TEXT NOT NULL,
			home_name      TEXT NOT NULL,
			away_name      TEXT NOT NULL,
			quarter        INTEGER NOT NULL,
			minute         INTEGER NOT NULL,
			second         INTEGER NOT NULL,
			played_seconds INTEGER NOT NULL,
			home_score     INTEGER NOT NULL,
			away_score     INTEGER NOT NULL,
			home_pps       REAL NOT NULL,
			away_pps       REAL NOT NULL,
			total_pps      REAL NOT NULL,
			home_raw       REAL NOT NULL,
			home_avg       REAL NOT NULL,
			away_raw       REAL NOT NULL,
			away_avg       REAL NOT NULL,
			total_raw      REAL NOT NULL,
			total_avg      REAL NOT NULL,
			sample_count   INTEGER NOT NULL,
			recorded_at    INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_samples_game ON samples(game_id, id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

const stateCols = `game_id, last_stamp, missed_cycles, home_samples, away_samples, total_samples,
	betting_window_fired, decision_window_complete, final_report_sent, over_locked_sent,
	last_alert_at, last_home_score, last_away_score, home_name, away_name, decision,
	tracked_since, updated_at`

// Save inserts or replaces the state for state.GameID.
func (s *Storage) Save(ctx context.Context, state *models.GameState) error {
	if err := state.Validate(); err != nil {
		return fmt.Errorf("invalid game state: %w", err)
	}
	home, err := json.Marshal(state.HomeSamples)
	if err != nil {
		return fmt.Errorf("failed to marshal home samples: %w", err)
	}
	away, err := json.Marshal(state.AwaySamples)
	if err != nil {
		return fmt.Errorf("failed to marshal away samples: %w", err)
	}
	total, err := json.Marshal(state.TotalSamples)
	if err != nil {
		return fmt.Errorf("failed to marshal total samples: %w", err)
	}
	var decision sql.NullString
	if state.Decision != nil {
		b, err := json.Marshal(state.Decision)
		if err != nil {
			return fmt.Errorf("failed to marshal decision: %w", err)
		}
		decision = sql.NullString{String: string(b), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO game_state (`+stateCols+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		state.GameID, state.LastStamp, state.MissedCycles,
		string(home), string(away), string(total),
		boolToInt(state.BettingWindowFired), boolToInt(state.DecisionWindowComplete),
		boolToInt(state.FinalReportSent), boolToInt(state.OverLockedSent),
		toNanos(state.LastAlertAt), state.LastHomeScore, state.LastAwayScore,
		state.HomeName, state.AwayName, decision,
		toNanos(state.TrackedSince), toNanos(state.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

// Load returns the stored state, or nil, nil when the game has none.
func (s *Storage) Load(ctx context.Context, gameID string) (*models.GameState, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+stateCols+` FROM game_state WHERE game_id = ?`, gameID)
	state, err := scanState(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}
	return state, nil
}

// Delete removes the state for gameID. Deleting a missing game is not an error.
func (s *Storage) Delete(ctx context.Context, gameID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM game_state WHERE game_id = ?`, gameID); err != nil {
		return fmt.Errorf("failed to delete state: %w", err)
	}
	return nil
}

// List returns every stored state, oldest tracked first.
func (s *Storage) List(ctx context.Context) ([]*models.GameState, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+stateCols+` FROM game_state ORDER BY tracked_since, game_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query states: %w", err)
	}
	defer rows.Close()

	states := []*models.GameState{}
	for rows.Next() {
		state, err := scanState(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan state: %w", err)
		}
		states = append(states, state)
	}
	return states, rows.Err()
}

func scanState(scan func(...any) error) (*models.GameState, error) {
	var st models.GameState
	var home, away, total string
	var decision sql.NullString
	var fired, complete, final, locked int
	var lastAlert, trackedSince, updatedAt int64

	err := scan(
		&st.GameID, &st.LastStamp, &st.MissedCycles, &home, &away, &total,
		&fired, &complete, &final, &locked,
		&lastAlert, &st.LastHomeScore, &st.LastAwayScore, &st.HomeName, &st.AwayName, &decision,
		&trackedSince, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(home), &st.HomeSamples); err != nil {
		return nil, fmt.Errorf("failed to unmarshal home samples: %w", err)
	}
	if err := json.Unmarshal([]byte(away), &st.AwaySamples); err != nil {
		return nil, fmt.Errorf("failed to unmarshal away samples: %w", err)
	}
	if err := json.Unmarshal([]byte(total), &st.TotalSamples); err != nil {
		return nil, fmt.Errorf("failed to unmarshal total samples: %w", err)
	}
	if decision.Valid && decision.String != "" {
		st.Decision = &models.Decision{}
		if err := json.Unmarshal([]byte(decision.String), st.Decision); err != nil {
			return nil, fmt.Errorf("failed to unmarshal decision: %w", err)
		}
	}

	st.BettingWindowFired = fired != 0
	st.DecisionWindowComplete = complete != 0
	st.FinalReportSent = final != 0
	st.OverLockedSent = locked != 0
	st.LastAlertAt = fromNanos(lastAlert)
	st.TrackedSince = fromNanos(trackedSince)
	st.UpdatedAt = fromNanos(updatedAt)
	return &st, nil
}

// RecordAlert appends an emitted alert to the audit table.
func (s *Storage) RecordAlert(ctx context.Context, alert models.Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO alerts
			(id, game_id, kind, title, home_score, away_score, quarter, payload, created_at)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		alert.ID, alert.GameID, string(alert.Kind), alert.Title,
		alert.HomeScore, alert.AwayScore, alert.Quarter, string(payload),
		toNanos(alert.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

// GetRecentAlerts returns up to k alerts, newest first.
func (s *Storage) GetRecentAlerts(ctx context.Context, k int) ([]models.Alert, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM alerts ORDER BY created_at DESC, id LIMIT ?`, k)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	alerts := []models.Alert{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		var a models.Alert
		if err := json.Unmarshal([]byte(payload), &a); err != nil {
			return nil, fmt.Errorf("failed to unmarshal alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// RecordSample appends one pace sample to the audit table.
func (s *Storage) RecordSample(ctx context.Context, rec models.SampleRecord) error {
	p := rec.Projections
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO samples
			(game_id, home_name, away_name, quarter, minute, second, played_seconds,
			 home_score, away_score, home_pps, away_pps, total_pps,
			 home_raw, home_avg, away_raw, away_avg, total_raw, total_avg,
			 sample_count, recorded_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		rec.GameID, rec.HomeName, rec.AwayName, rec.Quarter, rec.Minute, rec.Second, rec.PlayedSeconds,
		rec.HomeScore, rec.AwayScore, rec.HomePPS, rec.AwayPPS, rec.TotalPPS,
		p.Home.Raw, p.Home.Avg, p.Away.Raw, p.Away.Avg, p.Total.Raw, p.Total.Avg,
		rec.SampleCount, toNanos(rec.RecordedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert sample: %w", err)
	}
	return nil
}

// GetSamples returns every recorded sample for a game in insertion order.
func (s *Storage) GetSamples(ctx context.Context, gameID string) ([]models.SampleRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT game_id, home_name, away_name, quarter, minute, second, played_seconds,
		       home_score, away_score, home_pps, away_pps, total_pps,
		       home_raw, home_avg, away_raw, away_avg, total_raw, total_avg,
		       sample_count, recorded_at
		FROM samples WHERE game_id = ? ORDER BY id`, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	recs := []models.SampleRecord{}
	for rows.Next() {
		var r models.SampleRecord
		var recordedAt int64
		p := &r.Projections
		err := rows.Scan(
			&r.GameID, &r.HomeName, &r.AwayName, &r.Quarter, &r.Minute, &r.Second, &r.PlayedSeconds,
			&r.HomeScore, &r.AwayScore, &r.HomePPS, &r.AwayPPS, &r.TotalPPS,
			&p.Home.Raw, &p.Home.Avg, &p.Away.Raw, &p.Away.Avg, &p.Total.Raw, &p.Total.Avg,
			&r.SampleCount, &recordedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		r.RecordedAt = fromNanos(recordedAt)
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// RotateSamples keeps at most maxSamples newest sample rows.
func (s *Storage) RotateSamples(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM samples WHERE id NOT IN (
			SELECT id FROM samples ORDER BY id DESC LIMIT ?
		)`, s.maxSamples)
	if err != nil {
		return fmt.Errorf("failed to rotate samples: %w", err)
	}
	return nil
}

func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
