// Package models defines the core domain entities: feed snapshots, per-game tracking state,
// odds lines, and alert descriptors.
package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrMalformedScore is returned when the feed score field is not "home-away".
	ErrMalformedScore = errors.New("malformed score")
	// ErrMalformedTimer is returned when quarter, minute or second cannot be read.
	ErrMalformedTimer = errors.New("malformed timer")
)

// Snapshot is one feed-provided view of a live game. Fields are kept exactly as the feed
// sent them; Read turns them into numbers.
type Snapshot struct {
	ID       string `json:"id"`
	HomeName string `json:"home_name"`
	AwayName string `json:"away_name"`
	Score    string `json:"score"` // "home-away", e.g. "52-48"
	Quarter  string `json:"quarter"`
	Minute   string `json:"minute"`
	Second   string `json:"second"`
}

// Reading is a parsed Snapshot.
type Reading struct {
	HomeScore int
	AwayScore int
	Quarter   int
	Minute    int
	Second    int
}

// Total returns the combined score.
func (r Reading) Total() int {
	return r.HomeScore + r.AwayScore
}

// Stamp returns the clock triple used for duplicate detection.
func (r Reading) Stamp() Stamp {
	return Stamp{Quarter: r.Quarter, Minute: r.Minute, Second: r.Second}
}

// Tied reports whether both sides have the same score.
func (r Reading) Tied() bool {
	return r.HomeScore == r.AwayScore
}

// Read parses the score and timer fields.
func (s Snapshot) Read() (Reading, error) {
	var r Reading

	parts := strings.Split(strings.TrimSpace(s.Score), "-")
	if len(parts) != 2 {
		return r, fmt.Errorf("%w: %q", ErrMalformedScore, s.Score)
	}
	home, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || home < 0 {
		return r, fmt.Errorf("%w: %q", ErrMalformedScore, s.Score)
	}
	away, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || away < 0 {
		return r, fmt.Errorf("%w: %q", ErrMalformedScore, s.Score)
	}
	r.HomeScore, r.AwayScore = home, away

	if r.Quarter, err = atoiField(s.Quarter); err != nil || r.Quarter < 1 {
		return r, fmt.Errorf("%w: quarter %q", ErrMalformedTimer, s.Quarter)
	}
	if r.Minute, err = atoiField(s.Minute); err != nil || r.Minute < 0 {
		return r, fmt.Errorf("%w: minute %q", ErrMalformedTimer, s.Minute)
	}
	if r.Second, err = atoiField(s.Second); err != nil || r.Second < 0 || r.Second > 59 {
		return r, fmt.Errorf("%w: second %q", ErrMalformedTimer, s.Second)
	}
	return r, nil
}

func atoiField(v string) (int, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, errors.New("empty")
	}
	return strconv.Atoi(v)
}

// Stamp identifies the clock position of a snapshot. Two snapshots with the same stamp are
// treated as the same update.
type Stamp struct {
	Quarter int
	Minute  int
	Second  int
}

// String encodes the stamp the way it is persisted in GameState.LastStamp.
func (s Stamp) String() string {
	return fmt.Sprintf("%d-%d-%d", s.Quarter, s.Minute, s.Second)
}

// Terminal reports whether the clock has run out in the current period.
func (s Stamp) Terminal() bool {
	return s.Minute == 0 && s.Second == 0
}
