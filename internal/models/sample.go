package models

import "time"

// SampleRecord is one audit row written for every accepted, sampled tick.
type SampleRecord struct {
	GameID        string
	HomeName      string
	AwayName      string
	Quarter       int
	Minute        int
	Second        int
	PlayedSeconds int
	HomeScore     int
	AwayScore     int
	HomePPS       float64
	AwayPPS       float64
	TotalPPS      float64
	Projections   ProjectionSet
	SampleCount   int
	RecordedAt    time.Time
}
