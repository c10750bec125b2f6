package model

import "time"

// Status is the lifecycle state of a storm.
type Status string

// Lifecycle states. Transitions are restricted to the edges enforced by the
// lifecycle service: active→dormant, dormant→active, dormant→archived.
const (
	StatusActive   Status = "active"
	StatusDormant  Status = "dormant"
	StatusArchived Status = "archived"
)

// CanTransition reports whether the state machine permits moving from the
// current status to next.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusActive:
		return next == StatusDormant
	case StatusDormant:
		return next == StatusActive || next == StatusArchived
	case StatusArchived:
		return false
	default:
		return false
	}
}

// Storm is one tracked tropical cyclone, identified by its upstream code.
// Archived storms are immutable except for derived archive artifacts.
type Storm struct {
	ID                 int64      `db:"id"`
	Code               string     `db:"code"`
	Basin              Basin      `db:"basin"`
	Name               *string    `db:"name"`
	Status             Status     `db:"status"`
	FirstSeenUTC       time.Time  `db:"first_seen_utc"`
	LastSeenUTC        time.Time  `db:"last_seen_utc"`
	LastStatusChange   time.Time  `db:"last_status_change_utc"`
	HistoryFileURL     string     `db:"history_file_url"`
	SatelliteImageURL  *string    `db:"satellite_image_url"`
	PeakVmaxSeenKt     *float64   `db:"peak_vmax_seen_kt"`
	ArchivedAtUTC      *time.Time `db:"archived_at_utc"`
	ArchivalReason     *string    `db:"archival_reason"`
}
