package model

import "time"

// ArchiveStats are the summary figures computed when a storm is archived.
// ACE is the accumulated cyclone energy in 10^-4 kt² over 6-hour bins.
type ArchiveStats struct {
	PeakVmaxKt    *float64 `json:"peak_vmax_kt,omitempty"`
	MinMslpHpa    *float64 `json:"min_mslp_hpa,omitempty"`
	ACE           float64  `json:"ace"`
	TrackLengthKm float64  `json:"track_length_km"`
	DurationHours float64  `json:"duration_hours"`
	AdvisoryCount int      `json:"advisory_count"`
	ForecastCount int      `json:"forecast_count"`
	ZoneCount     int      `json:"zone_count"`
}

// AuditEntry is one append-only record of a pipeline action on a storm.
type AuditEntry struct {
	ID      string         `db:"id"`
	StormID int64          `db:"storm_id"`
	Action  string         `db:"action"`
	Detail  map[string]any `db:"-"`
	AtUTC   time.Time      `db:"at_utc"`
}
