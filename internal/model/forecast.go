package model

import "time"

// EnsembleSize is the number of members in the AP ensemble (AP01..AP30).
const EnsembleSize = 30

// ForecastPoint is one lead time of the ensemble-mean forecast for a storm.
// Only fully averaged (final) points are persisted; the newest issuance
// atomically replaces any prior final forecast for the storm.
type ForecastPoint struct {
	ID            int64         `db:"id"`
	StormID       int64         `db:"storm_id"`
	IssuedAtUTC   time.Time     `db:"issued_at_utc"`
	ValidAtUTC    time.Time     `db:"valid_at_utc"`
	LeadHours     int           `db:"lead_hours"`
	Latitude      float64       `db:"latitude"`
	Longitude     float64       `db:"longitude"`
	VmaxKt        *float64      `db:"vmax_kt"`
	MslpHpa       *float64      `db:"mslp_hpa"`
	Radii         QuadrantRadii `db:"-"`
	RadiiInferred bool          `db:"radii_inferred"`
	MemberCount   int           `db:"member_count"`
	SourceTag     string        `db:"source_tag"`
	IsFinal       bool          `db:"is_final"`
}

// Consistent reports whether the point satisfies its structural invariants:
// valid time matches issuance plus lead, and the member count is within the
// ensemble bounds.
func (f *ForecastPoint) Consistent() bool {
	if f.ValidAtUTC.Sub(f.IssuedAtUTC) != time.Duration(f.LeadHours)*time.Hour {
		return false
	}

	return f.MemberCount >= 1 && f.MemberCount <= EnsembleSize
}
