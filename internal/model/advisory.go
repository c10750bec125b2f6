package model

import "time"

// Quadrant identifies one of the four wind-radii quadrants, named from the
// storm motion frame (NE is right-front under northward motion).
type Quadrant string

// Wind radii quadrants.
const (
	QuadrantNE Quadrant = "NE"
	QuadrantSE Quadrant = "SE"
	QuadrantSW Quadrant = "SW"
	QuadrantNW Quadrant = "NW"
)

// Quadrants lists the four quadrants in canonical order.
var Quadrants = []Quadrant{QuadrantNE, QuadrantSE, QuadrantSW, QuadrantNW}

// WindRadii holds the 34/50/64 kt wind radii for one quadrant, in nautical
// miles. A nil threshold means the value is not reported.
type WindRadii struct {
	R34NM *float64 `json:"r34,omitempty"`
	R50NM *float64 `json:"r50,omitempty"`
	R64NM *float64 `json:"r64,omitempty"`
}

// Nested reports whether the radii satisfy the threshold nesting invariant
// r64 ≤ r50 ≤ r34. Missing thresholds do not violate nesting.
func (w WindRadii) Nested() bool {
	if w.R50NM != nil && w.R34NM != nil && *w.R50NM > *w.R34NM {
		return false
	}

	if w.R64NM != nil && w.R50NM != nil && *w.R64NM > *w.R50NM {
		return false
	}

	if w.R64NM != nil && w.R34NM != nil && *w.R64NM > *w.R34NM {
		return false
	}

	return true
}

// QuadrantRadii maps quadrants to their wind radii.
type QuadrantRadii map[Quadrant]WindRadii

// Nested reports whether every quadrant satisfies the nesting invariant.
func (q QuadrantRadii) Nested() bool {
	for _, w := range q {
		if !w.Nested() {
			return false
		}
	}

	return true
}

// MaxR34NM returns the maximum 34 kt radius across quadrants, or 0 when no
// quadrant reports one. This drives the gale wind-field disc in zone
// generation.
func (q QuadrantRadii) MaxR34NM() float64 {
	var maxR float64

	for _, w := range q {
		if w.R34NM != nil && *w.R34NM > maxR {
			maxR = *w.R34NM
		}
	}

	return maxR
}

// Advisory is one observation record for a storm. Advisories are
// content-addressed by the checksum of their source line so reprocessing the
// same upstream bytes is idempotent.
type Advisory struct {
	ID               int64         `db:"id"`
	StormID          int64         `db:"storm_id"`
	IssuedAtUTC      time.Time     `db:"issued_at_utc"`
	Latitude         float64       `db:"latitude"`
	Longitude        float64       `db:"longitude"`
	VmaxKt           *float64      `db:"vmax_kt"`
	MslpHpa          *float64      `db:"mslp_hpa"`
	MotionBearingDeg *float64      `db:"motion_bearing_deg"`
	MotionSpeedKt    *float64      `db:"motion_speed_kt"`
	Radii            QuadrantRadii `db:"-"`
	LineChecksum     string        `db:"line_checksum"`
	ParserVersion    int           `db:"parser_version"`
}

// PositionValid reports whether the advisory position is inside WGS84 bounds.
func (a *Advisory) PositionValid() bool {
	return a.Latitude >= -90 && a.Latitude <= 90 &&
		a.Longitude >= -180 && a.Longitude <= 180
}
