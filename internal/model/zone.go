package model

import (
	"time"

	"github.com/paulmach/orb"
)

// ZoneType classifies a coastal alert zone by lead window.
type ZoneType string

// Zone types. Warnings cover TOFI ≤ 24 h, watches 24–48 h.
const (
	ZoneWarning ZoneType = "warning"
	ZoneWatch   ZoneType = "watch"
)

// ValidityWindow returns how long a freshly generated zone of this type
// remains valid.
func (z ZoneType) ValidityWindow() time.Duration {
	if z == ZoneWarning {
		return 24 * time.Hour
	}

	return 48 * time.Hour
}

// Zone is a watch or warning polygon for a storm. Geometry is WGS84; the
// parameters map records the generation inputs (buffer distances, smoothing,
// inference coefficients) so downstream tuning does not require code change.
type Zone struct {
	ID             int64            `db:"id"`
	StormID        int64            `db:"storm_id"`
	Type           ZoneType         `db:"zone_type"`
	GeneratedAtUTC time.Time        `db:"generated_at_utc"`
	ValidFromUTC   time.Time        `db:"valid_from_utc"`
	ValidToUTC     time.Time        `db:"valid_to_utc"`
	Geometry       orb.MultiPolygon `db:"-"`
	MethodVersion  string           `db:"method_version"`
	Parameters     map[string]any   `db:"-"`
}
