package zones

import (
	"math"
	"time"

	"github.com/stormtrack/stormtrack/internal/model"
	"github.com/stormtrack/stormtrack/pkg/geo"
	"github.com/stormtrack/stormtrack/pkg/units"
)

// Classification windows, in hours until first gale arrival.
const (
	warningWindowHours = 24
	watchWindowHours   = 48
)

// Forward-speed correction: arrival shifts by (1 − speed/climatologySpeedKt)
// · speedShiftScaleHours, clipped to ±speedShiftScaleHours.
const (
	climatologySpeedKt   = 15.0
	speedShiftScaleHours = 3.0
)

// degPerKm converts kilometers to degrees of latitude for the coarse cull.
const degPerKm = 1.0 / 111.0

// cullSlackDeg widens the coarse bounding-box test so the precise pass never
// misses a true intersection.
const cullSlackDeg = 1.0

// Fallback radius-per-intensity slopes (nm per kt) used when a forecast
// point carries no radii at all.
const fallbackR34Slope = 0.8

// segmentTOFI is the classified arrival estimate for one coast segment.
type segmentTOFI struct {
	segment Segment
	tofi    time.Time
	class   model.ZoneType
}

// computeTOFI walks the forecast points in lead order and returns the first
// time the 34-kt wind disc of any point reaches the segment.
func computeTOFI(segment Segment, track []model.ForecastPoint) (time.Time, bool) {
	for _, point := range track {
		radiusKm := galeRadiusKm(point)
		if radiusKm <= 0 {
			continue
		}

		if !coarseReach(segment, point, radiusKm) {
			continue
		}

		if segmentWithinKm(segment, point, radiusKm) {
			return shiftForSpeed(point.ValidAtUTC, forwardSpeedKt(track, point)), true
		}
	}

	return time.Time{}, false
}

// galeRadiusKm returns the 34-kt wind field radius of a forecast point in
// kilometers: the maximum quadrant R34, or an intensity-scaled fallback when
// the point carries no radii.
func galeRadiusKm(point model.ForecastPoint) float64 {
	if r := point.Radii.MaxR34NM(); r > 0 {
		return units.NauticalMilesToKilometers(r)
	}

	if point.VmaxKt == nil || *point.VmaxKt < 34 {
		return 0
	}

	return units.NauticalMilesToKilometers(*point.VmaxKt * fallbackR34Slope)
}

// coarseReach is the cheap degree-space cull: reject the segment when its
// bounding box sits farther from the point than the disc radius plus slack.
func coarseReach(segment Segment, point model.ForecastPoint, radiusKm float64) bool {
	reachDeg := radiusKm*degPerKm + cullSlackDeg

	bound := segment.Line.Bound()

	dLat := 0.0
	if point.Latitude < bound.Min[1] {
		dLat = bound.Min[1] - point.Latitude
	} else if point.Latitude > bound.Max[1] {
		dLat = point.Latitude - bound.Max[1]
	}

	dLon := 0.0
	if point.Longitude < bound.Min[0] {
		dLon = bound.Min[0] - point.Longitude
	} else if point.Longitude > bound.Max[0] {
		dLon = point.Longitude - bound.Max[0]
	}

	return math.Hypot(dLat, dLon) <= reachDeg
}

// segmentWithinKm is the precise metric test: the minimum distance from the
// point to any segment edge, measured in a local projection, against the
// disc radius.
func segmentWithinKm(segment Segment, point model.ForecastPoint, radiusKm float64) bool {
	proj := geo.NewProjection(point.Latitude, point.Longitude)

	prevX, prevY := 0.0, 0.0

	for i, vertex := range segment.Line {
		x, y := proj.Forward(vertex[1], vertex[0])

		if math.Hypot(x, y) <= radiusKm {
			return true
		}

		if i > 0 && pointToEdgeKm(prevX, prevY, x, y) <= radiusKm {
			return true
		}

		prevX, prevY = x, y
	}

	return false
}

// pointToEdgeKm returns the distance from the projection origin to the edge
// (x1,y1)-(x2,y2).
func pointToEdgeKm(x1, y1, x2, y2 float64) float64 {
	dx, dy := x2-x1, y2-y1

	lengthSq := dx*dx + dy*dy
	if lengthSq == 0 {
		return math.Hypot(x1, y1)
	}

	t := -(x1*dx + y1*dy) / lengthSq
	t = math.Max(0, math.Min(1, t))

	return math.Hypot(x1+t*dx, y1+t*dy)
}

// forwardSpeedKt estimates the forward speed at a forecast point from the
// segment leading into it.
func forwardSpeedKt(track []model.ForecastPoint, point model.ForecastPoint) float64 {
	for i := 1; i < len(track); i++ {
		if !track[i].ValidAtUTC.Equal(point.ValidAtUTC) {
			continue
		}

		hours := track[i].ValidAtUTC.Sub(track[i-1].ValidAtUTC).Hours()
		if hours <= 0 {
			return 0
		}

		distKm := geo.DistanceKm(
			track[i-1].Latitude, track[i-1].Longitude,
			track[i].Latitude, track[i].Longitude,
		)

		return units.KilometersToNauticalMiles(distKm) / hours
	}

	return 0
}

// shiftForSpeed applies the forward-speed correction: faster storms arrive
// proportionally earlier. A zero speed leaves the estimate unshifted.
func shiftForSpeed(tofi time.Time, speedKt float64) time.Time {
	if speedKt <= 0 {
		return tofi
	}

	shiftHours := (1 - speedKt/climatologySpeedKt) * speedShiftScaleHours
	shiftHours = math.Max(-speedShiftScaleHours, math.Min(speedShiftScaleHours, shiftHours))

	return tofi.Add(time.Duration(shiftHours * float64(time.Hour)))
}

// classifyTOFI maps an arrival estimate onto a zone type relative to now.
// The third value is false when the arrival is beyond the watch window.
func classifyTOFI(tofi, now time.Time) (model.ZoneType, bool) {
	hoursUntil := tofi.Sub(now).Hours()

	switch {
	case hoursUntil <= warningWindowHours:
		return model.ZoneWarning, true
	case hoursUntil <= watchWindowHours:
		return model.ZoneWatch, true
	default:
		return "", false
	}
}
