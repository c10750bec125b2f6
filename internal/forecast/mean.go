package forecast

import (
	"sort"
	"time"

	"github.com/stormtrack/stormtrack/internal/model"
	"github.com/stormtrack/stormtrack/pkg/geo"
)

// SourceTag marks forecast points derived from the public A-Deck mirror.
const SourceTag = "adecks_open"

// ComputeMean reduces ensemble members to the per-lead mean forecast of the
// most recent issuance. One point is produced per lead hour present; leads
// missing position data are skipped.
func ComputeMean(stormID int64, members []Member) []model.ForecastPoint {
	if len(members) == 0 {
		return nil
	}

	latest := latestIssuance(members)

	byLead := make(map[int][]Member)

	for _, member := range members {
		if member.IssuedAtUTC.Equal(latest) {
			byLead[member.LeadHours] = append(byLead[member.LeadHours], member)
		}
	}

	leads := make([]int, 0, len(byLead))
	for lead := range byLead {
		leads = append(leads, lead)
	}

	sort.Ints(leads)

	points := make([]model.ForecastPoint, 0, len(leads))

	for _, lead := range leads {
		point, ok := meanPoint(stormID, latest, lead, byLead[lead])
		if ok {
			points = append(points, point)
		}
	}

	return points
}

func latestIssuance(members []Member) time.Time {
	var latest time.Time

	for _, member := range members {
		if member.IssuedAtUTC.After(latest) {
			latest = member.IssuedAtUTC
		}
	}

	return latest
}

func meanPoint(stormID int64, issued time.Time, lead int, members []Member) (model.ForecastPoint, bool) {
	if len(members) == 0 {
		return model.ForecastPoint{}, false
	}

	lats := make([]float64, len(members))
	lons := make([]float64, len(members))

	var (
		vmaxSum, mslpSum     float64
		vmaxCount, mslpCount int
	)

	for i, member := range members {
		lats[i] = member.Latitude
		lons[i] = member.Longitude

		if member.VmaxKt != nil {
			vmaxSum += *member.VmaxKt
			vmaxCount++
		}

		if member.MslpHpa != nil {
			mslpSum += *member.MslpHpa
			mslpCount++
		}
	}

	point := model.ForecastPoint{
		StormID:     stormID,
		IssuedAtUTC: issued,
		ValidAtUTC:  issued.Add(time.Duration(lead) * time.Hour),
		LeadHours:   lead,
		Latitude:    mean(lats),
		Longitude:   MeanLongitude(lons),
		MemberCount: len(members),
		SourceTag:   SourceTag,
		IsFinal:     true,
	}

	if vmaxCount > 0 {
		vmax := vmaxSum / float64(vmaxCount)
		point.VmaxKt = &vmax
	}

	if mslpCount > 0 {
		mslp := mslpSum / float64(mslpCount)
		point.MslpHpa = &mslp
	}

	return point, true
}

// MeanLongitude averages longitudes with antimeridian handling: when the
// raw range exceeds 180°, values are rotated into [0, 360) before averaging
// and the result renormalized into (-180, 180].
func MeanLongitude(lons []float64) float64 {
	if len(lons) == 0 {
		return 0
	}

	minLon, maxLon := lons[0], lons[0]
	for _, lon := range lons[1:] {
		minLon = min(minLon, lon)
		maxLon = max(maxLon, lon)
	}

	if maxLon-minLon <= 180 {
		return mean(lons)
	}

	rotated := make([]float64, len(lons))
	for i, lon := range lons {
		if lon < 0 {
			lon += 360
		}

		rotated[i] = lon
	}

	return geo.NormalizeLon(mean(rotated))
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}

	return sum / float64(len(values))
}
