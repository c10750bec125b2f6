package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/stormtrack/stormtrack/internal/model"
	"github.com/stormtrack/stormtrack/pkg/geo"
)

// ACE accumulation: the maximum sustained wind per 6-hour bin contributes
// v²/10⁴ when it reaches gale force.
const (
	aceBinHours    = 6
	aceGaleFloorKt = 34.0
	aceScale       = 1e-4
)

// computeStats derives the archival summary from everything stored for the
// storm.
func (s *Service) computeStats(ctx context.Context, storm model.Storm) (model.ArchiveStats, error) {
	advisories, advErr := s.store.ListAdvisories(ctx, storm.ID)
	if advErr != nil {
		return model.ArchiveStats{}, fmt.Errorf("load advisories for stats: %w", advErr)
	}

	forecast, fcErr := s.store.LatestFinalForecast(ctx, storm.ID)
	if fcErr != nil {
		return model.ArchiveStats{}, fmt.Errorf("load forecast for stats: %w", fcErr)
	}

	zones, zoneErr := s.store.ListZones(ctx, storm.ID)
	if zoneErr != nil {
		return model.ArchiveStats{}, fmt.Errorf("load zones for stats: %w", zoneErr)
	}

	stats := model.ArchiveStats{
		AdvisoryCount: len(advisories),
		ForecastCount: len(forecast),
		ZoneCount:     len(zones),
	}

	if len(advisories) == 0 {
		return stats, nil
	}

	stats.PeakVmaxKt = peakVmax(advisories)
	stats.MinMslpHpa = minMslp(advisories)
	stats.ACE = accumulatedEnergy(advisories)
	stats.TrackLengthKm = trackLength(advisories)
	stats.DurationHours = advisories[len(advisories)-1].IssuedAtUTC.
		Sub(advisories[0].IssuedAtUTC).Hours()

	return stats, nil
}

func peakVmax(advisories []model.Advisory) *float64 {
	var peak *float64

	for i := range advisories {
		v := advisories[i].VmaxKt
		if v == nil {
			continue
		}

		if peak == nil || *v > *peak {
			value := *v
			peak = &value
		}
	}

	return peak
}

func minMslp(advisories []model.Advisory) *float64 {
	var minP *float64

	for i := range advisories {
		p := advisories[i].MslpHpa
		if p == nil {
			continue
		}

		if minP == nil || *p < *minP {
			value := *p
			minP = &value
		}
	}

	return minP
}

// accumulatedEnergy computes ACE over 6-hour bins keyed from the first
// advisory: the satellite record is sub-synoptic, so summing every fix would
// overweight dense stretches.
func accumulatedEnergy(advisories []model.Advisory) float64 {
	if len(advisories) == 0 {
		return 0
	}

	origin := advisories[0].IssuedAtUTC
	binMax := make(map[int64]float64)

	for i := range advisories {
		v := advisories[i].VmaxKt
		if v == nil || *v < aceGaleFloorKt {
			continue
		}

		bin := int64(advisories[i].IssuedAtUTC.Sub(origin) / (aceBinHours * time.Hour))
		if *v > binMax[bin] {
			binMax[bin] = *v
		}
	}

	var ace float64

	for _, v := range binMax {
		ace += v * v * aceScale
	}

	return ace
}

// trackLength sums the geodesic distance between consecutive fixes.
func trackLength(advisories []model.Advisory) float64 {
	var total float64

	for i := 1; i < len(advisories); i++ {
		total += geo.DistanceKm(
			advisories[i-1].Latitude, advisories[i-1].Longitude,
			advisories[i].Latitude, advisories[i].Longitude,
		)
	}

	return total
}
