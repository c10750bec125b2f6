package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/stormtrack/stormtrack/internal/model"
)

func fp(v float64) *float64 { return &v }

func TestAccumulatedEnergyBinsSubSynopticFixes(t *testing.T) {
	t.Parallel()

	origin := time.Date(2025, 10, 18, 0, 0, 0, 0, time.UTC)

	// Three fixes inside the first 6-hour bin and one in the next: only the
	// per-bin maxima count.
	advisories := []model.Advisory{
		{IssuedAtUTC: origin, VmaxKt: fp(40)},
		{IssuedAtUTC: origin.Add(2 * time.Hour), VmaxKt: fp(50)},
		{IssuedAtUTC: origin.Add(4 * time.Hour), VmaxKt: fp(45)},
		{IssuedAtUTC: origin.Add(7 * time.Hour), VmaxKt: fp(60)},
	}

	want := (50*50 + 60*60) * 1e-4

	assert.InDelta(t, want, accumulatedEnergy(advisories), 1e-9)
}

func TestAccumulatedEnergyIgnoresSubGale(t *testing.T) {
	t.Parallel()

	origin := time.Date(2025, 10, 18, 0, 0, 0, 0, time.UTC)

	advisories := []model.Advisory{
		{IssuedAtUTC: origin, VmaxKt: fp(25)},
		{IssuedAtUTC: origin.Add(6 * time.Hour), VmaxKt: fp(30)},
		{IssuedAtUTC: origin.Add(12 * time.Hour)},
	}

	assert.Zero(t, accumulatedEnergy(advisories))
}

func TestTrackLength(t *testing.T) {
	t.Parallel()

	advisories := []model.Advisory{
		{Latitude: 10, Longitude: 140},
		{Latitude: 11, Longitude: 140},
		{Latitude: 12, Longitude: 140},
	}

	// Two degrees of latitude is roughly 221 km.
	assert.InDelta(t, 221, trackLength(advisories), 2)
}

func TestPeakAndMinHandleMissingValues(t *testing.T) {
	t.Parallel()

	advisories := []model.Advisory{
		{VmaxKt: fp(45), MslpHpa: fp(990)},
		{},
		{VmaxKt: fp(85), MslpHpa: fp(955)},
		{VmaxKt: fp(60)},
	}

	peak := peakVmax(advisories)
	minP := minMslp(advisories)

	assert.InDelta(t, 85, *peak, 1e-9)
	assert.InDelta(t, 955, *minP, 1e-9)

	assert.Nil(t, peakVmax(nil))
	assert.Nil(t, minMslp(nil))
}
