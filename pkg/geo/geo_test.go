package geo_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stormtrack/stormtrack/pkg/geo"
)

// Reference values computed with geographiclib (WGS84).
func TestDistanceKnownPairs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		wantKm                 float64
		tolKm                  float64
	}{
		{"equator one degree", 0, 0, 0, 1, 111.3195, 0.01},
		{"manila to guam", 14.6, 121.0, 13.5, 144.8, 2574.7, 5.0},
		{"coincident", 25.0, -80.0, 25.0, -80.0, 0, 0.0001},
		{"short hop", 15.0, 130.0, 15.1, 130.1, 15.47, 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := geo.DistanceKm(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			assert.InDelta(t, tt.wantKm, got, tt.tolKm)
		})
	}
}

func TestBearingCardinal(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 0, geo.BearingDeg(10, 130, 11, 130), 0.5)
	assert.InDelta(t, 90, geo.BearingDeg(0, 130, 0, 131), 0.5)
	assert.InDelta(t, 180, geo.BearingDeg(11, 130, 10, 130), 0.5)
	assert.InDelta(t, 270, geo.BearingDeg(0, 131, 0, 130), 0.5)
}

func TestDestinationRoundTrip(t *testing.T) {
	t.Parallel()

	const (
		lat = 14.25
		lon = -126.75
		brg = 37.0
		km  = 450.0
	)

	dLat, dLon := geo.Destination(lat, lon, brg, km)

	// Travelling back the measured distance along the reverse bearing lands
	// on the start point.
	back := geo.DistanceKm(lat, lon, dLat, dLon)
	assert.InDelta(t, km, back, 0.01)
}

func TestInterpolateEndpointsAndMidpoint(t *testing.T) {
	t.Parallel()

	lat, lon := geo.Interpolate(10, 120, 20, 130, 0)
	assert.InDelta(t, 10.0, lat, 1e-9)
	assert.InDelta(t, 120.0, lon, 1e-9)

	lat, lon = geo.Interpolate(10, 120, 20, 130, 1)
	assert.InDelta(t, 20.0, lat, 1e-9)
	assert.InDelta(t, 130.0, lon, 1e-9)

	midLat, midLon := geo.Interpolate(10, 120, 20, 130, 0.5)
	dA := geo.DistanceKm(10, 120, midLat, midLon)
	dB := geo.DistanceKm(midLat, midLon, 20, 130)
	assert.InDelta(t, dA, dB, 0.1)
}

func TestSphericalMean(t *testing.T) {
	t.Parallel()

	t.Run("single point is identity", func(t *testing.T) {
		t.Parallel()

		lat, lon, ok := geo.SphericalMean([][2]float64{{15.1, -127.8}})
		require.True(t, ok)
		assert.InDelta(t, 15.1, lat, 1e-9)
		assert.InDelta(t, -127.8, lon, 1e-9)
	})

	t.Run("antimeridian straddle", func(t *testing.T) {
		t.Parallel()

		lat, lon, ok := geo.SphericalMean([][2]float64{
			{10, 179.5},
			{10, -179.5},
		})
		require.True(t, ok)
		assert.InDelta(t, 10, lat, 0.01)
		assert.InDelta(t, 180, absLon(lon), 0.01)
	})

	t.Run("empty input", func(t *testing.T) {
		t.Parallel()

		_, _, ok := geo.SphericalMean(nil)
		assert.False(t, ok)
	})
}

func absLon(lon float64) float64 {
	if lon < 0 {
		return -lon
	}

	return lon
}

func TestProjectionRoundTrip(t *testing.T) {
	t.Parallel()

	proj := geo.NewProjection(15.0, 140.0)

	x, y := proj.Forward(15.5, 141.0)
	lat, lon := proj.Inverse(x, y)

	assert.InDelta(t, 15.5, lat, 1e-9)
	assert.InDelta(t, 141.0, lon, 1e-9)

	// One degree of latitude is ~111 km everywhere.
	_, yOne := proj.Forward(16.0, 140.0)
	assert.InDelta(t, 111.19, yOne, 0.1)
}

func TestProjectionAcrossAntimeridian(t *testing.T) {
	t.Parallel()

	proj := geo.NewProjection(10.0, 179.5)

	x, _ := proj.Forward(10.0, -179.5)
	assert.Positive(t, x)
	assert.Less(t, x, 200.0)
}

func TestNormalizeLon(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, -170.0, geo.NormalizeLon(190), 1e-9)
	assert.InDelta(t, 170.0, geo.NormalizeLon(-190), 1e-9)
	assert.InDelta(t, 180.0, geo.NormalizeLon(180), 1e-9)
	assert.InDelta(t, 180.0, geo.NormalizeLon(-180), 1e-9)
}
