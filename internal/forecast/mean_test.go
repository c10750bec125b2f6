package forecast_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stormtrack/stormtrack/internal/forecast"
)

func fp(v float64) *float64 { return &v }

func TestComputeMeanUsesLatestIssuance(t *testing.T) {
	t.Parallel()

	older := time.Date(2025, 10, 18, 6, 0, 0, 0, time.UTC)
	newer := older.Add(6 * time.Hour)

	members := []forecast.Member{
		{IssuedAtUTC: older, ModelCode: "AP01", LeadHours: 24, Latitude: 10, Longitude: 140, VmaxKt: fp(50)},
		{IssuedAtUTC: newer, ModelCode: "AP01", LeadHours: 0, Latitude: 12, Longitude: 142, VmaxKt: fp(60), MslpHpa: fp(980)},
		{IssuedAtUTC: newer, ModelCode: "AP02", LeadHours: 0, Latitude: 14, Longitude: 144, VmaxKt: fp(70), MslpHpa: fp(970)},
		{IssuedAtUTC: newer, ModelCode: "AP03", LeadHours: 24, Latitude: 16, Longitude: 146},
	}

	points := forecast.ComputeMean(42, members)
	require.Len(t, points, 2)

	zero := points[0]
	assert.Equal(t, int64(42), zero.StormID)
	assert.Equal(t, newer, zero.IssuedAtUTC)
	assert.Equal(t, 0, zero.LeadHours)
	assert.Equal(t, newer, zero.ValidAtUTC)
	assert.InDelta(t, 13.0, zero.Latitude, 1e-9)
	assert.InDelta(t, 143.0, zero.Longitude, 1e-9)
	require.NotNil(t, zero.VmaxKt)
	assert.InDelta(t, 65.0, *zero.VmaxKt, 1e-9)
	require.NotNil(t, zero.MslpHpa)
	assert.InDelta(t, 975.0, *zero.MslpHpa, 1e-9)
	assert.Equal(t, 2, zero.MemberCount)
	assert.True(t, zero.IsFinal)
	assert.Equal(t, forecast.SourceTag, zero.SourceTag)
	assert.True(t, zero.Consistent())

	day := points[1]
	assert.Equal(t, 24, day.LeadHours)
	assert.Equal(t, 1, day.MemberCount)
	assert.Nil(t, day.VmaxKt)
	assert.Equal(t, newer.Add(24*time.Hour), day.ValidAtUTC)
}

func TestComputeMeanEmpty(t *testing.T) {
	t.Parallel()

	assert.Nil(t, forecast.ComputeMean(1, nil))
}

func TestMeanLongitudeAntimeridian(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		lons []float64
		want float64
	}{
		{"plain", []float64{140, 142, 144}, 142},
		{"straddle east", []float64{179.5, -179.5}, 180},
		{"straddle west lean", []float64{178, -178, -176}, -178.66666666666666},
		{"negative plain", []float64{-75, -77}, -76},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := forecast.MeanLongitude(tt.lons)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}
