package forecast_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stormtrack/stormtrack/internal/forecast"
)

const adeckFixture = `WP, 28, 2025101812, 03, AP01,   0, 125N, 1453E,  65,  975, XX
WP, 28, 2025101812, 03, AP01,  24, 135N, 1440E,  70,  970, XX
WP, 28, 2025101812, 03, AP02,   0, 127N, 1455E,  63,  976, XX
WP, 28, 2025101812, 03, AP02,  24, 137N, 1442E,   -,  N/A, XX
WP, 28, 2025101812, 03, AVNO,  24, 140N, 1430E,  80,  960, XX
WP, 28, 2025101812, 03, AP03,  25, 137N, 1442E,  60,  980, XX
WP, 28, 2025101812, 03, AP04, 300, 137N, 1442E,  60,  980, XX

# comment
garbage line
`

func TestParseADeck(t *testing.T) {
	t.Parallel()

	members, report := forecast.ParseADeck([]byte(adeckFixture))

	// Two off-grid leads (25 and 300) and the garbage line are skipped.
	require.Len(t, members, 5)
	assert.Equal(t, 8, report.DataLines)
	assert.Equal(t, 3, report.SkippedCount())

	first := members[0]
	assert.Equal(t, "AP01", first.ModelCode)
	assert.Equal(t, time.Date(2025, 10, 18, 12, 0, 0, 0, time.UTC), first.IssuedAtUTC)
	assert.Equal(t, 0, first.LeadHours)
	assert.InDelta(t, 12.5, first.Latitude, 1e-9)
	assert.InDelta(t, 145.3, first.Longitude, 1e-9)
	require.NotNil(t, first.VmaxKt)
	assert.InDelta(t, 65.0, *first.VmaxKt, 1e-9)

	// Missing markers parse to nil rather than zero.
	ap02 := members[3]
	assert.Equal(t, "AP02", ap02.ModelCode)
	assert.Equal(t, 24, ap02.LeadHours)
	assert.Nil(t, ap02.VmaxKt)
	assert.Nil(t, ap02.MslpHpa)
}

func TestParseADeckWesternHemisphere(t *testing.T) {
	t.Parallel()

	line := `AL, 09, 2025101812, 03, AP07, 48, 251N, 0751W, 90, 950, XX`

	members, report := forecast.ParseADeck([]byte(line))
	require.Len(t, members, 1)
	assert.Zero(t, report.SkippedCount())

	assert.InDelta(t, 25.1, members[0].Latitude, 1e-9)
	assert.InDelta(t, -75.1, members[0].Longitude, 1e-9)
}

func TestFilterEnsemble(t *testing.T) {
	t.Parallel()

	members := []forecast.Member{
		{ModelCode: "AP01"},
		{ModelCode: "AP30"},
		{ModelCode: "AP00"},
		{ModelCode: "AP31"},
		{ModelCode: "AVNO"},
		{ModelCode: "OFCL"},
		{ModelCode: "AP1"},
	}

	kept := forecast.FilterEnsemble(members)

	require.Len(t, kept, 2)
	assert.Equal(t, "AP01", kept[0].ModelCode)
	assert.Equal(t, "AP30", kept[1].ModelCode)
}
