package ingest_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stormtrack/stormtrack/internal/ingest"
)

const adtHistoryFixture = `                   ADT-Version 9.0   LIST
=====================================================
  Date     Time      CI   MSLP   Vmax ...
2025OCT18 034000  2.0 1004.6  30.0  2.0 2.0 2.0  NO LIMIT  OFF  OFF  OFF  OFF  -5.96 -37.81  CRVBND   N/A    N/A   14.25 -126.75  ARCHER   HIM-8 23.2
2025OCT18 094000  2.5 1000.2  35.0  2.5 2.5 2.5  NO LIMIT  OFF  OFF  OFF  OFF  -5.80 -37.90  CRVBND   N/A    N/A   14.60 -127.40  ARCHER   HIM-8 23.2

# operator note
2025OCT18 154000  3.0  996.8  45.0  3.0 3.0 3.0  NO LIMIT  OFF  OFF  OFF  OFF  -5.60 -38.00  SHEAR    N/A    N/A   15.10 -128.10  ARCHER   HIM-8 23.2
malformed row that should be skipped but counted once here ok ok ok ok ok ok ok ok ok ok ok ok ok
`

func TestADTAdapterParsesFixture(t *testing.T) {
	t.Parallel()

	adapter := &ingest.ADTAdapter{}

	advisories, report, err := adapter.Parse([]byte(adtHistoryFixture))
	require.NoError(t, err)

	require.Len(t, advisories, 3)
	assert.Equal(t, 4, report.DataLines)
	assert.Equal(t, 1, report.SkippedCount())

	first := advisories[0]
	assert.Equal(t, time.Date(2025, 10, 18, 3, 40, 0, 0, time.UTC), first.TimestampUTC)
	assert.InDelta(t, 14.25, first.Latitude, 1e-9)
	assert.InDelta(t, -126.75, first.Longitude, 1e-9)
	require.NotNil(t, first.MslpHpa)
	assert.InDelta(t, 1004.6, *first.MslpHpa, 1e-9)
	require.NotNil(t, first.VmaxKt)
	assert.InDelta(t, 30.0, *first.VmaxKt, 1e-9)
	assert.NotEmpty(t, first.LineChecksum)

	// Identical source lines hash identically; distinct lines do not.
	assert.NotEqual(t, advisories[0].LineChecksum, advisories[1].LineChecksum)
}

func TestADTAdapterRejectsMajorityBadFile(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	sb.WriteString("2025OCT18 034000  2.0 1004.6  30.0  2.0 2.0 2.0  NO LIMIT  OFF  OFF  OFF  OFF  -5.96 -37.81  CRVBND   N/A    N/A   14.25 -126.75  ARCHER   HIM-8 23.2\n")

	for range 3 {
		sb.WriteString("garbage a b c d e f g h i j k l m n o p q r s\n")
	}

	adapter := &ingest.ADTAdapter{}

	_, report, err := adapter.Parse([]byte(sb.String()))
	require.ErrorIs(t, err, ingest.ErrTooManyBadLines)
	assert.Equal(t, 4, report.DataLines)
	assert.Equal(t, 3, report.SkippedCount())
}

func TestADTAdapterEmptyFile(t *testing.T) {
	t.Parallel()

	adapter := &ingest.ADTAdapter{}

	advisories, report, err := adapter.Parse([]byte("\n\n# only comments\n"))
	require.NoError(t, err)
	assert.Empty(t, advisories)
	assert.Zero(t, report.DataLines)
}
