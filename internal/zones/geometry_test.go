package zones

import (
	"math"
	"testing"

	"github.com/engelsjk/polygol"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stormtrack/stormtrack/pkg/geo"
)

func geomBounds(g polygol.Geom) (minX, minY, maxX, maxY float64) {
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)

	for _, poly := range g {
		for _, ring := range poly {
			for _, pt := range ring {
				minX = math.Min(minX, pt[0])
				minY = math.Min(minY, pt[1])
				maxX = math.Max(maxX, pt[0])
				maxY = math.Max(maxY, pt[1])
			}
		}
	}

	return minX, minY, maxX, maxY
}

func TestBufferLineKmExtents(t *testing.T) {
	t.Parallel()

	line := [][2]float64{{0, 0}, {100, 0}}

	buffered, err := bufferLineKm(line, 25)
	require.NoError(t, err)
	require.NotEmpty(t, buffered)

	minX, minY, maxX, maxY := geomBounds(buffered)

	assert.InDelta(t, -25, minX, 1)
	assert.InDelta(t, 125, maxX, 1)
	assert.InDelta(t, -25, minY, 1)
	assert.InDelta(t, 25, maxY, 1)
}

func TestBufferLineKmEmptyLine(t *testing.T) {
	t.Parallel()

	_, err := bufferLineKm(nil, 25)
	assert.Error(t, err)
}

func TestDilateGrowsAndErodeShrinks(t *testing.T) {
	t.Parallel()

	square := ringToPoly([][]float64{
		{0, 0}, {100, 0}, {100, 100}, {0, 100}, {0, 0},
	})

	grown, err := dilate(square, 10)
	require.NoError(t, err)

	minX, minY, maxX, maxY := geomBounds(grown)
	assert.Less(t, minX, -9.0)
	assert.Less(t, minY, -9.0)
	assert.Greater(t, maxX, 109.0)
	assert.Greater(t, maxY, 109.0)

	shrunk, err := erode(square, 10)
	require.NoError(t, err)
	require.NotEmpty(t, shrunk)

	minX, minY, maxX, maxY = geomBounds(shrunk)
	assert.Greater(t, minX, 8.0)
	assert.Greater(t, minY, 8.0)
	assert.Less(t, maxX, 92.0)
	assert.Less(t, maxY, 92.0)
}

func TestCloseGapsWeldsNearbyParts(t *testing.T) {
	t.Parallel()

	// Two discs of radius 10 whose centers sit 50 km apart leave a 30 km
	// gap, inside the 2r weld reach of a 20 km closing.
	left := ringToPoly(circleRing(0, 0, 10))
	right := ringToPoly(circleRing(50, 0, 10))

	both, err := polygol.Union(left, right)
	require.NoError(t, err)
	require.Len(t, both, 2)

	closed, err := closeGaps(both, 20)
	require.NoError(t, err)

	assert.Len(t, closed, 1)
}

func TestCircleRingClosed(t *testing.T) {
	t.Parallel()

	ring := circleRing(5, -3, 7)

	require.Len(t, ring, circleSegments+1)
	assert.Equal(t, ring[0], ring[len(ring)-1])

	for _, pt := range ring {
		assert.InDelta(t, 7, math.Hypot(pt[0]-5, pt[1]+3), 1e-9)
	}
}

func TestEdgeRectDegenerate(t *testing.T) {
	t.Parallel()

	assert.Nil(t, edgeRect(3, 3, 3, 3, 10))
	assert.Len(t, edgeRect(0, 0, 10, 0, 5), 5)
}

func TestChaikinRoundsCorners(t *testing.T) {
	t.Parallel()

	square := orb.Ring{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}

	cut := chaikin(square)

	require.Len(t, cut, 2*(len(square)-1)+1)
	assert.Equal(t, cut[0], cut[len(cut)-1])

	// The original corner at (10, 0) is cut away.
	for _, pt := range cut {
		assert.False(t, pt[0] == 10 && pt[1] == 0)
	}
}

func TestChaikinShortRingUntouched(t *testing.T) {
	t.Parallel()

	tiny := orb.Ring{{0, 0}, {1, 1}, {0, 0}}

	assert.Equal(t, tiny, chaikin(tiny))
}

func TestSmoothPreservesStructure(t *testing.T) {
	t.Parallel()

	mp := orb.MultiPolygon{
		{orb.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}},
	}

	out := smooth(mp, 2)

	require.Len(t, out, 1)
	require.Len(t, out[0], 1)
	assert.Greater(t, len(out[0][0]), len(mp[0][0]))
}

func TestToMultiPolygonRoundTrip(t *testing.T) {
	t.Parallel()

	proj := geo.NewProjection(15, 125)

	g := ringToPoly([][]float64{
		{0, 0}, {50, 0}, {50, 50}, {0, 50}, {0, 0},
	})

	mp := toMultiPolygon(g, proj)

	require.Len(t, mp, 1)
	require.Len(t, mp[0], 1)

	origin := mp[0][0][0]
	assert.InDelta(t, 125, origin[0], 1e-6)
	assert.InDelta(t, 15, origin[1], 1e-6)
}
