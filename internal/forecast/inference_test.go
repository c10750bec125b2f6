package forecast_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stormtrack/stormtrack/internal/forecast"
	"github.com/stormtrack/stormtrack/internal/model"
)

func TestInferRadiiBelowGale(t *testing.T) {
	t.Parallel()

	assert.Nil(t, forecast.InferRadii(30, model.BasinWestPacific, nil))
}

func TestInferRadiiSymmetricWithoutSpeed(t *testing.T) {
	t.Parallel()

	radii := forecast.InferRadii(75, model.BasinWestPacific, nil)
	require.NotNil(t, radii)

	// Without forward speed, every quadrant carries the same base radii.
	ne := radii[model.QuadrantNE]
	sw := radii[model.QuadrantSW]

	require.NotNil(t, ne.R34NM)
	require.NotNil(t, sw.R34NM)
	assert.InDelta(t, *ne.R34NM, *sw.R34NM, 1e-9)

	// R34 = 0.45 * 75^1.2 + 20 for the West Pacific.
	want := 0.45*math.Pow(75, 1.2) + 20
	assert.InDelta(t, want, *ne.R34NM, 1e-9)

	// 75 kt exceeds all three thresholds.
	require.NotNil(t, ne.R50NM)
	require.NotNil(t, ne.R64NM)
	assert.True(t, radii.Nested())
}

func TestInferRadiiThresholdGating(t *testing.T) {
	t.Parallel()

	radii := forecast.InferRadii(55, model.BasinAtlantic, nil)
	require.NotNil(t, radii)

	ne := radii[model.QuadrantNE]
	assert.NotNil(t, ne.R34NM)
	assert.NotNil(t, ne.R50NM)
	assert.Nil(t, ne.R64NM)
}

func TestInferRadiiAsymmetry(t *testing.T) {
	t.Parallel()

	speed := 10.0
	radii := forecast.InferRadii(80, model.BasinWestPacific, &speed)
	require.NotNil(t, radii)

	base := 0.45*math.Pow(80, 1.2) + 20
	factor := speed / 20.0

	ne := radii[model.QuadrantNE]
	nw := radii[model.QuadrantNW]
	se := radii[model.QuadrantSE]
	sw := radii[model.QuadrantSW]

	require.NotNil(t, ne.R34NM)
	assert.InDelta(t, base*(1+0.3*factor), *ne.R34NM, 1e-9)
	assert.InDelta(t, base*(1+0.1*factor), *nw.R34NM, 1e-9)
	assert.InDelta(t, base*(1-0.1*factor), *se.R34NM, 1e-9)
	assert.InDelta(t, base*(1-0.2*factor), *sw.R34NM, 1e-9)

	// Right-front is the largest quadrant, left-rear the smallest.
	assert.Greater(t, *ne.R34NM, *nw.R34NM)
	assert.Greater(t, *se.R34NM, *sw.R34NM)
}

func TestInferRadiiSpeedFactorCapped(t *testing.T) {
	t.Parallel()

	fast := 60.0
	radii := forecast.InferRadii(80, model.BasinWestPacific, &fast)
	require.NotNil(t, radii)

	base := 0.45*math.Pow(80, 1.2) + 20

	// 60 kt forward speed caps the factor at 1.5.
	ne := radii[model.QuadrantNE]
	assert.InDelta(t, base*(1+0.3*1.5), *ne.R34NM, 1e-9)
}

func TestInferRadiiCentralPacificMatchesEastPacific(t *testing.T) {
	t.Parallel()

	cp := forecast.InferRadii(75, model.BasinCentralPacific, nil)
	ep := forecast.InferRadii(75, model.BasinEastPacific, nil)

	require.NotNil(t, cp)
	require.NotNil(t, cp[model.QuadrantNE].R34NM)
	assert.InDelta(t, *ep[model.QuadrantNE].R34NM, *cp[model.QuadrantNE].R34NM, 1e-9)

	// The CP curve must not be the West Pacific fallback.
	wp := forecast.InferRadii(75, model.BasinWestPacific, nil)
	assert.Greater(t, math.Abs(*wp[model.QuadrantNE].R34NM-*cp[model.QuadrantNE].R34NM), 1e-9)
}

func TestInferRadiiUnknownBasinFallsBack(t *testing.T) {
	t.Parallel()

	unknown := forecast.InferRadii(75, model.Basin("XX"), nil)
	wp := forecast.InferRadii(75, model.BasinWestPacific, nil)

	require.NotNil(t, unknown)
	assert.InDelta(t, *wp[model.QuadrantNE].R34NM, *unknown[model.QuadrantNE].R34NM, 1e-9)
}
