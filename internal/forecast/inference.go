package forecast

import (
	"math"

	"github.com/stormtrack/stormtrack/internal/model"
)

// galeThresholdKt is the minimum intensity for any 34 kt wind field.
const galeThresholdKt = 34

// asymmetrySpeedDivisor and asymmetrySpeedCap bound the forward-speed factor
// applied to quadrant multipliers.
const (
	asymmetrySpeedDivisor = 20.0
	asymmetrySpeedCap     = 1.5
)

// powerLaw holds one radius-intensity curve R = a·Vmax^b + c, radius in
// nautical miles.
type powerLaw struct {
	a, b, c float64
}

// radiusCurves are per-basin empirical radius-intensity curves for the 34,
// 50, and 64 kt thresholds.
var radiusCurves = map[model.Basin]map[float64]powerLaw{
	model.BasinWestPacific: {
		34: {0.45, 1.2, 20},
		50: {0.30, 1.3, 10},
		64: {0.20, 1.4, 5},
	},
	model.BasinEastPacific: {
		34: {0.40, 1.25, 25},
		50: {0.28, 1.35, 12},
		64: {0.18, 1.45, 6},
	},
	// Central Pacific systems follow the East Pacific climatology.
	model.BasinCentralPacific: {
		34: {0.40, 1.25, 25},
		50: {0.28, 1.35, 12},
		64: {0.18, 1.45, 6},
	},
	model.BasinSouthern: {
		34: {0.42, 1.22, 22},
		50: {0.29, 1.32, 11},
		64: {0.19, 1.42, 5},
	},
	model.BasinIndianOcean: {
		34: {0.43, 1.23, 23},
		50: {0.29, 1.33, 11},
		64: {0.19, 1.43, 5},
	},
	model.BasinAtlantic: {
		34: {0.38, 1.28, 28},
		50: {0.26, 1.38, 14},
		64: {0.17, 1.48, 7},
	},
}

// quadrantAsymmetry gives the per-quadrant multiplier slope in the motion
// frame: right-front enhanced, left-rear reduced.
var quadrantAsymmetry = map[model.Quadrant]float64{
	model.QuadrantNE: 0.3,
	model.QuadrantNW: 0.1,
	model.QuadrantSE: -0.1,
	model.QuadrantSW: -0.2,
}

// InferRadii derives quadrant wind radii from intensity using the basin's
// radius-intensity curve, with a forward-speed asymmetry adjustment when the
// speed is known. Returns nil below gale intensity. Unknown basins use the
// West Pacific curves.
func InferRadii(vmaxKt float64, basin model.Basin, forwardSpeedKt *float64) model.QuadrantRadii {
	if vmaxKt < galeThresholdKt {
		return nil
	}

	curves, ok := radiusCurves[basin]
	if !ok {
		curves = radiusCurves[model.BasinWestPacific]
	}

	base := make(map[float64]float64)

	for _, threshold := range []float64{34, 50, 64} {
		if vmaxKt < threshold {
			continue
		}

		curve := curves[threshold]
		base[threshold] = math.Max(curve.a*math.Pow(vmaxKt, curve.b)+curve.c, 0)
	}

	speedFactor := 0.0
	if forwardSpeedKt != nil && *forwardSpeedKt > 0 {
		speedFactor = math.Min(*forwardSpeedKt/asymmetrySpeedDivisor, asymmetrySpeedCap)
	}

	radii := make(model.QuadrantRadii, len(model.Quadrants))

	for _, quadrant := range model.Quadrants {
		multiplier := 1 + quadrantAsymmetry[quadrant]*speedFactor

		var entry model.WindRadii

		if r, has := base[34]; has {
			v := r * multiplier
			entry.R34NM = &v
		}

		if r, has := base[50]; has {
			v := r * multiplier
			entry.R50NM = &v
		}

		if r, has := base[64]; has {
			v := r * multiplier
			entry.R64NM = &v
		}

		radii[quadrant] = entry
	}

	return radii
}
