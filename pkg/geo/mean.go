package geo

import "math"

// SphericalMean returns the mean position of a set of points, computed as the
// normalized Cartesian sum on the unit sphere. It is stable across the
// antimeridian and near the poles. Returns (0, 0, false) for an empty input.
func SphericalMean(points [][2]float64) (lat, lon float64, ok bool) {
	if len(points) == 0 {
		return 0, 0, false
	}

	if len(points) == 1 {
		return points[0][0], points[0][1], true
	}

	var x, y, z float64

	for _, p := range points {
		sinLat, cosLat := math.Sincos(degToRad(p[0]))
		sinLon, cosLon := math.Sincos(degToRad(p[1]))

		x += cosLat * cosLon
		y += cosLat * sinLon
		z += sinLat
	}

	n := float64(len(points))
	x /= n
	y /= n
	z /= n

	lon = radToDeg(math.Atan2(y, x))
	lat = radToDeg(math.Atan2(z, math.Hypot(x, y)))

	return lat, lon, true
}
