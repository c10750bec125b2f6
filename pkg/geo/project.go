package geo

import "math"

// Projection is a local metric projection centered on a reference point,
// used for buffer construction and polygon boolean operations. Coordinates
// are in kilometers east/north of the center. Accuracy degrades with distance
// from the center; zone geometry stays within a few hundred kilometers of the
// track, well inside the sub-nautical-mile tolerance of the pipeline.
type Projection struct {
	lat0    float64
	lon0    float64
	cosLat0 float64
}

// kmPerDegree is the meridional kilometers per degree of latitude on the
// mean sphere.
const kmPerDegree = MeanEarthRadiusKm * math.Pi / 180.0

// NewProjection creates a local projection centered on (lat, lon).
func NewProjection(lat, lon float64) *Projection {
	return &Projection{
		lat0:    lat,
		lon0:    lon,
		cosLat0: math.Cos(degToRad(lat)),
	}
}

// Forward projects a WGS84 position to local (x, y) kilometers.
func (p *Projection) Forward(lat, lon float64) (x, y float64) {
	dLon := NormalizeLon(lon - p.lon0)

	x = dLon * kmPerDegree * p.cosLat0
	y = (lat - p.lat0) * kmPerDegree

	return x, y
}

// Inverse converts local (x, y) kilometers back to a WGS84 position.
func (p *Projection) Inverse(x, y float64) (lat, lon float64) {
	lat = p.lat0 + y/kmPerDegree
	lon = NormalizeLon(p.lon0 + x/(kmPerDegree*p.cosLat0))

	return lat, lon
}
