package zones

import (
	"fmt"
	"math"

	"github.com/engelsjk/polygol"
	"github.com/paulmach/orb"

	"github.com/stormtrack/stormtrack/pkg/geo"
)

// circleSegments is the vertex count of the discs approximating round buffer
// caps and joins.
const circleSegments = 32

// erodePadFactor sizes the complement universe around a geometry relative to
// the erosion radius.
const erodePadFactor = 4

// bufferLineKm buffers a projected polyline by r kilometers: the union of a
// rectangle per edge and a disc per vertex.
func bufferLineKm(points [][2]float64, r float64) (polygol.Geom, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("empty line")
	}

	result := ringToPoly(circleRing(points[0][0], points[0][1], r))

	for i, p := range points[1:] {
		var err error

		result, err = polygol.Union(result, ringToPoly(circleRing(p[0], p[1], r)))
		if err != nil {
			return nil, fmt.Errorf("union vertex disc: %w", err)
		}

		rect := edgeRect(points[i][0], points[i][1], p[0], p[1], r)
		if rect != nil {
			result, err = polygol.Union(result, ringToPoly(rect))
			if err != nil {
				return nil, fmt.Errorf("union edge rectangle: %w", err)
			}
		}
	}

	return result, nil
}

// dilate grows a projected geometry by r kilometers: the union of the
// geometry with edge rectangles and vertex discs along every ring.
func dilate(g polygol.Geom, r float64) (polygol.Geom, error) {
	result := g

	for _, poly := range g {
		for _, ring := range poly {
			for i := 1; i < len(ring); i++ {
				var err error

				result, err = polygol.Union(result,
					ringToPoly(circleRing(ring[i][0], ring[i][1], r)))
				if err != nil {
					return nil, fmt.Errorf("dilate vertex: %w", err)
				}

				rect := edgeRect(ring[i-1][0], ring[i-1][1], ring[i][0], ring[i][1], r)
				if rect == nil {
					continue
				}

				result, err = polygol.Union(result, ringToPoly(rect))
				if err != nil {
					return nil, fmt.Errorf("dilate edge: %w", err)
				}
			}
		}
	}

	return result, nil
}

// erode shrinks a projected geometry by r kilometers using the complement
// identity erode(P, r) = U \ dilate(U \ P, r) over a padded bounding box U.
func erode(g polygol.Geom, r float64) (polygol.Geom, error) {
	if len(g) == 0 {
		return g, nil
	}

	universe := boundingUniverse(g, r*erodePadFactor)

	complement, err := polygol.Difference(universe, g)
	if err != nil {
		return nil, fmt.Errorf("complement: %w", err)
	}

	grown, err := dilate(complement, r)
	if err != nil {
		return nil, fmt.Errorf("dilate complement: %w", err)
	}

	result, err := polygol.Difference(universe, grown)
	if err != nil {
		return nil, fmt.Errorf("invert complement: %w", err)
	}

	return result, nil
}

// closeGaps applies morphological closing: dilate then erode by the same
// radius, welding parts closer than 2r together.
func closeGaps(g polygol.Geom, r float64) (polygol.Geom, error) {
	grown, err := dilate(g, r)
	if err != nil {
		return nil, err
	}

	return erode(grown, r)
}

// circleRing builds a closed ring approximating a disc.
func circleRing(cx, cy, r float64) [][]float64 {
	ring := make([][]float64, 0, circleSegments+1)

	for i := range circleSegments {
		angle := 2 * math.Pi * float64(i) / float64(circleSegments)
		ring = append(ring, []float64{cx + r*math.Cos(angle), cy + r*math.Sin(angle)})
	}

	ring = append(ring, append([]float64{}, ring[0]...))

	return ring
}

// edgeRect builds the closed rectangle of half-width r along one edge, or nil
// for a degenerate edge.
func edgeRect(x1, y1, x2, y2, r float64) [][]float64 {
	dx, dy := x2-x1, y2-y1

	length := math.Hypot(dx, dy)
	if length == 0 {
		return nil
	}

	nx, ny := -dy/length*r, dx/length*r

	return [][]float64{
		{x1 + nx, y1 + ny},
		{x2 + nx, y2 + ny},
		{x2 - nx, y2 - ny},
		{x1 - nx, y1 - ny},
		{x1 + nx, y1 + ny},
	}
}

// boundingUniverse returns a single-polygon Geom covering g padded by pad.
func boundingUniverse(g polygol.Geom, pad float64) polygol.Geom {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)

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

	return ringToPoly([][]float64{
		{minX - pad, minY - pad},
		{maxX + pad, minY - pad},
		{maxX + pad, maxY + pad},
		{minX - pad, maxY + pad},
		{minX - pad, minY - pad},
	})
}

func ringToPoly(ring [][]float64) polygol.Geom {
	return polygol.Geom{{ring}}
}

// toMultiPolygon reprojects a planar Geom back to WGS84.
func toMultiPolygon(g polygol.Geom, proj *geo.Projection) orb.MultiPolygon {
	mp := make(orb.MultiPolygon, 0, len(g))

	for _, poly := range g {
		rings := make(orb.Polygon, 0, len(poly))

		for _, ring := range poly {
			out := make(orb.Ring, 0, len(ring))

			for _, pt := range ring {
				lat, lon := proj.Inverse(pt[0], pt[1])
				out = append(out, orb.Point{lon, lat})
			}

			rings = append(rings, out)
		}

		mp = append(mp, rings)
	}

	return mp
}

// chaikin applies one corner-cutting pass to a closed ring.
func chaikin(ring orb.Ring) orb.Ring {
	if len(ring) < 4 {
		return ring
	}

	out := make(orb.Ring, 0, 2*len(ring))

	for i := 0; i < len(ring)-1; i++ {
		p1, p2 := ring[i], ring[i+1]

		out = append(out,
			orb.Point{0.75*p1[0] + 0.25*p2[0], 0.75*p1[1] + 0.25*p2[1]},
			orb.Point{0.25*p1[0] + 0.75*p2[0], 0.25*p1[1] + 0.75*p2[1]},
		)
	}

	out = append(out, out[0])

	return out
}

// smooth applies n Chaikin iterations to every ring of a multipolygon.
func smooth(mp orb.MultiPolygon, iterations int) orb.MultiPolygon {
	out := make(orb.MultiPolygon, len(mp))

	for pi, poly := range mp {
		rings := make(orb.Polygon, len(poly))

		for ri, ring := range poly {
			smoothed := ring
			for range iterations {
				smoothed = chaikin(smoothed)
			}

			rings[ri] = smoothed
		}

		out[pi] = rings
	}

	return out
}
