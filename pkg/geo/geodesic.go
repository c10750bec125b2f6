// Package geo provides WGS84 geodesic primitives: distances, bearings,
// destinations, track interpolation, spherical means, and a local metric
// projection for buffer construction.
//
// The distance primitive sits on the hot path of zone generation
// (called once per advisory × forecast point) and is allocation-free.
package geo

import "math"

// WGS84 ellipsoid parameters.
const (
	// SemiMajorAxisM is the WGS84 equatorial radius in meters.
	SemiMajorAxisM = 6378137.0
	// Flattening is the WGS84 flattening.
	Flattening = 1.0 / 298.257223563
	// SemiMinorAxisM is the WGS84 polar radius in meters.
	SemiMinorAxisM = SemiMajorAxisM * (1.0 - Flattening)
)

// MeanEarthRadiusKm is the mean Earth radius, used by the spherical fallback
// and the local projection.
const MeanEarthRadiusKm = 6371.0

// vincentyMaxIterations bounds the inverse-problem convergence loop.
// Near-antipodal pairs may not converge; the spherical fallback handles them.
const vincentyMaxIterations = 200

// vincentyTolerance is the convergence threshold for the longitude difference
// iteration, in radians (~0.06 mm on the equator).
const vincentyTolerance = 1e-12

// degToRad converts degrees to radians.
func degToRad(deg float64) float64 { return deg * math.Pi / 180.0 }

// radToDeg converts radians to degrees.
func radToDeg(rad float64) float64 { return rad * 180.0 / math.Pi }

// DistanceKm returns the geodesic distance between two points in kilometers.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	distM, _ := inverse(lat1, lon1, lat2, lon2)

	return distM / 1000.0
}

// BearingDeg returns the initial geodesic bearing from point 1 to point 2,
// normalized into [0, 360).
func BearingDeg(lat1, lon1, lat2, lon2 float64) float64 {
	_, azi := inverse(lat1, lon1, lat2, lon2)

	deg := radToDeg(azi)
	if deg < 0 {
		deg += 360.0
	}

	return math.Mod(deg, 360.0)
}

// Destination returns the point reached by travelling distKm kilometers from
// (lat, lon) along the given initial bearing.
func Destination(lat, lon, bearingDeg, distKm float64) (destLat, destLon float64) {
	return direct(lat, lon, degToRad(bearingDeg), distKm*1000.0)
}

// Interpolate returns the point at fraction f (in [0, 1]) along the geodesic
// from point 1 to point 2.
func Interpolate(lat1, lon1, lat2, lon2, f float64) (lat, lon float64) {
	if f <= 0 {
		return lat1, lon1
	}

	if f >= 1 {
		return lat2, lon2
	}

	distM, azi := inverse(lat1, lon1, lat2, lon2)

	return direct(lat1, lon1, azi, distM*f)
}

// inverse solves the inverse geodesic problem (Vincenty): distance in meters
// and initial azimuth in radians from point 1 to point 2.
func inverse(lat1, lon1, lat2, lon2 float64) (distM, azimuthRad float64) {
	if lat1 == lat2 && lon1 == lon2 {
		return 0, 0
	}

	phi1 := degToRad(lat1)
	phi2 := degToRad(lat2)
	deltaL := degToRad(lon2 - lon1)

	u1 := math.Atan((1 - Flattening) * math.Tan(phi1))
	u2 := math.Atan((1 - Flattening) * math.Tan(phi2))
	sinU1, cosU1 := math.Sincos(u1)
	sinU2, cosU2 := math.Sincos(u2)

	lambda := deltaL

	var (
		sinSigma, cosSigma, sigma     float64
		sinAlpha, cosSqAlpha, cos2Sig float64
		converged                     bool
	)

	for range vincentyMaxIterations {
		sinLambda, cosLambda := math.Sincos(lambda)
		sinSigma = math.Hypot(cosU2*sinLambda, cosU1*sinU2-sinU1*cosU2*cosLambda)

		if sinSigma == 0 {
			return 0, 0 // Coincident points.
		}

		cosSigma = sinU1*sinU2 + cosU1*cosU2*cosLambda
		sigma = math.Atan2(sinSigma, cosSigma)
		sinAlpha = cosU1 * cosU2 * sinLambda / sinSigma
		cosSqAlpha = 1 - sinAlpha*sinAlpha

		if cosSqAlpha == 0 {
			cos2Sig = 0 // Equatorial line.
		} else {
			cos2Sig = cosSigma - 2*sinU1*sinU2/cosSqAlpha
		}

		c := Flattening / 16 * cosSqAlpha * (4 + Flattening*(4-3*cosSqAlpha))
		prev := lambda
		lambda = deltaL + (1-c)*Flattening*sinAlpha*
			(sigma+c*sinSigma*(cos2Sig+c*cosSigma*(-1+2*cos2Sig*cos2Sig)))

		if math.Abs(lambda-prev) < vincentyTolerance {
			converged = true

			break
		}
	}

	if !converged {
		return sphericalInverse(phi1, degToRad(lon1), phi2, degToRad(lon2))
	}

	uSq := cosSqAlpha * (SemiMajorAxisM*SemiMajorAxisM - SemiMinorAxisM*SemiMinorAxisM) /
		(SemiMinorAxisM * SemiMinorAxisM)
	a := 1 + uSq/16384*(4096+uSq*(-768+uSq*(320-175*uSq)))
	b := uSq / 1024 * (256 + uSq*(-128+uSq*(74-47*uSq)))
	deltaSigma := b * sinSigma * (cos2Sig + b/4*
		(cosSigma*(-1+2*cos2Sig*cos2Sig)-
			b/6*cos2Sig*(-3+4*sinSigma*sinSigma)*(-3+4*cos2Sig*cos2Sig)))

	distM = SemiMinorAxisM * a * (sigma - deltaSigma)

	sinLambda, cosLambda := math.Sincos(lambda)
	azimuthRad = math.Atan2(cosU2*sinLambda, cosU1*sinU2-sinU1*cosU2*cosLambda)

	return distM, azimuthRad
}

// sphericalInverse is the great-circle fallback for pairs where Vincenty does
// not converge (near-antipodal). Inputs in radians.
func sphericalInverse(phi1, lam1, phi2, lam2 float64) (distM, azimuthRad float64) {
	sinPhi1, cosPhi1 := math.Sincos(phi1)
	sinPhi2, cosPhi2 := math.Sincos(phi2)
	dLam := lam2 - lam1

	central := math.Acos(math.Min(1, math.Max(-1,
		sinPhi1*sinPhi2+cosPhi1*cosPhi2*math.Cos(dLam))))
	distM = central * MeanEarthRadiusKm * 1000.0
	azimuthRad = math.Atan2(math.Sin(dLam)*cosPhi2,
		cosPhi1*sinPhi2-sinPhi1*cosPhi2*math.Cos(dLam))

	return distM, azimuthRad
}

// direct solves the direct geodesic problem (Vincenty): the point distM
// meters from (lat, lon) along azimuthRad.
func direct(lat, lon, azimuthRad, distM float64) (destLat, destLon float64) {
	if distM == 0 {
		return lat, lon
	}

	phi1 := degToRad(lat)
	sinAlpha1, cosAlpha1 := math.Sincos(azimuthRad)

	tanU1 := (1 - Flattening) * math.Tan(phi1)
	cosU1 := 1 / math.Sqrt(1+tanU1*tanU1)
	sinU1 := tanU1 * cosU1

	sigma1 := math.Atan2(tanU1, cosAlpha1)
	sinAlpha := cosU1 * sinAlpha1
	cosSqAlpha := 1 - sinAlpha*sinAlpha
	uSq := cosSqAlpha * (SemiMajorAxisM*SemiMajorAxisM - SemiMinorAxisM*SemiMinorAxisM) /
		(SemiMinorAxisM * SemiMinorAxisM)
	a := 1 + uSq/16384*(4096+uSq*(-768+uSq*(320-175*uSq)))
	b := uSq / 1024 * (256 + uSq*(-128+uSq*(74-47*uSq)))

	sigma := distM / (SemiMinorAxisM * a)

	var sinSigma, cosSigma, cos2Sig float64

	for range vincentyMaxIterations {
		cos2Sig = math.Cos(2*sigma1 + sigma)
		sinSigma, cosSigma = math.Sincos(sigma)
		deltaSigma := b * sinSigma * (cos2Sig + b/4*
			(cosSigma*(-1+2*cos2Sig*cos2Sig)-
				b/6*cos2Sig*(-3+4*sinSigma*sinSigma)*(-3+4*cos2Sig*cos2Sig)))
		prev := sigma
		sigma = distM/(SemiMinorAxisM*a) + deltaSigma

		if math.Abs(sigma-prev) < vincentyTolerance {
			break
		}
	}

	tmp := sinU1*sinSigma - cosU1*cosSigma*cosAlpha1
	destPhi := math.Atan2(sinU1*cosSigma+cosU1*sinSigma*cosAlpha1,
		(1-Flattening)*math.Hypot(sinAlpha, tmp))
	lambda := math.Atan2(sinSigma*sinAlpha1, cosU1*cosSigma-sinU1*sinSigma*cosAlpha1)
	c := Flattening / 16 * cosSqAlpha * (4 + Flattening*(4-3*cosSqAlpha))
	deltaL := lambda - (1-c)*Flattening*sinAlpha*
		(sigma+c*sinSigma*(cos2Sig+c*cosSigma*(-1+2*cos2Sig*cos2Sig)))

	destLat = radToDeg(destPhi)
	destLon = NormalizeLon(lon + radToDeg(deltaL))

	return destLat, destLon
}

// NormalizeLon wraps a longitude into (-180, 180].
func NormalizeLon(lon float64) float64 {
	for lon <= -180 {
		lon += 360
	}

	for lon > 180 {
		lon -= 360
	}

	return lon
}
