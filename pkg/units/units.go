// Package units provides marine unit conversions used across the pipeline.
package units

// KilometersPerNauticalMile is the exact definition of the nautical mile.
const KilometersPerNauticalMile = 1.852

// MetersPerKilometer is the number of meters in a kilometer.
const MetersPerKilometer = 1000.0

// HoursPerDay is the number of hours in a day.
const HoursPerDay = 24

// NauticalMilesToKilometers converts a distance in nautical miles to kilometers.
func NauticalMilesToKilometers(nm float64) float64 {
	return nm * KilometersPerNauticalMile
}

// KilometersToNauticalMiles converts a distance in kilometers to nautical miles.
func KilometersToNauticalMiles(km float64) float64 {
	return km / KilometersPerNauticalMile
}

// KnotsToKmPerHour converts a speed in knots to kilometers per hour.
// One knot is one nautical mile per hour.
func KnotsToKmPerHour(kt float64) float64 {
	return kt * KilometersPerNauticalMile
}
