// Package model defines the normalized entities shared across the pipeline:
// storms, advisories, wind radii, forecast points, and zones.
package model

// Basin identifies a tropical-cyclone basin.
type Basin string

// Known basins.
const (
	BasinWestPacific    Basin = "WP"
	BasinEastPacific    Basin = "EP"
	BasinAtlantic       Basin = "AL"
	BasinCentralPacific Basin = "CP"
	BasinSouthern       Basin = "SH"
	BasinIndianOcean    Basin = "IO"
)

// basinByCodeLetter maps the trailing letter of an upstream storm code to a
// basin. I, A and B all denote the Indian Ocean.
var basinByCodeLetter = map[byte]Basin{
	'W': BasinWestPacific,
	'E': BasinEastPacific,
	'S': BasinSouthern,
	'L': BasinAtlantic,
	'C': BasinCentralPacific,
	'I': BasinIndianOcean,
	'A': BasinIndianOcean,
	'B': BasinIndianOcean,
}

// BasinFromStormCode derives the basin from an upstream storm code such as
// "28W". Returns false when the trailing letter is not a known basin.
func BasinFromStormCode(code string) (Basin, bool) {
	if code == "" {
		return "", false
	}

	basin, ok := basinByCodeLetter[code[len(code)-1]]

	return basin, ok
}

// Valid reports whether the basin is one of the known codes.
func (b Basin) Valid() bool {
	switch b {
	case BasinWestPacific, BasinEastPacific, BasinAtlantic,
		BasinCentralPacific, BasinSouthern, BasinIndianOcean:
		return true
	default:
		return false
	}
}

// ADeckLetter returns the lowercase basin letter used in A-Deck file names
// (e.g. "wp" in awp282025.dat).
func (b Basin) ADeckLetter() string {
	switch b {
	case BasinWestPacific:
		return "wp"
	case BasinEastPacific:
		return "ep"
	case BasinAtlantic:
		return "al"
	case BasinCentralPacific:
		return "cp"
	case BasinSouthern:
		return "sh"
	case BasinIndianOcean:
		return "io"
	default:
		return ""
	}
}
