package ingest

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Sentinel errors shared by the history adapters.
var (
	// ErrBadTimestamp indicates an unparseable datetime token.
	ErrBadTimestamp = errors.New("bad timestamp")
	// ErrBadCoordinate indicates an unparseable or out-of-range lat/lon.
	ErrBadCoordinate = errors.New("bad coordinate")
	// ErrNoNumber indicates a token carrying no numeric value.
	ErrNoNumber = errors.New("no numeric value")
	// ErrBadMotion indicates an unparseable motion bearing.
	ErrBadMotion = errors.New("bad motion bearing")
)

var (
	numberRe    = regexp.MustCompile(`[-+]?\d*\.?\d+`)
	timestampRe = strings.NewReplacer("-", "", "/", "", ":", "", " ", "", "T", "")
)

// monthsByAbbrev maps upstream three-letter month abbreviations.
var monthsByAbbrev = map[string]time.Month{
	"JAN": time.January, "FEB": time.February, "MAR": time.March,
	"APR": time.April, "MAY": time.May, "JUN": time.June,
	"JUL": time.July, "AUG": time.August, "SEP": time.September,
	"OCT": time.October, "NOV": time.November, "DEC": time.December,
}

// cardinalBearings maps the 16 compass points onto degrees.
var cardinalBearings = map[string]float64{
	"N": 0, "NNE": 22.5, "NE": 45, "ENE": 67.5,
	"E": 90, "ESE": 112.5, "SE": 135, "SSE": 157.5,
	"S": 180, "SSW": 202.5, "SW": 225, "WSW": 247.5,
	"W": 270, "WNW": 292.5, "NW": 315, "NNW": 337.5,
}

// ParseTimestamp parses a compact UTC datetime. Separators (-, /, :, space, T)
// are stripped first; the remainder must be YYYYMMDDHHMM or YYYYMMDDHHMMSS.
func ParseTimestamp(token string) (time.Time, error) {
	compact := timestampRe.Replace(strings.TrimSpace(token))

	var layout string

	switch len(compact) {
	case 12:
		layout = "200601021504"
	case 14:
		layout = "20060102150405"
	default:
		return time.Time{}, fmt.Errorf("%w: %q", ErrBadTimestamp, token)
	}

	ts, err := time.ParseInLocation(layout, compact, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrBadTimestamp, token)
	}

	return ts, nil
}

// ParseMonthDate parses the upstream date+time pair: date as YYYYmonDD with a
// three-letter month abbreviation, time as HHMMSS.
func ParseMonthDate(dateToken, timeToken string) (time.Time, error) {
	if len(dateToken) != 9 || len(timeToken) != 6 {
		return time.Time{}, fmt.Errorf("%w: %q %q", ErrBadTimestamp, dateToken, timeToken)
	}

	year, yearErr := strconv.Atoi(dateToken[:4])
	day, dayErr := strconv.Atoi(dateToken[7:9])

	if yearErr != nil || dayErr != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrBadTimestamp, dateToken)
	}

	month, ok := monthsByAbbrev[strings.ToUpper(dateToken[4:7])]
	if !ok {
		return time.Time{}, fmt.Errorf("%w: unknown month in %q", ErrBadTimestamp, dateToken)
	}

	hour, hourErr := strconv.Atoi(timeToken[0:2])
	minute, minErr := strconv.Atoi(timeToken[2:4])
	second, secErr := strconv.Atoi(timeToken[4:6])

	if hourErr != nil || minErr != nil || secErr != nil || hour > 23 || minute > 59 || second > 59 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrBadTimestamp, timeToken)
	}

	return time.Date(year, month, day, hour, minute, second, 0, time.UTC), nil
}

// ParseLatLon parses a coordinate pair in decimal or hemisphere-suffixed form
// ("12.5N", "-125.3") and validates ranges.
func ParseLatLon(latToken, lonToken string) (lat, lon float64, err error) {
	lat, err = parseCoordinate(latToken, "S", "N", 90)
	if err != nil {
		return 0, 0, err
	}

	lon, err = parseCoordinate(lonToken, "W", "E", 180)
	if err != nil {
		return 0, 0, err
	}

	return lat, lon, nil
}

func parseCoordinate(token, negSuffix, posSuffix string, limit float64) (float64, error) {
	match := numberRe.FindString(token)
	if match == "" {
		return 0, fmt.Errorf("%w: %q", ErrBadCoordinate, token)
	}

	value, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadCoordinate, token)
	}

	upper := strings.ToUpper(token)

	switch {
	case strings.Contains(upper, negSuffix):
		value = -abs(value)
	case strings.Contains(upper, posSuffix):
		value = abs(value)
	}

	if value < -limit || value > limit {
		return 0, fmt.Errorf("%w: %q out of range", ErrBadCoordinate, token)
	}

	return value, nil
}

// FirstNumber extracts the first numeric value from a token.
func FirstNumber(token string) (float64, error) {
	match := numberRe.FindString(token)
	if match == "" {
		return 0, fmt.Errorf("%w: %q", ErrNoNumber, token)
	}

	value, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrNoNumber, token)
	}

	return value, nil
}

// ParseMotion parses a motion heading: a numeric bearing in degrees or one of
// the 16 compass points.
func ParseMotion(token string) (float64, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(token))

	if bearing, ok := cardinalBearings[trimmed]; ok {
		return bearing, nil
	}

	bearing, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || bearing < 0 || bearing >= 360 {
		return 0, fmt.Errorf("%w: %q", ErrBadMotion, token)
	}

	return bearing, nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}

	return v
}
