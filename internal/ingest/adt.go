package ingest

import (
	"strings"
)

// adtMinColumns is the minimum token count of a real ADT data row.
const adtMinColumns = 20

// Fixed column positions in an ADT history row. Latitude and longitude are
// addressed from the end of the row because the middle columns vary.
const (
	adtColDate     = 0
	adtColTime     = 1
	adtColPressure = 3
	adtColVmax     = 4
	adtColLatBack  = 5
	adtColLonBack  = 4
)

// ADTAdapter parses the free-format `*-list.txt` history file. The upstream
// layout is loose: header and separator lines are interleaved with data rows,
// and column count varies with the analysis method.
type ADTAdapter struct{}

// Parse implements Adapter.
func (a *ADTAdapter) Parse(content []byte) ([]ParsedAdvisory, Report, error) {
	var (
		advisories []ParsedAdvisory
		report     Report
	)

	for num, raw := range strings.Split(string(content), "\n") {
		line := strings.TrimSpace(raw)

		if line == "" || strings.HasPrefix(line, "#") || isADTHeader(line) {
			continue
		}

		report.DataLines++

		advisory, reason := parseADTLine(line)
		if reason != "" {
			report.Skipped = append(report.Skipped, SkippedLine{Number: num + 1, Reason: reason})

			continue
		}

		advisories = append(advisories, advisory)
	}

	if err := rejectIfMajorityBad(report); err != nil {
		return nil, report, err
	}

	return advisories, report, nil
}

// isADTHeader reports whether a line is part of the decorative file header.
func isADTHeader(line string) bool {
	if strings.Contains(line, "ADT") && strings.Contains(line, "LIST") {
		return true
	}

	if strings.Contains(line, "=====") {
		return true
	}

	return strings.Contains(line, "Time") ||
		strings.Contains(line, "Date") ||
		strings.Contains(line, "UTC")
}

func parseADTLine(line string) (ParsedAdvisory, string) {
	parts := strings.Fields(line)
	if len(parts) < adtMinColumns {
		return ParsedAdvisory{}, "short row"
	}

	ts, tsErr := ParseMonthDate(parts[adtColDate], parts[adtColTime])
	if tsErr != nil {
		return ParsedAdvisory{}, "bad timestamp"
	}

	pressure, pressureErr := FirstNumber(parts[adtColPressure])
	vmax, vmaxErr := FirstNumber(parts[adtColVmax])

	lat, lon, coordErr := ParseLatLon(parts[len(parts)-adtColLatBack], parts[len(parts)-adtColLonBack])
	if coordErr != nil {
		return ParsedAdvisory{}, "bad coordinates"
	}

	advisory := ParsedAdvisory{
		TimestampUTC: ts,
		Latitude:     lat,
		Longitude:    lon,
		LineChecksum: LineChecksum(line),
	}

	if pressureErr == nil {
		advisory.MslpHpa = &pressure
	}

	if vmaxErr == nil {
		advisory.VmaxKt = &vmax
	}

	return advisory, ""
}
