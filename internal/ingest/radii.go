package ingest

import (
	"strconv"
	"strings"
	"time"

	"github.com/stormtrack/stormtrack/internal/model"
)

// radiiMatchWindow is how far a radii record may sit from an advisory
// timestamp and still be attached to it.
const radiiMatchWindow = 3 * time.Hour

// radiiMinColumns is the minimum token count of a radii data row after pipe
// separators are removed: date, time, lat, lon, vmax, temp, then 12 radii.
const radiiMinColumns = 18

// radiiFirstColumn is the index of R34-NE after pipe removal.
const radiiFirstColumn = 6

// RadiiRecord is one timestamped set of quadrant wind radii.
type RadiiRecord struct {
	TimestampUTC time.Time
	Radii        model.QuadrantRadii
}

// ParseRadiiFile parses the space-delimited wind-radii companion file. Pipe
// separators are stripped before column addressing. Non-positive and
// non-numeric radii are treated as missing.
func ParseRadiiFile(content []byte) ([]RadiiRecord, Report) {
	var (
		records []RadiiRecord
		report  Report
	)

	for num, raw := range strings.Split(string(content), "\n") {
		line := strings.TrimSpace(raw)

		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "Date") {
			continue
		}

		report.DataLines++

		record, reason := parseRadiiLine(line)
		if reason != "" {
			report.Skipped = append(report.Skipped, SkippedLine{Number: num + 1, Reason: reason})

			continue
		}

		records = append(records, record)
	}

	return records, report
}

func parseRadiiLine(line string) (RadiiRecord, string) {
	parts := make([]string, 0, radiiMinColumns)

	for _, token := range strings.Fields(line) {
		if token != "|" {
			parts = append(parts, token)
		}
	}

	if len(parts) < radiiMinColumns {
		return RadiiRecord{}, "short row"
	}

	ts, tsErr := ParseMonthDate(parts[0], parts[1])
	if tsErr != nil {
		return RadiiRecord{}, "bad timestamp"
	}

	// Column order per threshold: NE, SE, SW, NW for 34, then 50, then 64 kt.
	quadrantOrder := []model.Quadrant{
		model.QuadrantNE, model.QuadrantSE, model.QuadrantSW, model.QuadrantNW,
	}

	radii := make(model.QuadrantRadii, len(quadrantOrder))
	for _, quadrant := range quadrantOrder {
		radii[quadrant] = model.WindRadii{}
	}

	for threshold := range 3 {
		for qi, quadrant := range quadrantOrder {
			value := parseRadius(parts[radiiFirstColumn+threshold*len(quadrantOrder)+qi])

			entry := radii[quadrant]

			switch threshold {
			case 0:
				entry.R34NM = value
			case 1:
				entry.R50NM = value
			case 2:
				entry.R64NM = value
			}

			radii[quadrant] = entry
		}
	}

	if !radii.Nested() {
		return RadiiRecord{}, "radii nesting violated"
	}

	return RadiiRecord{TimestampUTC: ts, Radii: radii}, ""
}

// parseRadius parses one radius token; zero, negative, and non-numeric
// values mean no radius was observed.
func parseRadius(token string) *float64 {
	value, err := strconv.ParseFloat(token, 64)
	if err != nil || value <= 0 {
		return nil
	}

	return &value
}

// MatchRadii pairs each radii record with the advisory closest in time within
// the match window. Records without a close-enough advisory are dropped; the
// returned map is keyed by advisory timestamp.
func MatchRadii(records []RadiiRecord, advisoryTimes []time.Time) map[time.Time]model.QuadrantRadii {
	matched := make(map[time.Time]model.QuadrantRadii)

	for _, record := range records {
		best, found := closestTime(advisoryTimes, record.TimestampUTC)
		if !found {
			continue
		}

		matched[best] = record.Radii
	}

	return matched
}

func closestTime(candidates []time.Time, target time.Time) (time.Time, bool) {
	var (
		best     time.Time
		bestDiff time.Duration
		found    bool
	)

	for _, candidate := range candidates {
		diff := candidate.Sub(target)
		if diff < 0 {
			diff = -diff
		}

		if diff > radiiMatchWindow {
			continue
		}

		if !found || diff < bestDiff {
			best = candidate
			bestDiff = diff
			found = true
		}
	}

	return best, found
}
