// Package forecast parses A-Deck ensemble files and reduces the AP member
// tracks to the single mean forecast shown downstream.
package forecast

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/stormtrack/stormtrack/internal/ingest"
	"github.com/stormtrack/stormtrack/internal/model"
)

// adeckMinFields is the minimum comma-separated field count of a usable row.
const adeckMinFields = 10

// A-Deck field positions.
const (
	adeckColBasin    = 0
	adeckColStormNum = 1
	adeckColIssuance = 2
	adeckColModel    = 4
	adeckColLead     = 5
	adeckColLat      = 6
	adeckColLon      = 7
	adeckColVmax     = 8
	adeckColMslp     = 9
)

// Lead-time grid accepted from members: non-negative multiples of the
// three-hour step, out to ten days.
const (
	leadStepHours = 3
	leadMaxHours  = 240
)

var (
	adeckLatRe = regexp.MustCompile(`^(\d+)([NS])$`)
	adeckLonRe = regexp.MustCompile(`^(\d+)([EW])$`)
)

// Member is one parsed A-Deck forecast record from one model at one lead.
type Member struct {
	Basin       string
	StormNum    string
	IssuedAtUTC time.Time
	ModelCode   string
	LeadHours   int
	Latitude    float64
	Longitude   float64
	VmaxKt      *float64
	MslpHpa     *float64
}

// ParseADeck runs the tolerant pass over an A-Deck file. Unparseable and
// off-grid rows are reported and skipped.
func ParseADeck(content []byte) ([]Member, ingest.Report) {
	var (
		members []Member
		report  ingest.Report
	)

	for num, raw := range strings.Split(string(content), "\n") {
		line := strings.TrimSpace(raw)

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		report.DataLines++

		member, reason := parseADeckLine(line)
		if reason != "" {
			report.Skipped = append(report.Skipped, ingest.SkippedLine{Number: num + 1, Reason: reason})

			continue
		}

		members = append(members, member)
	}

	return members, report
}

func parseADeckLine(line string) (Member, string) {
	fields := strings.Split(line, ",")
	if len(fields) < adeckMinFields {
		return Member{}, "short row"
	}

	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	issued, issuedErr := time.ParseInLocation("2006010215", fields[adeckColIssuance], time.UTC)
	if issuedErr != nil {
		return Member{}, "bad issuance time"
	}

	lead, leadErr := strconv.Atoi(fields[adeckColLead])
	if leadErr != nil {
		return Member{}, "bad forecast hour"
	}

	if lead < 0 || lead > leadMaxHours || lead%leadStepHours != 0 {
		return Member{}, "off-grid forecast hour"
	}

	lat, lon, coordErr := parseTenthsLatLon(fields[adeckColLat], fields[adeckColLon])
	if coordErr != nil {
		return Member{}, "bad coordinates"
	}

	return Member{
		Basin:       fields[adeckColBasin],
		StormNum:    fields[adeckColStormNum],
		IssuedAtUTC: issued,
		ModelCode:   fields[adeckColModel],
		LeadHours:   lead,
		Latitude:    lat,
		Longitude:   lon,
		VmaxKt:      parseOptionalNumber(fields[adeckColVmax]),
		MslpHpa:     parseOptionalNumber(fields[adeckColMslp]),
	}, ""
}

// parseTenthsLatLon parses the A-Deck coordinate encoding: integer tenths of
// a degree with a hemisphere suffix, e.g. 125N → 12.5°N, 1453E → 145.3°E.
func parseTenthsLatLon(latField, lonField string) (lat, lon float64, err error) {
	latMatch := adeckLatRe.FindStringSubmatch(latField)
	lonMatch := adeckLonRe.FindStringSubmatch(lonField)

	if latMatch == nil || lonMatch == nil {
		return 0, 0, fmt.Errorf("%w: %q %q", ingest.ErrBadCoordinate, latField, lonField)
	}

	latTenths, _ := strconv.Atoi(latMatch[1])
	lonTenths, _ := strconv.Atoi(lonMatch[1])

	lat = float64(latTenths) / 10
	lon = float64(lonTenths) / 10

	if latMatch[2] == "S" {
		lat = -lat
	}

	if lonMatch[2] == "W" {
		lon = -lon
	}

	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return 0, 0, fmt.Errorf("%w: %q %q out of range", ingest.ErrBadCoordinate, latField, lonField)
	}

	return lat, lon, nil
}

// parseOptionalNumber parses a numeric A-Deck field where "-", "N/A", "XXX",
// and empty all mean missing.
func parseOptionalNumber(field string) *float64 {
	switch field {
	case "", "-", "N/A", "XXX":
		return nil
	}

	value, err := strconv.ParseFloat(field, 64)
	if err != nil {
		return nil
	}

	return &value
}

// FilterEnsemble keeps only the AP01..AP30 ensemble members.
func FilterEnsemble(members []Member) []Member {
	kept := make([]Member, 0, len(members))

	for _, member := range members {
		if isEnsembleMember(member.ModelCode) {
			kept = append(kept, member)
		}
	}

	return kept
}

func isEnsembleMember(code string) bool {
	if len(code) != 4 || !strings.HasPrefix(code, "AP") {
		return false
	}

	num, err := strconv.Atoi(code[2:])

	return err == nil && num >= 1 && num <= model.EnsembleSize
}
