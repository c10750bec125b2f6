// Package ingest parses upstream history and wind-radii files into advisory
// records. Parsing is tolerant: a bad line is reported and skipped, never
// fatal, unless the majority of data lines fail.
package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/stormtrack/stormtrack/internal/model"
)

// ParserVersion is stamped onto every advisory so reprocessing after a parser
// change can be detected.
const ParserVersion = 2

// badLineThreshold is the fraction of data lines that may fail before the
// whole file is rejected as permanently malformed.
const badLineThreshold = 0.5

// ErrTooManyBadLines indicates that over half of the data lines failed to
// parse; the file shape has likely changed upstream.
var ErrTooManyBadLines = errors.New("too many unparseable lines")

// ParsedAdvisory is one history-file row before persistence.
type ParsedAdvisory struct {
	TimestampUTC time.Time
	Latitude     float64
	Longitude    float64
	VmaxKt       *float64
	MslpHpa      *float64
	LineChecksum string
}

// SkippedLine records one line the tolerant pass rejected.
type SkippedLine struct {
	Number int
	Reason string
}

// Report summarizes a tolerant parse pass.
type Report struct {
	DataLines int
	Skipped   []SkippedLine
}

// SkippedCount reports how many data lines were rejected.
func (r Report) SkippedCount() int {
	return len(r.Skipped)
}

// Adapter converts one upstream history-file format into advisories.
type Adapter interface {
	// Parse runs the tolerant line-by-line pass. The error is non-nil only
	// when the file as a whole must be rejected.
	Parse(content []byte) ([]ParsedAdvisory, Report, error)
}

// AdapterFor selects the history adapter for a basin. Every basin currently
// publishes the same free-format ADT history file.
func AdapterFor(model.Basin) Adapter {
	return &ADTAdapter{}
}

// LineChecksum returns the content address of one history line, used to
// detect upstream revisions of an already-ingested advisory.
func LineChecksum(line string) string {
	sum := sha256.Sum256([]byte(line))

	return hex.EncodeToString(sum[:])
}

// rejectIfMajorityBad enforces the file-level failure rule.
func rejectIfMajorityBad(report Report) error {
	if report.DataLines == 0 {
		return nil
	}

	ratio := float64(report.SkippedCount()) / float64(report.DataLines)
	if ratio > badLineThreshold {
		return fmt.Errorf("%w: %d of %d data lines", ErrTooManyBadLines,
			report.SkippedCount(), report.DataLines)
	}

	return nil
}
