package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/stormtrack/stormtrack/internal/events"
	"github.com/stormtrack/stormtrack/internal/fetch"
	"github.com/stormtrack/stormtrack/internal/model"
	"github.com/stormtrack/stormtrack/internal/observability"
	"github.com/stormtrack/stormtrack/pkg/geo"
	"github.com/stormtrack/stormtrack/pkg/units"
)

// historySuffix and radiiSuffix are the upstream file name suffixes; the
// radii companion lives next to the history file.
const (
	historySuffix = "-list.txt"
	radiiSuffix   = ".2dwind.txt"
)

// Store is the persistence surface the ingest service needs.
type Store interface {
	// UpsertAdvisories writes advisories keyed by issuance time, overwriting
	// revised lines, and returns how many rows changed.
	UpsertAdvisories(ctx context.Context, stormID int64, advisories []model.Advisory) (int, error)
	// ReplaceRadii replaces the stored wind radii for the given advisory
	// timestamps of one storm.
	ReplaceRadii(ctx context.Context, stormID int64, matched map[time.Time]model.QuadrantRadii) error
	// MarkStormSeen advances the storm's last-seen clock.
	MarkStormSeen(ctx context.Context, stormID int64, seenAt time.Time) error
}

// Result summarizes one ingest run for a storm.
type Result struct {
	Unchanged     bool
	NewAdvisories int
	SkippedLines  int
	RadiiMatched  int
}

// Service ingests history and radii files for tracked storms.
type Service struct {
	client  *fetch.Client
	store   Store
	bus     *events.Bus
	metrics *observability.PipelineMetrics
	logger  *slog.Logger
}

// NewService builds an ingest Service. metrics may be nil.
func NewService(client *fetch.Client, store Store, bus *events.Bus,
	metrics *observability.PipelineMetrics, logger *slog.Logger,
) *Service {
	return &Service{client: client, store: store, bus: bus, metrics: metrics, logger: logger}
}

// IngestStorm fetches the storm's history file, parses it with the basin's
// adapter, persists new advisories, and attaches wind radii from the
// companion file. A 304 on the history file short-circuits the whole run.
func (s *Service) IngestStorm(ctx context.Context, storm model.Storm) (Result, error) {
	historyResult, err := s.client.Fetch(ctx, storm.HistoryFileURL)
	if err != nil {
		return Result{}, fmt.Errorf("fetch history for %s: %w", storm.Code, err)
	}

	switch historyResult.Kind {
	case fetch.OutcomeNotModified:
		return Result{Unchanged: true}, nil
	case fetch.OutcomeFetched:
	default:
		return Result{}, &fetch.Error{
			Kind: historyResult.Kind,
			Err:  fmt.Errorf("fetch history for %s: outcome %s", storm.Code, historyResult.Kind),
		}
	}

	adapter := AdapterFor(storm.Basin)

	parsed, report, parseErr := adapter.Parse(historyResult.Body)
	if parseErr != nil {
		if s.metrics != nil {
			s.metrics.RecordParseError(ctx, "history")
		}

		return Result{}, fmt.Errorf("parse history for %s: %w", storm.Code, parseErr)
	}

	if s.metrics != nil {
		s.metrics.RecordDroppedLines(ctx, "history", "parse", report.SkippedCount())
	}

	advisories := toAdvisories(storm.ID, parsed)

	newCount, upsertErr := s.store.UpsertAdvisories(ctx, storm.ID, advisories)
	if upsertErr != nil {
		return Result{}, fmt.Errorf("persist advisories for %s: %w", storm.Code, upsertErr)
	}

	if s.metrics != nil {
		s.metrics.RecordAdvisories(ctx, string(storm.Basin), newCount)
	}

	result := Result{
		NewAdvisories: newCount,
		SkippedLines:  report.SkippedCount(),
	}

	radiiMatched, radiiErr := s.ingestRadii(ctx, storm, parsed)
	if radiiErr != nil {
		// Radii are an enrichment; their failure never fails the run.
		s.logger.Warn("radii ingest failed", "storm", storm.Code, "error", radiiErr)
	}

	result.RadiiMatched = radiiMatched

	if len(parsed) > 0 {
		latest := parsed[len(parsed)-1].TimestampUTC

		seenErr := s.store.MarkStormSeen(ctx, storm.ID, latest)
		if seenErr != nil {
			return result, fmt.Errorf("mark storm %s seen: %w", storm.Code, seenErr)
		}
	}

	if newCount > 0 {
		s.bus.Publish(events.Event{
			Kind:      events.KindAdvisoryIngested,
			StormCode: storm.Code,
			Detail:    map[string]any{"new_advisories": newCount},
		})
	}

	return result, nil
}

// ingestRadii fetches and parses the wind-radii companion file and matches
// its records onto the parsed advisory timestamps.
func (s *Service) ingestRadii(ctx context.Context, storm model.Storm, parsed []ParsedAdvisory) (int, error) {
	radiiURL := RadiiURL(storm.HistoryFileURL)
	if radiiURL == "" {
		return 0, nil
	}

	radiiResult, err := s.client.Fetch(ctx, radiiURL)
	if err != nil {
		return 0, fmt.Errorf("fetch radii: %w", err)
	}

	switch radiiResult.Kind {
	case fetch.OutcomeFetched:
	case fetch.OutcomeNotModified, fetch.OutcomeNotFound:
		// Not every storm publishes radii.
		return 0, nil
	default:
		return 0, fmt.Errorf("fetch radii: outcome %s", radiiResult.Kind)
	}

	records, report := ParseRadiiFile(radiiResult.Body)

	if s.metrics != nil {
		s.metrics.RecordDroppedLines(ctx, "radii", "parse", report.SkippedCount())
	}

	times := make([]time.Time, len(parsed))
	for i, advisory := range parsed {
		times[i] = advisory.TimestampUTC
	}

	matched := MatchRadii(records, times)
	if len(matched) == 0 {
		return 0, nil
	}

	replaceErr := s.store.ReplaceRadii(ctx, storm.ID, matched)
	if replaceErr != nil {
		return 0, fmt.Errorf("persist radii: %w", replaceErr)
	}

	return len(matched), nil
}

// RadiiURL derives the wind-radii companion URL from a history file URL.
// Returns "" when the history URL does not follow the upstream layout.
func RadiiURL(historyURL string) string {
	if !strings.HasSuffix(historyURL, historySuffix) {
		return ""
	}

	return strings.TrimSuffix(historyURL, historySuffix) + radiiSuffix
}

// toAdvisories converts parsed rows into advisory records, deriving motion
// from consecutive positions.
func toAdvisories(stormID int64, parsed []ParsedAdvisory) []model.Advisory {
	advisories := make([]model.Advisory, len(parsed))

	for i, row := range parsed {
		advisories[i] = model.Advisory{
			StormID:       stormID,
			IssuedAtUTC:   row.TimestampUTC,
			Latitude:      row.Latitude,
			Longitude:     row.Longitude,
			VmaxKt:        row.VmaxKt,
			MslpHpa:       row.MslpHpa,
			LineChecksum:  row.LineChecksum,
			ParserVersion: ParserVersion,
		}

		if i > 0 {
			bearing, speed, ok := deriveMotion(parsed[i-1], row)
			if ok {
				advisories[i].MotionBearingDeg = &bearing
				advisories[i].MotionSpeedKt = &speed
			}
		}
	}

	return advisories
}

// deriveMotion computes the bearing and forward speed from the previous fix.
func deriveMotion(prev, cur ParsedAdvisory) (bearingDeg, speedKt float64, ok bool) {
	hours := cur.TimestampUTC.Sub(prev.TimestampUTC).Hours()
	if hours <= 0 {
		return 0, 0, false
	}

	distanceKm := geo.DistanceKm(prev.Latitude, prev.Longitude, cur.Latitude, cur.Longitude)
	bearingDeg = geo.BearingDeg(prev.Latitude, prev.Longitude, cur.Latitude, cur.Longitude)
	speedKt = units.KilometersToNauticalMiles(distanceKm) / hours

	return bearingDeg, speedKt, true
}
