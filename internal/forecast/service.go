package forecast

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

// Store is the persistence surface the forecast service needs.
type Store interface {
	// ReplaceFinalForecast atomically swaps the storm's final forecast for
	// the given point set.
	ReplaceFinalForecast(ctx context.Context, stormID int64, points []model.ForecastPoint) error
}

// Result summarizes one forecast rebuild.
type Result struct {
	Unchanged    bool
	Points       int
	Members      int
	SkippedLines int
}

// Service rebuilds the ensemble-mean forecast from the public A-Deck mirror.
type Service struct {
	client  *fetch.Client
	store   Store
	bus     *events.Bus
	baseURL string
	metrics *observability.PipelineMetrics
	logger  *slog.Logger
}

// NewService builds a forecast Service. baseURL is the A-Deck tree root;
// metrics may be nil.
func NewService(client *fetch.Client, store Store, bus *events.Bus, baseURL string,
	metrics *observability.PipelineMetrics, logger *slog.Logger,
) *Service {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	return &Service{client: client, store: store, bus: bus, baseURL: baseURL, metrics: metrics, logger: logger}
}

// Rebuild fetches the storm's A-Deck file, reduces the AP ensemble to the
// mean forecast of the latest issuance, infers missing radii, and atomically
// replaces the stored final forecast.
func (s *Service) Rebuild(ctx context.Context, storm model.Storm) (Result, error) {
	adeckURL, urlErr := s.adeckURL(storm)
	if urlErr != nil {
		return Result{}, urlErr
	}

	fetched, err := s.client.Fetch(ctx, adeckURL)
	if err != nil {
		return Result{}, fmt.Errorf("fetch a-deck for %s: %w", storm.Code, err)
	}

	switch fetched.Kind {
	case fetch.OutcomeNotModified:
		return Result{Unchanged: true}, nil
	case fetch.OutcomeNotFound:
		// Not every storm is carried in the public mirror yet.
		s.logger.Info("no a-deck file for storm", "storm", storm.Code, "url", adeckURL)

		return Result{}, nil
	case fetch.OutcomeFetched:
	default:
		return Result{}, &fetch.Error{
			Kind: fetched.Kind,
			Err:  fmt.Errorf("fetch a-deck for %s: outcome %s", storm.Code, fetched.Kind),
		}
	}

	members, report := ParseADeck(fetched.Body)

	if s.metrics != nil {
		s.metrics.RecordDroppedLines(ctx, "adeck", "parse", report.SkippedCount())
	}

	ensemble := FilterEnsemble(members)

	points := ComputeMean(storm.ID, ensemble)
	if len(points) == 0 {
		s.logger.Info("no ensemble members in a-deck", "storm", storm.Code)

		return Result{SkippedLines: report.SkippedCount()}, nil
	}

	attachInferredRadii(points, storm.Basin)

	replaceErr := s.store.ReplaceFinalForecast(ctx, storm.ID, points)
	if replaceErr != nil {
		return Result{}, fmt.Errorf("persist forecast for %s: %w", storm.Code, replaceErr)
	}

	s.bus.Publish(events.Event{
		Kind:      events.KindForecastUpdated,
		StormCode: storm.Code,
		Detail:    map[string]any{"points": len(points), "issued_at": points[0].IssuedAtUTC},
	})

	return Result{
		Points:       len(points),
		Members:      len(ensemble),
		SkippedLines: report.SkippedCount(),
	}, nil
}

// adeckURL builds the A-Deck file URL for a storm: a<basin><NN><YYYY>.dat
// under the mirror root, year taken from when tracking began.
func (s *Service) adeckURL(storm model.Storm) (string, error) {
	letter := storm.Basin.ADeckLetter()
	if letter == "" || len(storm.Code) < 3 {
		return "", fmt.Errorf("cannot derive a-deck name for storm %q", storm.Code)
	}

	year := storm.FirstSeenUTC.Year()
	if year == 1 {
		year = time.Now().UTC().Year()
	}

	number := storm.Code[:len(storm.Code)-1]

	return fmt.Sprintf("%sa%s%s%d.dat", s.baseURL, letter, number, year), nil
}

// attachInferredRadii fills radii on mean points from the intensity curve,
// using the forward speed between consecutive points for asymmetry.
func attachInferredRadii(points []model.ForecastPoint, basin model.Basin) {
	for i := range points {
		if points[i].VmaxKt == nil {
			continue
		}

		speed := forwardSpeed(points, i)

		radii := InferRadii(*points[i].VmaxKt, basin, speed)
		if radii == nil {
			continue
		}

		points[i].Radii = radii
		points[i].RadiiInferred = true
	}
}

// forwardSpeed estimates the forward speed in knots at point i from the
// segment leading into it (or out of it for the first point).
func forwardSpeed(points []model.ForecastPoint, i int) *float64 {
	from, to := i-1, i
	if i == 0 {
		if len(points) < 2 {
			return nil
		}

		from, to = 0, 1
	}

	hours := points[to].ValidAtUTC.Sub(points[from].ValidAtUTC).Hours()
	if hours <= 0 {
		return nil
	}

	distanceKm := geo.DistanceKm(
		points[from].Latitude, points[from].Longitude,
		points[to].Latitude, points[to].Longitude,
	)

	speed := units.KilometersToNauticalMiles(distanceKm) / hours

	return &speed
}
