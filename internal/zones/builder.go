package zones

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/engelsjk/polygol"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/simplify"

	"github.com/stormtrack/stormtrack/internal/events"
	"github.com/stormtrack/stormtrack/internal/model"
	"github.com/stormtrack/stormtrack/internal/observability"
	localgeo "github.com/stormtrack/stormtrack/pkg/geo"
)

// MethodVersion tags generated zones with the geometry pipeline revision.
const MethodVersion = "tofi-v2"

// Zone construction parameters.
const (
	warningBufferKm      = 75.0
	watchBufferKm        = 50.0
	closingRadiusKm      = 100.0
	chaikinIterations    = 2
	simplifyToleranceDeg = 0.01
)

// Store is the persistence surface the zone builder needs.
type Store interface {
	// LatestFinalForecast returns the storm's current final forecast points
	// in lead order, or an empty slice when none exists.
	LatestFinalForecast(ctx context.Context, stormID int64) ([]model.ForecastPoint, error)
	// ReplaceZones atomically swaps all zones of a storm for the given set.
	ReplaceZones(ctx context.Context, stormID int64, zones []model.Zone) error
}

// Result summarizes one zone generation run.
type Result struct {
	Warnings int
	Watches  int
	Segments int
}

// Builder generates watch and warning zones per storm.
type Builder struct {
	store   Store
	coast   *CoastSource
	bus     *events.Bus
	metrics *observability.PipelineMetrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewBuilder builds a zone Builder. metrics may be nil.
func NewBuilder(store Store, coast *CoastSource, bus *events.Bus,
	metrics *observability.PipelineMetrics, logger *slog.Logger,
) *Builder {
	return &Builder{
		store:   store,
		coast:   coast,
		bus:     bus,
		metrics: metrics,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Generate rebuilds the zones for one storm from its latest final forecast.
// A missing or empty forecast leaves existing zones untouched; any geometry
// error fails the storm without partial writes.
func (b *Builder) Generate(ctx context.Context, storm model.Storm) (Result, error) {
	track, trackErr := b.store.LatestFinalForecast(ctx, storm.ID)
	if trackErr != nil {
		return Result{}, fmt.Errorf("load forecast for %s: %w", storm.Code, trackErr)
	}

	if len(track) == 0 {
		b.logger.Info("no forecast; keeping existing zones", "storm", storm.Code)

		return Result{}, nil
	}

	segments := b.coast.SegmentsFor(storm.Basin)
	if len(segments) == 0 {
		return Result{}, nil
	}

	now := b.now()

	classified := classifySegments(segments, track, now)

	generated, buildErr := b.buildZones(storm.ID, classified, now)
	if buildErr != nil {
		return Result{}, fmt.Errorf("build zones for %s: %w", storm.Code, buildErr)
	}

	replaceErr := b.store.ReplaceZones(ctx, storm.ID, generated)
	if replaceErr != nil {
		return Result{}, fmt.Errorf("persist zones for %s: %w", storm.Code, replaceErr)
	}

	result := Result{Segments: len(classified)}

	for _, zone := range generated {
		if zone.Type == model.ZoneWarning {
			result.Warnings++
		} else {
			result.Watches++
		}

		if b.metrics != nil {
			b.metrics.RecordZone(ctx, string(zone.Type))
		}
	}

	b.bus.Publish(events.Event{
		Kind:      events.KindZonesUpdated,
		StormCode: storm.Code,
		Detail:    map[string]any{"warnings": result.Warnings, "watches": result.Watches},
	})

	return result, nil
}

// classifySegments computes TOFI per segment and keeps those inside the
// watch window.
func classifySegments(segments []Segment, track []model.ForecastPoint, now time.Time) []segmentTOFI {
	var classified []segmentTOFI

	for _, segment := range segments {
		tofi, reached := computeTOFI(segment, track)
		if !reached {
			continue
		}

		class, inWindow := classifyTOFI(tofi, now)
		if !inWindow {
			continue
		}

		classified = append(classified, segmentTOFI{segment: segment, tofi: tofi, class: class})
	}

	return classified
}

// buildZones runs the geometry pipeline per class: metric buffers, union,
// closing, smoothing, simplification.
func (b *Builder) buildZones(stormID int64, classified []segmentTOFI, now time.Time) ([]model.Zone, error) {
	var zones []model.Zone

	for _, class := range []model.ZoneType{model.ZoneWarning, model.ZoneWatch} {
		var lines []orb.LineString

		for _, entry := range classified {
			if entry.class == class {
				lines = append(lines, entry.segment.Line)
			}
		}

		if len(lines) == 0 {
			continue
		}

		bufferKm := watchBufferKm
		if class == model.ZoneWarning {
			bufferKm = warningBufferKm
		}

		geometry, geomErr := buildClassGeometry(lines, bufferKm)
		if geomErr != nil {
			return nil, geomErr
		}

		zones = append(zones, model.Zone{
			StormID:        stormID,
			Type:           class,
			GeneratedAtUTC: now,
			ValidFromUTC:   now,
			ValidToUTC:     now.Add(class.ValidityWindow()),
			Geometry:       geometry,
			MethodVersion:  MethodVersion,
			Parameters: map[string]any{
				"buffer_km":              bufferKm,
				"closing_km":             closingRadiusKm,
				"chaikin_iterations":     chaikinIterations,
				"simplify_tolerance_deg": simplifyToleranceDeg,
			},
		})
	}

	return zones, nil
}

// buildClassGeometry buffers and dissolves the segments of one class in a
// shared local projection, then smooths and simplifies in degrees.
func buildClassGeometry(lines []orb.LineString, bufferKm float64) (orb.MultiPolygon, error) {
	proj := centerProjection(lines)

	var merged polygol.Geom

	for _, line := range lines {
		projected := make([][2]float64, len(line))
		for i, vertex := range line {
			x, y := proj.Forward(vertex[1], vertex[0])
			projected[i] = [2]float64{x, y}
		}

		buffered, bufErr := bufferLineKm(projected, bufferKm)
		if bufErr != nil {
			return nil, bufErr
		}

		if merged == nil {
			merged = buffered

			continue
		}

		var unionErr error

		merged, unionErr = polygol.Union(merged, buffered)
		if unionErr != nil {
			return nil, fmt.Errorf("union segment buffers: %w", unionErr)
		}
	}

	closed, closeErr := closeGaps(merged, closingRadiusKm)
	if closeErr != nil {
		return nil, fmt.Errorf("close gaps: %w", closeErr)
	}

	smoothed := smooth(toMultiPolygon(closed, proj), chaikinIterations)

	simplified := simplify.DouglasPeucker(simplifyToleranceDeg).Simplify(smoothed.Clone())

	multi, ok := simplified.(orb.MultiPolygon)
	if !ok {
		return nil, fmt.Errorf("unexpected geometry %T after simplification", simplified)
	}

	return multi, nil
}

// centerProjection centers the local projection on the midpoint of the
// segment set.
func centerProjection(lines []orb.LineString) *localgeo.Projection {
	var points [][2]float64

	for _, line := range lines {
		for _, vertex := range line {
			points = append(points, [2]float64{vertex[1], vertex[0]})
		}
	}

	lat, lon, ok := localgeo.SphericalMean(points)
	if !ok {
		return localgeo.NewProjection(0, 0)
	}

	return localgeo.NewProjection(lat, lon)
}

// Area reports the spherical area of a zone geometry in square kilometers,
// used for sanity logging and tests.
func Area(mp orb.MultiPolygon) float64 {
	const sqMetersPerSqKm = 1e6

	return geo.Area(mp) / sqMetersPerSqKm
}
