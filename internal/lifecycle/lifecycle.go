// Package lifecycle drives the storm state machine: active storms go dormant
// after a quiet period, dormant storms reactivate on fresh advisories, and
// long-quiet dormant storms are archived with summary statistics.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/stormtrack/stormtrack/internal/events"
	"github.com/stormtrack/stormtrack/internal/model"
	"github.com/stormtrack/stormtrack/internal/store"
)

// Store is the persistence surface the lifecycle service needs.
type Store interface {
	GetStormByCode(ctx context.Context, code string) (model.Storm, error)
	ListStormsByStatus(ctx context.Context, statuses ...model.Status) ([]model.Storm, error)
	TransitionStatus(ctx context.Context, stormID int64, from, to model.Status, at time.Time) error
	ListAdvisories(ctx context.Context, stormID int64) ([]model.Advisory, error)
	LatestFinalForecast(ctx context.Context, stormID int64) ([]model.ForecastPoint, error)
	ListZones(ctx context.Context, stormID int64) ([]model.Zone, error)
	CountActiveZones(ctx context.Context, stormID int64, at time.Time) (int, error)
	ArchiveStorm(ctx context.Context, stormID int64, reason string, stats model.ArchiveStats, at time.Time) error
	AppendAudit(ctx context.Context, stormID int64, action string, detail map[string]any, at time.Time) error
}

// SweepResult summarizes one lifecycle sweep.
type SweepResult struct {
	Dormanted int
	Archived  int
	Deferred  int
}

// Service applies the lifecycle rules.
type Service struct {
	store        Store
	bus          *events.Bus
	dormantAfter time.Duration
	archiveAfter time.Duration
	logger       *slog.Logger
	now          func() time.Time
}

// NewService builds a lifecycle Service.
func NewService(st Store, bus *events.Bus, dormantAfter, archiveAfter time.Duration,
	logger *slog.Logger,
) *Service {
	return &Service{
		store:        st,
		bus:          bus,
		dormantAfter: dormantAfter,
		archiveAfter: archiveAfter,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Sweep walks all non-archived storms and applies the time-based transitions:
// active storms quiet past the dormant threshold go dormant, dormant storms
// quiet past the archive threshold are archived. Archival is deferred while a
// storm still has zones in their validity window.
func (s *Service) Sweep(ctx context.Context) (SweepResult, error) {
	storms, listErr := s.store.ListStormsByStatus(ctx, model.StatusActive, model.StatusDormant)
	if listErr != nil {
		return SweepResult{}, fmt.Errorf("list storms for sweep: %w", listErr)
	}

	now := s.now()

	var result SweepResult

	for _, storm := range storms {
		quiet := now.Sub(storm.LastSeenUTC)

		switch {
		case storm.Status == model.StatusActive && quiet >= s.dormantAfter:
			transitionErr := s.transition(ctx, storm, model.StatusDormant, now)
			if transitionErr != nil {
				s.logger.Warn("dormant transition failed", "storm", storm.Code, "error", transitionErr)

				continue
			}

			result.Dormanted++
		case storm.Status == model.StatusDormant && quiet >= s.archiveAfter:
			archived, archiveErr := s.archive(ctx, storm, now)
			if archiveErr != nil {
				s.logger.Warn("archive failed", "storm", storm.Code, "error", archiveErr)

				continue
			}

			if archived {
				result.Archived++
			} else {
				result.Deferred++
			}
		}
	}

	return result, nil
}

// ReactivateIfDormant moves a dormant storm back to active; called when a
// fresh advisory lands. Active and archived storms are left alone.
func (s *Service) ReactivateIfDormant(ctx context.Context, code string) error {
	storm, getErr := s.store.GetStormByCode(ctx, code)
	if getErr != nil {
		return getErr
	}

	if storm.Status != model.StatusDormant {
		return nil
	}

	return s.transition(ctx, storm, model.StatusActive, s.now())
}

// WatchReactivations subscribes to advisory events and reactivates dormant
// storms until the context ends. Run it in its own goroutine.
func (s *Service) WatchReactivations(ctx context.Context) {
	ch, cancel := s.bus.Subscribe(events.KindAdvisoryIngested)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}

			reactErr := s.ReactivateIfDormant(ctx, evt.StormCode)
			if reactErr != nil && !errors.Is(reactErr, store.ErrNotFound) {
				s.logger.Warn("reactivation failed", "storm", evt.StormCode, "error", reactErr)
			}
		}
	}
}

// transition performs one state edge with its audit record and event.
func (s *Service) transition(ctx context.Context, storm model.Storm, to model.Status, at time.Time) error {
	transitionErr := s.store.TransitionStatus(ctx, storm.ID, storm.Status, to, at)
	if transitionErr != nil {
		return transitionErr
	}

	detail := map[string]any{"from": string(storm.Status), "to": string(to)}

	auditErr := s.store.AppendAudit(ctx, storm.ID, "storm.status_changed", detail, at)
	if auditErr != nil {
		s.logger.Warn("audit write failed", "storm", storm.Code, "error", auditErr)
	}

	s.bus.Publish(events.Event{
		Kind:      events.KindStormStatusChange,
		StormCode: storm.Code,
		AtUTC:     at,
		Detail:    detail,
	})

	return nil
}

// archive runs the terminal transition. Returns false without error when
// archival is deferred because alerts are still live or the storm never
// collected an advisory to summarize.
func (s *Service) archive(ctx context.Context, storm model.Storm, at time.Time) (bool, error) {
	liveZones, countErr := s.store.CountActiveZones(ctx, storm.ID, at)
	if countErr != nil {
		return false, countErr
	}

	if liveZones > 0 {
		s.logger.Info("archival deferred; alerts still valid",
			"storm", storm.Code, "live_zones", liveZones)

		return false, nil
	}

	stats, statsErr := s.computeStats(ctx, storm)
	if statsErr != nil {
		return false, statsErr
	}

	if stats.AdvisoryCount == 0 {
		s.logger.Warn("archival deferred; storm has no advisories", "storm", storm.Code)

		return false, nil
	}

	reason := fmt.Sprintf("no new advisories for %s", s.archiveAfter)

	archiveErr := s.store.ArchiveStorm(ctx, storm.ID, reason, stats, at)
	if archiveErr != nil {
		return false, archiveErr
	}

	s.bus.Publish(events.Event{
		Kind:      events.KindStormStatusChange,
		StormCode: storm.Code,
		AtUTC:     at,
		Detail:    map[string]any{"from": string(model.StatusDormant), "to": string(model.StatusArchived)},
	})

	return true, nil
}

// defaultArchiveReason is recorded when the operator gives none.
const defaultArchiveReason = "archived by operator"

// ArchiveNow archives a dormant storm on demand, still refusing while alerts
// are live or no advisory was ever ingested. An empty reason records the
// default.
func (s *Service) ArchiveNow(ctx context.Context, code, reason string) error {
	if reason == "" {
		reason = defaultArchiveReason
	}

	storm, getErr := s.store.GetStormByCode(ctx, code)
	if getErr != nil {
		return getErr
	}

	if storm.Status != model.StatusDormant {
		return fmt.Errorf("storm %s is %s, only dormant storms archive: %w",
			code, storm.Status, store.ErrConflict)
	}

	at := s.now()

	liveZones, countErr := s.store.CountActiveZones(ctx, storm.ID, at)
	if countErr != nil {
		return countErr
	}

	if liveZones > 0 {
		return fmt.Errorf("storm %s has %d zones still valid: %w", code, liveZones, store.ErrConflict)
	}

	stats, statsErr := s.computeStats(ctx, storm)
	if statsErr != nil {
		return statsErr
	}

	if stats.AdvisoryCount == 0 {
		return fmt.Errorf("storm %s has no advisories to summarize: %w", code, store.ErrConflict)
	}

	archiveErr := s.store.ArchiveStorm(ctx, storm.ID, reason, stats, at)
	if archiveErr != nil {
		return archiveErr
	}

	s.bus.Publish(events.Event{
		Kind:      events.KindStormStatusChange,
		StormCode: storm.Code,
		AtUTC:     at,
		Detail:    map[string]any{"from": string(model.StatusDormant), "to": string(model.StatusArchived)},
	})

	return nil
}
