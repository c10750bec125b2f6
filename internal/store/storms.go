package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/stormtrack/stormtrack/internal/model"
)

// UpsertStorm inserts a newly discovered storm or refreshes the upstream
// pointers of a known one. Status and lifecycle clocks are untouched on
// conflict; reactivation is the lifecycle service's decision.
func (s *Store) UpsertStorm(ctx context.Context, storm model.Storm) (model.Storm, error) {
	const query = `
		INSERT INTO storms (
			code, basin, name, status,
			first_seen_utc, last_seen_utc, last_status_change_utc,
			history_file_url, satellite_image_url
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (code) DO UPDATE SET
			name = COALESCE(EXCLUDED.name, storms.name),
			history_file_url = EXCLUDED.history_file_url,
			satellite_image_url = COALESCE(EXCLUDED.satellite_image_url, storms.satellite_image_url)
		RETURNING *`

	if storm.Status == "" {
		storm.Status = model.StatusActive
	}

	now := time.Now().UTC()

	if storm.FirstSeenUTC.IsZero() {
		storm.FirstSeenUTC = now
	}

	if storm.LastSeenUTC.IsZero() {
		storm.LastSeenUTC = now
	}

	if storm.LastStatusChange.IsZero() {
		storm.LastStatusChange = now
	}

	var out model.Storm

	getErr := s.db.GetContext(ctx, &out, query,
		storm.Code, storm.Basin, storm.Name, storm.Status,
		storm.FirstSeenUTC, storm.LastSeenUTC, storm.LastStatusChange,
		storm.HistoryFileURL, storm.SatelliteImageURL,
	)
	if getErr != nil {
		return model.Storm{}, fmt.Errorf("upsert storm %s: %w", storm.Code, getErr)
	}

	return out, nil
}

// GetStormByCode looks a storm up by its upstream code.
func (s *Store) GetStormByCode(ctx context.Context, code string) (model.Storm, error) {
	var storm model.Storm

	getErr := s.db.GetContext(ctx, &storm,
		`SELECT * FROM storms WHERE code = $1`, code)
	if errors.Is(getErr, sql.ErrNoRows) {
		return model.Storm{}, fmt.Errorf("storm %s: %w", code, ErrNotFound)
	}

	if getErr != nil {
		return model.Storm{}, fmt.Errorf("get storm %s: %w", code, getErr)
	}

	return storm, nil
}

// ListStormsByStatus returns all storms in any of the given states, oldest
// first.
func (s *Store) ListStormsByStatus(ctx context.Context, statuses ...model.Status) ([]model.Storm, error) {
	query, args, inErr := sqlx.In(
		`SELECT * FROM storms WHERE status IN (?) ORDER BY first_seen_utc`, statuses)
	if inErr != nil {
		return nil, fmt.Errorf("build storm query: %w", inErr)
	}

	var storms []model.Storm

	selectErr := s.db.SelectContext(ctx, &storms, s.db.Rebind(query), args...)
	if selectErr != nil {
		return nil, fmt.Errorf("list storms: %w", selectErr)
	}

	return storms, nil
}

// MarkStormSeen advances the storm's last-seen clock, never moving it
// backwards.
func (s *Store) MarkStormSeen(ctx context.Context, stormID int64, seenAt time.Time) error {
	_, execErr := s.db.ExecContext(ctx,
		`UPDATE storms SET last_seen_utc = GREATEST(last_seen_utc, $2) WHERE id = $1`,
		stormID, seenAt)
	if execErr != nil {
		return fmt.Errorf("mark storm %d seen: %w", stormID, execErr)
	}

	return nil
}

// TransitionStatus moves a storm from one lifecycle state to another. The
// update is guarded on the current state; a storm found in any other state
// returns ErrConflict.
func (s *Store) TransitionStatus(ctx context.Context, stormID int64, from, to model.Status, at time.Time) error {
	if !from.CanTransition(to) {
		return fmt.Errorf("transition %s -> %s: %w", from, to, ErrConflict)
	}

	result, execErr := s.db.ExecContext(ctx,
		`UPDATE storms SET status = $3, last_status_change_utc = $4
		 WHERE id = $1 AND status = $2`,
		stormID, from, to, at)
	if execErr != nil {
		return fmt.Errorf("transition storm %d: %w", stormID, execErr)
	}

	affected, raErr := result.RowsAffected()
	if raErr != nil {
		return fmt.Errorf("transition storm %d: %w", stormID, raErr)
	}

	if affected == 0 {
		return fmt.Errorf("storm %d not in state %s: %w", stormID, from, ErrConflict)
	}

	return nil
}

// ArchiveStorm performs the terminal transition in one transaction: the
// guarded dormant→archived update, the summary figures on the storm row, and
// the audit record.
func (s *Store) ArchiveStorm(ctx context.Context, stormID int64, reason string,
	stats model.ArchiveStats, at time.Time,
) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		result, execErr := tx.ExecContext(ctx,
			`UPDATE storms SET
				status = $2, last_status_change_utc = $3,
				archived_at_utc = $3, archival_reason = $4, peak_vmax_seen_kt = $5
			 WHERE id = $1 AND status = $6`,
			stormID, model.StatusArchived, at, reason, stats.PeakVmaxKt, model.StatusDormant)
		if execErr != nil {
			return fmt.Errorf("archive storm %d: %w", stormID, execErr)
		}

		affected, raErr := result.RowsAffected()
		if raErr != nil {
			return fmt.Errorf("archive storm %d: %w", stormID, raErr)
		}

		if affected == 0 {
			return fmt.Errorf("storm %d not dormant: %w", stormID, ErrConflict)
		}

		detail := map[string]any{"reason": reason, "stats": stats}

		return appendAuditTx(ctx, tx, stormID, "storm.archived", detail, at)
	})
}
