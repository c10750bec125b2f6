package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/stormtrack/stormtrack/internal/model"
)

// advisoryRow mirrors the advisories table; radii travel as JSONB.
type advisoryRow struct {
	model.Advisory
	RadiiJSON []byte `db:"radii"`
}

func (r *advisoryRow) toModel() (model.Advisory, error) {
	advisory := r.Advisory

	if len(r.RadiiJSON) > 0 {
		unmarshalErr := json.Unmarshal(r.RadiiJSON, &advisory.Radii)
		if unmarshalErr != nil {
			return model.Advisory{}, fmt.Errorf("decode radii for advisory %d: %w", r.ID, unmarshalErr)
		}
	}

	return advisory, nil
}

// UpsertAdvisories writes advisories keyed by issuance time: an unseen
// timestamp inserts, a revised upstream line at a known timestamp overwrites
// that advisory, and an unchanged line (same checksum) is a no-op. Returns
// how many rows were inserted or revised.
func (s *Store) UpsertAdvisories(ctx context.Context, stormID int64, advisories []model.Advisory) (int, error) {
	const query = `
		INSERT INTO advisories (
			storm_id, issued_at_utc, latitude, longitude,
			vmax_kt, mslp_hpa, motion_bearing_deg, motion_speed_kt,
			radii, line_checksum, parser_version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (storm_id, issued_at_utc) DO UPDATE SET
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			vmax_kt = EXCLUDED.vmax_kt,
			mslp_hpa = EXCLUDED.mslp_hpa,
			motion_bearing_deg = EXCLUDED.motion_bearing_deg,
			motion_speed_kt = EXCLUDED.motion_speed_kt,
			radii = EXCLUDED.radii,
			line_checksum = EXCLUDED.line_checksum,
			parser_version = EXCLUDED.parser_version
		WHERE advisories.line_checksum <> EXCLUDED.line_checksum`

	var inserted int

	txErr := s.inTx(ctx, func(tx *sqlx.Tx) error {
		for _, advisory := range advisories {
			radiiJSON, marshalErr := marshalRadii(advisory.Radii)
			if marshalErr != nil {
				return marshalErr
			}

			result, execErr := tx.ExecContext(ctx, query,
				stormID, advisory.IssuedAtUTC, advisory.Latitude, advisory.Longitude,
				advisory.VmaxKt, advisory.MslpHpa, advisory.MotionBearingDeg, advisory.MotionSpeedKt,
				radiiJSON, advisory.LineChecksum, advisory.ParserVersion,
			)
			if execErr != nil {
				return fmt.Errorf("insert advisory %s: %w", advisory.LineChecksum, execErr)
			}

			affected, raErr := result.RowsAffected()
			if raErr != nil {
				return fmt.Errorf("insert advisory %s: %w", advisory.LineChecksum, raErr)
			}

			inserted += int(affected)
		}

		_, peakErr := tx.ExecContext(ctx,
			`UPDATE storms SET peak_vmax_seen_kt = (
				SELECT MAX(vmax_kt) FROM advisories WHERE storm_id = $1
			 ) WHERE id = $1`, stormID)
		if peakErr != nil {
			return fmt.Errorf("refresh peak intensity for storm %d: %w", stormID, peakErr)
		}

		return nil
	})
	if txErr != nil {
		return 0, txErr
	}

	return inserted, nil
}

// ReplaceRadii attaches wind radii to the advisories with the given issuance
// timestamps.
func (s *Store) ReplaceRadii(ctx context.Context, stormID int64, matched map[time.Time]model.QuadrantRadii) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		for issuedAt, radii := range matched {
			radiiJSON, marshalErr := marshalRadii(radii)
			if marshalErr != nil {
				return marshalErr
			}

			_, execErr := tx.ExecContext(ctx,
				`UPDATE advisories SET radii = $3
				 WHERE storm_id = $1 AND issued_at_utc = $2`,
				stormID, issuedAt, radiiJSON)
			if execErr != nil {
				return fmt.Errorf("attach radii at %s: %w", issuedAt.Format(time.RFC3339), execErr)
			}
		}

		return nil
	})
}

// ListAdvisories returns all advisories of a storm in issuance order.
func (s *Store) ListAdvisories(ctx context.Context, stormID int64) ([]model.Advisory, error) {
	var rows []advisoryRow

	selectErr := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM advisories WHERE storm_id = $1 ORDER BY issued_at_utc`, stormID)
	if selectErr != nil {
		return nil, fmt.Errorf("list advisories for storm %d: %w", stormID, selectErr)
	}

	advisories := make([]model.Advisory, 0, len(rows))

	for i := range rows {
		advisory, convErr := rows[i].toModel()
		if convErr != nil {
			return nil, convErr
		}

		advisories = append(advisories, advisory)
	}

	return advisories, nil
}

// marshalRadii encodes radii as JSONB, mapping an empty set to NULL.
func marshalRadii(radii model.QuadrantRadii) ([]byte, error) {
	if len(radii) == 0 {
		return nil, nil
	}

	data, marshalErr := json.Marshal(radii)
	if marshalErr != nil {
		return nil, fmt.Errorf("encode radii: %w", marshalErr)
	}

	return data, nil
}
