package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/stormtrack/stormtrack/internal/model"
)

// forecastRow mirrors the forecast_points table; radii travel as JSONB.
type forecastRow struct {
	model.ForecastPoint
	RadiiJSON []byte `db:"radii"`
}

func (r *forecastRow) toModel() (model.ForecastPoint, error) {
	point := r.ForecastPoint

	if len(r.RadiiJSON) > 0 {
		unmarshalErr := json.Unmarshal(r.RadiiJSON, &point.Radii)
		if unmarshalErr != nil {
			return model.ForecastPoint{}, fmt.Errorf("decode radii for forecast point %d: %w", r.ID, unmarshalErr)
		}
	}

	return point, nil
}

// ReplaceFinalForecast atomically swaps the storm's final forecast for the
// given point set. Prior final points are demoted rather than deleted, so
// older issuances stay queryable; re-running the same issuance overwrites
// its rows in place. The demote and all inserts share one transaction so
// readers never observe a partial forecast.
func (s *Store) ReplaceFinalForecast(ctx context.Context, stormID int64, points []model.ForecastPoint) error {
	const insertQuery = `
		INSERT INTO forecast_points (
			storm_id, issued_at_utc, valid_at_utc, lead_hours,
			latitude, longitude, vmax_kt, mslp_hpa,
			radii, radii_inferred, member_count, source_tag, is_final
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (storm_id, issued_at_utc, lead_hours) DO UPDATE SET
			valid_at_utc = EXCLUDED.valid_at_utc,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			vmax_kt = EXCLUDED.vmax_kt,
			mslp_hpa = EXCLUDED.mslp_hpa,
			radii = EXCLUDED.radii,
			radii_inferred = EXCLUDED.radii_inferred,
			member_count = EXCLUDED.member_count,
			source_tag = EXCLUDED.source_tag,
			is_final = EXCLUDED.is_final`

	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		_, demoteErr := tx.ExecContext(ctx,
			`UPDATE forecast_points SET is_final = FALSE
			 WHERE storm_id = $1 AND is_final`, stormID)
		if demoteErr != nil {
			return fmt.Errorf("demote final forecast for storm %d: %w", stormID, demoteErr)
		}

		for _, point := range points {
			radiiJSON, marshalErr := marshalRadii(point.Radii)
			if marshalErr != nil {
				return marshalErr
			}

			_, insertErr := tx.ExecContext(ctx, insertQuery,
				stormID, point.IssuedAtUTC, point.ValidAtUTC, point.LeadHours,
				point.Latitude, point.Longitude, point.VmaxKt, point.MslpHpa,
				radiiJSON, point.RadiiInferred, point.MemberCount, point.SourceTag, point.IsFinal,
			)
			if insertErr != nil {
				return fmt.Errorf("insert forecast point +%dh: %w", point.LeadHours, insertErr)
			}
		}

		return nil
	})
}

// LatestFinalForecast returns the storm's current final forecast in lead
// order, or an empty slice when none is stored.
func (s *Store) LatestFinalForecast(ctx context.Context, stormID int64) ([]model.ForecastPoint, error) {
	var rows []forecastRow

	selectErr := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM forecast_points
		 WHERE storm_id = $1 AND is_final
		 ORDER BY lead_hours`, stormID)
	if selectErr != nil {
		return nil, fmt.Errorf("load forecast for storm %d: %w", stormID, selectErr)
	}

	points := make([]model.ForecastPoint, 0, len(rows))

	for i := range rows {
		point, convErr := rows[i].toModel()
		if convErr != nil {
			return nil, convErr
		}

		points = append(points, point)
	}

	return points, nil
}
