package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/stormtrack/stormtrack/internal/model"
)

// zoneRow mirrors the zones table; geometry is GeoJSON, parameters JSONB.
type zoneRow struct {
	model.Zone
	GeometryJSON   []byte `db:"geometry"`
	ParametersJSON []byte `db:"parameters"`
}

func (r *zoneRow) toModel() (model.Zone, error) {
	zone := r.Zone

	geometry, geomErr := geojson.UnmarshalGeometry(r.GeometryJSON)
	if geomErr != nil {
		return model.Zone{}, fmt.Errorf("decode geometry for zone %d: %w", r.ID, geomErr)
	}

	switch g := geometry.Geometry().(type) {
	case orb.MultiPolygon:
		zone.Geometry = g
	case orb.Polygon:
		zone.Geometry = orb.MultiPolygon{g}
	default:
		return model.Zone{}, fmt.Errorf("zone %d holds unexpected geometry %T", r.ID, g)
	}

	if len(r.ParametersJSON) > 0 {
		unmarshalErr := json.Unmarshal(r.ParametersJSON, &zone.Parameters)
		if unmarshalErr != nil {
			return model.Zone{}, fmt.Errorf("decode parameters for zone %d: %w", r.ID, unmarshalErr)
		}
	}

	return zone, nil
}

// ReplaceZones atomically swaps all zones of a storm for the given set. The
// delete always runs, so a nil set clears the storm's zones.
func (s *Store) ReplaceZones(ctx context.Context, stormID int64, zones []model.Zone) error {
	const insertQuery = `
		INSERT INTO zones (
			storm_id, zone_type, generated_at_utc, valid_from_utc, valid_to_utc,
			geometry, method_version, parameters
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		_, deleteErr := tx.ExecContext(ctx,
			`DELETE FROM zones WHERE storm_id = $1`, stormID)
		if deleteErr != nil {
			return fmt.Errorf("clear zones for storm %d: %w", stormID, deleteErr)
		}

		for _, zone := range zones {
			geometryJSON, geomErr := json.Marshal(geojson.NewGeometry(zone.Geometry))
			if geomErr != nil {
				return fmt.Errorf("encode %s zone geometry: %w", zone.Type, geomErr)
			}

			var parametersJSON []byte

			if len(zone.Parameters) > 0 {
				var paramErr error

				parametersJSON, paramErr = json.Marshal(zone.Parameters)
				if paramErr != nil {
					return fmt.Errorf("encode %s zone parameters: %w", zone.Type, paramErr)
				}
			}

			_, insertErr := tx.ExecContext(ctx, insertQuery,
				stormID, zone.Type, zone.GeneratedAtUTC, zone.ValidFromUTC, zone.ValidToUTC,
				geometryJSON, zone.MethodVersion, parametersJSON,
			)
			if insertErr != nil {
				return fmt.Errorf("insert %s zone: %w", zone.Type, insertErr)
			}
		}

		return nil
	})
}

// ListZones returns all zones of a storm, warnings first.
func (s *Store) ListZones(ctx context.Context, stormID int64) ([]model.Zone, error) {
	var rows []zoneRow

	selectErr := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM zones WHERE storm_id = $1 ORDER BY zone_type DESC`, stormID)
	if selectErr != nil {
		return nil, fmt.Errorf("list zones for storm %d: %w", stormID, selectErr)
	}

	zones := make([]model.Zone, 0, len(rows))

	for i := range rows {
		zone, convErr := rows[i].toModel()
		if convErr != nil {
			return nil, convErr
		}

		zones = append(zones, zone)
	}

	return zones, nil
}

// CountActiveZones returns how many zones of a storm are still valid at the
// given instant; archival refuses storms with live alerts.
func (s *Store) CountActiveZones(ctx context.Context, stormID int64, at time.Time) (int, error) {
	var count int

	getErr := s.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM zones WHERE storm_id = $1 AND valid_to_utc > $2`,
		stormID, at)
	if getErr != nil {
		return 0, fmt.Errorf("count active zones for storm %d: %w", stormID, getErr)
	}

	return count, nil
}
