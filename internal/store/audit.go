package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/stormtrack/stormtrack/internal/model"
)

// AppendAudit writes one append-only audit record for a storm.
func (s *Store) AppendAudit(ctx context.Context, stormID int64, action string,
	detail map[string]any, at time.Time,
) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		return appendAuditTx(ctx, tx, stormID, action, detail, at)
	})
}

// appendAuditTx inserts the audit row inside an existing transaction so
// callers can pair it with the action it records.
func appendAuditTx(ctx context.Context, tx *sqlx.Tx, stormID int64, action string,
	detail map[string]any, at time.Time,
) error {
	var detailJSON []byte

	if len(detail) > 0 {
		var marshalErr error

		detailJSON, marshalErr = json.Marshal(detail)
		if marshalErr != nil {
			return fmt.Errorf("encode audit detail: %w", marshalErr)
		}
	}

	_, execErr := tx.ExecContext(ctx,
		`INSERT INTO audit_log (id, storm_id, action, detail, at_utc)
		 VALUES ($1, $2, $3, $4, $5)`,
		uuid.NewString(), stormID, action, detailJSON, at)
	if execErr != nil {
		return fmt.Errorf("append audit %s: %w", action, execErr)
	}

	return nil
}

// ListAudit returns the audit trail of a storm, oldest first.
func (s *Store) ListAudit(ctx context.Context, stormID int64) ([]model.AuditEntry, error) {
	type auditRow struct {
		model.AuditEntry
		DetailJSON []byte `db:"detail"`
	}

	var rows []auditRow

	selectErr := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM audit_log WHERE storm_id = $1 ORDER BY at_utc`, stormID)
	if selectErr != nil {
		return nil, fmt.Errorf("list audit for storm %d: %w", stormID, selectErr)
	}

	entries := make([]model.AuditEntry, 0, len(rows))

	for i := range rows {
		entry := rows[i].AuditEntry

		if len(rows[i].DetailJSON) > 0 {
			unmarshalErr := json.Unmarshal(rows[i].DetailJSON, &entry.Detail)
			if unmarshalErr != nil {
				return nil, fmt.Errorf("decode audit detail %s: %w", entry.ID, unmarshalErr)
			}
		}

		entries = append(entries, entry)
	}

	return entries, nil
}
