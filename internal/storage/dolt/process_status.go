package dolt

import (
	"context"
	"database/sql"
	"time"

	"github.com/clinotect/noteengine/internal/storage"
	"github.com/clinotect/noteengine/internal/types"
)

// UpsertProcessStatus implements storage.Store. See
// internal/storage/sqlite's UpsertProcessStatus for the monotonic-
// percentage rationale; the logic is identical here, translated to the
// MySQL upsert dialect (VALUES() instead of excluded.*).
func (s *Store) UpsertProcessStatus(ctx context.Context, status types.ProcessStatus) error {
	return withRetry(ctx, func() error {
		conn, err := s.conn(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()

		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		var existing float64
		err = tx.QueryRowContext(ctx, `
			SELECT percentage FROM process_status WHERE tenant_id = ? AND process_type = ?
		`, status.TenantID, string(status.ProcessType)).Scan(&existing)
		switch {
		case err == sql.ErrNoRows:
		case err != nil:
			return err
		default:
			if existing > status.Percentage && !storage.BypassesPercentageMonotonicity(status.State) {
				status.Percentage = existing
			}
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO process_status (
				tenant_id, process_type, state, percentage, message, stage,
				total_items, processed_items, last_update, start_time, end_time, error
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE
				state = VALUES(state),
				percentage = VALUES(percentage),
				message = VALUES(message),
				stage = VALUES(stage),
				total_items = VALUES(total_items),
				processed_items = VALUES(processed_items),
				last_update = VALUES(last_update),
				start_time = COALESCE(start_time, VALUES(start_time)),
				end_time = VALUES(end_time),
				error = VALUES(error)
		`,
			status.TenantID, string(status.ProcessType), status.State, status.Percentage, status.Message, status.Stage,
			nullableInt(status.TotalItems), nullableInt(status.ProcessedItems),
			status.LastUpdate.UTC().Format(time.RFC3339), nullableTime(status.Start), nullableTime(status.End), status.Error,
		)
		if err != nil {
			return err
		}
		return tx.Commit()
	})
}

// GetProcessStatus implements storage.Store.
func (s *Store) GetProcessStatus(ctx context.Context, tenantID string, processType types.ProcessType) (types.ProcessStatus, error) {
	var st types.ProcessStatus
	var lastUpdate string
	var start, end sql.NullString
	var totalItems, processedItems sql.NullInt64
	var message, stage, errMsg sql.NullString

	row := s.db.QueryRowContext(ctx, `
		SELECT tenant_id, process_type, state, percentage, message, stage,
		       total_items, processed_items, last_update, start_time, end_time, error
		FROM process_status WHERE tenant_id = ? AND process_type = ?
	`, tenantID, string(processType))
	err := row.Scan(&st.TenantID, &st.ProcessType, &st.State, &st.Percentage, &message, &stage,
		&totalItems, &processedItems, &lastUpdate, &start, &end, &errMsg)
	if err != nil {
		return types.ProcessStatus{}, storage.WrapDBError("get process status", err)
	}

	st.Message = message.String
	st.Stage = stage.String
	st.Error = errMsg.String
	if totalItems.Valid {
		v := int(totalItems.Int64)
		st.TotalItems = &v
	}
	if processedItems.Valid {
		v := int(processedItems.Int64)
		st.ProcessedItems = &v
	}
	if t, perr := time.Parse(time.RFC3339, lastUpdate); perr == nil {
		st.LastUpdate = t
	}
	if start.Valid {
		if t, perr := time.Parse(time.RFC3339, start.String); perr == nil {
			st.Start = &t
		}
	}
	if end.Valid {
		if t, perr := time.Parse(time.RFC3339, end.String); perr == nil {
			st.End = &t
		}
	}
	return st, nil
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableTime(v *time.Time) any {
	if v == nil {
		return nil
	}
	return v.UTC().Format(time.RFC3339)
}
