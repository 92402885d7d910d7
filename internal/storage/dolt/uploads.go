package dolt

import (
	"context"
	"time"

	"github.com/clinotect/noteengine/internal/storage"
	"github.com/clinotect/noteengine/internal/types"
)

// RecordUpload implements storage.Store.
func (s *Store) RecordUpload(ctx context.Context, tracking types.UploadTracking) error {
	return withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT IGNORE INTO upload_tracking (upload_id, tenant_id, file_name, processed_records, new_patients, new_notes, duration_ms, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			tracking.UploadID, tracking.TenantID, tracking.FileName,
			tracking.ProcessedRecords, tracking.NewPatients, tracking.NewNotes,
			tracking.Duration.Milliseconds(), tracking.CreatedAt.UTC().Format(time.RFC3339),
		)
		return storage.WrapDBError("record upload", err)
	})
}
