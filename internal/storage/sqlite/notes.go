package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/clinotect/noteengine/internal/storage"
	"github.com/clinotect/noteengine/internal/types"
)

const noteBatchSize = 1000

// UpsertNotes implements storage.Store. Uniqueness is (tenant_id,
// patient_id, date_of_service); on conflict the insert is skipped.
func (s *Store) UpsertNotes(ctx context.Context, notes []*types.Note) (storage.BatchResult, error) {
	var total storage.BatchResult
	for start := 0; start < len(notes); start += noteBatchSize {
		end := min(start+noteBatchSize, len(notes))
		result, err := s.upsertNoteBatch(ctx, notes[start:end])
		if err != nil {
			return total, err
		}
		total.Add(result)
	}
	return total, nil
}

func (s *Store) upsertNoteBatch(ctx context.Context, batch []*types.Note) (storage.BatchResult, error) {
	var result storage.BatchResult
	batchErr := withRetry(ctx, func() error {
		result = storage.BatchResult{}
		conn, err := s.conn(ctx)
		if err != nil {
			return fmt.Errorf("%w: %v", storage.ErrTransientStore, err)
		}
		defer conn.Close()

		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("%w: %v", storage.ErrTransientStore, err)
		}
		defer func() { _ = tx.Rollback() }()

		for _, n := range batch {
			if n.PatientID == "" || n.TenantID == "" {
				return fmt.Errorf("%w: note missing patient_id/tenant_id", storage.ErrValidation)
			}
			res, execErr := tx.ExecContext(ctx, `
				INSERT INTO notes (id, tenant_id, patient_id, date_of_service, text, provider_id)
				VALUES (?, ?, ?, ?, ?, ?)
				ON CONFLICT (tenant_id, patient_id, date_of_service) DO NOTHING
			`, n.ID, n.TenantID, n.PatientID, n.DateOfService.UTC().Format(time.RFC3339), n.Text, n.ProviderID)
			if execErr != nil {
				return fmt.Errorf("%w: %v", storage.ErrBatchFatal, execErr)
			}
			if cnt, _ := res.RowsAffected(); cnt > 0 {
				result.Inserted++
			} else {
				result.Skipped++
			}
		}
		return tx.Commit()
	})

	if batchErr != nil {
		return s.insertNotesPerRow(ctx, batch)
	}
	return result, nil
}

func (s *Store) insertNotesPerRow(ctx context.Context, notes []*types.Note) (storage.BatchResult, error) {
	var result storage.BatchResult
	conn, err := s.conn(ctx)
	if err != nil {
		return result, fmt.Errorf("%w: %v", storage.ErrTransientStore, err)
	}
	defer conn.Close()

	for _, n := range notes {
		if n.PatientID == "" || n.TenantID == "" {
			result.Failed++
			continue
		}
		res, execErr := conn.ExecContext(ctx, `
			INSERT INTO notes (id, tenant_id, patient_id, date_of_service, text, provider_id)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (tenant_id, patient_id, date_of_service) DO NOTHING
		`, n.ID, n.TenantID, n.PatientID, n.DateOfService.UTC().Format(time.RFC3339), n.Text, n.ProviderID)
		if execErr != nil {
			result.Failed++
			continue
		}
		if cnt, _ := res.RowsAffected(); cnt > 0 {
			result.Inserted++
		} else {
			result.Skipped++
		}
	}
	return result, nil
}

func scanNote(rows *sql.Rows) (*types.Note, error) {
	var n types.Note
	var dos string
	var provider sql.NullString
	if err := rows.Scan(&n.ID, &n.TenantID, &n.PatientID, &dos, &n.Text, &provider); err != nil {
		return nil, err
	}
	n.ProviderID = provider.String
	t, err := time.Parse(time.RFC3339, dos)
	if err != nil {
		return nil, fmt.Errorf("parse date_of_service: %w", err)
	}
	n.DateOfService = t
	return &n, nil
}

// ListNotesByTenant implements storage.Store.
func (s *Store) ListNotesByTenant(ctx context.Context, tenantID string, offset, limit int) (storage.NotesPage, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, patient_id, date_of_service, text, provider_id
		FROM notes WHERE tenant_id = ?
		ORDER BY patient_id, date_of_service
		LIMIT ? OFFSET ?
	`, tenantID, limit+1, offset)
	if err != nil {
		return storage.NotesPage{}, storage.WrapDBError("list notes", err)
	}
	defer rows.Close()

	var page storage.NotesPage
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return storage.NotesPage{}, err
		}
		page.Notes = append(page.Notes, n)
	}
	if len(page.Notes) > limit {
		page.Notes = page.Notes[:limit]
		page.HasMore = true
	}
	page.NextOffset = offset + len(page.Notes)
	return page, rows.Err()
}

// NotesWithoutMentions implements storage.Store: returns notes for
// patients that have no persisted mentions yet, the candidate set for a
// resumable extraction attempt.
func (s *Store) NotesWithoutMentions(ctx context.Context, tenantID string) ([]*types.Note, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT n.id, n.tenant_id, n.patient_id, n.date_of_service, n.text, n.provider_id
		FROM notes n
		WHERE n.tenant_id = ?
		AND NOT EXISTS (
			SELECT 1 FROM mentions m
			WHERE m.tenant_id = n.tenant_id AND m.patient_id = n.patient_id
		)
		ORDER BY n.patient_id, n.date_of_service
	`, tenantID)
	if err != nil {
		return nil, storage.WrapDBError("notes without mentions", err)
	}
	defer rows.Close()

	var notes []*types.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}
