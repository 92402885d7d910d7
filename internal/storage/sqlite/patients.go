package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/clinotect/noteengine/internal/storage"
	"github.com/clinotect/noteengine/internal/types"
)

const patientBatchSize = 1000

// UpsertPatients implements storage.Store. Patients are immutable once
// inserted; a (tenant_id, patient_id) conflict is skipped.
func (s *Store) UpsertPatients(ctx context.Context, patients []*types.Patient) (storage.BatchResult, error) {
	var total storage.BatchResult
	for start := 0; start < len(patients); start += patientBatchSize {
		end := min(start+patientBatchSize, len(patients))
		batch := patients[start:end]

		result, err := s.upsertPatientBatch(ctx, batch)
		if err != nil {
			return total, err
		}
		total.Add(result)
	}
	return total, nil
}

// upsertPatientBatch attempts a single transactional multi-row insert;
// on any structural failure it falls back to the per-row path so one
// malformed patient doesn't poison the rest of the batch.
func (s *Store) upsertPatientBatch(ctx context.Context, batch []*types.Patient) (storage.BatchResult, error) {
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

		for _, p := range batch {
			demo, merr := json.Marshal(p.Demographics)
			if merr != nil {
				return fmt.Errorf("%w: marshal demographics: %v", storage.ErrBatchFatal, merr)
			}
			res, execErr := tx.ExecContext(ctx, `
				INSERT INTO patients (tenant_id, patient_id, display_name, demographics)
				VALUES (?, ?, ?, ?)
				ON CONFLICT (tenant_id, patient_id) DO NOTHING
			`, p.TenantID, p.PatientID, p.DisplayName, string(demo))
			if execErr != nil {
				return fmt.Errorf("%w: %v", storage.ErrBatchFatal, execErr)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				result.Inserted++
			} else {
				result.Skipped++
			}
		}
		return tx.Commit()
	})

	if batchErr != nil {
		return s.insertPatientsPerRow(ctx, batch)
	}
	return result, nil
}

// insertPatientsPerRow inserts one row at a time outside a transaction
// so a single malformed row does not block the rest of the batch.
func (s *Store) insertPatientsPerRow(ctx context.Context, patients []*types.Patient) (storage.BatchResult, error) {
	var result storage.BatchResult
	conn, err := s.conn(ctx)
	if err != nil {
		return result, fmt.Errorf("%w: %v", storage.ErrTransientStore, err)
	}
	defer conn.Close()

	for _, p := range patients {
		if p.PatientID == "" || p.TenantID == "" {
			result.Failed++
			continue
		}
		demo, _ := json.Marshal(p.Demographics)
		res, execErr := conn.ExecContext(ctx, `
			INSERT INTO patients (tenant_id, patient_id, display_name, demographics)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (tenant_id, patient_id) DO NOTHING
		`, p.TenantID, p.PatientID, p.DisplayName, string(demo))
		if execErr != nil {
			result.Failed++
			continue
		}
		if n, _ := res.RowsAffected(); n > 0 {
			result.Inserted++
		} else {
			result.Skipped++
		}
	}
	return result, nil
}
