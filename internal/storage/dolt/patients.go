package dolt

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/clinotect/noteengine/internal/storage"
	"github.com/clinotect/noteengine/internal/types"
)

const patientBatchSize = 1000

// UpsertPatients implements storage.Store.
func (s *Store) UpsertPatients(ctx context.Context, patients []*types.Patient) (storage.BatchResult, error) {
	var total storage.BatchResult
	for start := 0; start < len(patients); start += patientBatchSize {
		end := min(start+patientBatchSize, len(patients))
		result, err := s.upsertPatientBatch(ctx, patients[start:end])
		if err != nil {
			return total, err
		}
		total.Add(result)
	}
	return total, nil
}

func (s *Store) upsertPatientBatch(ctx context.Context, batch []*types.Patient) (storage.BatchResult, error) {
	var result storage.BatchResult
	batchErr := withRetry(ctx, func() error {
		result = storage.BatchResult{}
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

		for _, p := range batch {
			demo, merr := json.Marshal(p.Demographics)
			if merr != nil {
				return fmt.Errorf("%w: marshal demographics: %v", storage.ErrBatchFatal, merr)
			}
			res, execErr := tx.ExecContext(ctx, `
				INSERT IGNORE INTO patients (tenant_id, patient_id, display_name, demographics)
				VALUES (?, ?, ?, ?)
			`, p.TenantID, p.PatientID, p.DisplayName, string(demo))
			if execErr != nil {
				return execErr
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

func (s *Store) insertPatientsPerRow(ctx context.Context, patients []*types.Patient) (storage.BatchResult, error) {
	var result storage.BatchResult
	conn, err := s.conn(ctx)
	if err != nil {
		return result, err
	}
	defer conn.Close()

	for _, p := range patients {
		if p.PatientID == "" || p.TenantID == "" {
			result.Failed++
			continue
		}
		demo, _ := json.Marshal(p.Demographics)
		res, execErr := conn.ExecContext(ctx, `
			INSERT IGNORE INTO patients (tenant_id, patient_id, display_name, demographics)
			VALUES (?, ?, ?, ?)
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
