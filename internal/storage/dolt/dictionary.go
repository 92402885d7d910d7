package dolt

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/clinotect/noteengine/internal/storage"
	"github.com/clinotect/noteengine/internal/types"
)

const dictionaryBatchSize = 500

// UpsertDictionary implements storage.Store.
func (s *Store) UpsertDictionary(ctx context.Context, entries []*types.DictionaryEntry) (storage.BatchResult, error) {
	var total storage.BatchResult
	for start := 0; start < len(entries); start += dictionaryBatchSize {
		end := min(start+dictionaryBatchSize, len(entries))
		result, err := s.upsertDictionaryBatch(ctx, entries[start:end])
		if err != nil {
			return total, err
		}
		total.Add(result)
	}
	return total, nil
}

func (s *Store) upsertDictionaryBatch(ctx context.Context, batch []*types.DictionaryEntry) (storage.BatchResult, error) {
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

		for _, e := range batch {
			if e.SymptomID == "" || e.TenantID == "" {
				return fmt.Errorf("%w: dictionary entry missing symptom_id/tenant_id", storage.ErrValidation)
			}
			res, execErr := tx.ExecContext(ctx, `
				INSERT IGNORE INTO dictionary (tenant_id, symptom_id, segment, diagnosis, diagnosis_code, diagnostic_category, kind, hrsn_code, hrsn_mapping)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, e.TenantID, e.SymptomID, e.Segment, e.Diagnosis, e.DiagnosisCode, e.DiagnosticCategory, string(e.Kind), e.HRSNCode, string(e.HRSNMapping))
			if execErr != nil {
				return execErr
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
		return s.insertDictionaryPerRow(ctx, batch)
	}
	return result, nil
}

func (s *Store) insertDictionaryPerRow(ctx context.Context, entries []*types.DictionaryEntry) (storage.BatchResult, error) {
	var result storage.BatchResult
	conn, err := s.conn(ctx)
	if err != nil {
		return result, err
	}
	defer conn.Close()

	for _, e := range entries {
		if e.SymptomID == "" || e.TenantID == "" {
			result.Failed++
			continue
		}
		res, execErr := conn.ExecContext(ctx, `
			INSERT IGNORE INTO dictionary (tenant_id, symptom_id, segment, diagnosis, diagnosis_code, diagnostic_category, kind, hrsn_code, hrsn_mapping)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, e.TenantID, e.SymptomID, e.Segment, e.Diagnosis, e.DiagnosisCode, e.DiagnosticCategory, string(e.Kind), e.HRSNCode, string(e.HRSNMapping))
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

func scanDictionaryEntry(rows *sql.Rows) (*types.DictionaryEntry, error) {
	var e types.DictionaryEntry
	var diagnosis, diagnosisCode, category, hrsnCode, hrsnMapping sql.NullString
	var kind string
	if err := rows.Scan(&e.TenantID, &e.SymptomID, &e.Segment, &diagnosis, &diagnosisCode, &category, &kind, &hrsnCode, &hrsnMapping); err != nil {
		return nil, err
	}
	e.Diagnosis = diagnosis.String
	e.DiagnosisCode = diagnosisCode.String
	e.DiagnosticCategory = category.String
	e.Kind = types.EntryKind(kind)
	e.HRSNCode = hrsnCode.String
	e.HRSNMapping = types.HRSNMapping(hrsnMapping.String)
	return &e, nil
}

// LoadDictionary implements storage.Store.
func (s *Store) LoadDictionary(ctx context.Context, tenantID string) ([]*types.DictionaryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tenant_id, symptom_id, segment, diagnosis, diagnosis_code, diagnostic_category, kind, hrsn_code, hrsn_mapping
		FROM dictionary WHERE tenant_id = ?
		ORDER BY CHAR_LENGTH(segment) DESC, segment
	`, tenantID)
	if err != nil {
		return nil, storage.WrapDBError("load dictionary", err)
	}
	defer rows.Close()

	var entries []*types.DictionaryEntry
	for rows.Next() {
		e, err := scanDictionaryEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
