package dolt

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/clinotect/noteengine/internal/storage"
	"github.com/clinotect/noteengine/internal/types"
)

const mentionBatchSize = 1000

// UpsertMentions implements storage.Store.
func (s *Store) UpsertMentions(ctx context.Context, mentions []*types.Mention) (storage.BatchResult, error) {
	var total storage.BatchResult
	for start := 0; start < len(mentions); start += mentionBatchSize {
		end := min(start+mentionBatchSize, len(mentions))
		result, err := s.upsertMentionBatch(ctx, mentions[start:end])
		if err != nil {
			return total, err
		}
		total.Add(result)
	}
	return total, nil
}

func (s *Store) upsertMentionBatch(ctx context.Context, batch []*types.Mention) (storage.BatchResult, error) {
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

		for _, m := range batch {
			if m.PatientID == "" || m.TenantID == "" {
				return fmt.Errorf("%w: mention missing patient_id/tenant_id", storage.ErrValidation)
			}
			res, execErr := tx.ExecContext(ctx, insertMentionSQL, mentionArgs(m)...)
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
		return s.insertMentionsPerRow(ctx, batch)
	}
	return result, nil
}

func (s *Store) insertMentionsPerRow(ctx context.Context, mentions []*types.Mention) (storage.BatchResult, error) {
	var result storage.BatchResult
	conn, err := s.conn(ctx)
	if err != nil {
		return result, err
	}
	defer conn.Close()

	for _, m := range mentions {
		if m.PatientID == "" || m.TenantID == "" {
			result.Failed++
			continue
		}
		res, execErr := conn.ExecContext(ctx, insertMentionSQL, mentionArgs(m)...)
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

const insertMentionSQL = `
	INSERT IGNORE INTO mentions (
		mention_id, tenant_id, patient_id, segment, date_of_service, position_in_text,
		symptom_id, diagnosis, diagnosis_code, diagnostic_category, kind, hrsn_code,
		present, detected, validated,
		housing_status, food_status, financial_status, transportation_needs, has_a_car,
		utility_insecurity, childcare_needs, elder_care_needs, employment_status,
		education_needs, legal_needs, social_isolation, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

func mentionArgs(m *types.Mention) []any {
	f := m.HRSNFlags
	return []any{
		m.MentionID, m.TenantID, m.PatientID, m.Segment, m.DateOfService.UTC().Format(time.RFC3339), m.PositionInText,
		m.SymptomID, m.Diagnosis, m.DiagnosisCode, m.DiagnosticCategory, string(m.Kind), m.HRSNCode,
		m.Present, m.Detected, m.Validated,
		nullIfEmpty(f.HousingStatus), nullIfEmpty(f.FoodStatus), nullIfEmpty(f.FinancialStatus),
		nullIfEmpty(f.TransportationNeeds), nullIfEmpty(f.HasACar), nullIfEmpty(f.UtilityInsecurity),
		nullIfEmpty(f.ChildcareNeeds), nullIfEmpty(f.ElderCareNeeds), nullIfEmpty(f.EmploymentStatus),
		nullIfEmpty(f.EducationNeeds), nullIfEmpty(f.LegalNeeds), nullIfEmpty(f.SocialIsolation),
		m.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func scanMention(rows *sql.Rows) (*types.Mention, error) {
	var m types.Mention
	var dos, createdAt string
	var housing, food, financial, transport, car, utility, childcare, elder, employment, education, legal, isolation sql.NullString
	err := rows.Scan(
		&m.MentionID, &m.TenantID, &m.PatientID, &m.Segment, &dos, &m.PositionInText,
		&m.SymptomID, &m.Diagnosis, &m.DiagnosisCode, &m.DiagnosticCategory, &m.Kind, &m.HRSNCode,
		&m.Present, &m.Detected, &m.Validated,
		&housing, &food, &financial, &transport, &car, &utility, &childcare, &elder, &employment, &education, &legal, &isolation,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}
	m.HRSNFlags = types.HRSNFlags{
		HousingStatus:       housing.String,
		FoodStatus:          food.String,
		FinancialStatus:     financial.String,
		TransportationNeeds: transport.String,
		HasACar:             car.String,
		UtilityInsecurity:   utility.String,
		ChildcareNeeds:      childcare.String,
		ElderCareNeeds:      elder.String,
		EmploymentStatus:    employment.String,
		EducationNeeds:      education.String,
		LegalNeeds:          legal.String,
		SocialIsolation:     isolation.String,
	}
	t, err := time.Parse(time.RFC3339, dos)
	if err != nil {
		return nil, fmt.Errorf("parse date_of_service: %w", err)
	}
	m.DateOfService = t
	ct, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	m.CreatedAt = ct
	return &m, nil
}

const selectMentionColumns = `
	mention_id, tenant_id, patient_id, segment, date_of_service, position_in_text,
	symptom_id, diagnosis, diagnosis_code, diagnostic_category, kind, hrsn_code,
	present, detected, validated,
	housing_status, food_status, financial_status, transportation_needs, has_a_car,
	utility_insecurity, childcare_needs, elder_care_needs, employment_status,
	education_needs, legal_needs, social_isolation, created_at
`

// ListMentionsByPatient implements storage.Store.
func (s *Store) ListMentionsByPatient(ctx context.Context, tenantID, patientID string) ([]*types.Mention, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+selectMentionColumns+`
		FROM mentions WHERE tenant_id = ? AND patient_id = ?
		ORDER BY date_of_service, position_in_text
	`, tenantID, patientID)
	if err != nil {
		return nil, storage.WrapDBError("list mentions by patient", err)
	}
	defer rows.Close()
	return collectMentions(rows)
}

// ListMentionsByTenant implements storage.Store.
func (s *Store) ListMentionsByTenant(ctx context.Context, tenantID string) ([]*types.Mention, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+selectMentionColumns+`
		FROM mentions WHERE tenant_id = ?
		ORDER BY patient_id, date_of_service, position_in_text
	`, tenantID)
	if err != nil {
		return nil, storage.WrapDBError("list mentions by tenant", err)
	}
	defer rows.Close()
	return collectMentions(rows)
}

func collectMentions(rows *sql.Rows) ([]*types.Mention, error) {
	var mentions []*types.Mention
	for rows.Next() {
		m, err := scanMention(rows)
		if err != nil {
			return nil, err
		}
		mentions = append(mentions, m)
	}
	return mentions, rows.Err()
}

// CountEntities implements storage.Store.
func (s *Store) CountEntities(ctx context.Context, tenantID string) (storage.EntityCounts, error) {
	var c storage.EntityCounts
	row := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM patients WHERE tenant_id = ?),
			(SELECT COUNT(*) FROM notes WHERE tenant_id = ?),
			(SELECT COUNT(*) FROM dictionary WHERE tenant_id = ?),
			(SELECT COUNT(*) FROM mentions WHERE tenant_id = ?)
	`, tenantID, tenantID, tenantID, tenantID)
	if err := row.Scan(&c.Patients, &c.Notes, &c.Dictionary, &c.Mentions); err != nil {
		return storage.EntityCounts{}, storage.WrapDBError("count entities", err)
	}
	return c, nil
}

// MentionsPerPatient implements storage.Store.
func (s *Store) MentionsPerPatient(ctx context.Context, tenantID string) ([]storage.PatientMentionCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT patient_id, COUNT(DISTINCT segment) FROM mentions
		WHERE tenant_id = ?
		GROUP BY patient_id
		ORDER BY patient_id
	`, tenantID)
	if err != nil {
		return nil, storage.WrapDBError("mentions per patient", err)
	}
	defer rows.Close()

	var counts []storage.PatientMentionCount
	for rows.Next() {
		var c storage.PatientMentionCount
		if err := rows.Scan(&c.PatientID, &c.DistinctSegmentCount); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// ClearMentions implements storage.Store.
func (s *Store) ClearMentions(ctx context.Context, tenantID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM mentions WHERE tenant_id = ?`, tenantID)
	return storage.WrapDBError("clear mentions", err)
}
