// Package upload parses a tenant's uploaded note file into the
// normalized Patient/Note stream the job manager persists. Parsing is
// intentionally minimal: one CSV row per note, patients synthesized
// from the rows that reference them.
package upload

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/clinotect/noteengine/internal/types"
)

// Result mirrors the counts the Job Manager persists into
// UploadTracking and reports via upload_completed.
type Result struct {
	Patients []*types.Patient
	Notes    []*types.Note

	ProcessedRecords int
	NewPatients      int
	NewNotes         int
}

// ProgressFunc is invoked after each accepted row, reporting running
// totals for the upload_progress event. Skipped rows do not invoke it.
type ProgressFunc func(processed, total int)

// Parse reads a CSV with header columns patient_id, date_of_service,
// text, provider_id?, display_name?. Rows sharing a patient_id are
// folded into a single Patient; every accepted row becomes one Note.
// Rows with an empty patient_id or an unparseable date_of_service are
// skipped.
func Parse(r io.Reader, tenantID string, totalHint int, onProgress ProgressFunc) (*Result, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("upload: read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(strings.ToLower(h))] = i
	}
	for _, required := range []string{"patient_id", "date_of_service", "text"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("upload: missing required column %q", required)
		}
	}

	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	res := &Result{}
	seenPatients := make(map[string]bool)

	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("upload: read row %d: %w", res.ProcessedRecords+1, err)
		}

		patientID := field(row, "patient_id")
		if patientID == "" {
			continue
		}
		dos, ok := parseDate(field(row, "date_of_service"))
		if !ok {
			continue
		}

		if !seenPatients[patientID] {
			seenPatients[patientID] = true
			res.Patients = append(res.Patients, &types.Patient{
				TenantID:    tenantID,
				PatientID:   patientID,
				DisplayName: field(row, "display_name"),
			})
			res.NewPatients++
		}

		res.Notes = append(res.Notes, &types.Note{
			ID:            fmt.Sprintf("%s-%s-%d", tenantID, patientID, len(res.Notes)),
			TenantID:      tenantID,
			PatientID:     patientID,
			DateOfService: dos,
			Text:          field(row, "text"),
			ProviderID:    field(row, "provider_id"),
		})
		res.NewNotes++
		res.ProcessedRecords++

		if onProgress != nil {
			onProgress(res.ProcessedRecords, totalHint)
		}
	}

	return res, nil
}

// parseDate accepts RFC 3339 timestamps and bare dates, the two forms
// exported clinical systems actually produce.
func parseDate(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
