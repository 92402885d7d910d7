// Package storage defines the persistence gateway contract:
// idempotent bulk writes of patients, notes, dictionary entries, and
// mentions, plus the read paths the rest of the pipeline depends on.
package storage

import (
	"context"
	"time"

	"github.com/clinotect/noteengine/internal/types"
)

// BatchResult reports the outcome of a bulk write. A
// non-zero Failed does not abort the pipeline; it is recorded and
// surfaced through the Progress Bus.
type BatchResult struct {
	Inserted int
	Skipped  int
	Failed   int
}

// Add accumulates another BatchResult into this one.
func (r *BatchResult) Add(other BatchResult) {
	r.Inserted += other.Inserted
	r.Skipped += other.Skipped
	r.Failed += other.Failed
}

// NotesPage is a single page of a paginated note listing.
type NotesPage struct {
	Notes      []*types.Note
	NextOffset int
	HasMore    bool
}

// PatientMentionCount is one row of the mentions_per_patient
// aggregate used for risk stratification.
type PatientMentionCount struct {
	PatientID            string
	DistinctSegmentCount int
}

// EntityCounts reports row counts per entity for a tenant.
type EntityCounts struct {
	Patients   int
	Notes      int
	Dictionary int
	Mentions   int
}

// Store is the Persistence Gateway contract. Both the embedded sqlite
// backend and the server-mode Dolt/MySQL backend implement it, selected
// at startup by internal/storage/factory.
type Store interface {
	// UpsertPatients bulk-inserts patients, skipping (tenant_id,
	// patient_id) conflicts. Batch size defaults to 1,000.
	UpsertPatients(ctx context.Context, patients []*types.Patient) (BatchResult, error)

	// UpsertNotes bulk-inserts notes, skipping (tenant_id, patient_id,
	// date_of_service) conflicts. Batch size defaults to 1,000.
	UpsertNotes(ctx context.Context, notes []*types.Note) (BatchResult, error)

	// UpsertDictionary bulk-inserts dictionary entries, skipping
	// (tenant_id, symptom_id) conflicts. Batch size defaults to 500.
	UpsertDictionary(ctx context.Context, entries []*types.DictionaryEntry) (BatchResult, error)

	// UpsertMentions bulk-inserts mentions, skipping (tenant_id,
	// patient_id, segment, date_of_service, position_in_text)
	// conflicts. Batch size defaults to 1,000.
	UpsertMentions(ctx context.Context, mentions []*types.Mention) (BatchResult, error)

	// ListNotesByTenant returns a page of notes for a tenant.
	ListNotesByTenant(ctx context.Context, tenantID string, offset, limit int) (NotesPage, error)

	// NotesWithoutMentions returns the notes for a tenant belonging to
	// patients for whom no mention has yet been persisted — the
	// candidate set for a (resumable) extraction attempt, computed as
	// a left-anti-join on patient_id.
	NotesWithoutMentions(ctx context.Context, tenantID string) ([]*types.Note, error)

	// ListMentionsByPatient returns all mentions for a single patient.
	ListMentionsByPatient(ctx context.Context, tenantID, patientID string) ([]*types.Mention, error)

	// ListMentionsByTenant returns all mentions for a tenant.
	ListMentionsByTenant(ctx context.Context, tenantID string) ([]*types.Mention, error)

	// CountEntities returns row counts per entity for a tenant.
	CountEntities(ctx context.Context, tenantID string) (EntityCounts, error)

	// MentionsPerPatient returns the distinct-segment-count aggregate
	// used for risk stratification.
	MentionsPerPatient(ctx context.Context, tenantID string) ([]PatientMentionCount, error)

	// LoadDictionary returns the tenant's persisted dictionary, or an
	// empty slice if none has been loaded yet.
	LoadDictionary(ctx context.Context, tenantID string) ([]*types.DictionaryEntry, error)

	// ClearMentions deletes all mentions for a tenant.
	ClearMentions(ctx context.Context, tenantID string) error

	// PurgeTenant deletes all rows for a tenant across every entity, in
	// the load-bearing order mentions -> notes -> patients -> upload
	// tracking -> process status, followed by jobs and dictionary.
	PurgeTenant(ctx context.Context, tenantID string) error

	// UpsertProcessStatus upserts the (tenant_id, process_type) row.
	UpsertProcessStatus(ctx context.Context, status types.ProcessStatus) error

	// GetProcessStatus returns the persisted status, or ErrNotFound.
	GetProcessStatus(ctx context.Context, tenantID string, processType types.ProcessType) (types.ProcessStatus, error)

	// RecordUpload persists an upload-tracking row.
	RecordUpload(ctx context.Context, tracking types.UploadTracking) error

	// UpsertJob persists the current snapshot of a job record so that
	// GET /jobs/{id} and GET /jobs survive a process restart.
	UpsertJob(ctx context.Context, job types.Job) error

	// GetJob returns a single job by id, or ErrNotFound.
	GetJob(ctx context.Context, jobID string) (types.Job, error)

	// ListJobsByTenant returns jobs for a tenant ordered by most recent
	// start.
	ListJobsByTenant(ctx context.Context, tenantID string) ([]types.Job, error)

	// DeleteJobsOlderThan purges completed/failed/cancelled jobs whose
	// EndedAt predates cutoff.
	DeleteJobsOlderThan(ctx context.Context, cutoff time.Time) (int, error)

	// Close releases any resources held by the store.
	Close() error
}
