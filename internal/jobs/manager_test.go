package jobs_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/clinotect/noteengine/internal/jobs"
	"github.com/clinotect/noteengine/internal/progress"
	"github.com/clinotect/noteengine/internal/storage"
	"github.com/clinotect/noteengine/internal/types"
)

// memStore is a minimal in-memory storage.Store double sufficient to
// drive the Job Manager's upload and extraction lifecycles end to end.
type memStore struct {
	mu sync.Mutex

	patients   []*types.Patient
	notes      []*types.Note
	mentions   []*types.Mention
	dictionary []*types.DictionaryEntry
	uploads    []types.UploadTracking
	jobs       map[string]types.Job
	statuses   map[string]types.ProcessStatus

	dictionaryErr error
	notesErr      error
}

func newMemStore() *memStore {
	return &memStore{jobs: make(map[string]types.Job), statuses: make(map[string]types.ProcessStatus)}
}

func (s *memStore) UpsertPatients(ctx context.Context, patients []*types.Patient) (storage.BatchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patients = append(s.patients, patients...)
	return storage.BatchResult{Inserted: len(patients)}, nil
}

func (s *memStore) UpsertNotes(ctx context.Context, notes []*types.Note) (storage.BatchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes = append(s.notes, notes...)
	return storage.BatchResult{Inserted: len(notes)}, nil
}

func (s *memStore) UpsertDictionary(ctx context.Context, entries []*types.DictionaryEntry) (storage.BatchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dictionary = entries
	return storage.BatchResult{Inserted: len(entries)}, nil
}

func (s *memStore) UpsertMentions(ctx context.Context, mentions []*types.Mention) (storage.BatchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mentions = append(s.mentions, mentions...)
	return storage.BatchResult{Inserted: len(mentions)}, nil
}

func (s *memStore) ListNotesByTenant(ctx context.Context, tenantID string, offset, limit int) (storage.NotesPage, error) {
	return storage.NotesPage{}, nil
}

func (s *memStore) NotesWithoutMentions(ctx context.Context, tenantID string) ([]*types.Note, error) {
	if s.notesErr != nil {
		return nil, s.notesErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*types.Note
	for _, n := range s.notes {
		if n.TenantID == tenantID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *memStore) ListMentionsByPatient(ctx context.Context, tenantID, patientID string) ([]*types.Mention, error) {
	return nil, nil
}

func (s *memStore) ListMentionsByTenant(ctx context.Context, tenantID string) ([]*types.Mention, error) {
	return nil, nil
}

func (s *memStore) CountEntities(ctx context.Context, tenantID string) (storage.EntityCounts, error) {
	return storage.EntityCounts{}, nil
}

func (s *memStore) MentionsPerPatient(ctx context.Context, tenantID string) ([]storage.PatientMentionCount, error) {
	return nil, nil
}

func (s *memStore) LoadDictionary(ctx context.Context, tenantID string) ([]*types.DictionaryEntry, error) {
	if s.dictionaryErr != nil {
		return nil, s.dictionaryErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dictionary, nil
}

func (s *memStore) ClearMentions(ctx context.Context, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mentions = nil
	return nil
}

func (s *memStore) PurgeTenant(ctx context.Context, tenantID string) error { return nil }

func (s *memStore) UpsertProcessStatus(ctx context.Context, status types.ProcessStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[string(status.ProcessType)+"|"+status.TenantID] = status
	return nil
}

func (s *memStore) GetProcessStatus(ctx context.Context, tenantID string, processType types.ProcessType) (types.ProcessStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.statuses[string(processType)+"|"+tenantID]
	if !ok {
		return types.ProcessStatus{}, storage.ErrNotFound
	}
	return st, nil
}

func (s *memStore) RecordUpload(ctx context.Context, tracking types.UploadTracking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads = append(s.uploads, tracking)
	return nil
}

func (s *memStore) UpsertJob(ctx context.Context, job types.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	return nil
}

func (s *memStore) GetJob(ctx context.Context, jobID string) (types.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return types.Job{}, storage.ErrNotFound
	}
	return job, nil
}

func (s *memStore) ListJobsByTenant(ctx context.Context, tenantID string) ([]types.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.Job
	for _, j := range s.jobs {
		if j.TenantID == tenantID {
			out = append(out, j)
		}
	}
	return out, nil
}

func (s *memStore) DeleteJobsOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, j := range s.jobs {
		if j.EndedAt != nil && j.EndedAt.Before(cutoff) {
			delete(s.jobs, id)
			n++
		}
	}
	return n, nil
}

func (s *memStore) Close() error { return nil }

func waitForJobState(t *testing.T, m *jobs.Manager, jobID string, want types.JobState) types.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := m.Get(context.Background(), jobID)
		assert.NoError(t, err)
		if job.State == want || job.State == types.JobFailed || job.State == types.JobCompleted || job.State == types.JobCancelled {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s never reached a terminal state", jobID)
	return types.Job{}
}

func writeUploadCSV(t *testing.T, rows string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "upload.csv")
	assert.NoError(t, os.WriteFile(path, []byte(rows), 0o644))
	return path
}

func TestEnqueueUploadRunsAndAutoChainsExtraction(t *testing.T) {
	store := newMemStore()
	bus := progress.New(store)
	cfg := jobs.DefaultConfig()
	cfg.DictionarySeedPath = writeSeedFor(t)
	m := jobs.New(store, bus, cfg)

	path := writeUploadCSV(t, "patient_id,date_of_service,text\np1,2026-01-01T00:00:00Z,patient reports headache\n")
	jobID, err := m.EnqueueUpload(context.Background(), jobs.UploadRequest{TenantID: "tenant-a", FilePath: path, FileName: "upload.csv"})
	assert.NoError(t, err)

	job := waitForJobState(t, m, jobID, types.JobCompleted)
	assert.Equal(t, types.JobCompleted, job.State)

	jobsForTenant, err := m.ListByTenant(context.Background(), "tenant-a")
	assert.NoError(t, err)

	var foundExtraction bool
	for _, j := range jobsForTenant {
		if j.Kind == types.JobExtraction {
			foundExtraction = true
		}
	}
	assert.True(t, foundExtraction, "expected an auto-chained extraction job")
}

func TestEnqueueUploadFailsWhenFileMissing(t *testing.T) {
	store := newMemStore()
	bus := progress.New(store)
	m := jobs.New(store, bus, jobs.DefaultConfig())

	jobID, err := m.EnqueueUpload(context.Background(), jobs.UploadRequest{TenantID: "tenant-a", FilePath: "/does/not/exist.csv", FileName: "missing.csv"})
	assert.NoError(t, err)

	job := waitForJobState(t, m, jobID, types.JobFailed)
	assert.Equal(t, types.JobFailed, job.State)
	assert.NotEmpty(t, job.Error)
}

func TestExtractionFailsFatallyWhenDictionaryUnavailable(t *testing.T) {
	store := newMemStore()
	bus := progress.New(store)
	cfg := jobs.DefaultConfig()
	cfg.DictionarySeedPath = "/does/not/exist.csv"
	cfg.MaxExtractionRetries = 3
	m := jobs.New(store, bus, cfg)

	jobID, err := m.EnqueueExtraction(context.Background(), jobs.ExtractionRequest{TenantID: "tenant-a"})
	assert.NoError(t, err)

	job := waitForJobState(t, m, jobID, types.JobFailed)
	assert.Equal(t, types.JobFailed, job.State)
}

func TestCancelSucceedsOnAQueuedJob(t *testing.T) {
	store := newMemStore()
	bus := progress.New(store)
	cfg := jobs.DefaultConfig()
	cfg.MaxConcurrentJobs = 0 // pump never dispatches, job stays queued
	m := jobs.New(store, bus, cfg)

	jobID, err := m.EnqueueExtraction(context.Background(), jobs.ExtractionRequest{TenantID: "tenant-a"})
	assert.NoError(t, err)

	job, err := m.Get(context.Background(), jobID)
	assert.NoError(t, err)
	assert.Equal(t, types.JobQueued, job.State)

	assert.True(t, m.Cancel(jobID))

	job, err = m.Get(context.Background(), jobID)
	assert.NoError(t, err)
	assert.Equal(t, types.JobCancelled, job.State)
}

func TestCancelFailsOnAnAlreadyTerminalJob(t *testing.T) {
	store := newMemStore()
	bus := progress.New(store)
	cfg := jobs.DefaultConfig()
	cfg.DictionarySeedPath = "/does/not/exist.csv"
	m := jobs.New(store, bus, cfg)

	jobID, err := m.EnqueueExtraction(context.Background(), jobs.ExtractionRequest{TenantID: "tenant-a"})
	assert.NoError(t, err)
	waitForJobState(t, m, jobID, types.JobFailed)

	assert.False(t, m.Cancel(jobID))
}

func TestCleanupRemovesOldTerminalJobs(t *testing.T) {
	store := newMemStore()
	bus := progress.New(store)
	cfg := jobs.DefaultConfig()
	cfg.DictionarySeedPath = "/does/not/exist.csv"
	cfg.JobCleanupAge = time.Millisecond
	m := jobs.New(store, bus, cfg)

	jobID, err := m.EnqueueExtraction(context.Background(), jobs.ExtractionRequest{TenantID: "tenant-a"})
	assert.NoError(t, err)
	waitForJobState(t, m, jobID, types.JobFailed)

	time.Sleep(10 * time.Millisecond)
	n, err := m.Cleanup(context.Background())
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, n, 1)
}

func writeSeedFor(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "seed.csv")
	content := "symptom_id,segment,diagnosis,diagnostic_category,kind,hrsn_code,hrsn_mapping\n" +
		"s1,headache,Tension headache,Neurological,Symptom,None,\n"
	assert.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestBackoffRetryEventuallyFails(t *testing.T) {
	store := newMemStore()
	bus := progress.New(store)
	cfg := jobs.DefaultConfig()
	cfg.DictionarySeedPath = "/does/not/exist.csv"
	cfg.MaxExtractionRetries = 1
	m := jobs.New(store, bus, cfg)

	start := time.Now()
	jobID, err := m.EnqueueExtraction(context.Background(), jobs.ExtractionRequest{TenantID: "tenant-a"})
	assert.NoError(t, err)
	job := waitForJobState(t, m, jobID, types.JobFailed)
	assert.Equal(t, types.JobFailed, job.State)
	assert.Less(t, time.Since(start), 5*time.Second, "a single retry attempt should fail fast since the error is fatal")
}
