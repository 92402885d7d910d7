// Package jobs implements the background job manager: a single
// in-process registry of upload and extraction jobs sharing one bounded
// concurrency pool, with automatic extraction chaining after a
// successful upload and retry-with-backoff on whole-attempt extraction
// failure.
package jobs

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/clinotect/noteengine/internal/dictionary"
	"github.com/clinotect/noteengine/internal/extraction/chunker"
	"github.com/clinotect/noteengine/internal/extraction/index"
	"github.com/clinotect/noteengine/internal/progress"
	"github.com/clinotect/noteengine/internal/storage"
	"github.com/clinotect/noteengine/internal/types"
	"github.com/clinotect/noteengine/internal/upload"
)

// Config tunes the manager.
type Config struct {
	MaxConcurrentJobs    int
	MaxExtractionRetries int
	SaveBatchSize        int
	BatchTimeout         time.Duration
	JobCleanupAge        time.Duration
	DictionarySeedPath   string
	ChunkerOptions       chunker.Options
}

// DefaultConfig returns the standard production defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentJobs:    3,
		MaxExtractionRetries: 3,
		SaveBatchSize:        400,
		BatchTimeout:         10 * time.Minute,
		JobCleanupAge:        24 * time.Hour,
		ChunkerOptions:       chunker.DefaultOptions(),
	}
}

// UploadRequest describes a file to ingest for a tenant.
type UploadRequest struct {
	TenantID string
	FilePath string
	FileName string
}

// ExtractionRequest describes a manual (or auto-chained) extraction
// enqueue. DelayMS inserts a pause between save batches so a recovery
// run can be throttled against a store still under load.
type ExtractionRequest struct {
	TenantID  string
	BatchSize int
	DelayMS   int
}

// jobMetrics holds OTel metric instruments for the job manager.
// Instruments are registered against the global delegating provider at
// init time, so they forward automatically once metrics.Init runs.
var jobMetrics struct {
	completed metric.Int64Counter
	failed    metric.Int64Counter
	duration  metric.Float64Histogram
}

func init() {
	m := otel.Meter("github.com/clinotect/noteengine/jobs")
	jobMetrics.completed, _ = m.Int64Counter("clinotect.jobs.completed",
		metric.WithDescription("Jobs that finished successfully, by kind"),
		metric.WithUnit("{job}"),
	)
	jobMetrics.failed, _ = m.Int64Counter("clinotect.jobs.failed",
		metric.WithDescription("Jobs that finished in a failed state, by kind"),
		metric.WithUnit("{job}"),
	)
	jobMetrics.duration, _ = m.Float64Histogram("clinotect.jobs.duration_ms",
		metric.WithDescription("Wall-clock duration from job creation to terminal state"),
		metric.WithUnit("ms"),
	)
}

// record is the manager's private bookkeeping for one job; the public
// types.Job snapshot is derived from it on every read.
type record struct {
	job       types.Job
	kind      types.JobKind
	upload    *UploadRequest
	extract   *ExtractionRequest
	cancelled bool
}

// Manager is the Job Manager. Construct with New.
type Manager struct {
	store storage.Store
	bus   *progress.Bus
	cfg   Config

	mu      sync.Mutex
	byID    map[string]*record
	queue   []string // queued job ids, oldest first
	running int
}

// New constructs a Manager backed by store for persistence and bus for
// progress events.
func New(store storage.Store, bus *progress.Bus, cfg Config) *Manager {
	return &Manager{
		store: store,
		bus:   bus,
		cfg:   cfg,
		byID:  make(map[string]*record),
	}
}

// EnqueueUpload creates a queued upload job and returns its id
// immediately; the scheduler starts it when a slot frees.
func (m *Manager) EnqueueUpload(ctx context.Context, req UploadRequest) (string, error) {
	job := types.Job{
		ID:       "job-" + uuid.NewString(),
		TenantID: req.TenantID,
		Kind:     types.JobUpload,
		State:    types.JobQueued,
	}
	if err := m.store.UpsertJob(ctx, job); err != nil {
		return "", fmt.Errorf("jobs: persist queued upload job: %w", err)
	}
	m.enqueue(&record{job: job, kind: types.JobUpload, upload: &req})
	return job.ID, nil
}

// EnqueueExtraction enqueues an extraction job, either manually or
// auto-chained after an upload that produced new notes.
func (m *Manager) EnqueueExtraction(ctx context.Context, req ExtractionRequest) (string, error) {
	if req.BatchSize <= 0 {
		req.BatchSize = m.cfg.SaveBatchSize
	}
	job := types.Job{
		ID:       "job-" + uuid.NewString(),
		TenantID: req.TenantID,
		Kind:     types.JobExtraction,
		State:    types.JobQueued,
	}
	if err := m.store.UpsertJob(ctx, job); err != nil {
		return "", fmt.Errorf("jobs: persist queued extraction job: %w", err)
	}
	m.enqueue(&record{job: job, kind: types.JobExtraction, extract: &req})
	return job.ID, nil
}

func (m *Manager) enqueue(r *record) {
	m.mu.Lock()
	m.byID[r.job.ID] = r
	m.queue = append(m.queue, r.job.ID)
	m.mu.Unlock()
	m.pump()
}

// pump starts queued jobs until the concurrency cap is reached. Upload
// and extraction jobs share one pool; the cap is global, not per-kind.
func (m *Manager) pump() {
	for {
		m.mu.Lock()
		if m.running >= m.cfg.MaxConcurrentJobs || len(m.queue) == 0 {
			m.mu.Unlock()
			return
		}
		id := m.queue[0]
		m.queue = m.queue[1:]
		r, ok := m.byID[id]
		if !ok || r.cancelled {
			m.mu.Unlock()
			continue
		}
		m.running++
		now := time.Now().UTC()
		r.job.State = types.JobRunning
		r.job.StartedAt = &now
		m.mu.Unlock()

		_ = m.store.UpsertJob(context.Background(), r.job)
		go m.run(r)
	}
}

func (m *Manager) run(r *record) {
	defer func() {
		m.mu.Lock()
		m.running--
		m.mu.Unlock()
		m.pump()
	}()

	ctx := context.Background()
	switch r.kind {
	case types.JobUpload:
		m.runUpload(ctx, r)
	case types.JobExtraction:
		m.runExtraction(ctx, r)
	}
}

func (m *Manager) finish(r *record, state types.JobState, errMsg string) {
	now := time.Now().UTC()
	m.mu.Lock()
	r.job.State = state
	r.job.EndedAt = &now
	r.job.Error = errMsg
	job := r.job
	m.mu.Unlock()
	_ = m.store.UpsertJob(context.Background(), job)

	attrs := metric.WithAttributes(attribute.String("kind", string(job.Kind)))
	switch state {
	case types.JobCompleted:
		jobMetrics.completed.Add(context.Background(), 1, attrs)
	case types.JobFailed, types.JobCancelled:
		jobMetrics.failed.Add(context.Background(), 1, attrs)
	}
	if job.StartedAt != nil && job.EndedAt != nil {
		jobMetrics.duration.Record(context.Background(), float64(job.EndedAt.Sub(*job.StartedAt).Milliseconds()), attrs)
	}
}

func (m *Manager) setProgress(r *record, p types.Progress) {
	m.mu.Lock()
	r.job.Progress = p
	m.mu.Unlock()
}

// Get returns a single job by id, preferring the live in-process
// record over the persisted snapshot.
func (m *Manager) Get(ctx context.Context, jobID string) (types.Job, error) {
	m.mu.Lock()
	if r, ok := m.byID[jobID]; ok {
		job := r.job
		m.mu.Unlock()
		return job, nil
	}
	m.mu.Unlock()
	return m.store.GetJob(ctx, jobID)
}

// ListByTenant returns jobs for a tenant ordered by most recent start.
func (m *Manager) ListByTenant(ctx context.Context, tenantID string) ([]types.Job, error) {
	return m.store.ListJobsByTenant(ctx, tenantID)
}

// Cancel cancels a queued job. A running job cannot be cancelled;
// the call returns false.
func (m *Manager) Cancel(jobID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byID[jobID]
	if !ok || r.job.State != types.JobQueued {
		return false
	}
	r.cancelled = true
	r.job.State = types.JobCancelled
	now := time.Now().UTC()
	r.job.EndedAt = &now
	job := r.job
	go func() { _ = m.store.UpsertJob(context.Background(), job) }()
	return true
}

// Cleanup purges terminal jobs older than cfg.JobCleanupAge from both
// the store and the in-process registry.
func (m *Manager) Cleanup(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-m.cfg.JobCleanupAge)
	n, err := m.store.DeleteJobsOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	for id, r := range m.byID {
		if r.job.EndedAt != nil && r.job.EndedAt.Before(cutoff) {
			delete(m.byID, id)
		}
	}
	m.mu.Unlock()
	return n, nil
}

// runUpload parses the spooled file, persists patients and notes,
// records the upload, and auto-chains an extraction job when the
// upload produced new notes.
func (m *Manager) runUpload(ctx context.Context, r *record) {
	req := *r.upload
	f, err := os.Open(req.FilePath)
	if err != nil {
		m.emitUploadFailed(ctx, r.job.ID, req, err)
		m.finish(r, types.JobFailed, err.Error())
		return
	}
	defer f.Close()

	start := time.Now()
	result, err := upload.Parse(f, req.TenantID, 0, func(processed, total int) {
		m.setProgress(r, types.Progress{Processed: processed, Total: total})
		_ = m.bus.Publish(ctx, progress.NewUploadProgress(req.TenantID, r.job.ID, req.FileName, processed, total, 0, 0, 0), nil)
	})
	if err != nil {
		m.emitUploadFailed(ctx, r.job.ID, req, err)
		m.finish(r, types.JobFailed, err.Error())
		return
	}

	if _, err := m.store.UpsertPatients(ctx, result.Patients); err != nil {
		m.emitUploadFailed(ctx, r.job.ID, req, err)
		m.finish(r, types.JobFailed, err.Error())
		return
	}
	if _, err := m.store.UpsertNotes(ctx, result.Notes); err != nil {
		m.emitUploadFailed(ctx, r.job.ID, req, err)
		m.finish(r, types.JobFailed, err.Error())
		return
	}

	duration := time.Since(start)
	tracking := types.UploadTracking{
		UploadID:         "upload-" + uuid.NewString(),
		TenantID:         req.TenantID,
		FileName:         req.FileName,
		ProcessedRecords: result.ProcessedRecords,
		NewPatients:      result.NewPatients,
		NewNotes:         result.NewNotes,
		Duration:         duration,
		CreatedAt:        time.Now().UTC(),
	}
	if err := m.store.RecordUpload(ctx, tracking); err != nil {
		m.emitUploadFailed(ctx, r.job.ID, req, err)
		m.finish(r, types.JobFailed, err.Error())
		return
	}

	_ = m.bus.Publish(ctx, progress.NewUploadCompleted(req.TenantID, r.job.ID, result.ProcessedRecords, result.NewPatients, result.NewNotes, duration), nil)

	if result.NewNotes > 0 {
		if _, err := m.EnqueueExtraction(ctx, ExtractionRequest{TenantID: req.TenantID}); err != nil {
			log.Printf("jobs: upload %s: failed to auto-chain extraction for tenant %s: %v", r.job.ID, req.TenantID, err)
			_ = m.bus.Publish(ctx, progress.NewBatchWarning(req.TenantID, 0, "auto-chained extraction enqueue failed: "+err.Error()), nil)
		}
	}

	m.finish(r, types.JobCompleted, "")
}

func (m *Manager) emitUploadFailed(ctx context.Context, jobID string, req UploadRequest, err error) {
	_ = m.bus.Publish(ctx, progress.NewUploadFailed(req.TenantID, jobID, req.FileName, err), nil)
}

// runExtraction retries whole-attempt failures with capped exponential
// backoff. Resume is automatic: already-persisted mentions exclude
// their patients from the next attempt's candidate set.
func (m *Manager) runExtraction(ctx context.Context, r *record) {
	req := *r.extract
	maxRetries := m.cfg.MaxExtractionRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	batchSize := req.BatchSize
	if batchSize <= 0 {
		batchSize = m.cfg.SaveBatchSize
	}

	var lastErr error
	var candidates int
retryLoop:
	for attempt := 1; attempt <= maxRetries; attempt++ {
		n, err := m.runExtractionAttempt(ctx, r, req, batchSize)
		candidates = n
		if err != nil {
			lastErr = err
			if dictionaryFatal(err) {
				break retryLoop
			}
			if attempt == maxRetries {
				break retryLoop
			}
			wait := backoffWait(attempt)
			_ = m.bus.Publish(ctx, progress.NewExtractionRetry(req.TenantID, attempt, maxRetries, wait, err.Error()), nil)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				lastErr = ctx.Err()
				break retryLoop
			}
			continue
		}
		lastErr = nil
		break
	}

	if lastErr != nil {
		log.Printf("jobs: extraction %s: tenant %s failed after retries: %v", r.job.ID, req.TenantID, lastErr)
		_ = m.bus.Publish(ctx, progress.NewExtractionError(req.TenantID, lastErr.Error()), nil)
		m.finish(r, types.JobFailed, lastErr.Error())
		return
	}

	message := "extraction completed"
	if candidates == 0 {
		message = "extraction completed: all notes were already processed"
	}
	_ = m.bus.Publish(ctx, progress.NewExtractionCompleted(req.TenantID, message), nil)
	m.finish(r, types.JobCompleted, "")
}

// runExtractionAttempt is one full pass over the candidate note set,
// returning how many candidate notes it found. A per-batch error or
// timeout is recoverable (emits batch_warning, continues to the next
// batch); a failure loading the dictionary or listing notes is a
// whole-attempt failure and returns an error for the caller's retry
// loop.
func (m *Manager) runExtractionAttempt(ctx context.Context, r *record, req ExtractionRequest, batchSize int) (int, error) {
	tenantID := req.TenantID
	entries, err := dictionary.Load(ctx, m.store, tenantID, m.cfg.DictionarySeedPath)
	if err != nil {
		return 0, err
	}
	idx := index.Build(entries)

	notes, err := m.store.NotesWithoutMentions(ctx, tenantID)
	if err != nil {
		return 0, fmt.Errorf("jobs: list candidate notes: %w", err)
	}
	if len(notes) == 0 {
		return 0, nil
	}

	batches := partitionNotes(notes, batchSize)
	totalBatches := len(batches)
	var processed int
	attemptStart := time.Now()

	for i, batch := range batches {
		if i > 0 && req.DelayMS > 0 {
			select {
			case <-time.After(time.Duration(req.DelayMS) * time.Millisecond):
			case <-ctx.Done():
				return len(notes), ctx.Err()
			}
		}

		batchCtx, cancel := context.WithTimeout(ctx, m.cfg.BatchTimeout)
		var seenTimeouts int
		mentions, err := chunker.Run(batchCtx, batch, idx, tenantID, m.cfg.ChunkerOptions, func(p chunker.Progress) {
			overall := float64(processed+p.ProcessedNotes) / float64(len(notes))
			_ = m.bus.Publish(ctx, progress.NewExtractionProgress(tenantID, i+1, totalBatches, float64(p.ProcessedNotes)/float64(len(batch)), overall, "extracting"), nil)
			if p.ChunkTimeouts > seenTimeouts {
				seenTimeouts = p.ChunkTimeouts
				_ = m.bus.Publish(ctx, progress.NewBatchWarning(tenantID, i+1, "chunk timed out, partial results skipped"), nil)
			}
		})
		cancel()
		if err != nil {
			_ = m.bus.Publish(ctx, progress.NewBatchWarning(tenantID, i+1, err.Error()), nil)
			processed += len(batch)
			continue
		}

		if len(mentions) > 0 {
			if _, err := m.store.UpsertMentions(ctx, mentions); err != nil {
				_ = m.bus.Publish(ctx, progress.NewBatchWarning(tenantID, i+1, "persist mentions: "+err.Error()), nil)
			}
		}

		processed += len(batch)
		overall := float64(processed) / float64(len(notes))
		elapsed := time.Since(attemptStart).Seconds()
		var rate, eta float64
		if elapsed > 0 {
			rate = float64(processed) / elapsed
		}
		if rate > 0 {
			eta = float64(len(notes)-processed) / rate
		}
		m.setProgress(r, types.Progress{Processed: processed, Total: len(notes), RatePerSec: rate, ETASec: eta, Percentage: overall * 100})

		status := types.ProcessStatus{
			TenantID: tenantID, ProcessType: types.ProcessExtraction,
			State: "running", Percentage: overall * 100, Message: "extracting",
			Stage: "extraction", LastUpdate: time.Now().UTC(),
		}
		_ = m.bus.Publish(ctx, progress.NewBatchCompleted(tenantID, i+1, totalBatches, len(mentions), overall), &status)
	}
	return len(notes), nil
}

func partitionNotes(notes []*types.Note, size int) [][]*types.Note {
	if size <= 0 {
		size = 400
	}
	var batches [][]*types.Note
	for start := 0; start < len(notes); start += size {
		end := start + size
		if end > len(notes) {
			end = len(notes)
		}
		batches = append(batches, notes[start:end])
	}
	return batches
}

// backoffWait waits 2^attempt seconds, capped at 30s.
func backoffWait(attempt int) time.Duration {
	secs := math.Pow(2, float64(attempt))
	if secs > 30 {
		secs = 30
	}
	return time.Duration(secs * float64(time.Second))
}

func dictionaryFatal(err error) bool {
	return storage.IsDictionaryUnavailable(err)
}
