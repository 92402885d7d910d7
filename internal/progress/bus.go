// Package progress implements the progress bus: a single
// publish point fanning out to a durable ProcessStatus sink and a
// live, best-effort, per-tenant subscriber fan-out for SSE sessions.
package progress

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/clinotect/noteengine/internal/types"
)

// EventType discriminates the recognized event shapes.
type EventType string

const (
	EventUploadProgress      EventType = "upload_progress"
	EventUploadCompleted     EventType = "upload_completed"
	EventUploadFailed        EventType = "upload_failed"
	EventExtractionProgress  EventType = "extraction_progress"
	EventBatchCompleted      EventType = "batch_completed"
	EventBatchWarning        EventType = "batch_warning"
	EventExtractionRetry     EventType = "extraction_retry"
	EventExtractionCompleted EventType = "extraction_completed"
	EventExtractionError     EventType = "extraction_error"
	eventConnection          EventType = "connection"
)

// Event is a tagged record published for one tenant. Fields holds the
// type-specific payload (spec §4.5's "required fields" column); callers
// build it with the New* constructors below rather than by hand so the
// required-fields contract stays in one place.
type Event struct {
	Type      EventType      `json:"type"`
	TenantID  string         `json:"tenant_id,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Fields    map[string]any `json:"-"`
}

func newEvent(tenantID string, t EventType, fields map[string]any) Event {
	return Event{Type: t, TenantID: tenantID, Timestamp: time.Now().UTC(), Fields: fields}
}

func NewUploadProgress(tenantID, jobID, fileName string, processed, total int, rate, eta, percentage float64) Event {
	return newEvent(tenantID, EventUploadProgress, map[string]any{
		"job_id": jobID, "file_name": fileName, "processed_records": processed,
		"total_records": total, "rate": rate, "eta": eta, "percentage": percentage,
	})
}

func NewUploadCompleted(tenantID, jobID string, processedRecords, newPatients, newNotes int, duration time.Duration) Event {
	return newEvent(tenantID, EventUploadCompleted, map[string]any{
		"job_id": jobID,
		"result": map[string]any{
			"processed_records": processedRecords,
			"new_patients":      newPatients,
			"new_notes":         newNotes,
			"duration":          duration.String(),
		},
	})
}

func NewUploadFailed(tenantID, jobID, fileName string, err error) Event {
	return newEvent(tenantID, EventUploadFailed, map[string]any{
		"job_id": jobID, "file_name": fileName, "error": err.Error(),
	})
}

func NewExtractionProgress(tenantID string, batch, totalBatches int, batchProgress, overallProgress float64, message string) Event {
	return newEvent(tenantID, EventExtractionProgress, map[string]any{
		"batch": batch, "total_batches": totalBatches,
		"batch_progress": batchProgress, "overall_progress": overallProgress, "message": message,
	})
}

func NewBatchCompleted(tenantID string, batch, totalBatches, mentionsFound int, overallProgress float64) Event {
	return newEvent(tenantID, EventBatchCompleted, map[string]any{
		"batch": batch, "total_batches": totalBatches,
		"mentions_found": mentionsFound, "overall_progress": overallProgress,
	})
}

func NewBatchWarning(tenantID string, batch int, message string) Event {
	return newEvent(tenantID, EventBatchWarning, map[string]any{"batch": batch, "message": message})
}

func NewExtractionRetry(tenantID string, attempt, maxRetries int, wait time.Duration, message string) Event {
	return newEvent(tenantID, EventExtractionRetry, map[string]any{
		"attempt": attempt, "max_retries": maxRetries, "wait_ms": wait.Milliseconds(), "message": message,
	})
}

func NewExtractionCompleted(tenantID, message string) Event {
	return newEvent(tenantID, EventExtractionCompleted, map[string]any{"message": message})
}

func NewExtractionError(tenantID, message string) Event {
	return newEvent(tenantID, EventExtractionError, map[string]any{"message": message})
}

// StatusSink is Sink A: the durable ProcessStatus upsert. Implemented by
// storage.Store; declared narrowly here so this package does not import
// the storage package's full surface.
type StatusSink interface {
	UpsertProcessStatus(ctx context.Context, status types.ProcessStatus) error
}

// subscriber is one live SSE session's channel.
type subscriber struct {
	id       uint64
	tenantID string
	ch       chan Event
}

// Bus is the single publish point for both sinks. The zero value is not
// usable; construct with New.
type Bus struct {
	sink StatusSink

	mu          sync.RWMutex
	subscribers []*subscriber
	nextSubID   uint64
	js          nats.JetStreamContext
}

// New constructs a Bus backed by sink for Sink A durability.
func New(sink StatusSink) *Bus {
	return &Bus{sink: sink}
}

// Publish writes the durable status row first (when status is non-nil), then fans the
// event out to every subscriber registered for the event's tenant.
// Events with no corresponding ProcessStatus row (e.g. batch_warning)
// pass nil and skip the durable write.
func (b *Bus) Publish(ctx context.Context, event Event, status *types.ProcessStatus) error {
	if status != nil {
		if err := b.sink.UpsertProcessStatus(ctx, *status); err != nil {
			return err
		}
	}
	b.fanOut(event)
	b.publishToJetStream(event)
	return nil
}

func (b *Bus) fanOut(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subscribers {
		if sub.tenantID != event.TenantID {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			// slow consumer, drop; the durable status row was already written
		}
	}
}

// Subscribe registers a live SSE session for tenantID. The returned
// channel immediately receives a synthetic connection frame. The
// unsubscribe func must be called on client disconnect.
func (b *Bus) Subscribe(tenantID string) (<-chan Event, func()) {
	sub := &subscriber{
		id:       atomic.AddUint64(&b.nextSubID, 1),
		tenantID: tenantID,
		ch:       make(chan Event, 64),
	}

	b.mu.Lock()
	b.subscribers = append(b.subscribers, sub)
	b.mu.Unlock()

	sub.ch <- newEvent(tenantID, eventConnection, map[string]any{"status": "connected"})

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, existing := range b.subscribers {
			if existing.id == sub.id {
				b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
				close(sub.ch)
				break
			}
		}
	}
	return sub.ch, unsubscribe
}
