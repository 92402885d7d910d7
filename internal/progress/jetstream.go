package progress

import (
	"encoding/json"
	"log"

	"github.com/nats-io/nats.go"
)

// jetStreamSubjectPrefix namespaces durable progress events per tenant,
// e.g. "progress.acme-health.extraction_progress".
const jetStreamSubjectPrefix = "progress."

// SetJetStream attaches a JetStream context for durable, cross-process
// event delivery. Optional: the in-memory fan-out alone satisfies
// live delivery without it. When set, every Publish additionally
// fire-and-forgets the event onto a per-tenant subject; publish errors
// are logged, never propagated.
func (b *Bus) SetJetStream(js nats.JetStreamContext) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.js = js
}

func (b *Bus) publishToJetStream(event Event) {
	b.mu.RLock()
	js := b.js
	b.mu.RUnlock()
	if js == nil {
		return
	}

	subject := jetStreamSubjectPrefix + event.TenantID + "." + string(event.Type)
	data, err := json.Marshal(struct {
		Event
		Fields map[string]any `json:"fields"`
	}{Event: event, Fields: event.Fields})
	if err != nil {
		log.Printf("progress: failed to marshal event for JetStream: %v", err)
		return
	}

	if _, err := js.Publish(subject, data); err != nil {
		log.Printf("progress: JetStream publish to %s failed: %v", subject, err)
	}
}
