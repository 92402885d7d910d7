package progress_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/clinotect/noteengine/internal/progress"
	"github.com/clinotect/noteengine/internal/types"
)

type fakeSink struct {
	upserts []types.ProcessStatus
	err     error
}

func (f *fakeSink) UpsertProcessStatus(ctx context.Context, status types.ProcessStatus) error {
	if f.err != nil {
		return f.err
	}
	f.upserts = append(f.upserts, status)
	return nil
}

func TestPublishWritesSinkAWhenStatusProvided(t *testing.T) {
	sink := &fakeSink{}
	bus := progress.New(sink)

	status := types.ProcessStatus{TenantID: "tenant-a", ProcessType: types.ProcessExtraction, Percentage: 10}
	err := bus.Publish(context.Background(), progress.NewExtractionCompleted("tenant-a", "done"), &status)

	assert.NoError(t, err)
	if assert.Len(t, sink.upserts, 1) {
		assert.Equal(t, "tenant-a", sink.upserts[0].TenantID)
	}
}

func TestPublishSkipsSinkAWhenStatusNil(t *testing.T) {
	sink := &fakeSink{}
	bus := progress.New(sink)

	err := bus.Publish(context.Background(), progress.NewBatchWarning("tenant-a", 1, "transient"), nil)

	assert.NoError(t, err)
	assert.Empty(t, sink.upserts)
}

func TestPublishPropagatesSinkAFailure(t *testing.T) {
	sink := &fakeSink{err: assert.AnError}
	bus := progress.New(sink)

	status := types.ProcessStatus{TenantID: "tenant-a"}
	err := bus.Publish(context.Background(), progress.NewExtractionCompleted("tenant-a", "done"), &status)

	assert.ErrorIs(t, err, assert.AnError)
}

func TestSubscribeReceivesConnectionFrameThenPublishedEvents(t *testing.T) {
	bus := progress.New(&fakeSink{})

	ch, unsubscribe := bus.Subscribe("tenant-a")
	defer unsubscribe()

	first := <-ch
	assert.Equal(t, "tenant-a", first.TenantID)

	err := bus.Publish(context.Background(), progress.NewExtractionCompleted("tenant-a", "all done"), nil)
	assert.NoError(t, err)

	select {
	case got := <-ch:
		assert.Equal(t, progress.EventExtractionCompleted, got.Type)
	case <-time.After(time.Second):
		t.Fatal("expected event was not delivered")
	}
}

func TestFanOutOnlyDeliversToMatchingTenant(t *testing.T) {
	bus := progress.New(&fakeSink{})

	chA, unsubA := bus.Subscribe("tenant-a")
	defer unsubA()
	chB, unsubB := bus.Subscribe("tenant-b")
	defer unsubB()

	<-chA
	<-chB

	assert.NoError(t, bus.Publish(context.Background(), progress.NewExtractionCompleted("tenant-a", "done"), nil))

	select {
	case got := <-chA:
		assert.Equal(t, "tenant-a", got.TenantID)
	case <-time.After(time.Second):
		t.Fatal("tenant-a subscriber did not receive its event")
	}

	select {
	case got := <-chB:
		t.Fatalf("tenant-b subscriber unexpectedly received %v", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := progress.New(&fakeSink{})

	ch, unsubscribe := bus.Subscribe("tenant-a")
	<-ch
	unsubscribe()

	_, open := <-ch
	assert.False(t, open)
}

func TestFanOutDropsEventsWhenSubscriberBufferFull(t *testing.T) {
	bus := progress.New(&fakeSink{})

	ch, unsubscribe := bus.Subscribe("tenant-a")
	defer unsubscribe()
	<-ch

	for i := 0; i < 200; i++ {
		assert.NoError(t, bus.Publish(context.Background(), progress.NewBatchWarning("tenant-a", i, "noise"), nil))
	}

	assert.True(t, len(ch) > 0, "expected buffered events to remain available without blocking the publisher")
}
