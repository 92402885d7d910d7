package recovery_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/clinotect/noteengine/internal/recovery"
	"github.com/clinotect/noteengine/internal/types"
)

type fakeStore struct {
	clearedTenant string
	purgedTenant  string
	statuses      []types.ProcessStatus
	err           error
}

func (f *fakeStore) ClearMentions(ctx context.Context, tenantID string) error {
	f.clearedTenant = tenantID
	return f.err
}

func (f *fakeStore) PurgeTenant(ctx context.Context, tenantID string) error {
	f.purgedTenant = tenantID
	return f.err
}

func (f *fakeStore) UpsertProcessStatus(ctx context.Context, status types.ProcessStatus) error {
	f.statuses = append(f.statuses, status)
	return f.err
}

func TestClearMentionsDelegatesToStore(t *testing.T) {
	store := &fakeStore{}
	assert.NoError(t, recovery.ClearMentions(context.Background(), store, "tenant-a"))
	assert.Equal(t, "tenant-a", store.clearedTenant)
}

func TestClearMentionsPropagatesStoreError(t *testing.T) {
	store := &fakeStore{err: assert.AnError}
	assert.ErrorIs(t, recovery.ClearMentions(context.Background(), store, "tenant-a"), assert.AnError)
}

func TestPurgeTenantDelegatesToStore(t *testing.T) {
	store := &fakeStore{}
	assert.NoError(t, recovery.PurgeTenant(context.Background(), store, "tenant-a"))
	assert.Equal(t, "tenant-a", store.purgedTenant)
}

func TestResetStatusWritesReadyStateWithZeroPercentage(t *testing.T) {
	store := &fakeStore{}

	err := recovery.ResetStatus(context.Background(), store, "tenant-a", types.ProcessExtraction)

	assert.NoError(t, err)
	if assert.Len(t, store.statuses, 1) {
		s := store.statuses[0]
		assert.Equal(t, "tenant-a", s.TenantID)
		assert.Equal(t, types.ProcessExtraction, s.ProcessType)
		assert.Equal(t, "ready", s.State)
		assert.Equal(t, float64(0), s.Percentage)
		assert.False(t, s.LastUpdate.IsZero())
	}
}
