// Package recovery implements the tenant-scoped recovery operations:
// clearing mentions, resetting process status, and purging a tenant.
// All three are idempotent.
package recovery

import (
	"context"
	"time"

	"github.com/clinotect/noteengine/internal/types"
)

// Store is the subset of storage.Store the recovery operations need.
type Store interface {
	ClearMentions(ctx context.Context, tenantID string) error
	PurgeTenant(ctx context.Context, tenantID string) error
	UpsertProcessStatus(ctx context.Context, status types.ProcessStatus) error
}

// ClearMentions deletes all mentions for a tenant.
func ClearMentions(ctx context.Context, store Store, tenantID string) error {
	return store.ClearMentions(ctx, tenantID)
}

// ResetStatus upserts ProcessStatus to the ready state.
// processType identifies which pipeline stage's status row to reset;
// reset_status operates per (tenant, process_type), same key as every
// other ProcessStatus write.
func ResetStatus(ctx context.Context, store Store, tenantID string, processType types.ProcessType) error {
	return store.UpsertProcessStatus(ctx, types.ProcessStatus{
		TenantID:    tenantID,
		ProcessType: processType,
		State:       "ready",
		Percentage:  0,
		Stage:       "ready",
		Message:     "Reset",
		LastUpdate:  time.Now().UTC(),
	})
}

// PurgeTenant deletes every row for a tenant across all entities, in
// the load-bearing order the store implements.
func PurgeTenant(ctx context.Context, store Store, tenantID string) error {
	return store.PurgeTenant(ctx, tenantID)
}
