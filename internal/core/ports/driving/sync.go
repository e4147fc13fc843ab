package driving

import (
	"context"

	"github.com/custodia-labs/contentsync/internal/core/domain"
)

// SyncService runs sync cycles.
type SyncService interface {
	// Sync runs one cycle. An incompatible source yields a skipped run and
	// no error.
	Sync(ctx context.Context, req SyncRequest) (*domain.SyncRun, error)

	// Status returns the current sync status.
	Status(ctx context.Context) (*SyncStatus, error)
}

// SyncRequest selects what a sync cycle does.
type SyncRequest struct {
	// Webhook, when set, applies exactly the change the payload describes.
	Webhook *domain.WebhookPayload

	// Full ignores the stored checkpoint.
	Full bool
}

// SyncStatus is a snapshot of sync state.
type SyncStatus struct {
	// Running indicates if a cycle is in progress.
	Running bool

	// RunID identifies the running cycle.
	RunID string

	// Checkpoint is the stored checkpoint.
	Checkpoint domain.SyncState

	// NodeCounts is the number of local nodes per remote type.
	NodeCounts map[string]int

	// Recent lists the latest finished runs, newest first.
	Recent []domain.SyncRun
}

// PlanService exposes the sourcing plan.
type PlanService interface {
	// Plan returns the sourcing plan, building it on first use.
	Plan(ctx context.Context) (*domain.SourcingPlan, error)

	// Invalidate drops the plan so the next call rebuilds it.
	Invalidate()
}
