package driven

import (
	"context"

	"github.com/custodia-labs/contentsync/internal/core/domain"
)

// Sourcer applies a sourcing plan to the local node store.
type Sourcer interface {
	// SourceAll fetches every listable instance and removes local nodes
	// that no longer exist remotely.
	SourceAll(ctx context.Context, plan *domain.SourcingPlan) (*domain.SourceResult, error)

	// SourceChanges applies change events. The preview token, if any, is
	// attached to the first request only. Per-event failures are joined
	// and returned after every event was attempted.
	SourceChanges(
		ctx context.Context,
		plan *domain.SourcingPlan,
		events []domain.ChangeEvent,
		token *domain.PreviewToken,
	) (*domain.SourceResult, error)
}
