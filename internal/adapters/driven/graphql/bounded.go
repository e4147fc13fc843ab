package graphql

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/custodia-labs/contentsync/internal/core/domain"
	"github.com/custodia-labs/contentsync/internal/core/ports/driven"
)

// Ensure BoundedExecutor implements the interface.
var _ driven.Executor = (*BoundedExecutor)(nil)

// DefaultConcurrency is the number of requests in flight when unset.
const DefaultConcurrency = 10

// BoundedExecutor limits the number of operations in flight. Callers over
// the limit queue in arrival order until a slot frees.
type BoundedExecutor struct {
	next     driven.Executor
	sem      *semaphore.Weighted
	inFlight atomic.Int64
}

// NewBoundedExecutor wraps next with a concurrency bound. A limit below 1
// uses DefaultConcurrency.
func NewBoundedExecutor(next driven.Executor, limit int) *BoundedExecutor {
	if limit < 1 {
		limit = DefaultConcurrency
	}
	return &BoundedExecutor{next: next, sem: semaphore.NewWeighted(int64(limit))}
}

// Execute waits for a free slot and runs the operation.
func (b *BoundedExecutor) Execute(ctx context.Context, op domain.Operation, opts ...driven.CallOption) (*domain.Response, error) {
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer b.sem.Release(1)

	b.inFlight.Add(1)
	defer b.inFlight.Add(-1)
	return b.next.Execute(ctx, op, opts...)
}

// InFlight returns the number of operations currently running.
func (b *BoundedExecutor) InFlight() int {
	return int(b.inFlight.Load())
}
