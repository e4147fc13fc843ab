package driven

import (
	"context"

	"github.com/custodia-labs/contentsync/internal/core/domain"
)

// CheckpointStore is the key/value cache holding the sync checkpoint.
type CheckpointStore interface {
	// Get returns the value for key, or domain.ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set stores the value for key.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// NodeStore persists sourced nodes. Writes are keyed by remote id so
// applying the same change twice leaves the same state.
type NodeStore interface {
	// Upsert stores or replaces a node.
	Upsert(ctx context.Context, node domain.Node) error

	// Delete removes a node. Deleting a missing node is not an error.
	Delete(ctx context.Context, id domain.RemoteID) error

	// Get returns a node, or domain.ErrNotFound.
	Get(ctx context.Context, id domain.RemoteID) (*domain.Node, error)

	// List returns all nodes of a remote type.
	List(ctx context.Context, typeName string) ([]domain.Node, error)

	// Counts returns the number of stored nodes per remote type.
	Counts(ctx context.Context) (map[string]int, error)
}

// SyncRunStore keeps the history of sync runs.
type SyncRunStore interface {
	// Record stores a finished run.
	Record(ctx context.Context, run *domain.SyncRun) error

	// Recent returns the most recent runs, newest first.
	Recent(ctx context.Context, limit int) ([]domain.SyncRun, error)

	// Prune keeps only the most recent runs.
	Prune(ctx context.Context, keep int) error
}
