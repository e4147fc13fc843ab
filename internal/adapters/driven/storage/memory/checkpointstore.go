// Package memory provides in-process implementations of the persistence
// ports. Nothing survives a restart.
package memory

import (
	"context"

	"github.com/patrickmn/go-cache"

	"github.com/custodia-labs/contentsync/internal/core/domain"
	"github.com/custodia-labs/contentsync/internal/core/ports/driven"
)

// Ensure CheckpointStore implements the interface.
var _ driven.CheckpointStore = (*CheckpointStore)(nil)

// CheckpointStore is an in-memory implementation of driven.CheckpointStore.
type CheckpointStore struct {
	values *cache.Cache
}

// NewCheckpointStore creates a new in-memory checkpoint store.
func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{values: cache.New(cache.NoExpiration, 0)}
}

// Get returns the value for key.
func (s *CheckpointStore) Get(_ context.Context, key string) (string, error) {
	v, ok := s.values.Get(key)
	if !ok {
		return "", domain.ErrNotFound
	}
	return v.(string), nil
}

// Set stores the value for key.
func (s *CheckpointStore) Set(_ context.Context, key, value string) error {
	s.values.Set(key, value, cache.NoExpiration)
	return nil
}

// Delete removes key.
func (s *CheckpointStore) Delete(_ context.Context, key string) error {
	s.values.Delete(key)
	return nil
}
