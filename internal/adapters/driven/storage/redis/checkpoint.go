// Package redis keeps the sync checkpoint in Redis so several processes
// can share it.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/custodia-labs/contentsync/internal/core/domain"
	"github.com/custodia-labs/contentsync/internal/core/ports/driven"
)

// DefaultPrefix namespaces checkpoint keys.
const DefaultPrefix = "contentsync"

// Ensure CheckpointStore implements the interface.
var _ driven.CheckpointStore = (*CheckpointStore)(nil)

// CheckpointStore is a Redis-backed driven.CheckpointStore.
type CheckpointStore struct {
	client *redis.Client
	prefix string
}

// New creates a store using client. Keys are written as <prefix>:<key>.
func New(client *redis.Client, prefix string) *CheckpointStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &CheckpointStore{client: client, prefix: prefix}
}

// Dial connects to addr and checks the connection.
func Dial(ctx context.Context, addr string, db int, prefix string) (*CheckpointStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	return New(client, prefix), nil
}

func (s *CheckpointStore) key(k string) string {
	return s.prefix + ":" + k
}

// Get returns the value for key, or domain.ErrNotFound.
func (s *CheckpointStore) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("getting %s: %w", key, err)
	}
	return v, nil
}

// Set stores the value for key without expiry.
func (s *CheckpointStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("setting %s: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (s *CheckpointStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}

// Close closes the underlying client.
func (s *CheckpointStore) Close() error {
	return s.client.Close()
}
