// Package storage opens the persistence backend selected in configuration.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/contentsync/internal/adapters/driven/storage/bolt"
	"github.com/custodia-labs/contentsync/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/contentsync/internal/adapters/driven/storage/redis"
	"github.com/custodia-labs/contentsync/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/contentsync/internal/core/domain"
	"github.com/custodia-labs/contentsync/internal/core/ports/driven"
)

// Stores bundles the persistence ports of one backend.
type Stores struct {
	Checkpoints driven.CheckpointStore
	Nodes       driven.NodeStore

	// Runs is nil when the backend keeps no run history.
	Runs driven.SyncRunStore

	closers []func() error
}

// Close releases every underlying connection.
func (s *Stores) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Open opens the backend named by cfg.Backend.
//
// The redis backend keeps only the checkpoint in Redis. Nodes and run
// history stay in the SQLite database under cfg.Path.
func Open(ctx context.Context, cfg domain.CheckpointConfig) (*Stores, error) {
	switch cfg.Backend {
	case domain.BackendSQLite, "":
		db, err := sqlite.NewStore(cfg.Path)
		if err != nil {
			return nil, err
		}
		return &Stores{
			Checkpoints: db.CheckpointStore(),
			Nodes:       db.NodeStore(),
			Runs:        db.SyncRunStore(),
			closers:     []func() error{db.Close},
		}, nil

	case domain.BackendBolt:
		db, err := bolt.NewStore(cfg.Path)
		if err != nil {
			return nil, err
		}
		return &Stores{
			Checkpoints: db.CheckpointStore(),
			Nodes:       db.NodeStore(),
			Runs:        memory.NewSyncRunStore(),
			closers:     []func() error{db.Close},
		}, nil

	case domain.BackendRedis:
		db, err := sqlite.NewStore(cfg.Path)
		if err != nil {
			return nil, err
		}
		cp, err := redis.Dial(ctx, cfg.RedisAddr, cfg.RedisDB, redis.DefaultPrefix)
		if err != nil {
			db.Close()
			return nil, err
		}
		return &Stores{
			Checkpoints: cp,
			Nodes:       db.NodeStore(),
			Runs:        db.SyncRunStore(),
			closers:     []func() error{db.Close, cp.Close},
		}, nil

	case domain.BackendMemory:
		return &Stores{
			Checkpoints: memory.NewCheckpointStore(),
			Nodes:       memory.NewNodeStore(),
			Runs:        memory.NewSyncRunStore(),
		}, nil

	default:
		return nil, fmt.Errorf("%w: unknown checkpoint backend %q", domain.ErrInvalidInput, cfg.Backend)
	}
}
