package services

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/custodia-labs/contentsync/internal/core/domain"
	"github.com/custodia-labs/contentsync/internal/core/ports/driven"
	"github.com/custodia-labs/contentsync/internal/logger"
)

const introspectionQuery = `query IntrospectionQuery {
  __schema {
    queryType { name }
    types {
      kind
      name
      fields(includeDeprecated: true) {
        name
        args { name type { ...TypeRef } defaultValue }
        type { ...TypeRef }
      }
      interfaces { ...TypeRef }
      possibleTypes { ...TypeRef }
    }
  }
}

fragment TypeRef on __Type {
  kind
  name
  ofType {
    kind
    name
    ofType {
      kind
      name
      ofType {
        kind
        name
        ofType {
          kind
          name
          ofType { kind name ofType { kind name } }
        }
      }
    }
  }
}
`

// SchemaCache fetches the remote schema once and memoizes it.
type SchemaCache struct {
	exec  driven.Executor
	group singleflight.Group

	mu     sync.RWMutex
	schema *domain.Schema
}

// NewSchemaCache creates a schema cache using the given executor.
func NewSchemaCache(exec driven.Executor) *SchemaCache {
	return &SchemaCache{exec: exec}
}

// Get returns the schema. Concurrent first callers share one fetch.
// Failures are not memoized.
func (c *SchemaCache) Get(ctx context.Context) (*domain.Schema, error) {
	c.mu.RLock()
	s := c.schema
	c.mu.RUnlock()
	if s != nil {
		return s, nil
	}

	v, err := doShared(ctx, &c.group, "schema", func(ctx context.Context) (any, error) {
		c.mu.RLock()
		cached := c.schema
		c.mu.RUnlock()
		if cached != nil {
			return cached, nil
		}

		logger.Debug("Fetching remote schema")
		resp, err := c.exec.Execute(ctx, domain.Operation{
			Name:  "IntrospectionQuery",
			Query: introspectionQuery,
		})
		if err != nil {
			return nil, fmt.Errorf("introspect schema: %w", err)
		}
		if !resp.HasData() {
			return nil, fmt.Errorf("%w: %s", domain.ErrSchemaIntrospection, resp.ErrorMessage())
		}
		schema, err := domain.ParseIntrospection(resp.Data)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.schema = schema
		c.mu.Unlock()
		logger.Debug("Schema has %d types", len(schema.Types))
		return schema, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Schema), nil
}

// doShared runs fn once per key for concurrent callers. fn gets a context
// that ignores the callers' cancellation; each caller still returns as soon
// as its own ctx is done.
func doShared(
	ctx context.Context,
	g *singleflight.Group,
	key string,
	fn func(context.Context) (any, error),
) (any, error) {
	shared := context.WithoutCancel(ctx)
	ch := g.DoChan(key, func() (any, error) {
		return fn(shared)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		return r.Val, r.Err
	}
}
