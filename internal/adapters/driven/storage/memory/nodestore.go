package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/patrickmn/go-cache"

	"github.com/custodia-labs/contentsync/internal/core/domain"
	"github.com/custodia-labs/contentsync/internal/core/ports/driven"
)

// Ensure NodeStore implements the interface.
var _ driven.NodeStore = (*NodeStore)(nil)

// NodeStore is an in-memory implementation of driven.NodeStore.
// Entries are keyed "<type>/<node key>".
type NodeStore struct {
	nodes *cache.Cache
}

// NewNodeStore creates a new in-memory node store.
func NewNodeStore() *NodeStore {
	return &NodeStore{nodes: cache.New(cache.NoExpiration, 0)}
}

func nodeKey(id domain.RemoteID) string {
	return id.TypeName + "/" + id.Key()
}

// Upsert stores or replaces a node.
func (s *NodeStore) Upsert(_ context.Context, node domain.Node) error {
	if node.RemoteID.ID == "" || node.RemoteID.TypeName == "" {
		return fmt.Errorf("%w: node requires id and type", domain.ErrInvalidInput)
	}
	s.nodes.Set(nodeKey(node.RemoteID), node, cache.NoExpiration)
	return nil
}

// Delete removes a node.
func (s *NodeStore) Delete(_ context.Context, id domain.RemoteID) error {
	s.nodes.Delete(nodeKey(id))
	return nil
}

// Get returns a node.
func (s *NodeStore) Get(_ context.Context, id domain.RemoteID) (*domain.Node, error) {
	v, ok := s.nodes.Get(nodeKey(id))
	if !ok {
		return nil, domain.ErrNotFound
	}
	node := v.(domain.Node)
	return &node, nil
}

// List returns all nodes of a remote type ordered by remote id.
func (s *NodeStore) List(_ context.Context, typeName string) ([]domain.Node, error) {
	prefix := typeName + "/"
	var nodes []domain.Node
	for k, item := range s.nodes.Items() {
		if strings.HasPrefix(k, prefix) {
			nodes = append(nodes, item.Object.(domain.Node))
		}
	}
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].RemoteID.ID != nodes[j].RemoteID.ID {
			return nodes[i].RemoteID.ID < nodes[j].RemoteID.ID
		}
		return nodes[i].RemoteID.SiteID < nodes[j].RemoteID.SiteID
	})
	return nodes, nil
}

// Counts returns the number of stored nodes per remote type.
func (s *NodeStore) Counts(_ context.Context) (map[string]int, error) {
	counts := make(map[string]int)
	for _, item := range s.nodes.Items() {
		counts[item.Object.(domain.Node).RemoteID.TypeName]++
	}
	return counts, nil
}
