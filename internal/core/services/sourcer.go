package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/contentsync/internal/core/domain"
	"github.com/custodia-labs/contentsync/internal/core/ports/driven"
	"github.com/custodia-labs/contentsync/internal/logger"
)

// Ensure NodeSourcer implements the interface.
var _ driven.Sourcer = (*NodeSourcer)(nil)

// DefaultPageSize is the list query page size.
const DefaultPageSize = 100

// NodeSourcer applies a sourcing plan to a NodeStore.
// Every request goes through exec, which is expected to bound concurrency.
type NodeSourcer struct {
	exec     driven.Executor
	nodes    driven.NodeStore
	pageSize int
	now      func() time.Time
}

// NewNodeSourcer creates a node sourcer. A pageSize below 1 uses DefaultPageSize.
func NewNodeSourcer(exec driven.Executor, nodes driven.NodeStore, pageSize int) *NodeSourcer {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	return &NodeSourcer{exec: exec, nodes: nodes, pageSize: pageSize, now: time.Now}
}

// SourceAll pages through every listable type, one goroutine per type, and
// removes local nodes of those types that were not returned.
func (s *NodeSourcer) SourceAll(ctx context.Context, plan *domain.SourcingPlan) (*domain.SourceResult, error) {
	var updated, deleted atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	for i := range plan.Types {
		tp := &plan.Types[i]
		if tp.ListQuery == nil {
			continue
		}
		g.Go(func() error {
			u, d, err := s.sourceType(ctx, tp)
			updated.Add(int64(u))
			deleted.Add(int64(d))
			if err != nil {
				return fmt.Errorf("source %s: %w", tp.RemoteType.Name, err)
			}
			return nil
		})
	}
	err := g.Wait()

	res := &domain.SourceResult{Updated: int(updated.Load()), Deleted: int(deleted.Load())}
	if err != nil {
		return res, err
	}
	logger.Info("Sourced %d nodes, removed %d stale nodes", res.Updated, res.Deleted)
	return res, nil
}

func (s *NodeSourcer) sourceType(ctx context.Context, tp *domain.TypePlan) (int, int, error) {
	seen := make(map[string]bool)
	updated := 0

	for offset := 0; ; offset += s.pageSize {
		resp, err := s.exec.Execute(ctx, domain.Operation{
			Name:  tp.ListQuery.OperationName,
			Query: tp.ListQuery.Text,
			Variables: map[string]any{
				LimitVar:  s.pageSize,
				OffsetVar: offset,
			},
		})
		if err != nil {
			return updated, 0, err
		}
		items, err := listItems(resp, tp.ListField)
		if err != nil {
			return updated, 0, err
		}
		for _, raw := range items {
			node, err := s.decodeNode(tp, raw)
			if err != nil {
				return updated, 0, err
			}
			if err := s.nodes.Upsert(ctx, node); err != nil {
				return updated, 0, fmt.Errorf("store node %s: %w", node.RemoteID.Key(), err)
			}
			seen[node.RemoteID.Key()] = true
			updated++
		}
		if len(items) < s.pageSize {
			break
		}
	}

	stored, err := s.nodes.List(ctx, tp.RemoteType.Name)
	if err != nil {
		return updated, 0, fmt.Errorf("list stored nodes: %w", err)
	}
	deleted := 0
	for _, n := range stored {
		if seen[n.RemoteID.Key()] {
			continue
		}
		if err := s.nodes.Delete(ctx, n.RemoteID); err != nil {
			return updated, deleted, fmt.Errorf("delete stale node %s: %w", n.RemoteID.Key(), err)
		}
		deleted++
	}
	logger.Debug("%s: %d nodes, %d stale", tp.RemoteType.Name, updated, deleted)
	return updated, deleted, nil
}

// SourceChanges applies change events concurrently. The preview token is
// taken by whichever request is sent first.
func (s *NodeSourcer) SourceChanges(
	ctx context.Context,
	plan *domain.SourcingPlan,
	events []domain.ChangeEvent,
	token *domain.PreviewToken,
) (*domain.SourceResult, error) {
	var (
		mu     sync.Mutex
		errs   []error
		result domain.SourceResult
	)

	var g errgroup.Group
	for _, ev := range events {
		g.Go(func() error {
			deleted, err := s.applyEvent(ctx, plan, ev, token)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				logger.Warn("Failed to apply %s: %v", ev, err)
				errs = append(errs, fmt.Errorf("%s: %w", ev, err))
			case deleted:
				result.Deleted++
			default:
				result.Updated++
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(errs) > 0 {
		return &result, errors.Join(errs...)
	}
	logger.Info("Applied %d updates and %d deletions", result.Updated, result.Deleted)
	return &result, nil
}

// applyEvent applies one event and reports whether it deleted the node.
func (s *NodeSourcer) applyEvent(
	ctx context.Context,
	plan *domain.SourcingPlan,
	ev domain.ChangeEvent,
	token *domain.PreviewToken,
) (bool, error) {
	tp, ok := plan.Type(ev.RemoteTypeName)
	if ok && !tp.SiteScoped {
		ev.RemoteID.SiteID = ""
	}
	if ev.EventName == domain.EventDelete {
		if ok && tp.SiteScoped && ev.RemoteID.SiteID == "" {
			return true, s.deleteAllSites(ctx, ev.RemoteID)
		}
		return true, s.nodes.Delete(ctx, ev.RemoteID)
	}

	if !ok {
		return false, fmt.Errorf("%w: remote type %s is not sourced", domain.ErrNotFound, ev.RemoteTypeName)
	}
	if tp.NodeQuery == nil {
		return false, fmt.Errorf("%w: remote type %s has no node query", domain.ErrNotFound, ev.RemoteTypeName)
	}

	vars := map[string]any{domain.IDField: ev.RemoteID.ID}
	for _, v := range tp.NodeQuery.Variables {
		if v == domain.SiteIDField && ev.RemoteID.SiteID != "" {
			vars[domain.SiteIDField] = ev.RemoteID.SiteID
		}
	}
	var opts []driven.CallOption
	if tok, ok := token.Take(); ok {
		opts = append(opts, driven.WithPreviewToken(tok))
	}

	resp, err := s.exec.Execute(ctx, domain.Operation{
		Name:      tp.NodeQuery.OperationName,
		Query:     tp.NodeQuery.Text,
		Variables: vars,
	}, opts...)
	if err != nil {
		return false, err
	}

	raw, err := nodeItem(resp, tp.NodeField)
	if err != nil {
		return false, err
	}
	if raw == nil {
		logger.Debug("%s no longer exists remotely, removing", ev.RemoteID.Key())
		return true, s.nodes.Delete(ctx, ev.RemoteID)
	}
	node, err := s.decodeNode(tp, raw)
	if err != nil {
		return false, err
	}
	return false, s.nodes.Upsert(ctx, node)
}

// deleteAllSites removes every site variant of a node.
func (s *NodeSourcer) deleteAllSites(ctx context.Context, id domain.RemoteID) error {
	stored, err := s.nodes.List(ctx, id.TypeName)
	if err != nil {
		return err
	}
	for _, n := range stored {
		if n.RemoteID.ID != id.ID {
			continue
		}
		if err := s.nodes.Delete(ctx, n.RemoteID); err != nil {
			return err
		}
	}
	return nil
}

// decodeNode keys the node on the identity fragment: the site id is part of
// the key only for site-scoped types.
func (s *NodeSourcer) decodeNode(tp *domain.TypePlan, raw json.RawMessage) (domain.Node, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return domain.Node{}, fmt.Errorf("decode %s node: %w", tp.RemoteType.Name, err)
	}

	var id, site domain.FlexString
	if v, ok := fields[tp.RemoteType.IDField()]; ok {
		if err := json.Unmarshal(v, &id); err != nil {
			return domain.Node{}, fmt.Errorf("decode %s id: %w", tp.RemoteType.Name, err)
		}
	}
	if id == "" {
		return domain.Node{}, fmt.Errorf("%s node has no %s", tp.RemoteType.Name, tp.RemoteType.IDField())
	}
	if v, ok := fields[domain.SiteIDField]; ok && tp.SiteScoped {
		if err := json.Unmarshal(v, &site); err != nil {
			return domain.Node{}, fmt.Errorf("decode %s site id: %w", tp.RemoteType.Name, err)
		}
	}

	return domain.Node{
		RemoteID: domain.RemoteID{
			ID:       string(id),
			TypeName: tp.RemoteType.Name,
			SiteID:   string(site),
		},
		Data:      raw,
		SourcedAt: s.now(),
	}, nil
}

func listItems(resp *domain.Response, field string) ([]json.RawMessage, error) {
	data, err := responseFields(resp)
	if err != nil {
		return nil, err
	}
	var items []json.RawMessage
	if raw, ok := data[field]; ok {
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("decode %s: %w", field, err)
		}
	}
	return items, nil
}

// nodeItem returns the node object, or nil when the remote returned null.
func nodeItem(resp *domain.Response, field string) (json.RawMessage, error) {
	data, err := responseFields(resp)
	if err != nil {
		return nil, err
	}
	raw, ok := data[field]
	if !ok || string(raw) == "null" {
		return nil, nil
	}
	return raw, nil
}

func responseFields(resp *domain.Response) (map[string]json.RawMessage, error) {
	if !resp.HasData() {
		return nil, fmt.Errorf("%w: %s", domain.ErrTransportFailure, resp.ErrorMessage())
	}
	var data map[string]json.RawMessage
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return data, nil
}
