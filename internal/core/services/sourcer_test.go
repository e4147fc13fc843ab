package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/contentsync/internal/core/domain"
	"github.com/custodia-labs/contentsync/internal/core/ports/driven"
)

func articlePlan() *domain.SourcingPlan {
	return &domain.SourcingPlan{
		Types: []domain.TypePlan{{
			RemoteType:       domain.RemoteType{Name: "Article"},
			Interface:        "EntryInterface",
			IdentityFragment: "_ArticleID_",
			NodeField:        "entry",
			ListField:        "entries",
			NodeQuery:        &domain.QueryDocument{OperationName: "NODE_Article", Text: "query NODE_Article", Variables: []string{"id"}},
			ListQuery:        &domain.QueryDocument{OperationName: "LIST_Article", Text: "query LIST_Article", Variables: []string{"limit", "offset"}},
		}},
	}
}

// listHandler serves the given ids as pages of Article nodes.
func listHandler(ids []string) handlerFunc {
	return func(op domain.Operation, _ driven.CallOptions) (*domain.Response, error) {
		limit := op.Variables[LimitVar].(int)
		offset := op.Variables[OffsetVar].(int)
		items := make([]string, 0, limit)
		for i := offset; i < len(ids) && i < offset+limit; i++ {
			items = append(items, fmt.Sprintf(`{"__typename": "Article", "id": %q, "title": "t%s"}`, ids[i], ids[i]))
		}
		return &domain.Response{Data: json.RawMessage(`{"entries": [` + strings.Join(items, ",") + `]}`)}, nil
	}
}

func TestNodeSourcer_SourceAll(t *testing.T) {
	exec := newMockExecutor()
	exec.on("LIST_Article", listHandler([]string{"1", "2", "3", "4", "5"}))
	nodes := newMemNodes()
	s := NewNodeSourcer(exec, nodes, 2)

	res, err := s.SourceAll(context.Background(), articlePlan())
	require.NoError(t, err)

	assert.Equal(t, 5, res.Updated)
	assert.Equal(t, 0, res.Deleted)
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, nodes.ids("Article"))
	assert.Len(t, exec.callsTo("LIST_Article"), 3)

	n, err := nodes.Get(context.Background(), domain.RemoteID{ID: "3", TypeName: "Article"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"__typename": "Article", "id": "3", "title": "t3"}`, string(n.Data))
}

func TestNodeSourcer_SourceAll_IsIdempotent(t *testing.T) {
	exec := newMockExecutor()
	exec.on("LIST_Article", listHandler([]string{"1", "2", "3"}))
	nodes := newMemNodes()
	s := NewNodeSourcer(exec, nodes, 10)

	_, err := s.SourceAll(context.Background(), articlePlan())
	require.NoError(t, err)
	first := nodes.ids("Article")

	_, err = s.SourceAll(context.Background(), articlePlan())
	require.NoError(t, err)
	assert.Equal(t, first, nodes.ids("Article"))
}

func TestNodeSourcer_SourceAll_RemovesStaleNodes(t *testing.T) {
	exec := newMockExecutor()
	exec.on("LIST_Article", listHandler([]string{"1", "3"}))
	nodes := newMemNodes()
	for _, id := range []string{"1", "2", "3"} {
		require.NoError(t, nodes.Upsert(context.Background(), domain.Node{RemoteID: domain.RemoteID{ID: id, TypeName: "Article"}}))
	}
	require.NoError(t, nodes.Upsert(context.Background(), domain.Node{RemoteID: domain.RemoteID{ID: "9", TypeName: "Other"}}))

	res, err := NewNodeSourcer(exec, nodes, 10).SourceAll(context.Background(), articlePlan())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Deleted)
	assert.Equal(t, []string{"1", "3"}, nodes.ids("Article"))
	assert.Equal(t, []string{"9"}, nodes.ids("Other"), "types outside the plan are untouched")
}

func TestNodeSourcer_SourceAll_SkipsUnlistableTypes(t *testing.T) {
	plan := articlePlan()
	plan.Types[0].ListQuery = nil
	exec := newMockExecutor()

	res, err := NewNodeSourcer(exec, newMemNodes(), 10).SourceAll(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Updated)
	assert.Empty(t, exec.callsTo("LIST_Article"))
}

func TestNodeSourcer_SourceAll_Errors(t *testing.T) {
	t.Run("transport failure", func(t *testing.T) {
		exec := newMockExecutor()
		exec.on("LIST_Article", func(domain.Operation, driven.CallOptions) (*domain.Response, error) {
			return nil, domain.ErrTransportFailure
		})
		_, err := NewNodeSourcer(exec, newMemNodes(), 10).SourceAll(context.Background(), articlePlan())
		require.ErrorIs(t, err, domain.ErrTransportFailure)
	})

	t.Run("errors without data", func(t *testing.T) {
		exec := newMockExecutor()
		exec.on("LIST_Article", func(domain.Operation, driven.CallOptions) (*domain.Response, error) {
			return &domain.Response{Errors: []domain.GraphQLError{{Message: "bad query"}}}, nil
		})
		_, err := NewNodeSourcer(exec, newMemNodes(), 10).SourceAll(context.Background(), articlePlan())
		require.ErrorIs(t, err, domain.ErrTransportFailure)
		assert.Contains(t, err.Error(), "bad query")
	})

	t.Run("node without id", func(t *testing.T) {
		exec := newMockExecutor()
		exec.onData("LIST_Article", `{"entries": [{"__typename": "Article"}]}`)
		_, err := NewNodeSourcer(exec, newMemNodes(), 10).SourceAll(context.Background(), articlePlan())
		require.Error(t, err)
	})
}

func TestNodeSourcer_SourceChanges(t *testing.T) {
	exec := newMockExecutor()
	exec.on("NODE_Article", func(op domain.Operation, _ driven.CallOptions) (*domain.Response, error) {
		id := op.Variables["id"].(string)
		return &domain.Response{Data: json.RawMessage(fmt.Sprintf(`{"entry": {"id": %s, "title": "new"}}`, id))}, nil
	})
	nodes := newMemNodes()
	require.NoError(t, nodes.Upsert(context.Background(), domain.Node{RemoteID: domain.RemoteID{ID: "9", TypeName: "Article"}}))

	events := []domain.ChangeEvent{
		{EventName: domain.EventUpdate, RemoteTypeName: "Article", RemoteID: domain.RemoteID{ID: "7", TypeName: "Article"}},
		{EventName: domain.EventDelete, RemoteTypeName: "Article", RemoteID: domain.RemoteID{ID: "9", TypeName: "Article"}},
	}
	res, err := NewNodeSourcer(exec, nodes, 10).SourceChanges(context.Background(), articlePlan(), events, nil)
	require.NoError(t, err)

	assert.Equal(t, &domain.SourceResult{Updated: 1, Deleted: 1}, res)
	assert.Equal(t, []string{"7"}, nodes.ids("Article"))
	assert.Len(t, exec.callsTo("NODE_Article"), 1)
}

func TestNodeSourcer_SourceChanges_PreviewTokenUsedOnce(t *testing.T) {
	var withToken atomic.Int32
	exec := newMockExecutor()
	exec.on("NODE_Article", func(op domain.Operation, opts driven.CallOptions) (*domain.Response, error) {
		if opts.PreviewToken != "" {
			assert.Equal(t, "preview", opts.PreviewToken)
			withToken.Add(1)
		}
		return &domain.Response{Data: json.RawMessage(fmt.Sprintf(`{"entry": {"id": %q}}`, op.Variables["id"]))}, nil
	})

	var events []domain.ChangeEvent
	for i := 0; i < 10; i++ {
		id := fmt.Sprint(i)
		events = append(events, domain.ChangeEvent{
			EventName:      domain.EventUpdate,
			RemoteTypeName: "Article",
			RemoteID:       domain.RemoteID{ID: id, TypeName: "Article"},
		})
	}

	res, err := NewNodeSourcer(exec, newMemNodes(), 10).
		SourceChanges(context.Background(), articlePlan(), events, domain.NewPreviewToken("preview"))
	require.NoError(t, err)
	assert.Equal(t, 10, res.Updated)
	assert.Equal(t, int32(1), withToken.Load())
}

func TestNodeSourcer_SourceChanges_NullNodeIsDeleted(t *testing.T) {
	exec := newMockExecutor()
	exec.onData("NODE_Article", `{"entry": null}`)
	nodes := newMemNodes()
	id := domain.RemoteID{ID: "7", TypeName: "Article"}
	require.NoError(t, nodes.Upsert(context.Background(), domain.Node{RemoteID: id}))

	res, err := NewNodeSourcer(exec, nodes, 10).SourceChanges(context.Background(), articlePlan(),
		[]domain.ChangeEvent{{EventName: domain.EventUpdate, RemoteTypeName: "Article", RemoteID: id}}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deleted)
	assert.Empty(t, nodes.ids("Article"))
}

func TestNodeSourcer_SourceChanges_PassesSiteID(t *testing.T) {
	plan := articlePlan()
	plan.Types[0].SiteScoped = true
	plan.Types[0].NodeQuery.Variables = []string{"id", "siteId"}
	exec := newMockExecutor()
	exec.onData("NODE_Article", `{"entry": {"id": "7", "siteId": 2}}`)
	nodes := newMemNodes()

	id := domain.RemoteID{ID: "7", TypeName: "Article", SiteID: "2"}
	_, err := NewNodeSourcer(exec, nodes, 10).SourceChanges(context.Background(), plan,
		[]domain.ChangeEvent{{EventName: domain.EventUpdate, RemoteTypeName: "Article", RemoteID: id}}, nil)
	require.NoError(t, err)

	calls := exec.callsTo("NODE_Article")
	require.Len(t, calls, 1)
	assert.Equal(t, "2", calls[0].Op.Variables["siteId"])

	_, err = nodes.Get(context.Background(), id)
	assert.NoError(t, err)
}

func TestNodeSourcer_SourceChanges_JoinsFailures(t *testing.T) {
	exec := newMockExecutor()
	exec.onData("NODE_Article", `{"entry": {"id": "1"}}`)

	events := []domain.ChangeEvent{
		{EventName: domain.EventUpdate, RemoteTypeName: "Article", RemoteID: domain.RemoteID{ID: "1", TypeName: "Article"}},
		{EventName: domain.EventUpdate, RemoteTypeName: "Unknown", RemoteID: domain.RemoteID{ID: "2", TypeName: "Unknown"}},
	}
	res, err := NewNodeSourcer(exec, newMemNodes(), 10).SourceChanges(context.Background(), articlePlan(), events, nil)
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 1, res.Updated, "the other events are still applied")
}

func TestNodeSourcer_DeleteAfterFullSyncWithoutSites(t *testing.T) {
	exec := newMockExecutor()
	exec.onData("LIST_Article", `{"entries": [{"__typename": "Article", "id": "9", "siteId": 1}]}`)
	nodes := newMemNodes()
	s := NewNodeSourcer(exec, nodes, 10)
	ctx := context.Background()

	_, err := s.SourceAll(ctx, articlePlan())
	require.NoError(t, err)
	require.Equal(t, []string{"9"}, nodes.ids("Article"))
	_, err = nodes.Get(ctx, domain.RemoteID{ID: "9", TypeName: "Article"})
	require.NoError(t, err, "site id is not part of the key when the type is not site scoped")

	res, err := s.SourceChanges(ctx, articlePlan(), []domain.ChangeEvent{
		{EventName: domain.EventDelete, RemoteTypeName: "Article", RemoteID: domain.RemoteID{ID: "9", TypeName: "Article"}},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deleted)
	assert.Empty(t, nodes.ids("Article"))
}

func TestNodeSourcer_SiteIDIgnoredForUnscopedTypes(t *testing.T) {
	exec := newMockExecutor()
	exec.onData("NODE_Article", `{"entry": {"id": "7", "siteId": 1}}`)
	nodes := newMemNodes()
	ctx := context.Background()

	id := domain.RemoteID{ID: "7", TypeName: "Article", SiteID: "1"}
	_, err := NewNodeSourcer(exec, nodes, 10).SourceChanges(ctx, articlePlan(), []domain.ChangeEvent{
		{EventName: domain.EventUpdate, RemoteTypeName: "Article", RemoteID: id},
	}, nil)
	require.NoError(t, err)

	calls := exec.callsTo("NODE_Article")
	require.Len(t, calls, 1)
	assert.NotContains(t, calls[0].Op.Variables, "siteId")

	_, err = nodes.Get(ctx, domain.RemoteID{ID: "7", TypeName: "Article"})
	assert.NoError(t, err)

	res, err := NewNodeSourcer(exec, nodes, 10).SourceChanges(ctx, articlePlan(), []domain.ChangeEvent{
		{EventName: domain.EventDelete, RemoteTypeName: "Article", RemoteID: id},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deleted)
	assert.Empty(t, nodes.ids("Article"))
}

func TestNodeSourcer_DeleteWithoutSiteRemovesEverySiteVariant(t *testing.T) {
	plan := articlePlan()
	plan.Types[0].SiteScoped = true
	nodes := newMemNodes()
	ctx := context.Background()
	for _, site := range []string{"1", "2"} {
		require.NoError(t, nodes.Upsert(ctx, domain.Node{RemoteID: domain.RemoteID{ID: "9", TypeName: "Article", SiteID: site}}))
	}
	require.NoError(t, nodes.Upsert(ctx, domain.Node{RemoteID: domain.RemoteID{ID: "10", TypeName: "Article", SiteID: "1"}}))

	_, err := NewNodeSourcer(newMockExecutor(), nodes, 10).SourceChanges(ctx, plan, []domain.ChangeEvent{
		{EventName: domain.EventDelete, RemoteTypeName: "Article", RemoteID: domain.RemoteID{ID: "9", TypeName: "Article"}},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"10"}, nodes.ids("Article"))
}
