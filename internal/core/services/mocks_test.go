package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/contentsync/internal/core/domain"
	"github.com/custodia-labs/contentsync/internal/core/ports/driven"
	"github.com/custodia-labs/contentsync/internal/gql"
)

// --- Schema fixtures ---

func ref(kind domain.TypeKind, name string) *domain.TypeRef {
	return &domain.TypeRef{Kind: kind, Name: name}
}

func scalar(name string) *domain.TypeRef {
	return ref(domain.KindScalar, name)
}

func listOf(t *domain.TypeRef) *domain.TypeRef {
	return &domain.TypeRef{Kind: domain.KindList, OfType: t}
}

func nonNull(t *domain.TypeRef) *domain.TypeRef {
	return &domain.TypeRef{Kind: domain.KindNonNull, OfType: t}
}

func field(name string, t *domain.TypeRef, args ...domain.InputValue) domain.FieldDef {
	return domain.FieldDef{Name: name, Type: t, Args: args}
}

func arg(name string, t *domain.TypeRef) domain.InputValue {
	return domain.InputValue{Name: name, Type: t}
}

// testSchema is a small content schema with two interfaces: entries with a
// type filter and two implementors, and assets with a single implementor.
func testSchema() *domain.Schema {
	queryArg := scalar("QueryArgument")
	entryIface := ref(domain.KindInterface, "EntryInterface")
	assetIface := ref(domain.KindInterface, "AssetInterface")
	changed := ref(domain.KindObject, "ChangedNode")

	return domain.NewSchema("Query", []domain.TypeDef{
		{Kind: domain.KindObject, Name: "Query", Fields: []domain.FieldDef{
			field(CapabilityField, listOf(ref(domain.KindObject, "SourceNodeInformation"))),
			field("configVersion", scalar("String")),
			field("lastUpdateTime", scalar("String")),
			field("primarySiteId", scalar("String")),
			field("entries", listOf(entryIface),
				arg("section", listOf(scalar("String"))),
				arg("limit", scalar("Int")),
				arg("offset", scalar("Int")),
				arg("siteId", listOf(queryArg)),
			),
			field("entry", entryIface,
				arg("id", listOf(queryArg)),
				arg("siteId", listOf(queryArg)),
			),
			field("assets", listOf(assetIface), arg("limit", scalar("Int")), arg("offset", scalar("Int"))),
			field("asset", assetIface, arg("id", listOf(queryArg))),
			field(UpdatedSinceField, listOf(changed), arg("since", nonNull(scalar("String")))),
			field(DeletedSinceField, listOf(changed), arg("since", nonNull(scalar("String")))),
		}},
		{Kind: domain.KindObject, Name: "SourceNodeInformation", Fields: []domain.FieldDef{
			field("node", scalar("String")),
			field("list", scalar("String")),
			field("filterArgument", scalar("String")),
			field("filterTypeExpression", scalar("String")),
			field("targetInterface", scalar("String")),
		}},
		{Kind: domain.KindObject, Name: "ChangedNode", Fields: []domain.FieldDef{
			field("nodeId", scalar("ID")),
			field("nodeType", scalar("String")),
		}},
		{
			Kind: domain.KindInterface,
			Name: "EntryInterface",
			Fields: []domain.FieldDef{
				field("id", scalar("ID")),
				field("title", scalar("String")),
				field("parent", entryIface),
			},
			PossibleTypes: []domain.TypeRef{
				{Kind: domain.KindObject, Name: "news_Entry"},
				{Kind: domain.KindObject, Name: "pages_Entry"},
			},
		},
		{
			Kind: domain.KindObject,
			Name: "news_Entry",
			Fields: []domain.FieldDef{
				field("id", scalar("ID")),
				field("sourceId", scalar("ID")),
				field("siteId", scalar("Int")),
				field("title", scalar("String")),
				field("postDate", scalar("DateTime")),
				field("author", ref(domain.KindObject, "User")),
				field("related", listOf(entryIface)),
				field("excerpt", scalar("String"), arg("words", nonNull(scalar("Int")))),
			},
			Interfaces: []domain.TypeRef{*entryIface},
		},
		{
			Kind: domain.KindObject,
			Name: "pages_Entry",
			Fields: []domain.FieldDef{
				field("id", scalar("ID")),
				field("title", nonNull(scalar("String"))),
				field("slug", scalar("String")),
			},
			Interfaces: []domain.TypeRef{*entryIface},
		},
		{
			Kind:          domain.KindInterface,
			Name:          "AssetInterface",
			Fields:        []domain.FieldDef{field("id", scalar("ID")), field("url", scalar("String"))},
			PossibleTypes: []domain.TypeRef{{Kind: domain.KindObject, Name: "images_Asset"}},
		},
		{
			Kind: domain.KindObject,
			Name: "images_Asset",
			Fields: []domain.FieldDef{
				field("id", scalar("ID")),
				field("url", scalar("String")),
				field("width", scalar("Int")),
			},
			Interfaces: []domain.TypeRef{*assetIface},
		},
		{Kind: domain.KindObject, Name: "User", Fields: []domain.FieldDef{
			field("name", scalar("String")),
			field("email", scalar("String")),
		}},
		{Kind: domain.KindScalar, Name: "ID"},
		{Kind: domain.KindScalar, Name: "String"},
		{Kind: domain.KindScalar, Name: "Int"},
		{Kind: domain.KindScalar, Name: "DateTime"},
		{Kind: domain.KindScalar, Name: "QueryArgument"},
	})
}

// introspectionData renders a schema as the data object of an
// introspection response.
func introspectionData(t *testing.T, s *domain.Schema) json.RawMessage {
	t.Helper()
	body := map[string]any{
		"__schema": map[string]any{
			"queryType": map[string]string{"name": s.QueryType},
			"types":     s.Types,
		},
	}
	data, err := json.Marshal(body)
	require.NoError(t, err)
	return data
}

const capabilityData = `{
  "sourceNodeInformation": [
    {"node": "entry", "list": "entries", "filterArgument": "section", "filterTypeExpression": "(.+)_Entry", "targetInterface": "EntryInterface"},
    {"node": "asset", "list": "assets", "filterArgument": "", "filterTypeExpression": "", "targetInterface": "AssetInterface"}
  ],
  "configVersion": "cv-1",
  "lastUpdateTime": "2024-01-01 10:00:00",
  "primarySiteId": 1
}`

// testDiscovery returns the discovery matching testSchema.
func testDiscovery(t *testing.T, s *domain.Schema) *domain.Discovery {
	t.Helper()
	exec := newMockExecutor()
	exec.onData("IntrospectionQuery", string(introspectionData(t, s)))
	exec.onData("sourceNodeData", capabilityData)
	disc, err := NewDiscoverer(exec, NewSchemaCache(exec)).Discover(context.Background())
	require.NoError(t, err)
	return disc
}

// --- Mock executor ---

type recordedCall struct {
	Op      domain.Operation
	Options driven.CallOptions
}

type handlerFunc func(op domain.Operation, opts driven.CallOptions) (*domain.Response, error)

// mockExecutor answers operations by name and records every call.
type mockExecutor struct {
	mu       sync.Mutex
	handlers map[string]handlerFunc
	calls    []recordedCall
}

func newMockExecutor() *mockExecutor {
	return &mockExecutor{handlers: make(map[string]handlerFunc)}
}

func (m *mockExecutor) on(name string, h handlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[name] = h
}

func (m *mockExecutor) onData(name, data string) {
	m.on(name, func(domain.Operation, driven.CallOptions) (*domain.Response, error) {
		return &domain.Response{Data: json.RawMessage(data)}, nil
	})
}

func (m *mockExecutor) Execute(_ context.Context, op domain.Operation, opts ...driven.CallOption) (*domain.Response, error) {
	o := driven.ApplyCallOptions(opts...)
	m.mu.Lock()
	m.calls = append(m.calls, recordedCall{Op: op, Options: o})
	h, ok := m.handlers[op.Name]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: unexpected operation %s", domain.ErrTransportFailure, op.Name)
	}
	return h(op, o)
}

func (m *mockExecutor) callsTo(name string) []recordedCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []recordedCall
	for _, c := range m.calls {
		if c.Op.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// --- Store fakes ---

type memCheckpoints struct {
	mu     sync.Mutex
	values map[string]string
	setErr error
}

func newMemCheckpoints() *memCheckpoints {
	return &memCheckpoints{values: make(map[string]string)}
}

func (m *memCheckpoints) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return "", domain.ErrNotFound
	}
	return v, nil
}

func (m *memCheckpoints) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.values[key] = value
	return nil
}

func (m *memCheckpoints) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

type memNodes struct {
	mu    sync.Mutex
	nodes map[string]domain.Node
}

func newMemNodes() *memNodes {
	return &memNodes{nodes: make(map[string]domain.Node)}
}

func nodeKey(id domain.RemoteID) string {
	return id.TypeName + "/" + id.Key()
}

func (m *memNodes) Upsert(_ context.Context, node domain.Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes[nodeKey(node.RemoteID)] = node
	return nil
}

func (m *memNodes) Delete(_ context.Context, id domain.RemoteID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.nodes, nodeKey(id))
	return nil
}

func (m *memNodes) Get(_ context.Context, id domain.RemoteID) (*domain.Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[nodeKey(id)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &n, nil
}

func (m *memNodes) List(_ context.Context, typeName string) ([]domain.Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Node
	for _, n := range m.nodes {
		if n.RemoteID.TypeName == typeName {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RemoteID.ID < out[j].RemoteID.ID })
	return out, nil
}

func (m *memNodes) Counts(_ context.Context) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[string]int)
	for _, n := range m.nodes {
		counts[n.RemoteID.TypeName]++
	}
	return counts, nil
}

func (m *memNodes) ids(typeName string) []string {
	nodes, _ := m.List(context.Background(), typeName)
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.RemoteID.ID)
	}
	return out
}

type memRuns struct {
	mu   sync.Mutex
	runs []domain.SyncRun
}

func (m *memRuns) Record(_ context.Context, run *domain.SyncRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, *run)
	return nil
}

func (m *memRuns) Recent(_ context.Context, limit int) ([]domain.SyncRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.SyncRun
	for i := len(m.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.runs[i])
	}
	return out, nil
}

func (m *memRuns) Prune(_ context.Context, keep int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.runs) > keep {
		m.runs = m.runs[len(m.runs)-keep:]
	}
	return nil
}

// memFragments is an in-memory FragmentRepository.
type memFragments struct {
	mu      sync.Mutex
	user    map[string]string
	working map[string]string
	debug   map[string]string
	resets  int
}

func newMemFragments() *memFragments {
	return &memFragments{
		user:    make(map[string]string),
		working: make(map[string]string),
		debug:   make(map[string]string),
	}
}

func (m *memFragments) UserFragments(_ context.Context) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.user))
	for k, v := range m.user {
		out[k] = v
	}
	return out, nil
}

func (m *memFragments) WriteUserFragment(_ context.Context, name, source string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.user[name]; ok {
		return false, nil
	}
	m.user[name] = source
	return true, nil
}

func (m *memFragments) ResetWorking(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.working = make(map[string]string)
	m.resets++
	return nil
}

func (m *memFragments) WriteWorking(_ context.Context, name, source string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.working[name] = source
	return nil
}

func (m *memFragments) WriteDebug(_ context.Context, name, source string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.debug[name] = source
	return nil
}

var errBoom = errors.New("boom")

func selectionNames(sels []gql.Selection) []string {
	var out []string
	for _, sel := range sels {
		switch s := sel.(type) {
		case *gql.Field:
			out = append(out, s.Name)
		case *gql.FragmentSpread:
			out = append(out, "..."+s.Name)
		}
	}
	return out
}
