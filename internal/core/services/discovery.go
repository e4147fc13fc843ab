package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/custodia-labs/contentsync/internal/core/domain"
	"github.com/custodia-labs/contentsync/internal/core/ports/driven"
	"github.com/custodia-labs/contentsync/internal/gql"
	"github.com/custodia-labs/contentsync/internal/logger"
)

// CapabilityField is the root query field advertising sourcing capabilities.
const CapabilityField = "sourceNodeInformation"

// metaFields are the optional root fields read next to the capabilities.
var metaFields = []string{
	"configVersion",
	"lastUpdateTime",
	"primarySiteId",
	"schemaTypePrefix",
	"connectorPluginVersion",
	"remoteSoftwareVersion",
}

type capabilityEntry struct {
	Node                 string `json:"node"`
	List                 string `json:"list"`
	FilterArgument       string `json:"filterArgument"`
	FilterTypeExpression string `json:"filterTypeExpression"`
	TargetInterface      string `json:"targetInterface"`
}

type discoveryResult struct {
	discovery *domain.Discovery
	err       error
}

// Discoverer finds the sourcing capabilities of the remote source.
type Discoverer struct {
	exec    driven.Executor
	schemas *SchemaCache
	group   singleflight.Group

	mu     sync.RWMutex
	result *discoveryResult
}

// NewDiscoverer creates a discoverer.
func NewDiscoverer(exec driven.Executor, schemas *SchemaCache) *Discoverer {
	return &Discoverer{exec: exec, schemas: schemas}
}

// Discover returns the capabilities of the remote source.
//
// When the schema has no capability query the discovery is empty and the
// error matches domain.ErrIncompatibleSource. The outcome is computed once;
// transport and schema failures are not memoized.
func (d *Discoverer) Discover(ctx context.Context) (*domain.Discovery, error) {
	d.mu.RLock()
	r := d.result
	d.mu.RUnlock()
	if r != nil {
		return r.discovery, r.err
	}

	v, err := doShared(ctx, &d.group, "discover", func(ctx context.Context) (any, error) {
		disc, err := d.discover(ctx)
		if err != nil && !isIncompatible(err) {
			return nil, err
		}
		res := &discoveryResult{discovery: disc, err: err}
		d.mu.Lock()
		d.result = res
		d.mu.Unlock()
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	res := v.(*discoveryResult)
	return res.discovery, res.err
}

func (d *Discoverer) discover(ctx context.Context) (*domain.Discovery, error) {
	schema, err := d.schemas.Get(ctx)
	if err != nil {
		return nil, err
	}

	empty := &domain.Discovery{Capabilities: map[string]*domain.Capability{}}
	query := schema.Query()
	if !query.HasField(CapabilityField) {
		return empty, fmt.Errorf("%w: query type %s has no %s field",
			domain.ErrIncompatibleSource, query.Name, CapabilityField)
	}

	op := capabilityOperation(query)
	resp, err := d.exec.Execute(ctx, domain.Operation{Name: op.Name, Query: gql.PrintOperation(op)})
	if err != nil {
		return nil, fmt.Errorf("discover capabilities: %w", err)
	}

	var data map[string]json.RawMessage
	if resp.HasData() {
		if err := json.Unmarshal(resp.Data, &data); err != nil {
			return nil, fmt.Errorf("%w: decode capabilities: %v", domain.ErrSchemaIntrospection, err)
		}
	}
	var entries []capabilityEntry
	if raw, ok := data[CapabilityField]; ok {
		if err := json.Unmarshal(raw, &entries); err != nil {
			return nil, fmt.Errorf("%w: decode capabilities: %v", domain.ErrSchemaIntrospection, err)
		}
	}
	if len(entries) == 0 {
		return empty, fmt.Errorf("%w: remote source advertised no capabilities", domain.ErrIncompatibleSource)
	}

	meta, err := decodeMeta(data)
	if err != nil {
		return nil, err
	}

	disc := &domain.Discovery{
		Capabilities:  make(map[string]*domain.Capability, len(entries)),
		PrimarySiteID: meta.PrimarySiteID,
		Meta:          meta,
	}
	for _, e := range entries {
		if e.TargetInterface == "" {
			logger.Warn("Skipping capability without target interface")
			continue
		}
		disc.Capabilities[e.TargetInterface] = &domain.Capability{
			Interface:            e.TargetInterface,
			ListQuery:            e.List,
			NodeQuery:            e.Node,
			FilterArgument:       e.FilterArgument,
			FilterTypeExpression: e.FilterTypeExpression,
		}
	}
	resolveTypes(schema, disc)

	logger.Info("Discovered %d interfaces with %d types", len(disc.Capabilities), disc.TypeCount())
	return disc, nil
}

// capabilityOperation selects the capability list plus every meta field the
// query type exposes.
func capabilityOperation(query *domain.TypeDef) *gql.Operation {
	sels := gql.SelectionSet{
		gql.NewField(CapabilityField, nil, gql.Leaf("node", "list", "filterArgument", "filterTypeExpression", "targetInterface")...),
	}
	for _, name := range metaFields {
		if f, ok := query.Field(name); ok && !f.HasRequiredArgs() {
			sels = append(sels, &gql.Field{Name: name})
		}
	}
	return gql.Query("sourceNodeData", nil, sels...)
}

func decodeMeta(data map[string]json.RawMessage) (domain.SchemaMeta, error) {
	values := make(map[string]string, len(metaFields))
	for _, name := range metaFields {
		raw, ok := data[name]
		if !ok {
			continue
		}
		var v domain.FlexString
		if err := json.Unmarshal(raw, &v); err != nil {
			return domain.SchemaMeta{}, fmt.Errorf("%w: decode %s: %v", domain.ErrSchemaIntrospection, name, err)
		}
		values[name] = string(v)
	}
	return domain.SchemaMeta{
		ConfigVersion:          values["configVersion"],
		LastUpdateTime:         values["lastUpdateTime"],
		PrimarySiteID:          values["primarySiteId"],
		SchemaTypePrefix:       values["schemaTypePrefix"],
		ConnectorPluginVersion: values["connectorPluginVersion"],
		RemoteSoftwareVersion:  values["remoteSoftwareVersion"],
	}, nil
}

// resolveTypes fills every capability with the concrete types of its interface.
func resolveTypes(schema *domain.Schema, disc *domain.Discovery) {
	memberOf := make(map[string][]string)
	for _, iface := range disc.Interfaces() {
		for _, t := range schema.PossibleTypes(iface) {
			memberOf[t.Name] = append(memberOf[t.Name], iface)
		}
	}
	for _, iface := range disc.Interfaces() {
		c := disc.Capabilities[iface]
		possible := schema.PossibleTypes(iface)
		if len(possible) == 0 {
			logger.Warn("Interface %s has no concrete types in the schema", iface)
		}
		for _, t := range possible {
			ifaces := append([]string(nil), memberOf[t.Name]...)
			sort.Strings(ifaces)
			c.Types = append(c.Types, domain.RemoteType{
				Name:       t.Name,
				Interfaces: ifaces,
				Fields:     t.Fields,
				DraftAware: t.HasField(domain.DraftIDField),
				SiteAware:  t.HasField(domain.SiteIDField),
			})
		}
	}
}

func isIncompatible(err error) bool {
	return errors.Is(err, domain.ErrIncompatibleSource)
}
