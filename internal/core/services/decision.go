package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/custodia-labs/contentsync/internal/core/domain"
	"github.com/custodia-labs/contentsync/internal/core/ports/driven"
	"github.com/custodia-labs/contentsync/internal/gql"
	"github.com/custodia-labs/contentsync/internal/logger"
)

// Change feed root fields.
const (
	UpdatedSinceField = "nodesUpdatedSince"
	DeletedSinceField = "nodesDeletedSince"
)

// DecideMode chooses between a full and a delta sync. A changed config
// version or a missing local update time forces a full sync.
func DecideMode(remote domain.RemoteState, local domain.SyncState) domain.SyncMode {
	if remote.ConfigVersion != local.ConfigVersion || local.LastContentUpdateTime == "" {
		return domain.SyncModeFull
	}
	return domain.SyncModeDelta
}

// DecisionEngine reads the remote state and change feed.
type DecisionEngine struct {
	exec       driven.Executor
	schemas    *SchemaCache
	sites      []string
	discoverer *Discoverer
}

// NewDecisionEngine creates a decision engine.
func NewDecisionEngine(exec driven.Executor, schemas *SchemaCache) *DecisionEngine {
	return &DecisionEngine{exec: exec, schemas: schemas}
}

// WithSites scopes the change feed to sites when its fields take a siteId
// argument. With no sites the discovered primary site is used.
func (e *DecisionEngine) WithSites(sites []string, discoverer *Discoverer) *DecisionEngine {
	e.sites = sites
	e.discoverer = discoverer
	return e
}

// RemoteState fetches the remote config version and last update time,
// bypassing any response cache.
func (e *DecisionEngine) RemoteState(ctx context.Context) (domain.RemoteState, error) {
	op := gql.Query("contentState", nil, gql.Leaf("configVersion", "lastUpdateTime")...)
	resp, err := e.exec.Execute(ctx, domain.Operation{Name: op.Name, Query: gql.PrintOperation(op)}, driven.WithCacheBypass())
	if err != nil {
		return domain.RemoteState{}, fmt.Errorf("fetch remote state: %w", err)
	}
	if !resp.HasData() {
		return domain.RemoteState{}, fmt.Errorf("fetch remote state: %w: %s", domain.ErrTransportFailure, resp.ErrorMessage())
	}

	var data struct {
		ConfigVersion  domain.FlexString `json:"configVersion"`
		LastUpdateTime domain.FlexString `json:"lastUpdateTime"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return domain.RemoteState{}, fmt.Errorf("decode remote state: %w", err)
	}
	return domain.RemoteState{
		ConfigVersion:  string(data.ConfigVersion),
		LastUpdateTime: string(data.LastUpdateTime),
	}, nil
}

type changedNode struct {
	NodeID   domain.FlexString `json:"nodeId"`
	NodeType string            `json:"nodeType"`
	SiteID   domain.FlexString `json:"siteId"`
}

// FetchChanges returns the nodes updated and deleted since the given time
// as UPDATE events followed by DELETE events.
func (e *DecisionEngine) FetchChanges(ctx context.Context, since string) ([]domain.ChangeEvent, error) {
	feed := e.changeFeed(ctx)

	item := gql.Leaf("nodeId", "nodeType")
	if feed.withSite {
		item = append(item, &gql.Field{Name: domain.SiteIDField})
	}
	updatedArgs := gql.ArgumentList{gql.Arg("since", gql.Var("since"))}
	if a, ok := siteArgument(feed.updated, feed.sites); ok {
		updatedArgs = append(updatedArgs, a)
	}
	deletedArgs := gql.ArgumentList{gql.Arg("since", gql.Var("since"))}
	if a, ok := siteArgument(feed.deleted, feed.sites); ok {
		deletedArgs = append(deletedArgs, a)
	}
	op := gql.Query("nodeChanges",
		[]*gql.VariableDefinition{gql.VarDef("since", "String!")},
		gql.NewField(UpdatedSinceField, updatedArgs, item...),
		gql.NewField(DeletedSinceField, deletedArgs, item...),
	)

	resp, err := e.exec.Execute(ctx, domain.Operation{
		Name:      op.Name,
		Query:     gql.PrintOperation(op),
		Variables: map[string]any{"since": since},
	})
	if err != nil {
		return nil, fmt.Errorf("fetch changes: %w", err)
	}
	if !resp.HasData() {
		return nil, fmt.Errorf("fetch changes: %w: %s", domain.ErrTransportFailure, resp.ErrorMessage())
	}

	var data map[string][]changedNode
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, fmt.Errorf("decode changes: %w", err)
	}

	updated := toEvents(domain.EventUpdate, data[UpdatedSinceField])
	deleted := toEvents(domain.EventDelete, data[DeletedSinceField])
	logger.Info("Found %d updated and %d deleted nodes since %s", len(updated), len(deleted), since)
	return append(updated, deleted...), nil
}

// changeFeedShape is what the schema says about the change feed fields.
type changeFeedShape struct {
	updated  domain.FieldDef
	deleted  domain.FieldDef
	withSite bool
	sites    []string
}

// changeFeed inspects the change feed fields. Without a schema the feed is
// queried by time alone.
func (e *DecisionEngine) changeFeed(ctx context.Context) changeFeedShape {
	var shape changeFeedShape
	if e.schemas == nil {
		return shape
	}
	schema, err := e.schemas.Get(ctx)
	if err != nil {
		return shape
	}
	query := schema.Query()
	if query == nil {
		return shape
	}
	shape.updated, _ = query.Field(UpdatedSinceField)
	shape.deleted, _ = query.Field(DeletedSinceField)
	if t, ok := schema.Type(shape.updated.Type.NamedType()); ok {
		shape.withSite = t.HasField(domain.SiteIDField)
	}

	_, updatedTakesSite := shape.updated.Arg(domain.SiteIDField)
	_, deletedTakesSite := shape.deleted.Arg(domain.SiteIDField)
	if updatedTakesSite || deletedTakesSite {
		shape.sites = e.feedSites(ctx)
	}
	return shape
}

func (e *DecisionEngine) feedSites(ctx context.Context) []string {
	if len(e.sites) > 0 {
		return e.sites
	}
	if e.discoverer == nil {
		return nil
	}
	disc, _ := e.discoverer.Discover(ctx)
	if disc == nil || disc.PrimarySiteID == "" {
		return nil
	}
	return []string{disc.PrimarySiteID}
}

func toEvents(name domain.EventName, nodes []changedNode) []domain.ChangeEvent {
	events := make([]domain.ChangeEvent, 0, len(nodes))
	for _, n := range nodes {
		if n.NodeID == "" || n.NodeType == "" {
			logger.Warn("Skipping change without id or type")
			continue
		}
		events = append(events, domain.ChangeEvent{
			EventName:      name,
			RemoteTypeName: n.NodeType,
			RemoteID: domain.RemoteID{
				ID:       string(n.NodeID),
				TypeName: n.NodeType,
				SiteID:   string(n.SiteID),
			},
		})
	}
	return events
}

// ParseWebhook decodes and validates a webhook body.
func ParseWebhook(body []byte) (*domain.WebhookPayload, error) {
	var p domain.WebhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%w: decode webhook: %v", domain.ErrInvalidInput, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// WebhookEvent converts a webhook payload into exactly one change event.
// It reports false for an unrecognised operation. The returned token, if
// any, must be honoured by the next request only.
func WebhookEvent(p domain.WebhookPayload) (domain.ChangeEvent, *domain.PreviewToken, bool) {
	var name domain.EventName
	switch strings.ToLower(p.Operation) {
	case "delete":
		name = domain.EventDelete
	case "update":
		name = domain.EventUpdate
	default:
		return domain.ChangeEvent{}, nil, false
	}
	return domain.ChangeEvent{
		EventName:      name,
		RemoteTypeName: p.TypeName,
		RemoteID: domain.RemoteID{
			ID:       string(p.ID),
			TypeName: p.TypeName,
			SiteID:   string(p.SiteID),
		},
	}, domain.NewPreviewToken(p.Token), true
}
