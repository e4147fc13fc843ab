package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// uriScheme is the custom URI scheme for contentsync resources.
const uriScheme = "contentsync://"

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "status",
		Name:        "status",
		Description: "Sync checkpoint, node counts and recent runs",
		MIMEType:    "application/json",
	}, s.handleStatusResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "types/{typeName}/query",
		Name:        "type-query",
		Description: "Compiled GraphQL documents used to source a remote type",
		MIMEType:    "application/graphql",
	}, s.handleTypeQueryResource)
}

func (s *Server) handleStatusResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	st, err := s.ports.Sync.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting status: %w", err)
	}

	data, err := json.MarshalIndent(statusOutput(st), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling status: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// handleTypeQueryResource returns the node and list documents of a type.
func (s *Server) handleTypeQueryResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Plan == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	typeName := extractTypeName(req.Params.URI)
	if typeName == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	plan, err := s.ports.Plan.Plan(ctx)
	if err != nil {
		return nil, fmt.Errorf("building plan: %w", err)
	}
	tp, ok := plan.Type(typeName)
	if !ok {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	var docs []string
	if tp.NodeQuery != nil {
		docs = append(docs, tp.NodeQuery.Text)
	}
	if tp.ListQuery != nil {
		docs = append(docs, tp.ListQuery.Text)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/graphql",
			Text:     strings.Join(docs, "\n"),
		}},
	}, nil
}

// extractTypeName extracts the type from contentsync://types/{typeName}/query.
func extractTypeName(uri string) string {
	const prefix = uriScheme + "types/"
	const suffix = "/query"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	uri = strings.TrimPrefix(uri, prefix)
	if !strings.HasSuffix(uri, suffix) {
		return ""
	}

	return strings.TrimSuffix(uri, suffix)
}
