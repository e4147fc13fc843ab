package mcp

import (
	"context"
	"errors"
	"sort"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/contentsync/internal/core/domain"
	"github.com/custodia-labs/contentsync/internal/core/ports/driving"
)

// SyncInput is the input schema for the sync tool.
type SyncInput struct {
	Full bool `json:"full,omitempty" jsonschema:"ignore the stored checkpoint and source everything"`
}

// RunOutput describes one sync run.
type RunOutput struct {
	ID         string `json:"id"`
	Mode       string `json:"mode"`
	Updated    int    `json:"updated"`
	Deleted    int    `json:"deleted"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// StatusInput is the input schema for the sync_status tool.
type StatusInput struct{}

// StatusOutput is the output schema for the sync_status tool.
type StatusOutput struct {
	Running           bool           `json:"running"`
	RunID             string         `json:"run_id,omitempty"`
	ConfigVersion     string         `json:"config_version"`
	LastContentUpdate string         `json:"last_content_update"`
	NodeCounts        map[string]int `json:"node_counts"`
	Recent            []RunOutput    `json:"recent"`
}

// ListTypesInput is the input schema for the list_types tool.
type ListTypesInput struct {
	Interface string `json:"interface,omitempty" jsonschema:"only list types sourced through this interface"`
}

// TypeOutput describes one sourced remote type.
type TypeOutput struct {
	Name       string   `json:"name"`
	Interface  string   `json:"interface"`
	Interfaces []string `json:"interfaces"`
	Listable   bool     `json:"listable"`
	SiteAware  bool     `json:"site_aware"`
}

// ListTypesOutput is the output schema for the list_types tool.
type ListTypesOutput struct {
	Types []TypeOutput `json:"types"`
	Count int          `json:"count"`
}

// errNoPlan is returned by plan tools when no plan service is wired.
var errNoPlan = errors.New("mcp: sourcing plan is not available")

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "sync",
		Description: "Run one sync cycle against the remote CMS",
	}, s.handleSync)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "sync_status",
		Description: "Report the stored checkpoint, local node counts and recent runs",
	}, s.handleStatus)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_types",
		Description: "List the remote types the sourcing plan covers",
	}, s.handleListTypes)
}

func (s *Server) handleSync(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SyncInput,
) (*mcp.CallToolResult, RunOutput, error) {
	run, err := s.ports.Sync.Sync(ctx, driving.SyncRequest{Full: input.Full})
	if err != nil {
		return nil, RunOutput{}, err
	}
	return nil, runOutput(run), nil
}

func (s *Server) handleStatus(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ StatusInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	st, err := s.ports.Sync.Status(ctx)
	if err != nil {
		return nil, StatusOutput{}, err
	}
	return nil, statusOutput(st), nil
}

func (s *Server) handleListTypes(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ListTypesInput,
) (*mcp.CallToolResult, ListTypesOutput, error) {
	if s.ports.Plan == nil {
		return nil, ListTypesOutput{}, errNoPlan
	}
	plan, err := s.ports.Plan.Plan(ctx)
	if err != nil {
		return nil, ListTypesOutput{}, err
	}

	output := ListTypesOutput{Types: []TypeOutput{}}
	for i := range plan.Types {
		tp := &plan.Types[i]
		if input.Interface != "" && tp.Interface != input.Interface {
			continue
		}
		output.Types = append(output.Types, TypeOutput{
			Name:       tp.RemoteType.Name,
			Interface:  tp.Interface,
			Interfaces: tp.RemoteType.Interfaces,
			Listable:   tp.ListQuery != nil,
			SiteAware:  tp.RemoteType.SiteAware,
		})
	}
	sort.Slice(output.Types, func(i, j int) bool { return output.Types[i].Name < output.Types[j].Name })
	output.Count = len(output.Types)
	return nil, output, nil
}

func runOutput(run *domain.SyncRun) RunOutput {
	if run == nil {
		return RunOutput{}
	}
	return RunOutput{
		ID:         run.ID,
		Mode:       string(run.Mode),
		Updated:    run.Updated,
		Deleted:    run.Deleted,
		Success:    run.Success,
		Error:      run.Error,
		DurationMS: run.Duration().Milliseconds(),
	}
}

func statusOutput(st *driving.SyncStatus) StatusOutput {
	out := StatusOutput{
		Running:           st.Running,
		RunID:             st.RunID,
		ConfigVersion:     st.Checkpoint.ConfigVersion,
		LastContentUpdate: st.Checkpoint.LastContentUpdateTime,
		NodeCounts:        st.NodeCounts,
		Recent:            make([]RunOutput, 0, len(st.Recent)),
	}
	if out.NodeCounts == nil {
		out.NodeCounts = map[string]int{}
	}
	for i := range st.Recent {
		out.Recent = append(out.Recent, runOutput(&st.Recent[i]))
	}
	return out
}
