package mcp

import (
	"github.com/custodia-labs/contentsync/internal/core/ports/driving"
)

// Ports aggregates the driving port interfaces the MCP server uses.
type Ports struct {
	// Sync runs sync cycles and reports status.
	Sync driving.SyncService

	// Plan exposes the sourcing plan. Optional.
	Plan driving.PlanService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Sync == nil {
		return ErrMissingSyncService
	}
	return nil
}
