// Package mcp provides an MCP (Model Context Protocol) server adapter.
// It lets AI assistants trigger syncs and inspect the sourcing plan.
package mcp

import "errors"

// ErrMissingSyncService is returned when the sync service is not provided.
var ErrMissingSyncService = errors.New("mcp: sync service is required")
