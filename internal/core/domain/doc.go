// Package domain defines the core entities for contentsync.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Config: Explicit runtime configuration passed to every component
//   - Schema: The remote GraphQL schema as returned by introspection
//   - Discovery: Sourcing capabilities advertised by the remote source
//   - SourcingPlan: Compiled per-type queries and the effective fragment set
//   - ChangeEvent: A normalised UPDATE or DELETE for one remote node
//   - SyncState: The persisted checkpoint of the last successful sync
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
