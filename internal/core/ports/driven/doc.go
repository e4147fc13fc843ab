// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - Executor: Runs one remote GraphQL operation
//   - CheckpointStore: Key/value persistence for the sync checkpoint
//   - NodeStore: Local persistence of sourced nodes
//   - FragmentRepository: Fragment file I/O
//   - Sourcer: Applies a sourcing plan and change events to the node store
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - SyncRunStore: Sync run history. Without it, status shows no history.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
