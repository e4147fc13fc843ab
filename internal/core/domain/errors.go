package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSyncInProgress indicates a sync is already running.
	ErrSyncInProgress = errors.New("sync in progress")

	// Sourcing Errors.

	// ErrIncompatibleSource indicates the remote schema does not expose the
	// sourcing capability query. Sourcing is skipped, the host keeps running.
	ErrIncompatibleSource = errors.New("incompatible source")

	// ErrTransportFailure indicates a remote call failed after retries were exhausted.
	ErrTransportFailure = errors.New("transport failure")

	// ErrSchemaIntrospection indicates the remote schema is missing or malformed.
	ErrSchemaIntrospection = errors.New("schema introspection failed")

	// ErrInvalidFragment indicates a fragment file could not be parsed or
	// references an unknown fragment.
	ErrInvalidFragment = errors.New("invalid fragment")
)
