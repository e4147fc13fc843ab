package graphql

import (
	"fmt"
	"time"

	"github.com/custodia-labs/contentsync/internal/core/domain"
)

// TransportError is returned when a request could not be completed after
// every retry. It matches domain.ErrTransportFailure.
type TransportError struct {
	Operation  string
	StatusCode int
	Attempts   int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("graphql: %s failed after %d attempts: status %d: %v",
			e.Operation, e.Attempts, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("graphql: %s failed after %d attempts: %v", e.Operation, e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is reports whether target is domain.ErrTransportFailure.
func (e *TransportError) Is(target error) bool {
	return target == domain.ErrTransportFailure
}

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// RateLimitError represents a throttled response with its reset time.
type RateLimitError struct {
	ResetAt time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("graphql: rate limited until %s", e.ResetAt.Format(time.RFC3339))
}
