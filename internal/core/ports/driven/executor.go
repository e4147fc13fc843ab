package driven

import (
	"context"

	"github.com/custodia-labs/contentsync/internal/core/domain"
)

// CacheBypassHeader asks the remote source to skip its response cache.
const CacheBypassHeader = "X-Cache-Bypass"

// Executor runs one remote GraphQL operation.
type Executor interface {
	// Execute sends the operation and returns the decoded response.
	// Failures after retries are exhausted match domain.ErrTransportFailure.
	Execute(ctx context.Context, op domain.Operation, opts ...CallOption) (*domain.Response, error)
}

// CallOptions are per-call settings for Execute.
type CallOptions struct {
	// Headers are added last and win over every other header.
	Headers map[string]string

	// PreviewToken is attached to this call only.
	PreviewToken string
}

// CallOption configures a single Execute call.
type CallOption func(*CallOptions)

// WithHeader sets a request header for this call.
func WithHeader(key, value string) CallOption {
	return func(o *CallOptions) {
		if o.Headers == nil {
			o.Headers = make(map[string]string)
		}
		o.Headers[key] = value
	}
}

// WithPreviewToken attaches a preview token to this call.
func WithPreviewToken(token string) CallOption {
	return func(o *CallOptions) {
		o.PreviewToken = token
	}
}

// WithCacheBypass asks the remote source not to serve a cached response.
func WithCacheBypass() CallOption {
	return WithHeader(CacheBypassHeader, "1")
}

// ApplyCallOptions folds opts into a CallOptions value.
func ApplyCallOptions(opts ...CallOption) CallOptions {
	var o CallOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
