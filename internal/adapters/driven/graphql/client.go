// Package graphql is the HTTP transport for the remote GraphQL API.
package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/oauth2"

	"github.com/custodia-labs/contentsync/internal/core/domain"
	"github.com/custodia-labs/contentsync/internal/core/ports/driven"
	"github.com/custodia-labs/contentsync/internal/logger"
)

// Ensure Client implements the interface.
var _ driven.Executor = (*Client)(nil)

const (
	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// PreviewTokenHeader carries a single-use preview token.
	PreviewTokenHeader = "X-Preview-Token"

	// maxErrorBody bounds how much of an error response is kept.
	maxErrorBody = 512
)

// Client executes GraphQL operations over HTTP with retries.
type Client struct {
	endpoint    string
	http        *http.Client
	tokens      oauth2.TokenSource
	retry       domain.RetryConfig
	rateLimiter *RateLimiter
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTokenSource replaces the static bearer token.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(c *Client) {
		c.tokens = ts
	}
}

// NewClient creates a client for cfg.Endpoint authenticated with cfg.Token.
func NewClient(cfg *domain.Config, opts ...Option) *Client {
	c := &Client{
		endpoint:    cfg.Endpoint,
		http:        &http.Client{Timeout: DefaultTimeout},
		retry:       cfg.Retry,
		rateLimiter: NewRateLimiter(cfg.RequestsPerSecond),
	}
	if cfg.Token != "" {
		c.tokens = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token, TokenType: "Bearer"})
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type requestBody struct {
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables"`
	OperationName string         `json:"operationName,omitempty"`
}

// Execute sends the operation, retrying failed attempts with the configured
// backoff. The preview token in opts is attached to this call only.
// A response carrying GraphQL errors is returned as is.
func (c *Client) Execute(ctx context.Context, op domain.Operation, opts ...driven.CallOption) (*domain.Response, error) {
	callOpts := driven.ApplyCallOptions(opts...)

	vars := op.Variables
	if vars == nil {
		vars = map[string]any{}
	}
	body, err := json.Marshal(requestBody{Query: op.Query, Variables: vars, OperationName: op.Name})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", op.Name, err)
	}

	var (
		resp     *domain.Response
		attempts int
		status   int
	)
	err = retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		attempts++
		r, code, err := c.do(ctx, op.Name, body, callOpts)
		status = code
		if err == nil {
			resp = r
			return nil
		}
		if !c.retryable(code, err) {
			return err
		}
		logger.Debug("%s attempt %d failed: %v", op.Name, attempts, err)
		return retry.RetryableError(err)
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, &TransportError{Operation: op.Name, StatusCode: status, Attempts: attempts, Err: err}
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, name string, body []byte, opts driven.CallOptions) (*domain.Response, int, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, 0, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	if err := c.setHeaders(req, opts); err != nil {
		return nil, 0, err
	}

	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer httpResp.Body.Close()

	if err := c.rateLimiter.UpdateFromResponse(httpResp); err != nil {
		_, _ = io.Copy(io.Discard, httpResp.Body)
		return nil, httpResp.StatusCode, err
	}

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, httpResp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		if len(data) > maxErrorBody {
			data = data[:maxErrorBody]
		}
		return nil, httpResp.StatusCode, &StatusError{StatusCode: httpResp.StatusCode, Body: string(data)}
	}

	var resp domain.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, httpResp.StatusCode, fmt.Errorf("decode %s response: %w", name, err)
	}
	return &resp, httpResp.StatusCode, nil
}

// setHeaders applies the auth header, then the preview token, then caller
// headers, so the caller wins on conflict.
func (c *Client) setHeaders(req *http.Request, opts driven.CallOptions) error {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.tokens != nil {
		tok, err := c.tokens.Token()
		if err != nil {
			return fmt.Errorf("get token: %w", err)
		}
		tok.SetAuthHeader(req)
	}
	if opts.PreviewToken != "" {
		req.Header.Set(PreviewTokenHeader, opts.PreviewToken)
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}
	return nil
}

// retryable reports whether a failed attempt is retried. Without a status
// code filter every failure is retried.
func (c *Client) retryable(status int, err error) bool {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return true
	}
	if status == 0 || len(c.retry.StatusCodes) == 0 {
		return true
	}
	return slices.Contains(c.retry.StatusCodes, status)
}

func (c *Client) backoff() retry.Backoff {
	base := c.retry.BaseDelay
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	var b retry.Backoff
	switch c.retry.Backoff {
	case domain.BackoffConstant:
		b = retry.NewConstant(base)
	case domain.BackoffFibonacci:
		b = retry.NewFibonacci(base)
	default:
		b = retry.NewExponential(base)
	}
	b = retry.WithJitterPercent(10, b)
	if c.retry.MaxDelay > 0 {
		b = retry.WithCappedDuration(c.retry.MaxDelay, b)
	}
	retries := c.retry.Retries
	if retries < 0 {
		retries = 0
	}
	return retry.WithMaxRetries(uint64(retries), b)
}
