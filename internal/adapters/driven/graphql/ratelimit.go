package graphql

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// HeaderRateRemaining is the remaining requests header.
	HeaderRateRemaining = "X-RateLimit-Remaining"

	// HeaderRateReset is the reset timestamp header (Unix seconds).
	HeaderRateReset = "X-RateLimit-Reset"

	// HeaderRetryAfter is the retry-after header (seconds or HTTP date).
	HeaderRetryAfter = "Retry-After"
)

// RateLimiter combines proactive throttling with the limits the remote
// reports in response headers.
type RateLimiter struct {
	mu          sync.Mutex
	remaining   int       // From API header, -1 when unknown
	resumeAfter time.Time // From Retry-After or the reset header
	bucket      *rate.Limiter
	now         func() time.Time
}

// NewRateLimiter creates a rate limiter. A non-positive rps disables
// proactive throttling.
func NewRateLimiter(rps float64) *RateLimiter {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &RateLimiter{
		remaining: -1,
		bucket:    rate.NewLimiter(limit, 1),
		now:       time.Now,
	}
}

// Wait blocks until it is safe to send a request.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if err := r.bucket.Wait(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	resume := r.resumeAfter
	r.mu.Unlock()

	if wait := resume.Sub(r.now()); wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return nil
}

// UpdateFromResponse records the limits reported by a response.
// It returns a RateLimitError when the response was throttled.
func (r *RateLimiter) UpdateFromResponse(resp *http.Response) error {
	if resp == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if v := resp.Header.Get(HeaderRateRemaining); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			r.remaining = n
		}
	}
	if r.remaining == 0 {
		if v := resp.Header.Get(HeaderRateReset); v != "" {
			if ts, err := strconv.ParseInt(v, 10, 64); err == nil {
				r.extend(time.Unix(ts, 0))
			}
		}
	}
	if v := resp.Header.Get(HeaderRetryAfter); v != "" {
		if at, ok := r.parseRetryAfter(v); ok {
			r.extend(at)
		}
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return &RateLimitError{ResetAt: r.resumeAfter}
	}
	return nil
}

// ResumeAfter returns the time before which no request is sent.
func (r *RateLimiter) ResumeAfter() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resumeAfter
}

func (r *RateLimiter) extend(t time.Time) {
	if t.After(r.resumeAfter) {
		r.resumeAfter = t
	}
}

func (r *RateLimiter) parseRetryAfter(v string) (time.Time, bool) {
	if secs, err := strconv.Atoi(v); err == nil {
		return r.now().Add(time.Duration(secs) * time.Second), true
	}
	if t, err := http.ParseTime(v); err == nil {
		return t, true
	}
	return time.Time{}, false
}
