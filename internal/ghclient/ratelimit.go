package ghclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	gh "github.com/google/go-github/v57/github"
	"github.com/spiffcs/langstats/internal/constants"
	"github.com/spiffcs/langstats/internal/log"
)

// ErrRateLimited is returned when the GitHub API rate limit has been exceeded.
// Requests made while the quota is exhausted fail fast with this error
// instead of reaching the network.
var ErrRateLimited = errors.New("GitHub API rate limit exceeded")

// RateLimitState tracks the rate limit reported by the most recent response.
type RateLimitState struct {
	mu        sync.RWMutex
	limited   bool
	resetAt   time.Time
	remaining int
	limit     int
}

// IsLimited returns true while the quota is exhausted and has not yet reset.
func (s *RateLimitState) IsLimited() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.limited && time.Now().Before(s.resetAt)
}

func (s *RateLimitState) setLimited(resetAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limited = true
	s.resetAt = resetAt
}

func (s *RateLimitState) update(remaining, limit int, resetAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remaining = remaining
	s.limit = limit
	s.resetAt = resetAt
	s.limited = remaining == 0
}

// Status returns the last observed rate limit values.
func (s *RateLimitState) Status() (remaining, limit int, resetAt time.Time, limited bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.remaining, s.limit, s.resetAt, s.limited && time.Now().Before(s.resetAt)
}

// rateLimitTransport records rate limit headers and short-circuits requests
// while the quota is exhausted.
type rateLimitTransport struct {
	base  http.RoundTripper
	state *RateLimitState
}

func (t *rateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.state.IsLimited() {
		return nil, ErrRateLimited
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return resp, err
	}

	remaining, limit, resetAt := parseRateLimitHeaders(resp)
	if remaining >= 0 && limit > 0 {
		t.state.update(remaining, limit, resetAt)
	}
	if remaining > 0 && remaining <= constants.RateLimitLowWatermark {
		log.Debug("rate limit low", "remaining", remaining, "resets_at", resetAt.Format(time.RFC3339))
	}

	if resp.StatusCode == http.StatusTooManyRequests ||
		(resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0") {
		t.state.setLimited(resetAt)
		_ = resp.Body.Close()
		log.Warn("GitHub rate limit exhausted", "resets_at", resetAt.Format(time.RFC3339))
		return nil, ErrRateLimited
	}

	return resp, nil
}

// parseRateLimitHeaders extracts rate limit info from response headers.
// Missing values come back as -1 (and a zero reset time).
func parseRateLimitHeaders(resp *http.Response) (remaining, limit int, resetAt time.Time) {
	remaining = -1
	limit = -1

	if v := resp.Header.Get("X-RateLimit-Remaining"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			remaining = n
		}
	}
	if v := resp.Header.Get("X-RateLimit-Limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	if v := resp.Header.Get("X-RateLimit-Reset"); v != "" {
		if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
			resetAt = time.Unix(secs, 0)
		}
	}

	return remaining, limit, resetAt
}

// Quota is the remaining allowance of one GitHub API resource.
type Quota struct {
	Resource  string
	Remaining int
	Limit     int
	Reset     time.Time
}

// Quotas asks GitHub for the current core, search and GraphQL allowances.
func (c *Client) Quotas(ctx context.Context) ([]Quota, error) {
	limits, _, err := c.rest.RateLimit.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get rate limits: %w", err)
	}

	var out []Quota
	add := func(name string, r *gh.Rate) {
		if r == nil {
			return
		}
		out = append(out, Quota{Resource: name, Remaining: r.Remaining, Limit: r.Limit, Reset: r.Reset.Time})
	}
	add("core", limits.Core)
	add("search", limits.Search)
	add("graphql", limits.GraphQL)

	if core := limits.Core; core != nil {
		c.limits.update(core.Remaining, core.Limit, core.Reset.Time)
	}
	return out, nil
}
