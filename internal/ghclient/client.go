package ghclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	gh "github.com/google/go-github/v57/github"
	"github.com/spiffcs/langstats/internal/constants"
	"github.com/spiffcs/langstats/internal/langname"
	"github.com/spiffcs/langstats/internal/log"
	"github.com/spiffcs/langstats/internal/model"
	"golang.org/x/oauth2"
)

// Client wraps the GitHub REST and GraphQL APIs with the calls the
// statistics engine needs.
type Client struct {
	rest       *gh.Client
	http       *http.Client
	graphqlURL string

	// token is intentionally unexported. NEVER add String(), MarshalJSON(),
	// or any method that could expose this value in logs or serialized output.
	token string

	repoPageDelay   time.Duration
	commitPageDelay time.Duration
	maxCommitPages  int

	limits *RateLimitState

	mu       sync.RWMutex
	identity Identity
}

// Option configures a Client.
type Option func(*Client) error

// WithBaseURL points the REST client at a different API root (GitHub
// Enterprise or a test server). A trailing slash is added when missing.
func WithBaseURL(raw string) Option {
	return func(c *Client) error {
		if !strings.HasSuffix(raw, "/") {
			raw += "/"
		}
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid base URL %q: %w", raw, err)
		}
		c.rest.BaseURL = u
		return nil
	}
}

// WithGraphQLURL overrides the GraphQL endpoint.
func WithGraphQLURL(u string) Option {
	return func(c *Client) error {
		c.graphqlURL = u
		return nil
	}
}

// WithPageDelay sets the courtesy pauses between repository listing pages
// and between commit history pages. Zero disables pacing.
func WithPageDelay(repos, commits time.Duration) Option {
	return func(c *Client) error {
		c.repoPageDelay = repos
		c.commitPageDelay = commits
		return nil
	}
}

// WithMaxCommitPages bounds each repository's history walk.
func WithMaxCommitPages(n int) Option {
	return func(c *Client) error {
		if n > 0 {
			c.maxCommitPages = n
		}
		return nil
	}
}

// NewClient creates a GitHub client. An empty token is allowed: REST calls
// then go out unauthenticated and the commit history walk is disabled.
func NewClient(ctx context.Context, token string, opts ...Option) (*Client, error) {
	limits := &RateLimitState{}

	var hc *http.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		hc = oauth2.NewClient(ctx, ts)
	} else {
		hc = &http.Client{Transport: http.DefaultTransport}
	}
	hc.Transport = &rateLimitTransport{base: hc.Transport, state: limits}
	hc.Timeout = constants.HTTPTimeout

	c := &Client{
		rest:            gh.NewClient(hc),
		http:            hc,
		graphqlURL:      graphqlEndpoint,
		token:           token,
		repoPageDelay:   constants.RepoPageDelay,
		commitPageDelay: constants.CommitPageDelay,
		maxCommitPages:  constants.MaxCommitPages,
		limits:          limits,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// HasToken reports whether the client is authenticated. Without a token the
// GraphQL history walk is unavailable.
func (c *Client) HasToken() bool {
	return c.token != ""
}

// HistoryEnabled reports whether commit history can be walked.
func (c *Client) HistoryEnabled() bool {
	return c.HasToken()
}

// RateLimits returns the rate limit state observed on recent responses.
func (c *Client) RateLimits() *RateLimitState {
	return c.limits
}

// ListRepositories returns every repository visible for account, oldest
// first, de-duplicated by full name. A failed page ends pagination; the
// repositories gathered so far are returned together with the error.
func (c *Client) ListRepositories(ctx context.Context, account string) ([]model.Repository, error) {
	opts := &gh.RepositoryListByUserOptions{
		Type:      "all",
		Sort:      "created",
		Direction: "asc",
		ListOptions: gh.ListOptions{
			PerPage: constants.RepoPageSize,
		},
	}

	seen := make(map[string]struct{})
	var repos []model.Repository

	for page := 1; ; page++ {
		opts.Page = page
		list, _, err := c.rest.Repositories.ListByUser(ctx, account, opts)
		if err != nil {
			return repos, fmt.Errorf("failed to list repositories for %s (page %d): %w", account, page, err)
		}
		log.Trace("repository page", "account", account, "page", page, "count", len(list))

		for _, r := range list {
			repo, ok := toRepository(r)
			if !ok {
				continue
			}
			if _, dup := seen[repo.FullName]; dup {
				continue
			}
			seen[repo.FullName] = struct{}{}
			repos = append(repos, repo)
		}

		if len(list) < constants.RepoPageSize {
			break
		}
		if err := sleepCtx(ctx, c.repoPageDelay); err != nil {
			return repos, err
		}
	}

	log.Debug("discovered repositories", "account", account, "count", len(repos))
	return repos, nil
}

func toRepository(r *gh.Repository) (model.Repository, bool) {
	full := r.GetFullName()
	if full == "" {
		return model.Repository{}, false
	}
	owner, name := r.GetOwner().GetLogin(), r.GetName()
	if owner == "" || name == "" {
		parts := strings.SplitN(full, "/", 2)
		if len(parts) != 2 {
			return model.Repository{}, false
		}
		owner, name = parts[0], parts[1]
	}
	return model.Repository{FullName: full, Owner: owner, Name: name}, true
}

// LanguageWeights returns each language's share of the repository's bytes.
// Any failure yields an empty map; the repository then contributes nothing.
func (c *Client) LanguageWeights(ctx context.Context, repo model.Repository) model.LanguageWeights {
	langs, _, err := c.rest.Repositories.ListLanguages(ctx, repo.Owner, repo.Name)
	if err != nil {
		log.Debug("failed to fetch repository languages", "repo", repo.FullName, "error", err)
		return model.LanguageWeights{}
	}
	return weightsFromBytes(langs)
}

func weightsFromBytes(langs map[string]int) model.LanguageWeights {
	total := 0
	for _, n := range langs {
		if n > 0 {
			total += n
		}
	}
	weights := make(model.LanguageWeights, len(langs))
	if total == 0 {
		return weights
	}
	for name, n := range langs {
		if n <= 0 {
			continue
		}
		weights[langname.Key(name)] += float64(n) / float64(total)
	}
	return weights
}

// sleepCtx pauses for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
