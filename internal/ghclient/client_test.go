package ghclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/spiffcs/langstats/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, srv *httptest.Server, token string, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{
		WithBaseURL(srv.URL),
		WithGraphQLURL(srv.URL + "/graphql"),
		WithPageDelay(0, 0),
	}, opts...)
	c, err := NewClient(context.Background(), token, opts...)
	require.NoError(t, err)
	return c
}

func repoJSON(owner string, n int) map[string]any {
	name := fmt.Sprintf("repo-%d", n)
	return map[string]any{
		"name":      name,
		"full_name": owner + "/" + name,
		"owner":     map[string]any{"login": owner},
	}
}

func TestListRepositories(t *testing.T) {
	var pages []string
	mux := http.NewServeMux()
	mux.HandleFunc("/users/octo/repos", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "all", q.Get("type"))
		assert.Equal(t, "created", q.Get("sort"))
		assert.Equal(t, "asc", q.Get("direction"))
		assert.Equal(t, "100", q.Get("per_page"))
		pages = append(pages, q.Get("page"))

		var out []map[string]any
		switch q.Get("page") {
		case "1":
			for i := 0; i < 100; i++ {
				out = append(out, repoJSON("octo", i))
			}
		case "2":
			// repo-5 repeats across pages and must only appear once
			out = append(out, repoJSON("octo", 5), repoJSON("octo", 100))
		}
		_ = json.NewEncoder(w).Encode(out)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv, "token")
	repos, err := c.ListRepositories(context.Background(), "octo")
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "2"}, pages)
	require.Len(t, repos, 101)
	assert.Equal(t, model.Repository{FullName: "octo/repo-0", Owner: "octo", Name: "repo-0"}, repos[0])
	assert.Equal(t, "octo/repo-100", repos[100].FullName)
}

func TestListRepositoriesStopsOnEmptyPage(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, "")
	repos, err := c.ListRepositories(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, repos)
	assert.Equal(t, 1, calls)
}

func TestListRepositoriesPartialFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			http.Error(w, `{"message":"boom"}`, http.StatusInternalServerError)
			return
		}
		var out []map[string]any
		for i := 0; i < 100; i++ {
			out = append(out, repoJSON("octo", i))
		}
		_ = json.NewEncoder(w).Encode(out)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, "token")
	repos, err := c.ListRepositories(context.Background(), "octo")
	require.Error(t, err)
	assert.Len(t, repos, 100)
}

func TestLanguageWeights(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/u/split/languages", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"C#": 500, "HTML": 500}`))
	})
	mux.HandleFunc("/repos/u/empty/languages", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Python": 0}`))
	})
	mux.HandleFunc("/repos/u/gone/languages", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv, "token")
	ctx := context.Background()

	got := c.LanguageWeights(ctx, model.Repository{FullName: "u/split", Owner: "u", Name: "split"})
	assert.Equal(t, model.LanguageWeights{"c#": 0.5, "html": 0.5}, got)

	got = c.LanguageWeights(ctx, model.Repository{FullName: "u/empty", Owner: "u", Name: "empty"})
	assert.Empty(t, got)

	got = c.LanguageWeights(ctx, model.Repository{FullName: "u/gone", Owner: "u", Name: "gone"})
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestWeightsFromBytesSumToOne(t *testing.T) {
	w := weightsFromBytes(map[string]int{"Go": 700, "Shell": 200, "Makefile": 100})
	sum := 0.0
	for _, v := range w {
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.InDelta(t, 0.7, w["go"], 1e-9)
}

func TestVerifiedEmails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/user/emails", r.URL.Path)
		_, _ = w.Write([]byte(`[
			{"email": "Me@Example.com", "verified": true, "primary": true},
			{"email": "old@example.com", "verified": false}
		]`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, "token")
	id := c.LoadIdentity(context.Background(), "octo")
	assert.Equal(t, "octo", id.Login)
	assert.Contains(t, id.Emails, "me@example.com")
	assert.NotContains(t, id.Emails, "old@example.com")
	assert.Equal(t, id, c.Identity())
}

func TestVerifiedEmailsWithoutToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request to %s", r.URL.Path)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, "")
	emails, err := c.VerifiedEmails(context.Background())
	require.NoError(t, err)
	assert.Empty(t, emails)
}

func TestRateLimitTransportShortCircuits(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Limit", "5000")
		w.Header().Set("X-RateLimit-Reset", "4102444800") // 2100-01-01
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, "token")
	_, err := c.ListRepositories(context.Background(), "octo")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRateLimited), "got %v", err)
	assert.True(t, c.RateLimits().IsLimited())

	_, err = c.ListRepositories(context.Background(), "octo")
	assert.True(t, errors.Is(err, ErrRateLimited))
	assert.Equal(t, int32(1), hits.Load())
}

func TestQuotas(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rate_limit", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"resources":{
			"core":{"limit":5000,"remaining":4990,"reset":4102444800},
			"graphql":{"limit":5000,"remaining":12,"reset":4102444800}
		}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, "token")
	quotas, err := c.Quotas(context.Background())
	require.NoError(t, err)
	require.Len(t, quotas, 2)

	assert.Equal(t, "core", quotas[0].Resource)
	assert.Equal(t, 4990, quotas[0].Remaining)
	assert.Equal(t, 5000, quotas[0].Limit)
	assert.Equal(t, "graphql", quotas[1].Resource)
	assert.Equal(t, 12, quotas[1].Remaining)
	assert.Equal(t, int64(4102444800), quotas[1].Reset.Unix())

	remaining, limit, _, limited := c.RateLimits().Status()
	assert.Equal(t, 4990, remaining)
	assert.Equal(t, 5000, limit)
	assert.False(t, limited)
}
