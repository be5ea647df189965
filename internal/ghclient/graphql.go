package ghclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/spiffcs/langstats/internal/constants"
	"github.com/spiffcs/langstats/internal/log"
	"github.com/spiffcs/langstats/internal/model"
)

const graphqlEndpoint = "https://api.github.com/graphql"

// historyQuery walks the default branch one page at a time.
const historyQuery = `query($owner: String!, $name: String!, $first: Int!, $after: String) {
  repository(owner: $owner, name: $name) {
    defaultBranchRef {
      target {
        ... on Commit {
          history(first: $first, after: $after) {
            pageInfo { hasNextPage endCursor }
            nodes {
              committedDate
              additions
              deletions
              author { email name user { login } }
              committer { email name user { login } }
            }
          }
        }
      }
    }
  }
}`

// errNoData is returned when a GraphQL response carries errors and no data.
var errNoData = errors.New("GraphQL response contained no data")

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphqlError  `json:"errors"`
}

type graphqlError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

type historyData struct {
	Repository *struct {
		DefaultBranchRef *struct {
			Target *struct {
				History *commitHistory `json:"history"`
			} `json:"target"`
		} `json:"defaultBranchRef"`
	} `json:"repository"`
}

type commitHistory struct {
	PageInfo *struct {
		HasNextPage bool   `json:"hasNextPage"`
		EndCursor   string `json:"endCursor"`
	} `json:"pageInfo"`
	Nodes []commitNode `json:"nodes"`
}

type commitNode struct {
	CommittedDate string      `json:"committedDate"`
	Additions     int         `json:"additions"`
	Deletions     int         `json:"deletions"`
	Author        commitActor `json:"author"`
	Committer     commitActor `json:"committer"`
}

type commitActor struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	User  *struct {
		Login string `json:"login"`
	} `json:"user"`
}

func (a commitActor) login() string {
	if a.User == nil {
		return ""
	}
	return a.User.Login
}

// Commits lazily walks the default-branch history of repo and yields the
// commits attributed to the client's Identity. Each range starts again from
// the first page. The walk ends quietly on any failure, when ctx is done, or
// after the configured page cap; callers check ctx.Err() to tell a
// cancellation apart from a finished history.
func (c *Client) Commits(ctx context.Context, repo model.Repository) iter.Seq[model.CommitContribution] {
	return func(yield func(model.CommitContribution) bool) {
		if !c.HasToken() {
			return
		}
		id := c.Identity()

		var cursor string
		for page := 0; page < c.maxCommitPages; page++ {
			if page > 0 {
				if err := sleepCtx(ctx, c.commitPageDelay); err != nil {
					return
				}
			}

			history, err := c.historyPage(ctx, repo, cursor)
			if err != nil {
				if ctx.Err() == nil {
					log.Debug("commit history walk stopped", "repo", repo.FullName, "page", page, "error", err)
				}
				return
			}
			if history == nil {
				log.Trace("no default branch history", "repo", repo.FullName)
				return
			}
			log.Trace("commit page", "repo", repo.FullName, "page", page, "nodes", len(history.Nodes))

			for _, n := range history.Nodes {
				contrib, ok := normalizeCommit(n, id)
				if !ok {
					continue
				}
				if !yield(contrib) {
					return
				}
			}

			if history.PageInfo == nil || !history.PageInfo.HasNextPage || history.PageInfo.EndCursor == "" {
				return
			}
			cursor = history.PageInfo.EndCursor
		}
		log.Debug("commit page cap reached", "repo", repo.FullName, "pages", c.maxCommitPages)
	}
}

// historyPage fetches one page of history. A nil history with a nil error
// means the repository has no default branch (or the path is missing).
func (c *Client) historyPage(ctx context.Context, repo model.Repository, cursor string) (*commitHistory, error) {
	vars := map[string]any{
		"owner": repo.Owner,
		"name":  repo.Name,
		"first": constants.CommitPageSize,
	}
	if cursor != "" {
		vars["after"] = cursor
	}

	raw, err := c.executeGraphQL(ctx, historyQuery, vars)
	if err != nil {
		return nil, err
	}

	var data historyData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse commit history: %w", err)
	}
	if data.Repository == nil || data.Repository.DefaultBranchRef == nil ||
		data.Repository.DefaultBranchRef.Target == nil {
		return nil, nil
	}
	return data.Repository.DefaultBranchRef.Target.History, nil
}

// normalizeCommit applies attribution, date truncation and clamping. Commits
// that are not the user's, carry an unreadable date, or change no lines
// after clamping are dropped.
func normalizeCommit(n commitNode, id Identity) (model.CommitContribution, bool) {
	if !id.Owns(n.Author, n.Committer) {
		return model.CommitContribution{}, false
	}
	committed, err := time.Parse(time.RFC3339, strings.TrimSpace(n.CommittedDate))
	if err != nil {
		return model.CommitContribution{}, false
	}
	add := clamp(n.Additions, 0, constants.MaxCommitLines)
	del := clamp(n.Deletions, 0, constants.MaxCommitLines)
	if add == 0 && del == 0 {
		return model.CommitContribution{}, false
	}
	return model.CommitContribution{Date: model.DateOf(committed), Additions: add, Deletions: del}, true
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

// executeGraphQL posts a query to GitHub's GraphQL API. Errors in the body
// are logged; they fail the call only when no data came back with them.
func (c *Client) executeGraphQL(ctx context.Context, query string, vars map[string]any) (json.RawMessage, error) {
	bodyBytes, err := json.Marshal(graphqlRequest{Query: query, Variables: vars})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal GraphQL request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphqlURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create GraphQL request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GraphQL request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read GraphQL response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GraphQL request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var gqlResp graphqlResponse
	if err := json.Unmarshal(respBody, &gqlResp); err != nil {
		return nil, fmt.Errorf("failed to parse GraphQL response: %w", err)
	}
	for _, e := range gqlResp.Errors {
		log.Debug("GraphQL error", "message", e.Message, "type", e.Type)
	}

	if len(gqlResp.Data) == 0 || string(gqlResp.Data) == "null" {
		if len(gqlResp.Errors) > 0 {
			return nil, fmt.Errorf("%w: %s", errNoData, gqlResp.Errors[0].Message)
		}
		return nil, errNoData
	}
	return gqlResp.Data, nil
}
