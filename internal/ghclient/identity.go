package ghclient

import (
	"context"
	"fmt"
	"strings"

	gh "github.com/google/go-github/v57/github"
	"github.com/spiffcs/langstats/internal/log"
)

// Identity decides whether a commit belongs to the tracked user. Matching is
// exact and case-insensitive: the author or committer login equals Login, or
// one of their emails is in the verified set.
type Identity struct {
	Login  string
	Emails map[string]struct{}
}

// NewIdentity builds an Identity from a login and a list of verified emails.
func NewIdentity(login string, emails ...string) Identity {
	id := Identity{Login: strings.TrimSpace(login), Emails: make(map[string]struct{}, len(emails))}
	for _, e := range emails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			id.Emails[e] = struct{}{}
		}
	}
	return id
}

func (id Identity) matchesLogin(login string) bool {
	return id.Login != "" && login != "" && strings.EqualFold(id.Login, login)
}

func (id Identity) matchesEmail(email string) bool {
	if email == "" {
		return false
	}
	_, ok := id.Emails[strings.ToLower(email)]
	return ok
}

// Owns reports whether a commit with the given actors is attributed to the user.
func (id Identity) Owns(author, committer commitActor) bool {
	switch {
	case id.matchesLogin(author.login()):
		return true
	case id.matchesLogin(committer.login()):
		return true
	default:
		return id.matchesEmail(author.Email) || id.matchesEmail(committer.Email)
	}
}

// LoadIdentity sets the identity used to attribute commits. With a token the
// verified emails of the authenticated account are loaded too; failures leave
// the email set empty so attribution falls back to login matching.
func (c *Client) LoadIdentity(ctx context.Context, username string) Identity {
	emails, err := c.VerifiedEmails(ctx)
	if err != nil {
		log.Warn("could not load verified emails, matching commits by login only", "error", err)
	}
	id := NewIdentity(username, emails...)
	c.SetIdentity(id)
	log.Debug("loaded commit identity", "login", id.Login, "emails", len(id.Emails))
	return id
}

// SetIdentity replaces the identity used by Commits.
func (c *Client) SetIdentity(id Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity = id
}

// Identity returns the identity used by Commits.
func (c *Client) Identity() Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity
}

// VerifiedEmails lists the authenticated account's verified email addresses.
// It returns nothing without a token.
func (c *Client) VerifiedEmails(ctx context.Context) ([]string, error) {
	if !c.HasToken() {
		return nil, nil
	}

	opts := &gh.ListOptions{PerPage: 100}
	var emails []string
	for {
		list, resp, err := c.rest.Users.ListEmails(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list user emails: %w", err)
		}
		for _, e := range list {
			if e.GetVerified() && e.GetEmail() != "" {
				emails = append(emails, e.GetEmail())
			}
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return emails, nil
}
