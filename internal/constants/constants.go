// Package constants provides a centralized location for the tuning values
// and magic numbers used throughout langstats.
package constants

import "time"

// GitHub API paging constants
const (
	// RepoPageSize is the number of repositories requested per listing page.
	RepoPageSize = 100

	// CommitPageSize is the number of commits requested per history page.
	CommitPageSize = 100

	// MaxCommitPages bounds a single repository's history walk.
	MaxCommitPages = 500

	// RepoPageDelay is the pause between repository listing pages.
	RepoPageDelay = 50 * time.Millisecond

	// CommitPageDelay is the pause between commit history pages.
	CommitPageDelay = 100 * time.Millisecond

	// HTTPTimeout bounds every individual request to GitHub.
	HTTPTimeout = 30 * time.Second
)

// Rate limiting constants
const (
	// RateLimitLowWatermark is the threshold below which rate limit
	// warnings are logged.
	RateLimitLowWatermark = 100
)

// Aggregation constants
const (
	// MaxCommitLines caps the additions and deletions of a single commit
	// before apportionment so one generated-file commit cannot dominate.
	MaxCommitLines = 5000

	// DefaultWorkers is the number of repositories processed concurrently.
	DefaultWorkers = 4
)

// Cache constants
const (
	// StatsCacheTTL is the age after which cached series are stale.
	StatsCacheTTL = 24 * time.Hour

	// ColdRefreshCooldown is the minimum age of the last successful run
	// before a lookup for an unknown key forces another full refresh. Zero
	// disables the guard: every unknown key refreshes synchronously.
	ColdRefreshCooldown time.Duration = 0

	// RefreshTimeout bounds a background refresh.
	RefreshTimeout = 30 * time.Minute

	// RefreshSchedule is the default cron schedule for periodic refreshes.
	RefreshSchedule = "@every 24h"

	// SnapshotRedisKey is the Redis key holding the persisted snapshot.
	SnapshotRedisKey = "langstats:snapshot"
)

// Server constants
const (
	// DefaultServerAddr is the listen address for the serve command.
	DefaultServerAddr = ":8080"

	// ShutdownTimeout bounds graceful HTTP shutdown.
	ShutdownTimeout = 10 * time.Second
)
