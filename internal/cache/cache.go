// Package cache holds computed language series in memory and persists
// snapshots of them so a restart does not force a cold recomputation.
package cache

import (
	"errors"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/spiffcs/langstats/internal/model"
)

// Version should be incremented when the snapshot format changes so older
// snapshots are ignored instead of misread.
const Version = 1

// ErrVersionMismatch is returned by Restore for snapshots written by another
// format version.
var ErrVersionMismatch = errors.New("snapshot version mismatch")

// Entry is the cached series for one lookup key.
type Entry struct {
	Series     []model.LanguagePoint `json:"series"`
	ComputedAt time.Time             `json:"computedAt"`
}

// State classifies a key at lookup time.
type State string

const (
	StateAbsent State = "absent"
	StateFresh  State = "fresh"
	StateStale  State = "stale"
)

// Cache is the in-memory series store. Staleness is tracked process-wide:
// one timestamp records the last successful (or no-op) refresh.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]Entry
	computedAt time.Time
}

// New creates an empty cache. An empty cache is stale.
func New() *Cache {
	return &Cache{entries: make(map[string]Entry)}
}

// Get returns the entry for key.
func (c *Cache) Get(key string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e, ok
}

// Lookup returns the entry for key together with its state at now.
func (c *Cache) Lookup(key string, now time.Time, ttl time.Duration) (Entry, State) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	switch {
	case !ok:
		return Entry{}, StateAbsent
	case c.staleLocked(now, ttl):
		return e, StateStale
	default:
		return e, StateFresh
	}
}

// Put stores the series for a single key without touching the refresh
// timestamp.
func (c *Cache) Put(key string, series []model.LanguagePoint, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = Entry{Series: series, ComputedAt: at}
}

// ReplaceAll installs the result of a successful run as one batch and stamps
// the refresh time. Keys absent from series are dropped, so every entry
// always comes from the same run.
func (c *Cache) ReplaceAll(series model.LanguageSeries, at time.Time) {
	next := make(map[string]Entry, len(series))
	for key, s := range series {
		next[key] = Entry{Series: s, ComputedAt: at}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = next
	c.computedAt = at
}

// MarkChecked stamps the refresh time without changing any entry. Used when a
// run had nothing to do.
func (c *Cache) MarkChecked(at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.computedAt = at
}

// IsStale reports whether the last refresh is older than ttl. A cache that
// was never refreshed is stale.
func (c *Cache) IsStale(now time.Time, ttl time.Duration) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.staleLocked(now, ttl)
}

func (c *Cache) staleLocked(now time.Time, ttl time.Duration) bool {
	return c.computedAt.IsZero() || now.Sub(c.computedAt) > ttl
}

// ComputedAt returns the time of the last refresh, zero if none.
func (c *Cache) ComputedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.computedAt
}

// Len returns the number of cached keys.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Keys returns the cached keys in sorted order.
func (c *Cache) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Sorted(maps.Keys(c.entries))
}

// Snapshot returns a copy of the whole cache.
func (c *Cache) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Snapshot{
		Version:    Version,
		ComputedAt: c.computedAt,
		Entries:    maps.Clone(c.entries),
	}
}

// Restore replaces the cache content with s.
func (c *Cache) Restore(s Snapshot) error {
	if s.Version != Version {
		return ErrVersionMismatch
	}
	entries := make(map[string]Entry, len(s.Entries))
	maps.Copy(entries, s.Entries)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = entries
	c.computedAt = s.ComputedAt
	return nil
}
