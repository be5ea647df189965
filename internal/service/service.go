// Package service serves cached language statistics and keeps them current
// with single-flight refreshes.
package service

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"runtime/debug"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spiffcs/langstats/internal/aggregate"
	"github.com/spiffcs/langstats/internal/cache"
	"github.com/spiffcs/langstats/internal/constants"
	"github.com/spiffcs/langstats/internal/langname"
	"github.com/spiffcs/langstats/internal/log"
	"github.com/spiffcs/langstats/internal/metrics"
	"github.com/spiffcs/langstats/internal/model"
	"github.com/spiffcs/langstats/internal/skills"
)

// RefreshPolicy describes how reads interact with refreshes.
const RefreshPolicy = "stale-while-revalidate"

// Runner computes series for the tracked languages of an account.
// *aggregate.Aggregator satisfies it.
type Runner interface {
	Run(ctx context.Context, account string, langs []model.TrackedLanguage) (aggregate.Result, error)
}

// Options configures a Service. Zero durations select the defaults, except
// ColdRefreshCooldown where zero disables the guard.
type Options struct {
	Username            string
	TTL                 time.Duration
	ColdRefreshCooldown time.Duration
	RefreshTimeout      time.Duration
	// Schedule is a robfig/cron spec for periodic refreshes. Empty disables
	// the scheduler.
	Schedule    string
	Snapshotter cache.Snapshotter
	Metrics     *metrics.Metrics
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Status is a point-in-time view of the service.
type Status struct {
	Username       string
	TTL            time.Duration
	RefreshPolicy  string
	Schedule       string
	LastComputedAt time.Time
	Refreshing     bool
	Stale          bool
	Languages      int
}

// Service answers language statistics queries from the cache.
type Service struct {
	runner Runner
	skills skills.Source
	cache  *cache.Cache
	opts   Options
	now    func() time.Time

	// gate holds one token while a refresh runs.
	gate       chan struct{}
	refreshing atomic.Bool

	baseCtx context.Context
	cancel  context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
	cron   *cron.Cron
}

// New creates a Service. c may already hold restored entries.
func New(runner Runner, src skills.Source, c *cache.Cache, opts Options) *Service {
	if opts.TTL <= 0 {
		opts.TTL = constants.StatsCacheTTL
	}
	if opts.RefreshTimeout <= 0 {
		opts.RefreshTimeout = constants.RefreshTimeout
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	if c == nil {
		c = cache.New()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		runner:  runner,
		skills:  src,
		cache:   c,
		opts:    opts,
		now:     now,
		gate:    make(chan struct{}, 1),
		baseCtx: ctx,
		cancel:  cancel,
	}
}

// Username returns the account whose statistics are served.
func (s *Service) Username() string {
	return s.opts.Username
}

// Cache returns the underlying cache.
func (s *Service) Cache() *cache.Cache {
	return s.cache
}

// GetStats returns the cumulative series for a language. alias, when
// non-empty, is used instead of language to find the series. It never fails:
// a language without data yields an empty series.
func (s *Service) GetStats(_ context.Context, language, alias string) []model.LanguagePoint {
	key := lookupKey(language, alias)
	if key == "" {
		return []model.LanguagePoint{}
	}

	now := s.now()
	entry, state := s.cache.Lookup(key, now, s.opts.TTL)
	s.opts.Metrics.ObserveLookup(string(state))

	switch state {
	case cache.StateFresh:
		return clone(entry.Series)
	case cache.StateStale:
		log.Debug("serving stale series", "language", key)
		s.refreshInBackground("stale read")
		return clone(entry.Series)
	}

	if s.coolingDown(now) {
		log.Debug("unknown language, skipping refresh", "language", key)
		return []model.LanguagePoint{}
	}

	// A departing caller must not cancel the shared run. Close still does.
	runCtx, cancel := context.WithTimeout(s.baseCtx, s.opts.RefreshTimeout)
	defer cancel()
	if _, err := s.Refresh(runCtx); err != nil {
		log.Warn("refresh for unknown language failed", "language", key, "error", err)
	}
	entry, _ = s.cache.Get(key)
	return clone(entry.Series)
}

// Cached returns the cached series for a language without refreshing
// anything, and whether the key was cached at all.
func (s *Service) Cached(language, alias string) ([]model.LanguagePoint, bool) {
	key := lookupKey(language, alias)
	if key == "" {
		return []model.LanguagePoint{}, false
	}
	entry, ok := s.cache.Get(key)
	return clone(entry.Series), ok
}

// lookupKey resolves the cache key: the alias when given, else the language.
func lookupKey(language, alias string) string {
	lookup := strings.TrimSpace(alias)
	if lookup == "" {
		lookup = language
	}
	return langname.Key(lookup)
}

// coolingDown reports whether the last refresh is recent enough that an
// absent key should not force another one.
func (s *Service) coolingDown(now time.Time) bool {
	if s.opts.ColdRefreshCooldown <= 0 {
		return false
	}
	last := s.cache.ComputedAt()
	return !last.IsZero() && now.Sub(last) < s.opts.ColdRefreshCooldown
}

func clone(series []model.LanguagePoint) []model.LanguagePoint {
	if len(series) == 0 {
		return []model.LanguagePoint{}
	}
	return slices.Clone(series)
}

// Refresh recomputes all tracked languages. It returns false without doing
// anything when another refresh is already running. A failed run leaves the
// cache untouched.
func (s *Service) Refresh(ctx context.Context) (ran bool, err error) {
	select {
	case s.gate <- struct{}{}:
	default:
		log.Debug("refresh already in progress")
		s.opts.Metrics.ObserveRefresh(metrics.ResultContended, 0)
		return false, nil
	}
	s.refreshing.Store(true)
	defer func() {
		s.refreshing.Store(false)
		<-s.gate
	}()

	start := s.now()
	result, err := s.refreshLocked(ctx)
	elapsed := s.now().Sub(start)
	s.opts.Metrics.ObserveRefresh(result, elapsed)
	return true, err
}

func (s *Service) refreshLocked(ctx context.Context) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("panic during refresh", "panic", r, "stack", string(debug.Stack()))
			result, err = metrics.ResultFailure, fmt.Errorf("refresh panicked: %v", r)
		}
	}()

	list, err := s.skills.Skills(ctx)
	if err != nil {
		return metrics.ResultFailure, fmt.Errorf("failed to load skills: %w", err)
	}
	langs := skills.Trackable(list)
	if len(langs) == 0 {
		s.cache.MarkChecked(s.now())
		log.Info("no trackable languages, nothing to compute")
		return metrics.ResultNoop, nil
	}

	log.Info("refreshing language statistics", "username", s.opts.Username, "languages", len(langs))
	res, err := s.runner.Run(ctx, s.opts.Username, langs)
	if err != nil {
		return metrics.ResultFailure, err
	}

	at := s.now()
	s.cache.ReplaceAll(withTrackedKeys(res.Series, res.Names), at)
	s.opts.Metrics.RecordSuccess(at, res.Scanned, res.Languages())
	log.Info("refresh complete",
		"repositories", res.Repositories,
		"scanned", res.Scanned,
		"commits", res.Commits,
		"languages", res.Languages())

	s.saveSnapshot(ctx)
	return metrics.ResultSuccess, nil
}

// withTrackedKeys returns series with an empty series added for every
// tracked key that saw no data, so those keys read as fresh and empty
// rather than absent.
func withTrackedKeys(series model.LanguageSeries, names map[string]string) model.LanguageSeries {
	out := make(model.LanguageSeries, len(names)+len(series))
	for key := range names {
		out[key] = []model.LanguagePoint{}
	}
	maps.Copy(out, series)
	return out
}

// saveSnapshot persists the cache. Failures are logged only.
func (s *Service) saveSnapshot(ctx context.Context) {
	if s.opts.Snapshotter == nil {
		return
	}
	if err := s.opts.Snapshotter.Save(ctx, s.cache.Snapshot()); err != nil {
		log.Warn("failed to save snapshot", "location", s.opts.Snapshotter.Location(), "error", err)
		return
	}
	log.Debug("snapshot saved", "location", s.opts.Snapshotter.Location())
}

// refreshInBackground starts a refresh bounded by the refresh timeout unless
// one is already running or the service is closed.
func (s *Service) refreshInBackground(reason string) {
	if s.refreshing.Load() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(s.baseCtx, s.opts.RefreshTimeout)
		defer cancel()

		defer func() {
			if r := recover(); r != nil {
				log.Error("panic in background refresh", "reason", reason, "panic", r, "stack", string(debug.Stack()))
			}
		}()

		if _, err := s.Refresh(ctx); err != nil {
			log.Warn("background refresh failed", "reason", reason, "error", err)
		}
	}()
}

// Start restores the persisted snapshot, computes the statistics when
// nothing was restored and starts the refresh schedule.
func (s *Service) Start(ctx context.Context) error {
	s.LoadSnapshot(ctx)

	if s.cache.Len() == 0 {
		runCtx, cancel := context.WithTimeout(ctx, s.opts.RefreshTimeout)
		_, err := s.Refresh(runCtx)
		cancel()
		if err != nil {
			log.Warn("initial refresh failed", "error", err)
		}
	} else if s.cache.IsStale(s.now(), s.opts.TTL) {
		s.refreshInBackground("stale snapshot")
	}

	if s.opts.Schedule == "" {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(s.opts.Schedule, func() { s.refreshInBackground("scheduled") }); err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", s.opts.Schedule, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.cron = c
	c.Start()
	log.Debug("refresh schedule started", "schedule", s.opts.Schedule)
	return nil
}

// LoadSnapshot restores the persisted snapshot into the cache and reports
// whether one was restored. Missing, unreadable or incompatible snapshots are
// logged and skipped.
func (s *Service) LoadSnapshot(ctx context.Context) bool {
	if s.opts.Snapshotter == nil {
		return false
	}
	snap, err := s.opts.Snapshotter.Load(ctx)
	switch {
	case errors.Is(err, cache.ErrNoSnapshot):
		log.Debug("no snapshot to restore", "location", s.opts.Snapshotter.Location())
		return false
	case err != nil:
		log.Warn("failed to load snapshot", "location", s.opts.Snapshotter.Location(), "error", err)
		return false
	}
	if err := s.cache.Restore(snap); err != nil {
		log.Warn("ignoring snapshot", "location", s.opts.Snapshotter.Location(), "error", err)
		return false
	}
	log.Info("restored snapshot", "languages", s.cache.Len(), "computedAt", snap.ComputedAt)
	return true
}

// Status returns the current state of the service.
func (s *Service) Status() Status {
	now := s.now()
	return Status{
		Username:       s.opts.Username,
		TTL:            s.opts.TTL,
		RefreshPolicy:  RefreshPolicy,
		Schedule:       s.opts.Schedule,
		LastComputedAt: s.cache.ComputedAt(),
		Refreshing:     s.refreshing.Load(),
		Stale:          s.cache.IsStale(now, s.opts.TTL),
		Languages:      s.cache.Len(),
	}
}

// Close stops the schedule, cancels background refreshes and waits for them
// to return.
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	c := s.cron
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
	s.cancel()
	s.wg.Wait()
}
