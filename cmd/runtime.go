package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spiffcs/langstats/config"
	"github.com/spiffcs/langstats/internal/aggregate"
	"github.com/spiffcs/langstats/internal/cache"
	"github.com/spiffcs/langstats/internal/constants"
	"github.com/spiffcs/langstats/internal/ghclient"
	"github.com/spiffcs/langstats/internal/log"
	"github.com/spiffcs/langstats/internal/metrics"
	"github.com/spiffcs/langstats/internal/service"
	"github.com/spiffcs/langstats/internal/skills"
)

// runtime bundles everything a command needs to answer queries.
type runtime struct {
	cfg      *config.Config
	settings config.Settings
	client   *ghclient.Client
	skills   skills.Source
	snapshot cache.Snapshotter
	metrics  *metrics.Metrics
	svc      *service.Service

	closers []func() error
}

// runtimeOptions selects the optional parts of a runtime.
type runtimeOptions struct {
	registry *prometheus.Registry
	progress bool
	schedule bool
}

// loadSettings loads config files and applies command-line overrides.
func loadSettings(opts *Options) (*config.Config, config.Settings, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, config.Settings{}, fmt.Errorf("failed to load config: %w", err)
	}
	settings, err := cfg.GetSettings()
	if err != nil {
		return nil, config.Settings{}, err
	}

	if opts.Username != "" {
		settings.Username = opts.Username
	}
	if opts.SkillsFile != "" {
		settings.SkillsFile = opts.SkillsFile
		settings.SkillsDSN = ""
	}
	if opts.SkillsDSN != "" {
		settings.SkillsDSN = opts.SkillsDSN
	}
	if opts.Snapshot != "" {
		settings.Snapshot = opts.Snapshot
	}
	if opts.Workers > 0 {
		settings.Workers = opts.Workers
	}
	if opts.LogFormat != "" {
		settings.LogFormat = opts.LogFormat
	}
	if err := settings.Validate(); err != nil {
		return nil, config.Settings{}, err
	}
	return cfg, settings, nil
}

// openSnapshotter returns the configured snapshot store, or nil for none.
func openSnapshotter(ctx context.Context, settings config.Settings) (cache.Snapshotter, func() error, error) {
	switch settings.Snapshot {
	case config.SnapshotFile:
		s, err := cache.NewFileSnapshotter(settings.SnapshotFile)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	case config.SnapshotRedis:
		client, err := cache.NewRedisClient(ctx, settings.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		s := cache.NewRedisSnapshotter(client, "")
		return s, s.Close, nil
	default:
		return nil, nil, nil
	}
}

// openSkills returns the configured skill source. A DSN wins over a file.
func openSkills(settings config.Settings) (skills.Source, func() error, error) {
	switch {
	case settings.SkillsDSN != "":
		db, err := skills.OpenPostgres(settings.SkillsDSN)
		if err != nil {
			return nil, nil, err
		}
		src := skills.NewGormSource(db)
		return src, src.Close, nil
	case settings.SkillsFile != "":
		return skills.NewFileSource(settings.SkillsFile), nil, nil
	default:
		return nil, nil, errors.New("no skill source configured. Set skills.file or skills.dsn, or pass --skills")
	}
}

// newRuntime wires configuration, GitHub access, persistence and the
// statistics service together.
func newRuntime(ctx context.Context, opts *Options, ro runtimeOptions) (*runtime, error) {
	cfg, settings, err := loadSettings(opts)
	if err != nil {
		return nil, err
	}
	log.InitializeFormat(opts.Verbosity, os.Stderr, settings.LogFormat)

	if settings.Username == "" {
		return nil, errors.New("username not configured. Set username in the config file or pass --username")
	}

	rt := &runtime{cfg: cfg, settings: settings}
	if ro.registry != nil {
		rt.metrics = metrics.NewMetrics(ro.registry)
	}

	token := cfg.GetGitHubToken()
	rt.client, err = ghclient.NewClient(ctx, token,
		ghclient.WithPageDelay(constants.RepoPageDelay, settings.PageDelay),
		ghclient.WithMaxCommitPages(settings.MaxCommitPages),
	)
	if err != nil {
		return nil, err
	}
	if token == "" {
		log.Warn("GITHUB_TOKEN not set, language statistics will be empty")
	}

	src, closeSkills, err := openSkills(settings)
	if err != nil {
		return nil, err
	}
	rt.skills = src
	rt.addCloser(closeSkills)

	snap, closeSnap, err := openSnapshotter(ctx, settings)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.snapshot = snap
	rt.addCloser(closeSnap)

	aggOpts := []aggregate.Option{aggregate.WithWorkers(settings.Workers)}
	if ro.progress {
		aggOpts = append(aggOpts, aggregate.WithProgress(func(completed, total int) {
			log.Progress("Scanning repositories: %d/%d", completed, total)
		}))
	}

	svcOpts := service.Options{
		Username:            settings.Username,
		TTL:                 settings.CacheTTL,
		ColdRefreshCooldown: settings.ColdRefreshCooldown,
		RefreshTimeout:      settings.RefreshTimeout,
		Snapshotter:         snap,
		Metrics:             rt.metrics,
	}
	if ro.schedule {
		svcOpts.Schedule = settings.Schedule
	}
	rt.svc = service.New(aggregate.New(rt.client, aggOpts...), rt.skills, cache.New(), svcOpts)
	return rt, nil
}

// loadIdentity resolves the login and verified emails used for commit
// attribution. Without a token only the login is used.
func (rt *runtime) loadIdentity(ctx context.Context) {
	id := rt.client.LoadIdentity(ctx, rt.settings.Username)
	log.Debug("commit attribution identity", "login", id.Login, "emails", len(id.Emails))
}

func (rt *runtime) addCloser(fn func() error) {
	if fn != nil {
		rt.closers = append(rt.closers, fn)
	}
}

// Close stops the service and releases database and Redis connections.
func (rt *runtime) Close() {
	if rt.svc != nil {
		rt.svc.Close()
	}
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			log.Debug("close failed", "error", err)
		}
	}
	rt.closers = nil
}
