// Package aggregate turns a user's repositories and commits into cumulative
// per-language line-count series.
package aggregate

import (
	"context"
	"fmt"
	"iter"
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/spiffcs/langstats/internal/constants"
	"github.com/spiffcs/langstats/internal/langname"
	"github.com/spiffcs/langstats/internal/log"
	"github.com/spiffcs/langstats/internal/model"
	"golang.org/x/sync/errgroup"
)

// Source is the GitHub surface the aggregator reads from.
type Source interface {
	ListRepositories(ctx context.Context, account string) ([]model.Repository, error)
	LanguageWeights(ctx context.Context, repo model.Repository) model.LanguageWeights
	Commits(ctx context.Context, repo model.Repository) iter.Seq[model.CommitContribution]
	// HistoryEnabled is false when commit history cannot be read at all
	// (no credentials), in which case a run produces nothing.
	HistoryEnabled() bool
}

// ProgressFunc is called as repositories complete.
type ProgressFunc func(completed, total int)

// Result is the outcome of one aggregation run.
type Result struct {
	// Series holds one cumulative series per lookup key that saw data.
	Series model.LanguageSeries
	// Names maps each lookup key to the display name of the first tracked
	// language that used it.
	Names map[string]string

	Repositories int // discovered
	Scanned      int // walked for commits (overlapping weights)
	Commits      int // attributed commits that contributed to at least one language
}

// Languages returns the number of languages with data.
func (r Result) Languages() int {
	return len(r.Series)
}

// Aggregator computes language series from a Source.
type Aggregator struct {
	src        Source
	workers    int
	onProgress ProgressFunc
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithWorkers sets how many repositories are processed concurrently.
func WithWorkers(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.workers = n
		}
	}
}

// WithProgress registers a progress callback. It may be called from several
// goroutines.
func WithProgress(fn ProgressFunc) Option {
	return func(a *Aggregator) {
		a.onProgress = fn
	}
}

// New creates an Aggregator reading from src.
func New(src Source, opts ...Option) *Aggregator {
	a := &Aggregator{src: src, workers: constants.DefaultWorkers}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run discovers account's repositories and aggregates them. Discovery that
// fails before finding any repository fails the run; a partial listing is
// used as-is.
func (a *Aggregator) Run(ctx context.Context, account string, langs []model.TrackedLanguage) (Result, error) {
	if !a.src.HistoryEnabled() {
		log.Warn("commit history unavailable without a GitHub token, statistics will be empty")
		return Result{Series: model.LanguageSeries{}, Names: LookupNames(langs)}, nil
	}
	if len(langs) == 0 {
		return Result{Series: model.LanguageSeries{}, Names: map[string]string{}}, nil
	}

	repos, err := a.src.ListRepositories(ctx, account)
	if err != nil {
		if len(repos) == 0 {
			return Result{}, fmt.Errorf("failed to discover repositories: %w", err)
		}
		log.Warn("repository discovery incomplete, continuing with partial list", "repositories", len(repos), "error", err)
	}

	res, err := a.Aggregate(ctx, langs, repos)
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// LookupNames builds the key -> display name lookup; the first language
// using a key wins.
func LookupNames(langs []model.TrackedLanguage) map[string]string {
	names := make(map[string]string, len(langs))
	for _, l := range langs {
		key := langname.Key(l.LookupName())
		if key == "" {
			continue
		}
		if _, ok := names[key]; !ok {
			names[key] = l.Name
		}
	}
	return names
}

type delta struct {
	add, del int
}

type dailyTotals map[string]map[model.Date]delta

func (t dailyTotals) add(key string, date model.Date, add, del int) {
	days, ok := t[key]
	if !ok {
		days = make(map[model.Date]delta)
		t[key] = days
	}
	d := days[date]
	d.add += add
	d.del += del
	days[date] = d
}

func (t dailyTotals) merge(other dailyTotals) {
	for key, days := range other {
		for date, d := range days {
			t.add(key, date, d.add, d.del)
		}
	}
}

// Aggregate apportions the commits of repos across the tracked languages and
// returns one cumulative series per lookup key. The output does not depend
// on the order in which repositories are processed.
func (a *Aggregator) Aggregate(ctx context.Context, langs []model.TrackedLanguage, repos []model.Repository) (Result, error) {
	names := LookupNames(langs)
	res := Result{Series: model.LanguageSeries{}, Names: names, Repositories: len(repos)}
	if len(names) == 0 || len(repos) == 0 {
		return res, nil
	}

	var (
		mu        sync.Mutex
		totals    = dailyTotals{}
		completed atomic.Int32
		scanned   atomic.Int32
		commits   atomic.Int32
	)
	progress := func() {
		if a.onProgress != nil {
			a.onProgress(int(completed.Add(1)), len(repos))
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)

	for _, repo := range repos {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			defer progress()

			overlap := overlapping(a.src.LanguageWeights(gctx, repo), names)
			if len(overlap) == 0 {
				log.Trace("skipping repository without tracked languages", "repo", repo.FullName)
				return nil
			}
			scanned.Add(1)

			local := dailyTotals{}
			n := 0
			for c := range a.src.Commits(gctx, repo) {
				if apportion(local, c, overlap) {
					n++
				}
			}
			if err := gctx.Err(); err != nil {
				return err
			}
			commits.Add(int32(n))
			log.Debug("repository aggregated", "repo", repo.FullName, "languages", len(overlap), "commits", n)

			mu.Lock()
			totals.merge(local)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Result{}, fmt.Errorf("aggregation interrupted: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("aggregation interrupted: %w", err)
	}

	for key, days := range totals {
		if series := cumulate(days); len(series) > 0 {
			res.Series[key] = series
		}
	}
	res.Scanned = int(scanned.Load())
	res.Commits = int(commits.Load())
	return res, nil
}

// overlapping keeps the weights of tracked languages only.
func overlapping(weights model.LanguageWeights, names map[string]string) model.LanguageWeights {
	out := make(model.LanguageWeights)
	for key, w := range weights {
		if _, ok := names[key]; ok && w > 0 {
			out[key] = w
		}
	}
	return out
}

// apportion splits one commit across the overlapping languages and reports
// whether any language received a non-zero share.
func apportion(t dailyTotals, c model.CommitContribution, weights model.LanguageWeights) bool {
	contributed := false
	for key, w := range weights {
		add := int(math.Round(float64(c.Additions) * w))
		del := int(math.Round(float64(c.Deletions) * w))
		if add == 0 && del == 0 {
			continue
		}
		t.add(key, c.Date, add, del)
		contributed = true
	}
	return contributed
}

// cumulate sorts daily deltas by date and prefix-sums them.
func cumulate(days map[model.Date]delta) []model.LanguagePoint {
	dates := make([]model.Date, 0, len(days))
	for d := range days {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i] < dates[j] })

	series := make([]model.LanguagePoint, 0, len(dates))
	var add, del int
	for _, d := range dates {
		add += days[d].add
		del += days[d].del
		series = append(series, model.LanguagePoint{Date: d, Additions: add, Deletions: del})
	}
	return series
}
