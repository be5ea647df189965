package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spiffcs/langstats/internal/aggregate"
	"github.com/spiffcs/langstats/internal/log"
	"github.com/spiffcs/langstats/internal/model"
	"github.com/spiffcs/langstats/internal/output"
	"github.com/spiffcs/langstats/internal/service"
	"github.com/spiffcs/langstats/internal/skills"
)

// NewCmdStats creates the stats command.
func NewCmdStats(opts *Options) *cobra.Command {
	var (
		format string
		alias  string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "stats [language]",
		Short: "Show cumulative line counts",
		Long: `Show the cumulative series for one language, or a summary of every
cached language when none is given.

Cached values are used when available; a missing language triggers a
computation, which can take several minutes for large accounts.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			language := ""
			if len(args) == 1 {
				language = args[0]
			}
			return runStats(cmd.Context(), opts, language, alias, format, limit)
		},
	}

	cmd.Flags().StringVarP(&format, "output", "o", "", "Output format (table, json)")
	cmd.Flags().StringVar(&alias, "alias", "", "Look up the series under this name instead")
	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "Show only the most recent N points")
	cmd.Flags().IntVarP(&opts.Workers, "workers", "w", 0, "Repositories processed concurrently")

	return cmd
}

func runStats(ctx context.Context, opts *Options, language, alias, format string, limit int) error {
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := newRuntime(ctx, opts, runtimeOptions{progress: true})
	if err != nil {
		return err
	}
	defer rt.Close()

	rt.loadIdentity(ctx)
	rt.svc.LoadSnapshot(ctx)

	if format == "" {
		format = rt.cfg.DefaultFormat
	}
	formatter := output.NewFormatter(output.Format(format))
	if tf, ok := formatter.(*output.TableFormatter); ok {
		tf.Limit = limit
	}

	if err := ensureFresh(ctx, rt.svc, rt.settings.CacheTTL, rt.settings.RefreshTimeout); err != nil {
		return err
	}

	if language != "" || alias != "" {
		series, _ := rt.svc.Cached(language, alias)
		title := language
		if alias != "" {
			title = fmt.Sprintf("%s (%s)", language, alias)
		}
		return formatter.FormatSeries(title, series, os.Stdout)
	}

	names, err := displayNames(ctx, rt.skills)
	if err != nil {
		log.Debug("failed to load display names", "error", err)
	}
	return formatter.FormatSummary(output.Summarize(cachedSeries(rt), names), os.Stdout)
}

// ensureFresh refreshes synchronously when the cache is empty or stale. A
// failed refresh is only fatal when nothing is cached.
func ensureFresh(ctx context.Context, svc *service.Service, ttl, timeout time.Duration) error {
	c := svc.Cache()
	if c.Len() > 0 && !c.IsStale(time.Now(), ttl) {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	_, err := svc.Refresh(ctx)
	if err == nil {
		log.ProgressDone()
		return nil
	}
	log.ProgressClear()
	if c.Len() == 0 {
		return fmt.Errorf("failed to compute statistics: %w", err)
	}
	log.Warn("refresh failed, showing cached statistics", "error", err)
	return nil
}

// cachedSeries returns every cached series.
func cachedSeries(rt *runtime) model.LanguageSeries {
	snap := rt.svc.Cache().Snapshot()
	series := make(model.LanguageSeries, len(snap.Entries))
	for key, e := range snap.Entries {
		series[key] = e.Series
	}
	return series
}

// displayNames maps lookup keys to the names used in the skills list.
func displayNames(ctx context.Context, src skills.Source) (map[string]string, error) {
	list, err := src.Skills(ctx)
	if err != nil {
		return nil, err
	}
	return aggregate.LookupNames(skills.Trackable(list)), nil
}
