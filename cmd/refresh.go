package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spiffcs/langstats/internal/log"
	"github.com/spiffcs/langstats/internal/output"
)

// NewCmdRefresh creates the refresh command.
func NewCmdRefresh(opts *Options) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Recompute statistics now and update the snapshot",
		Long: `Recompute every tracked language regardless of cache age and write
the result to the snapshot store.

The run replaces every cached series; a tracked language without data
becomes empty.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRefresh(cmd.Context(), opts, format)
		},
	}

	cmd.Flags().StringVarP(&format, "output", "o", "", "Output format (table, json)")
	cmd.Flags().IntVarP(&opts.Workers, "workers", "w", 0, "Repositories processed concurrently")

	return cmd
}

func runRefresh(ctx context.Context, opts *Options, format string) error {
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

	ctx, cancel := context.WithTimeout(ctx, rt.settings.RefreshTimeout)
	defer cancel()

	start := time.Now()
	fmt.Fprintf(os.Stderr, "Computing language statistics for %s...\n", rt.settings.Username)
	if _, err := rt.svc.Refresh(ctx); err != nil {
		log.ProgressClear()
		return fmt.Errorf("refresh failed: %w", err)
	}
	log.ProgressDone()
	fmt.Fprintf(os.Stderr, "Done in %s.\n", time.Since(start).Round(time.Second))

	if format == "" {
		format = rt.cfg.DefaultFormat
	}
	names, err := displayNames(ctx, rt.skills)
	if err != nil {
		log.Debug("failed to load display names", "error", err)
	}
	return output.NewFormatter(output.Format(format)).FormatSummary(output.Summarize(cachedSeries(rt), names), os.Stdout)
}
