package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/spiffcs/langstats/internal/cache"
	"github.com/spiffcs/langstats/internal/duration"
)

// NewCmdCache creates the cache command with subcommands.
func NewCmdCache(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the statistics snapshot",
	}

	cmd.AddCommand(newCmdCacheClear(opts))
	cmd.AddCommand(newCmdCacheStats(opts))

	return cmd
}

// newCmdCacheClear creates the cache clear subcommand.
func newCmdCacheClear(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete the persisted snapshot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCacheClear(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}
}

// newCmdCacheStats creates the cache stats subcommand.
func newCmdCacheStats(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:     "stats",
		Aliases: []string{"info", "show"},
		Short:   "Show snapshot statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCacheStats(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}
}

// openConfiguredSnapshotter returns the snapshot store selected by config
// and flags. Unlike the runtime it needs neither a username nor skills.
func openConfiguredSnapshotter(ctx context.Context, opts *Options) (cache.Snapshotter, func(), error) {
	_, settings, err := loadSettings(opts)
	if err != nil {
		return nil, nil, err
	}
	snap, closer, err := openSnapshotter(ctx, settings)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to access snapshot: %w", err)
	}
	if snap == nil {
		return nil, nil, errors.New("snapshots are disabled (cache.snapshot is none)")
	}
	return snap, func() {
		if closer != nil {
			_ = closer()
		}
	}, nil
}

func runCacheClear(ctx context.Context, out io.Writer, opts *Options) error {
	if ctx == nil {
		ctx = context.Background()
	}
	snap, done, err := openConfiguredSnapshotter(ctx, opts)
	if err != nil {
		return err
	}
	defer done()

	if err := snap.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear snapshot: %w", err)
	}

	fmt.Fprintln(out, "Snapshot cleared.")
	return nil
}

func runCacheStats(ctx context.Context, out io.Writer, opts *Options) error {
	if ctx == nil {
		ctx = context.Background()
	}
	_, settings, err := loadSettings(opts)
	if err != nil {
		return err
	}
	snap, done, err := openConfiguredSnapshotter(ctx, opts)
	if err != nil {
		return err
	}
	defer done()

	fmt.Fprintf(out, "Snapshot statistics:\n")
	fmt.Fprintf(out, "  Location: %s\n", snap.Location())

	s, err := snap.Load(ctx)
	if errors.Is(err, cache.ErrNoSnapshot) {
		fmt.Fprintf(out, "  No snapshot saved yet.\n")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}

	age := time.Since(s.ComputedAt)
	fmt.Fprintf(out, "  Version:   %d\n", s.Version)
	fmt.Fprintf(out, "  Computed:  %s (%s ago)\n", s.ComputedAt.Local().Format(time.RFC3339), duration.Age(age))
	fmt.Fprintf(out, "  TTL:       %s\n", duration.Format(settings.CacheTTL))
	fmt.Fprintf(out, "  Stale:     %t\n", s.ComputedAt.IsZero() || age >= settings.CacheTTL)
	fmt.Fprintf(out, "  Languages: %d\n", len(s.Entries))
	return nil
}
