package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/spiffcs/langstats/config"
	"github.com/spiffcs/langstats/internal/ghclient"
)

// NewCmdRateLimit creates the ratelimit command.
func NewCmdRateLimit(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ratelimit",
		Short: "Check GitHub API rate limit status",
		Long: `Display current GitHub API rate limit status including remaining quota and reset time.
A full refresh spends one core request per commit page and per commit.`,
	}
	cmd.AddCommand(NewCmdRateLimitStatus(opts))
	return cmd
}

// NewCmdRateLimitStatus creates the ratelimit status subcommand.
func NewCmdRateLimitStatus(_ *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show current rate limit status",
		Long:  `Display the current GitHub API rate limit status for core, search and GraphQL APIs.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRateLimitStatus(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

func runRateLimitStatus(ctx context.Context, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	token := cfg.GetGitHubToken()
	if token == "" {
		return fmt.Errorf("GitHub token not configured. Set the GITHUB_TOKEN environment variable")
	}

	client, err := ghclient.NewClient(ctx, token)
	if err != nil {
		return err
	}

	quotas, err := client.Quotas(ctx)
	if err != nil {
		return err
	}
	printQuotas(out, quotas, time.Now())
	return nil
}

var quotaLabels = map[string]string{
	"core":    "Core API:",
	"search":  "Search API:",
	"graphql": "GraphQL:",
}

func printQuotas(out io.Writer, quotas []ghclient.Quota, now time.Time) {
	fmt.Fprintln(out, "GitHub API Rate Limits:")
	fmt.Fprintln(out)

	for _, q := range quotas {
		label, ok := quotaLabels[q.Resource]
		if !ok {
			label = q.Resource + ":"
		}
		resetIn := q.Reset.Sub(now).Round(time.Second)
		if resetIn < 0 {
			resetIn = 0
		}
		fmt.Fprintf(out, "%-11s %d/%d remaining (resets in %s)\n", label, q.Remaining, q.Limit, resetIn)
	}
}
