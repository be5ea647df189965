package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"github.com/spiffcs/langstats/internal/output"
)

// NewCmdStatus creates the status command.
func NewCmdStatus(opts *Options) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show cache freshness and refresh settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), opts, format)
		},
	}

	cmd.Flags().StringVarP(&format, "output", "o", "", "Output format (table, json)")
	return cmd
}

func runStatus(ctx context.Context, opts *Options, format string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := newRuntime(ctx, opts, runtimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	rt.svc.LoadSnapshot(ctx)

	if format == "" {
		format = rt.cfg.DefaultFormat
	}
	st := rt.svc.Status()
	st.Schedule = rt.settings.Schedule
	return output.NewFormatter(output.Format(format)).FormatStatus(st, os.Stdout)
}
