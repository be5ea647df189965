package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spiffcs/langstats/internal/httpapi"
	"github.com/spiffcs/langstats/internal/log"
)

// NewCmdServe creates the serve command.
func NewCmdServe(opts *Options) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve language statistics over HTTP",
		Long: `Starts the HTTP API:

  GET /api/github/language-stats/{languageName}?alias=
  GET /api/github/status
  GET /metrics
  GET /healthz

Statistics are restored from the snapshot store when available, computed
on startup otherwise, and refreshed in the background when stale and on
the configured schedule.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, :8080)")
	cmd.Flags().StringVar(&opts.LogFormat, "log-format", "", "Log format (text, json)")
	cmd.Flags().IntVarP(&opts.Workers, "workers", "w", 0, "Repositories processed concurrently")

	return cmd
}

func runServe(ctx context.Context, opts *Options, addr string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	rt, err := newRuntime(ctx, opts, runtimeOptions{registry: registry, schedule: true})
	if err != nil {
		return err
	}
	defer rt.Close()

	rt.loadIdentity(ctx)
	if err := rt.svc.Start(ctx); err != nil {
		return err
	}

	if addr == "" {
		addr = rt.settings.ServerAddr
	}
	log.Info("serving language statistics", "username", rt.settings.Username, "addr", addr)
	return httpapi.Serve(ctx, addr, httpapi.NewRouter(rt.svc, rt.metrics))
}
