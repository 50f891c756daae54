package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/zjrosen/dcmcache/internal/api"
	"github.com/zjrosen/dcmcache/internal/app"
	"github.com/zjrosen/dcmcache/internal/log"
	"github.com/zjrosen/dcmcache/internal/metrics"
	"github.com/zjrosen/dcmcache/internal/owner"
	"github.com/zjrosen/dcmcache/internal/watcher"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the cache over HTTP",
	Long: `Serve the cache over HTTP. Lifecycle events stream from /v1/events and
Prometheus metrics from /metrics. With --watch (or watcher.enabled) the live
dataset list follows directories added to or removed from the cache root.

Example:
  dcmcache serve                   # Listen on api.addr
  dcmcache serve --addr :8080      # Listen on port 8080`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "address to listen on (overrides api.addr)")
	serveCmd.Flags().Bool("watch", false, "reconcile with the cache root on change (overrides watcher.enabled)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.API.Addr = addr
	}
	if cmd.Flags().Changed("watch") {
		cfg.Watcher.Enabled, _ = cmd.Flags().GetBool("watch")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	s, err := openSession(ctx, owner.SourceAPI, app.WithRecorder(m))
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	server := api.NewServer(s.svc, api.Options{
		ServiceName:    cfg.Tracing.ServiceName,
		TracerProvider: s.tracing.TracerProvider(),
		Observer:       m,
		MetricsHandler: m.Handler(),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Serve(gctx, cfg.API.Addr)
	})
	if cfg.Watcher.Enabled {
		g.Go(func() error {
			return s.svc.Watch(gctx, watcher.Config{Root: s.svc.Root(), DebounceDur: cfg.Watcher.Debounce})
		})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "dcmcache serving %s on %s\n", s.svc.Root(), cfg.API.Addr)
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("server error: %w", err)
	}
	log.Info(log.CatAPI, "Server stopped")
	return nil
}
