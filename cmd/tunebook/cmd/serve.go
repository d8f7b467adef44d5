package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tunebook/tunebook/internal/config"
	"github.com/tunebook/tunebook/internal/daemon"
	"github.com/tunebook/tunebook/internal/engine"
	"github.com/tunebook/tunebook/internal/logging"
	"github.com/tunebook/tunebook/internal/metrics"
	"github.com/tunebook/tunebook/internal/output"
	"github.com/tunebook/tunebook/internal/watcher"
)

type serveOptions struct {
	watch       bool
	metricsAddr string
	stop        bool
	background  bool
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the catalog daemon",
		Long: `Run the catalog engine as a daemon on a Unix socket. Other tunebook
commands use it when it is running, which avoids opening the database and
rebuilding the search index on every call.

With --watch, local sources from data.sources are watched and re-ingested
when their files change. With --metrics-addr, Prometheus metrics are served
at /metrics.`,
		Example: `  # Run in the foreground
  tunebook serve

  # Run in the background and re-ingest local sources on change
  tunebook serve --background --watch

  # Expose metrics
  tunebook serve --metrics-addr 127.0.0.1:9464

  # Stop a running daemon
  tunebook serve --stop`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("metrics-addr") {
				opts.metricsAddr = cfg.Server.MetricsAddr
			}

			switch {
			case opts.stop:
				return runServeStop(cmd, cfg)
			case opts.background:
				return runServeBackground(cmd, cfg, opts)
			default:
				return runServe(cmd.Context(), cfg, opts)
			}
		},
	}

	cmd.Flags().BoolVar(&opts.watch, "watch", false, "Re-ingest local sources when their files change")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	cmd.Flags().BoolVar(&opts.stop, "stop", false, "Stop the running daemon")
	cmd.Flags().BoolVarP(&opts.background, "background", "b", false, "Detach and run in the background")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, opts serveOptions) error {
	// The daemon logs to file and stderr regardless of --debug.
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Server.LogLevel
	if debugMode {
		logCfg.Level = "debug"
	}
	cleanup, err := logging.SetupDefault(logCfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer cleanup()

	m := metrics.New()
	eng := engine.New(cfg.EngineConfig(), engine.WithMetrics(m))
	if err := eng.Init(ctx); err != nil {
		return err
	}
	defer func() {
		if err := eng.Shutdown(); err != nil {
			slog.Warn("Engine shutdown failed", slog.String("error", err.Error()))
		}
	}()

	d, err := daemon.NewDaemon(cfg.DaemonConfig(), eng, daemon.WithServerMetrics(m))
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return d.Run(ctx) })

	if opts.metricsAddr != "" {
		g.Go(func() error { return serveMetrics(ctx, opts.metricsAddr, m) })
	}

	if opts.watch {
		w, err := startWatcher(ctx, g, cfg, d)
		if err != nil {
			return err
		}
		if w != nil {
			defer func() { _ = w.Stop() }()
		}
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return err
}

// startWatcher watches the local sources of cfg and re-ingests them
// through the daemon's actor, so file-triggered ingests queue with client
// requests. Returns nil when no source can be watched.
func startWatcher(ctx context.Context, g *errgroup.Group, cfg *config.Config, d *daemon.Daemon) (*watcher.Watcher, error) {
	targets, skipped, err := watcher.ResolveTargets(cfg.Data.Sources)
	if err != nil {
		return nil, err
	}
	for _, s := range skipped {
		slog.Info("Not watching remote source", slog.String("source", s))
	}
	if len(targets) == 0 {
		slog.Warn("Nothing to watch: data.sources has no local files or directories")
		return nil, nil
	}

	wopts := watcher.DefaultOptions()
	wopts.DebounceWindow = cfg.WatchDebounce()
	w, err := watcher.New(targets, wopts)
	if err != nil {
		return nil, err
	}
	slog.Info("Watching sources", slog.Int("targets", len(targets)), slog.String("mode", w.Mode()))

	client := d.Connect(ctx)
	refresher := watcher.NewRefresher(client.Ingest, w.Targets())
	watchCtx := logging.WithLogger(ctx, slog.Default().With(slog.String("component", "watcher")))
	go func() {
		<-ctx.Done()
		_ = client.Close()
	}()

	g.Go(func() error { return w.Start(watchCtx) })
	g.Go(func() error { return refresher.Run(watchCtx, w.Events()) })
	go func() {
		for err := range w.Errors() {
			slog.Warn("Watcher error", slog.String("error", err.Error()))
		}
	}()
	return w, nil
}

// serveMetrics serves /metrics until ctx is done.
func serveMetrics(ctx context.Context, addr string, m *metrics.Metrics) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("Serving metrics", slog.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

func runServeStop(cmd *cobra.Command, cfg *config.Config) error {
	out := output.New(cmd.OutOrStdout(), noColor)
	dcfg := cfg.DaemonConfig()
	pid := daemon.NewPIDFile(dcfg.PIDPath)
	if !pid.IsRunning() {
		out.Warning("Daemon is not running")
		return nil
	}
	if err := daemon.Stop(dcfg); err != nil {
		return fmt.Errorf("failed to stop daemon: %w", err)
	}
	out.Success("Daemon stopped")
	return nil
}

// runServeBackground re-executes serve detached from the terminal and waits
// until the socket answers.
func runServeBackground(cmd *cobra.Command, cfg *config.Config, opts serveOptions) error {
	out := output.New(cmd.OutOrStdout(), noColor)
	dcfg := cfg.DaemonConfig()
	if daemon.IsRunning(dcfg.SocketPath, dcfg.Timeout) {
		out.Warning("Daemon is already running")
		out.Field("Socket", dcfg.SocketPath)
		return nil
	}

	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	args := []string{"serve", "--config", configDir}
	if opts.watch {
		args = append(args, "--watch")
	}
	if opts.metricsAddr != "" {
		args = append(args, "--metrics-addr", opts.metricsAddr)
	}
	if debugMode {
		args = append(args, "--debug")
	}

	bg := exec.Command(execPath, args...)
	bg.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := bg.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	// Reap the child and notice early exits.
	done := make(chan error, 1)
	go func() { done <- bg.Wait() }()

	for i := 0; i < 50; i++ {
		select {
		case err := <-done:
			if err != nil {
				return fmt.Errorf("daemon process exited unexpectedly: %w", err)
			}
			return fmt.Errorf("daemon process exited unexpectedly with code 0")
		default:
		}

		time.Sleep(100 * time.Millisecond)
		if daemon.IsRunning(dcfg.SocketPath, dcfg.Timeout) {
			out.Successf("Daemon started (pid: %d)", bg.Process.Pid)
			out.Field("Socket", dcfg.SocketPath)
			out.Field("Logs", logging.DefaultLogPath())
			return nil
		}
	}
	return fmt.Errorf("daemon failed to start within timeout; see %s", logging.DefaultLogPath())
}
