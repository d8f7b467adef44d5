// Package cmd provides the CLI commands for tunebook.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tunebook/tunebook/internal/config"
	tberrors "github.com/tunebook/tunebook/internal/errors"
	"github.com/tunebook/tunebook/internal/logging"
	"github.com/tunebook/tunebook/internal/profiling"
	"github.com/tunebook/tunebook/pkg/version"
)

// Root flags
var (
	debugMode      bool
	configDir      string
	noColor        bool
	loggingCleanup func()

	profileOpts profiling.Options
	profile     *profiling.Session
)

// NewRootCmd creates the root command for the tunebook CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tunebook",
		Short: "Local catalog of traditional tunes",
		Long: `tunebook keeps a local catalog of traditional dance tunes, their
alternative titles, tunebook popularity, recordings and sets.

Ingest the public data dumps once, then look tunes up by title with
typo-tolerant search, list them by type, mode and meter, and read their
ABC notation.

Commands talk to the background daemon when it is running and open the
catalog in-process otherwise.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("tunebook version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.tunebook/logs/")
	cmd.PersistentFlags().StringVar(&configDir, "config", ".", "Directory containing .tunebook.yaml")
	cmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	cmd.PersistentFlags().StringVar(&profileOpts.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileOpts.Heap, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&profileOpts.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = startProfilingAndLogging
	cmd.PersistentPostRunE = stopProfilingAndLogging

	// Catalog commands
	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newRecordingsCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newClearCmd())

	// Servers
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMCPCmd())

	// Housekeeping
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startProfilingAndLogging starts the requested profiles and enables file
// logging when --debug is set. Commands that own their logging (serve, mcp)
// replace it.
func startProfilingAndLogging(_ *cobra.Command, _ []string) error {
	if profileOpts.Enabled() {
		p, err := profiling.Start(profileOpts)
		if err != nil {
			return err
		}
		profile = p
	}

	if !debugMode {
		return nil
	}

	cfg := logging.DefaultConfig()
	cfg.Level = "debug"
	cfg.WriteToStderr = false

	cleanup, err := logging.SetupDefault(cfg)
	if err != nil {
		return fmt.Errorf("failed to setup debug logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.Info("Debug logging enabled",
		slog.String("log_file", cfg.FilePath),
		slog.String("version", version.Version))
	return nil
}

// stopProfilingAndLogging flushes profiles, writing the heap profile if
// requested, and stops debug logging.
func stopProfilingAndLogging(_ *cobra.Command, _ []string) error {
	err := profile.Stop()
	profile = nil

	if loggingCleanup != nil {
		slog.Info("Debug logging stopped")
		loggingCleanup()
		loggingCleanup = nil
	}
	return err
}

// loadConfig loads the configuration for the --config directory.
func loadConfig() (*config.Config, error) {
	return config.Load(configDir)
}

// Execute runs the root command. Interrupts cancel the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := NewRootCmd().ExecuteContext(ctx)
	if err != nil {
		fmt.Fprint(os.Stderr, tberrors.FormatForCLI(err))
	}
	return err
}
