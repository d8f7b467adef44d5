package cmd

import (
	"github.com/spf13/cobra"

	tberrors "github.com/tunebook/tunebook/internal/errors"
	"github.com/tunebook/tunebook/internal/preflight"
	"github.com/tunebook/tunebook/internal/ui"
)

func newDoctorCmd() *cobra.Command {
	var (
		verbose    bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that tunebook can run on this machine",
		Long: `Check the data directory, free disk space, file descriptor limit,
SQLite driver, catalog lock, daemon and configured sources.

Exits with an error when a required check fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			dcfg := cfg.DaemonConfig()

			c := preflight.New(
				preflight.WithOutput(cmd.OutOrStdout()),
				preflight.WithVerbose(verbose),
			)
			results := c.RunAll(cmd.Context(), preflight.Target{
				DataDir:     cfg.EngineConfig().DataDir,
				SocketPath:  dcfg.SocketPath,
				Timeout:     dcfg.Timeout,
				Sources:     cfg.Data.Sources,
				Concurrency: cfg.Data.Concurrency,
			})

			if jsonOutput {
				if err := ui.WriteJSON(cmd.OutOrStdout(), results); err != nil {
					return err
				}
			} else {
				c.PrintResults(results)
			}

			if c.HasCriticalFailures(results) {
				return tberrors.New(tberrors.ErrCodeConfigInvalid, "required checks failed", nil).
					WithSuggestion("Fix the FAIL items above, or set data.dir to another location.")
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show details for passing checks")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}
