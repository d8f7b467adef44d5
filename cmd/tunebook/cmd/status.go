package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/tunebook/tunebook/internal/ui"
)

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "status",
		Aliases: []string{"stats"},
		Short:   "Show catalog counts and engine status",
		Long: `Display information about the catalog and the engine serving it:
  - Whether the daemon or an in-process engine answered
  - Records per kind
  - Fuzzy index state
  - Database location, size and last modification`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *session) error {
				info, err := collectStatus(ctx, s)
				if err != nil {
					return err
				}

				r := ui.NewStatusRenderer(cmd.OutOrStdout(), noColor || ui.DetectNoColor())
				if jsonOutput {
					return r.RenderJSON(info)
				}
				return r.Render(info)
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func collectStatus(ctx context.Context, s *session) (ui.StatusInfo, error) {
	info := ui.StatusInfo{Mode: s.Mode}

	ping, err := s.Ping(ctx)
	if err != nil {
		return info, err
	}
	info.Version = ping.Version
	info.Initialized = ping.Initialized
	if s.Mode == modeDaemon {
		info.SocketPath = s.cfg.Server.SocketPath
		info.Uptime = ping.Uptime
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		return info, err
	}
	info.Counts = stats.Counts
	info.IndexBuilt = stats.IndexBuilt
	info.IndexSize = stats.IndexSize
	info.Searches = stats.Searches

	if path := s.cfg.EngineConfig().DBPath(); path != "" {
		info.DBPath = path
		if fi, err := os.Stat(path); err == nil {
			info.DBSize = fi.Size()
			info.LastChange = fi.ModTime()
		}
	}
	return info, nil
}
