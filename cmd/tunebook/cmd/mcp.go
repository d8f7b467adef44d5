package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/tunebook/tunebook/internal/logging"
	"github.com/tunebook/tunebook/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the catalog to AI assistants over MCP (stdio)",
		Long: `Start a Model Context Protocol server on stdin/stdout. It offers the
tools search_tunes, list_tunes, get_tune, get_recordings and catalog_stats,
and exposes each tune's ABC notation as the resource tune://{id}.

stdout carries only protocol messages; logs go to ~/.tunebook/logs/.`,
		Example: `  # Register with an MCP client
  {"command": "tunebook", "args": ["mcp"]}`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMCP(cmd.Context())
		},
	}
}

func runMCP(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// stdout belongs to the protocol: log to file only.
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	level := cfg.Server.LogLevel
	if debugMode {
		level = "debug"
	}
	cleanup, err := logging.SetupDefault(logging.StdioConfig(level))
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer cleanup()

	s, err := openSession(ctx, cfg)
	if err != nil {
		slog.Error("Failed to open catalog", slog.String("error", err.Error()))
		return err
	}
	defer func() { _ = s.Close() }()
	slog.Info("MCP server using catalog", slog.String("mode", s.Mode))

	srv, err := mcp.NewServer(s, mcp.WithLogger(slog.Default()))
	if err != nil {
		return err
	}
	return srv.Serve(ctx, "stdio")
}
