package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tunebook/tunebook/internal/config"
	tberrors "github.com/tunebook/tunebook/internal/errors"
	"github.com/tunebook/tunebook/internal/output"
	"github.com/tunebook/tunebook/internal/ui"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage user configuration",
		Long: `Manage the user/global configuration file.

Configuration precedence (lowest to highest):
  1. Hardcoded defaults
  2. User config (~/.config/tunebook/config.yaml)
  3. Project config (.tunebook.yaml)
  4. .env in the config directory
  5. Environment variables (TUNEBOOK_*)`,
		Example: `  # Create user config with the defaults
  tunebook config init

  # Show effective configuration
  tunebook config show

  # Print user config file path
  tunebook config path`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create user configuration file",
		Long: `Write the default configuration to ~/.config/tunebook/config.yaml
(or $XDG_CONFIG_HOME/tunebook/config.yaml). With --force an existing file is
backed up before it is replaced.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Replace existing configuration (a backup is kept)")

	return cmd
}

func runConfigInit(cmd *cobra.Command, force bool) error {
	out := output.New(cmd.OutOrStdout(), noColor)
	path := config.GetUserConfigPath()

	if config.UserConfigExists() && !force {
		return tberrors.New(tberrors.ErrCodeConfigInvalid, "user configuration already exists at "+path, nil).
			WithSuggestion("Use --force to replace it; the current file is backed up.")
	}

	backup, err := config.InitUserConfig()
	if err != nil {
		return err
	}

	out.Success("Created user configuration")
	out.Field("Location", path)
	if backup != "" {
		out.Field("Backup", backup)
	}
	out.Newline()
	out.Hint("Run 'tunebook config show' to verify.")
	return nil
}

func newConfigShowCmd() *cobra.Command {
	var (
		jsonOutput bool
		backups    bool
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Long:  `Show the configuration after merging every source for the --config directory.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if backups {
				return runConfigBackups(cmd)
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if jsonOutput {
				return ui.WriteJSON(cmd.OutOrStdout(), cfg)
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			return enc.Close()
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&backups, "backups", false, "List user config backups instead")

	return cmd
}

func runConfigBackups(cmd *cobra.Command) error {
	list, err := config.ListUserConfigBackups()
	if err != nil {
		return err
	}
	if len(list) == 0 {
		output.New(cmd.OutOrStdout(), noColor).Warning("No backups of " + config.GetUserConfigPath())
		return nil
	}
	for _, b := range list {
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), b); err != nil {
			return err
		}
	}
	return nil
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print user config file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), config.GetUserConfigPath())
			return err
		},
	}
}
