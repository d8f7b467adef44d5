package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tunebook/tunebook/internal/ui"
	"github.com/tunebook/tunebook/pkg/version"
)

func newVersionCmd() *cobra.Command {
	var asJSON, short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show the tunebook build",
		Long: `Show the version, commit, build date and Go toolchain of this binary.
The daemon reports its own version through 'tunebook status'.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			switch {
			case short:
				_, err := fmt.Fprintln(w, version.Short())
				return err
			case asJSON:
				return ui.WriteJSON(w, version.GetInfo())
			default:
				_, err := fmt.Fprintln(w, version.String())
				return err
			}
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print build information as JSON")
	cmd.Flags().BoolVar(&short, "short", false, "Print the version only (overrides --json)")
	return cmd
}
