package cmd

import (
	"context"

	"github.com/spf13/cobra"

	tberrors "github.com/tunebook/tunebook/internal/errors"
	"github.com/tunebook/tunebook/internal/output"
)

func newClearCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every record from the catalog",
		Long: `Empty all five kinds (tunes, aliases, popularity, recordings, sets)
and drop the search index. The data directory itself is kept.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return tberrors.ValidationError("refusing to clear the catalog without --yes", nil).
					WithSuggestion("Run 'tunebook clear --yes'.")
			}
			return withSession(cmd.Context(), func(ctx context.Context, s *session) error {
				if err := s.Clear(ctx); err != nil {
					return err
				}
				output.New(cmd.OutOrStdout(), noColor).Successf("Catalog cleared (%s)", s.Mode)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm removal")
	return cmd
}
