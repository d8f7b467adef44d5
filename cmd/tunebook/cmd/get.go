package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tunebook/tunebook/internal/catalog"
	tberrors "github.com/tunebook/tunebook/internal/errors"
	"github.com/tunebook/tunebook/internal/ui"
)

// tuneDetail is the JSON shape of `get`.
type tuneDetail struct {
	*catalog.Tune
	Recordings []*catalog.Recording `json:"recordings,omitempty"`
}

func newGetCmd() *cobra.Command {
	var (
		withRecordings bool
		abcOnly        bool
		jsonOutput     bool
	)

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one tune with its ABC notation",
		Example: `  tunebook get 55
  tunebook get 55 --abc > drowsy-maggie.abc
  tunebook get 55 --recordings=false --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withSession(cmd.Context(), func(ctx context.Context, s *session) error {
				tune, err := s.GetTune(ctx, id)
				if err != nil {
					return err
				}
				if tune == nil {
					return tuneNotFound(id)
				}

				if abcOnly {
					_, err := fmt.Fprint(cmd.OutOrStdout(), tune.ABC)
					return err
				}

				var recs []*catalog.Recording
				if withRecordings {
					if recs, err = s.GetRecordings(ctx, id); err != nil {
						return err
					}
					if recs == nil {
						recs = []*catalog.Recording{}
					}
				}

				if jsonOutput {
					return ui.WriteJSON(cmd.OutOrStdout(), tuneDetail{Tune: tune, Recordings: recs})
				}
				return ui.NewTunePrinter(cmd.OutOrStdout(), noColor || ui.DetectNoColor()).Tune(tune, recs)
			})
		},
	}

	cmd.Flags().BoolVar(&withRecordings, "recordings", true, "Include the tune's recordings")
	cmd.Flags().BoolVar(&abcOnly, "abc", false, "Print only the ABC notation")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func newRecordingsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "recordings <tune-id>",
		Short: "List the recordings of a tune",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *session) error {
				recs, err := s.GetRecordings(ctx, args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					if recs == nil {
						recs = []*catalog.Recording{}
					}
					return ui.WriteJSON(cmd.OutOrStdout(), recs)
				}
				return ui.NewTunePrinter(cmd.OutOrStdout(), noColor || ui.DetectNoColor()).Recordings(recs)
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func tuneNotFound(id string) error {
	return tberrors.ValidationError(fmt.Sprintf("no tune with id %q", id), nil).
		WithSuggestion("Find ids with 'tunebook search <title>'.")
}
