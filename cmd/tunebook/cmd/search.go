package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tunebook/tunebook/internal/catalog"
	tberrors "github.com/tunebook/tunebook/internal/errors"
	"github.com/tunebook/tunebook/internal/search"
	"github.com/tunebook/tunebook/internal/ui"
)

// filterFlags holds the --type, --mode and --meter flags shared by search
// and list.
type filterFlags struct {
	typ, mode, meter string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.typ, "type", "t", "", "Filter by tune type (reel, jig, slip jig, ...)")
	cmd.Flags().StringVarP(&f.mode, "mode", "m", "", "Filter by mode, e.g. Dmajor or Adorian")
	cmd.Flags().StringVar(&f.meter, "meter", "", "Filter by time signature, e.g. 6/8")
}

// parse validates the flags. Empty flags leave the field unset.
func (f *filterFlags) parse() (catalog.TuneFilter, error) {
	var filter catalog.TuneFilter
	var ok bool

	if f.typ != "" {
		if filter.Type, ok = catalog.ParseTuneType(f.typ); !ok {
			return filter, invalidFlag("type", f.typ, catalog.TuneTypes)
		}
	}
	if f.mode != "" {
		if filter.Mode, ok = catalog.ParseMode(f.mode); !ok {
			return filter, invalidFlag("mode", f.mode, catalog.Modes)
		}
	}
	if f.meter != "" {
		if filter.Meter, ok = catalog.ParseMeter(f.meter); !ok {
			return filter, invalidFlag("meter", f.meter, catalog.Meters)
		}
	}
	return filter, nil
}

func invalidFlag[T ~string](name, value string, allowed []T) error {
	names := make([]string, 0, len(allowed))
	for _, a := range allowed {
		names = append(names, string(a))
	}
	return tberrors.ValidationError(fmt.Sprintf("unknown %s %q", name, value), nil).
		WithSuggestion("Valid values: " + strings.Join(names, ", "))
}

func newSearchCmd() *cobra.Command {
	var (
		filters    filterFlags
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find tunes by title or alias",
		Long: `Search tune titles and alternative titles. Misspellings and partial
words are tolerated; results are ordered by relevance.

The default number of results comes from search.default_limit.`,
		Example: `  tunebook search "drowsy magie"
  tunebook search kesh --type jig
  tunebook search "silver spear" --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return withSession(cmd.Context(), func(ctx context.Context, s *session) error {
				filter, err := filters.parse()
				if err != nil {
					return err
				}
				if !cmd.Flags().Changed("limit") {
					limit = s.cfg.Search.DefaultLimit
				}

				tunes, err := s.SearchTunes(ctx, query, search.SearchOptions{
					Limit: limit,
					Type:  filter.Type,
					Mode:  filter.Mode,
					Meter: filter.Meter,
				})
				if err != nil {
					return err
				}
				return printTunes(cmd, tunes, jsonOutput)
			})
		},
	}

	filters.register(cmd)
	cmd.Flags().IntVarP(&limit, "limit", "n", search.DefaultLimit, "Maximum number of results")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func printTunes(cmd *cobra.Command, tunes []*catalog.Tune, jsonOutput bool) error {
	if jsonOutput {
		if tunes == nil {
			tunes = []*catalog.Tune{}
		}
		return ui.WriteJSON(cmd.OutOrStdout(), tunes)
	}
	return ui.NewTunePrinter(cmd.OutOrStdout(), noColor || ui.DetectNoColor()).Tunes(tunes)
}
