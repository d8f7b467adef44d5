package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/tunebook/tunebook/internal/search"
)

func newListCmd() *cobra.Command {
	var (
		filters    filterFlags
		offset     int
		limit      int
		orderBy    string
		desc       bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Page through tunes in a fixed order",
		Long: `List tunes matching the filters, ordered by title unless --order-by is
given. Tunes with no value for the order field come last.

Order fields: title, popularity, createdAt, updatedAt, type.`,
		Example: `  tunebook list --type reel --mode Dmajor
  tunebook list --order-by popularity --desc -n 20
  tunebook list --type jig --offset 50`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *session) error {
				filter, err := filters.parse()
				if err != nil {
					return err
				}
				if !cmd.Flags().Changed("limit") {
					limit = s.cfg.Search.DefaultLimit
				}

				tunes, err := s.ListTunes(ctx, search.ListOptions{
					Type:    filter.Type,
					Mode:    filter.Mode,
					Meter:   filter.Meter,
					Offset:  offset,
					Limit:   limit,
					OrderBy: orderBy,
					Desc:    desc,
				})
				if err != nil {
					return err
				}
				return printTunes(cmd, tunes, jsonOutput)
			})
		},
	}

	filters.register(cmd)
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of tunes to skip")
	cmd.Flags().IntVarP(&limit, "limit", "n", search.DefaultLimit, "Maximum number of tunes")
	cmd.Flags().StringVar(&orderBy, "order-by", "title", "Order field")
	cmd.Flags().BoolVar(&desc, "desc", false, "Sort in descending order")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}
