package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tunebook/tunebook/internal/catalog"
	tberrors "github.com/tunebook/tunebook/internal/errors"
	"github.com/tunebook/tunebook/internal/ingest"
	"github.com/tunebook/tunebook/internal/ui"
)

func newIngestCmd() *cobra.Command {
	var (
		kind       string
		plain      bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "ingest [source...]",
		Short: "Load catalog data from files, directories or URLs",
		Long: `Fetch, normalize and store catalog data, then rebuild the search index.

A source is an http(s) URL, a file:// URL, a JSON file, or a directory
holding the standard data files (tunes.json, aliases.json,
tune_popularity.json, recordings.json, sets.json). The kind of a file is
inferred from its name unless --kind is given.

Each kind present in the input replaces that kind in the catalog; kinds
absent from the input are left untouched.

Without arguments the sources listed in the configuration are used.`,
		Example: `  # Ingest a downloaded data directory
  tunebook ingest ~/Downloads/thesession-data

  # Ingest straight from the published dumps
  tunebook ingest https://example.org/data/tunes.json https://example.org/data/aliases.json

  # Ingest a file whose name does not reveal its kind
  tunebook ingest --kind recordings ./dump-2024.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd.Context(), cmd, args, kind, plain, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "Kind of every source: tunes, aliases, popularity, recordings or sets")
	cmd.Flags().BoolVar(&plain, "plain", false, "Plain line output instead of the interactive display")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the result as JSON")

	return cmd
}

// buildIngestInput maps command arguments onto an ingest request.
func buildIngestInput(sources []string, kind string) (ingest.Input, error) {
	if len(sources) == 0 {
		return ingest.Input{}, tberrors.ValidationError("no sources to ingest", nil).
			WithSuggestion("Pass a file, directory or URL, or set data.sources in .tunebook.yaml.")
	}
	if kind == "" {
		return ingest.Input{URLs: sources}, nil
	}

	k, ok := catalog.ParseKind(kind)
	if !ok {
		return ingest.Input{}, tberrors.ValidationError(fmt.Sprintf("unknown kind %q", kind), nil).
			WithSuggestion("Use tunes, aliases, popularity, recordings or sets.")
	}
	in := ingest.Input{Sources: make([]ingest.Source, 0, len(sources))}
	for _, s := range sources {
		in.Sources = append(in.Sources, ingest.Source{Location: s, Kind: k})
	}
	return in, nil
}

func runIngest(ctx context.Context, cmd *cobra.Command, args []string, kind string, plain, jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sources := args
	if len(sources) == 0 {
		sources = cfg.Data.Sources
	}
	in, err := buildIngestInput(sources, kind)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if jsonOutput {
		s, err := openSession(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		result, err := s.Ingest(ctx, in)
		if err != nil {
			return err
		}
		return ui.WriteJSON(cmd.OutOrStdout(), result)
	}

	renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
		ui.WithForcePlain(plain),
		ui.WithNoColor(noColor),
		ui.WithInterrupt(cancel),
	))
	if err := renderer.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = renderer.Stop() }()

	start := time.Now()
	renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageConnecting, Message: "Opening catalog"})

	s, err := openSession(ctx, cfg)
	if err != nil {
		renderer.AddError(ui.ErrorEvent{Err: err})
		return err
	}
	defer func() { _ = s.Close() }()

	renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageIngesting,
		Message: fmt.Sprintf("Ingesting %d source(s) via %s engine", len(sources), s.Mode),
	})

	result, err := s.Ingest(ctx, in)
	if err != nil {
		if ctx.Err() != nil {
			err = tberrors.New(tberrors.ErrCodeRequestCancelled, "ingest cancelled", err)
		}
		renderer.AddError(ui.ErrorEvent{Err: err})
		return err
	}

	for _, w := range result.Warnings {
		renderer.AddError(ui.ErrorEvent{Err: errors.New(w), IsWarn: true})
	}
	renderer.Complete(ui.CompletionStats{
		Counts:   result.Counts,
		Warnings: len(result.Warnings),
		Duration: time.Since(start),
	})
	return nil
}
