package watcher

import (
	"context"
	"log/slog"
	"time"

	"github.com/tunebook/tunebook/internal/ingest"
	"github.com/tunebook/tunebook/internal/logging"
)

// IngestFunc runs one ingest. Both the engine and the daemon client
// provide one.
type IngestFunc func(ctx context.Context, in ingest.Input) (*ingest.Result, error)

// Refresh reports one re-ingest triggered by file changes.
type Refresh struct {
	Sources  []string
	Result   *ingest.Result
	Err      error
	Duration time.Duration
}

// Refresher re-ingests the targets touched by each batch of changes.
type Refresher struct {
	ingest    IngestFunc
	targets   []Target
	onRefresh func(Refresh)
}

// RefresherOption configures a Refresher.
type RefresherOption func(*Refresher)

// WithRefreshHook is called after every re-ingest.
func WithRefreshHook(fn func(Refresh)) RefresherOption {
	return func(r *Refresher) {
		r.onRefresh = fn
	}
}

// NewRefresher creates a refresher over targets.
func NewRefresher(fn IngestFunc, targets []Target, opts ...RefresherOption) *Refresher {
	r := &Refresher{ingest: fn, targets: targets}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Affected returns the configured sources owning any path in batch, in
// target order.
func (r *Refresher) Affected(batch []FileEvent) []string {
	var sources []string
	for _, t := range r.targets {
		for _, e := range batch {
			if t.Owns(e.Path) {
				sources = append(sources, t.Source)
				break
			}
		}
	}
	return sources
}

// Run re-ingests on every batch until batches is closed or ctx is done.
// Ingest failures are logged and reported through the hook; they do not
// stop the loop.
func (r *Refresher) Run(ctx context.Context, batches <-chan []FileEvent) error {
	logger := logging.FromContext(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch, ok := <-batches:
			if !ok {
				return nil
			}
			sources := r.Affected(batch)
			if len(sources) == 0 {
				continue
			}
			r.refresh(ctx, logger, sources)
		}
	}
}

func (r *Refresher) refresh(ctx context.Context, logger *slog.Logger, sources []string) {
	start := time.Now()
	res, err := r.ingest(ctx, ingest.Input{URLs: sources})
	refresh := Refresh{Sources: sources, Result: res, Err: err, Duration: time.Since(start)}

	if err != nil {
		logger.Error("re-ingest failed",
			slog.Any("sources", sources),
			slog.String("error", err.Error()))
	} else {
		attrs := []any{
			slog.Any("sources", sources),
			slog.Duration("duration", refresh.Duration),
			slog.Int("warnings", len(res.Warnings)),
		}
		for kind, n := range res.Counts {
			attrs = append(attrs, slog.Int(string(kind), n))
		}
		logger.Info("re-ingested changed sources", attrs...)
	}

	if r.onRefresh != nil {
		r.onRefresh(refresh)
	}
}
