// Package ingest fetches raw sources, normalizes them and commits the
// result to the store, rebuilding the fuzzy index.
//
// Ingestion never aborts because one source failed. Failed sources and
// invalid records are reported as warnings on the Result.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tunebook/tunebook/internal/catalog"
	tberrors "github.com/tunebook/tunebook/internal/errors"
	"github.com/tunebook/tunebook/internal/metrics"
	"github.com/tunebook/tunebook/internal/normalize"
	"github.com/tunebook/tunebook/internal/store"
)

// DefaultConcurrency bounds parallel fetches.
const DefaultConcurrency = 4

// Input is one ingest request. Inline data is merged before fetched data.
type Input struct {
	URLs    []string         `json:"urls,omitempty"`
	Sources []Source         `json:"sources,omitempty"`
	Data    catalog.RawBatch `json:"data,omitempty"`
}

// Result reports what was written and everything that went wrong.
type Result struct {
	Counts   map[catalog.Kind]int `json:"counts"`
	Warnings []string             `json:"warnings"`
}

// Indexer is the part of the query engine ingestion drives.
type Indexer interface {
	BuildIndex(ctx context.Context, tunes []*catalog.Tune) error
	Invalidate()
	Purge()
}

// Orchestrator runs ingestion passes.
type Orchestrator struct {
	store       store.Store
	indexer     Indexer
	fetcher     Fetcher
	normalizer  *normalize.Normalizer
	metrics     *metrics.Metrics
	concurrency int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithFetcher replaces the default source fetcher.
func WithFetcher(f Fetcher) Option {
	return func(o *Orchestrator) { o.fetcher = f }
}

// WithNormalizer replaces the default normalizer.
func WithNormalizer(n *normalize.Normalizer) Option {
	return func(o *Orchestrator) { o.normalizer = n }
}

// WithConcurrency bounds parallel fetches.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithMetrics reports ingest counts and fetch outcomes to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// New returns an orchestrator writing to st and indexing through idx.
func New(st store.Store, idx Indexer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:       st,
		indexer:     idx,
		fetcher:     NewSourceFetcher(DefaultFetchConfig()),
		normalizer:  normalize.New(),
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type warnings []string

func (w *warnings) add(format string, args ...any) {
	*w = append(*w, fmt.Sprintf(format, args...))
}

// fetched is the outcome of one source, kept in input order.
type fetched struct {
	batch    catalog.RawBatch
	warnings warnings
}

// Ingest fetches every source, normalizes the merged raw batch once and
// replaces the store contents atomically. When tunes were written the
// fuzzy index is rebuilt before Ingest returns.
func (o *Orchestrator) Ingest(ctx context.Context, in Input) (*Result, error) {
	start := time.Now()
	var w warnings

	raw := catalog.RawBatch{}
	raw.Append(in.Data)

	sources := append(expandSources(in.URLs, &w), in.Sources...)
	results := make([]fetched, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for i, src := range sources {
		g.Go(func() error {
			results[i] = o.load(gctx, src)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, tberrors.New(tberrors.ErrCodeRequestCancelled, "ingest cancelled", err)
	}

	for _, r := range results {
		raw.Append(r.batch)
		w = append(w, r.warnings...)
	}

	norm := o.normalizer.Normalize(raw)
	w = append(w, norm.Warnings...)

	if err := o.store.ReplaceAll(ctx, &norm.Batch); err != nil {
		return nil, err
	}

	if len(norm.Tunes) > 0 {
		tunes := make([]*catalog.Tune, len(norm.Tunes))
		for i := range norm.Tunes {
			tunes[i] = &norm.Tunes[i]
		}
		if err := o.indexer.BuildIndex(ctx, tunes); err != nil {
			// The store already holds the new rows; drop the stale index so
			// the next query rebuilds it from them.
			o.indexer.Invalidate()
			return nil, err
		}
	} else {
		o.indexer.Purge()
	}

	res := &Result{Counts: norm.Counts(), Warnings: []string(w)}
	if res.Warnings == nil {
		res.Warnings = []string{}
	}

	counts := make(map[string]int, len(res.Counts))
	for k, n := range res.Counts {
		counts[string(k)] = n
	}
	o.metrics.RecordIngest(counts, len(res.Warnings))

	slog.Info("ingest_complete",
		slog.Int("sources", len(sources)),
		slog.Int("tunes", res.Counts[catalog.KindTunes]),
		slog.Int("aliases", res.Counts[catalog.KindAliases]),
		slog.Int("recordings", res.Counts[catalog.KindRecordings]),
		slog.Int("warnings", len(res.Warnings)),
		slog.Duration("took", time.Since(start)))

	return res, nil
}

// Clear empties the store and invalidates the index.
func (o *Orchestrator) Clear(ctx context.Context) error {
	if err := o.store.Clear(ctx); err != nil {
		return err
	}
	o.indexer.Invalidate()
	slog.Info("catalog_cleared")
	return nil
}

// load fetches and decodes one source. It never fails; problems become
// warnings.
func (o *Orchestrator) load(ctx context.Context, src Source) fetched {
	var out fetched

	kind := src.Kind
	if kind == "" {
		k, ok := catalog.InferKind(src.Location)
		if !ok {
			out.warnings.add("Unknown data type for URL: %s", src.Location)
			return out
		}
		kind = k
	}

	data, err := o.fetcher.Fetch(ctx, src.Location)
	if err != nil {
		o.metrics.RecordFetch(false)
		var se *StatusError
		if errors.As(err, &se) {
			out.warnings.add("Failed to fetch %s: %s", src.Location, se.Status)
		} else {
			out.warnings.add("Error fetching %s: %v", src.Location, err)
		}
		slog.Warn("source_fetch_failed",
			slog.String("source", src.Location),
			slog.String("error", err.Error()))
		return out
	}
	o.metrics.RecordFetch(true)

	elements, err := splitPayload(data)
	if err != nil {
		out.warnings.add("Error parsing %s: %v", src.Location, err)
		return out
	}
	for i, el := range elements {
		if err := out.batch.DecodeElement(kind, el); err != nil {
			out.warnings.add("Skipping %s element %d of %s: %v", kind, i, src.Location, err)
		}
	}
	return out
}

// splitPayload accepts a JSON array or a single JSON value.
func splitPayload(data []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("empty payload")
	}
	if trimmed[0] == '[' {
		var elements []json.RawMessage
		if err := json.Unmarshal(trimmed, &elements); err != nil {
			return nil, err
		}
		return elements, nil
	}
	if !json.Valid(trimmed) {
		return nil, errors.New("invalid JSON")
	}
	return []json.RawMessage{trimmed}, nil
}

// MemoryFetcher serves fixed payloads by location. It is safe for
// concurrent use.
type MemoryFetcher struct {
	mu       sync.Mutex
	Payloads map[string][]byte
	Errors   map[string]error
	Calls    []string
}

// Fetch implements Fetcher.
func (m *MemoryFetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, location)
	if err, ok := m.Errors[location]; ok {
		return nil, err
	}
	if data, ok := m.Payloads[location]; ok {
		return data, nil
	}
	return nil, &StatusError{Code: 404, Status: "Not Found"}
}
