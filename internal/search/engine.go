package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/tunebook/tunebook/internal/catalog"
	tberrors "github.com/tunebook/tunebook/internal/errors"
	"github.com/tunebook/tunebook/internal/metrics"
	"github.com/tunebook/tunebook/internal/store"
)

// Engine composes store scans and fuzzy index lookups.
type Engine struct {
	store   store.Store
	index   store.FuzzyIndex
	cache   *lru.Cache[string, []*catalog.Tune]
	metrics *metrics.Metrics

	// buildMu serializes index builds so a lazy rebuild runs once.
	buildMu sync.Mutex
}

// EngineOption configures the engine.
type EngineOption func(*Engine)

// WithCacheSize sets the search result cache size. Zero or negative
// disables caching.
func WithCacheSize(size int) EngineOption {
	return func(e *Engine) {
		if size <= 0 {
			e.cache = nil
			return
		}
		e.cache, _ = lru.New[string, []*catalog.Tune](size)
	}
}

// WithMetrics reports index builds and cache lookups to m.
func WithMetrics(m *metrics.Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// NewEngine returns an engine over st and idx.
func NewEngine(st store.Store, idx store.FuzzyIndex, opts ...EngineOption) (*Engine, error) {
	if st == nil || idx == nil {
		return nil, tberrors.InternalError("search engine requires a store and an index", nil)
	}
	cache, _ := lru.New[string, []*catalog.Tune](DefaultCacheSize)
	e := &Engine{store: st, index: idx, cache: cache}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Search ranks tunes against query. A blank query is a List with the same
// filters. Otherwise 2*limit fuzzy candidates are fetched, filtered by
// exact type, mode and meter, then cut to limit.
func (e *Engine) Search(ctx context.Context, query string, opts SearchOptions) ([]*catalog.Tune, error) {
	limit := normalizeLimit(opts.Limit)
	if strings.TrimSpace(query) == "" {
		return e.List(ctx, ListOptions{
			Type:  opts.Type,
			Mode:  opts.Mode,
			Meter: opts.Meter,
			Limit: limit,
		})
	}

	key := cacheKey(query, opts.Filter(), limit)
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			e.metrics.RecordCacheLookup(true)
			return append([]*catalog.Tune(nil), cached...), nil
		}
		e.metrics.RecordCacheLookup(false)
	}

	if err := e.EnsureIndex(ctx); err != nil {
		return nil, err
	}

	hits, err := e.index.Query(ctx, query, 2*limit)
	if err != nil {
		return nil, err
	}

	filter := opts.Filter()
	results := make([]*catalog.Tune, 0, min(len(hits), limit))
	for _, h := range hits {
		if !filter.Match(h.Tune) {
			continue
		}
		results = append(results, h.Tune)
		if len(results) == limit {
			break
		}
	}

	if e.cache != nil {
		e.cache.Add(key, append([]*catalog.Tune(nil), results...))
	}
	return results, nil
}

// List scans the store in the requested order with the equality filters
// applied, then pages with offset and limit.
func (e *Engine) List(ctx context.Context, opts ListOptions) ([]*catalog.Tune, error) {
	orderBy, err := store.ParseOrderField(opts.OrderBy)
	if err != nil {
		return nil, err
	}
	return e.store.ScanTunes(ctx, store.ScanOptions{
		OrderBy: orderBy,
		Desc:    opts.Desc,
		Filter:  opts.Filter(),
		Offset:  max(opts.Offset, 0),
		Limit:   normalizeLimit(opts.Limit),
	})
}

// Get returns the tune with id, or nil when it does not exist.
func (e *Engine) Get(ctx context.Context, id string) (*catalog.Tune, error) {
	return e.store.GetTune(ctx, id)
}

// Recordings returns the recordings of a tune.
func (e *Engine) Recordings(ctx context.Context, tuneID string) ([]*catalog.Recording, error) {
	return e.store.RecordingsForTune(ctx, tuneID)
}

// Stats reports per-kind counts and the index state.
func (e *Engine) Stats(ctx context.Context) (*Stats, error) {
	counts, err := e.store.Counts(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{
		Counts:     counts,
		IndexBuilt: e.index.Built(),
		IndexSize:  e.index.Size(),
	}, nil
}

// EnsureIndex rebuilds the index from the store when none is built.
func (e *Engine) EnsureIndex(ctx context.Context) error {
	if e.index.Built() {
		return nil
	}

	e.buildMu.Lock()
	defer e.buildMu.Unlock()

	if e.index.Built() {
		return nil
	}
	slog.Debug("fuzzy_index_lazy_rebuild")
	return e.rebuildLocked(ctx)
}

// RebuildIndex rebuilds the index from the current store contents.
func (e *Engine) RebuildIndex(ctx context.Context) error {
	e.buildMu.Lock()
	defer e.buildMu.Unlock()
	return e.rebuildLocked(ctx)
}

// BuildIndex builds the index from tunes already in hand.
func (e *Engine) BuildIndex(ctx context.Context, tunes []*catalog.Tune) error {
	e.buildMu.Lock()
	defer e.buildMu.Unlock()
	return e.build(ctx, tunes)
}

func (e *Engine) rebuildLocked(ctx context.Context) error {
	tunes, err := e.store.AllTunes(ctx)
	if err != nil {
		return err
	}
	return e.build(ctx, tunes)
}

func (e *Engine) build(ctx context.Context, tunes []*catalog.Tune) error {
	start := time.Now()
	if err := e.index.Build(ctx, tunes); err != nil {
		return err
	}
	e.Purge()
	e.metrics.RecordIndexBuild(len(tunes), time.Since(start))
	slog.Info("fuzzy_index_built",
		slog.Int("tunes", len(tunes)),
		slog.Duration("took", time.Since(start)))
	return nil
}

// Invalidate drops the index and the result cache.
func (e *Engine) Invalidate() {
	e.buildMu.Lock()
	defer e.buildMu.Unlock()
	e.index.Invalidate()
	e.Purge()
	e.metrics.RecordIndexInvalidated()
}

// Purge empties the result cache.
func (e *Engine) Purge() {
	if e.cache != nil {
		e.cache.Purge()
	}
}

func cacheKey(query string, f catalog.TuneFilter, limit int) string {
	return fmt.Sprintf("%s\x00%s\x00%s\x00%s\x00%d", query, f.Type, f.Mode, f.Meter, limit)
}
