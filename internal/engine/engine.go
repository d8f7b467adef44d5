// Package engine is the single entry point to the catalog: it owns the
// store, the fuzzy index, the query engine and the ingestion orchestrator.
//
// An Engine is created once and passed by reference. Init must run before
// any other operation; Shutdown releases every resource.
package engine

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/tunebook/tunebook/internal/catalog"
	tberrors "github.com/tunebook/tunebook/internal/errors"
	"github.com/tunebook/tunebook/internal/ingest"
	"github.com/tunebook/tunebook/internal/metrics"
	"github.com/tunebook/tunebook/internal/search"
	"github.com/tunebook/tunebook/internal/store"
	"github.com/tunebook/tunebook/internal/telemetry"
)

// DefaultDBName names the database file inside the data directory.
const DefaultDBName = "tunebook"

// Config configures an Engine.
type Config struct {
	// DataDir holds the database and lock file. Empty means in-memory,
	// with no cross-process lock.
	DataDir string

	// DBName is the database file name without extension.
	DBName string

	Fuzzy       store.FuzzyConfig
	CacheSize   int
	Fetch       ingest.FetchConfig
	Concurrency int
}

// DBPath returns the database file path, or "" when in-memory.
func (c Config) DBPath() string {
	if c.DataDir == "" {
		return ""
	}
	name := c.DBName
	if name == "" {
		name = DefaultDBName
	}
	return filepath.Join(c.DataDir, name+".db")
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics reports engine activity to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithFetcher replaces the source fetcher used by Ingest.
func WithFetcher(f ingest.Fetcher) Option {
	return func(e *Engine) { e.fetcher = f }
}

// Engine implements the catalog operations.
type Engine struct {
	cfg     Config
	metrics *metrics.Metrics
	fetcher ingest.Fetcher
	queries *telemetry.Recorder

	mu          sync.RWMutex
	initialized bool
	lock        *store.DataDirLock
	store       *store.SQLiteStore
	index       *store.BleveFuzzyIndex
	search      *search.Engine
	ingest      *ingest.Orchestrator
}

// New returns an uninitialized engine.
func New(cfg Config, opts ...Option) *Engine {
	e := &Engine{cfg: cfg, queries: telemetry.NewRecorder(telemetry.DefaultConfig())}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Init opens the store. Calling it again is a no-op.
func (e *Engine) Init(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initialized {
		return nil
	}

	var lock *store.DataDirLock
	if e.cfg.DataDir != "" {
		lock = store.NewDataDirLock(e.cfg.DataDir)
		if err := lock.Acquire(); err != nil {
			return err
		}
	}

	st, err := store.NewSQLiteStore(e.cfg.DBPath())
	if err != nil {
		if lock != nil {
			_ = lock.Release()
		}
		return err
	}

	idx := store.NewBleveFuzzyIndex(e.cfg.Fuzzy)

	cacheSize := e.cfg.CacheSize
	if cacheSize == 0 {
		cacheSize = search.DefaultCacheSize
	}
	se, err := search.NewEngine(st, idx,
		search.WithCacheSize(cacheSize),
		search.WithMetrics(e.metrics))
	if err != nil {
		_ = st.Close()
		if lock != nil {
			_ = lock.Release()
		}
		return err
	}

	fetcher := e.fetcher
	if fetcher == nil {
		fetcher = ingest.NewSourceFetcher(e.cfg.Fetch)
	}

	e.lock = lock
	e.store = st
	e.index = idx
	e.search = se
	e.ingest = ingest.New(st, se,
		ingest.WithFetcher(fetcher),
		ingest.WithConcurrency(e.cfg.Concurrency),
		ingest.WithMetrics(e.metrics))
	e.initialized = true

	slog.Info("engine_initialized", slog.String("db", e.cfg.DBPath()))
	return nil
}

// Initialized reports whether Init has completed.
func (e *Engine) Initialized() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.initialized
}

// acquire holds the engine open for one operation. Shutdown waits until
// every acquired operation has released.
func (e *Engine) acquire() (release func(), err error) {
	e.mu.RLock()
	if !e.initialized {
		e.mu.RUnlock()
		return nil, tberrors.ErrNotInitialized
	}
	return e.mu.RUnlock, nil
}

// Ingest fetches, normalizes and commits a batch. The fuzzy index is
// rebuilt before it returns when tunes were written.
func (e *Engine) Ingest(ctx context.Context, in ingest.Input) (*ingest.Result, error) {
	release, err := e.acquire()
	if err != nil {
		return nil, err
	}
	defer release()
	return e.ingest.Ingest(ctx, in)
}

// SearchTunes runs a fuzzy search. Successful searches are counted in the
// statistics reported by Stats.
func (e *Engine) SearchTunes(ctx context.Context, query string, opts search.SearchOptions) ([]*catalog.Tune, error) {
	release, err := e.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now()
	tunes, err := e.search.Search(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	e.queries.Record(telemetry.SearchEvent{
		Query:    query,
		Filtered: opts.Type != "" || opts.Mode != "" || opts.Meter != "",
		Results:  len(tunes),
		Latency:  time.Since(start),
	})
	return tunes, nil
}

// ListTunes pages through tunes.
func (e *Engine) ListTunes(ctx context.Context, opts search.ListOptions) ([]*catalog.Tune, error) {
	release, err := e.acquire()
	if err != nil {
		return nil, err
	}
	defer release()
	return e.search.List(ctx, opts)
}

// GetTune returns nil, nil for an unknown id.
func (e *Engine) GetTune(ctx context.Context, id string) (*catalog.Tune, error) {
	release, err := e.acquire()
	if err != nil {
		return nil, err
	}
	defer release()
	return e.search.Get(ctx, id)
}

// Recordings lists a tune's recordings.
func (e *Engine) Recordings(ctx context.Context, tuneID string) ([]*catalog.Recording, error) {
	release, err := e.acquire()
	if err != nil {
		return nil, err
	}
	defer release()
	return e.search.Recordings(ctx, tuneID)
}

// Stats reports per-kind counts, the index state and search statistics
// since the engine was created.
func (e *Engine) Stats(ctx context.Context) (*search.Stats, error) {
	release, err := e.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	stats, err := e.search.Stats(ctx)
	if err != nil {
		return nil, err
	}
	stats.Searches = e.queries.Snapshot()
	return stats, nil
}

// Clear empties every kind and invalidates the index.
func (e *Engine) Clear(ctx context.Context) error {
	release, err := e.acquire()
	if err != nil {
		return err
	}
	defer release()
	return e.ingest.Clear(ctx)
}

// Shutdown waits for running operations, then closes the store and
// releases the data directory lock. The engine can be initialized again
// afterwards.
func (e *Engine) Shutdown() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return nil
	}
	e.initialized = false

	_ = e.index.Close()
	err := e.store.Close()
	if e.lock != nil {
		if lerr := e.lock.Release(); lerr != nil && err == nil {
			err = lerr
		}
	}
	e.store, e.index, e.search, e.ingest, e.lock = nil, nil, nil, nil, nil

	slog.Info("engine_shutdown")
	return err
}
