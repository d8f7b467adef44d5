package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tunebook/tunebook/internal/catalog"
	tberrors "github.com/tunebook/tunebook/internal/errors"
	"github.com/tunebook/tunebook/internal/ingest"
	"github.com/tunebook/tunebook/internal/search"
)

func kesh() ingest.Input {
	return ingest.Input{Data: catalog.RawBatch{
		Tunes:   []catalog.RawTune{{TuneID: "1", Name: "Kesh", Type: "reel", Meter: "4/4"}},
		Aliases: []catalog.RawAlias{{TuneID: "1", Alias: "The Kesh"}},
	}}
}

func TestEngine_RequiresInit(t *testing.T) {
	e := New(Config{})
	ctx := context.Background()

	_, err := e.SearchTunes(ctx, "kesh", search.SearchOptions{})
	assert.ErrorIs(t, err, tberrors.ErrNotInitialized)
	_, err = e.Ingest(ctx, kesh())
	assert.ErrorIs(t, err, tberrors.ErrNotInitialized)
	assert.ErrorIs(t, e.Clear(ctx), tberrors.ErrNotInitialized)
	assert.NoError(t, e.Shutdown())
}

func TestEngine_InitIsIdempotent(t *testing.T) {
	e := New(Config{})
	ctx := context.Background()

	require.NoError(t, e.Init(ctx))
	require.NoError(t, e.Init(ctx))
	assert.True(t, e.Initialized())
	require.NoError(t, e.Shutdown())
	assert.False(t, e.Initialized())
}

func TestEngine_EndToEnd(t *testing.T) {
	e := New(Config{})
	ctx := context.Background()
	require.NoError(t, e.Init(ctx))
	defer e.Shutdown()

	res, err := e.Ingest(ctx, kesh())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Counts[catalog.KindTunes])

	tune, err := e.GetTune(ctx, "1")
	require.NoError(t, err)
	require.NotNil(t, tune)
	assert.Equal(t, []string{"The Kesh"}, tune.Aliases)

	hits, err := e.SearchTunes(ctx, "the kesh", search.SearchOptions{Type: catalog.TypeReel})
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	listed, err := e.ListTunes(ctx, search.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, listed, 1)

	stats, err := e.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.IndexSize)
	require.NotNil(t, stats.Searches)
	assert.EqualValues(t, 1, stats.Searches.Searches)
	assert.EqualValues(t, 1, stats.Searches.Filtered)
	assert.Empty(t, stats.Searches.RecentMisses)

	require.NoError(t, e.Clear(ctx))
	hits, err = e.SearchTunes(ctx, "kesh", search.SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestEngine_DataDirIsExclusive(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first := New(Config{DataDir: dir})
	require.NoError(t, first.Init(ctx))

	second := New(Config{DataDir: dir})
	err := second.Init(ctx)
	assert.ErrorIs(t, err, tberrors.ErrStoreLocked)

	require.NoError(t, first.Shutdown())
	require.NoError(t, second.Init(ctx))
	require.NoError(t, second.Shutdown())
}

func TestEngine_PersistsAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	e := New(Config{DataDir: dir})
	require.NoError(t, e.Init(ctx))
	_, err := e.Ingest(ctx, kesh())
	require.NoError(t, err)
	require.NoError(t, e.Shutdown())

	e = New(Config{DataDir: dir})
	require.NoError(t, e.Init(ctx))
	defer e.Shutdown()

	hits, err := e.SearchTunes(ctx, "kesh", search.SearchOptions{})
	require.NoError(t, err)
	assert.Len(t, hits, 1, "index rebuilt lazily from the stored tunes")
}

func TestConfig_DBPath(t *testing.T) {
	assert.Equal(t, "", Config{}.DBPath())
	assert.Equal(t, "/data/tunebook.db", Config{DataDir: "/data"}.DBPath())
	assert.Equal(t, "/data/x.db", Config{DataDir: "/data", DBName: "x"}.DBPath())
}

func TestEngine_ShutdownWaitsForOperations(t *testing.T) {
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		e := New(Config{})
		require.NoError(t, e.Init(ctx))

		// Given: operations racing a shutdown
		errs := make(chan error, 3)
		go func() {
			_, err := e.Ingest(ctx, kesh())
			errs <- err
		}()
		go func() {
			_, err := e.SearchTunes(ctx, "kesh", search.SearchOptions{})
			errs <- err
		}()
		go func() {
			_, err := e.Stats(ctx)
			errs <- err
		}()

		// When: the engine shuts down meanwhile
		require.NoError(t, e.Shutdown())

		// Then: each operation either completed or saw the engine closed
		for j := 0; j < 3; j++ {
			if err := <-errs; err != nil {
				assert.ErrorIs(t, err, tberrors.ErrNotInitialized)
			}
		}
	}
}
