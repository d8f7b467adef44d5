package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tunebook/tunebook/internal/catalog"
	tberrors "github.com/tunebook/tunebook/internal/errors"
	"github.com/tunebook/tunebook/internal/store"
)

func intPtr(n int) *int { return &n }

func seedBatch() *catalog.Batch {
	return &catalog.Batch{Tunes: []catalog.Tune{
		{ID: "1", Title: "The Kesh", Type: catalog.TypeJig, Meter: catalog.MeterSixEight, Mode: catalog.ModeGMajor,
			Aliases: []string{"Kesh Jig"}, Popularity: intPtr(900), SearchText: "the kesh kesh jig"},
		{ID: "2", Title: "The Kesh Reel", Type: catalog.TypeReel, Meter: catalog.MeterFourFour, Mode: catalog.ModeDMajor,
			Popularity: intPtr(10), SearchText: "the kesh reel"},
		{ID: "3", Title: "Drowsy Maggie", Type: catalog.TypeReel, Meter: catalog.MeterFourFour, Mode: catalog.ModeEDorian,
			Popularity: intPtr(700), SearchText: "drowsy maggie"},
		{ID: "4", Title: "Banish Misfortune", Type: catalog.TypeJig, Meter: catalog.MeterSixEight, Mode: catalog.ModeDMixolydian,
			SearchText: "banish misfortune"},
	}}
}

type fixture struct {
	engine *Engine
	store  *store.SQLiteStore
	index  *store.BleveFuzzyIndex
}

func newFixture(t *testing.T, seed bool) *fixture {
	t.Helper()
	st, err := store.NewSQLiteStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	idx := store.NewBleveFuzzyIndex(store.DefaultFuzzyConfig())
	t.Cleanup(func() { _ = idx.Close() })

	e, err := NewEngine(st, idx)
	require.NoError(t, err)

	if seed {
		require.NoError(t, st.ReplaceAll(context.Background(), seedBatch()))
	}
	return &fixture{engine: e, store: st, index: idx}
}

func ids(tunes []*catalog.Tune) []string {
	out := make([]string, 0, len(tunes))
	for _, t := range tunes {
		out = append(out, t.ID)
	}
	return out
}

func TestNewEngine_NilDependencies(t *testing.T) {
	_, err := NewEngine(nil, nil)
	assert.Error(t, err)
}

func TestSearch_LazilyBuildsIndex(t *testing.T) {
	f := newFixture(t, true)
	require.False(t, f.index.Built())

	got, err := f.engine.Search(context.Background(), "kesh", SearchOptions{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1", "2"}, ids(got))
	assert.True(t, f.index.Built())
}

func TestSearch_PostFilters(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	got, err := f.engine.Search(ctx, "kesh", SearchOptions{Type: catalog.TypeReel})
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, ids(got))

	got, err = f.engine.Search(ctx, "kesh", SearchOptions{Meter: catalog.MeterSixEight, Mode: catalog.ModeGMajor})
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, ids(got))

	got, err = f.engine.Search(ctx, "kesh", SearchOptions{Mode: catalog.ModeAMinor})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSearch_Limit(t *testing.T) {
	f := newFixture(t, true)

	got, err := f.engine.Search(context.Background(), "kesh", SearchOptions{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSearch_BlankQueryEqualsList(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	filters := []SearchOptions{
		{},
		{Type: catalog.TypeJig},
		{Meter: catalog.MeterFourFour, Limit: 1},
		{Mode: catalog.ModeAMinor},
	}
	for _, opts := range filters {
		searched, err := f.engine.Search(ctx, "   ", opts)
		require.NoError(t, err)
		listed, err := f.engine.List(ctx, ListOptions{Type: opts.Type, Mode: opts.Mode, Meter: opts.Meter, Limit: opts.Limit})
		require.NoError(t, err)
		assert.Equal(t, ids(listed), ids(searched))
	}
	assert.False(t, f.index.Built(), "blank search must not touch the index")
}

func TestList_OrderAndPaging(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	got, err := f.engine.List(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"4", "3", "1", "2"}, ids(got))

	got, err = f.engine.List(ctx, ListOptions{OrderBy: "popularity", Desc: true, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "3"}, ids(got))

	got, err = f.engine.List(ctx, ListOptions{Type: catalog.TypeReel, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, ids(got))

	_, err = f.engine.List(ctx, ListOptions{OrderBy: "abc"})
	assert.Equal(t, tberrors.ErrCodeInvalidOrder, tberrors.GetCode(err))
}

func TestGet_UnknownIsNil(t *testing.T) {
	f := newFixture(t, true)

	got, err := f.engine.Get(context.Background(), "404")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = f.engine.Get(context.Background(), "3")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Drowsy Maggie", got.Title)
}

func TestSearch_AfterClearRebuildsEmpty(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	_, err := f.engine.Search(ctx, "kesh", SearchOptions{})
	require.NoError(t, err)

	require.NoError(t, f.store.Clear(ctx))
	f.engine.Invalidate()

	got, err := f.engine.Search(ctx, "kesh", SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.True(t, f.index.Built())
}

func TestSearch_CacheInvalidatedByBuild(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	first, err := f.engine.Search(ctx, "banish", SearchOptions{})
	require.NoError(t, err)
	require.Equal(t, []string{"4"}, ids(first))

	require.NoError(t, f.engine.BuildIndex(ctx, []*catalog.Tune{
		{ID: "9", Title: "Banish Misfortune No. 2", Type: catalog.TypeJig, SearchText: "banish misfortune no. 2"},
	}))

	second, err := f.engine.Search(ctx, "banish", SearchOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"9"}, ids(second))
}

func TestStats(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	require.NoError(t, f.engine.RebuildIndex(ctx))

	stats, err := f.engine.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Counts[catalog.KindTunes])
	assert.True(t, stats.IndexBuilt)
	assert.Equal(t, 4, stats.IndexSize)
}
