package integration

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tunebook/tunebook/internal/catalog"
	"github.com/tunebook/tunebook/internal/config"
	"github.com/tunebook/tunebook/internal/engine"
	"github.com/tunebook/tunebook/internal/ingest"
	"github.com/tunebook/tunebook/internal/search"
)

func TestConfig_DrivesPersistentCatalog(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	// Given: a project config naming a data directory and a source
	project := t.TempDir()
	dataDir := filepath.Join(t.TempDir(), "data")
	src := writeSource(t)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("TUNEBOOK_DATA_DIR", "")
	t.Setenv("TUNEBOOK_SOURCES", "")
	writeFile(t, filepath.Join(project, config.ProjectConfigName), fmt.Sprintf(
		"data:\n  dir: %s\n  sources:\n    - %s\nsearch:\n  max_edits: 1\n", dataDir, src))

	cfg, err := config.Load(project)
	require.NoError(t, err)
	assert.Equal(t, dataDir, cfg.Data.Dir)
	assert.Equal(t, []string{src}, cfg.Data.Sources)
	assert.Equal(t, 1, cfg.EngineConfig().Fuzzy.MaxEdits)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// When: the configured sources are ingested and the engine closed
	eng := engine.New(cfg.EngineConfig())
	require.NoError(t, eng.Init(ctx))
	_, err = eng.Ingest(ctx, ingest.Input{URLs: cfg.Data.Sources})
	require.NoError(t, err)
	require.NoError(t, eng.Shutdown())

	// Then: a new engine on the same config sees the catalog
	eng = engine.New(cfg.EngineConfig())
	require.NoError(t, eng.Init(ctx))
	defer func() { _ = eng.Shutdown() }()

	stats, err := eng.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Counts[catalog.KindTunes])

	tunes, err := eng.SearchTunes(ctx, "kesh jig", search.SearchOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, tunes)
	assert.Equal(t, "1", tunes[0].ID)
}

func TestConfig_EnvironmentOverridesProject(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	project := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	writeFile(t, filepath.Join(project, config.ProjectConfigName), "search:\n  default_limit: 20\n")
	t.Setenv("TUNEBOOK_SEARCH_LIMIT", "5")

	cfg, err := config.Load(project)

	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Search.DefaultLimit)
}
