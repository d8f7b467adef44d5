package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tberrors "github.com/tunebook/tunebook/internal/errors"
)

// isolate points the user config at an empty directory.
func isolate(t *testing.T) string {
	t.Helper()
	configDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configDir)
	return configDir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	// Given: no configuration file exists
	cfg := NewConfig()

	// Then: defaults are usable as-is
	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, "tunebook", cfg.Data.DBName)
	assert.Equal(t, "data", filepath.Base(cfg.Data.Dir))
	assert.InDelta(t, 0.35, cfg.Search.Threshold, 1e-9)
	assert.Equal(t, 2, cfg.Search.MaxEdits)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, time.Minute, cfg.FetchTimeout())
	assert.Equal(t, 500*time.Millisecond, cfg.WatchDebounce())
	require.NoError(t, cfg.Validate())
}

func TestLoad_NoConfigFile_ReturnsDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(t.TempDir())

	require.NoError(t, err)
	assert.Equal(t, NewConfig().Search, cfg.Search)
}

func TestLoad_ProjectConfigOverridesUserConfig(t *testing.T) {
	// Given: both user and project configs exist
	configDir := isolate(t)
	projectDir := t.TempDir()

	writeFile(t, filepath.Join(configDir, "tunebook", "config.yaml"), `
version: 1
search:
  cache_size: 10
  max_edits: 1
`)
	writeFile(t, filepath.Join(projectDir, ".tunebook.yaml"), `
search:
  max_edits: 0
data:
  sources:
    - https://example.com/tunes.json
`)

	// When: loading configuration
	cfg, err := Load(projectDir)

	// Then: project values win, user values fill the rest
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Search.CacheSize)
	assert.Equal(t, 1, cfg.Search.MaxEdits, "zero values do not override")
	assert.Equal(t, []string{"https://example.com/tunes.json"}, cfg.Data.Sources)
}

func TestLoad_YmlExtension_IsRecognized(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".tunebook.yml"), "server:\n  log_level: debug\n")

	cfg, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
}

func TestLoad_InvalidYaml_ReturnsError(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".tunebook.yaml"), "search:\n  cache_size: [not an int\n")

	_, err := Load(dir)

	require.Error(t, err)
	assert.Equal(t, tberrors.ErrCodeConfigInvalid, tberrors.GetCode(err))
}

func TestLoad_InvalidUserConfig_ReturnsError(t *testing.T) {
	configDir := isolate(t)
	writeFile(t, filepath.Join(configDir, "tunebook", "config.yaml"), "search: [\n")

	_, err := Load(t.TempDir())
	require.Error(t, err)
}

func TestLoad_EnvVarOverridesFiles(t *testing.T) {
	// Given: a project config and env overrides
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".tunebook.yaml"), "server:\n  log_level: debug\n")
	t.Setenv("TUNEBOOK_LOG_LEVEL", "warn")
	t.Setenv("TUNEBOOK_CACHE_SIZE", "7")
	t.Setenv("TUNEBOOK_FUZZY_THRESHOLD", "0.5")
	t.Setenv("TUNEBOOK_SOURCES", " ./data , https://example.com/sets.json,")
	t.Setenv("TUNEBOOK_IN_MEMORY", "true")

	// When: loading configuration
	cfg, err := Load(dir)

	// Then: environment wins
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Server.LogLevel)
	assert.Equal(t, 7, cfg.Search.CacheSize)
	assert.InDelta(t, 0.5, cfg.Search.Threshold, 1e-9)
	assert.Equal(t, []string{"./data", "https://example.com/sets.json"}, cfg.Data.Sources)
	assert.Empty(t, cfg.Data.Dir)
	assert.Empty(t, cfg.EngineConfig().DBPath())
}

func TestLoad_InvalidEnvVar_ReturnsError(t *testing.T) {
	isolate(t)
	t.Setenv("TUNEBOOK_CONCURRENCY", "many")

	_, err := Load(t.TempDir())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "TUNEBOOK_CONCURRENCY")
}

func TestLoad_DotEnvFillsUnsetVariables(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	require.NoError(t, os.Unsetenv("TUNEBOOK_METRICS_ADDR"))
	t.Cleanup(func() { _ = os.Unsetenv("TUNEBOOK_METRICS_ADDR") })
	t.Setenv("TUNEBOOK_WATCH_DEBOUNCE", "2s")

	writeFile(t, filepath.Join(dir, ".env"),
		"TUNEBOOK_METRICS_ADDR=127.0.0.1:9464\nTUNEBOOK_WATCH_DEBOUNCE=9s\n")

	cfg, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9464", cfg.Server.MetricsAddr)
	assert.Equal(t, 2*time.Second, cfg.WatchDebounce(), "existing variables are not overridden")
}

func TestValidate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"threshold zero", func(c *Config) { c.Search.Threshold = 0 }},
		{"threshold above one", func(c *Config) { c.Search.Threshold = 1.5 }},
		{"max edits", func(c *Config) { c.Search.MaxEdits = 3 }},
		{"min token length", func(c *Config) { c.Search.MinTokenLength = 0 }},
		{"negative cache", func(c *Config) { c.Search.CacheSize = -1 }},
		{"concurrency", func(c *Config) { c.Data.Concurrency = 0 }},
		{"fetch timeout", func(c *Config) { c.Fetch.Timeout = "soon" }},
		{"debounce", func(c *Config) { c.Server.WatchDebounce = "-1s" }},
		{"log level", func(c *Config) { c.Server.LogLevel = "trace" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, tberrors.ErrCodeConfigInvalid, tberrors.GetCode(err))
		})
	}
}

func TestEngineAndDaemonConfig(t *testing.T) {
	cfg := NewConfig()
	cfg.Data.Dir = "/var/lib/tunebook"
	cfg.Search.MaxEdits = 1
	cfg.Fetch.Timeout = "5s"
	cfg.Server.SocketPath = "/run/tunebook.sock"
	cfg.Server.Timeout = "3s"

	ec := cfg.EngineConfig()
	assert.Equal(t, "/var/lib/tunebook/tunebook.db", ec.DBPath())
	assert.Equal(t, 1, ec.Fuzzy.MaxEdits)
	assert.Equal(t, 5*time.Second, ec.Fetch.Timeout)

	dc := cfg.DaemonConfig()
	assert.Equal(t, "/run/tunebook.sock", dc.SocketPath)
	assert.Equal(t, 3*time.Second, dc.Timeout)
	require.NoError(t, dc.Validate())
}

func TestGetUserConfigPath_RespectsXDGConfigHome(t *testing.T) {
	configDir := isolate(t)

	assert.Equal(t, filepath.Join(configDir, "tunebook", "config.yaml"), GetUserConfigPath())
	assert.Equal(t, filepath.Join(configDir, "tunebook"), GetUserConfigDir())
	assert.False(t, UserConfigExists())

	cfg, err := LoadUserConfig()
	require.NoError(t, err)
	assert.Nil(t, cfg)
}
