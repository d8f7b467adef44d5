package cmd

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestConfigCmd_InitThenForce(t *testing.T) {
	dir := isolate(t)
	want := filepath.Join(dir, "xdg", "tunebook", "config.yaml")

	// Given: no user config
	out, err := run(t, dir, "config", "path")
	require.NoError(t, err)
	assert.Equal(t, want, strings.TrimSpace(out))

	// When: creating it
	out, err = run(t, dir, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Created user configuration")
	assert.FileExists(t, want)

	// Then: a second init needs --force, which keeps a backup
	_, err = run(t, dir, "config", "init")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	out, err = run(t, dir, "config", "init", "--force")
	require.NoError(t, err)
	assert.Contains(t, out, "Backup:")

	out, err = run(t, dir, "config", "show", "--backups")
	require.NoError(t, err)
	assert.Contains(t, out, "config.yaml.bak.")
}

func TestConfigCmd_ShowAppliesEnvironment(t *testing.T) {
	dir := isolate(t)
	t.Setenv("TUNEBOOK_SEARCH_LIMIT", "7")

	out, err := run(t, dir, "config", "show")
	require.NoError(t, err)
	var asYAML map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &asYAML))
	assert.Contains(t, asYAML, "search")

	out, err = run(t, dir, "config", "show", "--json")
	require.NoError(t, err)
	var cfg struct {
		Search struct {
			DefaultLimit int `json:"default_limit"`
		} `json:"search"`
		Data struct {
			Dir string `json:"dir"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, 7, cfg.Search.DefaultLimit)
	assert.Equal(t, filepath.Join(dir, "data"), cfg.Data.Dir)
}
