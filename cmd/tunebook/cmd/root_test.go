package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tunebook/tunebook/internal/catalog"
	tberrors "github.com/tunebook/tunebook/internal/errors"
)

const testTunes = `[
  {"tune_id":"1","setting_id":"1","name":"The Kesh","type":"jig","meter":"6/8","mode":"Gmajor","abc":"|:GAG GAB|ABA ABd:|"},
  {"tune_id":"2","setting_id":"2","name":"Drowsy Maggie","type":"reel","meter":"4/4","mode":"Edorian","abc":"|:E2BE dEBE|E2BE AFDF:|"}
]`

const testAliases = `[{"tune_id":"1","alias":"Kesh Jig","name":"The Kesh"}]`

// isolate points configuration, data and socket at temporary locations so
// commands run against a private in-process catalog.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	t.Setenv("TUNEBOOK_DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("TUNEBOOK_SOCKET", filepath.Join(dir, "no-daemon.sock"))
	t.Setenv("NO_COLOR", "1")
	return dir
}

// run executes the root command with args and returns stdout.
func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(append([]string{"--config", dir}, args...))
	err := root.Execute()
	return out.String(), err
}

func writeDataDir(t *testing.T, dir string) string {
	t.Helper()
	src := filepath.Join(dir, "src")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "tunes.json"), []byte(testTunes), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "aliases.json"), []byte(testAliases), 0o644))
	return src
}

func TestRootCmd_RegistersSubcommands(t *testing.T) {
	root := NewRootCmd()

	names := make(map[string]bool)
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}

	for _, want := range []string{
		"ingest", "search", "list", "get", "recordings", "status", "clear",
		"serve", "mcp", "doctor", "logs", "config", "version",
	} {
		assert.True(t, names[want], "missing subcommand %q", want)
	}
}

func TestRootCmd_PersistentFlags(t *testing.T) {
	root := NewRootCmd()

	for _, name := range []string{"debug", "config", "no-color", "profile-cpu", "profile-mem", "profile-trace"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(name), "missing flag --%s", name)
	}
	assert.True(t, root.SilenceUsage)
	assert.True(t, root.SilenceErrors)
}

func TestCatalogCommands_EndToEnd(t *testing.T) {
	dir := isolate(t)
	src := writeDataDir(t, dir)

	// Given: a catalog ingested from a data directory
	out, err := run(t, dir, "ingest", "--json", src)
	require.NoError(t, err)

	var result struct {
		Counts   map[string]int `json:"counts"`
		Warnings []string       `json:"warnings"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 2, result.Counts["tunes"])
	assert.Equal(t, 1, result.Counts["aliases"])
	assert.NotEmpty(t, result.Warnings, "missing popularity, recordings and sets files")

	// When: searching with a typo
	out, err = run(t, dir, "search", "--json", "drowsy", "magie")
	require.NoError(t, err)

	// Then: the tune is found
	var tunes []catalog.Tune
	require.NoError(t, json.Unmarshal([]byte(out), &tunes))
	require.NotEmpty(t, tunes)
	assert.Equal(t, "2", tunes[0].ID)

	// And: search by alias finds the tune it names
	out, err = run(t, dir, "search", "kesh", "jig")
	require.NoError(t, err)
	assert.Contains(t, out, "The Kesh")

	// And: get returns the ABC
	out, err = run(t, dir, "get", "1", "--abc")
	require.NoError(t, err)
	assert.Equal(t, "|:GAG GAB|ABA ABd:|", out)

	// And: list honors filters
	out, err = run(t, dir, "list", "--type", "reel", "--json")
	require.NoError(t, err)
	tunes = nil
	require.NoError(t, json.Unmarshal([]byte(out), &tunes))
	require.Len(t, tunes, 1)
	assert.Equal(t, "Drowsy Maggie", tunes[0].Title)
}

func TestGetCmd_UnknownTune(t *testing.T) {
	dir := isolate(t)

	_, err := run(t, dir, "get", "999")

	require.Error(t, err)
	assert.Equal(t, tberrors.CategoryValidation, tberrors.GetCategory(err))
	assert.Contains(t, err.Error(), "999")
}

func TestSearchCmd_JSONEmptyIsArray(t *testing.T) {
	dir := isolate(t)

	out, err := run(t, dir, "search", "--json", "nothing here")

	require.NoError(t, err)
	assert.Equal(t, "[]", strings.TrimSpace(out))
}

func TestListCmd_InvalidOrder(t *testing.T) {
	dir := isolate(t)

	_, err := run(t, dir, "list", "--order-by", "composer")

	require.Error(t, err)
	var tbErr *tberrors.TBError
	require.ErrorAs(t, err, &tbErr)
	assert.Equal(t, tberrors.ErrCodeInvalidOrder, tbErr.Code)
}

func TestClearCmd_RequiresConfirmation(t *testing.T) {
	dir := isolate(t)

	_, err := run(t, dir, "clear")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")

	out, err := run(t, dir, "clear", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "Catalog cleared (in-process)")
}

func TestStatusCmd_JSON(t *testing.T) {
	dir := isolate(t)
	src := writeDataDir(t, dir)
	_, err := run(t, dir, "ingest", "--json", src)
	require.NoError(t, err)

	out, err := run(t, dir, "stats", "--json")
	require.NoError(t, err)

	var info map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, modeInProcess, info["mode"])
}

func TestIngestCmd_NoSources(t *testing.T) {
	dir := isolate(t)

	_, err := run(t, dir, "ingest")

	require.Error(t, err)
	assert.Equal(t, tberrors.CategoryValidation, tberrors.GetCategory(err))
}

func TestRootCmd_ProfileFlags(t *testing.T) {
	dir := isolate(t)
	heap := filepath.Join(dir, "heap.prof")

	_, err := run(t, dir, "--profile-mem", heap, "version", "--short")
	require.NoError(t, err)

	info, err := os.Stat(heap)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestDoctorCmd_JSON(t *testing.T) {
	dir := isolate(t)

	out, err := run(t, dir, "doctor", "--json")
	require.NoError(t, err)

	var results []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	names := make([]string, 0, len(results))
	for _, r := range results {
		names = append(names, r["name"].(string))
	}
	assert.Contains(t, names, "data_dir")
	assert.Contains(t, names, "sqlite")
}
