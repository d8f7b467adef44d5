package integration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const kesh = `[
  {"tune_id":"1","setting_id":"1","name":"The Kesh","type":"jig","meter":"6/8","mode":"Gmajor","abc":"|:GAG GAB|ABA ABd:|"},
  {"tune_id":"2","setting_id":"2","name":"Drowsy Maggie","type":"reel","meter":"4/4","mode":"Edorian","abc":"|:E2BE dEBE|E2BE AFDF:|"}
]`

const keshAliases = `[{"tune_id":"1","alias":"Kesh Jig","name":"The Kesh"}]`

const keshRecordings = `[{"id":"10","artist":"The Bothy Band","recording":"Old Hag You Have Killed Me","track":"3","number":"1","tune":"The Kesh","tune_id":"1"}]`

// writeSource creates a data directory holding tunes, aliases and
// recordings and returns its path.
func writeSource(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "thesession")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	writeFile(t, filepath.Join(dir, "tunes.json"), kesh)
	writeFile(t, filepath.Join(dir, "aliases.json"), keshAliases)
	writeFile(t, filepath.Join(dir, "recordings.json"), keshRecordings)
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// shortSocketDir returns a directory whose paths fit the Unix socket
// length limit; t.TempDir can exceed it on macOS.
func shortSocketDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "tb")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return dir
}
