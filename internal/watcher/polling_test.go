package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startPoller(t *testing.T, files ...string) *PollingWatcher {
	t.Helper()
	p := NewPollingWatcher(20*time.Millisecond, files)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = p.Start(ctx) }()
	// Let the baseline settle
	time.Sleep(60 * time.Millisecond)
	return p
}

func nextEvent(t *testing.T, p *PollingWatcher) FileEvent {
	t.Helper()
	select {
	case e := <-p.Events():
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for polled event")
		return FileEvent{}
	}
}

func TestPollingWatcher_Lifecycle(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "tunes.json")
	p := startPoller(t, file)

	// When: the file appears
	require.NoError(t, os.WriteFile(file, []byte(`[]`), 0o644))
	e := nextEvent(t, p)
	assert.Equal(t, OpCreate, e.Operation)
	assert.Equal(t, file, e.Path)

	// When: it grows
	require.NoError(t, os.WriteFile(file, []byte(`[{"tune_id":"1"}]`), 0o644))
	assert.Equal(t, OpModify, nextEvent(t, p).Operation)

	// When: it is removed
	require.NoError(t, os.Remove(file))
	assert.Equal(t, OpDelete, nextEvent(t, p).Operation)

	require.NoError(t, p.Stop())
	require.NoError(t, p.Stop())
}

func TestPollingWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	p := startPoller(t, filepath.Join(dir, "tunes.json"))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	select {
	case e := <-p.Events():
		t.Fatalf("unexpected event %v", e)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestPollingWatcher_ContextCancel(t *testing.T) {
	p := NewPollingWatcher(10*time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- p.Start(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
	_, ok := <-p.Events()
	assert.False(t, ok)
}
