package ui

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tunebook/tunebook/internal/catalog"
)

func TestPlainRenderer_FullRun(t *testing.T) {
	// Given: a plain renderer
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))
	require.NoError(t, r.Start(context.Background()))

	// When: driving it through an ingest
	r.UpdateProgress(ProgressEvent{Stage: StageConnecting, Message: "using daemon"})
	r.UpdateProgress(ProgressEvent{Stage: StageIngesting})
	r.AddError(ErrorEvent{Source: "aliases.json", Err: errors.New("skipped 2 records"), IsWarn: true})
	r.AddError(ErrorEvent{Err: errors.New("boom")})
	r.Complete(CompletionStats{
		Counts:   map[catalog.Kind]int{catalog.KindTunes: 1200, catalog.KindAliases: 3},
		Warnings: 1,
		Duration: 1500 * time.Millisecond,
	})
	require.NoError(t, r.Stop())

	// Then: one line per event, no escape codes
	out := buf.String()
	assert.Contains(t, out, "[CONN] using daemon")
	assert.NotContains(t, out, "[INGEST]", "events without a message print nothing")
	assert.Contains(t, out, "WARN: aliases.json: skipped 2 records")
	assert.Contains(t, out, "ERROR: boom")
	assert.Contains(t, out, "Complete: 1,203 records in 1.5s (1 warnings)")
	assert.Contains(t, out, "tunes:")
	assert.Contains(t, out, "1,200")
	assert.NotContains(t, out, "recordings:", "absent kinds are skipped")
	assert.NotContains(t, out, "\x1b[")
	assert.Equal(t, StageComplete, r.stage)
	assert.Len(t, r.errors, 2)
}
