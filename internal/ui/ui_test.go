package ui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tunebook/tunebook/internal/catalog"
)

func TestStage_StringAndIcon(t *testing.T) {
	tests := []struct {
		stage Stage
		name  string
		icon  string
	}{
		{StageConnecting, "Connecting", "CONN"},
		{StageIngesting, "Ingesting", "INGEST"},
		{StageComplete, "Complete", "DONE"},
		{Stage(42), "Unknown", "???"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.stage.String())
			assert.Equal(t, tt.icon, tt.stage.Icon())
		})
	}
}

func TestIsTTY_NonTerminals(t *testing.T) {
	assert.False(t, IsTTY(nil))
	assert.False(t, IsTTY(&bytes.Buffer{}))
}

func TestNewConfig_Options(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	called := false

	cfg := NewConfig(&bytes.Buffer{},
		WithForcePlain(true),
		WithTitle("refresh"),
		WithInterrupt(func() { called = true }))

	assert.True(t, cfg.ForcePlain)
	assert.True(t, cfg.NoColor, "NO_COLOR forces plain colors")
	assert.Equal(t, "refresh", cfg.Title)
	cfg.OnInterrupt()
	assert.True(t, called)
}

func TestNewRenderer_NonTTY_ReturnsPlain(t *testing.T) {
	r := NewRenderer(NewConfig(&bytes.Buffer{}))

	_, ok := r.(*PlainRenderer)
	assert.True(t, ok)
}

func TestNewTUIRenderer_NonTTY_Fails(t *testing.T) {
	r, err := NewTUIRenderer(NewConfig(&bytes.Buffer{}))

	assert.Error(t, err)
	assert.Nil(t, r)
}

func TestCompletionStats_Total(t *testing.T) {
	stats := CompletionStats{Counts: map[catalog.Kind]int{
		catalog.KindTunes:   3,
		catalog.KindAliases: 4,
	}}
	assert.Equal(t, 7, stats.Total())
	assert.Equal(t, 0, CompletionStats{}.Total())
}

func TestDetectCI(t *testing.T) {
	t.Setenv("CI", "true")
	assert.True(t, DetectCI())
}
