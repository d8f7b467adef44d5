package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriter_Success(t *testing.T) {
	// Given: a writer over a buffer
	buf := &bytes.Buffer{}
	w := New(buf, false)

	// When: printing a success message
	w.Successf("Created %s", "config.yaml")

	// Then: the line has a check mark and no escapes, since a buffer is not a terminal
	assert.Equal(t, "✓ Created config.yaml\n", buf.String())
}

func TestWriter_Warning(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf, true)

	w.Warningf("Daemon is %s", "not running")

	assert.Equal(t, "! Daemon is not running\n", buf.String())
}

func TestWriter_FieldAndHint(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf, true)

	w.Field("Location", "/home/me/.config/tunebook/config.yaml")
	w.Newline()
	w.Hint("Run 'tunebook config show' to verify.")

	assert.Equal(t,
		"  Location: /home/me/.config/tunebook/config.yaml\n\n  Run 'tunebook config show' to verify.\n",
		buf.String())
}
