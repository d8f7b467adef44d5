// Package ui renders command output: ingest progress, tune tables and
// catalog status.
package ui

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/tunebook/tunebook/internal/catalog"
)

// Stage is a step of an ingest run as seen from the command line.
type Stage int

const (
	// StageConnecting covers reaching the daemon or starting an in-process engine.
	StageConnecting Stage = iota
	// StageIngesting covers fetch, normalize, persist and re-index.
	StageIngesting
	// StageComplete indicates the run finished.
	StageComplete
)

// String returns the human-readable stage name.
func (s Stage) String() string {
	switch s {
	case StageConnecting:
		return "Connecting"
	case StageIngesting:
		return "Ingesting"
	case StageComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// Icon returns the short stage tag for plain output.
func (s Stage) Icon() string {
	switch s {
	case StageConnecting:
		return "CONN"
	case StageIngesting:
		return "INGEST"
	case StageComplete:
		return "DONE"
	default:
		return "???"
	}
}

// ProgressEvent moves the display to a stage.
type ProgressEvent struct {
	Stage   Stage
	Message string
}

// ErrorEvent reports a problem with one source. Warnings do not fail the run.
type ErrorEvent struct {
	Source string
	Err    error
	IsWarn bool
}

// CompletionStats summarizes a finished ingest.
type CompletionStats struct {
	Counts   map[catalog.Kind]int
	Warnings int
	Duration time.Duration
}

// Total returns the number of records across all kinds.
func (s CompletionStats) Total() int {
	n := 0
	for _, c := range s.Counts {
		n += c
	}
	return n
}

// Renderer displays ingest progress.
type Renderer interface {
	Start(ctx context.Context) error
	UpdateProgress(event ProgressEvent)
	AddError(event ErrorEvent)
	Complete(stats CompletionStats)
	Stop() error
}

// Config configures a renderer.
type Config struct {
	Output     io.Writer
	ForcePlain bool
	NoColor    bool
	Title      string

	// OnInterrupt runs when the user presses ctrl+c inside the
	// interactive renderer, which holds the terminal in raw mode.
	OnInterrupt func()
}

// ConfigOption modifies a Config.
type ConfigOption func(*Config)

// WithForcePlain forces plain text output.
func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) {
		c.ForcePlain = force
	}
}

// WithNoColor disables color output.
func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) {
		c.NoColor = noColor
	}
}

// WithTitle sets the header shown by the interactive renderer.
func WithTitle(title string) ConfigOption {
	return func(c *Config) {
		c.Title = title
	}
}

// WithInterrupt sets the ctrl+c callback of the interactive renderer.
func WithInterrupt(fn func()) ConfigOption {
	return func(c *Config) {
		c.OnInterrupt = fn
	}
}

// NewConfig creates a Config for output.
func NewConfig(output io.Writer, opts ...ConfigOption) Config {
	cfg := Config{
		Output: output,
		Title:  "tunebook ingest",
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if DetectNoColor() {
		cfg.NoColor = true
	}
	return cfg
}

// NewRenderer returns the interactive renderer for terminals and the plain
// renderer for pipes, CI, or when plain output is forced.
func NewRenderer(cfg Config) Renderer {
	if cfg.ForcePlain || !IsTTY(cfg.Output) || DetectCI() {
		return NewPlainRenderer(cfg)
	}

	tui, err := NewTUIRenderer(cfg)
	if err != nil {
		return NewPlainRenderer(cfg)
	}
	return tui
}

// IsTTY checks if output is a terminal.
func IsTTY(w io.Writer) bool {
	if w == nil {
		return false
	}
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// DetectNoColor checks if NO_COLOR is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// DetectCI checks if running in a CI environment.
func DetectCI() bool {
	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"} {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}
