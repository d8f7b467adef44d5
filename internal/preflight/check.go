package preflight

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tunebook/tunebook/internal/daemon"
	tberrors "github.com/tunebook/tunebook/internal/errors"
	"github.com/tunebook/tunebook/internal/store"
	"github.com/tunebook/tunebook/internal/watcher"
)

// CheckStatus represents the result of a preflight check.
type CheckStatus int

const (
	// StatusPass indicates the check passed.
	StatusPass CheckStatus = iota
	// StatusWarn indicates a non-critical problem.
	StatusWarn
	// StatusFail indicates the check failed.
	StatusFail
)

// String returns the string representation of a CheckStatus.
func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// MarshalText renders the status by name in JSON.
func (s CheckStatus) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(s.String())), nil
}

// CheckResult holds the result of a single check.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Required bool        `json:"required"`
}

// IsCritical returns true if this is a required check that failed.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Target describes the installation to check.
type Target struct {
	// DataDir holds the catalog. Empty means in-memory; the storage checks
	// are skipped.
	DataDir string

	SocketPath string
	Timeout    time.Duration

	// Sources are the configured default sources.
	Sources []string

	// Concurrency is the number of parallel source fetches during ingest.
	Concurrency int
}

// Checker performs preflight checks.
type Checker struct {
	verbose bool
	output  io.Writer
}

// Option configures a Checker.
type Option func(*Checker)

// WithVerbose prints check details.
func WithVerbose(verbose bool) Option {
	return func(c *Checker) {
		c.verbose = verbose
	}
}

// WithOutput sets the output writer.
func WithOutput(w io.Writer) Option {
	return func(c *Checker) {
		c.output = w
	}
}

// New creates a new Checker with the given options.
func New(opts ...Option) *Checker {
	c := &Checker{
		output: os.Stdout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunAll runs every check against t.
func (c *Checker) RunAll(_ context.Context, t Target) []CheckResult {
	var results []CheckResult

	if t.DataDir != "" {
		results = append(results, c.CheckDataDir(t.DataDir))
		results = append(results, c.CheckDiskSpace(t.DataDir))
	}
	results = append(results, c.CheckFileDescriptors(t.Concurrency))
	results = append(results, c.CheckSQLite())
	if t.DataDir != "" {
		results = append(results, c.CheckLock(t.DataDir, t.SocketPath, t.Timeout))
	}
	results = append(results, c.CheckDaemon(t.SocketPath, t.Timeout))
	results = append(results, c.CheckSources(t.Sources))

	return results
}

// HasCriticalFailures returns true if any required check failed.
func (c *Checker) HasCriticalFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// SummaryStatus returns "failed", "ready_with_warnings" or "ready".
func (c *Checker) SummaryStatus(results []CheckResult) string {
	hasWarnings := false
	for _, r := range results {
		if r.IsCritical() {
			return "failed"
		}
		if r.Status == StatusWarn || r.Status == StatusFail {
			hasWarnings = true
		}
	}
	if hasWarnings {
		return "ready_with_warnings"
	}
	return "ready"
}

// PrintResults prints check results to the configured output.
func (c *Checker) PrintResults(results []CheckResult) {
	_, _ = fmt.Fprintln(c.output, "tunebook doctor")
	_, _ = fmt.Fprintln(c.output, "===============")
	_, _ = fmt.Fprintln(c.output)

	for _, r := range results {
		_, _ = fmt.Fprintf(c.output, "[%s] %s: %s\n", r.Status, r.Name, r.Message)
		if r.Details != "" && (c.verbose || r.Status != StatusPass) {
			_, _ = fmt.Fprintf(c.output, "       %s\n", r.Details)
		}
	}

	_, _ = fmt.Fprintln(c.output)
	_, _ = fmt.Fprintf(c.output, "Status: %s\n", strings.ToUpper(c.SummaryStatus(results)))
}

// CheckDataDir checks that the data directory exists, or can be created,
// and is writable.
func (c *Checker) CheckDataDir(dir string) CheckResult {
	result := CheckResult{
		Name:     "data_dir",
		Required: true,
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot create %s: %v", dir, err)
		return result
	}

	probe := filepath.Join(dir, ".tunebook-preflight")
	f, err := os.Create(probe)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("not writable: %v", err)
		return result
	}
	_ = f.Close()
	_ = os.Remove(probe)

	result.Status = StatusPass
	result.Message = dir
	return result
}

// CheckSQLite opens and closes an in-memory catalog.
func (c *Checker) CheckSQLite() CheckResult {
	result := CheckResult{
		Name:     "sqlite",
		Required: true,
	}

	st, err := store.NewSQLiteStore("")
	if err != nil {
		result.Status = StatusFail
		result.Message = "cannot open a SQLite database"
		result.Details = err.Error()
		return result
	}
	_ = st.Close()

	result.Status = StatusPass
	result.Message = "OK"
	return result
}

// CheckLock reports whether another process holds the catalog. A lock
// held by a running daemon is expected.
func (c *Checker) CheckLock(dir, socketPath string, timeout time.Duration) CheckResult {
	result := CheckResult{
		Name: "catalog_lock",
	}

	lock := store.NewDataDirLock(dir)
	err := lock.Acquire()
	if err == nil {
		_ = lock.Release()
		result.Status = StatusPass
		result.Message = "free"
		return result
	}

	if !errors.Is(err, tberrors.ErrStoreLocked) {
		result.Status = StatusFail
		result.Message = "cannot take the lock"
		result.Details = err.Error()
		return result
	}

	if socketPath != "" && daemon.IsRunning(socketPath, timeout) {
		result.Status = StatusPass
		result.Message = "held by the daemon"
		return result
	}
	result.Status = StatusWarn
	result.Message = "held by another process"
	result.Details = "Commands will fail until it exits: " + lock.Path()
	return result
}

// CheckDaemon reports whether the daemon answers. Not running is fine.
func (c *Checker) CheckDaemon(socketPath string, timeout time.Duration) CheckResult {
	result := CheckResult{
		Name:   "daemon",
		Status: StatusPass,
	}
	if socketPath != "" && daemon.IsRunning(socketPath, timeout) {
		result.Message = "running at " + socketPath
		return result
	}
	result.Message = "not running; commands open the catalog in-process"
	result.Details = "Start it with 'tunebook serve --background'"
	return result
}

// CheckSources checks that the configured local sources exist.
func (c *Checker) CheckSources(sources []string) CheckResult {
	result := CheckResult{
		Name: "sources",
	}
	if len(sources) == 0 {
		result.Status = StatusPass
		result.Message = "none configured"
		return result
	}

	var missing []string
	for _, src := range sources {
		if _, _, err := watcher.ResolveTargets([]string{src}); err != nil {
			missing = append(missing, src)
		}
	}
	if len(missing) > 0 {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("%d of %d not found", len(missing), len(sources))
		result.Details = strings.Join(missing, ", ")
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%d configured", len(sources))
	return result
}
