package watcher

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tunebook/tunebook/internal/catalog"
	tberrors "github.com/tunebook/tunebook/internal/errors"
)

// Operation is a file system operation type.
type Operation int

const (
	// OpCreate indicates a file appeared.
	OpCreate Operation = iota
	// OpModify indicates a file was written.
	OpModify
	// OpDelete indicates a file was removed.
	OpDelete
	// OpRename indicates a file was moved away.
	OpRename
)

// String returns a human-readable representation of the operation.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// FileEvent is a change to one watched file.
type FileEvent struct {
	// Path is the absolute path of the file.
	Path      string
	Operation Operation
	Timestamp time.Time
}

// Target is one local source being watched.
type Target struct {
	// Source is the location as configured, passed back to ingest.
	Source string
	// Path is the absolute file or directory path.
	Path  string
	IsDir bool
}

// Files returns the files whose changes concern the target.
func (t Target) Files() []string {
	if !t.IsDir {
		return []string{t.Path}
	}
	files := make([]string, 0, len(catalog.AllKinds))
	for _, kind := range catalog.AllKinds {
		files = append(files, filepath.Join(t.Path, catalog.DataFiles[kind]))
	}
	return files
}

// Owns reports whether a change to path concerns the target.
func (t Target) Owns(path string) bool {
	path = filepath.Clean(path)
	for _, f := range t.Files() {
		if f == path {
			return true
		}
	}
	return false
}

// ResolveTargets turns configured source locations into watch targets.
// Remote locations are returned in skipped; a missing local path is an
// error.
func ResolveTargets(sources []string) (targets []Target, skipped []string, err error) {
	for _, src := range sources {
		if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
			skipped = append(skipped, src)
			continue
		}
		path, err := filepath.Abs(strings.TrimPrefix(src, "file://"))
		if err != nil {
			return nil, nil, tberrors.ValidationError("invalid source path: "+src, err)
		}
		info, err := os.Stat(path)
		if err != nil {
			return nil, nil, tberrors.New(tberrors.ErrCodeSourceNotFound, "source not found: "+src, err)
		}
		targets = append(targets, Target{Source: src, Path: path, IsDir: info.IsDir()})
	}
	return targets, skipped, nil
}

// Options configures the watcher behavior.
type Options struct {
	// DebounceWindow is the quiet time before a batch is emitted.
	// Default: 500ms
	DebounceWindow time.Duration

	// PollInterval is the interval of the polling fallback.
	// Default: 5s
	PollInterval time.Duration

	// EventBufferSize is the number of batches buffered.
	// Default: 16
	EventBufferSize int

	// ForcePolling skips fsnotify.
	ForcePolling bool
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		DebounceWindow:  500 * time.Millisecond,
		PollInterval:    5 * time.Second,
		EventBufferSize: 16,
	}
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.DebounceWindow <= 0 {
		o.DebounceWindow = defaults.DebounceWindow
	}
	if o.PollInterval <= 0 {
		o.PollInterval = defaults.PollInterval
	}
	if o.EventBufferSize <= 0 {
		o.EventBufferSize = defaults.EventBufferSize
	}
	return o
}
