package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher emits debounced batches of changes to its targets' files. It
// uses fsnotify on the containing directories and falls back to polling.
type Watcher struct {
	targets   []Target
	opts      Options
	fsWatcher *fsnotify.Watcher
	poller    *PollingWatcher
	debouncer *Debouncer

	mu             sync.RWMutex
	stopped        bool
	events         chan []FileEvent
	errors         chan error
	stopCh         chan struct{}
	droppedBatches atomic.Uint64
}

// New creates a watcher over targets.
func New(targets []Target, opts Options) (*Watcher, error) {
	if len(targets) == 0 {
		return nil, fmt.Errorf("no local sources to watch")
	}
	opts = opts.WithDefaults()

	w := &Watcher{
		targets:   targets,
		opts:      opts,
		debouncer: NewDebouncer(opts.DebounceWindow),
		events:    make(chan []FileEvent, opts.EventBufferSize),
		errors:    make(chan error, 10),
		stopCh:    make(chan struct{}),
	}

	if !opts.ForcePolling {
		if fsw, err := fsnotify.NewWatcher(); err == nil {
			w.fsWatcher = fsw
		} else {
			slog.Warn("fsnotify unavailable, polling instead", slog.String("error", err.Error()))
		}
	}
	if w.fsWatcher == nil {
		w.poller = NewPollingWatcher(opts.PollInterval, w.files())
	}
	return w, nil
}

// Targets returns the watched targets.
func (w *Watcher) Targets() []Target {
	return w.targets
}

// Mode returns "fsnotify" or "polling".
func (w *Watcher) Mode() string {
	if w.fsWatcher != nil {
		return "fsnotify"
	}
	return "polling"
}

// Start watches until Stop is called or ctx is done.
func (w *Watcher) Start(ctx context.Context) error {
	go w.forward(ctx)

	if w.fsWatcher == nil {
		go w.forwardPolled(ctx)
		return w.poller.Start(ctx)
	}

	for _, dir := range w.dirs() {
		if err := w.fsWatcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.emitError(err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	path := filepath.Clean(event.Name)
	if !w.owned(path) {
		return
	}

	var op Operation
	switch {
	case event.Has(fsnotify.Create):
		op = OpCreate
	case event.Has(fsnotify.Write):
		op = OpModify
	case event.Has(fsnotify.Remove):
		op = OpDelete
	case event.Has(fsnotify.Rename):
		op = OpRename
	default:
		return
	}
	w.debouncer.Add(FileEvent{Path: path, Operation: op, Timestamp: time.Now()})
}

func (w *Watcher) owned(path string) bool {
	for _, t := range w.targets {
		if t.Owns(path) {
			return true
		}
	}
	return false
}

// files returns every file of interest, deduplicated.
func (w *Watcher) files() []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range w.targets {
		for _, f := range t.Files() {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	return out
}

// dirs returns the directories to register with fsnotify. A file target
// is watched through its parent so replacing the file is seen.
func (w *Watcher) dirs() []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range w.targets {
		dir := t.Path
		if !t.IsDir {
			dir = filepath.Dir(t.Path)
		}
		if !seen[dir] {
			seen[dir] = true
			out = append(out, dir)
		}
	}
	return out
}

func (w *Watcher) forwardPolled(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.poller.Events():
			if !ok {
				return
			}
			w.debouncer.Add(event)
		}
	}
}

func (w *Watcher) forward(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case batch, ok := <-w.debouncer.Output():
			if !ok {
				return
			}
			w.emit(batch)
		}
	}
}

func (w *Watcher) emit(batch []FileEvent) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return
	}
	select {
	case w.events <- batch:
	default:
		count := w.droppedBatches.Add(1)
		slog.Warn("event buffer full, dropping batch",
			slog.Int("batch_size", len(batch)),
			slog.Uint64("total_dropped_batches", count))
	}
}

func (w *Watcher) emitError(err error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return
	}
	select {
	case w.errors <- err:
	default:
	}
}

// DroppedBatches returns the number of batches dropped on overflow.
func (w *Watcher) DroppedBatches() uint64 {
	return w.droppedBatches.Load()
}

// Events returns the channel of batches. It is closed by Stop.
func (w *Watcher) Events() <-chan []FileEvent {
	return w.events
}

// Errors returns non-fatal watcher errors. It is closed by Stop.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Stop releases resources and closes the channels. Safe to call more
// than once.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)

	w.debouncer.Stop()
	if w.fsWatcher != nil {
		_ = w.fsWatcher.Close()
	}
	if w.poller != nil {
		_ = w.poller.Stop()
	}

	close(w.events)
	close(w.errors)
	return nil
}
