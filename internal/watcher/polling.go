package watcher

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"
)

// PollingWatcher detects changes to a fixed set of files by comparing
// their size and modification time on every tick. Used where fsnotify is
// unavailable, such as some network mounts.
type PollingWatcher struct {
	interval time.Duration
	files    []string

	mu      sync.Mutex
	state   map[string]fileSnapshot
	events  chan FileEvent
	stopCh  chan struct{}
	stopped bool
}

type fileSnapshot struct {
	modTime time.Time
	size    int64
}

// NewPollingWatcher creates a poller over files.
func NewPollingWatcher(interval time.Duration, files []string) *PollingWatcher {
	return &PollingWatcher{
		interval: interval,
		files:    files,
		state:    make(map[string]fileSnapshot),
		events:   make(chan FileEvent, 100),
		stopCh:   make(chan struct{}),
	}
}

// Start records a baseline and polls until Stop or ctx is done.
func (p *PollingWatcher) Start(ctx context.Context) error {
	p.mu.Lock()
	p.state = p.snapshot()
	p.mu.Unlock()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = p.Stop()
			return ctx.Err()
		case <-p.stopCh:
			return nil
		case <-ticker.C:
			p.detectChanges()
		}
	}
}

// Stop stops polling and closes the event channel.
func (p *PollingWatcher) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return nil
	}
	p.stopped = true
	close(p.stopCh)
	close(p.events)
	return nil
}

// Events returns the channel of file events.
func (p *PollingWatcher) Events() <-chan FileEvent {
	return p.events
}

// snapshot stats every file; missing files are absent from the result.
func (p *PollingWatcher) snapshot() map[string]fileSnapshot {
	state := make(map[string]fileSnapshot, len(p.files))
	for _, f := range p.files {
		info, err := os.Stat(f)
		if err != nil || info.IsDir() {
			continue
		}
		state[f] = fileSnapshot{modTime: info.ModTime(), size: info.Size()}
	}
	return state
}

func (p *PollingWatcher) detectChanges() {
	p.mu.Lock()
	defer p.mu.Unlock()

	current := p.snapshot()
	now := time.Now()

	for _, f := range p.files {
		prev, had := p.state[f]
		cur, has := current[f]
		switch {
		case !had && has:
			p.emit(FileEvent{Path: f, Operation: OpCreate, Timestamp: now})
		case had && !has:
			p.emit(FileEvent{Path: f, Operation: OpDelete, Timestamp: now})
		case had && has && (prev.modTime != cur.modTime || prev.size != cur.size):
			p.emit(FileEvent{Path: f, Operation: OpModify, Timestamp: now})
		}
	}
	p.state = current
}

// emit must be called with the lock held.
func (p *PollingWatcher) emit(event FileEvent) {
	if p.stopped {
		return
	}
	select {
	case p.events <- event:
	default:
		slog.Warn("polling watcher buffer full, dropping event",
			slog.String("path", event.Path),
			slog.String("op", event.Operation.String()))
	}
}
