package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	tberrors "github.com/tunebook/tunebook/internal/errors"
)

// LockFileName is created inside the data directory.
const LockFileName = ".tunebook.lock"

// DataDirLock gives one engine exclusive ownership of a data directory
// across processes.
type DataDirLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewDataDirLock returns an unlocked lock for dir.
func NewDataDirLock(dir string) *DataDirLock {
	lockPath := filepath.Join(dir, LockFileName)
	return &DataDirLock{
		path:  lockPath,
		flock: flock.New(lockPath),
	}
}

// Acquire takes the lock without blocking. It fails with ErrStoreLocked
// when another process holds it.
func (l *DataDirLock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return tberrors.StoreError(tberrors.ErrCodeStoreOpen, "failed to create data directory", err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return tberrors.StoreError(tberrors.ErrCodeStoreOpen, "failed to acquire data directory lock", err)
	}
	if !acquired {
		return tberrors.New(tberrors.ErrCodeStoreLocked,
			fmt.Sprintf("data directory is in use (lock %s)", l.path), nil).
			WithSuggestion("stop the other tunebook process or use a separate data_dir")
	}

	l.locked = true
	return nil
}

// Release drops the lock. Safe to call more than once.
func (l *DataDirLock) Release() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Path returns the lock file path.
func (l *DataDirLock) Path() string {
	return l.path
}

// Locked reports whether this handle holds the lock.
func (l *DataDirLock) Locked() bool {
	return l.locked
}
