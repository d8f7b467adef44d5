package daemon

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	tberrors "github.com/tunebook/tunebook/internal/errors"
)

// ErrPIDFileNotFound is returned when the PID file doesn't exist.
var ErrPIDFileNotFound = errors.New("PID file not found")

// PIDFile records the daemon's process ID.
type PIDFile struct {
	path string
}

// NewPIDFile creates a PIDFile for path.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{path: path}
}

// Path returns the PID file path.
func (p *PIDFile) Path() string {
	return p.path
}

// Claim writes the current PID unless a live process already holds the
// file. A file left by a dead process is overwritten.
func (p *PIDFile) Claim() error {
	if pid, err := p.Read(); err == nil && pid != os.Getpid() && processExists(pid) {
		return tberrors.New(tberrors.ErrCodeStoreLocked, "daemon already running", nil).
			WithDetail("pid", strconv.Itoa(pid)).
			WithSuggestion("Stop it with 'tunebook serve --stop'")
	}
	return p.Write()
}

// Write writes the current PID, creating the directory if needed.
func (p *PIDFile) Write() error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return tberrors.StoreError(tberrors.ErrCodeStoreWrite, "failed to create PID directory", err)
	}
	if err := os.WriteFile(p.path, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		return tberrors.StoreError(tberrors.ErrCodeStoreWrite, "failed to write PID file", err)
	}
	return nil
}

// Read returns the stored PID.
func (p *PIDFile) Read() (int, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrPIDFileNotFound
		}
		return 0, tberrors.StoreError(tberrors.ErrCodeStoreRead, "failed to read PID file", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, tberrors.StoreError(tberrors.ErrCodeStoreRead, "invalid PID in file", err)
	}
	return pid, nil
}

// Remove deletes the PID file. A missing file is not an error.
func (p *PIDFile) Remove() error {
	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return tberrors.StoreError(tberrors.ErrCodeStoreWrite, "failed to remove PID file", err)
	}
	return nil
}

// IsRunning reports whether the stored PID belongs to a live process.
func (p *PIDFile) IsRunning() bool {
	pid, err := p.Read()
	if err != nil {
		return false
	}
	return processExists(pid)
}

// Signal sends sig to the stored process.
func (p *PIDFile) Signal(sig syscall.Signal) error {
	pid, err := p.Read()
	if err != nil {
		return err
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return tberrors.InternalError("failed to find daemon process", err)
	}
	if err := process.Signal(sig); err != nil {
		return tberrors.InternalError("failed to signal daemon process", err).
			WithDetail("pid", strconv.Itoa(pid))
	}
	return nil
}

// processExists probes pid with signal 0.
func processExists(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
