// Package daemon exposes the catalog engine through a message protocol.
//
// A Server owns one engine and serves any number of connections; a Client
// multiplexes concurrent calls over one connection. Connections are either
// an in-memory pipe (NewInProcess) or a Unix socket served by the
// background daemon (tunebook serve).
package daemon

import (
	"os"
	"path/filepath"
	"time"

	tberrors "github.com/tunebook/tunebook/internal/errors"
)

// Config holds configuration for the daemon service.
type Config struct {
	// SocketPath is the Unix domain socket path.
	// Default: ~/.tunebook/daemon.sock
	SocketPath string

	// PIDPath is the file path for storing the daemon's process ID.
	// Default: ~/.tunebook/daemon.pid
	PIDPath string

	// Timeout bounds dialing the daemon.
	// Default: 5s
	Timeout time.Duration

	// ShutdownGracePeriod is the time to wait for graceful shutdown.
	// Default: 10s
	ShutdownGracePeriod time.Duration
}

// DefaultConfig returns a Config rooted at ~/.tunebook.
func DefaultConfig() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	dir := filepath.Join(home, ".tunebook")

	return Config{
		SocketPath:          filepath.Join(dir, "daemon.sock"),
		PIDPath:             filepath.Join(dir, "daemon.pid"),
		Timeout:             5 * time.Second,
		ShutdownGracePeriod: 10 * time.Second,
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	switch {
	case c.SocketPath == "":
		return tberrors.ConfigError("daemon socket path cannot be empty", nil)
	case c.PIDPath == "":
		return tberrors.ConfigError("daemon PID path cannot be empty", nil)
	case c.Timeout <= 0:
		return tberrors.ConfigError("daemon timeout must be positive", nil)
	case c.ShutdownGracePeriod <= 0:
		return tberrors.ConfigError("daemon shutdown grace period must be positive", nil)
	}
	return nil
}

// EnsureDir creates the directories holding the socket and PID files.
func (c Config) EnsureDir() error {
	for _, dir := range []string{filepath.Dir(c.SocketPath), filepath.Dir(c.PIDPath)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return tberrors.StoreError(tberrors.ErrCodeStoreWrite, "failed to create daemon directory", err).
				WithDetail("dir", dir)
		}
	}
	return nil
}
