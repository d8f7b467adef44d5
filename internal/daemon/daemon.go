package daemon

import (
	"context"
	"errors"
	"log/slog"
	"syscall"
	"time"

	"github.com/tunebook/tunebook/internal/engine"
)

// Daemon runs a Server on the configured socket and records its PID.
type Daemon struct {
	cfg    Config
	server *Server
	pid    *PIDFile
}

// NewDaemon validates cfg and prepares a daemon serving eng.
func NewDaemon(cfg Config, eng *engine.Engine, opts ...ServerOption) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Daemon{
		cfg:    cfg,
		server: NewServer(eng, opts...),
		pid:    NewPIDFile(cfg.PIDPath),
	}, nil
}

// Connect returns a client served by the daemon's actor without going
// through the socket. Run must be running, or be started, for calls to be
// answered.
func (d *Daemon) Connect(ctx context.Context) *Client {
	return d.server.Connect(ctx)
}

// Run serves until ctx is done and the actor has finished its last
// request. It fails if another daemon holds the PID file.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.cfg.EnsureDir(); err != nil {
		return err
	}
	if err := d.pid.Claim(); err != nil {
		return err
	}
	defer func() {
		if err := d.pid.Remove(); err != nil {
			slog.Warn("pid_file_remove_failed", slog.String("error", err.Error()))
		}
	}()

	slog.Info("daemon_started",
		slog.String("socket", d.cfg.SocketPath),
		slog.String("pid_file", d.cfg.PIDPath))

	err := d.server.ListenAndServe(ctx, d.cfg.SocketPath)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	slog.Info("daemon_stopped")
	return err
}

// Stop signals a running daemon and waits up to the grace period for its
// PID file to disappear.
func Stop(cfg Config) error {
	pid := NewPIDFile(cfg.PIDPath)
	if err := pid.Signal(syscall.SIGTERM); err != nil {
		return err
	}

	deadline := time.Now().Add(cfg.ShutdownGracePeriod)
	for time.Now().Before(deadline) {
		if !pid.IsRunning() {
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return pid.Signal(syscall.SIGKILL)
}
