package cmd

import (
	"context"
	"errors"
	"log/slog"

	"github.com/tunebook/tunebook/internal/config"
	"github.com/tunebook/tunebook/internal/daemon"
	"github.com/tunebook/tunebook/internal/engine"
	tberrors "github.com/tunebook/tunebook/internal/errors"
)

// Session modes.
const (
	modeDaemon    = "daemon"
	modeInProcess = "in-process"
)

// session is a client of the catalog engine, either the daemon's or one
// opened in this process.
type session struct {
	*daemon.Client

	Mode   string
	cfg    *config.Config
	engine *engine.Engine
	server *daemon.Server
	cancel context.CancelFunc
}

// openSession connects to the daemon when one answers on the configured
// socket and otherwise starts an in-process engine. The returned session
// is initialized.
func openSession(ctx context.Context, cfg *config.Config) (*session, error) {
	dcfg := cfg.DaemonConfig()

	if daemon.IsRunning(dcfg.SocketPath, dcfg.Timeout) {
		client, err := daemon.Dial(ctx, dcfg.SocketPath, dcfg.Timeout)
		if err == nil {
			s := &session{Client: client, Mode: modeDaemon, cfg: cfg}
			if err := s.Init(ctx); err != nil {
				_ = client.Close()
				return nil, err
			}
			slog.Debug("Connected to daemon", slog.String("socket", dcfg.SocketPath))
			return s, nil
		}
		slog.Debug("Daemon dial failed, opening catalog in-process", slog.String("error", err.Error()))
	}

	eng := engine.New(cfg.EngineConfig())
	srv := daemon.NewServer(eng)
	serveCtx, cancel := context.WithCancel(ctx)
	s := &session{
		Client: srv.Connect(serveCtx),
		Mode:   modeInProcess,
		cfg:    cfg,
		engine: eng,
		server: srv,
		cancel: cancel,
	}
	if err := s.Init(ctx); err != nil {
		_ = s.Close()
		if errors.Is(err, tberrors.ErrStoreLocked) {
			return nil, tberrors.New(tberrors.ErrCodeStoreLocked, "the catalog is in use by another process", err).
				WithSuggestion("Stop the other tunebook process, or start the daemon with 'tunebook serve'.")
		}
		return nil, err
	}
	slog.Debug("Opened catalog in-process", slog.String("data_dir", cfg.Data.Dir))
	return s, nil
}

// Close disconnects the client and shuts down an in-process engine once
// its actor has finished any request still running.
func (s *session) Close() error {
	err := s.Client.Close()
	if s.cancel != nil {
		s.cancel()
	}
	if s.server != nil {
		s.server.Wait()
	}
	if s.engine != nil {
		if serr := s.engine.Shutdown(); serr != nil && err == nil {
			err = serr
		}
	}
	return err
}

// withSession loads the configuration, opens a session and runs fn.
func withSession(ctx context.Context, fn func(ctx context.Context, s *session) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	return fn(ctx, s)
}
