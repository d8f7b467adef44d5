package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/tunebook/tunebook/internal/engine"
	tberrors "github.com/tunebook/tunebook/internal/errors"
	"github.com/tunebook/tunebook/internal/metrics"
	"github.com/tunebook/tunebook/pkg/version"
)

// queueSize bounds requests waiting for the engine across all connections.
const queueSize = 64

// call is one request queued for the actor together with the session
// that receives its response.
type call struct {
	req     Request
	session *session
}

// session is the server side of one connection.
type session struct {
	conn *Conn
	out  chan Response
	done chan struct{}
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerMetrics reports per-method request counts and latencies.
func WithServerMetrics(m *metrics.Metrics) ServerOption {
	return func(s *Server) { s.metrics = m }
}

// Server exposes an engine to any number of connections. A single actor
// goroutine owns the engine and handles one request at a time; connections
// only queue requests and write responses.
type Server struct {
	engine  *engine.Engine
	metrics *metrics.Metrics
	queue   chan call

	startOnce sync.Once
	started   time.Time
	actorDone chan struct{}

	mu       sync.Mutex
	listener net.Listener
	shutdown bool
	wg       sync.WaitGroup
}

// NewServer creates a server for eng. Start or ListenAndServe runs it.
func NewServer(eng *engine.Engine, opts ...ServerOption) *Server {
	s := &Server{
		engine:    eng,
		queue:     make(chan call, queueSize),
		actorDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the actor goroutine. It stops when ctx is done. Calling
// Start again is a no-op.
func (s *Server) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		s.started = time.Now()
		go s.run(ctx)
	})
}

// Wait blocks until the actor goroutine has returned, including any
// request it was handling. A server that was never started counts as
// stopped and cannot be started afterwards.
func (s *Server) Wait() {
	s.startOnce.Do(func() { close(s.actorDone) })
	<-s.actorDone
}

// Connect serves a new in-memory connection and returns a client of it.
// Requests from the client queue behind those of every other connection.
// The connection closes when ctx is done or the client is closed.
func (s *Server) Connect(ctx context.Context) *Client {
	s.Start(ctx)

	clientSide, serverSide := Pipe()
	go func() {
		if err := s.ServeConn(ctx, serverSide); err != nil {
			slog.Warn("in_process_conn_stopped", slog.String("error", err.Error()))
		}
	}()
	return NewClient(clientSide)
}

// run is the actor loop.
func (s *Server) run(ctx context.Context) {
	defer close(s.actorDone)

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-s.queue:
			resp := s.handleRequest(ctx, c.req)
			select {
			case c.session.out <- resp:
			case <-c.session.done:
				slog.Debug("response_dropped", slog.String("id", c.req.ID), slog.String("type", c.req.Type))
			case <-ctx.Done():
				return
			}
		}
	}
}

// ServeConn writes the readiness signal and then serves requests from conn
// until it closes or ctx is done. It starts the actor if needed.
func (s *Server) ServeConn(ctx context.Context, conn *Conn) error {
	s.Start(ctx)

	sess := &session{
		conn: conn,
		out:  make(chan Response, queueSize),
		done: make(chan struct{}),
	}
	writerDone := make(chan struct{})
	defer func() {
		close(sess.done)
		_ = conn.Close()
		<-writerDone
	}()

	if err := conn.Send(ReadyResponse()); err != nil {
		close(writerDone)
		return tberrors.TransportError("send ready signal", err)
	}

	go func() {
		defer close(writerDone)
		s.writeLoop(ctx, sess)
	}()

	for {
		var req Request
		if err := conn.Receive(&req); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			_ = conn.Send(NewErrorResponse("", tberrors.ValidationError("failed to parse request", err)))
			return tberrors.TransportError("read request", err)
		}

		select {
		case s.queue <- call{req: req, session: sess}:
		case <-ctx.Done():
			return nil
		}
	}
}

// writeLoop writes queued responses until the session or ctx ends. It
// closes the connection when ctx ends so the read loop returns.
func (s *Server) writeLoop(ctx context.Context, sess *session) {
	for {
		select {
		case resp := <-sess.out:
			if err := sess.conn.Send(resp); err != nil {
				slog.Debug("response_write_failed", slog.String("id", resp.ID), slog.String("error", err.Error()))
				_ = sess.conn.Close()
				return
			}
		case <-ctx.Done():
			_ = sess.conn.Close()
			return
		case <-sess.done:
			return
		}
	}
}

// handleRequest dispatches a request to the engine and records its outcome.
func (s *Server) handleRequest(ctx context.Context, req Request) Response {
	start := time.Now()
	resp := s.dispatch(ctx, req)
	s.metrics.ObserveRequest(req.Type, resp.Success, time.Since(start))

	if !resp.Success {
		slog.Debug("request_failed",
			slog.String("id", req.ID),
			slog.String("type", req.Type),
			slog.String("error", resp.Error))
	}
	return resp
}

func (s *Server) dispatch(ctx context.Context, req Request) Response {
	switch req.Type {
	case MethodPing:
		return NewSuccessResponse(req.ID, PingResult{
			Pong:        true,
			Version:     version.Version,
			Initialized: s.engine.Initialized(),
			Uptime:      time.Since(s.started).Round(time.Second).String(),
		})

	case MethodInit:
		if err := s.engine.Init(ctx); err != nil {
			return NewErrorResponse(req.ID, err)
		}
		return NewSuccessResponse(req.ID, nil)

	case MethodIngest:
		var params IngestParams
		if err := decodePayload(req, &params); err != nil {
			return NewErrorResponse(req.ID, err)
		}
		result, err := s.engine.Ingest(ctx, params)
		if err != nil {
			return NewErrorResponse(req.ID, err)
		}
		return NewSuccessResponse(req.ID, result)

	case MethodSearchTunes:
		var params SearchParams
		if err := decodePayload(req, &params); err != nil {
			return NewErrorResponse(req.ID, err)
		}
		tunes, err := s.engine.SearchTunes(ctx, params.Query, params.Options)
		if err != nil {
			return NewErrorResponse(req.ID, err)
		}
		return NewSuccessResponse(req.ID, tunes)

	case MethodListTunes:
		var params ListParams
		if err := decodePayload(req, &params); err != nil {
			return NewErrorResponse(req.ID, err)
		}
		tunes, err := s.engine.ListTunes(ctx, params)
		if err != nil {
			return NewErrorResponse(req.ID, err)
		}
		return NewSuccessResponse(req.ID, tunes)

	case MethodGetTune:
		var params GetTuneParams
		if err := decodePayload(req, &params); err != nil {
			return NewErrorResponse(req.ID, err)
		}
		if params.ID == "" {
			return NewErrorResponse(req.ID, tberrors.ValidationError("getTune requires an id", nil))
		}
		tune, err := s.engine.GetTune(ctx, params.ID)
		if err != nil {
			return NewErrorResponse(req.ID, err)
		}
		if tune == nil {
			return NewSuccessResponse(req.ID, nil)
		}
		return NewSuccessResponse(req.ID, tune)

	case MethodGetRecordings:
		var params RecordingsParams
		if err := decodePayload(req, &params); err != nil {
			return NewErrorResponse(req.ID, err)
		}
		recs, err := s.engine.Recordings(ctx, params.TuneID)
		if err != nil {
			return NewErrorResponse(req.ID, err)
		}
		return NewSuccessResponse(req.ID, recs)

	case MethodStats:
		stats, err := s.engine.Stats(ctx)
		if err != nil {
			return NewErrorResponse(req.ID, err)
		}
		return NewSuccessResponse(req.ID, stats)

	case MethodClear:
		if err := s.engine.Clear(ctx); err != nil {
			return NewErrorResponse(req.ID, err)
		}
		return NewSuccessResponse(req.ID, nil)

	default:
		return NewErrorResponse(req.ID,
			tberrors.New(tberrors.ErrCodeUnknownMethod, fmt.Sprintf("unknown method: %s", req.Type), nil))
	}
}

// ListenAndServe serves connections on a Unix socket until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, socketPath string) error {
	// Clean up any stale socket
	_ = os.Remove(socketPath)

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return tberrors.TransportError(fmt.Sprintf("failed to listen on %s", socketPath), err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	s.Start(ctx)
	slog.Info("server_listening", slog.String("socket", socketPath))

	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			s.mu.Lock()
			shutdown := s.shutdown
			s.mu.Unlock()
			if shutdown {
				break
			}
			slog.Error("accept_failed", slog.String("error", err.Error()))
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.ServeConn(ctx, NewConn(conn)); err != nil {
				slog.Warn("connection_failed", slog.String("error", err.Error()))
			}
		}()
	}

	s.wg.Wait()
	s.Wait()
	return ctx.Err()
}

// Close stops accepting connections.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdown = true
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}
