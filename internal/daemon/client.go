package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tunebook/tunebook/internal/catalog"
	tberrors "github.com/tunebook/tunebook/internal/errors"
	"github.com/tunebook/tunebook/internal/ingest"
	"github.com/tunebook/tunebook/internal/search"
)

// Client issues requests over a single connection. Any number of calls may
// be pending at once; responses are matched to calls by correlation id and
// may arrive in any order.
//
// Calls made before the server's readiness signal wait for it. Cancelling
// a call's context stops the wait only; the server still completes the
// work. When the connection fails every pending call returns an error
// matching errors.Is(err, tberrors.ErrTransport).
type Client struct {
	conn  *Conn
	newID func() string

	ready     chan struct{}
	readyOnce sync.Once

	done     chan struct{}
	failOnce sync.Once

	mu      sync.Mutex
	pending map[string]chan Response
	err     error
}

// NewClient starts reading responses from conn.
func NewClient(conn *Conn) *Client {
	c := &Client{
		conn:    conn,
		newID:   uuid.NewString,
		ready:   make(chan struct{}),
		done:    make(chan struct{}),
		pending: make(map[string]chan Response),
	}
	go c.readLoop()
	return c
}

// Dial connects to a server listening on socketPath.
func Dial(ctx context.Context, socketPath string, timeout time.Duration) (*Client, error) {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, tberrors.TransportError("failed to connect to daemon", err).
			WithSuggestion("Start it with 'tunebook serve'")
	}
	return NewClient(NewConn(conn)), nil
}

// IsRunning reports whether a server accepts connections on socketPath.
func IsRunning(socketPath string, timeout time.Duration) bool {
	conn, err := net.DialTimeout("unix", socketPath, timeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

func (c *Client) readLoop() {
	for {
		var resp Response
		if err := c.conn.Receive(&resp); err != nil {
			c.fail(tberrors.TransportError("connection lost", err))
			return
		}

		if resp.IsReady() {
			c.readyOnce.Do(func() { close(c.ready) })
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		if ok {
			delete(c.pending, resp.ID)
		}
		c.mu.Unlock()

		if !ok {
			slog.Debug("unmatched_response", slog.String("id", resp.ID))
			continue
		}
		ch <- resp
	}
}

// fail rejects every pending call with err and clears the pending set.
func (c *Client) fail(err error) {
	c.failOnce.Do(func() {
		c.mu.Lock()
		c.err = err
		n := len(c.pending)
		c.pending = make(map[string]chan Response)
		c.mu.Unlock()

		close(c.done)
		if n > 0 {
			slog.Warn("pending_requests_rejected", slog.Int("count", n), slog.String("error", err.Error()))
		}
	})
}

func (c *Client) transportErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Pending returns the number of calls awaiting a response.
func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Ready is closed once the server's readiness signal arrives.
func (c *Client) Ready() <-chan struct{} {
	return c.ready
}

// Done is closed when the connection fails or is closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Call sends a request of the given method and decodes the response data
// into out, which may be nil.
func (c *Client) Call(ctx context.Context, method string, payload, out any) error {
	select {
	case <-c.ready:
	case <-c.done:
		return c.transportErr()
	case <-ctx.Done():
		return cancelled(method, ctx.Err())
	}

	id := c.newID()
	req, err := NewRequest(id, method, payload)
	if err != nil {
		return err
	}

	ch := make(chan Response, 1)
	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return c.err
	}
	c.pending[id] = ch
	c.mu.Unlock()

	if err := c.conn.Send(req); err != nil {
		c.forget(id)
		c.fail(tberrors.TransportError("send request", err))
		return c.transportErr()
	}

	select {
	case resp := <-ch:
		if err := resp.Err(); err != nil {
			return err
		}
		return resp.Decode(out)
	case <-c.done:
		return c.transportErr()
	case <-ctx.Done():
		c.forget(id)
		return cancelled(method, ctx.Err())
	}
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func cancelled(method string, cause error) error {
	return tberrors.New(tberrors.ErrCodeRequestCancelled, fmt.Sprintf("%s request cancelled", method), cause)
}

// Close closes the connection. Pending calls fail with a transport error.
func (c *Client) Close() error {
	err := c.conn.Close()
	<-c.done
	return err
}

// Init initializes the remote engine.
func (c *Client) Init(ctx context.Context) error {
	return c.Call(ctx, MethodInit, nil, nil)
}

// Ingest runs an ingestion pass.
func (c *Client) Ingest(ctx context.Context, in ingest.Input) (*ingest.Result, error) {
	var result ingest.Result
	if err := c.Call(ctx, MethodIngest, in, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SearchTunes runs a fuzzy search.
func (c *Client) SearchTunes(ctx context.Context, query string, opts search.SearchOptions) ([]*catalog.Tune, error) {
	var tunes []*catalog.Tune
	if err := c.Call(ctx, MethodSearchTunes, SearchParams{Query: query, Options: opts}, &tunes); err != nil {
		return nil, err
	}
	return tunes, nil
}

// ListTunes pages through tunes.
func (c *Client) ListTunes(ctx context.Context, opts search.ListOptions) ([]*catalog.Tune, error) {
	var tunes []*catalog.Tune
	if err := c.Call(ctx, MethodListTunes, opts, &tunes); err != nil {
		return nil, err
	}
	return tunes, nil
}

// GetTune returns nil, nil for an unknown id.
func (c *Client) GetTune(ctx context.Context, id string) (*catalog.Tune, error) {
	var tune *catalog.Tune
	if err := c.Call(ctx, MethodGetTune, GetTuneParams{ID: id}, &tune); err != nil {
		return nil, err
	}
	return tune, nil
}

// GetRecordings lists a tune's recordings.
func (c *Client) GetRecordings(ctx context.Context, tuneID string) ([]*catalog.Recording, error) {
	var recs []*catalog.Recording
	if err := c.Call(ctx, MethodGetRecordings, RecordingsParams{TuneID: tuneID}, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// Stats reports per-kind counts and the index state.
func (c *Client) Stats(ctx context.Context) (*search.Stats, error) {
	var stats search.Stats
	if err := c.Call(ctx, MethodStats, nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Clear empties the catalog.
func (c *Client) Clear(ctx context.Context) error {
	return c.Call(ctx, MethodClear, nil, nil)
}

// Ping checks the server is responsive.
func (c *Client) Ping(ctx context.Context) (*PingResult, error) {
	var result PingResult
	if err := c.Call(ctx, MethodPing, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
