package daemon

import (
	"encoding/json"
	"io"
	"net"
	"sync"
)

// Conn carries newline-delimited JSON messages over a byte stream.
// Send is safe for concurrent use. Receive must be called from a single
// goroutine.
type Conn struct {
	rwc io.ReadWriteCloser
	dec *json.Decoder

	mu  sync.Mutex
	enc *json.Encoder

	closeOnce sync.Once
	closeErr  error
}

// NewConn wraps rwc.
func NewConn(rwc io.ReadWriteCloser) *Conn {
	return &Conn{
		rwc: rwc,
		dec: json.NewDecoder(rwc),
		enc: json.NewEncoder(rwc),
	}
}

// Pipe returns two connected in-memory ends.
func Pipe() (*Conn, *Conn) {
	a, b := net.Pipe()
	return NewConn(a), NewConn(b)
}

// Send writes one message followed by a newline.
func (c *Conn) Send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enc.Encode(v)
}

// Receive reads the next message into v.
func (c *Conn) Receive(v any) error {
	return c.dec.Decode(v)
}

// Close closes the underlying stream. Further calls return the first
// result.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.rwc.Close()
	})
	return c.closeErr
}
