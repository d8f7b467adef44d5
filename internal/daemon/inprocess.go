package daemon

import (
	"context"

	"github.com/tunebook/tunebook/internal/engine"
)

// NewInProcess serves eng on an in-memory pipe and returns a client of it.
// The server stops when ctx is done.
func NewInProcess(ctx context.Context, eng *engine.Engine, opts ...ServerOption) *Client {
	return NewServer(eng, opts...).Connect(ctx)
}
