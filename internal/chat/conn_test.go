package chat_test

import (
	"context"
	"io"
	"sync"

	"github.com/omochice/relay-chat/internal/chat"
)

// scriptedConn plays a fixed sequence of client frames and records the
// lines the relay writes back.
type scriptedConn struct {
	addr   string
	frames chan []byte

	mu       sync.Mutex
	lines    []string
	writeErr error
}

func newScriptedConn(addr string) *scriptedConn {
	return &scriptedConn{addr: addr, frames: make(chan []byte, 10)}
}

// say queues frames as if the client had sent them.
func (c *scriptedConn) say(frames ...string) {
	for _, f := range frames {
		c.frames <- []byte(f)
	}
}

// hangUp makes the next Read after the queued frames return io.EOF.
func (c *scriptedConn) hangUp() {
	close(c.frames)
}

func (c *scriptedConn) failWrites(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeErr = err
}

func (c *scriptedConn) received() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

func (c *scriptedConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case frame, ok := <-c.frames:
		if !ok {
			return nil, io.EOF
		}
		return frame, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *scriptedConn) Write(_ context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.lines = append(c.lines, string(data))
	return nil
}

func (c *scriptedConn) Close() error {
	return nil
}

func (c *scriptedConn) RemoteAddr() string {
	return c.addr
}

var _ chat.Conn = (*scriptedConn)(nil)
