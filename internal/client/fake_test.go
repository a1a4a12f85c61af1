package client_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omochice/relay-chat/internal/chat"
)

var errConnClosed = errors.New("use of closed connection")

// fakeConn is an in-memory chat.Conn. Frames pushed with push are returned
// by Read; frames written by the controller are recorded in order.
type fakeConn struct {
	inbound   chan string
	closed    chan struct{}
	closeOnce sync.Once

	mu       sync.Mutex
	written  []string
	writeErr error
	check    func([]byte) error
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan string, 16),
		closed:  make(chan struct{}),
	}
}

func (f *fakeConn) push(lines ...string) {
	for _, line := range lines {
		f.inbound <- line
	}
}

func (f *fakeConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case line, ok := <-f.inbound:
		if !ok {
			return nil, io.EOF
		}
		return []byte(line), nil
	case <-f.closed:
		return nil, errConnClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeConn) Write(ctx context.Context, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.isClosed() {
		return errConnClosed
	}
	if f.writeErr != nil {
		return f.writeErr
	}
	f.written = append(f.written, string(data))
	return nil
}

func (f *fakeConn) CheckFrame(data []byte) error {
	if f.check == nil {
		return nil
	}
	return f.check(data)
}

func (f *fakeConn) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) RemoteAddr() string {
	return "fake"
}

func (f *fakeConn) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

func (f *fakeConn) frames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.written))
	copy(out, f.written)
	return out
}

// waitFrames waits for the writer to flush want and checks nothing else
// was written.
func (f *fakeConn) waitFrames(t *testing.T, want ...string) {
	t.Helper()
	require.Eventually(t, func() bool { return len(f.frames()) >= len(want) },
		time.Second, time.Millisecond, "frames never reached %q", want)
	assert.Equal(t, want, f.frames())
}

func (f *fakeConn) setWriteErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeErr = err
}

var (
	_ chat.Conn         = (*fakeConn)(nil)
	_ chat.FrameChecker = (*fakeConn)(nil)
)

// fakeDialer hands out connections only when the test releases them, so the
// Connecting state can be observed.
type fakeDialer struct {
	mu       sync.Mutex
	urls     []string
	requests []*dialRequest
	dialErr  error
}

type dialRequest struct {
	ch     chan *fakeConn
	served bool
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{}
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (chat.Conn, error) {
	req := &dialRequest{ch: make(chan *fakeConn, 1)}

	d.mu.Lock()
	d.urls = append(d.urls, url)
	err := d.dialErr
	if err == nil {
		d.requests = append(d.requests, req)
	}
	d.mu.Unlock()

	if err != nil {
		return nil, err
	}

	select {
	case conn := <-req.ch:
		return conn, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// open completes the most recent dial with a new connection, waiting for
// the controller to start dialing if needed.
func (d *fakeDialer) open(t *testing.T) *fakeConn {
	t.Helper()
	conn := newFakeConn()
	d.serve(t, conn)
	return conn
}

// serve completes the most recent pending dial with conn.
func (d *fakeDialer) serve(t *testing.T, conn *fakeConn) {
	t.Helper()

	var req *dialRequest
	require.Eventually(t, func() bool {
		d.mu.Lock()
		defer d.mu.Unlock()
		if n := len(d.requests); n > 0 && !d.requests[n-1].served {
			req = d.requests[n-1]
			req.served = true
			return true
		}
		return false
	}, time.Second, time.Millisecond)

	req.ch <- conn
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.urls)
}

func (d *fakeDialer) setDialErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dialErr = err
}
