// Package client implements the chat client: a Controller owning the single
// relay connection and a Channel used to send user-composed text over it.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/omochice/relay-chat/internal/chat"
	"github.com/omochice/relay-chat/internal/metrics"
	"github.com/omochice/relay-chat/pkg/protocol"
)

// DialFunc opens a transport connection to the relay at url.
type DialFunc func(ctx context.Context, url string) (chat.Conn, error)

// Sink receives every inbound frame as one display line, in arrival order.
// Append is called with the controller lock held and must not block or call
// back into the Controller.
type Sink interface {
	Append(line string)
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the controller logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// WithMetrics sets the client collectors updated by the controller.
func WithMetrics(m *metrics.Client) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithStateObserver registers fn to be called on every state transition.
// Like Sink.Append, fn runs under the controller lock.
func WithStateObserver(fn func(State)) Option {
	return func(c *Controller) { c.observer = fn }
}

// Controller owns at most one live relay connection and drives its
// lifecycle. The display name is always the first frame written on a
// freshly opened connection.
//
// The controller lock is never held across network I/O. Outbound frames go
// through a per-connection outbox drained by a single writer goroutine, so
// Send returns at once even when the relay stops reading.
type Controller struct {
	url      string
	dial     DialFunc
	sink     Sink
	logger   *zap.Logger
	metrics  *metrics.Client
	observer func(State)

	mu         sync.Mutex
	state      State
	conn       chat.Conn
	out        *outbox // non-nil only once the handshake is queued on it
	cancelConn context.CancelFunc
	identity   string
	generation uint64
	closed     bool

	ctx  context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup
}

// New creates a Controller for the relay at url. Inbound lines go to sink.
func New(url string, dial DialFunc, sink Sink, opts ...Option) *Controller {
	ctx, stop := context.WithCancel(context.Background())
	c := &Controller{
		url:    url,
		dial:   dial,
		sink:   sink,
		logger: zap.NewNop(),
		state:  StateIdle,
		ctx:    ctx,
		stop:   stop,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics != nil {
		c.metrics.ConnectionState.Set(float64(StateIdle))
	}
	return c
}

// State returns the current connection state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Identity returns the display name of the most recent Connect call.
func (c *Controller) Identity() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

// Connect starts a new connection announcing name. It returns at once; the
// outcome is observed through State and the sink.
//
// An empty name fails with a *ValidationError and touches no transport.
// Any previous connection, open or still dialing, is superseded and closed.
// There is no timeout on the connecting phase.
func (c *Controller) Connect(name string) error {
	if name == "" {
		if c.metrics != nil {
			c.metrics.ValidationFailures.Inc()
		}
		c.logger.Info("connect rejected", zap.Error(ErrMissingIdentity))
		return &ValidationError{Field: "identity", Err: ErrMissingIdentity}
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.cancelConn != nil {
		c.cancelConn()
	}
	prev := c.conn
	c.conn = nil
	c.out = nil
	c.generation++
	gen := c.generation
	c.identity = name
	ctx, cancel := context.WithCancel(c.ctx)
	c.cancelConn = cancel
	c.setStateLocked(StateConnecting)
	c.wg.Add(1)
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.ConnectAttempts.Inc()
	}
	c.logger.Info("connecting",
		zap.String("relay", c.url),
		zap.String("identity", name),
		zap.Uint64("generation", gen))

	go c.run(ctx, gen, name, prev)
	return nil
}

// Close tears the controller down: it cancels any dial, closes the live
// connection and waits for background work. Connect fails with ErrClosed
// afterwards.
func (c *Controller) Close() error {
	c.stop()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.generation++
	conn := c.conn
	c.conn = nil
	c.out = nil
	if c.state != StateIdle {
		c.setStateLocked(StateClosed)
	}
	c.mu.Unlock()

	var err error
	if conn != nil {
		err = conn.Close()
	}
	c.wg.Wait()
	return err
}

func (c *Controller) run(ctx context.Context, gen uint64, name string, prev chat.Conn) {
	defer c.wg.Done()

	if prev != nil {
		if err := prev.Close(); err != nil {
			c.logger.Debug("closing superseded connection", zap.Error(err))
		}
	}

	conn, err := c.dial(ctx, c.url)
	if err != nil {
		c.fail(gen, err)
		return
	}

	if !c.open(ctx, gen, name, conn) {
		return
	}

	for {
		data, err := conn.Read(ctx)
		if err != nil {
			c.fail(gen, err)
			return
		}
		if !c.deliver(gen, string(data)) {
			return
		}
	}
}

// open promotes a freshly dialed connection to Open. The handshake is
// queued on a new outbox before the outbox becomes visible to Send, so no
// chat frame can precede it.
func (c *Controller) open(ctx context.Context, gen uint64, name string, conn chat.Conn) bool {
	if err := checkFrame(conn, name); err != nil {
		c.fail(gen, fmt.Errorf("handshake: %w", err))
		_ = conn.Close()
		return false
	}

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		_ = conn.Close()
		return false
	}

	out := newOutbox()
	out.push(frame{kind: protocol.FrameHandshake, data: []byte(name)})
	c.conn = conn
	c.out = out
	c.setStateLocked(StateOpen)
	c.wg.Add(1)
	c.mu.Unlock()

	go c.writeLoop(ctx, gen, conn, out)

	c.logger.Info("connection open",
		zap.String("remote_addr", conn.RemoteAddr()),
		zap.Uint64("generation", gen))
	return true
}

// writeLoop writes queued frames in order until the connection of
// generation gen is superseded, closed or fails.
func (c *Controller) writeLoop(ctx context.Context, gen uint64, conn chat.Conn, out *outbox) {
	defer c.wg.Done()
	defer out.close()

	for {
		select {
		case <-ctx.Done():
			return
		case <-out.notify:
		}

		for _, f := range out.take() {
			if err := conn.Write(ctx, f.data); err != nil {
				out.close()
				c.fail(gen, fmt.Errorf("write %s frame: %w", f.kind, err))
				return
			}
			if c.metrics != nil {
				c.metrics.FramesSent.WithLabelValues(f.kind.String()).Inc()
			}
		}
	}
}

func (c *Controller) deliver(gen uint64, line string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return false
	}
	c.sink.Append(line)
	if c.metrics != nil {
		c.metrics.FramesReceived.Inc()
	}
	return true
}

// fail marks the connection of generation gen as Closed and stops its
// reader and writer. Failures of a superseded generation, and repeats
// once Closed, are ignored.
func (c *Controller) fail(gen uint64, err error) {
	c.mu.Lock()
	if gen != c.generation || c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	conn := c.conn
	c.conn = nil
	c.out = nil
	if c.cancelConn != nil {
		c.cancelConn()
	}
	c.setStateLocked(StateClosed)
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	if errors.Is(err, context.Canceled) {
		c.logger.Debug("connection cancelled", zap.Uint64("generation", gen))
		return
	}
	c.logger.Warn("connection closed", zap.Error(err), zap.Uint64("generation", gen))
}

// transmit queues text as the next frame on the open connection.
func (c *Controller) transmit(text string) Result {
	if text == "" {
		c.skipped(ResultSkippedEmpty)
		return ResultSkippedEmpty
	}

	c.mu.Lock()
	if c.state != StateOpen || c.out == nil {
		c.mu.Unlock()
		c.skipped(ResultSkippedNotOpen)
		return ResultSkippedNotOpen
	}
	if err := checkFrame(c.conn, text); err != nil {
		c.mu.Unlock()
		c.logger.Debug("send rejected", zap.Error(err))
		c.skipped(ResultRejected)
		return ResultRejected
	}
	queued := c.out.push(frame{kind: protocol.FrameChat, data: []byte(text)})
	c.mu.Unlock()

	if !queued {
		c.skipped(ResultFailed)
		return ResultFailed
	}
	return ResultSent
}

// checkFrame asks conn whether it can carry data as exactly one frame.
func checkFrame(conn chat.Conn, data string) error {
	if fc, ok := conn.(chat.FrameChecker); ok {
		return fc.CheckFrame([]byte(data))
	}
	return nil
}

func (c *Controller) skipped(r Result) {
	if c.metrics != nil {
		c.metrics.SendsSkipped.WithLabelValues(r.String()).Inc()
	}
	c.logger.Debug("send skipped", zap.Stringer("reason", r))
}

func (c *Controller) setStateLocked(s State) {
	if c.state == s {
		return
	}
	c.state = s
	if c.metrics != nil {
		c.metrics.ConnectionState.Set(float64(s))
	}
	if c.observer != nil {
		c.observer(s)
	}
}
