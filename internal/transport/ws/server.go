package ws

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/omochice/relay-chat/internal/chat"
)

// Path is the route the relay accepts chat connections on.
const Path = "/ws"

const (
	readHeaderTimeout = 10 * time.Second
	// writeTimeout bounds a single frame write to a client.
	writeTimeout = 10 * time.Second
	// closeFrameTimeout bounds the best-effort close frame sent on Close.
	closeFrameTimeout = time.Second
)

// aLongTimeAgo is a deadline in the past, used to unblock pending I/O.
var aLongTimeAgo = time.Unix(1, 0)

// serverConn adapts a hijacked net.Conn speaking the server side of the
// WebSocket protocol to chat.Conn.
type serverConn struct {
	conn         net.Conn
	writeMu      sync.Mutex
	writeTimeout time.Duration
}

func (c *serverConn) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetReadDeadline(aLongTimeAgo)
	})
	defer stop()

	data, _, err := wsutil.ReadClientData(c.conn)
	if err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return data, err
}

// Write sends one text frame. A client that does not drain it within the
// write timeout, or a cancelled ctx, fails the write.
func (c *serverConn) Write(ctx context.Context, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetWriteDeadline(aLongTimeAgo)
	})
	defer stop()

	if err := wsutil.WriteServerText(c.conn, data); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

// Close sends a close frame unless a write is in flight, then closes the
// connection. It never waits on a blocked writer.
func (c *serverConn) Close() error {
	if c.writeMu.TryLock() {
		_ = c.conn.SetWriteDeadline(time.Now().Add(closeFrameTimeout))
		_ = wsutil.WriteServerMessage(c.conn, ws.OpClose, ws.NewCloseFrameBody(ws.StatusNormalClosure, ""))
		c.writeMu.Unlock()
	}
	return c.conn.Close()
}

func (c *serverConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithGatherer exposes the given registry on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithWriteTimeout bounds how long a single frame write to a client may
// take before the client is dropped.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Server) { s.writeTimeout = d }
}

// WithQueueSize sets the per-client outgoing queue length.
func WithQueueSize(n int) Option {
	return func(s *Server) { s.queueSize = n }
}

// Server handles WebSocket connections and delegates to Hub.
type Server struct {
	address   string
	listener  net.Listener
	hub       *chat.Hub
	server    *http.Server
	logger    *zap.Logger
	gatherer     prometheus.Gatherer
	queueSize    int
	writeTimeout time.Duration
	ctx          context.Context
	cancel       context.CancelFunc
	ready        chan struct{}
	mu           sync.Mutex
	clients      map[*chat.Client]struct{}
	wg           sync.WaitGroup
}

// New creates a WebSocket server that uses the provided Hub.
func New(address string, hub *chat.Hub, opts ...Option) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		address:      address,
		hub:          hub,
		logger:       zap.NewNop(),
		queueSize:    chat.DefaultQueueSize,
		writeTimeout: writeTimeout,
		ctx:          ctx,
		cancel:       cancel,
		ready:        make(chan struct{}),
		clients:      make(map[*chat.Client]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the relay routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get(Path, s.handleWebSocket)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// Start starts accepting WebSocket connections. It blocks until Stop is
// called or the listener fails.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to start WebSocket server: %w", err)
	}
	return s.Serve(listener)
}

// Serve handles HTTP requests arriving on listener until Stop is called.
func (s *Server) Serve(listener net.Listener) error {
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: readHeaderTimeout}

	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		_ = listener.Close()
		return nil
	}
	s.listener = listener
	s.server = srv
	s.mu.Unlock()
	close(s.ready)

	s.logger.Info("WebSocket server started", zap.String("addr", listener.Addr().String()))

	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("WebSocket server failed: %w", err)
	}
	return nil
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Stop stops the WebSocket server, closes every hijacked client connection
// and waits for client goroutines.
func (s *Server) Stop(ctx context.Context) error {
	s.cancel()

	s.mu.Lock()
	srv := s.server
	clients := make([]*chat.Client, 0, len(s.clients))
	for client := range s.clients {
		clients = append(clients, client)
	}
	s.mu.Unlock()

	for _, client := range clients {
		_ = client.Conn.Close()
	}

	var err error
	if srv != nil {
		err = srv.Shutdown(ctx)
	}
	s.wg.Wait()
	return err
}

// Addr returns the listening address.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		s.logger.Warn("failed to upgrade WebSocket connection", zap.Error(err))
		return
	}

	client := chat.NewClient(&serverConn{conn: conn, writeTimeout: s.writeTimeout}, s.queueSize)

	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.clients[client] = struct{}{}
	s.wg.Add(2)
	s.mu.Unlock()

	s.hub.Register(client)

	go s.handleClient(client)
	go s.writeLoop(client)
}

func (s *Server) handleClient(client *chat.Client) {
	defer s.wg.Done()
	defer close(client.Outgoing)
	s.hub.HandleClient(s.ctx, client)

	s.mu.Lock()
	delete(s.clients, client)
	s.mu.Unlock()
}

func (s *Server) writeLoop(client *chat.Client) {
	defer s.wg.Done()
	defer client.Conn.Close()
	if err := client.WriteLoop(s.ctx); err != nil {
		s.logger.Debug("WebSocket write loop ended", zap.Error(err))
	}
}
