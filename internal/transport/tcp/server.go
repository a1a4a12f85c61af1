package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/omochice/relay-chat/internal/chat"
)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithQueueSize sets the per-client outgoing queue length.
func WithQueueSize(n int) Option {
	return func(s *Server) { s.queueSize = n }
}

// Server handles TCP connections and delegates to Hub.
type Server struct {
	address   string
	listener  net.Listener
	hub       *chat.Hub
	logger    *zap.Logger
	queueSize int
	ctx       context.Context
	cancel    context.CancelFunc
	ready     chan struct{}
	mu        sync.Mutex
	clients   map[*chat.Client]struct{}
	wg        sync.WaitGroup
}

// New creates a TCP server that uses the provided Hub.
func New(address string, hub *chat.Hub, opts ...Option) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		address:   address,
		hub:       hub,
		logger:    zap.NewNop(),
		queueSize: chat.DefaultQueueSize,
		ctx:       ctx,
		cancel:    cancel,
		ready:     make(chan struct{}),
		clients:   make(map[*chat.Client]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start starts accepting TCP connections. It blocks until Stop is called
// or the listener fails.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to start TCP server: %w", err)
	}
	return s.Serve(listener)
}

// Serve accepts TCP connections on listener until Stop is called. The
// listener is closed by Stop.
func (s *Server) Serve(listener net.Listener) error {
	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		_ = listener.Close()
		return nil
	}
	s.listener = listener
	s.mu.Unlock()
	close(s.ready)

	s.logger.Info("TCP server started", zap.String("addr", listener.Addr().String()))

	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Warn("failed to accept TCP connection", zap.Error(err))
			continue
		}

		client := chat.NewClient(NewConn(conn), s.queueSize)

		s.mu.Lock()
		if s.ctx.Err() != nil {
			s.mu.Unlock()
			_ = conn.Close()
			return nil
		}
		s.clients[client] = struct{}{}
		s.wg.Add(2)
		s.mu.Unlock()

		s.hub.Register(client)

		go s.handleClient(client)
		go s.writeLoop(client)
	}
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Stop stops the TCP server and waits for client goroutines.
func (s *Server) Stop() {
	s.cancel()

	s.mu.Lock()
	listener := s.listener
	clients := make([]*chat.Client, 0, len(s.clients))
	for client := range s.clients {
		clients = append(clients, client)
	}
	s.mu.Unlock()

	if listener != nil {
		_ = listener.Close()
	}
	for _, client := range clients {
		_ = client.Conn.Close()
	}

	s.wg.Wait()
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
		s.logger.Debug("TCP write loop ended", zap.Error(err))
	}
}
