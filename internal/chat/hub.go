package chat

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/omochice/relay-chat/internal/metrics"
	"github.com/omochice/relay-chat/pkg/protocol"
)

// DefaultQueueSize is the outgoing queue length used when none is given.
const DefaultQueueSize = 64

// Client represents a connected client with transport-agnostic connection.
type Client struct {
	ID       string
	Conn     Conn
	Username string
	Outgoing chan []byte
}

// NewClient wraps conn with a fresh ID and an outgoing queue of the given size.
func NewClient(conn Conn, queueSize int) *Client {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Client{
		ID:       uuid.NewString(),
		Conn:     conn,
		Outgoing: make(chan []byte, queueSize),
	}
}

// WriteLoop drains Outgoing into the connection until the queue is closed
// or a write fails.
func (c *Client) WriteLoop(ctx context.Context) error {
	for data := range c.Outgoing {
		if err := c.Conn.Write(ctx, data); err != nil {
			return fmt.Errorf("failed to write to client %s: %w", c.ID, err)
		}
	}
	return nil
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithLogger sets the hub logger.
func WithLogger(logger *zap.Logger) HubOption {
	return func(h *Hub) { h.logger = logger }
}

// WithMetrics sets the relay collectors updated by the hub.
func WithMetrics(m *metrics.Relay) HubOption {
	return func(h *Hub) { h.metrics = m }
}

// Hub manages all connected clients and handles broadcast.
// Both TCP and WebSocket servers share a single Hub instance.
type Hub struct {
	clients map[*Client]bool
	mu      sync.RWMutex
	logger  *zap.Logger
	metrics *metrics.Relay
}

// NewHub creates a new Hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		clients: make(map[*Client]bool),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[client] {
		return
	}
	h.clients[client] = true
	if h.metrics != nil {
		h.metrics.ActiveConnections.Inc()
	}
}

// Unregister removes a client from the hub. After it returns the hub no
// longer writes to client.Outgoing, so the caller may close it.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.clients[client] {
		return
	}
	delete(h.clients, client)
	if h.metrics != nil {
		h.metrics.ActiveConnections.Dec()
	}
}

// ClientCount returns number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues the rendered message for every registered client.
// A client whose queue is full misses the line.
func (h *Hub) Broadcast(msg protocol.Message) {
	data := msg.Encode()

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		select {
		case client.Outgoing <- data:
		default:
			h.logger.Warn("dropping frame for slow client",
				zap.String("client_id", client.ID),
				zap.String("remote_addr", client.Conn.RemoteAddr()))
			if h.metrics != nil {
				h.metrics.FramesDropped.Inc()
			}
		}
	}
	if h.metrics != nil {
		h.metrics.FramesBroadcast.Inc()
	}
}

// HandleClient runs the relay protocol for a registered client: the first
// frame names the client, every later frame is broadcast as chat text.
// It returns once the connection fails, after unregistering the client.
func (h *Hub) HandleClient(ctx context.Context, client *Client) {
	defer h.Unregister(client)

	logger := h.logger.With(
		zap.String("client_id", client.ID),
		zap.String("remote_addr", client.Conn.RemoteAddr()))

	data, err := client.Conn.Read(ctx)
	if err != nil {
		logger.Debug("client left before announcing a name", zap.Error(err))
		return
	}
	client.Username = protocol.NormalizeName(string(data))
	logger = logger.With(zap.String("username", client.Username))
	logger.Info("client joined")

	h.Broadcast(protocol.Message{Type: protocol.MessageTypeJoin, Sender: client.Username})

	for {
		data, err := client.Conn.Read(ctx)
		if err != nil {
			logger.Info("client left", zap.Error(err))
			break
		}
		h.Broadcast(protocol.Message{
			Type:    protocol.MessageTypeText,
			Sender:  client.Username,
			Content: string(data),
		})
	}

	h.Unregister(client)
	h.Broadcast(protocol.Message{Type: protocol.MessageTypeLeave, Sender: client.Username})
}
