// Package chat provides the transport-agnostic pieces shared by the chat
// client and the relay: the connection contract, the append-only log and
// the relay hub.
package chat

import "context"

// Conn abstracts a bidirectional text-frame connection for both TCP and
// WebSocket.
type Conn interface {
	// Read blocks for the next frame.
	// Returns io.EOF (or a transport close error) when the peer goes away.
	Read(ctx context.Context) ([]byte, error)

	// Write sends a single frame.
	Write(ctx context.Context, data []byte) error

	// Close closes the connection.
	Close() error

	// RemoteAddr returns the remote address for logging.
	RemoteAddr() string
}

// FrameChecker is implemented by connections that cannot carry every
// payload as a single frame. CheckFrame reports why data would not arrive
// as exactly one frame on the peer.
type FrameChecker interface {
	CheckFrame(data []byte) error
}
