// Package ws provides the WebSocket transport for the chat client and relay.
//
// The client side dials with nhooyr.io/websocket; the relay side upgrades
// with gobwas/ws. Frames are WebSocket text messages carrying raw chat text.
package ws

import (
	"context"
	"fmt"

	"nhooyr.io/websocket"
)

// ReadLimit bounds the size of a single inbound frame.
const ReadLimit = 1 << 20

// Conn adapts nhooyr.io/websocket to chat.Conn interface.
type Conn struct {
	conn       *websocket.Conn
	remoteAddr string
}

// NewConnWithAddr wraps a websocket.Conn with the specified remote address.
func NewConnWithAddr(conn *websocket.Conn, addr string) *Conn {
	return &Conn{conn: conn, remoteAddr: addr}
}

// Dial opens a WebSocket connection to url.
func Dial(ctx context.Context, url string) (*Conn, error) {
	conn, resp, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}
	conn.SetReadLimit(ReadLimit)

	addr := url
	if resp != nil && resp.Request != nil && resp.Request.URL != nil {
		addr = resp.Request.URL.Host
	}
	return NewConnWithAddr(conn, addr), nil
}

// Read implements chat.Conn.
// Text and binary messages are both returned as raw payloads.
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := c.conn.Read(ctx)
	return data, err
}

// Write implements chat.Conn.
// Writes a text message to the WebSocket connection.
func (c *Conn) Write(ctx context.Context, data []byte) error {
	return c.conn.Write(ctx, websocket.MessageText, data)
}

// Close implements chat.Conn.
func (c *Conn) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "")
}

// RemoteAddr implements chat.Conn.
func (c *Conn) RemoteAddr() string {
	return c.remoteAddr
}
