// Package transport picks a chat transport from the relay URL scheme.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/omochice/relay-chat/internal/chat"
	"github.com/omochice/relay-chat/internal/transport/tcp"
	"github.com/omochice/relay-chat/internal/transport/ws"
)

// ErrUnsupportedScheme is returned for relay URLs that are neither
// ws, wss nor tcp.
var ErrUnsupportedScheme = errors.New("unsupported relay scheme")

// Dial connects to the relay at rawURL.
//
//	ws://host:port/ws, wss://host/ws  WebSocket text frames
//	tcp://host:port                   newline-delimited frames
func Dial(ctx context.Context, rawURL string) (chat.Conn, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid relay URL %q: %w", rawURL, err)
	}

	switch u.Scheme {
	case "ws", "wss":
		return ws.Dial(ctx, rawURL)
	case "tcp":
		return tcp.Dial(ctx, u.Host)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
}

// CheckURL reports whether rawURL names a relay Dial can reach.
func CheckURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid relay URL %q: %w", rawURL, err)
	}
	switch u.Scheme {
	case "ws", "wss", "tcp":
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid relay URL %q: missing host", rawURL)
	}
	return nil
}
