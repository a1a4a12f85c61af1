// Package mux serves WebSocket and line-delimited TCP clients on one port.
// It peeks at the first line of every accepted connection: HTTP/1.x request
// lines go to the HTTP listener, everything else to the raw listener.
package mux

import (
	"bufio"
	"bytes"
	"errors"
	"net"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	sniffTimeout   = 5 * time.Second
	maxRequestLine = 8 << 10
	maxMethodLen   = 7
)

var (
	httpMethods = []string{"GET", "HEAD", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "CONNECT", "TRACE"}
	httpVersion = []byte(" HTTP/1.")
)

// Option configures a Mux.
type Option func(*Mux)

// WithLogger sets the mux logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Mux) { m.logger = logger }
}

// Mux splits connections accepted on a root listener.
type Mux struct {
	root   net.Listener
	logger *zap.Logger
	http   *listener
	raw    *listener
	done   chan struct{}
	once   sync.Once
}

// New wraps root. Call Serve to start routing.
func New(root net.Listener, opts ...Option) *Mux {
	m := &Mux{
		root:   root,
		logger: zap.NewNop(),
		http:   newListener(root.Addr()),
		raw:    newListener(root.Addr()),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// HTTP returns the listener receiving HTTP connections.
func (m *Mux) HTTP() net.Listener { return m.http }

// Raw returns the listener receiving every other connection.
func (m *Mux) Raw() net.Listener { return m.raw }

// Addr returns the root listener address.
func (m *Mux) Addr() net.Addr { return m.root.Addr() }

// Serve accepts connections on the root listener until Close is called.
func (m *Mux) Serve() error {
	m.logger.Info("shared listener started", zap.String("addr", m.root.Addr().String()))

	for {
		conn, err := m.root.Accept()
		if err != nil {
			select {
			case <-m.done:
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			m.logger.Warn("failed to accept connection", zap.Error(err))
			continue
		}
		go m.route(conn)
	}
}

// Close stops Serve and closes both derived listeners.
func (m *Mux) Close() error {
	var err error
	m.once.Do(func() {
		close(m.done)
		err = m.root.Close()
		_ = m.http.Close()
		_ = m.raw.Close()
	})
	return err
}

func (m *Mux) route(conn net.Conn) {
	br := bufio.NewReaderSize(conn, maxRequestLine)

	_ = conn.SetReadDeadline(time.Now().Add(sniffTimeout))
	isHTTP, err := sniff(br)
	_ = conn.SetReadDeadline(time.Time{})
	if err != nil {
		m.logger.Debug("dropping connection before first line",
			zap.String("remote_addr", conn.RemoteAddr().String()),
			zap.Error(err))
		_ = conn.Close()
		return
	}

	target := m.raw
	if isHTTP {
		target = m.http
	}
	if !target.deliver(&bufferedConn{Conn: conn, reader: br}, m.done) {
		_ = conn.Close()
	}
}

// sniff reports whether the connection opens with an HTTP/1.x request line.
// It gives up as soon as the bytes seen cannot start a request.
func sniff(r *bufio.Reader) (bool, error) {
	for n := 1; n <= maxRequestLine; n++ {
		b, err := r.Peek(n)
		if err != nil {
			return false, err
		}
		if b[n-1] == '\n' {
			return plausible(b) && bytes.Contains(b, httpVersion), nil
		}
		if !plausible(b) {
			return false, nil
		}
	}
	return false, nil
}

// plausible reports whether b can still be the start of a request line.
func plausible(b []byte) bool {
	method, _, found := bytes.Cut(b, []byte(" "))
	if !found {
		if len(method) > maxMethodLen {
			return false
		}
		for _, c := range method {
			if c < 'A' || c > 'Z' {
				return false
			}
		}
		return true
	}
	return slices.Contains(httpMethods, string(method))
}

// bufferedConn replays the peeked bytes before reading from the socket.
type bufferedConn struct {
	net.Conn
	reader *bufio.Reader
}

func (c *bufferedConn) Read(p []byte) (int, error) {
	return c.reader.Read(p)
}

// listener is a net.Listener fed by the mux.
type listener struct {
	addr  net.Addr
	conns chan net.Conn
	done  chan struct{}
	once  sync.Once
}

func newListener(addr net.Addr) *listener {
	return &listener{
		addr:  addr,
		conns: make(chan net.Conn),
		done:  make(chan struct{}),
	}
}

func (l *listener) Accept() (net.Conn, error) {
	select {
	case conn := <-l.conns:
		return conn, nil
	case <-l.done:
		return nil, net.ErrClosed
	}
}

func (l *listener) Close() error {
	l.once.Do(func() { close(l.done) })
	return nil
}

func (l *listener) Addr() net.Addr {
	return l.addr
}

func (l *listener) deliver(conn net.Conn, stop <-chan struct{}) bool {
	select {
	case l.conns <- conn:
		return true
	case <-l.done:
		return false
	case <-stop:
		return false
	}
}
