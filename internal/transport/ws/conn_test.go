package ws_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"github.com/omochice/relay-chat/internal/transport/ws"
)

func toWSURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func TestConn_Read(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close(websocket.StatusNormalClosure, "")

		_ = c.Write(r.Context(), websocket.MessageText, []byte("test message"))
		_, _, _ = c.Read(r.Context())
	}))
	defer server.Close()

	conn, err := ws.Dial(context.Background(), toWSURL(server.URL))
	require.NoError(t, err)
	defer conn.Close()

	data, err := conn.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "test message", string(data))
}

func TestConn_WriteSendsTextFrames(t *testing.T) {
	type frame struct {
		typ  websocket.MessageType
		data string
	}
	received := make(chan frame, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close(websocket.StatusNormalClosure, "")

		typ, data, err := c.Read(r.Context())
		if err != nil {
			return
		}
		received <- frame{typ: typ, data: string(data)}
	}))
	defer server.Close()

	conn, err := ws.Dial(context.Background(), toWSURL(server.URL))
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.Write(context.Background(), []byte("hello")))

	select {
	case f := <-received:
		assert.Equal(t, websocket.MessageText, f.typ)
		assert.Equal(t, "hello", f.data)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for frame")
	}
}

func TestConn_Close(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close(websocket.StatusNormalClosure, "")

		_, _, _ = c.Read(r.Context())
	}))
	defer server.Close()

	conn, err := ws.Dial(context.Background(), toWSURL(server.URL))
	require.NoError(t, err)

	assert.NoError(t, conn.Close())
}

func TestConn_RemoteAddr(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close(websocket.StatusNormalClosure, "")

		_, _, _ = c.Read(r.Context())
	}))
	defer server.Close()

	conn, err := ws.Dial(context.Background(), toWSURL(server.URL))
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, strings.TrimPrefix(server.URL, "http://"), conn.RemoteAddr())
}

func TestDial_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := ws.Dial(ctx, "ws://127.0.0.1:1/ws")
	assert.Error(t, err)
}
