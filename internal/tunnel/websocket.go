package tunnel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const closeGracePeriod = time.Second

// wsConn is a WebSocket seen as a byte stream. Every write is sent as one
// binary message; reads drain one message before fetching the next.
type wsConn struct {
	ws *websocket.Conn

	readMu  sync.Mutex
	pending []byte

	writeMu sync.Mutex
}

// DialWebSocket opens the WebSocket at uri.
func DialWebSocket(ctx context.Context, uri string) (io.ReadWriteCloser, error) {
	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, uri, nil)
	if resp != nil && resp.Body != nil {
		defer func() { _ = resp.Body.Close() }()
	}

	if err != nil {
		if errors.Is(err, websocket.ErrBadHandshake) && resp != nil {
			return nil, fmt.Errorf("%w: %w (%s)", ErrTunnel, err, resp.Status)
		}

		return nil, fmt.Errorf("%w: %w", ErrTunnel, err)
	}

	return &wsConn{ws: ws}, nil
}

func (c *wsConn) Read(p []byte) (int, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	for len(c.pending) == 0 {
		_, msg, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return 0, io.EOF
			}

			return 0, err
		}

		c.pending = msg
	}

	n := copy(p, c.pending)
	c.pending = c.pending[n:]

	return n, nil
}

func (c *wsConn) Write(p []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.ws.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}

	return len(p), nil
}

// Close says goodbye to the peer, then drops the connection.
func (c *wsConn) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod))

	return c.ws.Close()
}
