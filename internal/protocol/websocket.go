package protocol

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WSConn carries one frame per WebSocket text message
type WSConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	wmu sync.Mutex
}

// Ensure WSConn implements Conn
var _ Conn = (*WSConn)(nil)

// NewWSConn wraps an established WebSocket connection
func NewWSConn(conn *websocket.Conn, writeTimeout time.Duration) *WSConn {
	conn.SetReadLimit(MaxFrameSize)
	return &WSConn{conn: conn, writeTimeout: writeTimeout}
}

// Upgrade upgrades an HTTP request to a WebSocket player connection
func Upgrade(w http.ResponseWriter, r *http.Request) (*WSConn, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return NewWSConn(conn, DefaultWriteTimeout), nil
}

// DialWS connects to a WebSocket gateway endpoint (ws:// or wss://)
func DialWS(ctx context.Context, url string) (*WSConn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return NewWSConn(conn, DefaultWriteTimeout), nil
}

// WriteFrame writes one text message
func (c *WSConn) WriteFrame(body string) error {
	if len(body) > MaxFrameSize {
		return ErrFrameTooLarge
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()

	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	return c.conn.WriteMessage(websocket.TextMessage, []byte(body))
}

// ReadFrame reads one text or binary message
func (c *WSConn) ReadFrame() (string, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// SetReadDeadline sets the deadline for pending and future reads
func (c *WSConn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

// RemoteAddr returns the peer address
func (c *WSConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// Close sends a close frame and closes the connection
func (c *WSConn) Close() error {
	c.wmu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.wmu.Unlock()
	return c.conn.Close()
}
