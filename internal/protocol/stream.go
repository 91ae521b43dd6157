package protocol

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MaxFrameSize bounds a single frame body
const MaxFrameSize = 64 * 1024

// DefaultWriteTimeout bounds a single frame write
const DefaultWriteTimeout = 10 * time.Second

var (
	ErrFrameTooLarge  = errors.New("frame exceeds maximum size")
	ErrMalformedFrame = errors.New("malformed frame header")
)

// StreamConn frames messages over a byte stream as "<length>\n<body>"
type StreamConn struct {
	conn         net.Conn
	reader       *bufio.Reader
	writeTimeout time.Duration

	wmu sync.Mutex
}

// Ensure StreamConn implements Conn
var _ Conn = (*StreamConn)(nil)

// NewStreamConn wraps a stream connection. A zero writeTimeout disables write deadlines.
func NewStreamConn(conn net.Conn, writeTimeout time.Duration) *StreamConn {
	return &StreamConn{
		conn:         conn,
		reader:       bufio.NewReader(conn),
		writeTimeout: writeTimeout,
	}
}

// DialTCP connects to a TCP gateway
func DialTCP(ctx context.Context, addr string) (*StreamConn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return NewStreamConn(conn, DefaultWriteTimeout), nil
}

// WriteFrame writes one length-prefixed frame
func (c *StreamConn) WriteFrame(body string) error {
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

	_, err := io.WriteString(c.conn, strconv.Itoa(len(body))+"\n"+body)
	return err
}

// ReadFrame reads one length-prefixed frame
func (c *StreamConn) ReadFrame() (string, error) {
	header, err := c.reader.ReadString('\n')
	if err != nil {
		return "", err
	}

	size, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || size < 0 {
		return "", fmt.Errorf("%w: %q", ErrMalformedFrame, strings.TrimSpace(header))
	}
	if size > MaxFrameSize {
		return "", ErrFrameTooLarge
	}

	buf := make([]byte, size)
	if _, err := io.ReadFull(c.reader, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// SetReadDeadline sets the deadline for pending and future reads
func (c *StreamConn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

// RemoteAddr returns the peer address
func (c *StreamConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// Close closes the underlying connection
func (c *StreamConn) Close() error {
	return c.conn.Close()
}
