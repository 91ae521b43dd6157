package protocol

import (
	"fmt"
	"time"
)

// Conn sends and receives whole frames over some transport.
// A Conn is used by one goroutine at a time for reads; writes are serialized.
type Conn interface {
	WriteFrame(body string) error
	ReadFrame() (string, error)
	SetReadDeadline(t time.Time) error
	RemoteAddr() string
	Close() error
}

// Send writes one message without waiting for a reply
func Send(c Conn, t MessageType, payload string) error {
	if err := c.WriteFrame(Message{Type: t, Payload: payload}.Encode()); err != nil {
		return fmt.Errorf("send %s: %w", t, err)
	}
	return nil
}

// Request writes one message and blocks for exactly one reply
func Request(c Conn, t MessageType, payload string) (string, error) {
	if err := Send(c, t, payload); err != nil {
		return "", err
	}
	reply, err := c.ReadFrame()
	if err != nil {
		return "", fmt.Errorf("await reply to %s: %w", t, err)
	}
	return reply, nil
}

// Notify writes one message and consumes the client's acknowledgement
func Notify(c Conn, t MessageType, payload string) error {
	_, err := Request(c, t, payload)
	return err
}

// ReadMessage reads and parses one server message (client side)
func ReadMessage(c Conn) (Message, error) {
	body, err := c.ReadFrame()
	if err != nil {
		return Message{}, err
	}
	return ParseMessage(body)
}

// Reply writes a client reply frame
func Reply(c Conn, text string) error {
	return c.WriteFrame(text)
}
