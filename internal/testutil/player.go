package testutil

import (
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mcoot/dicemeister/internal/protocol"
)

// DefaultReadTimeout bounds each scripted read so a broken exchange fails fast
const DefaultReadTimeout = 5 * time.Second

// PipeConns returns a connected server/client pair over net.Pipe.
// Both ends are closed when the test finishes.
func PipeConns(t testing.TB) (server, client *protocol.StreamConn) {
	t.Helper()
	a, b := net.Pipe()
	server = protocol.NewStreamConn(a, time.Second)
	client = protocol.NewStreamConn(b, time.Second)
	t.Cleanup(func() {
		_ = server.Close()
		_ = client.Close()
	})
	return server, client
}

// Player is a scripted protocol client for tests. It reports mismatches with
// t.Errorf so it can run on goroutines other than the test's own.
type Player struct {
	t       testing.TB
	conn    protocol.Conn
	timeout time.Duration
	failed  atomic.Bool

	// Pings counts PING messages skipped while waiting for others
	Pings atomic.Int32
}

// NewPlayer scripts the client side of conn
func NewPlayer(t testing.TB, conn protocol.Conn) *Player {
	return &Player{t: t, conn: conn, timeout: DefaultReadTimeout}
}

// Conn returns the underlying connection
func (p *Player) Conn() protocol.Conn {
	return p.conn
}

// Failed reports whether any scripted step has failed
func (p *Player) Failed() bool {
	return p.failed.Load()
}

// Next reads the next non-PING message
func (p *Player) Next() (protocol.Message, bool) {
	if p.failed.Load() {
		return protocol.Message{}, false
	}
	for {
		_ = p.conn.SetReadDeadline(time.Now().Add(p.timeout))
		msg, err := protocol.ReadMessage(p.conn)
		if err != nil {
			p.fail("read message: %v", err)
			return protocol.Message{}, false
		}
		if msg.Type == protocol.TypePing {
			p.Pings.Add(1)
			continue
		}
		return msg, true
	}
}

// Expect reads the next message and checks its type, returning the payload
func (p *Player) Expect(typ protocol.MessageType) string {
	msg, ok := p.Next()
	if !ok {
		return ""
	}
	if msg.Type != typ {
		p.fail("expected %s, got %s %q", typ, msg.Type, msg.Payload)
		return ""
	}
	return msg.Payload
}

// Answer expects a message of typ and replies with text
func (p *Player) Answer(typ protocol.MessageType, text string) string {
	payload := p.Expect(typ)
	p.Reply(text)
	return payload
}

// Ack expects a message of typ and acknowledges it
func (p *Player) Ack(typ protocol.MessageType) string {
	return p.Answer(typ, "OK")
}

// Reply sends a reply frame
func (p *Player) Reply(text string) {
	if p.failed.Load() {
		return
	}
	if err := protocol.Reply(p.conn, text); err != nil {
		p.fail("reply %q: %v", text, err)
	}
}

// ExpectClosed checks that the server has closed the connection
func (p *Player) ExpectClosed() {
	if p.failed.Load() {
		return
	}
	_ = p.conn.SetReadDeadline(time.Now().Add(p.timeout))
	if msg, err := protocol.ReadMessage(p.conn); err == nil {
		p.fail("expected closed connection, got %s %q", msg.Type, msg.Payload)
	}
}

func (p *Player) fail(format string, args ...any) {
	p.failed.Store(true)
	p.t.Errorf(format, args...)
}
