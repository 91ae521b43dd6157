package model

import (
	"github.com/mcoot/dicemeister/internal/protocol"
)

// Session is an authenticated player with a live connection.
// It is owned by exactly one component at a time: gateway, queue or game.
type Session struct {
	Username     string
	PasswordHash string
	Token        string
	Rank         int64
	Conn         protocol.Conn
}

// NewSession snapshots a user record and binds it to a connection
func NewSession(rec *UserRecord, conn protocol.Conn) *Session {
	return &Session{
		Username:     rec.Username,
		PasswordHash: rec.PasswordHash,
		Token:        rec.Token,
		Rank:         rec.Rank,
		Conn:         conn,
	}
}

// SameIdentity reports whether two sessions belong to the same logical player.
// Identity is the username, not the connection.
func (s *Session) SameIdentity(other *Session) bool {
	return other != nil && s.Username == other.Username
}

// Send writes a message that expects no reply
func (s *Session) Send(t protocol.MessageType, payload string) error {
	return protocol.Send(s.Conn, t, payload)
}

// Request writes a message and returns the player's reply
func (s *Session) Request(t protocol.MessageType, payload string) (string, error) {
	return protocol.Request(s.Conn, t, payload)
}

// Notify writes a message and waits for the player's acknowledgement
func (s *Session) Notify(t protocol.MessageType, payload string) error {
	return protocol.Notify(s.Conn, t, payload)
}

// Close closes the player's connection
func (s *Session) Close() error {
	return s.Conn.Close()
}
