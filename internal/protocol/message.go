package protocol

import (
	"errors"
	"strings"
)

// MessageType identifies a server-originated message
type MessageType string

// Message types of the player protocol
const (
	TypeOption   MessageType = "OPT"
	TypeUsername MessageType = "USR"
	TypePassword MessageType = "PSW"
	TypeToken    MessageType = "TKN"
	TypeAuth     MessageType = "AUTH"
	TypeNack     MessageType = "NACK"
	TypeQueue    MessageType = "QUEUE"
	TypePing     MessageType = "PING"
	TypeInfo     MessageType = "INFO"
	TypeScore    MessageType = "SCORE"
	TypeTurn     MessageType = "TURN"
	TypeGameOver MessageType = "GAMEOVER"
	TypeFin      MessageType = "FIN"
)

// ErrEmptyMessage is returned when a frame carries no message type
var ErrEmptyMessage = errors.New("empty message")

// ExpectsReply reports whether the client answers this message type.
// PING and FIN are fire-and-forget.
func (t MessageType) ExpectsReply() bool {
	return t != TypePing && t != TypeFin
}

// Message is a single server-to-client message
type Message struct {
	Type    MessageType
	Payload string
}

// Encode renders the message as a frame body: "<TYPE>\n<payload>"
func (m Message) Encode() string {
	return string(m.Type) + "\n" + m.Payload
}

// ParseMessage splits a frame body into type and payload.
// The payload may itself contain newlines.
func ParseMessage(body string) (Message, error) {
	typ, payload, _ := strings.Cut(body, "\n")
	if typ == "" {
		return Message{}, ErrEmptyMessage
	}
	return Message{Type: MessageType(typ), Payload: payload}, nil
}
