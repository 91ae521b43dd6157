package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mcoot/dicemeister/internal/protocol"
)

// Responder chooses the reply to a server message
type Responder interface {
	Respond(msg protocol.Message) (string, error)
}

// Transcript receives every message the server sends
type Transcript func(msg protocol.Message)

// RunSession reads messages from conn until FIN or a transport error,
// answering every message that expects a reply. It returns the FIN payload.
func RunSession(conn protocol.Conn, r Responder, transcript Transcript) (string, error) {
	for {
		msg, err := protocol.ReadMessage(conn)
		if err != nil {
			return "", fmt.Errorf("connection lost: %w", err)
		}
		if transcript != nil {
			transcript(msg)
		}
		if msg.Type == protocol.TypeFin {
			return msg.Payload, nil
		}
		if !msg.Type.ExpectsReply() {
			continue
		}

		reply, err := r.Respond(msg)
		if err != nil {
			return "", err
		}
		if err := protocol.Reply(conn, reply); err != nil {
			return "", fmt.Errorf("reply to %s: %w", msg.Type, err)
		}
	}
}

// ErrGaveUp is returned when the bot cannot make progress at the menu
var ErrGaveUp = errors.New("authentication refused")

// maxRefusals bounds consecutive NACKs before the bot stops retrying
const maxRefusals = 3

// AutoPlayer answers the protocol without user input
type AutoPlayer struct {
	Username string
	Password string
	// Token resumes an earlier session instead of logging in
	Token string
	// Register signs up first, falling back to login if the name is taken
	Register bool
	// Games is how many games to play before answering N
	Games int
	// OnAuth is called with the suggested file name and the issued token
	OnAuth func(name, token string) error

	played   int
	refusals int
	lastWin  string
}

// Played returns the number of finished games
func (a *AutoPlayer) Played() int {
	return a.played
}

// GaveUp reports whether the bot quit at the menu after repeated refusals
func (a *AutoPlayer) GaveUp() bool {
	return a.refusals >= maxRefusals
}

// LastResult returns the last GAMEOVER announcement
func (a *AutoPlayer) LastResult() string {
	return a.lastWin
}

// Respond implements Responder
func (a *AutoPlayer) Respond(msg protocol.Message) (string, error) {
	switch msg.Type {
	case protocol.TypeOption:
		if a.refusals >= maxRefusals {
			return "4", nil
		}
		switch {
		case a.Token != "":
			return "3", nil
		case a.Register:
			return "2", nil
		default:
			return "1", nil
		}
	case protocol.TypeUsername:
		return a.Username, nil
	case protocol.TypePassword:
		return a.Password, nil
	case protocol.TypeToken:
		return a.Token, nil
	case protocol.TypeNack:
		a.refusals++
		switch msg.Payload {
		case "Username already in use":
			a.Register = false
		case "Invalid session token":
			a.Token = ""
		}
		return "OK", nil
	case protocol.TypeAuth:
		a.refusals = 0
		name, token, _ := strings.Cut(msg.Payload, "\n")
		a.Token = token
		if a.OnAuth != nil {
			if err := a.OnAuth(name, token); err != nil {
				return "", err
			}
		}
		return "OK", nil
	case protocol.TypeTurn:
		return "r", nil
	case protocol.TypeGameOver:
		a.played++
		a.lastWin = msg.Payload
		if a.played < a.Games {
			return "Y", nil
		}
		return "N", nil
	default:
		return "OK", nil
	}
}

// Interactive asks the user for every reply that carries a choice and
// acknowledges everything else
type Interactive struct {
	in  *bufio.Reader
	out io.Writer
	// OnAuth is called with the suggested file name and the issued token
	OnAuth func(name, token string) error
}

// NewInteractive creates an Interactive responder over in and out
func NewInteractive(in io.Reader, out io.Writer) *Interactive {
	return &Interactive{in: bufio.NewReader(in), out: out}
}

// Respond implements Responder
func (i *Interactive) Respond(msg protocol.Message) (string, error) {
	switch msg.Type {
	case protocol.TypeOption, protocol.TypeUsername, protocol.TypePassword, protocol.TypeToken:
		return i.prompt("> ")
	case protocol.TypeTurn:
		return i.prompt("[press enter] ")
	case protocol.TypeGameOver:
		return i.prompt("Play again? (Y/N) ")
	case protocol.TypeAuth:
		name, token, _ := strings.Cut(msg.Payload, "\n")
		if i.OnAuth != nil {
			if err := i.OnAuth(name, token); err != nil {
				return "", err
			}
		}
		return "OK", nil
	default:
		return "OK", nil
	}
}

func (i *Interactive) prompt(p string) (string, error) {
	_, _ = fmt.Fprint(i.out, p)
	line, err := i.in.ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// printMessage renders a server message for humans
func printMessage(w io.Writer, msg protocol.Message) {
	switch msg.Type {
	case protocol.TypePing:
		return
	case protocol.TypeAuth:
		name, _, _ := strings.Cut(msg.Payload, "\n")
		_, _ = fmt.Fprintf(w, "Authenticated (token saved as %s)\n", name)
	default:
		_, _ = fmt.Fprintln(w, msg.Payload)
	}
}
