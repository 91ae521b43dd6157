package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter writing to w
func NewOutput(format string, w io.Writer) *Output {
	if w == nil {
		w = os.Stdout
	}
	return &Output{format: format, w: w}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		_, _ = fmt.Fprintln(o.w, string(data))
	} else {
		_, _ = fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case StatusResult:
		o.printStatus(v)
	case LeaderboardResult:
		o.printLeaderboard(v.Entries)
	case HealthResult:
		_, _ = fmt.Fprintf(o.w, "Status: %s\n", v.Status)
	case PlayResult:
		o.printPlayResult(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// LeaderboardEntry response type (matches API)
type LeaderboardEntry struct {
	Position int    `json:"position"`
	Username string `json:"username"`
	Rank     int64  `json:"rank"`
}

// LeaderboardResult response type
type LeaderboardResult struct {
	Entries []LeaderboardEntry `json:"entries"`
}

// GameInfo is a running game
type GameInfo struct {
	ID        string    `json:"id"`
	Players   []string  `json:"players"`
	StartedAt time.Time `json:"started_at"`
}

// StatusResult response type
type StatusResult struct {
	Mode        string             `json:"mode"`
	QueueSize   int                `json:"queue_size"`
	Queued      []string           `json:"queued"`
	ActiveGames int                `json:"active_games"`
	Games       []GameInfo         `json:"games"`
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// HealthResult response type
type HealthResult struct {
	Status string `json:"status"`
}

// PlayResult summarizes a finished play session
type PlayResult struct {
	Username  string `json:"username"`
	TokenFile string `json:"token_file,omitempty"`
	Games     int    `json:"games"`
	LastWin   string `json:"last_result,omitempty"`
	Closed    string `json:"closed"`
}

func (o *Output) printStatus(s StatusResult) {
	_, _ = fmt.Fprintf(o.w, "Mode: %s\n", s.Mode)
	_, _ = fmt.Fprintf(o.w, "Queue: %d waiting", s.QueueSize)
	if len(s.Queued) > 0 {
		_, _ = fmt.Fprintf(o.w, " (%s)", strings.Join(s.Queued, ", "))
	}
	_, _ = fmt.Fprintln(o.w)
	_, _ = fmt.Fprintf(o.w, "Active games: %d\n", s.ActiveGames)
	for _, g := range s.Games {
		_, _ = fmt.Fprintf(o.w, "  - %s: %s (since %s)\n", g.ID, strings.Join(g.Players, " vs "), g.StartedAt.Format(time.TimeOnly))
	}
	if len(s.Leaderboard) > 0 {
		_, _ = fmt.Fprintln(o.w, "Leaderboard:")
		o.printLeaderboard(s.Leaderboard)
	}
}

func (o *Output) printLeaderboard(entries []LeaderboardEntry) {
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(o.w, "No ranked players")
		return
	}
	for _, e := range entries {
		_, _ = fmt.Fprintf(o.w, "%3d. %-20s %d\n", e.Position, e.Username, e.Rank)
	}
}

func (o *Output) printPlayResult(p PlayResult) {
	_, _ = fmt.Fprintf(o.w, "Player: %s\n", p.Username)
	if p.TokenFile != "" {
		_, _ = fmt.Fprintf(o.w, "Token saved: %s\n", p.TokenFile)
	}
	_, _ = fmt.Fprintf(o.w, "Games played: %d\n", p.Games)
	if p.LastWin != "" {
		_, _ = fmt.Fprintf(o.w, "Last result: %s\n", p.LastWin)
	}
	_, _ = fmt.Fprintf(o.w, "Closed: %s\n", p.Closed)
}
