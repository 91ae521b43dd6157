package response

import (
	"time"

	"github.com/mcoot/dicemeister/internal/model"
)

// LeaderboardEntry is one ranked user
type LeaderboardEntry struct {
	Position int    `json:"position"`
	Username string `json:"username"`
	Rank     int64  `json:"rank"`
}

// LeaderboardFromModel numbers entries from 1
func LeaderboardFromModel(entries []model.LeaderboardEntry) []LeaderboardEntry {
	out := make([]LeaderboardEntry, len(entries))
	for i, e := range entries {
		out[i] = LeaderboardEntry{Position: i + 1, Username: e.Username, Rank: e.Rank}
	}
	return out
}

// Leaderboard is the response for GET /leaderboard
type Leaderboard struct {
	Entries []LeaderboardEntry `json:"entries"`
}

// Game is a running game
type Game struct {
	ID        string    `json:"id"`
	Players   []string  `json:"players"`
	StartedAt time.Time `json:"started_at"`
}

// Status is the operator view of the server
type Status struct {
	Mode        string             `json:"mode"`
	QueueSize   int                `json:"queue_size"`
	Queued      []string           `json:"queued"`
	ActiveGames int                `json:"active_games"`
	Games       []Game             `json:"games"`
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// StatusFromModel converts model.Status
func StatusFromModel(s *model.Status) Status {
	games := make([]Game, len(s.Games))
	for i, g := range s.Games {
		games[i] = Game{ID: g.ID, Players: g.Players, StartedAt: g.StartedAt}
	}
	queued := s.Queued
	if queued == nil {
		queued = []string{}
	}
	return Status{
		Mode:        string(s.Mode),
		QueueSize:   s.QueueSize,
		Queued:      queued,
		ActiveGames: s.ActiveGames,
		Games:       games,
		Leaderboard: LeaderboardFromModel(s.Leaderboard),
		UpdatedAt:   s.UpdatedAt,
	}
}

// Health is the response for GET /health
type Health struct {
	Status string `json:"status"`
}
