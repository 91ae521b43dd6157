package model

import "time"

// GameSummary describes one running game session
type GameSummary struct {
	ID        string    `json:"id"`
	Players   []string  `json:"players"`
	StartedAt time.Time `json:"started_at"`
}

// Status is the operator-facing projection of server state
type Status struct {
	Mode        MatchMode          `json:"mode"`
	QueueSize   int                `json:"queue_size"`
	Queued      []string           `json:"queued"`
	ActiveGames int                `json:"active_games"`
	Games       []GameSummary      `json:"games"`
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
	UpdatedAt   time.Time          `json:"updated_at"`
}
