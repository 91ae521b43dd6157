package model

// UserRecord is one persisted ranking store entry
type UserRecord struct {
	Username     string `json:"username"`
	PasswordHash string `json:"password"`
	Token        string `json:"token"`
	Rank         int64  `json:"rank"`
}

// LeaderboardEntry is one row of the top-ranked projection
type LeaderboardEntry struct {
	Username string `json:"username"`
	Rank     int64  `json:"rank"`
}
