package model

import (
	"fmt"
	"strings"
)

// MatchMode selects the matchmaking policy
type MatchMode string

const (
	ModeFIFO MatchMode = "fifo"
	ModeRank MatchMode = "rank"
)

// ParseMatchMode accepts "fifo", "simple" or "0" for FIFO and "rank" or "1" for rank-bounded
func ParseMatchMode(s string) (MatchMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fifo", "simple", "0":
		return ModeFIFO, nil
	case "rank", "ranking", "1":
		return ModeRank, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMatchMode, s)
	}
}
