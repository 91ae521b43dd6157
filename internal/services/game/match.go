package game

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/mcoot/dicemeister/internal/model"
	"github.com/mcoot/dicemeister/internal/protocol"
)

// match is the state of one running contest
type match struct {
	id      string
	players []*model.Session
	totals  []int64
}

func (m *match) names() []string {
	names := make([]string, len(m.players))
	for i, p := range m.players {
		names[i] = p.Username
	}
	return names
}

// standings renders the SCORE payload for a round
func (m *match) standings(round int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Round: %d\n", round)
	for i, p := range m.players {
		fmt.Fprintf(&b, "%s Score: %d\n", p.Username, m.totals[i])
	}
	return b.String()
}

// broadcast notifies every player except skip and waits for each ack
func (m *match) broadcast(t protocol.MessageType, payload string, skip *model.Session) error {
	for _, p := range m.players {
		if p == skip {
			continue
		}
		if err := p.Notify(t, payload); err != nil {
			return fmt.Errorf("%s to %s: %w", t, p.Username, err)
		}
	}
	return nil
}

// finish sends a terminal message to everyone and closes their connections
func (m *match) finish(reason string) {
	for _, p := range m.players {
		_ = p.Send(protocol.TypeFin, reason)
		_ = p.Close()
	}
}

func sortGames(games []model.GameSummary) {
	slices.SortFunc(games, func(a, b model.GameSummary) int {
		if c := a.StartedAt.Compare(b.StartedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
