package matchmaking

import (
	"fmt"

	"github.com/mcoot/dicemeister/internal/dependencies/clock"
	"github.com/mcoot/dicemeister/internal/model"
	"github.com/mcoot/dicemeister/internal/services/queue"
)

// Policy decides which queued players form the next group
type Policy interface {
	Mode() model.MatchMode
	// Selector returns the window chooser for one dispatch attempt. It is
	// built before the queue lock is taken and must not lock anything itself.
	Selector() queue.Selector
	// Matched is called after a group has been removed from the queue
	Matched()
	// Admitted is called after the gateway queues a freshly authenticated player
	Admitted(q *queue.Manager)
}

// NewPolicy builds the policy for a match mode
func NewPolicy(mode model.MatchMode, c clock.Clock, timeFactor int) (Policy, error) {
	switch mode {
	case model.ModeFIFO:
		return FIFO{}, nil
	case model.ModeRank:
		return NewRankPolicy(NewSlackClock(c), timeFactor), nil
	default:
		return nil, fmt.Errorf("%w: %q", model.ErrInvalidMatchMode, mode)
	}
}

// FIFO groups the oldest queued players in arrival order
type FIFO struct{}

func (FIFO) Mode() model.MatchMode { return model.ModeFIFO }

func (FIFO) Selector() queue.Selector { return queue.First }

func (FIFO) Select(entries []*model.Session, n int) (int, bool) {
	return queue.First(entries, n)
}

func (FIFO) Matched() {}

func (FIFO) Admitted(*queue.Manager) {}

// RankPolicy groups players whose ranks lie within a slack that widens
// by one point every timeFactor seconds without a match.
type RankPolicy struct {
	slack      *SlackClock
	timeFactor int64
}

// NewRankPolicy creates a rank-bounded policy
func NewRankPolicy(slack *SlackClock, timeFactor int) *RankPolicy {
	if timeFactor < 1 {
		timeFactor = 1
	}
	return &RankPolicy{slack: slack, timeFactor: int64(timeFactor)}
}

func (p *RankPolicy) Mode() model.MatchMode { return model.ModeRank }

// Slack returns the current tolerated rank spread
func (p *RankPolicy) Slack() int64 {
	seconds := int64(p.slack.Elapsed().Seconds())
	return seconds / p.timeFactor
}

// Selector fixes the slack at call time, so the slack clock is never
// locked while the queue is.
func (p *RankPolicy) Selector() queue.Selector {
	slack := p.Slack()
	return func(entries []*model.Session, n int) (int, bool) {
		return selectWithin(entries, n, slack)
	}
}

// Select is Selector applied once
func (p *RankPolicy) Select(entries []*model.Session, n int) (int, bool) {
	return p.Selector()(entries, n)
}

// selectWithin sorts entries by rank and picks the first window of n
// adjacent players whose rank spread is at most slack.
func selectWithin(entries []*model.Session, n int, slack int64) (int, bool) {
	if n <= 0 || len(entries) < n {
		return 0, false
	}
	queue.SortByRank(entries)

	for i := 0; i+n <= len(entries); i++ {
		if entries[i+n-1].Rank-entries[i].Rank <= slack {
			return i, true
		}
	}
	return 0, false
}

func (p *RankPolicy) Matched() {
	p.slack.Reset()
}

// Admitted keeps the queue in rank order. Slack keeps growing: it only
// restarts when a group is formed.
func (p *RankPolicy) Admitted(q *queue.Manager) {
	q.SortByRank()
}
