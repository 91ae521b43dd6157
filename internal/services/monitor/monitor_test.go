package monitor

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/dicemeister/internal/dependencies/mocks"
	"github.com/mcoot/dicemeister/internal/model"
	"github.com/mcoot/dicemeister/internal/notify"
	"github.com/mcoot/dicemeister/internal/testutil"
)

type fakeQueue struct {
	mu      sync.Mutex
	names   []string
	changes *notify.Notifier
}

func (q *fakeQueue) Snapshot(limit int) (int, []string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.names), append([]string(nil), q.names[:min(limit, len(q.names))]...)
}

func (q *fakeQueue) Changes() <-chan struct{} { return q.changes.Subscribe() }

func (q *fakeQueue) set(names ...string) {
	q.mu.Lock()
	q.names = names
	q.mu.Unlock()
	q.changes.Notify()
}

type fakeGames struct {
	games   []model.GameSummary
	changes *notify.Notifier
}

func (g *fakeGames) Active() []model.GameSummary { return g.games }
func (g *fakeGames) Changes() <-chan struct{}    { return g.changes.Subscribe() }

type fakeBoard struct{ entries []model.LeaderboardEntry }

func (b *fakeBoard) Leaderboard(context.Context) ([]model.LeaderboardEntry, error) {
	return b.entries, nil
}

type recordingSink struct {
	events chan string
}

func (s *recordingSink) BroadcastEvent(name, data string) {
	if name == StatusEvent {
		s.events <- data
	}
}

type MonitorSuite struct {
	suite.Suite
	queue   *fakeQueue
	games   *fakeGames
	board   *fakeBoard
	clock   *mocks.MockClock
	monitor *Monitor
}

func TestMonitorSuite(t *testing.T) {
	suite.Run(t, new(MonitorSuite))
}

func (s *MonitorSuite) SetupTest() {
	s.queue = &fakeQueue{changes: notify.New()}
	s.games = &fakeGames{changes: notify.New()}
	s.board = &fakeBoard{}
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.monitor = New(model.ModeRank, s.queue, s.games, s.board, s.clock, Config{QueuePreview: 5}, testutil.NopLogger())
}

func (s *MonitorSuite) TestStatusCapsQueuePreview() {
	s.queue.set("a", "b", "c", "d", "e", "f", "g")
	s.games.games = []model.GameSummary{{ID: "g1", Players: []string{"x", "y"}}}
	s.board.entries = []model.LeaderboardEntry{{Username: "x", Rank: 9}}

	status, err := s.monitor.Status(context.Background())
	s.Require().NoError(err)

	s.Equal(model.ModeRank, status.Mode)
	s.Equal(7, status.QueueSize)
	s.Equal([]string{"a", "b", "c", "d", "e"}, status.Queued)
	s.Equal(1, status.ActiveGames)
	s.Equal(s.board.entries, status.Leaderboard)
	s.Equal(s.clock.Now(), status.UpdatedAt)
}

func (s *MonitorSuite) TestRunPublishesOnChange() {
	sink := &recordingSink{events: make(chan string, 8)}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.monitor.Run(ctx, sink) }()

	first := s.next(sink)
	s.Equal(0, first.QueueSize)

	s.queue.set("alice")
	var status model.Status
	for status.QueueSize != 1 {
		status = s.next(sink)
	}
	s.Equal([]string{"alice"}, status.Queued)

	cancel()
	s.NoError(<-done)
}

func (s *MonitorSuite) next(sink *recordingSink) model.Status {
	select {
	case data := <-sink.events:
		var status model.Status
		s.Require().NoError(json.Unmarshal([]byte(data), &status))
		return status
	case <-time.After(2 * time.Second):
		s.FailNow("no status published")
		return model.Status{}
	}
}
