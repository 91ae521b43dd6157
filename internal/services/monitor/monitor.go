// Package monitor projects server state for operators and pushes it to
// subscribers whenever the queue or the set of running games changes.
package monitor

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/mcoot/dicemeister/internal/dependencies/clock"
	"github.com/mcoot/dicemeister/internal/model"
)

// StatusEvent is the event name used for pushed status snapshots
const StatusEvent = "status"

// QueueView exposes the waiting queue
type QueueView interface {
	Snapshot(limit int) (int, []string)
	Changes() <-chan struct{}
}

// GameView exposes running games
type GameView interface {
	Active() []model.GameSummary
	Changes() <-chan struct{}
}

// Leaderboard supplies the ranking projection
type Leaderboard interface {
	Leaderboard(ctx context.Context) ([]model.LeaderboardEntry, error)
}

// Sink receives pushed events
type Sink interface {
	BroadcastEvent(eventName, data string)
}

// Config holds monitor settings
type Config struct {
	// QueuePreview caps the usernames listed from the queue
	QueuePreview int
}

// Monitor builds operator status snapshots
type Monitor struct {
	mode        model.MatchMode
	queue       QueueView
	games       GameView
	leaderboard Leaderboard
	clock       clock.Clock
	cfg         Config
	logger      *slog.Logger
}

// New creates a Monitor
func New(
	mode model.MatchMode,
	queue QueueView,
	games GameView,
	leaderboard Leaderboard,
	clock clock.Clock,
	cfg Config,
	logger *slog.Logger,
) *Monitor {
	if cfg.QueuePreview <= 0 {
		cfg.QueuePreview = 5
	}
	return &Monitor{
		mode:        mode,
		queue:       queue,
		games:       games,
		leaderboard: leaderboard,
		clock:       clock,
		cfg:         cfg,
		logger:      logger.With(slog.String("component", "monitor")),
	}
}

// Status returns the current snapshot
func (m *Monitor) Status(ctx context.Context) (*model.Status, error) {
	board, err := m.leaderboard.Leaderboard(ctx)
	if err != nil {
		return nil, err
	}
	size, queued := m.queue.Snapshot(m.cfg.QueuePreview)
	games := m.games.Active()

	return &model.Status{
		Mode:        m.mode,
		QueueSize:   size,
		Queued:      queued,
		ActiveGames: len(games),
		Games:       games,
		Leaderboard: board,
		UpdatedAt:   m.clock.Now(),
	}, nil
}

// Run publishes a status snapshot to sink after every change until ctx ends
func (m *Monitor) Run(ctx context.Context, sink Sink) error {
	queueChanges := m.queue.Changes()
	gameChanges := m.games.Changes()

	m.publish(ctx, sink)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-queueChanges:
		case <-gameChanges:
		}
		m.publish(ctx, sink)
	}
}

func (m *Monitor) publish(ctx context.Context, sink Sink) {
	status, err := m.Status(ctx)
	if err != nil {
		m.logger.Error("status snapshot failed", slog.String("error", err.Error()))
		return
	}

	data, err := json.Marshal(status)
	if err != nil {
		m.logger.Error("status encode failed", slog.String("error", err.Error()))
		return
	}

	m.logger.Debug("status published",
		slog.Int("queue_size", status.QueueSize),
		slog.Int("active_games", status.ActiveGames))
	sink.BroadcastEvent(StatusEvent, string(data))
}
