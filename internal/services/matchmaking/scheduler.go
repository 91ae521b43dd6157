// Package matchmaking forms game groups from the waiting queue.
package matchmaking

import (
	"context"
	"log/slog"
	"time"

	"github.com/mcoot/dicemeister/internal/model"
	"github.com/mcoot/dicemeister/internal/services/queue"
	"github.com/mcoot/dicemeister/internal/workerpool"
)

// Runner plays one game for a group. It owns the sessions until it returns.
type Runner interface {
	Play(ctx context.Context, group []*model.Session)
}

// Config holds scheduler settings
type Config struct {
	GroupSize int
	// PingInterval is the period of the queue liveness probe
	PingInterval time.Duration
	// RetryInterval re-checks the queue while nothing changes so a
	// widening slack is noticed
	RetryInterval time.Duration
}

// DefaultConfig returns the stock scheduler settings
func DefaultConfig() Config {
	return Config{
		GroupSize:     2,
		PingInterval:  10 * time.Second,
		RetryInterval: time.Second,
	}
}

// Scheduler dispatches groups from the queue to the game pool
type Scheduler struct {
	queue  *queue.Manager
	pool   *workerpool.Pool
	runner Runner
	policy Policy
	cfg    Config
	logger *slog.Logger
}

// NewScheduler creates a Scheduler
func NewScheduler(
	q *queue.Manager,
	pool *workerpool.Pool,
	runner Runner,
	policy Policy,
	cfg Config,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		queue:  q,
		pool:   pool,
		runner: runner,
		policy: policy,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "scheduler"), slog.String("mode", string(policy.Mode()))),
	}
}

// Mode returns the active match mode
func (s *Scheduler) Mode() model.MatchMode {
	return s.policy.Mode()
}

// Admit queues a freshly authenticated session
func (s *Scheduler) Admit(session *model.Session) error {
	if err := s.queue.Enqueue(session); err != nil {
		return err
	}
	s.policy.Admitted(s.queue)
	return nil
}

// Run dispatches groups until ctx is cancelled. It wakes on queue changes
// rather than polling.
func (s *Scheduler) Run(ctx context.Context) error {
	changes := s.queue.Changes()

	probe := time.NewTicker(s.cfg.PingInterval)
	defer probe.Stop()

	var retry <-chan time.Time
	if s.cfg.RetryInterval > 0 {
		t := time.NewTicker(s.cfg.RetryInterval)
		defer t.Stop()
		retry = t.C
	}

	s.logger.Info("scheduler started", slog.Int("group_size", s.cfg.GroupSize))

	for {
		for {
			dispatched, err := s.TryDispatch(ctx)
			if err != nil {
				s.logger.Info("scheduler stopped")
				return nil
			}
			if !dispatched {
				break
			}
		}

		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return nil
		case <-changes:
		case <-retry:
		case <-probe.C:
			if dropped := s.queue.Probe(); dropped > 0 {
				s.logger.Info("liveness probe dropped players", slog.Int("dropped", dropped))
			}
		}
	}
}

// TryDispatch removes at most one group and hands it to the game pool,
// blocking while the pool is full. It reports whether a group was dispatched.
func (s *Scheduler) TryDispatch(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	group := s.queue.DequeueGroup(s.cfg.GroupSize, s.policy.Selector())
	if group == nil {
		return false, nil
	}
	s.policy.Matched()

	names := make([]string, len(group))
	for i, p := range group {
		names[i] = p.Username
	}
	s.logger.Info("group formed", slog.Any("players", names))

	// Games run to completion even when the server is stopping
	gameCtx := context.WithoutCancel(ctx)
	err := s.pool.Submit(ctx, func() {
		s.runner.Play(gameCtx, group)
	})
	if err != nil {
		for _, p := range group {
			_ = p.Close()
		}
		s.logger.Warn("group dropped at shutdown", slog.Any("players", names))
		return false, err
	}
	return true, nil
}
