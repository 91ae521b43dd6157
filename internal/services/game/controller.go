// Package game runs dice contests for matched groups.
package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/mcoot/dicemeister/internal/dependencies/clock"
	"github.com/mcoot/dicemeister/internal/dependencies/random"
	"github.com/mcoot/dicemeister/internal/model"
	"github.com/mcoot/dicemeister/internal/notify"
	"github.com/mcoot/dicemeister/internal/protocol"
)

const (
	startedMessage     = "Game Started"
	notEnoughMessage   = "Not enough players to start the game"
	turnMessage        = "Your turn to throw the dice. Press any character to continue"
	abortMessage       = "Exception ocurred during game. Connection close."
	closeMessage       = "Connection close"
	playAgainAnswer    = "Y"
	minPlayersPerGroup = 2
)

// Ranker persists game outcomes
type Ranker interface {
	UpdateRank(ctx context.Context, username string, delta int64) error
	InvalidateToken(ctx context.Context, username string) error
}

// Requeuer takes players who want another game
type Requeuer interface {
	Enqueue(s *model.Session) error
}

// Config holds the contest rules
type Config struct {
	Rounds  int
	DiceMin int
	DiceMax int
}

// DefaultConfig returns two rounds of a 1..12 roll
func DefaultConfig() Config {
	return Config{Rounds: 2, DiceMin: 1, DiceMax: 12}
}

// Controller runs games and tracks the ones in progress
type Controller struct {
	ranker   Ranker
	requeuer Requeuer
	clock    clock.Clock
	random   random.Random
	cfg      Config
	logger   *slog.Logger

	mu      sync.Mutex
	active  map[string]model.GameSummary
	changes *notify.Notifier
}

// NewController creates a new game Controller
func NewController(
	ranker Ranker,
	requeuer Requeuer,
	clock clock.Clock,
	random random.Random,
	cfg Config,
	logger *slog.Logger,
) *Controller {
	return &Controller{
		ranker:   ranker,
		requeuer: requeuer,
		clock:    clock,
		random:   random,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "game")),
		active:   make(map[string]model.GameSummary),
		changes:  notify.New(),
	}
}

// Changes returns a channel signalled when a game starts or ends
func (c *Controller) Changes() <-chan struct{} {
	return c.changes.Subscribe()
}

// Active returns the games in progress, oldest first
func (c *Controller) Active() []model.GameSummary {
	c.mu.Lock()
	defer c.mu.Unlock()

	games := make([]model.GameSummary, 0, len(c.active))
	for _, g := range c.active {
		games = append(games, g)
	}
	sortGames(games)
	return games
}

// Play runs one contest to completion. Transport failures abort the game
// for the whole group; they never escape to the caller.
func (c *Controller) Play(ctx context.Context, group []*model.Session) {
	g := &match{
		id:      uuid.NewString(),
		players: group,
		totals:  make([]int64, len(group)),
	}
	logger := c.logger.With(slog.String("game_id", g.id))

	c.track(g)
	defer c.untrack(g)

	logger.Info("game started", slog.Any("players", g.names()))

	winner, err := c.rounds(g, logger)
	if err != nil {
		if errors.Is(err, model.ErrNotEnoughPlayers) {
			g.finish(notEnoughMessage)
			logger.Warn("game cancelled", slog.Int("players", len(group)))
			return
		}
		logger.Error("game aborted", slog.String("error", err.Error()))
		g.finish(abortMessage)
		return
	}

	if err := c.settle(ctx, g); err != nil {
		logger.Error("rank update failed", slog.String("error", err.Error()))
		g.finish(abortMessage)
		return
	}

	logger.Info("game finished", slog.String("winner", winner))
	c.playAgain(ctx, g, winner, logger)
}

// rounds plays every round and announces the results. It returns the
// game-over text naming the winner.
func (c *Controller) rounds(g *match, logger *slog.Logger) (string, error) {
	if err := g.broadcast(protocol.TypeInfo, startedMessage, nil); err != nil {
		return "", err
	}
	if len(g.players) < minPlayersPerGroup {
		return "", model.ErrNotEnoughPlayers
	}

	for round := 1; round <= c.cfg.Rounds; round++ {
		for i, p := range g.players {
			if err := g.broadcast(protocol.TypeScore, g.standings(round), nil); err != nil {
				return "", err
			}
			announce := fmt.Sprintf("It's %s turn to throw the dice", p.Username)
			if err := g.broadcast(protocol.TypeInfo, announce, p); err != nil {
				return "", err
			}
			if _, err := p.Request(protocol.TypeTurn, turnMessage); err != nil {
				return "", fmt.Errorf("turn for %s: %w", p.Username, err)
			}

			roll := c.random.Between(c.cfg.DiceMin, c.cfg.DiceMax)
			g.totals[i] += int64(roll)
			logger.Debug("dice thrown",
				slog.Int("round", round),
				slog.String("username", p.Username),
				slog.Int("roll", roll))
		}
	}

	winner := ""
	var best int64
	for i, p := range g.players {
		result := fmt.Sprintf("Player %s have %d points", p.Username, g.totals[i])
		if err := g.broadcast(protocol.TypeInfo, result, nil); err != nil {
			return "", err
		}
		// Strictly greater: the first player reaching the top score keeps it
		if g.totals[i] > best {
			best = g.totals[i]
			winner = fmt.Sprintf("%s won with %d points!", p.Username, g.totals[i])
		}
	}
	return winner, nil
}

// settle adds each player's total to their stored and session rank
func (c *Controller) settle(ctx context.Context, g *match) error {
	for i, p := range g.players {
		if err := c.ranker.UpdateRank(ctx, p.Username, g.totals[i]); err != nil {
			return fmt.Errorf("update rank for %s: %w", p.Username, err)
		}
		p.Rank += g.totals[i]
	}
	return nil
}

// playAgain asks each player in turn whether to requeue. A failure with one
// player only ends that player's connection.
func (c *Controller) playAgain(ctx context.Context, g *match, winner string, logger *slog.Logger) {
	for _, p := range g.players {
		answer, err := p.Request(protocol.TypeGameOver, winner)
		if err != nil {
			logger.Info("player left after game", slog.String("username", p.Username), slog.String("error", err.Error()))
			_ = p.Close()
			continue
		}

		if strings.ToUpper(strings.TrimSpace(answer)) == playAgainAnswer {
			if err := c.requeuer.Enqueue(p); err != nil {
				logger.Info("requeue failed", slog.String("username", p.Username), slog.String("error", err.Error()))
				_ = p.Close()
			}
			continue
		}

		_ = p.Send(protocol.TypeFin, closeMessage)
		if err := c.ranker.InvalidateToken(ctx, p.Username); err != nil {
			logger.Error("token invalidation failed", slog.String("username", p.Username), slog.String("error", err.Error()))
		}
		_ = p.Close()
		logger.Info("player disconnected", slog.String("username", p.Username))
	}
}

func (c *Controller) track(g *match) {
	c.mu.Lock()
	c.active[g.id] = model.GameSummary{
		ID:        g.id,
		Players:   g.names(),
		StartedAt: c.clock.Now(),
	}
	c.mu.Unlock()
	c.changes.Notify()
}

func (c *Controller) untrack(g *match) {
	c.mu.Lock()
	delete(c.active, g.id)
	c.mu.Unlock()
	c.changes.Notify()
}
