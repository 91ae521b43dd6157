// Package factory wires the server components from configuration.
package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/mcoot/dicemeister/internal/api"
	"github.com/mcoot/dicemeister/internal/api/sse"
	"github.com/mcoot/dicemeister/internal/config"
	"github.com/mcoot/dicemeister/internal/dependencies/clock"
	"github.com/mcoot/dicemeister/internal/dependencies/random"
	"github.com/mcoot/dicemeister/internal/services/auth"
	"github.com/mcoot/dicemeister/internal/services/game"
	"github.com/mcoot/dicemeister/internal/services/matchmaking"
	"github.com/mcoot/dicemeister/internal/services/monitor"
	"github.com/mcoot/dicemeister/internal/services/queue"
	"github.com/mcoot/dicemeister/internal/services/ranking"
	"github.com/mcoot/dicemeister/internal/storage"
	"github.com/mcoot/dicemeister/internal/storage/file"
	"github.com/mcoot/dicemeister/internal/storage/memory"
	"github.com/mcoot/dicemeister/internal/storage/postgres"
	redisstorage "github.com/mcoot/dicemeister/internal/storage/redis"
	"github.com/mcoot/dicemeister/internal/workerpool"
)

// App contains all wired application components
type App struct {
	Config *config.Config
	Logger *slog.Logger

	// Storage
	Storage storage.Storage

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Services
	Ranking   *ranking.Service
	Queue     *queue.Manager
	Games     *game.Controller
	Scheduler *matchmaking.Scheduler
	Gateway   *auth.Gateway
	Monitor   *monitor.Monitor
	Hub       *sse.Hub

	// Worker pools
	AuthPool *workerpool.Pool
	GamePool *workerpool.Pool
}

// New creates a new application with all dependencies wired
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	store, err := OpenStorage(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	app, err := newWithDependencies(cfg, store, clock.New(), random.New(), logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return app, nil
}

// OpenStorage opens the configured ranking backend
func OpenStorage(ctx context.Context, cfg config.StorageConfig) (storage.Storage, error) {
	switch cfg.Type {
	case config.StorageMemory:
		return memory.New(), nil
	case config.StorageFile:
		return file.Open(cfg.Path)
	case config.StorageRedis:
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = cfg.RedisURL
		return redisstorage.New(redisCfg)
	case config.StoragePostgres:
		return postgres.New(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	cfg *config.Config,
	store storage.Storage,
	clk clock.Clock,
	rnd random.Random,
	logger *slog.Logger,
) (*App, error) {
	policy, err := matchmaking.NewPolicy(cfg.MatchMode(), clk, cfg.Match.TimeFactor)
	if err != nil {
		return nil, err
	}

	rankingService := ranking.New(store, ranking.Config{
		BcryptCost:      cfg.Auth.BcryptCost,
		LeaderboardSize: cfg.Status.LeaderboardSize,
	}, logger)
	queueManager := queue.New(logger)

	gamePool := workerpool.New("game", cfg.Game.Workers, logger)
	authPool := workerpool.New("auth", cfg.Auth.Workers, logger)

	games := game.NewController(rankingService, queueManager, clk, rnd, game.Config{
		Rounds:  cfg.Game.Rounds,
		DiceMin: cfg.Game.DiceMin,
		DiceMax: cfg.Game.DiceMax,
	}, logger)

	scheduler := matchmaking.NewScheduler(queueManager, gamePool, games, policy, matchmaking.Config{
		GroupSize:     cfg.Match.GroupSize,
		PingInterval:  cfg.Match.PingInterval,
		RetryInterval: cfg.Match.RetryInterval,
	}, logger)

	// Socket deadlines are compared against wall time
	gateway := auth.New(
		rankingService,
		scheduler,
		auth.NewTokenIssuer(cfg.Auth.BcryptCost),
		authPool,
		clock.New(),
		auth.Config{Timeout: cfg.Auth.Timeout},
		logger,
	)

	mon := monitor.New(cfg.MatchMode(), queueManager, games, rankingService, clk,
		monitor.Config{QueuePreview: cfg.Status.QueuePreview}, logger)

	return &App{
		Config:    cfg,
		Logger:    logger,
		Storage:   store,
		Clock:     clk,
		Random:    rnd,
		Ranking:   rankingService,
		Queue:     queueManager,
		Games:     games,
		Scheduler: scheduler,
		Gateway:   gateway,
		Monitor:   mon,
		Hub:       sse.NewHub(logger),
		AuthPool:  authPool,
		GamePool:  gamePool,
	}, nil
}

// Handler returns the HTTP router for the operator API and WebSocket players
func (a *App) Handler() http.Handler {
	return api.NewRouter(api.RouterConfig{
		Logger:          a.Logger,
		Status:          a.Monitor,
		Leaderboard:     a.Ranking,
		Hub:             a.Hub,
		Gateway:         a.Gateway,
		OperatorToken:   a.Config.Server.OperatorToken,
		LeaderboardSize: a.Config.Status.LeaderboardSize,
	})
}

// Serve runs the gateway on tcpLn, the HTTP API on httpLn and the
// background loops until ctx is cancelled or one of them fails. httpLn may
// be nil to run without the HTTP surface.
func (a *App) Serve(ctx context.Context, tcpLn, httpLn net.Listener) error {
	if err := a.Ranking.ResetAllTokens(ctx); err != nil {
		return fmt.Errorf("reset tokens: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Hub.Run()
		return nil
	})
	g.Go(func() error {
		return a.Scheduler.Run(ctx)
	})
	g.Go(func() error {
		return a.Monitor.Run(ctx, a.Hub)
	})
	g.Go(func() error {
		return a.Gateway.Serve(ctx, tcpLn)
	})

	if httpLn != nil {
		serverCfg := api.DefaultServerConfig()
		if a.Config.Server.ShutdownTimeout > 0 {
			serverCfg.ShutdownTimeout = a.Config.Server.ShutdownTimeout
		}
		server := api.NewServer(a.Handler(), serverCfg, a.Logger)
		g.Go(func() error {
			return server.Serve(httpLn)
		})
		g.Go(func() error {
			<-ctx.Done()
			// Open event streams would otherwise hold Shutdown until its deadline
			a.Hub.Close()
			return server.Shutdown(context.Background())
		})
	} else {
		g.Go(func() error {
			<-ctx.Done()
			a.Hub.Close()
			return nil
		})
	}

	return g.Wait()
}

// Close waits for running games up to ctx, drops queued players and
// releases storage
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if err := a.GamePool.Wait(ctx); err != nil {
		errs = append(errs, fmt.Errorf("waiting for games: %w", err))
	}
	for _, s := range a.Queue.Drain() {
		_ = s.Close()
	}
	if err := a.Storage.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close storage: %w", err))
	}
	return errors.Join(errs...)
}
