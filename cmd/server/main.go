package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mcoot/dicemeister/internal/config"
	"github.com/mcoot/dicemeister/internal/factory"
	"github.com/mcoot/dicemeister/internal/logging"
)

type flags struct {
	configPath string
	port       int
	httpPort   int
	mode       string
	database   string
	storage    string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "dicemeister [PORT] [MODE] [DATABASE]",
		Short: "Multiplayer dice game server",
		Long: `dicemeister accepts players over TCP (and WebSocket at /ws), queues them,
matches them into dice games and keeps a persistent ranking.

MODE is 0 (or fifo) for first come first served matching and 1 (or rank)
for rank-bounded matching. The positional form mirrors the flags:

  dicemeister 9000 1 databases/ranking.json`,
		Args:         cobra.MaximumNArgs(3),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(f.configPath)
			if err != nil {
				return err
			}
			if err := applyOverrides(cmd, cfg, f, args); err != nil {
				return err
			}
			return run(cfg)
		},
	}

	cmd.Flags().StringVar(&f.configPath, "config", "", "YAML config file")
	cmd.Flags().IntVar(&f.port, "port", 0, "TCP port for players (env: DICE_TCP_PORT)")
	cmd.Flags().IntVar(&f.httpPort, "http-port", 0, "HTTP port for the operator API and /ws (env: DICE_HTTP_PORT)")
	cmd.Flags().StringVar(&f.mode, "mode", "", "Match mode: 0|fifo or 1|rank (env: DICE_MODE)")
	cmd.Flags().StringVar(&f.database, "database", "", "Ranking file for file storage (env: DICE_DATABASE)")
	cmd.Flags().StringVar(&f.storage, "storage", "", "Storage backend: file, memory, redis, postgres (env: DICE_STORAGE)")

	return cmd
}

// applyOverrides layers positional arguments, then explicit flags, over the
// loaded configuration
func applyOverrides(cmd *cobra.Command, cfg *config.Config, f flags, args []string) error {
	if len(args) > 0 {
		port, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid port %q", args[0])
		}
		cfg.Server.TCPPort = port
	}
	if len(args) > 1 {
		cfg.Match.Mode = args[1]
	}
	if len(args) > 2 {
		cfg.Storage.Path = args[2]
	}

	if cmd.Flags().Changed("port") {
		cfg.Server.TCPPort = f.port
	}
	if cmd.Flags().Changed("http-port") {
		cfg.Server.HTTPPort = f.httpPort
	}
	if cmd.Flags().Changed("mode") {
		cfg.Match.Mode = f.mode
	}
	if cmd.Flags().Changed("database") {
		cfg.Storage.Path = f.database
	}
	if cmd.Flags().Changed("storage") {
		cfg.Storage.Type = f.storage
	}

	return cfg.Validate()
}

func run(cfg *config.Config) error {
	logger := logging.New(os.Stdout, cfg.Log.Format, cfg.Log.Level)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := factory.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to create application", slog.String("error", err.Error()))
		return err
	}

	tcpLn, err := net.Listen("tcp", net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.TCPPort)))
	if err != nil {
		_ = app.Storage.Close()
		return fmt.Errorf("listen tcp: %w", err)
	}
	httpLn, err := net.Listen("tcp", net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.HTTPPort)))
	if err != nil {
		_ = tcpLn.Close()
		_ = app.Storage.Close()
		return fmt.Errorf("listen http: %w", err)
	}

	logger.Info("server started",
		slog.String("tcp_addr", tcpLn.Addr().String()),
		slog.String("http_addr", httpLn.Addr().String()),
		slog.String("mode", cfg.Match.Mode),
		slog.String("storage", cfg.Storage.Type))

	serveErr := app.Serve(ctx, tcpLn, httpLn)
	if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
		logger.Error("server error", slog.String("error", serveErr.Error()))
	} else {
		serveErr = nil
		logger.Info("shutdown signal received")
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout(cfg))
	defer cancel()
	if err := app.Close(closeCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		return errors.Join(serveErr, err)
	}

	logger.Info("server stopped")
	return serveErr
}

func shutdownTimeout(cfg *config.Config) time.Duration {
	if cfg.Server.ShutdownTimeout > 0 {
		return cfg.Server.ShutdownTimeout
	}
	return 10 * time.Second
}
