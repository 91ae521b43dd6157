package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mcoot/dicemeister/internal/protocol"
)

type playOptions struct {
	addr      string
	wsURL     string
	auto      bool
	username  string
	password  string
	register  bool
	tokenFile string
	tokenDir  string
	games     int
}

func newPlayCmd() *cobra.Command {
	opts := playOptions{
		addr:     getEnvOrDefault("DICECTL_ADDR", "localhost:9000"),
		tokenDir: getEnvOrDefault("DICECTL_TOKEN_DIR", defaultTokenDir()),
		games:    1,
	}

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Join the queue and play dice games",
		Long: `Connect to the game server as a player.

Without --auto every prompt is shown and answered from stdin. With --auto
the client logs in (or registers with --register, or reconnects with
--token-file), throws whenever it is its turn and asks to play again until
--again games have been played.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.auto && opts.tokenFile == "" && (opts.username == "" || opts.password == "") {
				return errors.New("--auto needs --user and --pass, or --token-file")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runPlay(ctx, opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", opts.addr, "TCP address of the game server (env: DICECTL_ADDR)")
	cmd.Flags().StringVar(&opts.wsURL, "ws", "", "Play over WebSocket instead, e.g. ws://localhost:8080/ws")
	cmd.Flags().BoolVar(&opts.auto, "auto", false, "Play without prompting")
	cmd.Flags().StringVar(&opts.username, "user", "", "Username for --auto")
	cmd.Flags().StringVar(&opts.password, "pass", "", "Password for --auto")
	cmd.Flags().BoolVar(&opts.register, "register", false, "Register the account before playing")
	cmd.Flags().StringVar(&opts.tokenFile, "token-file", "", "Reconnect with a saved token")
	cmd.Flags().StringVar(&opts.tokenDir, "token-dir", opts.tokenDir, "Directory for saved tokens (env: DICECTL_TOKEN_DIR)")
	cmd.Flags().IntVar(&opts.games, "again", opts.games, "Games to play before leaving")
	cmd.Flags().IntVar(&opts.games, "rounds-to-play", opts.games, "Alias for --again")
	_ = cmd.Flags().MarkHidden("rounds-to-play")

	return cmd
}

func dial(ctx context.Context, opts playOptions) (protocol.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if opts.wsURL != "" {
		conn, err := protocol.DialWS(ctx, opts.wsURL)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
	conn, err := protocol.DialTCP(ctx, opts.addr)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func runPlay(ctx context.Context, opts playOptions, in io.Reader, w io.Writer) error {
	conn, err := dial(ctx, opts)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	defer func() { _ = conn.Close() }()

	result := PlayResult{Username: opts.username}
	onAuth := func(name, token string) error {
		path, err := SaveToken(opts.tokenDir, name, token)
		if err != nil {
			return fmt.Errorf("save token: %w", err)
		}
		result.TokenFile = path
		return nil
	}

	var responder Responder
	var bot *AutoPlayer
	if opts.auto {
		bot = &AutoPlayer{
			Username: opts.username,
			Password: opts.password,
			Register: opts.register,
			Games:    opts.games,
			OnAuth:   onAuth,
		}
		if opts.tokenFile != "" {
			if bot.Token, err = LoadToken(opts.tokenFile); err != nil {
				return fmt.Errorf("load token: %w", err)
			}
		}
		responder = bot
	} else {
		interactive := NewInteractive(in, w)
		interactive.OnAuth = onAuth
		responder = interactive
	}

	out := NewOutput(cfg.Output, w)
	transcript := func(msg protocol.Message) {
		if cfg.Verbose || !opts.auto {
			printMessage(w, msg)
		}
	}

	closed, err := RunSession(conn, responder, transcript)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	result.Closed = closed
	if bot != nil {
		result.Games = bot.Played()
		result.LastWin = bot.LastResult()
	}
	out.Print(result)

	if bot != nil && bot.GaveUp() {
		return ErrGaveUp
	}
	return nil
}

