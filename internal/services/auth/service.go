// Package auth runs the connection gateway: the menu and credential
// dialogue that turns a raw connection into a queued session.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/mcoot/dicemeister/internal/dependencies/clock"
	"github.com/mcoot/dicemeister/internal/model"
	"github.com/mcoot/dicemeister/internal/protocol"
	"github.com/mcoot/dicemeister/internal/workerpool"
)

const (
	menuText         = "1 - Login\n2 - Register\n3 - Reconnect\n4 - Quit"
	usernamePrompt   = "Username?"
	passwordPrompt   = "Password?"
	tokenPrompt      = "Token?"
	terminatedText   = "Connection terminated"
	optionRefused    = "Option refused"
	wrongCredentials = "Wrong username or password"
	usernameInUse    = "Username already in use"
	invalidToken     = "Invalid session token"
)

// Ranking is the subset of the ranking store the gateway needs
type Ranking interface {
	Login(ctx context.Context, username, password, newToken string) (*model.UserRecord, error)
	Register(ctx context.Context, username, password, newToken string) (*model.UserRecord, error)
	Reconnect(ctx context.Context, token string) (*model.UserRecord, error)
}

// Admitter takes ownership of authenticated sessions
type Admitter interface {
	Admit(s *model.Session) error
}

// Config holds gateway settings
type Config struct {
	// Timeout bounds the whole dialogue, measured from connection start
	Timeout      time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns default gateway configuration
func DefaultConfig() Config {
	return Config{
		Timeout:      30 * time.Second,
		WriteTimeout: protocol.DefaultWriteTimeout,
	}
}

// Gateway authenticates connections on a bounded worker pool
type Gateway struct {
	ranking Ranking
	admit   Admitter
	tokens  *TokenIssuer
	pool    *workerpool.Pool
	clock   clock.Clock
	cfg     Config
	logger  *slog.Logger
}

// New creates a Gateway
func New(
	ranking Ranking,
	admit Admitter,
	tokens *TokenIssuer,
	pool *workerpool.Pool,
	clock clock.Clock,
	cfg Config,
	logger *slog.Logger,
) *Gateway {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultConfig().WriteTimeout
	}
	return &Gateway{
		ranking: ranking,
		admit:   admit,
		tokens:  tokens,
		pool:    pool,
		clock:   clock,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "gateway")),
	}
}

// Serve accepts TCP connections until ctx is cancelled or the listener closes
func (g *Gateway) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	g.logger.Info("accepting connections", slog.String("addr", ln.Addr().String()))

	for {
		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				g.logger.Info("listener closed")
				return nil
			}
			g.logger.Warn("accept failed", slog.String("error", err.Error()))
			continue
		}

		if err := g.Submit(ctx, protocol.NewStreamConn(nc, g.cfg.WriteTimeout)); err != nil {
			return nil
		}
	}
}

// Submit runs the dialogue for conn on the auth pool, waiting for a free
// slot. The connection is closed if ctx ends first.
func (g *Gateway) Submit(ctx context.Context, conn protocol.Conn) error {
	err := g.pool.Submit(ctx, func() {
		if err := g.Handle(ctx, conn); err != nil {
			g.logger.Info("connection ended before queueing",
				slog.String("remote_addr", conn.RemoteAddr()),
				slog.String("error", err.Error()))
		}
	})
	if err != nil {
		_ = conn.Close()
	}
	return err
}

// Handle drives the menu dialogue on conn until the player is admitted to
// the queue, quits, or runs out of time. On error the connection is closed.
func (g *Gateway) Handle(ctx context.Context, conn protocol.Conn) error {
	logger := g.logger.With(slog.String("remote_addr", conn.RemoteAddr()))
	logger.Info("client connected")

	deadline := g.clock.Now().Add(g.cfg.Timeout)
	if err := conn.SetReadDeadline(deadline); err != nil {
		_ = conn.Close()
		return fmt.Errorf("set deadline: %w", err)
	}

	rec, err := g.authenticate(ctx, conn, deadline, logger)
	if err != nil {
		if errors.Is(err, model.ErrAuthTimeout) || isTimeout(err) {
			_ = protocol.Send(conn, protocol.TypeFin, terminatedText)
			err = model.ErrAuthTimeout
		}
		_ = conn.Close()
		return err
	}

	// The timeout covers authentication only
	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		_ = conn.Close()
		return fmt.Errorf("clear deadline: %w", err)
	}

	logger.Info("client authenticated", slog.String("username", rec.Username))
	if err := g.admit.Admit(model.NewSession(rec, conn)); err != nil {
		_ = conn.Close()
		return fmt.Errorf("admit %s: %w", rec.Username, err)
	}
	return nil
}

func (g *Gateway) authenticate(ctx context.Context, conn protocol.Conn, deadline time.Time, logger *slog.Logger) (*model.UserRecord, error) {
	for {
		if !g.clock.Now().Before(deadline) {
			return nil, model.ErrAuthTimeout
		}

		input, err := protocol.Request(conn, protocol.TypeOption, menuText)
		if err != nil {
			return nil, err
		}

		choice := model.ParseMenuChoice(input)
		logger.Debug("menu choice", slog.String("choice", choice.String()))

		var rec *model.UserRecord
		switch choice {
		case model.MenuLogin:
			rec, err = g.login(ctx, conn)
		case model.MenuRegister:
			rec, err = g.register(ctx, conn)
		case model.MenuReconnect:
			rec, err = g.reconnect(ctx, conn)
		case model.MenuQuit:
			_ = protocol.Send(conn, protocol.TypeFin, terminatedText)
			return nil, model.ErrClientQuit
		default:
			err = protocol.Notify(conn, protocol.TypeNack, optionRefused)
		}
		if err != nil {
			return nil, err
		}
		if rec != nil {
			return rec, nil
		}
	}
}

// credentials prompts for a username and password. ok is false when the
// player backs out at either prompt.
func (g *Gateway) credentials(conn protocol.Conn) (username, password string, ok bool, err error) {
	username, err = protocol.Request(conn, protocol.TypeUsername, usernamePrompt)
	if err != nil || username == model.BackInput {
		return "", "", false, err
	}
	password, err = protocol.Request(conn, protocol.TypePassword, passwordPrompt)
	if err != nil || password == model.BackInput {
		return "", "", false, err
	}
	return username, password, true, nil
}

func (g *Gateway) login(ctx context.Context, conn protocol.Conn) (*model.UserRecord, error) {
	username, password, ok, err := g.credentials(conn)
	if !ok {
		return nil, err
	}

	token, err := g.tokens.NextToken(username)
	if err != nil {
		return nil, g.refuse(conn, err.Error())
	}

	rec, err := g.ranking.Login(ctx, username, password, token)
	switch {
	case errors.Is(err, model.ErrNotFound):
		return nil, g.refuse(conn, wrongCredentials)
	case err != nil:
		return nil, g.refuse(conn, err.Error())
	}
	return rec, g.grant(conn, rec.Username, token)
}

func (g *Gateway) register(ctx context.Context, conn protocol.Conn) (*model.UserRecord, error) {
	username, password, ok, err := g.credentials(conn)
	if !ok {
		return nil, err
	}

	token, err := g.tokens.NextToken(username)
	if err != nil {
		return nil, g.refuse(conn, err.Error())
	}

	rec, err := g.ranking.Register(ctx, username, password, token)
	switch {
	case errors.Is(err, model.ErrConflict):
		return nil, g.refuse(conn, usernameInUse)
	case err != nil:
		return nil, g.refuse(conn, err.Error())
	}
	return rec, g.grant(conn, rec.Username, token)
}

func (g *Gateway) reconnect(ctx context.Context, conn protocol.Conn) (*model.UserRecord, error) {
	token, err := protocol.Request(conn, protocol.TypeToken, tokenPrompt)
	if err != nil || token == model.BackInput {
		return nil, err
	}

	rec, err := g.ranking.Reconnect(ctx, token)
	switch {
	case errors.Is(err, model.ErrNotFound):
		return nil, g.refuse(conn, invalidToken)
	case err != nil:
		return nil, g.refuse(conn, err.Error())
	}
	return rec, g.grant(conn, rec.Username, token)
}

// grant sends AUTH with the suggested token file name and the token
func (g *Gateway) grant(conn protocol.Conn, username, token string) error {
	return protocol.Notify(conn, protocol.TypeAuth, TokenFileName(username)+"\n"+token)
}

// refuse sends NACK and returns only transport errors
func (g *Gateway) refuse(conn protocol.Conn, reason string) error {
	return protocol.Notify(conn, protocol.TypeNack, reason)
}

// TokenFileName is the file name clients are told to store a token under
func TokenFileName(username string) string {
	return "token-" + username + ".txt"
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
