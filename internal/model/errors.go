package model

import "errors"

// Common errors used across the application
var (
	// Ranking store errors
	ErrNotFound     = errors.New("record not found")
	ErrConflict     = errors.New("username already exists")
	ErrCorruptStore = errors.New("ranking store is corrupt")

	// Gateway errors
	ErrAuthTimeout = errors.New("authentication timed out")
	ErrClientQuit  = errors.New("client quit")

	// Game errors
	ErrNotEnoughPlayers = errors.New("not enough players to start the game")

	// Configuration errors
	ErrInvalidMatchMode = errors.New("invalid match mode")
)
