package storage

import (
	"context"

	"github.com/mcoot/dicemeister/internal/model"
)

// Storage persists ranking store records.
// Implementations keep records in insertion order so that ranking ties
// resolve the same way across backends.
type Storage interface {
	// ListUsers returns every record in insertion order
	ListUsers(ctx context.Context) ([]model.UserRecord, error)

	// GetUser returns the record for username or model.ErrNotFound
	GetUser(ctx context.Context, username string) (*model.UserRecord, error)

	// FindByToken returns the record holding token or model.ErrNotFound.
	// An empty token never matches.
	FindByToken(ctx context.Context, token string) (*model.UserRecord, error)

	// CreateUser appends a new record or returns model.ErrConflict
	CreateUser(ctx context.Context, rec *model.UserRecord) error

	// UpdateUser replaces an existing record or returns model.ErrNotFound
	UpdateUser(ctx context.Context, rec *model.UserRecord) error

	// ClearTokens sets every stored token to the empty string
	ClearTokens(ctx context.Context) error

	// Close releases backend resources
	Close() error
}
