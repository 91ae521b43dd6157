package ranking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/dicemeister/internal/model"
	"github.com/mcoot/dicemeister/internal/storage"
)

// Config holds configuration for the ranking service
type Config struct {
	// BcryptCost is the work factor for password hashes
	BcryptCost int
	// LeaderboardSize caps Leaderboard results
	LeaderboardSize int
}

// DefaultConfig returns default ranking configuration
func DefaultConfig() Config {
	return Config{
		BcryptCost:      bcrypt.DefaultCost,
		LeaderboardSize: 5,
	}
}

// Service implements the ranking store operations on top of a Storage backend.
// A single mutex serializes every read-modify-write against the backend.
type Service struct {
	storage storage.Storage
	cfg     Config
	logger  *slog.Logger

	mu sync.Mutex
}

// New creates a new ranking service
func New(store storage.Storage, cfg Config, logger *slog.Logger) *Service {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = DefaultConfig().BcryptCost
	}
	if cfg.LeaderboardSize == 0 {
		cfg.LeaderboardSize = DefaultConfig().LeaderboardSize
	}
	return &Service{
		storage: store,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "ranking")),
	}
}

// Login verifies credentials and assigns newToken to the user.
// Unknown usernames and wrong passwords both yield model.ErrNotFound.
func (s *Service) Login(ctx context.Context, username, password, newToken string) (*model.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.storage.GetUser(ctx, username)
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(password)); err != nil {
		return nil, model.ErrNotFound
	}

	rec.Token = newToken
	if err := s.storage.UpdateUser(ctx, rec); err != nil {
		return nil, fmt.Errorf("store token: %w", err)
	}

	s.logger.Info("user logged in", slog.String("username", username))
	return rec, nil
}

// Register creates a user with rank 0 or returns model.ErrConflict
func (s *Service) Register(ctx context.Context, username, password, newToken string) (*model.UserRecord, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	rec := &model.UserRecord{
		Username:     username,
		PasswordHash: string(hash),
		Token:        newToken,
		Rank:         0,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.storage.CreateUser(ctx, rec); err != nil {
		return nil, err
	}

	s.logger.Info("user registered", slog.String("username", username))
	return rec, nil
}

// Reconnect resumes the user holding token or returns model.ErrNotFound
func (s *Service) Reconnect(ctx context.Context, token string) (*model.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.storage.FindByToken(ctx, token)
}

// UpdateRank adds delta to the user's rank. Unknown users are ignored.
func (s *Service) UpdateRank(ctx context.Context, username string, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.storage.GetUser(ctx, username)
	if errors.Is(err, model.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	rec.Rank += delta
	return s.storage.UpdateUser(ctx, rec)
}

// InvalidateToken clears the user's token. Unknown users are ignored.
func (s *Service) InvalidateToken(ctx context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.storage.GetUser(ctx, username)
	if errors.Is(err, model.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	rec.Token = ""
	return s.storage.UpdateUser(ctx, rec)
}

// ResetAllTokens clears every stored token
func (s *Service) ResetAllTokens(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.storage.ClearTokens(ctx)
}

// Leaderboard returns the top users by rank, descending. Ties keep store order.
func (s *Service) Leaderboard(ctx context.Context) ([]model.LeaderboardEntry, error) {
	s.mu.Lock()
	users, err := s.storage.ListUsers(ctx)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	sort.SliceStable(users, func(i, j int) bool {
		return users[i].Rank > users[j].Rank
	})

	n := min(len(users), s.cfg.LeaderboardSize)
	entries := make([]model.LeaderboardEntry, n)
	for i := range n {
		entries[i] = model.LeaderboardEntry{Username: users[i].Username, Rank: users[i].Rank}
	}
	return entries, nil
}
