package memory

import (
	"context"
	"sync"

	"github.com/mcoot/dicemeister/internal/model"
	"github.com/mcoot/dicemeister/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu sync.RWMutex

	users map[string]*model.UserRecord
	order []string
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		users: make(map[string]*model.UserRecord),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

func (s *Storage) ListUsers(ctx context.Context) ([]model.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]model.UserRecord, 0, len(s.order))
	for _, name := range s.order {
		users = append(users, *s.users[name])
	}
	return users, nil
}

func (s *Storage) GetUser(ctx context.Context, username string) (*model.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.users[username]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *Storage) FindByToken(ctx context.Context, token string) (*model.UserRecord, error) {
	if token == "" {
		return nil, model.ErrNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, name := range s.order {
		if rec := s.users[name]; rec.Token == token {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, model.ErrNotFound
}

func (s *Storage) CreateUser(ctx context.Context, rec *model.UserRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[rec.Username]; ok {
		return model.ErrConflict
	}
	cp := *rec
	s.users[rec.Username] = &cp
	s.order = append(s.order, rec.Username)
	return nil
}

func (s *Storage) UpdateUser(ctx context.Context, rec *model.UserRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[rec.Username]; !ok {
		return model.ErrNotFound
	}
	cp := *rec
	s.users[rec.Username] = &cp
	return nil
}

func (s *Storage) ClearTokens(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.users {
		rec.Token = ""
	}
	return nil
}

// Close is a no-op for in-memory storage
func (s *Storage) Close() error {
	return nil
}
