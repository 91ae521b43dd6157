package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/mcoot/dicemeister/internal/model"
	"github.com/mcoot/dicemeister/internal/storage"
)

// document is the on-disk layout: {"database": [ ...records ]}
type document struct {
	Database []model.UserRecord `json:"database"`
}

// Storage keeps the ranking store in one JSON file.
// Every mutation rewrites the whole file before returning.
type Storage struct {
	mu   sync.Mutex
	path string
	doc  document
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Open loads the store at path, creating an empty one if the file is missing.
// Unparseable content yields model.ErrCorruptStore.
func Open(path string) (*Storage, error) {
	s := &Storage{path: path, doc: document{Database: []model.UserRecord{}}}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
		if err := s.flush(); err != nil {
			return nil, err
		}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read store: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", model.ErrCorruptStore, path, err)
	}
	if doc.Database == nil {
		return nil, fmt.Errorf("%w: %s: missing \"database\" array", model.ErrCorruptStore, path)
	}
	s.doc = doc
	return s, nil
}

// Path returns the backing file path
func (s *Storage) Path() string {
	return s.path
}

func (s *Storage) ListUsers(ctx context.Context) ([]model.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]model.UserRecord, len(s.doc.Database))
	copy(users, s.doc.Database)
	return users, nil
}

func (s *Storage) GetUser(ctx context.Context, username string) (*model.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(username)
	if i < 0 {
		return nil, model.ErrNotFound
	}
	rec := s.doc.Database[i]
	return &rec, nil
}

func (s *Storage) FindByToken(ctx context.Context, token string) (*model.UserRecord, error) {
	if token == "" {
		return nil, model.ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.doc.Database {
		if rec.Token == token {
			return &rec, nil
		}
	}
	return nil, model.ErrNotFound
}

func (s *Storage) CreateUser(ctx context.Context, rec *model.UserRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(rec.Username) >= 0 {
		return model.ErrConflict
	}
	s.doc.Database = append(s.doc.Database, *rec)
	return s.flush()
}

func (s *Storage) UpdateUser(ctx context.Context, rec *model.UserRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(rec.Username)
	if i < 0 {
		return model.ErrNotFound
	}
	s.doc.Database[i] = *rec
	return s.flush()
}

func (s *Storage) ClearTokens(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.doc.Database {
		s.doc.Database[i].Token = ""
	}
	return s.flush()
}

// Close is a no-op; the file is already current after every mutation
func (s *Storage) Close() error {
	return nil
}

func (s *Storage) indexOf(username string) int {
	for i, rec := range s.doc.Database {
		if rec.Username == username {
			return i
		}
	}
	return -1
}

// flush overwrites the file in place. Caller holds s.mu.
func (s *Storage) flush() error {
	data, err := json.Marshal(s.doc)
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	return nil
}
