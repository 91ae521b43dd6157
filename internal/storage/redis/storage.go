package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/dicemeister/internal/model"
	"github.com/mcoot/dicemeister/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return &Storage{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

func (s *Storage) ListUsers(ctx context.Context) ([]model.UserRecord, error) {
	names, err := s.client.LRange(ctx, usersListKey(), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return []model.UserRecord{}, nil
	}

	keys := make([]string, len(names))
	for i, name := range names {
		keys[i] = userKey(name)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	users := make([]model.UserRecord, 0, len(values))
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			continue // list entry without a record
		}
		var rec model.UserRecord
		if err := json.Unmarshal([]byte(str), &rec); err != nil {
			return nil, err
		}
		users = append(users, rec)
	}
	return users, nil
}

func (s *Storage) GetUser(ctx context.Context, username string) (*model.UserRecord, error) {
	data, err := s.client.Get(ctx, userKey(username)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}

	var rec model.UserRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *Storage) FindByToken(ctx context.Context, token string) (*model.UserRecord, error) {
	if token == "" {
		return nil, model.ErrNotFound
	}

	username, err := s.client.Get(ctx, tokenIndexKey(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}

	rec, err := s.GetUser(ctx, username)
	if err != nil {
		return nil, err
	}
	// Index entries can outlive a token change made by another writer
	if rec.Token != token {
		return nil, model.ErrNotFound
	}
	return rec, nil
}

func (s *Storage) CreateUser(ctx context.Context, rec *model.UserRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	created, err := s.client.SetNX(ctx, userKey(rec.Username), data, 0).Result()
	if err != nil {
		return err
	}
	if !created {
		return model.ErrConflict
	}

	pipe := s.client.Pipeline()
	pipe.RPush(ctx, usersListKey(), rec.Username)
	if rec.Token != "" {
		pipe.Set(ctx, tokenIndexKey(rec.Token), rec.Username, 0)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) UpdateUser(ctx context.Context, rec *model.UserRecord) error {
	existing, err := s.GetUser(ctx, rec.Username)
	if err != nil {
		return err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	// Use pipeline for atomic save + index update
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, userKey(rec.Username), data, 0)
	if existing.Token != "" && existing.Token != rec.Token {
		pipe.Del(ctx, tokenIndexKey(existing.Token))
	}
	if rec.Token != "" {
		pipe.Set(ctx, tokenIndexKey(rec.Token), rec.Username, 0)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) ClearTokens(ctx context.Context) error {
	users, err := s.ListUsers(ctx)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	for _, rec := range users {
		if rec.Token == "" {
			continue
		}
		pipe.Del(ctx, tokenIndexKey(rec.Token))
		rec.Token = ""
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		pipe.Set(ctx, userKey(rec.Username), data, 0)
	}
	_, err = pipe.Exec(ctx)
	return err
}
