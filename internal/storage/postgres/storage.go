package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mcoot/dicemeister/internal/model"
	"github.com/mcoot/dicemeister/internal/storage"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS dice_users (
	seq           BIGSERIAL,
	username      TEXT PRIMARY KEY,
	password_hash TEXT   NOT NULL,
	token         TEXT   NOT NULL DEFAULT '',
	rank          BIGINT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_dice_users_token ON dice_users(token);
`

// uniqueViolation is the Postgres SQLSTATE for a duplicate key
const uniqueViolation = "23505"

// Storage is a Postgres-backed implementation of the storage interface
type Storage struct {
	pool *pgxpool.Pool
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// New connects to Postgres and ensures the users table exists
func New(ctx context.Context, databaseURL string) (*Storage, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}

	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create dice_users: %w", err)
	}

	return &Storage{pool: pool}, nil
}

// Close closes the connection pool
func (s *Storage) Close() error {
	s.pool.Close()
	return nil
}

func (s *Storage) ListUsers(ctx context.Context) ([]model.UserRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT username, password_hash, token, rank FROM dice_users ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []model.UserRecord{}
	for rows.Next() {
		var rec model.UserRecord
		if err := rows.Scan(&rec.Username, &rec.PasswordHash, &rec.Token, &rec.Rank); err != nil {
			return nil, err
		}
		users = append(users, rec)
	}
	return users, rows.Err()
}

func (s *Storage) GetUser(ctx context.Context, username string) (*model.UserRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT username, password_hash, token, rank FROM dice_users WHERE username = $1`, username)
	return scanUser(row)
}

func (s *Storage) FindByToken(ctx context.Context, token string) (*model.UserRecord, error) {
	if token == "" {
		return nil, model.ErrNotFound
	}
	row := s.pool.QueryRow(ctx,
		`SELECT username, password_hash, token, rank FROM dice_users WHERE token = $1 ORDER BY seq LIMIT 1`, token)
	return scanUser(row)
}

func (s *Storage) CreateUser(ctx context.Context, rec *model.UserRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO dice_users (username, password_hash, token, rank) VALUES ($1, $2, $3, $4)`,
		rec.Username, rec.PasswordHash, rec.Token, rec.Rank)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return model.ErrConflict
	}
	return err
}

func (s *Storage) UpdateUser(ctx context.Context, rec *model.UserRecord) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE dice_users SET password_hash = $2, token = $3, rank = $4 WHERE username = $1`,
		rec.Username, rec.PasswordHash, rec.Token, rec.Rank)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (s *Storage) ClearTokens(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `UPDATE dice_users SET token = '' WHERE token <> ''`)
	return err
}

// Truncate removes every record. Used by tests against a shared database.
func (s *Storage) Truncate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE dice_users RESTART IDENTITY`)
	return err
}

func scanUser(row pgx.Row) (*model.UserRecord, error) {
	var rec model.UserRecord
	if err := row.Scan(&rec.Username, &rec.PasswordHash, &rec.Token, &rec.Rank); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}
