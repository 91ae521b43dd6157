// Package config loads server settings from defaults, an optional YAML
// file, a .env file and DICE_* environment variables, in that order of
// increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/mcoot/dicemeister/internal/model"
)

// Storage backends
const (
	StorageFile     = "file"
	StorageMemory   = "memory"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
)

// Config is the complete server configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Match   MatchConfig   `yaml:"match"`
	Game    GameConfig    `yaml:"game"`
	Auth    AuthConfig    `yaml:"auth"`
	Storage StorageConfig `yaml:"storage"`
	Status  StatusConfig  `yaml:"status"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig holds listener settings
type ServerConfig struct {
	Host            string        `yaml:"host"`
	TCPPort         int           `yaml:"tcp_port"`
	HTTPPort        int           `yaml:"http_port"`
	OperatorToken   string        `yaml:"operator_token"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// MatchConfig holds matchmaking settings
type MatchConfig struct {
	Mode          string        `yaml:"mode"`
	GroupSize     int           `yaml:"group_size"`
	TimeFactor    int           `yaml:"time_factor"`
	PingInterval  time.Duration `yaml:"ping_interval"`
	RetryInterval time.Duration `yaml:"retry_interval"`
}

// GameConfig holds contest rules and the game worker pool size
type GameConfig struct {
	Rounds  int `yaml:"rounds"`
	DiceMin int `yaml:"dice_min"`
	DiceMax int `yaml:"dice_max"`
	Workers int `yaml:"workers"`
}

// AuthConfig holds gateway settings
type AuthConfig struct {
	Timeout    time.Duration `yaml:"timeout"`
	Workers    int           `yaml:"workers"`
	BcryptCost int           `yaml:"bcrypt_cost"`
}

// StorageConfig selects and configures the ranking backend
type StorageConfig struct {
	Type        string `yaml:"type"`
	Path        string `yaml:"path"`
	RedisURL    string `yaml:"redis_url"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// StatusConfig sizes the operator projection
type StatusConfig struct {
	LeaderboardSize int `yaml:"leaderboard_size"`
	QueuePreview    int `yaml:"queue_preview"`
}

// LogConfig selects the log handler
type LogConfig struct {
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

// Defaults returns the stock configuration
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			TCPPort:         9000,
			HTTPPort:        8080,
			ShutdownTimeout: 10 * time.Second,
		},
		Match: MatchConfig{
			Mode:          string(model.ModeFIFO),
			GroupSize:     2,
			TimeFactor:    1,
			PingInterval:  10 * time.Second,
			RetryInterval: time.Second,
		},
		Game: GameConfig{
			Rounds:  2,
			DiceMin: 1,
			DiceMax: 12,
			Workers: 5,
		},
		Auth: AuthConfig{
			Timeout:    30 * time.Second,
			Workers:    5,
			BcryptCost: 10,
		},
		Storage: StorageConfig{
			Type: StorageFile,
			Path: "databases/ranking.json",
		},
		Status: StatusConfig{
			LeaderboardSize: 5,
			QueuePreview:    5,
		},
		Log: LogConfig{
			Format: "json",
			Level:  "info",
		},
	}
}

// Load builds a Config. path names an optional YAML file; an empty path
// skips it. A .env file in the working directory is loaded if present.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from DICE_* variables found by lookup
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	str := func(field *string, key string) {
		if v, ok := lookup(key); ok && v != "" {
			*field = v
		}
	}
	num := func(field *int, key string) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: invalid integer %q", key, v))
				return
			}
			*field = n
		}
	}
	dur := func(field *time.Duration, key string) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: invalid duration %q", key, v))
				return
			}
			*field = d
		}
	}

	str(&c.Server.Host, "DICE_HOST")
	num(&c.Server.TCPPort, "DICE_TCP_PORT")
	num(&c.Server.HTTPPort, "DICE_HTTP_PORT")
	str(&c.Server.OperatorToken, "DICE_OPERATOR_TOKEN")
	dur(&c.Server.ShutdownTimeout, "DICE_SHUTDOWN_TIMEOUT")

	str(&c.Match.Mode, "DICE_MODE")
	num(&c.Match.GroupSize, "DICE_GROUP_SIZE")
	num(&c.Match.TimeFactor, "DICE_TIME_FACTOR")
	dur(&c.Match.PingInterval, "DICE_PING_INTERVAL")

	num(&c.Game.Rounds, "DICE_ROUNDS")
	num(&c.Game.Workers, "DICE_GAME_WORKERS")

	dur(&c.Auth.Timeout, "DICE_AUTH_TIMEOUT")
	num(&c.Auth.Workers, "DICE_AUTH_WORKERS")
	num(&c.Auth.BcryptCost, "DICE_BCRYPT_COST")

	str(&c.Storage.Type, "DICE_STORAGE")
	str(&c.Storage.Path, "DICE_DATABASE")
	str(&c.Storage.RedisURL, "DICE_REDIS_URL")
	str(&c.Storage.PostgresDSN, "DICE_POSTGRES_DSN")

	str(&c.Log.Format, "DICE_LOG_FORMAT")
	str(&c.Log.Level, "DICE_LOG_LEVEL")

	return errors.Join(errs...)
}

// MatchMode returns the parsed matchmaking mode
func (c *Config) MatchMode() model.MatchMode {
	mode, _ := model.ParseMatchMode(c.Match.Mode)
	return mode
}

// Validate checks the configuration and normalizes the match mode
func (c *Config) Validate() error {
	var errs []error

	mode, err := model.ParseMatchMode(c.Match.Mode)
	if err != nil {
		errs = append(errs, err)
	} else {
		c.Match.Mode = string(mode)
	}

	if !validPort(c.Server.TCPPort) {
		errs = append(errs, fmt.Errorf("tcp port %d out of range", c.Server.TCPPort))
	}
	if !validPort(c.Server.HTTPPort) {
		errs = append(errs, fmt.Errorf("http port %d out of range", c.Server.HTTPPort))
	}
	if c.Match.GroupSize < 1 {
		errs = append(errs, errors.New("group size must be at least 1"))
	}
	if c.Match.TimeFactor < 1 {
		errs = append(errs, errors.New("time factor must be at least 1"))
	}
	if c.Match.PingInterval <= 0 {
		errs = append(errs, errors.New("ping interval must be positive"))
	}
	if c.Game.Rounds < 1 {
		errs = append(errs, errors.New("rounds must be at least 1"))
	}
	if c.Game.DiceMin > c.Game.DiceMax {
		errs = append(errs, fmt.Errorf("dice range %d..%d is empty", c.Game.DiceMin, c.Game.DiceMax))
	}
	if c.Game.Workers < 1 || c.Auth.Workers < 1 {
		errs = append(errs, errors.New("worker pools need at least one worker"))
	}
	if c.Auth.Timeout <= 0 {
		errs = append(errs, errors.New("auth timeout must be positive"))
	}

	switch c.Storage.Type {
	case StorageFile:
		if c.Storage.Path == "" {
			errs = append(errs, errors.New("file storage needs a database path"))
		}
	case StorageMemory:
	case StorageRedis:
		if c.Storage.RedisURL == "" {
			errs = append(errs, errors.New("redis storage needs a redis url"))
		}
	case StoragePostgres:
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("postgres storage needs a dsn"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage type %q", c.Storage.Type))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// validPort allows 0 so tests can ask for an ephemeral port
func validPort(p int) bool {
	return p >= 0 && p <= 65535
}
