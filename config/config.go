// Package config loads the node configuration from ELECTIONS_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/holiman/uint256"
)

// Storage backends.
const (
	StorageMemory   = "memory"
	StorageBolt     = "bolt"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

type Config struct {
	Owner           string        `env:"ELECTIONS_OWNER"`
	HTTPAddr        string        `env:"ELECTIONS_HTTP_ADDR"        envDefault:":8080"`
	Storage         string        `env:"ELECTIONS_STORAGE"          envDefault:"bolt"`
	DataDir         string        `env:"ELECTIONS_DATA_DIR"         envDefault:"./data"`
	CreationFee     string        `env:"ELECTIONS_CREATION_FEE"     envDefault:"1000000000000000000000000"`
	PostgresDSN     string        `env:"ELECTIONS_POSTGRES_DSN"`
	NodeKey         string        `env:"ELECTIONS_NODE_KEY"`
	CacheSize       int           `env:"ELECTIONS_CACHE_SIZE"       envDefault:"1024"`
	QueueSize       int           `env:"ELECTIONS_QUEUE_SIZE"       envDefault:"256"`
	LogLevel        string        `env:"ELECTIONS_LOG_LEVEL"        envDefault:"info"`
	LogFormat       string        `env:"ELECTIONS_LOG_FORMAT"       envDefault:"text"`
	ShutdownTimeout time.Duration `env:"ELECTIONS_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses the environment into a Config. It does not validate.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the fields needed to serve.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Owner) == "" {
		errs = append(errs, errors.New("owner is required"))
	}
	switch c.Storage {
	case StorageMemory, StorageBolt, StorageSQLite:
	case StoragePostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			errs = append(errs, errors.New("postgres dsn is required for postgres storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage))
	}
	if c.Storage != StorageMemory && strings.TrimSpace(c.DataDir) == "" {
		errs = append(errs, errors.New("data dir is required for persistent storage"))
	}
	if _, err := c.Fee(); err != nil {
		errs = append(errs, err)
	}
	if c.CacheSize < 1 {
		errs = append(errs, fmt.Errorf("cache size must be positive, got %d", c.CacheSize))
	}
	if c.QueueSize < 1 {
		errs = append(errs, fmt.Errorf("queue size must be positive, got %d", c.QueueSize))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// Fee parses CreationFee as a decimal amount.
func (c Config) Fee() (*uint256.Int, error) {
	fee, err := uint256.FromDecimal(strings.TrimSpace(c.CreationFee))
	if err != nil {
		return nil, fmt.Errorf("creation fee %q: %w", c.CreationFee, err)
	}
	return fee, nil
}

// StoragePath is the database file of the configured backend.
func (c Config) StoragePath() string {
	switch c.Storage {
	case StorageBolt:
		return filepath.Join(c.DataDir, "ledger.db")
	case StorageSQLite:
		return filepath.Join(c.DataDir, "ledger.sqlite")
	}
	return ""
}

// NewLogger builds the process logger writing to w.
func (c Config) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log level %q: %w", s, err)
	}
	return level, nil
}
