// Package app wires configuration, logging and storage shared by the binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"social-backend/internal/pagination"
	"social-backend/internal/presence"
	"social-backend/internal/server"
	"social-backend/internal/storage"
	"social-backend/internal/storage/sqlite"
	"time"
)

var ErrUnknownDriver = errors.New("unknown storage driver")

// Config gathers every environment backed setting
type Config struct {
	Env        string `env:"ENV" envDefault:"development"`
	Server     server.EnvConfig
	Storage    storage.Config
	Presence   presence.Config
	Pagination pagination.Config
}

// LoadConfig loads optional dotenv files into the environment and parses Config from it.
// Variables already present in the environment win over the files.
func LoadConfig(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && len(files) > 0 {
		return Config{}, fmt.Errorf("loading dotenv files: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing env config: %w", err)
	}
	return cfg, nil
}

// NewLogger returns production logger when ENV is "production" and development one otherwise
func NewLogger(cfg Config) (*zap.Logger, error) {
	if cfg.Env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// Store is the persistence surface shared by both storage drivers
type Store interface {
	server.Store
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	SeedUsers(ctx context.Context, users []storage.User) (int64, error)
}

// OpenStore opens the store selected by cfg.Driver and applies the schema.
// The returned function releases the store.
func OpenStore(ctx context.Context, logger *zap.SugaredLogger, cfg storage.Config) (Store, func(), error) {
	switch cfg.Driver {
	case "postgres":
		s, err := storage.New(ctx, logger, cfg, storage.ConnectionTimeout(30*time.Second))
		if err != nil {
			return nil, nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, nil, err
		}
		return s, s.Close, nil
	case "sqlite":
		s, err := sqlite.Open(ctx, logger, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {
			if err := s.Close(); err != nil {
				logger.Errorf("closing sqlite store: %v", err)
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("%w %q", ErrUnknownDriver, cfg.Driver)
	}
}
