package storage

import (
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"strconv"
	"time"
)

// Config defines fields used for parsing database settings from environment variables
type Config struct {
	Driver     string `env:"STORAGE_DRIVER" envDefault:"postgres"`
	User       string `env:"STORAGE_USER" envDefault:"postgres"`
	Password   string `env:"STORAGE_PASSWORD" envDefault:"postgres"`
	Host       string `env:"STORAGE_HOST" envDefault:"localhost"`
	Port       uint16 `env:"STORAGE_PORT" envDefault:"5432"`
	DBName     string `env:"STORAGE_DB" envDefault:"social"`
	SQLitePath string `env:"STORAGE_SQLITE_PATH" envDefault:"./data/social.db"`
}

// DSN returns libpq style connection string
func (c Config) DSN() string {
	return "user=" + c.User +
		" password=" + c.Password +
		" host=" + c.Host +
		" port=" + strconv.FormatUint(uint64(c.Port), 10) +
		" dbname=" + c.DBName +
		" sslmode=disable"
}

// Option alters the default configuration of the pgxpool.Config used during new Store construction
type Option interface {
	apply(*pgxpool.Config)
}

type optionFunc func(c *pgxpool.Config)

func (f optionFunc) apply(c *pgxpool.Config) { f(c) }

// ConnectionTimeout sets timeout for connection to be established
func ConnectionTimeout(d time.Duration) Option {
	return optionFunc(func(c *pgxpool.Config) {
		c.ConnConfig.ConnectTimeout = d
	})
}

// MaxConns sets maximum size of the pool
func MaxConns(n int32) Option {
	return optionFunc(func(c *pgxpool.Config) {
		c.MaxConns = n
	})
}

// LogLevel sets minimal level of pgx messages passed to the logger
func LogLevel(l pgx.LogLevel) Option {
	return optionFunc(func(c *pgxpool.Config) {
		c.ConnConfig.LogLevel = l
	})
}
