package server

import (
	"go.uber.org/zap"
	"net/http"
	"social-backend/internal/pagination"
	"strconv"
	"time"
)

type Option interface {
	apply(*config)
}

type optionFunc func(c *config)

func (f optionFunc) apply(c *config) { f(c) }

// config defines fields used for configuring Server instance
type config struct {
	httpServer *http.Server
	// handlers are JSON endpoints, streams are plain GET endpoints (websocket, metrics)
	handlers      map[string]http.Handler
	streams       map[string]http.Handler
	paging        pagination.Config
	afterShutdown []func()
}

// EnvConfig defines fields used for parsing from environment variables
type EnvConfig struct {
	Host        string        `env:"HOST" envDefault:"0.0.0.0"`
	Port        uint16        `env:"PORT" envDefault:"9000"`
	ReadTimeout time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
}

// WithEnvConfig enables processing exported EnvConfig struct to acts as a source of config parameters for http.Server
func WithEnvConfig(cfg EnvConfig) Option {
	return optionFunc(func(c *config) {
		c.httpServer.Addr = cfg.Host + ":" + strconv.FormatUint(uint64(cfg.Port), 10)
		c.httpServer.ReadTimeout = cfg.ReadTimeout
	})
}

// ReadTimeout sets read timeout for http.Server
func ReadTimeout(d time.Duration) Option {
	return optionFunc(func(c *config) {
		c.httpServer.ReadTimeout = d
	})
}

// WithPagination sets page size defaults and limits for listing endpoints
func WithPagination(cfg pagination.Config) Option {
	return optionFunc(func(c *config) {
		c.paging = cfg
	})
}

// RegisterAfterShutdown registers a function to call after http.Server shutdown
// f will not be called in separated goroutine
func RegisterAfterShutdown(f func()) Option {
	return optionFunc(func(c *config) {
		c.afterShutdown = append(c.afterShutdown, f)
	})
}

// registerHandlers registers JSON handlers and streams for newly initialized http.ServeMux
// that http.ServeMux is used as a http.Handler for http.Server in config struct
func registerHandlers() Option {
	return optionFunc(func(c *config) {
		mux := http.NewServeMux()
		for pattern, h := range c.handlers {
			mux.Handle(pattern, h)
		}
		for pattern, h := range c.streams {
			mux.Handle(pattern, h)
		}
		c.httpServer.Handler = mux
	})
}

// applyEnforcePOSTJSON wraps each handler in handlers map with enforcePOSTJSON middleware
func applyEnforcePOSTJSON() Option {
	return optionFunc(func(c *config) {
		for pattern, h := range c.handlers {
			c.handlers[pattern] = enforcePOSTJSON(h)
		}
	})
}

// applyInstrument wraps each handler in handlers map with instrument middleware
func applyInstrument() Option {
	return optionFunc(func(c *config) {
		for pattern, h := range c.handlers {
			c.handlers[pattern] = instrument(h, pattern)
		}
	})
}

// applyLog wraps each handler and stream with log middleware
func applyLog(logger *zap.Logger) Option {
	return optionFunc(func(c *config) {
		for pattern, h := range c.handlers {
			c.handlers[pattern] = log(h, logger)
		}
		for pattern, h := range c.streams {
			c.streams[pattern] = log(h, logger)
		}
	})
}

// TimeoutHandler wraps each JSON handler in http.TimeoutHandler with provided duration and message.
// Streams are left unwrapped since http.TimeoutHandler does not support hijacking.
func TimeoutHandler(d time.Duration, msg string) Option {
	return optionFunc(func(c *config) {
		for pattern, h := range c.handlers {
			c.handlers[pattern] = http.TimeoutHandler(h, d, msg)
		}
	})
}
