package server

import (
	"context"
	"fmt"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"net/http"
	"os"
	"os/signal"
	"social-backend/internal/pagination"
	"social-backend/internal/presence"
	"time"
)

// Server defines fields used in HTTP processing
type Server struct {
	logger        *zap.SugaredLogger
	httpServer    *http.Server
	hub           *presence.Hub
	afterShutdown []func()
}

// NewServer returns new Server struct with provided zap.SugaredLogger, Store and presence.Hub
func NewServer(logger *zap.SugaredLogger, store Store, hub *presence.Hub, opts ...Option) (*Server, error) {
	cfg := &config{
		httpServer: &http.Server{},
		paging:     pagination.DefaultConfig,
	}

	// options setting paging have to be applied before handlers are built
	for _, opt := range opts {
		opt.apply(cfg)
	}

	h := newHandler(logger, store, hub, cfg.paging)

	cfg.handlers = map[string]http.Handler{
		"/users/add":       http.HandlerFunc(h.createUser),
		"/users/get":       http.HandlerFunc(h.membersForUser),
		"/users/find":      http.HandlerFunc(h.memberByUsername),
		"/messages/add":    http.HandlerFunc(h.createMessage),
		"/messages/get":    http.HandlerFunc(h.messagesForUser),
		"/messages/thread": http.HandlerFunc(h.messageThread),
		"/messages/delete": http.HandlerFunc(h.deleteMessage),
		"/likes/toggle":    http.HandlerFunc(h.toggleLike),
		"/likes/get":       http.HandlerFunc(h.likedUsers),
		"/likes/ids":       http.HandlerFunc(h.likedIDs),
		"/presence/online": http.HandlerFunc(h.onlineUsers),
	}
	cfg.streams = map[string]http.Handler{
		"/presence/ws": http.HandlerFunc(h.presenceStream),
		"/metrics":     promhttp.Handler(),
	}

	defaultOpts := []Option{
		applyEnforcePOSTJSON(),
		TimeoutHandler(10*time.Second, "Request timed out"),
		applyInstrument(),
		applyLog(logger.Desugar()),
		registerHandlers(),
	}
	for _, opt := range defaultOpts {
		opt.apply(cfg)
	}

	return &Server{
		logger:        logger,
		httpServer:    cfg.httpServer,
		hub:           hub,
		afterShutdown: cfg.afterShutdown,
	}, nil
}

// Handler returns the root http.Handler of the Server
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start calls ListenAndServe on http.Server instance inside Server struct
// and implements graceful shutdown via goroutine waiting for signals
func (s *Server) Start() error {
	idleConnsClosed := make(chan struct{})

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt)
		<-sigint

		s.Shutdown(context.Background())

		close(idleConnsClosed)
	}()

	s.logger.Infof("Starting HTTP server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("s.httpServer.ListenAndServe: %v", err)
	}

	<-idleConnsClosed

	for _, f := range s.afterShutdown {
		f()
	}

	return nil
}

// Shutdown stops accepting requests, waits for active JSON requests and closes presence subscribers.
// Hijacked websocket connections are not tracked by http.Server, so the hub is closed explicitly.
func (s *Server) Shutdown(ctx context.Context) {
	s.logger.Info("Shutting down HTTP server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Errorf("srv.Shutdown: %v", err)
	}
	s.hub.Close()

	s.logger.Info("HTTP server is stopped")
}
