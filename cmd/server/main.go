package main

import (
	"context"
	"log"
	"social-backend/internal/app"
	"social-backend/internal/presence"
	"social-backend/internal/server"
	"time"
)

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("Cannot load config: %v", err)
	}

	logger, err := app.NewLogger(cfg)
	if err != nil {
		log.Fatalf("zap logger: %v", err)
	}
	defer logger.Sync()

	sugar := logger.Sugar()
	sugar.Info("Application is starting")

	sugar.Info("Current time:", time.Now())

	store, closeStore, err := app.OpenStore(context.Background(), sugar, cfg.Storage)
	if err != nil {
		sugar.Fatalf("Cannot open %s store: %v", cfg.Storage.Driver, err)
	}

	hub := presence.NewHub(sugar, presence.NewRegistry(), presence.WithConfig(cfg.Presence))

	serverOpts := []server.Option{
		server.WithEnvConfig(cfg.Server),
		server.WithPagination(cfg.Pagination),
		server.RegisterAfterShutdown(func() {
			sugar.Info("Closing store")
			closeStore()
			sugar.Info("Store is closed")
		}),
	}

	srv, err := server.NewServer(sugar, store, hub, serverOpts...)
	if err != nil {
		sugar.Fatalf("Cannot create Server instance: %v", err)
	}

	if err := srv.Start(); err != nil {
		sugar.Fatalf("Cannot start http srv: %v", err)
	}
}
