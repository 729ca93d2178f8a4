package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hung319/magicstudio2api/internal/app"
	"github.com/hung319/magicstudio2api/internal/config"
	"github.com/hung319/magicstudio2api/internal/httpserver"
	"github.com/hung319/magicstudio2api/internal/observability"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(config.Options{})
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	obs, err := observability.Setup(ctx, cfg.Observability)
	if err != nil {
		log.Fatalf("setup observability: %v", err)
	}
	if obs != nil {
		defer obs.Shutdown(ctx)
	}

	container, err := app.NewContainer(cfg, obs)
	if err != nil {
		log.Fatalf("build container: %v", err)
	}

	server, err := httpserver.New(container)
	if err != nil {
		log.Fatalf("construct server: %v", err)
	}

	if err := server.Listen(ctx); err != nil && err != context.Canceled {
		log.Fatalf("server stopped: %v", err)
	}
}
