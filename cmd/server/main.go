package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/pridiuksson/ninegrid"
	s3adapter "github.com/pridiuksson/ninegrid/internal/adapters/s3"
	"github.com/pridiuksson/ninegrid/internal/app/services"
	"github.com/pridiuksson/ninegrid/internal/config"
	"github.com/pridiuksson/ninegrid/internal/debugbus"
	"github.com/pridiuksson/ninegrid/internal/observability"
	"github.com/pridiuksson/ninegrid/internal/server"
	"github.com/pridiuksson/ninegrid/internal/server/routes"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	baseHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	log := slog.New(observability.WrapSlogHandler(baseHandler))
	slog.SetDefault(log)

	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file loaded", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.IsLocalDevelopment() && cfg.Auth.SessionSecret == "ninegrid-local-dev" {
		slog.Warn("NINEGRID_SESSION_SECRET not set, using local development fallback")
	}

	ctx := context.Background()

	store, err := s3adapter.New(ctx, s3adapter.Config{
		Region:          cfg.Storage.Region,
		Endpoint:        cfg.Storage.Endpoint,
		AccessKeyID:     cfg.Storage.AccessKeyID,
		SecretAccessKey: cfg.Storage.SecretAccessKey,
		UsePathStyle:    cfg.Storage.UsePathStyle,
		PublicBaseURL:   cfg.Storage.PublicBaseURL,
	})
	if err != nil {
		return fmt.Errorf("failed to build object store client: %w", err)
	}

	bus := debugbus.New(cfg.Debug.LogCap)
	grid := services.NewGridService(store, cfg.Storage.Bucket, bus, log)

	if err := grid.EnsureBucket(ctx); err != nil {
		// The store may deny bucket administration while still serving
		// object calls; reconciliation will surface real failures.
		slog.Warn("could not ensure storage bucket", "bucket", cfg.Storage.Bucket, "error", err)
	}

	routes.ConfigureAuth(routes.AuthConfig{
		SessionKey:         cfg.Auth.SessionSecret,
		GitHubClientID:     cfg.Auth.GitHubClientID,
		GitHubClientSecret: cfg.Auth.GitHubClientSecret,
		GitHubCallbackURL:  cfg.Auth.GitHubCallbackURL,
		SecureCookies:      cfg.Auth.SecureCookie,
	})

	srv := server.New(log, ninegrid.PublicFS)
	srv.RegisterRouter(routes.NewAuthRoutes(cfg.IsLocalDevelopment()))
	srv.RegisterRouter(routes.NewGridRoutes(grid))
	srv.RegisterRouter(routes.NewDebugRoutes(bus))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	slog.Info("Starting server", "port", cfg.Server.Port)
	return srv.Start(addr)
}
