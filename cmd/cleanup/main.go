// Command cleanup deletes expired refresh tokens once and exits.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dtroode/identity-server/internal/config"
	"github.com/dtroode/identity-server/internal/logger"
	"github.com/dtroode/identity-server/internal/repository"
	"github.com/dtroode/identity-server/internal/service"
	"github.com/dtroode/identity-server/internal/token"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.New(cfg.LogLevel)

	stores, err := repository.Open(ctx, cfg.Database.DSN)
	if err != nil {
		logger.Fatal("failed to initialize storage", "error", err)
	}
	defer stores.Close()

	tokenService := service.NewTokenService(token.NewJWT(cfg.JWT.Secret), stores.RefreshTokens, logger, cfg.Session.RefreshTTL)

	deleted, err := tokenService.PurgeExpired(ctx)
	if err != nil {
		logger.Error("refresh token cleanup failed", "error", err)
		return
	}

	logger.Info("refresh token cleanup completed", "backend", stores.Backend, "deleted", deleted)
}
