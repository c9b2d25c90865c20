package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	grpcctx "github.com/dtroode/identity-server/internal/api/grpc/context"
	grpcRouter "github.com/dtroode/identity-server/internal/api/grpc/router"
	grpcServer "github.com/dtroode/identity-server/internal/api/grpc/server"
	httpRouter "github.com/dtroode/identity-server/internal/api/http/router"
	httpServer "github.com/dtroode/identity-server/internal/api/http/server"
	rediscache "github.com/dtroode/identity-server/internal/cache/redis"
	"github.com/dtroode/identity-server/internal/config"
	"github.com/dtroode/identity-server/internal/logger"
	"github.com/dtroode/identity-server/internal/metrics"
	"github.com/dtroode/identity-server/internal/model"
	"github.com/dtroode/identity-server/internal/password"
	"github.com/dtroode/identity-server/internal/ratelimit"
	"github.com/dtroode/identity-server/internal/repository"
	"github.com/dtroode/identity-server/internal/server"
	"github.com/dtroode/identity-server/internal/service"
	"github.com/dtroode/identity-server/internal/token"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
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
	logger.Info("Credential store ready", "backend", stores.Backend)

	redisClient, err := rediscache.NewClient(ctx, cfg.Redis.URL)
	if err != nil {
		logger.Fatal("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()
	cache := rediscache.NewCache(redisClient)

	hasher, err := password.NewArgon2(password.Params{
		Time:        cfg.KDF.Time,
		Memory:      cfg.KDF.MemKiB,
		Parallelism: cfg.KDF.Par,
		SaltLength:  cfg.KDF.SaltLength,
		KeyLength:   cfg.KDF.KeyLength,
	})
	if err != nil {
		logger.Fatal("invalid KDF parameters", "error", err)
	}

	m := metrics.New()
	tokenManager := token.NewJWT(cfg.JWT.Secret, token.WithAccessTTL(cfg.JWT.AccessTTL))
	tokenService := service.NewTokenService(tokenManager, stores.RefreshTokens, logger, cfg.Session.RefreshTTL)
	identityService := service.NewIdentity(stores.Users, tokenService, cache, hasher, logger, m, cfg.Session.CacheTTL)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		tokenService.RunPurge(ctx, cfg.Session.PurgeInterval, m.AddPurged)
	}()

	burst := ratelimit.NewRegistry(cfg.RateLimit.BurstLimit, cfg.RateLimit.BurstWindow)
	wg.Add(1)
	go func() {
		defer wg.Done()
		burst.RunSweeper(ctx, cfg.RateLimit.BurstWindow)
	}()

	httpSrv, err := newHTTPServer(cfg, logger, m, redisClient, burst, identityService, tokenService, stores, cache)
	if err != nil {
		logger.Fatal("failed to build HTTP server", "error", err)
	}

	servers := []model.Server{
		newGRPCServer(cfg, logger, m, redisClient, identityService, tokenService),
		httpSrv,
	}

	var sl model.SecurityLayer
	if cfg.GRPC.EnableHTTPS {
		sl = server.NewTLSListener(cfg.GRPC.CertFileName, cfg.GRPC.PrivateKeyFileName)
	} else {
		sl = server.NewPlainListener()
	}

	for _, s := range servers {
		wg.Add(1)
		go func(s model.Server) {
			defer wg.Done()
			logger.Info("Starting server on", "address", s.Address())
			if err := s.Start(sl); err != nil {
				logger.Error("failed to start server", "error", err, "address", s.Address())
				stop()
			}
		}(s)
	}

	logAppVersion()

	<-ctx.Done()
	logger.Info("received interruption signal, shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	for _, s := range servers {
		if err := s.Stop(shutdownCtx); err != nil {
			logger.Error("error during server shutdown", "error", err, "address", s.Address())
		}
	}

	wg.Wait()
	logger.Info("shutdown complete")
}

func logAppVersion() {
	tmpl := `
Build version: %s
Build date: %s
Build commit: %s
`

	fmt.Printf(tmpl, buildVersion, buildDate, buildCommit)
}

func newGRPCServer(
	cfg *config.Config,
	logger *logger.Logger,
	m *metrics.Metrics,
	redisClient goredis.UniversalClient,
	identityService *service.Identity,
	tokenService *service.TokenService,
) *grpcServer.GRPCServer {
	limits := grpcRouter.Limits{
		Global:   ratelimit.NewWindow(redisClient, "rl-global", cfg.RateLimit.GlobalLimit, cfg.RateLimit.GlobalWindow),
		Register: ratelimit.NewWindow(redisClient, "rl-register", cfg.RateLimit.RegisterLimit, cfg.RateLimit.RegisterWindow),
	}

	r := grpcRouter.New(identityService, tokenService, grpcctx.NewManager(), limits, m, logger)

	return grpcServer.NewGRPCServer(r.Register(), fmt.Sprintf(":%s", cfg.GRPC.Port))
}

func newHTTPServer(
	cfg *config.Config,
	logger *logger.Logger,
	m *metrics.Metrics,
	redisClient goredis.UniversalClient,
	burst *ratelimit.Registry,
	identityService *service.Identity,
	tokenService *service.TokenService,
	stores *repository.Stores,
	cache *rediscache.Cache,
) (*httpServer.HTTPServer, error) {
	limits := httpRouter.Limits{
		Burst:    burst,
		Global:   ratelimit.NewWindow(redisClient, "rl-global", cfg.RateLimit.GlobalLimit, cfg.RateLimit.GlobalWindow),
		Register: ratelimit.NewWindow(redisClient, "rl-register", cfg.RateLimit.RegisterLimit, cfg.RateLimit.RegisterWindow),
	}
	checks := map[string]httpRouter.Pinger{
		"database": stores,
		"redis":    cache,
	}

	r := httpRouter.New(identityService, tokenService, limits, checks, cfg.HTTP.TrustedProxies, m, logger)
	engine, err := r.Register()
	if err != nil {
		return nil, err
	}

	return httpServer.NewHTTPServer(engine, fmt.Sprintf(":%s", cfg.HTTP.Port)), nil
}
