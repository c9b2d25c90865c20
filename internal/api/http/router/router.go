// Package router assembles the gin engine of the HTTP API.
package router

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dtroode/identity-server/internal/api/http/handler"
	"github.com/dtroode/identity-server/internal/api/http/middleware"
	"github.com/dtroode/identity-server/internal/api/http/response"
	"github.com/dtroode/identity-server/internal/logger"
	"github.com/dtroode/identity-server/internal/metrics"
	"github.com/dtroode/identity-server/internal/ratelimit"
)

const healthCheckTimeout = 2 * time.Second

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Limits are the per-IP budgets of the API. A nil limiter disables its
// budget. Burst and Global cover every /api route, Register only
// POST /api/auth/register.
type Limits struct {
	Burst    ratelimit.Limiter
	Global   ratelimit.Limiter
	Register ratelimit.Limiter
}

type Router struct {
	identityService handler.IdentityService
	tokenService    middleware.TokenService
	limits          Limits
	checks          map[string]Pinger
	trustedProxies  []string
	metrics         *metrics.Metrics
	logger          *logger.Logger
}

func New(
	identityService handler.IdentityService,
	tokenService middleware.TokenService,
	limits Limits,
	checks map[string]Pinger,
	trustedProxies []string,
	metrics *metrics.Metrics,
	logger *logger.Logger,
) *Router {
	return &Router{
		identityService: identityService,
		tokenService:    tokenService,
		limits:          limits,
		checks:          checks,
		trustedProxies:  trustedProxies,
		metrics:         metrics,
		logger:          logger,
	}
}

// Register builds the engine with all routes. Rate limits are keyed by the
// client IP, which honours X-Forwarded-For only from trusted proxies.
func (r *Router) Register() (*gin.Engine, error) {
	engine := gin.New()
	if err := engine.SetTrustedProxies(r.trustedProxies); err != nil {
		return nil, fmt.Errorf("failed to set trusted proxies: %w", err)
	}
	engine.Use(middleware.Logging(r.logger))

	engine.GET("/healthz", r.health)
	if r.metrics != nil {
		engine.GET("/metrics", gin.WrapH(r.metrics.Handler()))
	}

	api := engine.Group("/api")
	if r.limits.Burst != nil {
		api.Use(middleware.RateLimit("burst", r.limits.Burst, r.metrics, r.logger))
	}
	if r.limits.Global != nil {
		api.Use(middleware.RateLimit("global", r.limits.Global, r.metrics, r.logger))
	}

	var registerMiddleware []gin.HandlerFunc
	if r.limits.Register != nil {
		registerMiddleware = append(registerMiddleware, middleware.RateLimit("register", r.limits.Register, r.metrics, r.logger))
	}

	identity := handler.NewIdentity(r.identityService, r.logger)
	auth := api.Group("/auth")
	identity.RegisterPublicRoutes(auth, registerMiddleware...)
	identity.RegisterProtectedRoutes(auth.Group("", middleware.Auth(r.tokenService)))

	return engine, nil
}

func (r *Router) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	statusCode := http.StatusOK
	results := make(map[string]string, len(r.checks))
	for name, check := range r.checks {
		if err := check.Ping(ctx); err != nil {
			r.logger.Warn("Health check failed", "dependency", name, "error", err.Error())
			results[name] = "unavailable"
			statusCode = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	if statusCode != http.StatusOK {
		response.ErrorWithDetails(c, statusCode, "UNAVAILABLE", "dependency unavailable", results)
		return
	}
	response.Success(c, statusCode, gin.H{"status": "ok", "checks": results})
}
