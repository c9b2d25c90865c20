package router

import (
	"context"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/auth"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/selector"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/dtroode/identity-server/internal/api/grpc/handler"
	"github.com/dtroode/identity-server/internal/api/grpc/identityv1"
	"github.com/dtroode/identity-server/internal/api/grpc/middleware"
	"github.com/dtroode/identity-server/internal/logger"
	"github.com/dtroode/identity-server/internal/metrics"
	"github.com/dtroode/identity-server/internal/model"
	"github.com/dtroode/identity-server/internal/ratelimit"
)

// Limits are the per-peer budgets applied by the router. A nil limiter
// disables its budget.
type Limits struct {
	Global   ratelimit.Limiter
	Register ratelimit.Limiter
}

// Router represents a gRPC router for identity operations.
// It manages gRPC service registration and middleware configuration.
type Router struct {
	identityService handler.IdentityService
	tokenService    middleware.TokenService
	contextManager  model.ContextManager
	limits          Limits
	metrics         *metrics.Metrics
	logger          *logger.Logger
}

// New creates new gRPC Router instance.
func New(
	identityService handler.IdentityService,
	tokenService middleware.TokenService,
	contextManager model.ContextManager,
	limits Limits,
	metrics *metrics.Metrics,
	logger *logger.Logger,
) *Router {
	return &Router{
		identityService: identityService,
		tokenService:    tokenService,
		contextManager:  contextManager,
		limits:          limits,
		metrics:         metrics,
		logger:          logger,
	}
}

func methodIs(fullMethod string) selector.Matcher {
	return selector.MatchFunc(func(_ context.Context, c interceptors.CallMeta) bool {
		return c.FullMethod() == fullMethod
	})
}

// Register builds the gRPC server with logging, rate limiting and
// authentication interceptors. Only Me requires an access token.
func (r *Router) Register() *grpc.Server {
	logging := middleware.NewLogging(r.logger)
	authenticate := middleware.NewAuthenticate(r.tokenService, r.contextManager, r.logger)

	unary := []grpc.UnaryServerInterceptor{logging.HandleGRPC}
	if r.limits.Global != nil {
		unary = append(unary, middleware.NewRateLimit("global", r.limits.Global, r.metrics, r.logger).HandleGRPC)
	}
	if r.limits.Register != nil {
		unary = append(unary, selector.UnaryServerInterceptor(
			middleware.NewRateLimit("register", r.limits.Register, r.metrics, r.logger).HandleGRPC,
			methodIs(identityv1.Identity_Register_FullMethodName),
		))
	}
	unary = append(unary, selector.UnaryServerInterceptor(
		auth.UnaryServerInterceptor(authenticate.AuthFunc),
		methodIs(identityv1.Identity_Me_FullMethodName),
	))

	s := grpc.NewServer(grpc.ChainUnaryInterceptor(unary...))
	r.registerIdentityRoutes(s)
	r.registerServiceRoutes(s)

	return s
}

// registerServiceRoutes exposes the standard health and reflection services.
func (r *Router) registerServiceRoutes(server *grpc.Server) {
	healthServer := health.NewServer()
	healthServer.SetServingStatus(identityv1.Identity_ServiceDesc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, healthServer)

	reflection.Register(server)
}

func (r *Router) registerIdentityRoutes(server *grpc.Server) {
	identityHandler := handler.NewIdentity(r.identityService, r.contextManager, r.logger)
	identityv1.RegisterIdentityServer(server, identityHandler)
}
