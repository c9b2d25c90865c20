package middleware

import (
	"context"
	"errors"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/dtroode/identity-server/internal/logger"
	"github.com/dtroode/identity-server/internal/metrics"
	"github.com/dtroode/identity-server/internal/ratelimit"
)

// RateLimit rejects calls of a peer address that spent its budget. Limiter
// backend failures let the call through.
type RateLimit struct {
	name    string
	limiter ratelimit.Limiter
	metrics *metrics.Metrics
	logger  *logger.Logger
}

// NewRateLimit creates a RateLimit interceptor. name labels logs and metrics.
func NewRateLimit(name string, limiter ratelimit.Limiter, metrics *metrics.Metrics, logger *logger.Logger) *RateLimit {
	return &RateLimit{name: name, limiter: limiter, metrics: metrics, logger: logger}
}

func (r *RateLimit) HandleGRPC(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	ip := peerIP(ctx)

	err := r.limiter.Allow(ctx, ip)
	switch {
	case err == nil:
	case errors.Is(err, ratelimit.ErrLimited):
		r.metrics.ObserveRateLimited(r.name)
		r.logger.Warn("gRPC rate limit exceeded", "limiter", r.name, "ip", ip, "method", info.FullMethod)
		return nil, status.Error(codes.ResourceExhausted, "too many requests")
	default:
		r.logger.Warn("gRPC rate limiter unavailable", "limiter", r.name, "error", err.Error())
	}

	return handler(ctx, req)
}

func peerIP(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return "unknown"
	}
	host, _, err := net.SplitHostPort(p.Addr.String())
	if err != nil {
		return p.Addr.String()
	}
	return host
}
