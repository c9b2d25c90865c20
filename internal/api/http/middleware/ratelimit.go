package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dtroode/identity-server/internal/api/http/response"
	"github.com/dtroode/identity-server/internal/logger"
	"github.com/dtroode/identity-server/internal/metrics"
	"github.com/dtroode/identity-server/internal/ratelimit"
)

// RateLimit answers 429 once the client IP spent the budget of limiter.
// Backend failures let the request through.
func RateLimit(name string, limiter ratelimit.Limiter, m *metrics.Metrics, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		err := limiter.Allow(c.Request.Context(), ip)
		switch {
		case err == nil:
		case errors.Is(err, ratelimit.ErrLimited):
			m.ObserveRateLimited(name)
			log.Warn("HTTP rate limit exceeded", "limiter", name, "ip", ip, "path", c.Request.URL.Path)
			response.Error(c, http.StatusTooManyRequests, "TOO_MANY_REQUESTS", "Too many requests")
			return
		default:
			log.Warn("HTTP rate limiter unavailable", "limiter", name, "error", err.Error())
		}

		c.Next()
	}
}
