package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dtroode/identity-server/internal/api/http/response"
	"github.com/dtroode/identity-server/internal/logger"
)

// Logging logs every request and turns panics into 500 responses.
func Logging(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		defer func() {
			if recovered := recover(); recovered != nil {
				log.Error("HTTP request panicked",
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
					"panic", fmt.Sprintf("%v", recovered),
					"stack", string(debug.Stack()))
				response.Error(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "internal server error")
			}

			args := []any{
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"status", c.Writer.Status(),
				"client_ip", c.ClientIP(),
				"duration_ms", time.Since(start).Milliseconds(),
			}
			if requestID := c.GetHeader("X-Request-ID"); requestID != "" {
				args = append(args, "request_id", requestID)
			}

			switch status := c.Writer.Status(); {
			case status >= http.StatusInternalServerError:
				log.Error("HTTP request failed", args...)
			case status >= http.StatusBadRequest:
				log.Warn("HTTP request rejected", args...)
			default:
				log.Info("HTTP request completed", args...)
			}
		}()

		c.Next()
	}
}
