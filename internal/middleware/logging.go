package middleware

import (
	"context"
	"time"

	"secrets-service/internal/logger"

	"github.com/gin-gonic/gin"
)

// RequestLogger logs one line per request.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		fields := map[string]any{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"client_ip":   c.ClientIP(),
		}
		if id, ok := IdentityFromContext(c.Request.Context()); ok {
			fields["user_id"] = id.ID
		}

		switch {
		case c.Writer.Status() >= 500:
			logger.Error("request", fields)
		default:
			logger.Info("request", fields)
		}
	}
}

// Timeout bounds the request context, and with it every storage call
// made on behalf of the request.
func Timeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
