package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/turtacn/KeyIP-Intelligence/internal/logging"
)

// RequestLogging returns gin middleware that logs one structured entry per
// completed request, escalating to Warn/Error by status code the same way
// the teacher's middleware/logging.go does, and skipping the high-frequency
// health and metrics paths to cut noise.
func RequestLogging(log logging.Logger) gin.HandlerFunc {
	skip := map[string]bool{"/health": true, "/metrics": true}
	return func(c *gin.Context) {
		if skip[c.Request.URL.Path] {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		status := c.Writer.Status()
		fields := []logging.Field{
			logging.String("method", c.Request.Method),
			logging.String("path", c.Request.URL.Path),
			logging.Int("status", status),
			logging.Duration("duration", duration),
		}

		switch {
		case status >= 500:
			log.Error("http request completed with server error", fields...)
		case status >= 400:
			log.Warn("http request completed with client error", fields...)
		default:
			log.Info("http request completed", fields...)
		}
	}
}

// CORS returns gin middleware implementing a permissive cross-origin policy
// suitable for an internal inference API. It mirrors the teacher's
// middleware/cors.go shape (allowed methods/headers, preflight short
// circuit) collapsed to the single-policy case this server needs, since it
// has no per-tenant origin list to enforce.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// Recovery returns gin middleware that converts a panicking handler into a
// 500 InternalFailure response instead of crashing the server, matching the
// teacher's reliance on chi's Recoverer for the same purpose.
func Recovery(log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic recovered in http handler",
					logging.String("path", c.Request.URL.Path),
					logging.Any("panic", r),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"code":    "internal_failure",
					"message": "internal server error",
				})
			}
		}()
		c.Next()
	}
}
