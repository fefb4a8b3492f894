package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"lifeline/pkg/logger"
)

// Logger middleware logs HTTP requests with timing and status.
// Snapshot pushes are the hot path, so successful requests log at debug.
func Logger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		status := c.Writer.Status()
		l := log.WithContext(c.Request.Context())
		write := l.Infow
		if status < 400 {
			write = l.Debugw
		}
		write("http request",
			"method", c.Request.Method,
			"path", path,
			"route", c.FullPath(),
			"query", query,
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
			"error", c.Errors.ByType(gin.ErrorTypePrivate).String(),
		)
	}
}
