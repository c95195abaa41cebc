package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/bookingplatform/logger"
)

// RequestLogger logs every request with method, route, status and
// duration. Probe and scrape paths are skipped.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if isSystemPath(c.Request.URL.Path) {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		path := c.Request.URL.Path
		if q := c.Request.URL.RawQuery; q != "" {
			path = path + "?" + q
		}
		fields := map[string]interface{}{
			"method":             c.Request.Method,
			"path":               path,
			"status":             status,
			logger.FieldDuration: latency.Milliseconds(),
			"client":             c.ClientIP(),
		}
		if latency > 500*time.Millisecond {
			fields["slow"] = true
		}

		l := log.WithContext(c.Request.Context())
		switch {
		case status >= 500:
			l.Error("Request completed", fields)
		case status >= 400:
			l.Warn("Request completed", fields)
		default:
			l.Info("Request completed", fields)
		}
	}
}

func isSystemPath(path string) bool {
	switch path {
	case "/health", "/alive", "/metrics":
		return true
	}
	return false
}
