package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/bookingplatform/metrics"
)

// Metrics records request counts and durations by route template, so
// /billing/invoices/INV_1 and /billing/invoices/INV_2 share one series.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
