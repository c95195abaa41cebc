package endpoint

import (
	"github.com/gin-gonic/gin"

	"github.com/kbukum/bookingplatform/metrics"
)

// Metrics serves the Prometheus registry of m.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return gin.WrapH(m.Handler())
}
