package middleware

import (
	"github.com/erp/billing/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
)

// PrometheusMetrics records request count, latency and in-flight requests per route template.
// Unmatched paths share one series so scanners cannot blow up cardinality.
func PrometheusMetrics(m *telemetry.HTTPMetrics) gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		done := m.Begin()
		c.Next()
		done(c.FullPath(), c.Request.Method, c.Writer.Status())
	}
}
