package middleware

import (
	"time"

	"authflow/internal/infra/metrics"

	"github.com/labstack/echo/v4"
)

// MetricsMiddleware records request count and latency per route template. Unmatched paths
// share one label so scanners cannot grow the series count.
type MetricsMiddleware struct {
	collector *metrics.Collector
}

// NewMetricsMiddleware is the constructor for MetricsMiddleware.
func NewMetricsMiddleware(collector *metrics.Collector) *MetricsMiddleware {
	return &MetricsMiddleware{collector: collector}
}

// Handle observes the request after the handler and the error handler have run.
func (m *MetricsMiddleware) Handle(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			// Let the error handler write the status before it is observed.
			c.Error(err)
		}

		route := c.Path()
		if route == "" {
			route = "unmatched"
		}
		m.collector.ObserveHTTP(c.Request().Method, route, c.Response().Status, time.Since(start))

		return nil
	}
}
