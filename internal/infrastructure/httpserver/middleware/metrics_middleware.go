package middleware

import (
	"errors"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsMiddleware records per-request counters and latencies. The
// endpoint label uses the route template (`/api/v1/assets/:id`), never the
// concrete URL, so asset UUIDs cannot blow up label cardinality.
type MetricsMiddleware struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

func NewMetricsMiddleware(requestsTotal *prometheus.CounterVec, requestDuration *prometheus.HistogramVec) *MetricsMiddleware {
	return &MetricsMiddleware{
		requestsTotal:   requestsTotal,
		requestDuration: requestDuration,
	}
}

// CollectHTTPMetrics creates middleware that observes every request.
func (m *MetricsMiddleware) CollectHTTPMetrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			endpoint := c.Path()
			if endpoint == "" {
				endpoint = "unmatched"
			}

			// Rejections surface as echo.HTTPError before the error handler
			// writes them; read the status from the error so 401/429/413
			// land in the right bucket.
			status := c.Response().Status
			var httpErr *echo.HTTPError
			if errors.As(err, &httpErr) {
				status = httpErr.Code
			}

			method := c.Request().Method
			m.requestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
			m.requestDuration.WithLabelValues(method, endpoint).Observe(time.Since(start).Seconds())

			return err
		}
	}
}
