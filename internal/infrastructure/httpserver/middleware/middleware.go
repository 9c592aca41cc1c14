package middleware

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// MiddlewareCollection holds all middleware instances
type MiddlewareCollection struct {
	Logging   *LoggingMiddleware
	Metrics   *MetricsMiddleware
	AdminAuth *AdminAuthMiddleware
}

// NewMiddlewareCollection creates a new collection of all middleware
func NewMiddlewareCollection(
	logger *logrus.Logger,
	adminToken string,
	requestsTotal *prometheus.CounterVec,
	requestDuration *prometheus.HistogramVec,
) *MiddlewareCollection {
	return &MiddlewareCollection{
		Logging:   NewLoggingMiddleware(logger),
		Metrics:   NewMetricsMiddleware(requestsTotal, requestDuration),
		AdminAuth: NewAdminAuthMiddleware(adminToken, logger),
	}
}
