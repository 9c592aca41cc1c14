package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/klong-dev/swd-stockintel-sub000/internal/core/ports"
)

// RateLimiterService implements fixed-window rate limiting over an atomic
// increment-and-expire counter. The counter reflects attempted volume: the
// increment that pushes it over the limit is reported as rejected but never
// rolled back.
type RateLimiterService struct {
	repo      ports.RateLimitRepository
	window    time.Duration
	keyPrefix string
	logger    *logrus.Logger
}

// RateLimiterConfig groups configuration parameters for the rate limiter.
type RateLimiterConfig struct {
	Window    time.Duration
	KeyPrefix string
}

func NewRateLimiterService(repo ports.RateLimitRepository, cfg *RateLimiterConfig, logger *logrus.Logger) *RateLimiterService {
	// Apply defaults
	w := time.Hour
	kp := "ratelimit:client"
	if cfg != nil {
		if cfg.Window > 0 {
			w = cfg.Window
		}
		if cfg.KeyPrefix != "" {
			kp = cfg.KeyPrefix
		}
	}
	return &RateLimiterService{repo: repo, window: w, keyPrefix: kp, logger: logger}
}

// Allow consumes one request unit for the client and compares the count the
// increment returned (not a re-read) against limit. A repository error is
// surfaced to the caller: the gate fails closed rather than admitting
// unmetered traffic.
func (s *RateLimiterService) Allow(ctx context.Context, clientID int64, limit int) (bool, int64, time.Time, error) {
	count, windowStart, err := s.repo.IncrementWindow(ctx, clientID, s.window, s.keyPrefix, s.window)
	reset := windowStart.Add(s.window)
	if err != nil {
		return false, 0, reset, fmt.Errorf("rate limiter increment failed: %w", err)
	}

	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{"client_id": clientID, "count": count, "limit": limit}).Debug("rate limiter window state")
	}
	if count > int64(limit) {
		return false, count, reset, nil
	}
	return true, count, reset, nil
}
