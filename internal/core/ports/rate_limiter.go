package ports

import (
	"context"
	"time"
)

// RateLimitRepository provides the low-level atomic counter for rate
// limiting. The increment and the expiry-set on key creation must execute
// as one step in the backing store (e.g. a Redis script), not as two calls.
type RateLimitRepository interface {
	// IncrementWindow atomically increments the request counter for the
	// client in the current fixed window and, on the increment that creates
	// the key, sets it to expire after ttl. Returns the post-increment count
	// and the window start time.
	IncrementWindow(ctx context.Context, clientID int64, window time.Duration, keyPrefix string, ttl time.Duration) (count int64, windowStart time.Time, err error)
}

// RateLimiterService decides whether a request fits the client's budget for
// the current window. The counter always reflects attempted volume: an
// over-limit increment is reported as not allowed but never rolled back.
// Implementations MUST be safe for concurrent use.
type RateLimiterService interface {
	// Allow consumes one request unit against limit. count is the
	// post-increment counter value; reset is when the current window ends.
	Allow(ctx context.Context, clientID int64, limit int) (allowed bool, count int64, reset time.Time, err error)
}
