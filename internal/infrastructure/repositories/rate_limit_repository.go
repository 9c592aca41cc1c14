package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/klong-dev/swd-stockintel-sub000/internal/core/ports"
)

// incrWindowScript increments the window counter and, on the increment that
// creates the key, sets its expiry in the same script execution. A pipeline
// of INCR followed by EXPIRE would leave an unexpired counter behind if the
// process died between the two commands.
var incrWindowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
	redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// RateLimitRedisRepository implements rate limiting counter storage with Redis.
type RateLimitRedisRepository struct {
	r redis.Cmdable
}

func NewRateLimitRedisRepository(r redis.Cmdable) ports.RateLimitRepository {
	return &RateLimitRedisRepository{r: r}
}

// IncrementWindow increments the per-client counter for the current fixed
// window. The window start is part of the key, so a new window always
// begins at a fresh count regardless of load in the previous one.
func (repo *RateLimitRedisRepository) IncrementWindow(ctx context.Context, clientID int64, window time.Duration, keyPrefix string, ttl time.Duration) (int64, time.Time, error) {
	now := time.Now()
	windowStart := now.Truncate(window)
	key := fmt.Sprintf("%s:%d:%d", keyPrefix, clientID, windowStart.Unix())

	count, err := incrWindowScript.Run(ctx, repo.r, []string{key}, int(ttl.Seconds())).Int64()
	if err != nil {
		return 0, windowStart, fmt.Errorf("failed to increment rate window: %w", err)
	}
	return count, windowStart, nil
}
