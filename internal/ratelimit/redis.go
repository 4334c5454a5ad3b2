package ratelimit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "holiday:ratelimit:"

// allowScript opens a window on the first request, refuses once the counter
// reaches ARGV[1] and otherwise increments. The key's PX expiry is the window.
var allowScript = redis.NewScript(`
local count = redis.call("GET", KEYS[1])
if not count then
	redis.call("SET", KEYS[1], 1, "PX", ARGV[2])
	return 1
end
if tonumber(count) >= tonumber(ARGV[1]) then
	return 0
end
redis.call("INCR", KEYS[1])
return 1
`)

// Redis is a fixed-window limiter shared between service instances.
// Backend errors are logged and fail open.
type Redis struct {
	client *redis.Client
	log    *slog.Logger
}

// NewRedis constructs a Redis limiter. A nil logger discards warnings.
func NewRedis(client *redis.Client, log *slog.Logger) *Redis {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Redis{client: client, log: log}
}

// Allow counts a request against key and reports whether it fits in the window.
func (r *Redis) Allow(ctx context.Context, key string, maxRequests int, period time.Duration) bool {
	if maxRequests <= 0 {
		return false
	}
	ms := max(period.Milliseconds(), 1)
	n, err := allowScript.Run(ctx, r.client, []string{keyPrefix + key}, maxRequests, ms).Int()
	if err != nil {
		r.log.Warn("rate limit check failed, allowing request", "key", key, "err", err)
		return true
	}
	return n == 1
}

// Remaining returns how many requests key has left in its window.
func (r *Redis) Remaining(ctx context.Context, key string, maxRequests int) int {
	n, err := r.client.Get(ctx, keyPrefix+key).Int()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.log.Warn("rate limit lookup failed", "key", key, "err", err)
		}
		return maxRequests
	}
	return max(0, maxRequests-n)
}

// ResetTime returns when key's window ends.
func (r *Redis) ResetTime(ctx context.Context, key string) (time.Time, bool) {
	ttl, err := r.client.PTTL(ctx, keyPrefix+key).Result()
	if err != nil {
		r.log.Warn("rate limit lookup failed", "key", key, "err", err)
		return time.Time{}, false
	}
	if ttl <= 0 {
		return time.Time{}, false
	}
	return time.Now().Add(ttl), true
}
