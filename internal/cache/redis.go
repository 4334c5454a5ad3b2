package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "holiday:cache:"

// Connect parses redisURL, creates a client, and verifies connectivity with a ping.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return client, nil
}

// Redis is a byte cache shared between service instances. Expiry is left to
// Redis key TTLs. Backend errors are logged and read as misses so a Redis
// outage degrades to uncached lookups.
type Redis struct {
	client *redis.Client
	log    *slog.Logger
}

// NewRedis constructs a Redis cache. A nil logger discards warnings.
func NewRedis(client *redis.Client, log *slog.Logger) *Redis {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Redis{client: client, log: log}
}

func redisKey(key string) string { return keyPrefix + key }

// Get retrieves the bytes stored under key.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := r.client.Get(ctx, redisKey(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.log.Warn("cache get failed", "key", key, "err", err)
		}
		return nil, false
	}
	return val, true
}

// Set stores data under key. A non-positive TTL removes the key instead.
func (r *Redis) Set(ctx context.Context, key string, data []byte, ttl time.Duration) {
	if ttl <= 0 {
		r.Delete(ctx, key)
		return
	}
	if err := r.client.Set(ctx, redisKey(key), data, ttl).Err(); err != nil {
		r.log.Warn("cache set failed", "key", key, "err", err)
	}
}

// Delete removes key and reports whether it existed.
func (r *Redis) Delete(ctx context.Context, key string) bool {
	n, err := r.client.Del(ctx, redisKey(key)).Result()
	if err != nil {
		r.log.Warn("cache delete failed", "key", key, "err", err)
		return false
	}
	return n > 0
}

// Clear removes every key under the cache prefix.
func (r *Redis) Clear(ctx context.Context) {
	keys, err := r.scan(ctx)
	if err != nil {
		r.log.Warn("cache clear failed", "err", err)
		return
	}
	if len(keys) == 0 {
		return
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = redisKey(k)
	}
	if err := r.client.Del(ctx, full...).Err(); err != nil {
		r.log.Warn("cache clear failed", "err", err)
	}
}

// Size returns the number of live keys.
func (r *Redis) Size(ctx context.Context) int {
	return r.Stats(ctx).Size
}

// Stats lists the live keys, sorted, without the prefix.
func (r *Redis) Stats(ctx context.Context) Stats {
	keys, err := r.scan(ctx)
	if err != nil {
		r.log.Warn("cache stats failed", "err", err)
		return Stats{Keys: []string{}}
	}
	sort.Strings(keys)
	return Stats{Size: len(keys), Keys: keys}
}

func (r *Redis) scan(ctx context.Context) ([]string, error) {
	keys := []string{}
	iter := r.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), keyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scanning cache keys: %w", err)
	}
	return keys, nil
}
