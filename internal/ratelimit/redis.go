package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "qrtrack:ratelimit:"

// Redis is a fixed-window limiter whose counters live in Redis, so every
// server replica sees the same counts.
type Redis struct {
	client redis.UniversalClient
	rate   int
	window time.Duration
	now    func() time.Time
}

var _ Limiter = (*Redis)(nil)

// NewRedis allows rate requests per window for each key.
func NewRedis(client redis.UniversalClient, rate int, window time.Duration) *Redis {
	return &Redis{client: client, rate: rate, window: window, now: time.Now}
}

// Allow increments the key's counter for the current window. The counter
// expires with the window, so no cleanup is needed.
func (r *Redis) Allow(ctx context.Context, key string) (Decision, error) {
	now := r.now()
	windowStart := now.Truncate(r.window)
	redisKey := fmt.Sprintf("%s%s:%d", keyPrefix, key, windowStart.Unix())

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, r.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("rate limit counter: %w", err)
	}

	count := int(incr.Val())
	if count > r.rate {
		return Decision{RetryAfter: windowStart.Add(r.window).Sub(now)}, nil
	}
	return Decision{Allowed: true, Remaining: r.rate - count}, nil
}

// NewRedisClient connects to url and pings the server.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}
