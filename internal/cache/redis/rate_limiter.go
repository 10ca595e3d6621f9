package redis

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Rickkless-King/Fingent/internal/domain"
)

//go:embed scripts/sliding_window.lua
var slidingWindowLua string

const waitPollInterval = 50 * time.Millisecond

// RateLimiter implements domain.RateLimiter with a sliding window over a
// Redis sorted set, evaluated atomically by a Lua script. Wait uses the
// limiter's default limit and window; Allow takes them per call.
type RateLimiter struct {
	rdb           *redis.Client
	slidingWindow *redis.Script

	defaultLimit  int
	defaultWindow time.Duration
}

var _ domain.RateLimiter = (*RateLimiter)(nil)

// NewRateLimiter creates a RateLimiter backed by the given Client.
// defaultLimit/defaultWindow govern Wait; non-positive values fall back to
// 10 requests per second.
func NewRateLimiter(c *Client, defaultLimit int, defaultWindow time.Duration) *RateLimiter {
	if defaultLimit <= 0 {
		defaultLimit = 10
	}
	if defaultWindow <= 0 {
		defaultWindow = time.Second
	}
	return &RateLimiter{
		rdb:           c.Underlying(),
		slidingWindow: redis.NewScript(slidingWindowLua),
		defaultLimit:  defaultLimit,
		defaultWindow: defaultWindow,
	}
}

func rateLimitKey(key string) string {
	return "ratelimit:" + key
}

// Allow reports whether a request for the given key fits under the sliding
// window. An allowed request is counted against the window.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now().UnixMicro()

	result, err := rl.slidingWindow.Run(
		ctx,
		rl.rdb,
		[]string{rateLimitKey(key)},
		now,
		window.Microseconds(),
		limit,
	).Int64Slice()
	if err != nil {
		return false, fmt.Errorf("redis: rate limit allow %s: %w", key, err)
	}
	if len(result) < 2 {
		return false, fmt.Errorf("redis: rate limit allow %s: unexpected result length %d", key, len(result))
	}
	return result[0] == 1, nil
}

// Wait blocks until a request for the given key is allowed under the
// limiter's default limit, polling at a fixed interval. It returns an error
// when the context is cancelled first.
func (rl *RateLimiter) Wait(ctx context.Context, key string) error {
	for {
		allowed, err := rl.Allow(ctx, key, rl.defaultLimit, rl.defaultWindow)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		timer := time.NewTimer(waitPollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("redis: rate limit wait %s: %w", key, ctx.Err())
		case <-timer.C:
		}
	}
}
