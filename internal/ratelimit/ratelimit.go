package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hookbridge/hookbridge/internal/metrics"
)

// RateLimiter bounds request volume per (actor, operation). The window lives
// in Redis so the limit holds across every gateway instance.
type RateLimiter interface {
	Allow(ctx context.Context, actor, operation string) (bool, error)
	Close() error
}

type redisRateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

// NewRedisRateLimiter connects to Redis and returns a fixed-window limiter.
func NewRedisRateLimiter(redisURL string, limit int, window time.Duration) (RateLimiter, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &redisRateLimiter{
		client: client,
		limit:  int64(limit),
		window: window,
	}, nil
}

// Allow atomically increments the window counter and sets its expiry on
// first touch. INCR+EXPIRE run in one Lua script so concurrent instances
// never observe a counter without a TTL.
func (r *redisRateLimiter) Allow(ctx context.Context, actor, operation string) (bool, error) {
	script := `
		local key = KEYS[1]
		local limit = tonumber(ARGV[1])
		local window = tonumber(ARGV[2])

		local current = redis.call('INCR', key)
		if current == 1 then
			redis.call('PEXPIRE', key, window)
		end

		if current > limit then
			return 0
		end
		return 1
	`

	key := fmt.Sprintf("ratelimit:%s:%s", actor, operation)
	result, err := r.client.Eval(ctx, script, []string{key}, r.limit, r.window.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}

	allowed := result == 1
	if !allowed {
		metrics.RateLimitHits.WithLabelValues(actor).Inc()
	}

	return allowed, nil
}

func (r *redisRateLimiter) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// NoOpRateLimiter always allows requests (for testing or disabled rate limiting)
type NoOpRateLimiter struct{}

func (n *NoOpRateLimiter) Allow(ctx context.Context, actor, operation string) (bool, error) {
	return true, nil
}

func (n *NoOpRateLimiter) Close() error {
	return nil
}
