package middleware

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RedisRateLimitStore is a fixed-window counter backed by Redis, shared
// across API instances. Window state is an INCR counter that expires with
// the window.
type RedisRateLimitStore struct {
	client  *redis.Client
	logger  *slog.Logger
	metrics *Metrics
}

func NewRedisRateLimitStore(client *redis.Client, logger *slog.Logger, metrics *Metrics) *RedisRateLimitStore {
	return &RedisRateLimitStore{
		client:  client,
		logger:  logger,
		metrics: metrics,
	}
}

// Allow increments the counter for key and compares it against the limit.
// Redis errors are returned so the middleware can fail open; they also bump
// the redis error counter so degraded limiting is visible.
func (s *RedisRateLimitStore) Allow(ctx context.Context, key string, cfg RateLimitConfig) (bool, int, error) {
	redisKey := "ratelimit:" + key

	count, err := s.client.Incr(ctx, redisKey).Result()
	if err != nil {
		s.recordError("incr", err)
		return false, 0, fmt.Errorf("rate limit incr: %w", err)
	}

	// First request in the window owns setting the expiry.
	if count == 1 {
		if err := s.client.Expire(ctx, redisKey, cfg.Window).Err(); err != nil {
			s.recordError("expire", err)
			return false, 0, fmt.Errorf("rate limit expire: %w", err)
		}
	}

	if count > int64(cfg.Requests) {
		ttl, err := s.client.TTL(ctx, redisKey).Result()
		if err != nil || ttl < 0 {
			ttl = cfg.Window
		}
		retryAfter := int(ttl.Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		return false, retryAfter, nil
	}

	return true, 0, nil
}

func (s *RedisRateLimitStore) recordError(op string, err error) {
	if s.metrics != nil {
		s.metrics.IncRateLimitRedisErrors()
	}
	if s.logger != nil {
		s.logger.Warn("rate limit redis error, failing open",
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
	}
}

var _ RateLimitStore = (*RedisRateLimitStore)(nil)
