package ratelimit

import (
	"context"
	"strings"
	"time"

	"authflow/internal/domain/service"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// redisThrottle counts issuances in a fixed window shared by every instance.
type redisThrottle struct {
	client redis.Cmdable
	limit  int64
	window time.Duration
}

// NewRedisThrottle creates a throttle backed by client.
func NewRedisThrottle(client redis.Cmdable, limit int, window time.Duration) service.OTPThrottle {
	return &redisThrottle{
		client: client,
		limit:  int64(limit),
		window: window,
	}
}

// Allow increments the counter for key; the window starts at the first increment.
func (t *redisThrottle) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := keyPrefix + strings.ToLower(key)

	var incr *redis.IntCmd
	_, err := t.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		pipe.ExpireNX(ctx, redisKey, t.window)

		return nil
	})
	if err != nil {
		return false, errors.Wrap(err, "failed to increment otp counter")
	}

	return incr.Val() <= t.limit, nil
}
