package ratelimit

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"authflow/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
)

func TestMemoryThrottle_LimitsWithinWindow(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	throttle := NewMemoryThrottle(2, time.Minute)
	throttle.now = func() time.Time { return now }

	ctx := context.Background()
	for i := range 2 {
		ok, err := throttle.Allow(ctx, "foo@bar.com")
		require.NoError(t, err)
		assert.True(t, ok, "attempt %d", i+1)
	}

	ok, err := throttle.Allow(ctx, "FOO@bar.com")
	require.NoError(t, err)
	assert.False(t, ok, "keys are case-insensitive")

	ok, err = throttle.Allow(ctx, "other@bar.com")
	require.NoError(t, err)
	assert.True(t, ok, "other keys have their own budget")

	now = now.Add(time.Minute)
	ok, err = throttle.Allow(ctx, "foo@bar.com")
	require.NoError(t, err)
	assert.True(t, ok, "a new window starts after expiry")
}

func TestMemoryThrottle_EvictsExpiredWindows(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	throttle := NewMemoryThrottle(1, time.Minute)
	throttle.now = func() time.Time { return now }

	_, _ = throttle.Allow(context.Background(), "a@x.io")
	_, _ = throttle.Allow(context.Background(), "b@x.io")
	require.Len(t, throttle.windows, 2)

	now = now.Add(2 * time.Minute)
	_, _ = throttle.Allow(context.Background(), "c@x.io")
	assert.Len(t, throttle.windows, 1)
}

func TestNewOTPThrottle_SelectsImplementation(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("memory without redis host", func(t *testing.T) {
		throttle, err := NewOTPThrottle(ThrottleParams{
			Lc:     fxtest.NewLifecycle(t),
			Config: &config.Config{OTP: config.OTPConfig{ResendLimit: 3}},
			Logger: logger,
		})
		require.NoError(t, err)
		assert.IsType(t, &MemoryThrottle{}, throttle)
	})

	t.Run("disabled with negative limit", func(t *testing.T) {
		throttle, err := NewOTPThrottle(ThrottleParams{
			Lc:     fxtest.NewLifecycle(t),
			Config: &config.Config{OTP: config.OTPConfig{ResendLimit: -1}},
			Logger: logger,
		})
		require.NoError(t, err)
		for range 10 {
			ok, err := throttle.Allow(context.Background(), "foo@bar.com")
			require.NoError(t, err)
			assert.True(t, ok)
		}
	})

	t.Run("redis with host", func(t *testing.T) {
		throttle, err := NewOTPThrottle(ThrottleParams{
			Lc: fxtest.NewLifecycle(t),
			Config: &config.Config{
				OTP:   config.OTPConfig{ResendLimit: 3},
				Redis: &config.RedisConfig{Host: "127.0.0.1", Port: 6379},
			},
			Logger: logger,
		})
		require.NoError(t, err)
		assert.IsType(t, &redisThrottle{}, throttle)
	})
}
