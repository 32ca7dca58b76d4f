// Package ratelimit bounds how often one-time codes are issued per email address.
package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"authflow/config"
	"authflow/internal/domain/lifecycle"
	"authflow/internal/domain/service"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

const (
	defaultLimit  = 5
	defaultWindow = 15 * time.Minute
	keyPrefix     = "authflow:otp:"
)

// ThrottleParams holds dependencies for OTPThrottle, injected by Fx
type ThrottleParams struct {
	fx.In

	Lc     fx.Lifecycle
	Config *config.Config
	Logger *slog.Logger
}

// NewOTPThrottle uses redis when a host is configured and a process-local counter otherwise.
// A non-positive limit disables throttling.
func NewOTPThrottle(params ThrottleParams) (service.OTPThrottle, error) {
	limit, window := params.Config.OTP.ResendLimit, params.Config.OTP.ResendWindow
	if window <= 0 {
		window = defaultWindow
	}
	if limit == 0 {
		limit = defaultLimit
	}
	if limit < 0 {
		params.Logger.Warn("OTP throttling disabled")

		return unlimited{}, nil
	}

	redisCfg := params.Config.Redis
	if redisCfg == nil || redisCfg.Host == "" {
		params.Logger.Info("Using in-memory OTP throttle",
			slog.Int("limit", limit),
			slog.Duration("window", window),
		)

		return NewMemoryThrottle(limit, window), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     redisCfg.Addr(),
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	})

	params.Lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, lifecycle.DefaultTimeout)
			defer cancel()

			if err := client.Ping(ctx).Err(); err != nil {
				return errors.Wrap(err, "failed to connect to redis")
			}
			params.Logger.Info("Connected to redis for OTP throttle", slog.String("addr", redisCfg.Addr()))

			return nil
		},
		OnStop: func(context.Context) error {
			params.Logger.Info("Closing redis client")

			return client.Close()
		},
	})

	return NewRedisThrottle(client, limit, window), nil
}

type unlimited struct{}

func (unlimited) Allow(context.Context, string) (bool, error) { return true, nil }
