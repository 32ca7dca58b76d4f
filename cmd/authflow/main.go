package main

import (
	"context"
	"log/slog"
	"os"

	"authflow/config"
	"authflow/internal/delivery"
	"authflow/internal/delivery/api"
	"authflow/internal/delivery/api/middleware"
	"authflow/internal/delivery/api/router/handler"
	"authflow/internal/delivery/worker"
	"authflow/internal/infra/auth"
	"authflow/internal/infra/auth/oauth"
	"authflow/internal/infra/email"
	logs "authflow/internal/infra/log"
	"authflow/internal/infra/metrics"
	"authflow/internal/infra/persistence"
	"authflow/internal/infra/pubsub"
	"authflow/internal/infra/ratelimit"
	"authflow/internal/usecase/impl"

	"go.uber.org/fx"
)

type startServerParams struct {
	fx.In
	fx.Lifecycle
	fx.Shutdowner

	Deliveries []delivery.Delivery `group:"deliveries"`
}

func main() {
	fx.New(
		injectInfra(),
		injectService(),
		injectUsecase(),
		injectDelivery(),
		injectMiddleware(),
		injectHandler(),
		fx.Invoke(
			startServer,
		),
	).Run()
}

func injectInfra() fx.Option {
	return fx.Provide(
		config.New,
		logs.New,
		context.Background,
		persistence.New,
		metrics.New,
	)
}

func injectService() fx.Option {
	return fx.Options(
		fx.Provide(
			auth.NewBcryptHasher,
			auth.NewJWTSessionTokenService,
			oauth.NewRegistry,
			pubsub.NewEventPublisher,
			email.NewEmailSender,
			ratelimit.NewOTPThrottle,
		),
	)
}

func injectUsecase() fx.Option {
	return fx.Options(
		fx.Provide(
			impl.NewAccountProvisioner,
			impl.NewOTPEngine,
			impl.NewSessionIssuer,
			impl.NewOAuthService,
			impl.NewOAuthExchangeService,
			impl.NewEmailAuthService,
			impl.NewSessionService,
		),
	)
}

func injectMiddleware() fx.Option {
	return fx.Options(
		fx.Provide(
			middleware.NewAuthMiddleware,
		),
	)
}

func injectHandler() fx.Option {
	return fx.Options(
		fx.Provide(
			handler.NewOAuthHandler,
			handler.NewEmailAuthHandler,
			handler.NewSessionHandler,
		),
	)
}

// injectDelivery runs the API and, for the in-process queue, the exchange consumer next to it.
func injectDelivery() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				api.NewServer,
				fx.ResultTags(`group:"deliveries"`),
			),
			fx.Annotate(
				worker.NewQueueConsumer,
				fx.ResultTags(`group:"deliveries"`),
			),
		),
	)
}

func startServer(ctx context.Context, params startServerParams) {
	for _, delivery := range params.Deliveries {
		go func() {
			if err := delivery.Serve(ctx); err != nil {
				slog.Error("Failed to start server", slog.Any("error", err))

				// Trigger graceful shutdown to execute all OnStop hooks
				if shutdownErr := params.Shutdown(); shutdownErr != nil {
					slog.Error("Failed to shutdown gracefully", slog.Any("error", shutdownErr))
					os.Exit(1)
				}
			}
		}()
	}
}
