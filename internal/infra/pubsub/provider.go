package pubsub

import (
	"context"
	"log/slog"

	"authflow/config"
	"authflow/internal/domain/constants"
	"authflow/internal/domain/service"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// PublisherParams holds dependencies for EventPublisher, injected by Fx
type PublisherParams struct {
	fx.In

	Lc     fx.Lifecycle
	Ctx    context.Context
	Config *config.Config
	Logger *slog.Logger
}

// PublisherResult exposes the publisher and, for the in-process provider, the queue's
// consuming side. Subscriber is nil for external brokers.
type PublisherResult struct {
	fx.Out

	Publisher  service.EventPublisher
	Subscriber service.EventSubscriber
}

// NewEventPublisher creates an EventPublisher based on configuration
func NewEventPublisher(params PublisherParams) (PublisherResult, error) {
	cfg := params.Config.PubSub
	logger := params.Logger

	provider := constants.PubSubProviderInProcess
	if cfg != nil && cfg.Provider != "" {
		provider = cfg.Provider
	}

	var (
		publisher  service.EventPublisher
		subscriber service.EventSubscriber
		err        error
	)

	switch provider {
	case constants.PubSubProviderInProcess:
		size := 0
		if cfg != nil {
			size = cfg.QueueSize
		}
		logger.Info("Using in-process queue for OAuth callbacks", slog.Int("queue_size", size))

		queue := NewInProcessQueue(size, logger)
		publisher = queue
		subscriber = queue

	case constants.PubSubProviderLocal:
		if cfg.LocalEndpoint == "" {
			return PublisherResult{}, errors.New("local endpoint is required for local provider")
		}
		logger.Info("Using local HTTP publisher for Pub/Sub",
			slog.String("endpoint", cfg.LocalEndpoint),
		)

		publisher = NewLocalHTTPPublisher(cfg.LocalEndpoint, logger)

	case constants.PubSubProviderGoogle:
		if cfg.ProjectID == "" {
			return PublisherResult{}, errors.New("project ID is required for google provider")
		}
		if cfg.TopicID == "" {
			return PublisherResult{}, errors.New("topic ID is required for google provider")
		}
		logger.Info("Using Google Pub/Sub publisher",
			slog.String("project_id", cfg.ProjectID),
			slog.String("topic_id", cfg.TopicID),
		)

		publisher, err = NewGooglePubSubPublisher(params.Ctx, cfg.ProjectID, cfg.TopicID, logger)
		if err != nil {
			return PublisherResult{}, err
		}

	default:
		return PublisherResult{}, errors.Errorf("unknown pubsub provider: %s", provider)
	}

	// Register lifecycle hook to close publisher on shutdown
	params.Lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Info("Closing EventPublisher")

			return publisher.Close()
		},
	})

	return PublisherResult{Publisher: publisher, Subscriber: subscriber}, nil
}
