package pubsub

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	deliverycontext "authflow/internal/delivery/context"
	"authflow/internal/domain/constants"
	"authflow/internal/domain/service"

	"cloud.google.com/go/pubsub/v2"
	pubsubpb "cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"github.com/pkg/errors"
)

// Callbacks are published one at a time while a browser waits on the completion poll, so
// batching is limited to a few milliseconds.
const publishDelayThreshold = 5 * time.Millisecond

type googlePubSubPublisher struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
	logger    *slog.Logger
}

// NewGooglePubSubPublisher connects to the topic and fails fast when it does not exist.
func NewGooglePubSubPublisher(ctx context.Context, projectID, topicID string, logger *slog.Logger) (service.EventPublisher, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	topicPath := "projects/" + projectID + "/topics/" + topicID
	if _, err := client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: topicPath}); err != nil {
		client.Close()

		return nil, errors.Wrapf(err, "failed to get topic %s", topicID)
	}

	publisher := client.Publisher(topicID)
	publisher.PublishSettings.DelayThreshold = publishDelayThreshold
	publisher.PublishSettings.CountThreshold = 1

	return &googlePubSubPublisher{
		client:    client,
		publisher: publisher,
		logger:    logger,
	}, nil
}

// PublishOAuthCallback blocks until the broker has accepted the message.
func (p *googlePubSubPublisher) PublishOAuthCallback(ctx context.Context, event *service.OAuthCallbackEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return errors.WithStack(err)
	}

	result := p.publisher.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: eventAttributes(event),
	})
	serverID, err := result.Get(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to publish oauth callback")
	}

	deliverycontext.GetLoggerOrDefault(ctx, p.logger).Debug("[GooglePubSub] Event published",
		slog.String(constants.AttrCallbackID, event.CallbackID),
		slog.String(constants.AttrProvider, event.Provider),
		slog.String("server_id", serverID),
	)

	return nil
}

// Close flushes pending messages and releases the client.
func (p *googlePubSubPublisher) Close() error {
	p.publisher.Stop()

	return errors.WithStack(p.client.Close())
}
