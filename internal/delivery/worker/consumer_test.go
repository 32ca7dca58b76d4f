package worker

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"authflow/config"
	deliverycontext "authflow/internal/delivery/context"
	"authflow/internal/domain/service"
	"authflow/internal/infra/pubsub"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingExchange struct {
	mu         sync.Mutex
	processed  []uuid.UUID
	requestIDs []string
	fail       bool
}

func (r *recordingExchange) ProcessCallback(ctx context.Context, callbackID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.processed = append(r.processed, callbackID)
	r.requestIDs = append(r.requestIDs, deliverycontext.GetRequestIDFromContext(ctx))
	if r.fail {
		return errors.New("claim failed")
	}

	return nil
}

func (r *recordingExchange) snapshot() ([]uuid.UUID, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]uuid.UUID(nil), r.processed...), append([]string(nil), r.requestIDs...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestQueueConsumer_DrainsUntilClosed(t *testing.T) {
	queue := pubsub.NewInProcessQueue(8, discardLogger())
	exchange := &recordingExchange{}
	consumer := NewQueueConsumer(QueueConsumerParams{
		Cfg:        &config.Config{PubSub: &config.PubSubConfig{Consumers: 3}},
		Logger:     discardLogger(),
		Subscriber: queue,
		ExchangeUC: exchange,
	})

	done := make(chan error, 1)
	go func() { done <- consumer.Serve(context.Background()) }()

	want := []uuid.UUID{uuid.New(), uuid.New(), uuid.New(), uuid.New()}
	for i, id := range want {
		requestID := ""
		if i == 0 {
			requestID = "req-1"
		}
		require.NoError(t, queue.PublishOAuthCallback(context.Background(), &service.OAuthCallbackEvent{
			RequestID:  requestID,
			CallbackID: id.String(),
			Provider:   "google",
		}))
	}
	require.NoError(t, queue.PublishOAuthCallback(context.Background(), &service.OAuthCallbackEvent{CallbackID: "garbage"}))

	require.Eventually(t, func() bool {
		processed, _ := exchange.snapshot()

		return len(processed) == len(want)
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, queue.Close())
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop after the queue closed")
	}

	processed, requestIDs := exchange.snapshot()
	assert.ElementsMatch(t, want, processed)
	assert.Contains(t, requestIDs, "req-1")
	for _, id := range requestIDs {
		assert.NotEmpty(t, id)
	}
}

func TestQueueConsumer_FailureDoesNotStopWorkers(t *testing.T) {
	queue := pubsub.NewInProcessQueue(4, discardLogger())
	exchange := &recordingExchange{fail: true}
	consumer := NewQueueConsumer(QueueConsumerParams{
		Cfg:        &config.Config{},
		Logger:     discardLogger(),
		Subscriber: queue,
		ExchangeUC: exchange,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- consumer.Serve(ctx) }()

	for range 2 {
		require.NoError(t, queue.PublishOAuthCallback(ctx, &service.OAuthCallbackEvent{CallbackID: uuid.NewString()}))
	}

	require.Eventually(t, func() bool {
		processed, _ := exchange.snapshot()

		return len(processed) == 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop on cancel")
	}
}

func TestQueueConsumer_WithoutSubscriber(t *testing.T) {
	consumer := NewQueueConsumer(QueueConsumerParams{
		Cfg:        &config.Config{},
		Logger:     discardLogger(),
		ExchangeUC: &recordingExchange{},
	})

	require.NoError(t, consumer.Serve(context.Background()))
}
