package pubsub

import (
	"context"
	"log/slog"
	"sync"

	"authflow/internal/domain/constants"
	"authflow/internal/domain/service"

	"github.com/pkg/errors"
)

const defaultQueueSize = 256

// ErrQueueClosed is returned when publishing to a closed in-process queue.
var ErrQueueClosed = errors.New("in-process queue is closed")

// InProcessQueue is a buffered channel shared by the publisher and a consumer running in the
// same binary. Delivery is at-most-once: events buffered at shutdown are dropped, and the
// callback rows they reference stay unclaimed.
type InProcessQueue struct {
	mu     sync.RWMutex
	closed bool
	events chan *service.OAuthCallbackEvent
	logger *slog.Logger
}

// NewInProcessQueue creates a queue holding up to size pending events.
func NewInProcessQueue(size int, logger *slog.Logger) *InProcessQueue {
	if size <= 0 {
		size = defaultQueueSize
	}

	return &InProcessQueue{
		events: make(chan *service.OAuthCallbackEvent, size),
		logger: logger,
	}
}

// PublishOAuthCallback enqueues the event, waiting for buffer space until ctx is done.
func (q *InProcessQueue) PublishOAuthCallback(ctx context.Context, event *service.OAuthCallbackEvent) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.events <- event:
		q.logger.Debug("[InProcessQueue] Event enqueued",
			slog.String(constants.AttrCallbackID, event.CallbackID),
			slog.Int("depth", len(q.events)),
		)

		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "in-process queue is full")
	}
}

// Events exposes the consuming side of the queue. The channel is closed by Close.
func (q *InProcessQueue) Events() <-chan *service.OAuthCallbackEvent {
	return q.events
}

// Close stops accepting events and closes the channel so consumers drain and exit.
func (q *InProcessQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	close(q.events)

	return nil
}
