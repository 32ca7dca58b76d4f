package service

import (
	"context"
)

// OAuthCallbackEvent asks the exchange consumer to process a recorded callback.
type OAuthCallbackEvent struct {
	RequestID  string `json:"request_id,omitempty"` // For distributed tracing
	CallbackID string `json:"callback_id"`
	Provider   string `json:"provider"`
}

// EventPublisher defines the interface for publishing events to a message queue
type EventPublisher interface {
	// PublishOAuthCallback enqueues a callback for asynchronous exchange.
	PublishOAuthCallback(ctx context.Context, event *OAuthCallbackEvent) error

	// Close releases any resources held by the publisher
	Close() error
}

// EventSubscriber exposes the consuming side of an in-process queue.
type EventSubscriber interface {
	Events() <-chan *OAuthCallbackEvent
}
