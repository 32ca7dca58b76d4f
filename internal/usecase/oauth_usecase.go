// Package usecase contains the application-specific business rules.
// It orchestrates the domain layer to perform tasks.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// --- Input DTOs ---

// StartAuthorizationInput names the provider and the exact redirect URI registered with it.
type StartAuthorizationInput struct {
	Provider    string
	RedirectURI string
}

// ReceiveCallbackInput is what the provider sent back to the redirect URI.
type ReceiveCallbackInput struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// PollCompletionInput asks for the status of an authorization. Attempt is incremented by the caller.
type PollCompletionInput struct {
	State   string
	Attempt int
}

// --- Output DTOs ---

// StartAuthorizationOutput carries the URL the client must visit.
type StartAuthorizationOutput struct {
	AuthorizationURL string
	State            string
	ExpiresAt        time.Time
}

// ReceiveCallbackOutput identifies the recorded callback.
type ReceiveCallbackOutput struct {
	CallbackID uuid.UUID
	State      string
}

// PollStatus is the state of an authorization as seen by a polling client.
type PollStatus string

const (
	PollStatusPending  PollStatus = "pending"
	PollStatusComplete PollStatus = "complete"
	PollStatusFailed   PollStatus = "failed"
)

// PollCompletionOutput answers one poll. NextAttempt and RetryAfter are only set while pending;
// AccountID and SessionID only when complete.
type PollCompletionOutput struct {
	Status      PollStatus
	Attempt     int
	NextAttempt int
	MaxAttempts int
	RetryAfter  time.Duration
	AccountID   uuid.UUID
	SessionID   uuid.UUID
	Reason      string
}

// OAuthUsecase drives the client-facing legs of an OAuth authorization.
type OAuthUsecase interface {
	// StartAuthorization records a state and PKCE verifier and returns the provider URL.
	StartAuthorization(ctx context.Context, input *StartAuthorizationInput) (*StartAuthorizationOutput, error)

	// ReceiveCallback records the provider redirect and enqueues it for exchange.
	ReceiveCallback(ctx context.Context, input *ReceiveCallbackInput) (*ReceiveCallbackOutput, error)

	// PollCompletion reports whether the exchange linked an account and session to the state.
	PollCompletion(ctx context.Context, input *PollCompletionInput) (*PollCompletionOutput, error)
}

// OAuthExchangeUsecase consumes recorded callbacks.
type OAuthExchangeUsecase interface {
	// ProcessCallback runs the exchange for one callback. Flow failures are recorded on the
	// callback and do not surface as errors; an error means the callback was left untouched
	// and delivery may be retried.
	ProcessCallback(ctx context.Context, callbackID uuid.UUID) error
}
