package repository

import (
	"context"
	"errors"

	"authflow/internal/domain/entity"

	"github.com/google/uuid"
)

// Domain-specific errors for the OAuth correlation records.
var (
	// ErrOAuthStateNotFound is returned when no state matches the correlation token.
	ErrOAuthStateNotFound = errors.New("oauth state not found")
	// ErrOAuthStateCompleted is returned when a state already carries an account and session.
	ErrOAuthStateCompleted = errors.New("oauth state already completed")
	// ErrCallbackNotFound is returned when a callback record does not exist.
	ErrCallbackNotFound = errors.New("oauth callback not found")
	// ErrCallbackExists is returned when a callback was already recorded for the state.
	ErrCallbackExists = errors.New("oauth callback already recorded for state")
)

// OAuthStateRepository persists authorization correlation records.
type OAuthStateRepository interface {
	Create(ctx context.Context, state *entity.OAuthState) error

	// FindByState looks up the record by its correlation token.
	// Reads go to the primary so pollers observe the exchange worker's write promptly.
	FindByState(ctx context.Context, state string) (*entity.OAuthState, error)

	// Complete writes account and session onto a state that has neither.
	// Returns ErrOAuthStateCompleted when the pair was already written.
	Complete(ctx context.Context, id, accountID, sessionID uuid.UUID) error
}

// OAuthCallbackRepository persists the callback work items.
type OAuthCallbackRepository interface {
	// Create records a callback. Returns ErrCallbackExists when one exists for the same state.
	Create(ctx context.Context, callback *entity.OAuthCallback) error

	FindByID(ctx context.Context, id uuid.UUID) (*entity.OAuthCallback, error)

	// Claim marks an unprocessed, unclaimed callback as taken by the caller.
	// It returns false when another consumer already claimed or processed it.
	Claim(ctx context.Context, id uuid.UUID) (bool, error)

	// MarkProcessed makes the callback terminal, recording errMsg when non-empty.
	MarkProcessed(ctx context.Context, id uuid.UUID, errMsg string) error
}
