package usecase

import (
	"context"
	"time"

	"authflow/internal/domain/entity"

	"github.com/google/uuid"
)

// FinalizeSessionInput identifies a session created by an earlier sign-in step.
type FinalizeSessionInput struct {
	SessionID uuid.UUID
	AccountID uuid.UUID
}

// SessionToken is a signed bearer credential for a session.
type SessionToken struct {
	Token     string
	SessionID uuid.UUID
	AccountID uuid.UUID
	ExpiresAt *time.Time
}

// AuthenticatedSession is the result of validating a bearer credential.
type AuthenticatedSession struct {
	Session *entity.Session
	Account *entity.Account
}

// CurrentSession describes the signed-in account for display.
type CurrentSession struct {
	Session *entity.Session
	Account *entity.Account
	Profile *entity.Profile
}

// SessionUsecase manages bearer credentials for existing sessions.
type SessionUsecase interface {
	// Finalize mints the credential for a session. Calling it again for the same session
	// returns an equivalent credential.
	Finalize(ctx context.Context, input *FinalizeSessionInput) (*SessionToken, error)

	// Authenticate verifies a credential and loads its live session.
	Authenticate(ctx context.Context, token string) (*AuthenticatedSession, error)

	// Current loads the session together with its account and profile.
	Current(ctx context.Context, sessionID uuid.UUID) (*CurrentSession, error)

	// Logout deletes the session, invalidating every credential minted for it.
	Logout(ctx context.Context, sessionID uuid.UUID) error
}
