package service

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidSessionToken is returned when a bearer credential cannot be decoded or verified.
var ErrInvalidSessionToken = errors.New("invalid session token")

// SessionClaims is the decoded content of a bearer credential.
type SessionClaims struct {
	Issuer    string
	SessionID uuid.UUID // JWT subject
	AccountID uuid.UUID // JWT audience
	IssuedAt  time.Time
	ExpiresAt *time.Time
}

// SessionTokenService mints and verifies the signed bearer credential carried by clients.
type SessionTokenService interface {
	// Mint creates a signed credential for the session.
	Mint(sessionID, accountID uuid.UUID, issuedAt time.Time) (string, error)

	// Parse verifies the signature and returns the claims.
	Parse(token string) (*SessionClaims, error)

	// TTL is the credential lifetime; zero means the credential carries no expiry.
	TTL() time.Duration
}
