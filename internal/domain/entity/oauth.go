package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// OAuthState correlates an authorization request with its provider callback.
// AccountID and SessionID are written together, once, when the exchange completes.
type OAuthState struct {
	ID               uuid.UUID
	State            string
	Provider         Provider
	CodeVerifier     string
	RedirectURI      string
	AuthorizationURL string
	ExpiresAt        time.Time
	AccountID        *uuid.UUID
	SessionID        *uuid.UUID
	CreatedAt        time.Time
}

// IsExpired reports whether the state is past its TTL.
func (s *OAuthState) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// IsComplete reports whether the exchange has linked an account and a session.
func (s *OAuthState) IsComplete() bool {
	return s.AccountID != nil && s.SessionID != nil
}

// OAuthCallback is the durable work item created when a provider redirects back.
type OAuthCallback struct {
	ID        uuid.UUID
	Provider  Provider
	Code      string
	State     string
	Processed bool
	Error     string
	ClaimedAt *time.Time
	CreatedAt time.Time
}

// SocialAccount links an Account to an identity at an external provider.
type SocialAccount struct {
	ID                uuid.UUID
	AccountID         uuid.UUID
	Provider          Provider
	ProviderAccountID string
	AccessToken       string
	RefreshToken      string
	TokenType         string
	ExpiresAt         *time.Time
	Scope             string
	IDToken           string
	ProviderData      json.RawMessage
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ApplyTokens overwrites token material with a fresh exchange result.
func (s *SocialAccount) ApplyTokens(tokens *ProviderTokens) {
	s.AccessToken = tokens.AccessToken
	s.RefreshToken = tokens.RefreshToken
	s.TokenType = tokens.TokenType
	s.ExpiresAt = tokens.ExpiresAt
	s.Scope = tokens.Scope
	s.IDToken = tokens.IDToken
}

// ProviderTokens is the normalized result of an authorization code exchange.
type ProviderTokens struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresAt    *time.Time
	Scope        string
	IDToken      string
}

// ProviderProfile is the normalized user profile returned by a provider.
type ProviderProfile struct {
	ProviderAccountID string
	Email             string
	Name              string
	Image             string
	Raw               json.RawMessage
}
