package service

import (
	"context"

	"authflow/internal/domain/entity"
)

// OAuthProvider performs the provider-specific legs of an authorization code flow with PKCE.
type OAuthProvider interface {
	// Name returns the provider identifier.
	Name() entity.Provider

	// AuthCodeURL builds the authorization URL carrying state and the S256 challenge of verifier.
	AuthCodeURL(state, verifier, redirectURI string) string

	// Exchange trades an authorization code for normalized tokens.
	Exchange(ctx context.Context, code, verifier, redirectURI string) (*entity.ProviderTokens, error)

	// FetchProfile retrieves the user profile with the access token.
	FetchProfile(ctx context.Context, tokens *entity.ProviderTokens) (*entity.ProviderProfile, error)
}

// OAuthProviderRegistry resolves configured providers.
type OAuthProviderRegistry interface {
	// Get returns the provider, or false when it is not on the allow-list or not configured.
	Get(name entity.Provider) (OAuthProvider, bool)

	// Enabled lists configured providers.
	Enabled() []entity.Provider
}
