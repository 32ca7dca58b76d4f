package repository

import (
	"context"
	"errors"

	"authflow/internal/domain/entity"
)

var (
	// ErrSocialAccountNotFound is returned when no provider identity matches.
	ErrSocialAccountNotFound = errors.New("social account not found")
	// ErrSocialAccountExists is returned when the (provider, provider account id) pair is already linked.
	ErrSocialAccountExists = errors.New("social account already linked")
)

// SocialAccountRepository persists links between accounts and provider identities.
type SocialAccountRepository interface {
	FindByProvider(ctx context.Context, provider entity.Provider, providerAccountID string) (*entity.SocialAccount, error)
	Create(ctx context.Context, social *entity.SocialAccount) error

	// UpdateTokens replaces token material and the raw provider payload.
	UpdateTokens(ctx context.Context, social *entity.SocialAccount) error
}
