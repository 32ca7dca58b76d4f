package repository

import (
	"context"
	"errors"

	"authflow/internal/domain/entity"

	"github.com/google/uuid"
)

var (
	// ErrProfileNotFound is returned when an account has no profile.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrUsernameTaken is returned when the unique username constraint rejects a write.
	ErrUsernameTaken = errors.New("username already taken")
)

// ProfileRepository persists the public profile that accompanies an account.
type ProfileRepository interface {
	Create(ctx context.Context, profile *entity.Profile) error
	FindByAccountID(ctx context.Context, accountID uuid.UUID) (*entity.Profile, error)
}
