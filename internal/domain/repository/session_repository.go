package repository

import (
	"context"
	"errors"
	"time"

	"authflow/internal/domain/entity"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned when a session does not exist.
var ErrSessionNotFound = errors.New("session not found")

// SessionRepository persists logged-in sessions.
type SessionRepository interface {
	Create(ctx context.Context, session *entity.Session) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Session, error)

	// Touch updates the last activity timestamp.
	Touch(ctx context.Context, id uuid.UUID, activeAt time.Time) error

	// Delete removes the session. Returns ErrSessionNotFound when nothing was deleted.
	Delete(ctx context.Context, id uuid.UUID) error
}
