package memory

import (
	"context"

	"authflow/internal/domain/entity"
	"authflow/internal/domain/repository"

	"github.com/google/uuid"
)

type profileRepository struct {
	store *Store
	tx    *undoLog
}

func (r *profileRepository) Create(_ context.Context, profile *entity.Profile) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, taken := r.store.profileByUsername[profile.Username]; taken {
		return repository.ErrUsernameTaken
	}
	if _, exists := r.store.profiles[profile.AccountID]; exists {
		return repository.ErrUsernameTaken
	}

	if profile.ID == uuid.Nil {
		profile.ID = uuid.New()
	}
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = r.store.now()
	}

	r.store.profiles[profile.AccountID] = *profile
	r.store.profileByUsername[profile.Username] = profile.AccountID

	accountID, username := profile.AccountID, profile.Username
	r.tx.add(func() {
		delete(r.store.profiles, accountID)
		delete(r.store.profileByUsername, username)
	})

	return nil
}

func (r *profileRepository) FindByAccountID(_ context.Context, accountID uuid.UUID) (*entity.Profile, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	profile, ok := r.store.profiles[accountID]
	if !ok {
		return nil, repository.ErrProfileNotFound
	}

	return &profile, nil
}
