package memory

import (
	"context"

	"authflow/internal/domain/entity"
	"authflow/internal/domain/repository"

	"github.com/google/uuid"
)

type socialAccountRepository struct {
	store *Store
	tx    *undoLog
}

func (r *socialAccountRepository) FindByProvider(_ context.Context, provider entity.Provider, providerAccountID string) (*entity.SocialAccount, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	social, ok := r.store.socials[socialKey{provider, providerAccountID}]
	if !ok {
		return nil, repository.ErrSocialAccountNotFound
	}

	return copySocial(social), nil
}

func (r *socialAccountRepository) Create(_ context.Context, social *entity.SocialAccount) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	key := socialKey{social.Provider, social.ProviderAccountID}
	if _, exists := r.store.socials[key]; exists {
		return repository.ErrSocialAccountExists
	}

	if social.ID == uuid.Nil {
		social.ID = uuid.New()
	}
	now := r.store.now()
	if social.CreatedAt.IsZero() {
		social.CreatedAt = now
	}
	social.UpdatedAt = now

	r.store.socials[key] = *copySocial(*social)
	r.tx.add(func() { delete(r.store.socials, key) })

	return nil
}

func (r *socialAccountRepository) UpdateTokens(_ context.Context, social *entity.SocialAccount) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for key, prev := range r.store.socials {
		if prev.ID != social.ID {
			continue
		}

		next := *copySocial(prev)
		next.AccessToken = social.AccessToken
		next.RefreshToken = social.RefreshToken
		next.TokenType = social.TokenType
		next.ExpiresAt = cloneTime(social.ExpiresAt)
		next.Scope = social.Scope
		next.IDToken = social.IDToken
		next.ProviderData = cloneBytes(social.ProviderData)
		next.UpdatedAt = r.store.now()
		r.store.socials[key] = next

		r.tx.add(func() { r.store.socials[key] = prev })

		return nil
	}

	return repository.ErrSocialAccountNotFound
}

func copySocial(s entity.SocialAccount) *entity.SocialAccount {
	s.ExpiresAt = cloneTime(s.ExpiresAt)
	s.ProviderData = cloneBytes(s.ProviderData)

	return &s
}
