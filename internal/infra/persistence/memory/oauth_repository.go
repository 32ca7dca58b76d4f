package memory

import (
	"context"

	"authflow/internal/domain/entity"
	"authflow/internal/domain/repository"

	"github.com/google/uuid"
)

type oauthStateRepository struct {
	store *Store
	tx    *undoLog
}

func (r *oauthStateRepository) Create(_ context.Context, state *entity.OAuthState) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if state.ID == uuid.Nil {
		state.ID = uuid.New()
	}
	if state.CreatedAt.IsZero() {
		state.CreatedAt = r.store.now()
	}

	r.store.states[state.ID] = *copyState(*state)
	r.store.stateByName[state.State] = state.ID

	id, name := state.ID, state.State
	r.tx.add(func() {
		delete(r.store.states, id)
		delete(r.store.stateByName, name)
	})

	return nil
}

func (r *oauthStateRepository) FindByState(_ context.Context, name string) (*entity.OAuthState, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	id, ok := r.store.stateByName[name]
	if !ok {
		return nil, repository.ErrOAuthStateNotFound
	}

	return copyState(r.store.states[id]), nil
}

func (r *oauthStateRepository) Complete(_ context.Context, id, accountID, sessionID uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	prev, ok := r.store.states[id]
	if !ok {
		return repository.ErrOAuthStateNotFound
	}
	if prev.AccountID != nil || prev.SessionID != nil {
		return repository.ErrOAuthStateCompleted
	}

	next := *copyState(prev)
	next.AccountID = &accountID
	next.SessionID = &sessionID
	r.store.states[id] = next

	r.tx.add(func() { r.store.states[id] = prev })

	return nil
}

func copyState(s entity.OAuthState) *entity.OAuthState {
	s.AccountID = cloneUUID(s.AccountID)
	s.SessionID = cloneUUID(s.SessionID)

	return &s
}

type oauthCallbackRepository struct {
	store *Store
	tx    *undoLog
}

func (r *oauthCallbackRepository) Create(_ context.Context, callback *entity.OAuthCallback) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.callbackByState[callback.State]; exists {
		return repository.ErrCallbackExists
	}

	if callback.ID == uuid.Nil {
		callback.ID = uuid.New()
	}
	if callback.CreatedAt.IsZero() {
		callback.CreatedAt = r.store.now()
	}

	r.store.callbacks[callback.ID] = *copyCallback(*callback)
	r.store.callbackByState[callback.State] = callback.ID

	id, state := callback.ID, callback.State
	r.tx.add(func() {
		delete(r.store.callbacks, id)
		delete(r.store.callbackByState, state)
	})

	return nil
}

func (r *oauthCallbackRepository) FindByID(_ context.Context, id uuid.UUID) (*entity.OAuthCallback, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	callback, ok := r.store.callbacks[id]
	if !ok {
		return nil, repository.ErrCallbackNotFound
	}

	return copyCallback(callback), nil
}

func (r *oauthCallbackRepository) Claim(_ context.Context, id uuid.UUID) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	prev, ok := r.store.callbacks[id]
	if !ok {
		return false, repository.ErrCallbackNotFound
	}
	if prev.Processed || prev.ClaimedAt != nil {
		return false, nil
	}

	next := *copyCallback(prev)
	claimedAt := r.store.now()
	next.ClaimedAt = &claimedAt
	r.store.callbacks[id] = next

	r.tx.add(func() { r.store.callbacks[id] = prev })

	return true, nil
}

func (r *oauthCallbackRepository) MarkProcessed(_ context.Context, id uuid.UUID, errMsg string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	prev, ok := r.store.callbacks[id]
	if !ok {
		return repository.ErrCallbackNotFound
	}

	next := *copyCallback(prev)
	next.Processed = true
	next.Error = errMsg
	r.store.callbacks[id] = next

	r.tx.add(func() { r.store.callbacks[id] = prev })

	return nil
}

func copyCallback(c entity.OAuthCallback) *entity.OAuthCallback {
	c.ClaimedAt = cloneTime(c.ClaimedAt)

	return &c
}
