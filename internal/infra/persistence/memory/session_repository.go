package memory

import (
	"context"
	"time"

	"authflow/internal/domain/entity"
	"authflow/internal/domain/repository"

	"github.com/google/uuid"
)

type sessionRepository struct {
	store *Store
	tx    *undoLog
}

func (r *sessionRepository) Create(_ context.Context, session *entity.Session) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = r.store.now()
	}

	r.store.sessions[session.ID] = *session

	id := session.ID
	r.tx.add(func() { delete(r.store.sessions, id) })

	return nil
}

func (r *sessionRepository) FindByID(_ context.Context, id uuid.UUID) (*entity.Session, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	session, ok := r.store.sessions[id]
	if !ok {
		return nil, repository.ErrSessionNotFound
	}

	return &session, nil
}

func (r *sessionRepository) Touch(_ context.Context, id uuid.UUID, activeAt time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	prev, ok := r.store.sessions[id]
	if !ok {
		return repository.ErrSessionNotFound
	}

	next := prev
	next.ActiveAt = activeAt
	r.store.sessions[id] = next

	r.tx.add(func() { r.store.sessions[id] = prev })

	return nil
}

func (r *sessionRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	prev, ok := r.store.sessions[id]
	if !ok {
		return repository.ErrSessionNotFound
	}
	delete(r.store.sessions, id)

	r.tx.add(func() { r.store.sessions[id] = prev })

	return nil
}
