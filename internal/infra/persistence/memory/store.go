// Package memory is an in-process implementation of the persistence layer. It enforces the
// same unique constraints as the PostgreSQL schema and is used for local development and tests.
package memory

import (
	"slices"
	"sync"
	"time"

	"authflow/internal/domain/entity"

	"github.com/google/uuid"
)

type socialKey struct {
	provider          entity.Provider
	providerAccountID string
}

// Store holds every table in maps guarded by one RWMutex. Secondary maps play the role of
// unique indexes.
type Store struct {
	mu   sync.RWMutex
	txMu sync.Mutex
	now  func() time.Time

	accounts        map[uuid.UUID]entity.Account
	accountByEmail  map[string]uuid.UUID
	accountByHandle map[string]uuid.UUID

	profiles          map[uuid.UUID]entity.Profile // keyed by account id
	profileByUsername map[string]uuid.UUID

	states      map[uuid.UUID]entity.OAuthState
	stateByName map[string]uuid.UUID

	callbacks       map[uuid.UUID]entity.OAuthCallback
	callbackByState map[string]uuid.UUID

	socials map[socialKey]entity.SocialAccount

	sessions map[uuid.UUID]entity.Session
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		now:               time.Now,
		accounts:          make(map[uuid.UUID]entity.Account),
		accountByEmail:    make(map[string]uuid.UUID),
		accountByHandle:   make(map[string]uuid.UUID),
		profiles:          make(map[uuid.UUID]entity.Profile),
		profileByUsername: make(map[string]uuid.UUID),
		states:            make(map[uuid.UUID]entity.OAuthState),
		stateByName:       make(map[string]uuid.UUID),
		callbacks:         make(map[uuid.UUID]entity.OAuthCallback),
		callbackByState:   make(map[string]uuid.UUID),
		socials:           make(map[socialKey]entity.SocialAccount),
		sessions:          make(map[uuid.UUID]entity.Session),
	}
}

// undoLog collects compensating writes for a transaction. A nil log means autocommit.
type undoLog struct {
	steps []func()
}

func (l *undoLog) add(step func()) {
	if l == nil {
		return
	}
	l.steps = append(l.steps, step)
}

// rollback replays the compensating writes newest first. The caller holds the write lock.
func (l *undoLog) rollback() {
	for _, step := range slices.Backward(l.steps) {
		step()
	}
}

// putAccount replaces an account and keeps the email and handle indexes in sync.
// The caller holds the write lock.
func (s *Store) putAccount(account entity.Account) {
	if old, ok := s.accounts[account.ID]; ok {
		delete(s.accountByEmail, old.Email)
		if old.Handle != "" {
			delete(s.accountByHandle, old.Handle)
		}
	}
	s.accounts[account.ID] = account
	s.accountByEmail[account.Email] = account.ID
	if account.Handle != "" {
		s.accountByHandle[account.Handle] = account.ID
	}
}

func (s *Store) deleteAccount(id uuid.UUID) {
	old, ok := s.accounts[id]
	if !ok {
		return
	}
	delete(s.accountByEmail, old.Email)
	if old.Handle != "" {
		delete(s.accountByHandle, old.Handle)
	}
	delete(s.accounts, id)
}

// restoreAccount returns an undo step that puts back the given prior version.
func (s *Store) restoreAccount(prev entity.Account) func() {
	return func() { s.putAccount(prev) }
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}

	return slices.Clone(b)
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t

	return &v
}

func cloneUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id

	return &v
}
