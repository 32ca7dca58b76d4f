package memory

import (
	"context"

	"authflow/internal/domain/repository"
)

// repositoryFactory binds repositories to the store and, inside a transaction, to its undo log.
type repositoryFactory struct {
	store *Store
	tx    *undoLog
}

// NewRepositoryFactory returns an autocommit factory over the store.
func NewRepositoryFactory(store *Store) repository.RepositoryFactory {
	return &repositoryFactory{store: store}
}

func (f *repositoryFactory) AccountRepo() repository.AccountRepository {
	return &accountRepository{store: f.store, tx: f.tx}
}

func (f *repositoryFactory) ProfileRepo() repository.ProfileRepository {
	return &profileRepository{store: f.store, tx: f.tx}
}

func (f *repositoryFactory) OAuthStateRepo() repository.OAuthStateRepository {
	return &oauthStateRepository{store: f.store, tx: f.tx}
}

func (f *repositoryFactory) OAuthCallbackRepo() repository.OAuthCallbackRepository {
	return &oauthCallbackRepository{store: f.store, tx: f.tx}
}

func (f *repositoryFactory) SocialAccountRepo() repository.SocialAccountRepository {
	return &socialAccountRepository{store: f.store, tx: f.tx}
}

func (f *repositoryFactory) SessionRepo() repository.SessionRepository {
	return &sessionRepository{store: f.store, tx: f.tx}
}

type transactionManager struct {
	store *Store
}

// NewTransactionManager returns a TransactionManager over the store. Transactions are
// serialized; each write records a compensating step that is replayed on failure.
func NewTransactionManager(store *Store) repository.TransactionManager {
	return &transactionManager{store: store}
}

// Execute runs fn and rolls back every write it made when fn fails or panics.
func (tm *transactionManager) Execute(ctx context.Context, fn func(repoFactory repository.RepositoryFactory) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tm.store.txMu.Lock()
	defer tm.store.txMu.Unlock()

	log := &undoLog{}
	factory := &repositoryFactory{store: tm.store, tx: log}

	defer func() {
		if r := recover(); r != nil {
			tm.rollback(log)
			panic(r)
		}
	}()

	if err := fn(factory); err != nil {
		tm.rollback(log)

		return err
	}

	return nil
}

func (tm *transactionManager) rollback(log *undoLog) {
	tm.store.mu.Lock()
	defer tm.store.mu.Unlock()

	log.rollback()
}
