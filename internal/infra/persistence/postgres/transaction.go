package postgres

import (
	"context"

	"authflow/internal/domain/repository"
	"authflow/internal/errors"

	"gorm.io/gorm"
)

// gormTransactionManager implements the domain's TransactionManager interface using GORM.
type gormTransactionManager struct {
	db *gorm.DB
}

// gormRepositoryFactory implements the domain's RepositoryFactory interface.
// It holds either the root connection or a transaction object (a *gorm.DB in both cases)
// and binds every repository it creates to it.
type gormRepositoryFactory struct {
	tx *gorm.DB
}

// NewRepositoryFactory returns a factory bound to the root connection, outside any transaction.
func NewRepositoryFactory(db *gorm.DB) repository.RepositoryFactory {
	return &gormRepositoryFactory{tx: db}
}

// AccountRepo creates an account repository bound to the factory's connection.
func (f *gormRepositoryFactory) AccountRepo() repository.AccountRepository {
	return NewAccountRepository(f.tx)
}

// ProfileRepo creates a profile repository bound to the factory's connection.
func (f *gormRepositoryFactory) ProfileRepo() repository.ProfileRepository {
	return NewProfileRepository(f.tx)
}

// OAuthStateRepo creates an OAuth state repository bound to the factory's connection.
func (f *gormRepositoryFactory) OAuthStateRepo() repository.OAuthStateRepository {
	return NewOAuthStateRepository(f.tx)
}

// OAuthCallbackRepo creates an OAuth callback repository bound to the factory's connection.
func (f *gormRepositoryFactory) OAuthCallbackRepo() repository.OAuthCallbackRepository {
	return NewOAuthCallbackRepository(f.tx)
}

// SocialAccountRepo creates a social account repository bound to the factory's connection.
func (f *gormRepositoryFactory) SocialAccountRepo() repository.SocialAccountRepository {
	return NewSocialAccountRepository(f.tx)
}

// SessionRepo creates a session repository bound to the factory's connection.
func (f *gormRepositoryFactory) SessionRepo() repository.SessionRepository {
	return NewSessionRepository(f.tx)
}

// NewTransactionManager is the constructor for gormTransactionManager.
func NewTransactionManager(db *gorm.DB) repository.TransactionManager {
	return &gormTransactionManager{db: db}
}

// Execute runs the given function within a single database transaction.
func (tm *gormTransactionManager) Execute(ctx context.Context, fn func(repoFactory repository.RepositoryFactory) error) error {
	// Begin a new transaction
	tx := tm.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return errors.Wrap(tx.Error, "failed to begin transaction")
	}

	// If a panic occurs within the callback function the transaction is rolled back
	// before the panic continues.
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	factory := &gormRepositoryFactory{tx: tx}

	if err := fn(factory); err != nil {
		if rbErr := tx.Rollback().Error; rbErr != nil {
			// Return the original, more meaningful business error.
			return errors.Wrapf(err, "transaction rollback failed: %v", rbErr)
		}

		return err
	}

	if err := tx.Commit().Error; err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}

	return nil
}
