package memory

import (
	"context"
	"time"

	"authflow/internal/domain/entity"
	"authflow/internal/domain/repository"

	"github.com/google/uuid"
)

type accountRepository struct {
	store *Store
	tx    *undoLog
}

func (r *accountRepository) FindByID(_ context.Context, id uuid.UUID) (*entity.Account, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	account, ok := r.store.accounts[id]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}

	return copyAccount(account), nil
}

func (r *accountRepository) FindByEmail(ctx context.Context, email string) (*entity.Account, error) {
	r.store.mu.RLock()
	id, ok := r.store.accountByEmail[email]
	r.store.mu.RUnlock()
	if !ok {
		return nil, repository.ErrAccountNotFound
	}

	return r.FindByID(ctx, id)
}

func (r *accountRepository) FindByHandle(ctx context.Context, handle string) (*entity.Account, error) {
	r.store.mu.RLock()
	id, ok := r.store.accountByHandle[handle]
	r.store.mu.RUnlock()
	if !ok {
		return nil, repository.ErrAccountNotFound
	}

	return r.FindByID(ctx, id)
}

func (r *accountRepository) ExistsByHandle(_ context.Context, handle string) (bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	_, ok := r.store.accountByHandle[handle]

	return ok, nil
}

func (r *accountRepository) Create(_ context.Context, account *entity.Account) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, taken := r.store.accountByEmail[account.Email]; taken {
		return repository.ErrEmailTaken
	}

	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	now := r.store.now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = account.CreatedAt

	stored := *copyAccount(*account)
	stored.Handle = ""
	r.store.putAccount(stored)

	id := account.ID
	r.tx.add(func() { r.store.deleteAccount(id) })

	return nil
}

func (r *accountRepository) UpdateProfile(_ context.Context, account *entity.Account) error {
	return r.mutate(account.ID, func(a *entity.Account) error {
		a.Name = account.Name
		a.Image = account.Image
		a.EmailVerified = account.EmailVerified

		return nil
	})
}

func (r *accountRepository) AssignHandle(_ context.Context, id uuid.UUID, handle string) error {
	return r.mutate(id, func(a *entity.Account) error {
		if a.Handle != "" {
			return repository.ErrHandleAlreadyAssigned
		}
		if _, taken := r.store.accountByHandle[handle]; taken {
			return repository.ErrHandleTaken
		}
		a.Handle = handle

		return nil
	})
}

func (r *accountRepository) SetOTP(_ context.Context, id uuid.UUID, otp repository.OTPUpdate) error {
	return r.mutate(id, func(a *entity.Account) error {
		expiresAt := otp.ExpiresAt
		a.EmailOTP = otp.Code
		a.EmailOTPExpiresAt = &expiresAt
		a.EmailOTPType = otp.Type
		a.EmailOTPAttempts = 0

		return nil
	})
}

func (r *accountRepository) RecordOTPAttempt(_ context.Context, id uuid.UUID, maxAttempts int) (int, error) {
	var attempts int
	err := r.mutate(id, func(a *entity.Account) error {
		if a.EmailOTPAttempts >= maxAttempts {
			return repository.ErrOTPAttemptsExhausted
		}
		a.EmailOTPAttempts++
		attempts = a.EmailOTPAttempts

		return nil
	})

	return attempts, err
}

func (r *accountRepository) RedeemOTP(_ context.Context, id uuid.UUID, code string, maxAttempts int, now time.Time) error {
	return r.mutate(id, func(a *entity.Account) error {
		if a.EmailOTP == "" || a.EmailOTP != code || a.EmailOTPAttempts >= maxAttempts ||
			a.EmailOTPExpiresAt == nil || now.After(*a.EmailOTPExpiresAt) {
			return repository.ErrOTPNotPending
		}
		a.ClearOTP()
		a.EmailVerified = true

		return nil
	})
}

// mutate applies fn to a copy of the account under the write lock and stores the result.
func (r *accountRepository) mutate(id uuid.UUID, fn func(a *entity.Account) error) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	prev, ok := r.store.accounts[id]
	if !ok {
		return repository.ErrAccountNotFound
	}

	next := *copyAccount(prev)
	if err := fn(&next); err != nil {
		return err
	}
	next.UpdatedAt = r.store.now()

	r.store.putAccount(next)
	r.tx.add(r.store.restoreAccount(prev))

	return nil
}

func copyAccount(a entity.Account) *entity.Account {
	a.EmailOTPExpiresAt = cloneTime(a.EmailOTPExpiresAt)

	return &a
}
