// Package repository defines the interfaces for the persistence layer.
// These interfaces act as a contract between the domain/application layers and the infrastructure layer.
package repository

import (
	"context"
	"errors"
	"time"

	"authflow/internal/domain/entity"

	"github.com/google/uuid"
)

// Domain-specific errors for account persistence.
var (
	// ErrAccountNotFound is returned when no account matches the lookup.
	ErrAccountNotFound = errors.New("account not found")
	// ErrEmailTaken is returned when the unique email constraint rejects a write.
	ErrEmailTaken = errors.New("email already registered")
	// ErrHandleTaken is returned when the unique handle constraint rejects a write.
	ErrHandleTaken = errors.New("handle already taken")
	// ErrHandleAlreadyAssigned is returned when an account already owns a handle.
	ErrHandleAlreadyAssigned = errors.New("account handle already assigned")
	// ErrOTPAttemptsExhausted is returned when a failed attempt would exceed the limit.
	ErrOTPAttemptsExhausted = errors.New("one-time code attempts exhausted")
	// ErrOTPNotPending is returned when the code to redeem is no longer the pending, live one.
	ErrOTPNotPending = errors.New("one-time code not pending")
)

// OTPUpdate describes a one-time code issuance written onto an account.
type OTPUpdate struct {
	Code      string
	ExpiresAt time.Time
	Type      entity.OTPType
}

// AccountRepository defines the persistence operations for accounts.
type AccountRepository interface {
	// FindByID retrieves an account by its unique ID.
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Account, error)

	// FindByEmail retrieves an account by its email address.
	FindByEmail(ctx context.Context, email string) (*entity.Account, error)

	// FindByHandle retrieves an account by its handle.
	FindByHandle(ctx context.Context, handle string) (*entity.Account, error)

	// ExistsByHandle reports whether any account owns the handle.
	ExistsByHandle(ctx context.Context, handle string) (bool, error)

	// Create persists a new account without a handle. Returns ErrEmailTaken on a duplicate email.
	Create(ctx context.Context, account *entity.Account) error

	// UpdateProfile writes name, image, and the email-verified flag.
	UpdateProfile(ctx context.Context, account *entity.Account) error

	// AssignHandle sets the handle of an account that has none.
	// Returns ErrHandleTaken on a uniqueness violation and ErrHandleAlreadyAssigned when a handle is already set.
	AssignHandle(ctx context.Context, id uuid.UUID, handle string) error

	// SetOTP stores a freshly issued code and resets the attempt counter.
	SetOTP(ctx context.Context, id uuid.UUID, otp OTPUpdate) error

	// RecordOTPAttempt counts a failed attempt and returns the new total. The counter only
	// moves while it is below maxAttempts; otherwise ErrOTPAttemptsExhausted is returned and
	// nothing is written.
	RecordOTPAttempt(ctx context.Context, id uuid.UUID, maxAttempts int) (int, error)

	// RedeemOTP clears all OTP fields and sets the email-verified flag, but only while code is
	// the pending code, it has not expired at now, and fewer than maxAttempts failures were
	// recorded. Returns ErrOTPNotPending when any of these does not hold.
	RedeemOTP(ctx context.Context, id uuid.UUID, code string, maxAttempts int, now time.Time) error
}
