// Package postgres contains the concrete implementation of the persistence layer using GORM and PostgreSQL.
package postgres

import (
	"context"
	"time"

	"authflow/internal/domain/entity"
	domainerrors "authflow/internal/domain/errors"
	"authflow/internal/domain/repository"
	"authflow/internal/errors"
	"authflow/internal/infra/persistence/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/plugin/dbresolver"
)

// accountRepository implements the domain.AccountRepository interface.
type accountRepository struct {
	db *gorm.DB
}

// NewAccountRepository is the constructor for accountRepository.
func NewAccountRepository(db *gorm.DB) repository.AccountRepository {
	return &accountRepository{db: db}
}

// FindByID retrieves an account by its unique ID.
func (repo *accountRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Account, error) {
	return repo.findOne(ctx, "id = ?", id)
}

// FindByEmail retrieves an account by its email address.
func (repo *accountRepository) FindByEmail(ctx context.Context, email string) (*entity.Account, error) {
	return repo.findOne(ctx, "email = ?", email)
}

// FindByHandle retrieves an account by its handle.
func (repo *accountRepository) FindByHandle(ctx context.Context, handle string) (*entity.Account, error) {
	return repo.findOne(ctx, "handle = ?", handle)
}

func (repo *accountRepository) findOne(ctx context.Context, query string, arg any) (*entity.Account, error) {
	var accountM model.AccountModel
	// Account reads follow writes within a single request (signup then OTP), so they stay on the primary.
	err := repo.db.WithContext(ctx).Clauses(dbresolver.Write).Where(query, arg).First(&accountM).Error
	if err != nil {
		if isNotFound(err) {
			return nil, repository.ErrAccountNotFound
		}

		return nil, errors.WithStack(err)
	}

	return toAccountDomain(&accountM), nil
}

// ExistsByHandle reports whether any account owns the handle.
func (repo *accountRepository) ExistsByHandle(ctx context.Context, handle string) (bool, error) {
	var count int64
	err := repo.db.WithContext(ctx).Clauses(dbresolver.Write).
		Model(&model.AccountModel{}).
		Where("handle = ?", handle).
		Count(&count).Error
	if err != nil {
		return false, errors.WithStack(err)
	}

	return count > 0, nil
}

// Create persists a new account without a handle.
func (repo *accountRepository) Create(ctx context.Context, account *entity.Account) error {
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	accountM := fromAccountDomain(account)
	// The handle is only ever written by AssignHandle.
	accountM.Handle = nil

	if err := repo.db.WithContext(ctx).Create(accountM).Error; err != nil {
		if isUniqueConstraintViolation(err) {
			return repository.ErrEmailTaken
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to create account")
	}

	account.CreatedAt = accountM.CreatedAt
	account.UpdatedAt = accountM.UpdatedAt

	return nil
}

// UpdateProfile writes name, image, and the email-verified flag.
func (repo *accountRepository) UpdateProfile(ctx context.Context, account *entity.Account) error {
	result := repo.db.WithContext(ctx).
		Model(&model.AccountModel{}).
		Where("id = ?", account.ID).
		Updates(map[string]any{
			"name":           account.Name,
			"image":          account.Image,
			"email_verified": account.EmailVerified,
			"updated_at":     time.Now(),
		})
	if result.Error != nil {
		return domainerrors.NewDatabaseExecuteError(result.Error, "failed to update account")
	}
	if result.RowsAffected == 0 {
		return repository.ErrAccountNotFound
	}

	return nil
}

// AssignHandle sets the handle of an account that has none. The unique index on handle is the
// only arbiter between concurrent writers.
func (repo *accountRepository) AssignHandle(ctx context.Context, id uuid.UUID, handle string) error {
	result := repo.db.WithContext(ctx).
		Model(&model.AccountModel{}).
		Where("id = ? AND handle IS NULL", id).
		Updates(map[string]any{
			"handle":     handle,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		if isUniqueConstraintViolation(result.Error) {
			return repository.ErrHandleTaken
		}

		return domainerrors.NewDatabaseExecuteError(result.Error, "failed to assign handle")
	}
	if result.RowsAffected == 0 {
		if _, err := repo.FindByID(ctx, id); err != nil {
			return err
		}

		return repository.ErrHandleAlreadyAssigned
	}

	return nil
}

// SetOTP stores a freshly issued code and resets the attempt counter.
func (repo *accountRepository) SetOTP(ctx context.Context, id uuid.UUID, otp repository.OTPUpdate) error {
	result := repo.db.WithContext(ctx).
		Model(&model.AccountModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"email_otp":            otp.Code,
			"email_otp_expires_at": otp.ExpiresAt,
			"email_otp_type":       string(otp.Type),
			"email_otp_attempts":   0,
			"updated_at":           time.Now(),
		})
	if result.Error != nil {
		return domainerrors.NewDatabaseExecuteError(result.Error, "failed to store one-time code")
	}
	if result.RowsAffected == 0 {
		return repository.ErrAccountNotFound
	}

	return nil
}

// RecordOTPAttempt bumps the counter in a single conditional UPDATE ... RETURNING, so
// concurrent wrong guesses can neither overwrite each other nor pass the limit.
func (repo *accountRepository) RecordOTPAttempt(ctx context.Context, id uuid.UUID, maxAttempts int) (int, error) {
	var accountM model.AccountModel
	result := repo.db.WithContext(ctx).
		Model(&accountM).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "email_otp_attempts"}}}).
		Where("id = ? AND email_otp_attempts < ?", id, maxAttempts).
		UpdateColumn("email_otp_attempts", gorm.Expr("email_otp_attempts + 1"))
	if result.Error != nil {
		return 0, domainerrors.NewDatabaseExecuteError(result.Error, "failed to record one-time code attempt")
	}
	if result.RowsAffected == 0 {
		if err := repo.ensureExists(ctx, id); err != nil {
			return 0, err
		}

		return 0, repository.ErrOTPAttemptsExhausted
	}

	return accountM.EmailOTPAttempts, nil
}

// RedeemOTP clears the code only while it is still the live, pending one. Of two concurrent
// redemptions of the same code exactly one updates the row.
func (repo *accountRepository) RedeemOTP(ctx context.Context, id uuid.UUID, code string, maxAttempts int, now time.Time) error {
	result := repo.db.WithContext(ctx).
		Model(&model.AccountModel{}).
		Where("id = ? AND email_otp = ? AND email_otp_attempts < ? AND email_otp_expires_at >= ?",
			id, code, maxAttempts, now).
		Updates(map[string]any{
			"email_verified":       true,
			"email_otp":            nil,
			"email_otp_expires_at": nil,
			"email_otp_type":       nil,
			"email_otp_attempts":   0,
			"updated_at":           time.Now(),
		})
	if result.Error != nil {
		return domainerrors.NewDatabaseExecuteError(result.Error, "failed to redeem one-time code")
	}
	if result.RowsAffected == 0 {
		if err := repo.ensureExists(ctx, id); err != nil {
			return err
		}

		return repository.ErrOTPNotPending
	}

	return nil
}

func (repo *accountRepository) ensureExists(ctx context.Context, id uuid.UUID) error {
	var count int64
	if err := repo.db.WithContext(ctx).Model(&model.AccountModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return domainerrors.NewDatabaseExecuteError(err, "failed to look up account")
	}
	if count == 0 {
		return repository.ErrAccountNotFound
	}

	return nil
}

func toAccountDomain(data *model.AccountModel) *entity.Account {
	account := &entity.Account{
		ID:                data.ID,
		Email:             data.Email,
		EmailVerified:     data.EmailVerified,
		PasswordHash:      data.PasswordHash,
		Name:              data.Name,
		Image:             data.Image,
		EmailOTPExpiresAt: data.EmailOTPExpiresAt,
		EmailOTPAttempts:  data.EmailOTPAttempts,
		CreatedAt:         data.CreatedAt,
		UpdatedAt:         data.UpdatedAt,
	}
	if data.Handle != nil {
		account.Handle = *data.Handle
	}
	if data.EmailOTP != nil {
		account.EmailOTP = *data.EmailOTP
	}
	if data.EmailOTPType != nil {
		account.EmailOTPType = entity.OTPType(*data.EmailOTPType)
	}

	return account
}

func fromAccountDomain(data *entity.Account) *model.AccountModel {
	accountM := &model.AccountModel{
		ID:                data.ID,
		Email:             data.Email,
		EmailVerified:     data.EmailVerified,
		PasswordHash:      data.PasswordHash,
		Name:              data.Name,
		Image:             data.Image,
		EmailOTPExpiresAt: data.EmailOTPExpiresAt,
		EmailOTPAttempts:  data.EmailOTPAttempts,
		CreatedAt:         data.CreatedAt,
		UpdatedAt:         data.UpdatedAt,
	}
	if data.Handle != "" {
		accountM.Handle = &data.Handle
	}
	if data.EmailOTP != "" {
		accountM.EmailOTP = &data.EmailOTP
	}
	if data.EmailOTPType != "" {
		otpType := string(data.EmailOTPType)
		accountM.EmailOTPType = &otpType
	}

	return accountM
}
