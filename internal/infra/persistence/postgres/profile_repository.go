package postgres

import (
	"context"

	"authflow/internal/domain/entity"
	domainerrors "authflow/internal/domain/errors"
	"authflow/internal/domain/repository"
	"authflow/internal/errors"
	"authflow/internal/infra/persistence/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// profileRepository implements the domain.ProfileRepository interface.
type profileRepository struct {
	db *gorm.DB
}

// NewProfileRepository is the constructor for profileRepository.
func NewProfileRepository(db *gorm.DB) repository.ProfileRepository {
	return &profileRepository{db: db}
}

// Create persists the profile that accompanies a freshly provisioned handle.
func (repo *profileRepository) Create(ctx context.Context, profile *entity.Profile) error {
	if profile.ID == uuid.Nil {
		profile.ID = uuid.New()
	}
	profileM := &model.ProfileModel{
		ID:                  profile.ID,
		AccountID:           profile.AccountID,
		Username:            profile.Username,
		OnboardingCompleted: profile.OnboardingCompleted,
		CreatedAt:           profile.CreatedAt,
	}

	if err := repo.db.WithContext(ctx).Create(profileM).Error; err != nil {
		if isUniqueConstraintViolation(err) {
			return repository.ErrUsernameTaken
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to create profile")
	}

	profile.CreatedAt = profileM.CreatedAt

	return nil
}

// FindByAccountID retrieves the profile of an account.
func (repo *profileRepository) FindByAccountID(ctx context.Context, accountID uuid.UUID) (*entity.Profile, error) {
	var profileM model.ProfileModel
	if err := repo.db.WithContext(ctx).Where("account_id = ?", accountID).First(&profileM).Error; err != nil {
		if isNotFound(err) {
			return nil, repository.ErrProfileNotFound
		}

		return nil, errors.WithStack(err)
	}

	return &entity.Profile{
		ID:                  profileM.ID,
		AccountID:           profileM.AccountID,
		Username:            profileM.Username,
		OnboardingCompleted: profileM.OnboardingCompleted,
		CreatedAt:           profileM.CreatedAt,
	}, nil
}
