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
)

// socialAccountRepository implements the domain.SocialAccountRepository interface.
type socialAccountRepository struct {
	db *gorm.DB
}

// NewSocialAccountRepository is the constructor for socialAccountRepository.
func NewSocialAccountRepository(db *gorm.DB) repository.SocialAccountRepository {
	return &socialAccountRepository{db: db}
}

// FindByProvider looks up the link for a provider identity.
func (repo *socialAccountRepository) FindByProvider(ctx context.Context, provider entity.Provider, providerAccountID string) (*entity.SocialAccount, error) {
	var socialM model.SocialAccountModel
	err := repo.db.WithContext(ctx).
		Where("provider = ? AND provider_account_id = ?", string(provider), providerAccountID).
		First(&socialM).Error
	if err != nil {
		if isNotFound(err) {
			return nil, repository.ErrSocialAccountNotFound
		}

		return nil, errors.WithStack(err)
	}

	return toSocialAccountDomain(&socialM), nil
}

// Create persists a new provider link.
func (repo *socialAccountRepository) Create(ctx context.Context, social *entity.SocialAccount) error {
	if social.ID == uuid.Nil {
		social.ID = uuid.New()
	}
	socialM := fromSocialAccountDomain(social)

	if err := repo.db.WithContext(ctx).Create(socialM).Error; err != nil {
		if isUniqueConstraintViolation(err) {
			return repository.ErrSocialAccountExists
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to create social account")
	}

	social.CreatedAt = socialM.CreatedAt
	social.UpdatedAt = socialM.UpdatedAt

	return nil
}

// UpdateTokens replaces token material and the raw provider payload.
func (repo *socialAccountRepository) UpdateTokens(ctx context.Context, social *entity.SocialAccount) error {
	result := repo.db.WithContext(ctx).
		Model(&model.SocialAccountModel{}).
		Where("id = ?", social.ID).
		Updates(map[string]any{
			"access_token":  social.AccessToken,
			"refresh_token": social.RefreshToken,
			"token_type":    social.TokenType,
			"expires_at":    social.ExpiresAt,
			"scope":         social.Scope,
			"id_token":      social.IDToken,
			"provider_data": []byte(social.ProviderData),
			"updated_at":    time.Now(),
		})
	if result.Error != nil {
		return domainerrors.NewDatabaseExecuteError(result.Error, "failed to update social account tokens")
	}
	if result.RowsAffected == 0 {
		return repository.ErrSocialAccountNotFound
	}

	return nil
}

func toSocialAccountDomain(data *model.SocialAccountModel) *entity.SocialAccount {
	return &entity.SocialAccount{
		ID:                data.ID,
		AccountID:         data.AccountID,
		Provider:          entity.Provider(data.Provider),
		ProviderAccountID: data.ProviderAccountID,
		AccessToken:       data.AccessToken,
		RefreshToken:      data.RefreshToken,
		TokenType:         data.TokenType,
		ExpiresAt:         data.ExpiresAt,
		Scope:             data.Scope,
		IDToken:           data.IDToken,
		ProviderData:      data.ProviderData,
		CreatedAt:         data.CreatedAt,
		UpdatedAt:         data.UpdatedAt,
	}
}

func fromSocialAccountDomain(data *entity.SocialAccount) *model.SocialAccountModel {
	return &model.SocialAccountModel{
		ID:                data.ID,
		AccountID:         data.AccountID,
		Provider:          string(data.Provider),
		ProviderAccountID: data.ProviderAccountID,
		AccessToken:       data.AccessToken,
		RefreshToken:      data.RefreshToken,
		TokenType:         data.TokenType,
		ExpiresAt:         data.ExpiresAt,
		Scope:             data.Scope,
		IDToken:           data.IDToken,
		ProviderData:      data.ProviderData,
		CreatedAt:         data.CreatedAt,
		UpdatedAt:         data.UpdatedAt,
	}
}
