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
	"gorm.io/plugin/dbresolver"
)

// oauthStateRepository implements the domain.OAuthStateRepository interface.
type oauthStateRepository struct {
	db *gorm.DB
}

// NewOAuthStateRepository is the constructor for oauthStateRepository.
func NewOAuthStateRepository(db *gorm.DB) repository.OAuthStateRepository {
	return &oauthStateRepository{db: db}
}

// Create persists a new correlation record.
func (repo *oauthStateRepository) Create(ctx context.Context, state *entity.OAuthState) error {
	if state.ID == uuid.Nil {
		state.ID = uuid.New()
	}
	stateM := fromOAuthStateDomain(state)

	if err := repo.db.WithContext(ctx).Create(stateM).Error; err != nil {
		return domainerrors.NewDatabaseExecuteError(err, "failed to create oauth state")
	}

	state.CreatedAt = stateM.CreatedAt

	return nil
}

// FindByState reads from the primary: the completion poller must observe the exchange
// worker's write without replica lag.
func (repo *oauthStateRepository) FindByState(ctx context.Context, state string) (*entity.OAuthState, error) {
	var stateM model.OAuthStateModel
	err := repo.db.WithContext(ctx).Clauses(dbresolver.Write).Where("state = ?", state).First(&stateM).Error
	if err != nil {
		if isNotFound(err) {
			return nil, repository.ErrOAuthStateNotFound
		}

		return nil, errors.WithStack(err)
	}

	return toOAuthStateDomain(&stateM), nil
}

// Complete writes account and session onto a state that has neither.
func (repo *oauthStateRepository) Complete(ctx context.Context, id, accountID, sessionID uuid.UUID) error {
	result := repo.db.WithContext(ctx).
		Model(&model.OAuthStateModel{}).
		Where("id = ? AND account_id IS NULL AND session_id IS NULL", id).
		Updates(map[string]any{
			"account_id": accountID,
			"session_id": sessionID,
		})
	if result.Error != nil {
		return domainerrors.NewDatabaseExecuteError(result.Error, "failed to complete oauth state")
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := repo.db.WithContext(ctx).Model(&model.OAuthStateModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return errors.WithStack(err)
	}
	if count == 0 {
		return repository.ErrOAuthStateNotFound
	}

	return repository.ErrOAuthStateCompleted
}

// oauthCallbackRepository implements the domain.OAuthCallbackRepository interface.
type oauthCallbackRepository struct {
	db *gorm.DB
}

// NewOAuthCallbackRepository is the constructor for oauthCallbackRepository.
func NewOAuthCallbackRepository(db *gorm.DB) repository.OAuthCallbackRepository {
	return &oauthCallbackRepository{db: db}
}

// Create records a callback work item.
func (repo *oauthCallbackRepository) Create(ctx context.Context, callback *entity.OAuthCallback) error {
	if callback.ID == uuid.Nil {
		callback.ID = uuid.New()
	}
	callbackM := &model.OAuthCallbackModel{
		ID:        callback.ID,
		Provider:  string(callback.Provider),
		Code:      callback.Code,
		State:     callback.State,
		Processed: callback.Processed,
		Error:     callback.Error,
		CreatedAt: callback.CreatedAt,
	}

	if err := repo.db.WithContext(ctx).Create(callbackM).Error; err != nil {
		if isUniqueConstraintViolation(err) {
			return repository.ErrCallbackExists
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to create oauth callback")
	}

	callback.CreatedAt = callbackM.CreatedAt

	return nil
}

// FindByID retrieves a callback from the primary.
func (repo *oauthCallbackRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.OAuthCallback, error) {
	var callbackM model.OAuthCallbackModel
	err := repo.db.WithContext(ctx).Clauses(dbresolver.Write).Where("id = ?", id).First(&callbackM).Error
	if err != nil {
		if isNotFound(err) {
			return nil, repository.ErrCallbackNotFound
		}

		return nil, errors.WithStack(err)
	}

	return &entity.OAuthCallback{
		ID:        callbackM.ID,
		Provider:  entity.Provider(callbackM.Provider),
		Code:      callbackM.Code,
		State:     callbackM.State,
		Processed: callbackM.Processed,
		Error:     callbackM.Error,
		ClaimedAt: callbackM.ClaimedAt,
		CreatedAt: callbackM.CreatedAt,
	}, nil
}

// Claim takes an unprocessed, unclaimed callback with a conditional UPDATE, so a redelivered
// event cannot run the exchange twice.
func (repo *oauthCallbackRepository) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	result := repo.db.WithContext(ctx).
		Model(&model.OAuthCallbackModel{}).
		Where("id = ? AND processed = ? AND claimed_at IS NULL", id, false).
		Update("claimed_at", time.Now())
	if result.Error != nil {
		return false, domainerrors.NewDatabaseExecuteError(result.Error, "failed to claim oauth callback")
	}
	if result.RowsAffected > 0 {
		return true, nil
	}

	if _, err := repo.FindByID(ctx, id); err != nil {
		return false, err
	}

	return false, nil
}

// MarkProcessed makes the callback terminal.
func (repo *oauthCallbackRepository) MarkProcessed(ctx context.Context, id uuid.UUID, errMsg string) error {
	result := repo.db.WithContext(ctx).
		Model(&model.OAuthCallbackModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"processed": true,
			"error":     errMsg,
		})
	if result.Error != nil {
		return domainerrors.NewDatabaseExecuteError(result.Error, "failed to mark oauth callback processed")
	}
	if result.RowsAffected == 0 {
		return repository.ErrCallbackNotFound
	}

	return nil
}

func toOAuthStateDomain(data *model.OAuthStateModel) *entity.OAuthState {
	return &entity.OAuthState{
		ID:               data.ID,
		State:            data.State,
		Provider:         entity.Provider(data.Provider),
		CodeVerifier:     data.CodeVerifier,
		RedirectURI:      data.RedirectURI,
		AuthorizationURL: data.AuthorizationURL,
		ExpiresAt:        data.ExpiresAt,
		AccountID:        data.AccountID,
		SessionID:        data.SessionID,
		CreatedAt:        data.CreatedAt,
	}
}

func fromOAuthStateDomain(data *entity.OAuthState) *model.OAuthStateModel {
	return &model.OAuthStateModel{
		ID:               data.ID,
		State:            data.State,
		Provider:         string(data.Provider),
		CodeVerifier:     data.CodeVerifier,
		RedirectURI:      data.RedirectURI,
		AuthorizationURL: data.AuthorizationURL,
		ExpiresAt:        data.ExpiresAt,
		AccountID:        data.AccountID,
		SessionID:        data.SessionID,
		CreatedAt:        data.CreatedAt,
	}
}
