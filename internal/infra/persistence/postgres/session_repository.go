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

// sessionRepository implements the domain.SessionRepository interface.
type sessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository is the constructor for sessionRepository.
func NewSessionRepository(db *gorm.DB) repository.SessionRepository {
	return &sessionRepository{db: db}
}

// Create persists a new session.
func (repo *sessionRepository) Create(ctx context.Context, session *entity.Session) error {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	sessionM := fromSessionDomain(session)

	if err := repo.db.WithContext(ctx).Create(sessionM).Error; err != nil {
		return domainerrors.NewDatabaseExecuteError(err, "failed to create session")
	}

	session.CreatedAt = sessionM.CreatedAt

	return nil
}

// FindByID reads from the primary; finalize runs right after the exchange wrote the session.
func (repo *sessionRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Session, error) {
	var sessionM model.SessionModel
	err := repo.db.WithContext(ctx).Clauses(dbresolver.Write).Where("id = ?", id).First(&sessionM).Error
	if err != nil {
		if isNotFound(err) {
			return nil, repository.ErrSessionNotFound
		}

		return nil, errors.WithStack(err)
	}

	return toSessionDomain(&sessionM), nil
}

// Touch updates the last activity timestamp.
func (repo *sessionRepository) Touch(ctx context.Context, id uuid.UUID, activeAt time.Time) error {
	result := repo.db.WithContext(ctx).
		Model(&model.SessionModel{}).
		Where("id = ?", id).
		Update("active_at", activeAt)
	if result.Error != nil {
		return domainerrors.NewDatabaseExecuteError(result.Error, "failed to touch session")
	}
	if result.RowsAffected == 0 {
		return repository.ErrSessionNotFound
	}

	return nil
}

// Delete removes the session.
func (repo *sessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := repo.db.WithContext(ctx).Where("id = ?", id).Delete(&model.SessionModel{})
	if result.Error != nil {
		return domainerrors.NewDatabaseExecuteError(result.Error, "failed to delete session")
	}
	if result.RowsAffected == 0 {
		return repository.ErrSessionNotFound
	}

	return nil
}

func toSessionDomain(data *model.SessionModel) *entity.Session {
	return &entity.Session{
		ID:        data.ID,
		AccountID: data.AccountID,
		Device: entity.DeviceInfo{
			Browser:        data.Browser,
			BrowserVersion: data.BrowserVersion,
			OS:             data.OS,
			OSVersion:      data.OSVersion,
			DeviceType:     data.DeviceType,
			UserAgent:      data.UserAgent,
			IPAddress:      data.IPAddress,
		},
		ActiveAt:  data.ActiveAt,
		CreatedAt: data.CreatedAt,
	}
}

func fromSessionDomain(data *entity.Session) *model.SessionModel {
	return &model.SessionModel{
		ID:             data.ID,
		AccountID:      data.AccountID,
		Browser:        data.Device.Browser,
		BrowserVersion: data.Device.BrowserVersion,
		OS:             data.Device.OS,
		OSVersion:      data.Device.OSVersion,
		DeviceType:     data.Device.DeviceType,
		UserAgent:      data.Device.UserAgent,
		IPAddress:      data.Device.IPAddress,
		ActiveAt:       data.ActiveAt,
		CreatedAt:      data.CreatedAt,
	}
}
