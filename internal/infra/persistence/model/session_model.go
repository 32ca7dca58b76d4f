package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionModel mirrors the 'sessions' table.
type SessionModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	AccountID      uuid.UUID `gorm:"type:uuid;not null;index:idx_sessions_account_id"`
	Browser        string    `gorm:"type:varchar(64)"`
	BrowserVersion string    `gorm:"type:varchar(64)"`
	OS             string    `gorm:"column:os;type:varchar(64)"`
	OSVersion      string    `gorm:"column:os_version;type:varchar(64)"`
	DeviceType     string    `gorm:"type:varchar(32)"`
	UserAgent      string    `gorm:"type:text"`
	IPAddress      string    `gorm:"column:ip_address;type:varchar(64)"`
	ActiveAt       time.Time `gorm:"not null"`
	CreatedAt      time.Time
}

// TableName explicitly sets the table name for GORM.
func (SessionModel) TableName() string {
	return "sessions"
}

// All lists every model for schema migration.
func All() []any {
	return []any{
		&AccountModel{},
		&ProfileModel{},
		&OAuthStateModel{},
		&OAuthCallbackModel{},
		&SocialAccountModel{},
		&SessionModel{},
	}
}
