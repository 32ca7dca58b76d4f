// Package model holds the GORM mappings of the persistence tables.
package model

import (
	"time"

	"github.com/google/uuid"
)

// AccountModel mirrors the 'accounts' table. Handle is nullable so that many accounts can
// await handle assignment under a unique index.
type AccountModel struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Handle        *string   `gorm:"type:varchar(64);uniqueIndex:idx_accounts_handle"`
	Email         string    `gorm:"type:varchar(320);not null;uniqueIndex:idx_accounts_email"`
	EmailVerified bool      `gorm:"not null;default:false"`
	PasswordHash  string    `gorm:"column:password;type:varchar(255)"`
	Name          string    `gorm:"type:varchar(255)"`
	Image         string    `gorm:"type:text"`

	EmailOTP          *string    `gorm:"column:email_otp;type:varchar(6)"`
	EmailOTPExpiresAt *time.Time `gorm:"column:email_otp_expires_at"`
	EmailOTPType      *string    `gorm:"column:email_otp_type;type:varchar(16)"`
	EmailOTPAttempts  int        `gorm:"column:email_otp_attempts;not null;default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName explicitly sets the table name for GORM.
func (AccountModel) TableName() string {
	return "accounts"
}

// ProfileModel mirrors the 'profiles' table.
type ProfileModel struct {
	ID                  uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	AccountID           uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_profiles_account_id"`
	Username            string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_profiles_username"`
	OnboardingCompleted bool      `gorm:"not null;default:false"`
	CreatedAt           time.Time
}

// TableName explicitly sets the table name for GORM.
func (ProfileModel) TableName() string {
	return "profiles"
}
