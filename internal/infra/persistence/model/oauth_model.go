package model

import (
	"time"

	"github.com/google/uuid"
)

// OAuthStateModel mirrors the 'oauth_states' table.
type OAuthStateModel struct {
	ID               uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	State            string     `gorm:"type:varchar(128);not null;uniqueIndex:idx_oauth_states_state"`
	Provider         string     `gorm:"type:varchar(32);not null"`
	CodeVerifier     string     `gorm:"type:varchar(128);not null"`
	RedirectURI      string     `gorm:"column:redirect_uri;type:text;not null"`
	AuthorizationURL string     `gorm:"column:authorization_url;type:text;not null"`
	ExpiresAt        time.Time  `gorm:"not null;index:idx_oauth_states_expires_at"`
	AccountID        *uuid.UUID `gorm:"type:uuid"`
	SessionID        *uuid.UUID `gorm:"type:uuid"`
	CreatedAt        time.Time
}

// TableName explicitly sets the table name for GORM.
func (OAuthStateModel) TableName() string {
	return "oauth_states"
}

// OAuthCallbackModel mirrors the 'oauth_callbacks' table. The unique state index allows a
// single callback per authorization request.
type OAuthCallbackModel struct {
	ID        uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Provider  string     `gorm:"type:varchar(32);not null"`
	Code      string     `gorm:"type:text;not null"`
	State     string     `gorm:"type:varchar(128);not null;uniqueIndex:idx_oauth_callbacks_state"`
	Processed bool       `gorm:"not null;default:false"`
	Error     string     `gorm:"type:text"`
	ClaimedAt *time.Time `gorm:"column:claimed_at"`
	CreatedAt time.Time
}

// TableName explicitly sets the table name for GORM.
func (OAuthCallbackModel) TableName() string {
	return "oauth_callbacks"
}

// SocialAccountModel mirrors the 'social_accounts' table.
type SocialAccountModel struct {
	ID                uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	AccountID         uuid.UUID  `gorm:"type:uuid;not null;index:idx_social_accounts_account_id"`
	Provider          string     `gorm:"type:varchar(32);not null;uniqueIndex:idx_social_accounts_provider_account"`
	ProviderAccountID string     `gorm:"type:varchar(255);not null;uniqueIndex:idx_social_accounts_provider_account"`
	AccessToken       string     `gorm:"type:text;not null"`
	RefreshToken      string     `gorm:"type:text"`
	TokenType         string     `gorm:"type:varchar(32)"`
	ExpiresAt         *time.Time `gorm:"column:expires_at"`
	Scope             string     `gorm:"type:text"`
	IDToken           string     `gorm:"column:id_token;type:text"`
	ProviderData      []byte     `gorm:"type:jsonb"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TableName explicitly sets the table name for GORM.
func (SocialAccountModel) TableName() string {
	return "social_accounts"
}
