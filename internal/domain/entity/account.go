// Package entity contains the core business objects of the project,
// each representing a unique, identifiable concept within the domain.
package entity

import (
	"time"

	"github.com/google/uuid"
)

// OTPType tells which flow an issued one-time code belongs to.
type OTPType string

const (
	OTPTypeSignUp OTPType = "sign-up"
	OTPTypeSignIn OTPType = "sign-in"
)

// Account is the core identity record. Email and handle are both unique; the handle is
// empty until the account provisioner assigns it.
type Account struct {
	ID            uuid.UUID
	Handle        string // Unique, assigned once after creation. Empty means unassigned.
	Email         string
	EmailVerified bool
	PasswordHash  string // Empty for passwordless (OTP or OAuth only) accounts.
	Name          string
	Image         string

	EmailOTP          string
	EmailOTPExpiresAt *time.Time
	EmailOTPType      OTPType
	EmailOTPAttempts  int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasPassword reports whether the account can sign in with a password.
func (a *Account) HasPassword() bool {
	return a.PasswordHash != ""
}

// HasHandle reports whether a handle has been assigned.
func (a *Account) HasHandle() bool {
	return a.Handle != ""
}

// ClearOTP removes any pending one-time code.
func (a *Account) ClearOTP() {
	a.EmailOTP = ""
	a.EmailOTPExpiresAt = nil
	a.EmailOTPType = ""
	a.EmailOTPAttempts = 0
}

// Profile is the public, user-facing companion of an Account.
type Profile struct {
	ID                  uuid.UUID
	AccountID           uuid.UUID
	Username            string
	OnboardingCompleted bool
	CreatedAt           time.Time
}
