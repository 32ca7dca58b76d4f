package service

import (
	"context"
	"time"

	"authflow/internal/domain/entity"
)

// OTPMessage is a one-time code addressed to a single recipient.
type OTPMessage struct {
	To        string
	Code      string
	Type      entity.OTPType
	ExpiresIn time.Duration
}

// EmailSender delivers one-time codes.
type EmailSender interface {
	SendOTP(ctx context.Context, msg *OTPMessage) error
}
