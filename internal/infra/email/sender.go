// Package email delivers one-time codes to users.
package email

import (
	"log/slog"
	"time"

	"authflow/config"
	"authflow/internal/domain/constants"
	"authflow/internal/domain/service"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

const (
	defaultResendEndpoint = "https://api.resend.com/emails"
	defaultTimeout        = 10 * time.Second
)

// SenderParams holds dependencies for EmailSender, injected by Fx
type SenderParams struct {
	fx.In

	Config *config.Config
	Logger *slog.Logger
}

// NewEmailSender creates an EmailSender based on configuration. The Resend transport is only
// used when an API key is present; otherwise codes are written to the log.
func NewEmailSender(params SenderParams) (service.EmailSender, error) {
	cfg := params.Config.Email

	switch cfg.Provider {
	case constants.EmailProviderResend:
		if cfg.APIKey == "" {
			params.Logger.Warn("Resend selected without an API key, falling back to log sender")

			return NewLogSender(params.Logger), nil
		}
		if cfg.From == "" {
			return nil, errors.New("email.from is required for resend provider")
		}

		return NewResendSender(cfg, params.Logger), nil

	case constants.EmailProviderLog, "":
		params.Logger.Info("Using log email sender")

		return NewLogSender(params.Logger), nil

	default:
		return nil, errors.Errorf("unknown email provider: %s", cfg.Provider)
	}
}
