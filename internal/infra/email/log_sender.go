package email

import (
	"context"
	"log/slog"

	"authflow/internal/domain/service"
)

// logSender writes codes to the log for local development.
type logSender struct {
	logger *slog.Logger
}

// NewLogSender creates a sender that only logs.
func NewLogSender(logger *slog.Logger) service.EmailSender {
	return &logSender{logger: logger}
}

// SendOTP logs the code.
func (s *logSender) SendOTP(_ context.Context, msg *service.OTPMessage) error {
	s.logger.Info("[LogEmail] OTP issued",
		slog.String("to", msg.To),
		slog.String("type", string(msg.Type)),
		slog.String("code", msg.Code),
		slog.Duration("expires_in", msg.ExpiresIn),
	)

	return nil
}
