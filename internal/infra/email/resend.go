package email

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"authflow/config"
	"authflow/internal/domain/service"

	"github.com/pkg/errors"
)

// resendSender posts messages to the Resend HTTP API.
type resendSender struct {
	endpoint   string
	apiKey     string
	from       string
	httpClient *http.Client
	logger     *slog.Logger
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Text    string   `json:"text"`
}

// NewResendSender creates a sender for the Resend API.
func NewResendSender(cfg config.EmailConfig, logger *slog.Logger) service.EmailSender {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultResendEndpoint
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &resendSender{
		endpoint:   endpoint,
		apiKey:     cfg.APIKey,
		from:       cfg.From,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// SendOTP renders and posts the code email.
func (s *resendSender) SendOTP(ctx context.Context, msg *service.OTPMessage) error {
	rendered, err := renderOTP(msg)
	if err != nil {
		return err
	}

	body, err := json.Marshal(resendRequest{
		From:    s.from,
		To:      []string{msg.To},
		Subject: rendered.Subject,
		HTML:    rendered.HTML,
		Text:    rendered.Text,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.WithStack(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send email request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))

		return errors.Errorf("resend returned status %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}

	s.logger.Debug("[Resend] Email sent",
		slog.String("type", string(msg.Type)),
		slog.Int("status", resp.StatusCode),
	)

	return nil
}
