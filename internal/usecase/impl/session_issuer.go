package impl

import (
	"context"
	"time"

	"authflow/internal/domain/entity"
	"authflow/internal/domain/repository"
	"authflow/internal/domain/service"
	"authflow/internal/errors"

	"github.com/google/uuid"
	"go.uber.org/fx"
)

// Sign-in methods recorded on session metrics.
const (
	methodOAuth    = "oauth"
	methodPassword = "password"
	methodOTP      = "otp"
)

// SessionIssuer creates session rows and mints their bearer credentials.
type SessionIssuer struct {
	tokens  service.SessionTokenService
	metrics service.AuthMetrics
	now     func() time.Time
}

// SessionIssuerParams holds dependencies for SessionIssuer, injected by Fx.
type SessionIssuerParams struct {
	fx.In

	Tokens  service.SessionTokenService
	Metrics service.AuthMetrics
}

// NewSessionIssuer is the constructor for SessionIssuer.
func NewSessionIssuer(params SessionIssuerParams) *SessionIssuer {
	return &SessionIssuer{
		tokens:  params.Tokens,
		metrics: params.Metrics,
		now:     time.Now,
	}
}

// Create inserts a session for accountID through sessions, which may be bound to a transaction.
// Missing device fields are filled with placeholders.
func (i *SessionIssuer) Create(
	ctx context.Context,
	sessions repository.SessionRepository,
	accountID uuid.UUID,
	device entity.DeviceInfo,
	method string,
) (*entity.Session, error) {
	now := i.now()
	session := &entity.Session{
		ID:        uuid.New(),
		AccountID: accountID,
		Device:    withPlaceholders(device),
		ActiveAt:  now,
		CreatedAt: now,
	}
	if err := sessions.Create(ctx, session); err != nil {
		return nil, errors.Wrap(err, "failed to create session")
	}
	i.metrics.SessionIssued(method)

	return session, nil
}

// Mint signs a credential for session. The credential is derived from the session alone,
// so minting twice yields the same token.
func (i *SessionIssuer) Mint(session *entity.Session) (string, *time.Time, error) {
	token, err := i.tokens.Mint(session.ID, session.AccountID, session.CreatedAt)
	if err != nil {
		return "", nil, errors.Wrap(err, "failed to mint session token")
	}

	var expiresAt *time.Time
	if ttl := i.tokens.TTL(); ttl > 0 {
		exp := session.CreatedAt.Add(ttl)
		expiresAt = &exp
	}

	return token, expiresAt, nil
}

func withPlaceholders(d entity.DeviceInfo) entity.DeviceInfo {
	fill := func(s *string) {
		if *s == "" {
			*s = entity.UnknownDeviceValue
		}
	}
	fill(&d.Browser)
	fill(&d.BrowserVersion)
	fill(&d.OS)
	fill(&d.OSVersion)
	if d.DeviceType == "" {
		d.DeviceType = "web"
	}

	return d
}
