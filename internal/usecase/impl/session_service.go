package impl

import (
	"context"
	"log/slog"
	"time"

	deliverycontext "authflow/internal/delivery/context"
	domainerrors "authflow/internal/domain/errors"
	"authflow/internal/domain/repository"
	"authflow/internal/domain/service"
	"authflow/internal/errors"
	"authflow/internal/usecase"

	"github.com/google/uuid"
	"go.uber.org/fx"
)

// activityResolution limits how often activeAt is written for one session.
const activityResolution = time.Minute

// sessionService implements the SessionUsecase interface.
type sessionService struct {
	accounts repository.AccountRepository
	profiles repository.ProfileRepository
	sessions repository.SessionRepository
	tokens   service.SessionTokenService
	issuer   *SessionIssuer
	now      func() time.Time
	logger   *slog.Logger
}

// SessionServiceParams holds dependencies for SessionService, injected by Fx.
type SessionServiceParams struct {
	fx.In

	Accounts repository.AccountRepository
	Profiles repository.ProfileRepository
	Sessions repository.SessionRepository
	Tokens   service.SessionTokenService
	Issuer   *SessionIssuer
	Logger   *slog.Logger
}

// NewSessionService is the constructor for sessionService.
func NewSessionService(params SessionServiceParams) usecase.SessionUsecase {
	return &sessionService{
		accounts: params.Accounts,
		profiles: params.Profiles,
		sessions: params.Sessions,
		tokens:   params.Tokens,
		issuer:   params.Issuer,
		now:      time.Now,
		logger:   params.Logger,
	}
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *sessionService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// Finalize checks that the session exists and belongs to the account, then mints its credential.
func (srv *sessionService) Finalize(ctx context.Context, input *usecase.FinalizeSessionInput) (*usecase.SessionToken, error) {
	if input.SessionID == uuid.Nil || input.AccountID == uuid.Nil {
		return nil, domainerrors.ErrValidationFailed.WithDetails("sessionId and accountId are required")
	}

	session, err := srv.sessions.FindByID(ctx, input.SessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, domainerrors.ErrSessionNotFound
		}

		return nil, errors.Wrap(err, "failed to find session")
	}
	if session.AccountID != input.AccountID {
		srv.log(ctx).Warn("Finalize with mismatched account",
			slog.String("session_id", session.ID.String()),
		)

		return nil, domainerrors.ErrSessionNotFound
	}
	if session.ExpiredAt(srv.now(), srv.tokens.TTL()) {
		return nil, domainerrors.ErrSessionExpired
	}

	if _, err := srv.accounts.FindByID(ctx, input.AccountID); err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, domainerrors.ErrAccountNotFound
		}

		return nil, errors.Wrap(err, "failed to find account")
	}

	token, expiresAt, err := srv.issuer.Mint(session)
	if err != nil {
		return nil, err
	}

	return &usecase.SessionToken{
		Token:     token,
		SessionID: session.ID,
		AccountID: session.AccountID,
		ExpiresAt: expiresAt,
	}, nil
}

// Authenticate accepts a credential only while its session row exists, belongs to the
// account named in the credential, and is within the session TTL.
func (srv *sessionService) Authenticate(ctx context.Context, token string) (*usecase.AuthenticatedSession, error) {
	if token == "" {
		return nil, domainerrors.ErrUnauthenticated
	}

	claims, err := srv.tokens.Parse(token)
	if err != nil {
		srv.log(ctx).Debug("Rejected session token", slog.Any("error", err))

		return nil, domainerrors.ErrUnauthenticated
	}

	session, err := srv.sessions.FindByID(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, domainerrors.ErrUnauthenticated
		}

		return nil, errors.Wrap(err, "failed to find session")
	}
	if session.AccountID != claims.AccountID {
		return nil, domainerrors.ErrUnauthenticated
	}

	now := srv.now()
	if session.ExpiredAt(now, srv.tokens.TTL()) {
		return nil, domainerrors.ErrSessionExpired
	}

	account, err := srv.accounts.FindByID(ctx, session.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, domainerrors.ErrUnauthenticated
		}

		return nil, errors.Wrap(err, "failed to find account")
	}

	if now.Sub(session.ActiveAt) >= activityResolution {
		if err := srv.sessions.Touch(ctx, session.ID, now); err != nil {
			srv.log(ctx).Warn("Failed to record session activity", slog.Any("error", err))
		} else {
			session.ActiveAt = now
		}
	}

	return &usecase.AuthenticatedSession{Session: session, Account: account}, nil
}

// Current loads the session with its account and, when provisioned, its profile.
func (srv *sessionService) Current(ctx context.Context, sessionID uuid.UUID) (*usecase.CurrentSession, error) {
	session, err := srv.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, domainerrors.ErrSessionNotFound
		}

		return nil, errors.Wrap(err, "failed to find session")
	}

	account, err := srv.accounts.FindByID(ctx, session.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, domainerrors.ErrAccountNotFound
		}

		return nil, errors.Wrap(err, "failed to find account")
	}

	profile, err := srv.profiles.FindByAccountID(ctx, account.ID)
	if err != nil && !errors.Is(err, repository.ErrProfileNotFound) {
		return nil, errors.Wrap(err, "failed to find profile")
	}

	return &usecase.CurrentSession{Session: session, Account: account, Profile: profile}, nil
}

// Logout deletes the session.
func (srv *sessionService) Logout(ctx context.Context, sessionID uuid.UUID) error {
	if err := srv.sessions.Delete(ctx, sessionID); err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return domainerrors.ErrSessionNotFound
		}

		return errors.Wrap(err, "failed to delete session")
	}

	srv.log(ctx).Info("Session ended", slog.String("session_id", sessionID.String()))

	return nil
}
