package handler

import (
	"log/slog"
	"net/http"
	"time"

	"authflow/config"
	"authflow/internal/delivery/api/middleware"
	"authflow/internal/delivery/api/response"
	domainerrors "authflow/internal/domain/errors"
	"authflow/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// SessionHandlerParams holds dependencies for SessionHandler, injected by Fx.
type SessionHandlerParams struct {
	fx.In

	Config   *config.Config
	Sessions usecase.SessionUsecase
	Logger   *slog.Logger
}

// SessionHandler serves finalize, current session and logout.
type SessionHandler struct {
	sessions usecase.SessionUsecase
	cookie   sessionCookie
	logger   *slog.Logger
}

// NewSessionHandler is the constructor for SessionHandler
func NewSessionHandler(params SessionHandlerParams) *SessionHandler {
	return &SessionHandler{
		sessions: params.Sessions,
		cookie:   newSessionCookie(params.Config),
		logger:   params.Logger,
	}
}

// FinalizeRequest names the session to mint a credential for.
type FinalizeRequest struct {
	SessionID string `json:"session_id" validate:"required,uuid"`
	AccountID string `json:"account_id" validate:"required,uuid"`
}

// TokenResponse carries a minted credential.
type TokenResponse struct {
	Token     string     `json:"token"`
	SessionID uuid.UUID  `json:"session_id"`
	AccountID uuid.UUID  `json:"account_id"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// CurrentSessionResponse describes the authenticated caller.
type CurrentSessionResponse struct {
	Session SessionView  `json:"session"`
	Account AccountView  `json:"account"`
	Profile *ProfileView `json:"profile,omitempty"`
}

// SessionView is the public part of a session.
type SessionView struct {
	ID         uuid.UUID `json:"id"`
	Browser    string    `json:"browser"`
	OS         string    `json:"os"`
	DeviceType string    `json:"device_type"`
	ActiveAt   time.Time `json:"active_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// AccountView is the public part of an account.
type AccountView struct {
	ID            uuid.UUID `json:"id"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"email_verified"`
	Handle        string    `json:"handle"`
	Name          string    `json:"name,omitempty"`
	Image         string    `json:"image,omitempty"`
	HasPassword   bool      `json:"has_password"`
}

// ProfileView is the public profile.
type ProfileView struct {
	Username            string `json:"username"`
	OnboardingCompleted bool   `json:"onboarding_completed"`
}

// Finalize mints the credential for a completed sign in and sets it as a cookie.
func (h *SessionHandler) Finalize(c echo.Context) error {
	var req FinalizeRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, "INVALID_INPUT", "Invalid finalize request")
	}
	if err := c.Validate(&req); err != nil {
		return response.HandleAppError(c, err)
	}

	input := &usecase.FinalizeSessionInput{
		SessionID: uuid.MustParse(req.SessionID),
		AccountID: uuid.MustParse(req.AccountID),
	}
	token, err := h.sessions.Finalize(c.Request().Context(), input)
	if err != nil {
		return response.HandleAppError(c, err)
	}
	h.cookie.set(c, token.Token, token.ExpiresAt)

	return response.Success(c, http.StatusOK, TokenResponse{
		Token:     token.Token,
		SessionID: token.SessionID,
		AccountID: token.AccountID,
		ExpiresAt: token.ExpiresAt,
	})
}

// Current returns the caller's session, account and profile.
func (h *SessionHandler) Current(c echo.Context) error {
	authed, ok := middleware.SessionFromContext(c)
	if !ok {
		return response.HandleAppError(c, domainerrors.ErrUnauthenticated)
	}

	current, err := h.sessions.Current(c.Request().Context(), authed.Session.ID)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	resp := CurrentSessionResponse{
		Session: SessionView{
			ID:         current.Session.ID,
			Browser:    current.Session.Device.Browser,
			OS:         current.Session.Device.OS,
			DeviceType: current.Session.Device.DeviceType,
			ActiveAt:   current.Session.ActiveAt,
			CreatedAt:  current.Session.CreatedAt,
		},
		Account: AccountView{
			ID:            current.Account.ID,
			Email:         current.Account.Email,
			EmailVerified: current.Account.EmailVerified,
			Handle:        current.Account.Handle,
			Name:          current.Account.Name,
			Image:         current.Account.Image,
			HasPassword:   current.Account.HasPassword(),
		},
	}
	if current.Profile != nil {
		resp.Profile = &ProfileView{
			Username:            current.Profile.Username,
			OnboardingCompleted: current.Profile.OnboardingCompleted,
		}
	}

	return response.Success(c, http.StatusOK, resp)
}

// Logout ends the caller's session and clears the cookie.
func (h *SessionHandler) Logout(c echo.Context) error {
	authed, ok := middleware.SessionFromContext(c)
	if !ok {
		return response.HandleAppError(c, domainerrors.ErrUnauthenticated)
	}

	if err := h.sessions.Logout(c.Request().Context(), authed.Session.ID); err != nil {
		return response.HandleAppError(c, err)
	}
	h.cookie.clear(c)

	return response.Success(c, http.StatusOK, map[string]bool{"logged_out": true})
}
