package handler

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"authflow/config"
	"authflow/internal/delivery/api/response"
	deliverycontext "authflow/internal/delivery/context"
	"authflow/internal/domain/constants"
	domainerrors "authflow/internal/domain/errors"
	"authflow/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// VerifyPath is where clients poll for completion.
const VerifyPath = "/auth/oauth/verify"

// OAuthHandlerParams holds dependencies for OAuthHandler, injected by Fx.
type OAuthHandlerParams struct {
	fx.In

	Config   *config.Config
	OAuthUC  usecase.OAuthUsecase
	Sessions usecase.SessionUsecase
	Logger   *slog.Logger
}

// OAuthHandler serves the authorize, callback and completion poll endpoints.
type OAuthHandler struct {
	oauthUC       usecase.OAuthUsecase
	sessions      usecase.SessionUsecase
	cookie        sessionCookie
	completionURL string
	logger        *slog.Logger
}

// NewOAuthHandler is the constructor for OAuthHandler
func NewOAuthHandler(params OAuthHandlerParams) *OAuthHandler {
	return &OAuthHandler{
		oauthUC:       params.OAuthUC,
		sessions:      params.Sessions,
		cookie:        newSessionCookie(params.Config),
		completionURL: params.Config.OAuth.CompletionRedirectURL,
		logger:        params.Logger,
	}
}

// AuthorizeRequest represents the request body for starting an authorization
type AuthorizeRequest struct {
	Provider    string `json:"provider" validate:"required"`
	RedirectURI string `json:"redirect_uri" validate:"required"`
}

// AuthorizeResponse carries the provider URL the browser should visit.
type AuthorizeResponse struct {
	AuthorizationURL string    `json:"authorization_url"`
	State            string    `json:"state"`
	ExpiresAt        time.Time `json:"expires_at"`
}

// CallbackAcceptedResponse tells a non-redirecting client how to poll.
type CallbackAcceptedResponse struct {
	State          string `json:"state"`
	PollURL        string `json:"poll_url"`
	PollIntervalMs int64  `json:"poll_interval_ms"`
	MaxAttempts    int    `json:"max_attempts"`
}

// VerifyResponse is one answer of the completion poll.
type VerifyResponse struct {
	Status       usecase.PollStatus `json:"status"`
	Attempt      int                `json:"attempt"`
	NextAttempt  int                `json:"next_attempt,omitempty"`
	MaxAttempts  int                `json:"max_attempts"`
	RetryAfterMs int64              `json:"retry_after_ms,omitempty"`
	Reason       string             `json:"reason,omitempty"`
	AccountID    *uuid.UUID         `json:"account_id,omitempty"`
	SessionID    *uuid.UUID         `json:"session_id,omitempty"`
	Token        string             `json:"token,omitempty"`
	ExpiresAt    *time.Time         `json:"expires_at,omitempty"`
}

// Authorize starts an authorization code flow.
func (h *OAuthHandler) Authorize(c echo.Context) error {
	var req AuthorizeRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, "INVALID_INPUT", "Invalid authorize request")
	}
	if err := c.Validate(&req); err != nil {
		return response.HandleAppError(c, err)
	}

	out, err := h.oauthUC.StartAuthorization(c.Request().Context(), &usecase.StartAuthorizationInput{
		Provider:    req.Provider,
		RedirectURI: req.RedirectURI,
	})
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, AuthorizeResponse{
		AuthorizationURL: out.AuthorizationURL,
		State:            out.State,
		ExpiresAt:        out.ExpiresAt,
	})
}

// Callback records the provider redirect. The exchange runs asynchronously, so the browser is
// sent to the completion page (or told where to poll) right away.
func (h *OAuthHandler) Callback(c echo.Context) error {
	out, err := h.oauthUC.ReceiveCallback(c.Request().Context(), &usecase.ReceiveCallbackInput{
		Code:             c.QueryParam("code"),
		State:            c.QueryParam("state"),
		Error:            c.QueryParam("error"),
		ErrorDescription: c.QueryParam("error_description"),
	})
	if err != nil {
		return response.HandleAppError(c, err)
	}

	deliverycontext.GetLoggerOrDefault(c.Request().Context(), h.logger).Debug("Callback accepted",
		slog.String(constants.AttrCallbackID, out.CallbackID.String()),
	)

	if h.completionURL != "" {
		target, err := withPollQuery(h.completionURL, out.State)
		if err != nil {
			return err
		}

		return c.Redirect(http.StatusFound, target)
	}

	pollURL, _ := withPollQuery(VerifyPath, out.State)

	return response.Success(c, http.StatusAccepted, CallbackAcceptedResponse{
		State:          out.State,
		PollURL:        pollURL,
		PollIntervalMs: constants.CompletionPollInterval.Milliseconds(),
		MaxAttempts:    constants.CompletionPollMaxAttempts,
	})
}

// Verify answers one completion poll. Once the flow completes, the session credential is
// minted and set as a cookie.
func (h *OAuthHandler) Verify(c echo.Context) error {
	attempt := 0
	if raw := c.QueryParam("attempt"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return response.HandleAppError(c, domainerrors.ErrValidationFailed.WithDetails("attempt must be an integer"))
		}
		attempt = n
	}

	ctx := c.Request().Context()
	out, err := h.oauthUC.PollCompletion(ctx, &usecase.PollCompletionInput{
		State:   c.QueryParam("state"),
		Attempt: attempt,
	})
	if err != nil {
		return response.HandleAppError(c, err)
	}

	resp := VerifyResponse{
		Status:       out.Status,
		Attempt:      out.Attempt,
		NextAttempt:  out.NextAttempt,
		MaxAttempts:  out.MaxAttempts,
		RetryAfterMs: out.RetryAfter.Milliseconds(),
		Reason:       out.Reason,
	}

	if out.Status == usecase.PollStatusComplete {
		token, err := h.sessions.Finalize(ctx, &usecase.FinalizeSessionInput{
			SessionID: out.SessionID,
			AccountID: out.AccountID,
		})
		if err != nil {
			return response.HandleAppError(c, err)
		}
		h.cookie.set(c, token.Token, token.ExpiresAt)

		resp.AccountID = &out.AccountID
		resp.SessionID = &out.SessionID
		resp.Token = token.Token
		resp.ExpiresAt = token.ExpiresAt
	}

	return response.Success(c, http.StatusOK, resp)
}

func withPollQuery(base, state string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("state", state)
	q.Set("attempt", "0")
	u.RawQuery = q.Encode()

	return u.String(), nil
}
