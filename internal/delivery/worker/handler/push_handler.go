// Package handler serves push deliveries from the OAuth callback topic.
package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"authflow/config"
	deliverycontext "authflow/internal/delivery/context"
	"authflow/internal/domain/constants"
	"authflow/internal/domain/service"
	"authflow/internal/infra/pubsub"
	"authflow/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/fx"
	"google.golang.org/api/idtoken"
)

// TokenVerifier checks the credential attached to a push request.
type TokenVerifier func(req *http.Request) error

// PushHandler runs the OAuth exchange for pushed callback events.
type PushHandler struct {
	verify     TokenVerifier
	logger     *slog.Logger
	exchangeUC usecase.OAuthExchangeUsecase
}

// PushHandlerParams holds dependencies for the PushHandler
type PushHandlerParams struct {
	fx.In

	Config     *config.Config
	Logger     *slog.Logger
	ExchangeUC usecase.OAuthExchangeUsecase
}

// NewPushHandler creates a new Pub/Sub push handler. Push tokens are only verified for
// Google Pub/Sub outside of development.
func NewPushHandler(params PushHandlerParams) *PushHandler {
	var verify TokenVerifier
	if params.Config.PubSub != nil &&
		params.Config.PubSub.Provider == constants.PubSubProviderGoogle &&
		params.Config.Env.Env != constants.EnvDevelop {
		verify = verifyPubSubToken
	}

	return &PushHandler{
		verify:     verify,
		logger:     params.Logger,
		exchangeUC: params.ExchangeUC,
	}
}

// WithTokenVerifier replaces the push token check. A nil verifier disables it.
func (h *PushHandler) WithTokenVerifier(verify TokenVerifier) *PushHandler {
	h.verify = verify

	return h
}

// HandlePush processes one pushed callback event. Malformed messages are rejected with 400 so
// the broker dead-letters them; 503 asks for redelivery when the callback could not be loaded
// or claimed. Everything else, including flows that failed, is acknowledged.
func (h *PushHandler) HandlePush(c echo.Context) error {
	ctx := c.Request().Context()

	if h.verify != nil {
		if err := h.verify(c.Request()); err != nil {
			h.logger.Warn("[Worker] Invalid Pub/Sub token", slog.Any("error", err))

			return c.NoContent(http.StatusUnauthorized)
		}
	}

	var env pubsub.PushEnvelope
	if err := c.Bind(&env); err != nil {
		h.logger.Error("[Worker] Failed to parse push message", slog.Any("error", err))

		return c.NoContent(http.StatusBadRequest)
	}

	event, err := env.Event()
	if err != nil {
		h.logger.Error("[Worker] Failed to decode callback event", slog.Any("error", err))

		return c.NoContent(http.StatusBadRequest)
	}

	callbackID, err := uuid.Parse(event.CallbackID)
	if err != nil {
		h.logger.Error("[Worker] Callback event without a valid callback id",
			slog.String(constants.AttrCallbackID, event.CallbackID),
		)

		return c.NoContent(http.StatusBadRequest)
	}

	// Priority: message attributes > event field > existing context
	requestID := extractRequestID(ctx, env.Message.Attributes, event)
	ctx, reqLogger := deliverycontext.WithRequestScope(ctx, h.logger, requestID)

	reqLogger.Info("[Worker] Processing OAuth callback",
		slog.String(constants.AttrCallbackID, event.CallbackID),
		slog.String(constants.AttrProvider, event.Provider),
		slog.String("message_id", env.Message.MessageID),
	)

	if err := h.exchangeUC.ProcessCallback(ctx, callbackID); err != nil {
		reqLogger.Error("[Worker] Failed to process OAuth callback",
			slog.String(constants.AttrCallbackID, event.CallbackID),
			slog.Any("error", err),
		)

		return c.NoContent(http.StatusServiceUnavailable)
	}

	return c.NoContent(http.StatusOK)
}

// extractRequestID picks the tracing id from message attributes, the event, or the context,
// and generates one as a last resort.
func extractRequestID(ctx context.Context, attributes map[string]string, event *service.OAuthCallbackEvent) string {
	if requestID := attributes[constants.AttrRequestID]; requestID != "" {
		return requestID
	}

	if event.RequestID != "" {
		return event.RequestID
	}

	if requestID := deliverycontext.GetRequestIDFromContext(ctx); requestID != "" {
		return requestID
	}

	return uuid.New().String()
}

// verifyPubSubToken verifies the JWT token from Google Pub/Sub push requests
// Reference: https://cloud.google.com/pubsub/docs/push#authenticating_standard_push_requests
func verifyPubSubToken(req *http.Request) error {
	authHeader := req.Header.Get("Authorization")
	if authHeader == "" {
		return errors.New("missing authorization header")
	}

	const bearerPrefix = "Bearer "
	token, ok := strings.CutPrefix(authHeader, bearerPrefix)
	if !ok {
		return errors.New("invalid authorization header format")
	}

	// The audience is the URL of this endpoint
	scheme := "https"
	if req.TLS == nil {
		scheme = "http"
	}
	audience := fmt.Sprintf("%s://%s%s", scheme, req.Host, req.URL.Path)

	payload, err := idtoken.Validate(req.Context(), token, audience)
	if err != nil {
		return errors.Wrap(err, "failed to validate token")
	}

	if payload.Issuer != "accounts.google.com" && payload.Issuer != "https://accounts.google.com" {
		return errors.Errorf("invalid issuer: %s", payload.Issuer)
	}

	if emailVerified, ok := payload.Claims["email_verified"].(bool); ok && !emailVerified {
		return errors.New("email not verified")
	}

	return nil
}
