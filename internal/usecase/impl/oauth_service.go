package impl

import (
	"context"
	"log/slog"
	"net/url"
	"slices"
	"time"

	"authflow/config"
	deliverycontext "authflow/internal/delivery/context"
	"authflow/internal/domain/constants"
	"authflow/internal/domain/entity"
	domainerrors "authflow/internal/domain/errors"
	"authflow/internal/domain/repository"
	"authflow/internal/domain/service"
	"authflow/internal/errors"
	"authflow/internal/usecase"

	"go.uber.org/fx"
	"golang.org/x/oauth2"
)

const stateTokenLength = 32

// Reasons reported to pollers when an authorization fails.
const (
	reasonStateNotFound = "OAuth state not found or expired"
	reasonStateExpired  = "OAuth state expired"
	reasonPollTimeout   = "Sign in is taking longer than expected"
)

// oauthService implements the OAuthUsecase interface.
type oauthService struct {
	states      repository.OAuthStateRepository
	callbacks   repository.OAuthCallbackRepository
	providers   service.OAuthProviderRegistry
	publisher   service.EventPublisher
	metrics     service.AuthMetrics
	allowedURIs []string
	now         func() time.Time
	newVerifier func() string
	logger      *slog.Logger
}

// OAuthServiceParams holds dependencies for OAuthService, injected by Fx.
type OAuthServiceParams struct {
	fx.In

	Config    *config.Config
	States    repository.OAuthStateRepository
	Callbacks repository.OAuthCallbackRepository
	Providers service.OAuthProviderRegistry
	Publisher service.EventPublisher
	Metrics   service.AuthMetrics
	Logger    *slog.Logger
}

// NewOAuthService is the constructor for oauthService.
func NewOAuthService(params OAuthServiceParams) usecase.OAuthUsecase {
	return &oauthService{
		states:      params.States,
		callbacks:   params.Callbacks,
		providers:   params.Providers,
		publisher:   params.Publisher,
		metrics:     params.Metrics,
		allowedURIs: params.Config.OAuth.AllowedRedirectURIs,
		now:         time.Now,
		newVerifier: oauth2.GenerateVerifier,
		logger:      params.Logger,
	}
}

func (srv *oauthService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// StartAuthorization validates the request, then records a fresh state with its PKCE
// verifier and returns the provider's authorization URL.
func (srv *oauthService) StartAuthorization(ctx context.Context, input *usecase.StartAuthorizationInput) (*usecase.StartAuthorizationOutput, error) {
	providerName := entity.Provider(input.Provider)
	if !providerName.IsSupported() {
		return nil, domainerrors.ErrUnsupportedProvider.WithDetails(input.Provider)
	}
	provider, ok := srv.providers.Get(providerName)
	if !ok {
		return nil, domainerrors.ErrUnsupportedProvider.WithDetails(input.Provider + " is not configured")
	}
	if err := srv.validateRedirectURI(input.RedirectURI); err != nil {
		return nil, err
	}

	stateToken := randomString(stateTokenLength, urlSafeAlphabet)
	verifier := srv.newVerifier()
	authURL := provider.AuthCodeURL(stateToken, verifier, input.RedirectURI)

	state := &entity.OAuthState{
		State:            stateToken,
		Provider:         providerName,
		CodeVerifier:     verifier,
		RedirectURI:      input.RedirectURI,
		AuthorizationURL: authURL,
		ExpiresAt:        srv.now().Add(constants.OAuthStateTTL),
	}
	if err := srv.states.Create(ctx, state); err != nil {
		return nil, errors.Wrap(err, "failed to store oauth state")
	}

	srv.metrics.OAuthAuthorizationStarted(providerName.String())
	srv.log(ctx).Info("OAuth authorization started",
		slog.String(constants.AttrProvider, providerName.String()),
		slog.String("state_id", state.ID.String()),
	)

	return &usecase.StartAuthorizationOutput{
		AuthorizationURL: authURL,
		State:            stateToken,
		ExpiresAt:        state.ExpiresAt,
	}, nil
}

// validateRedirectURI requires an absolute http(s) URL without query or fragment, since
// providers compare it byte for byte with the registered value.
func (srv *oauthService) validateRedirectURI(raw string) error {
	if raw == "" {
		return domainerrors.ErrInvalidRedirectURI.WithDetails("redirect_uri is required")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return domainerrors.ErrInvalidRedirectURI.WithDetails(err.Error())
	}
	if (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return domainerrors.ErrInvalidRedirectURI.WithDetails("redirect_uri must be an absolute http(s) URL")
	}
	if u.RawQuery != "" || u.ForceQuery || u.Fragment != "" {
		return domainerrors.ErrInvalidRedirectURI.WithDetails("redirect_uri must not carry a query or fragment")
	}
	if len(srv.allowedURIs) > 0 && !slices.Contains(srv.allowedURIs, raw) {
		return domainerrors.ErrInvalidRedirectURI.WithDetails("redirect_uri is not allowed")
	}

	return nil
}

// ReceiveCallback records the provider redirect as a work item and publishes it for the
// exchange consumer. A provider error and a missing code or state are rejected before
// anything is written.
func (srv *oauthService) ReceiveCallback(ctx context.Context, input *usecase.ReceiveCallbackInput) (*usecase.ReceiveCallbackOutput, error) {
	if input.Error != "" {
		srv.log(ctx).Info("OAuth provider returned an error",
			slog.String("error", input.Error),
			slog.String("error_description", input.ErrorDescription),
		)
		details := input.Error
		if input.ErrorDescription != "" {
			details += ": " + input.ErrorDescription
		}

		return nil, domainerrors.ErrOAuthProviderDenied.WithDetails(details)
	}
	if input.Code == "" || input.State == "" {
		return nil, domainerrors.ErrMissingCallbackParams
	}

	state, err := srv.states.FindByState(ctx, input.State)
	if err != nil {
		if errors.Is(err, repository.ErrOAuthStateNotFound) {
			return nil, domainerrors.ErrOAuthStateNotFound
		}

		return nil, errors.Wrap(err, "failed to find oauth state")
	}

	callback := &entity.OAuthCallback{
		Provider: state.Provider,
		Code:     input.Code,
		State:    input.State,
	}
	if err := srv.callbacks.Create(ctx, callback); err != nil {
		if errors.Is(err, repository.ErrCallbackExists) {
			return nil, domainerrors.ErrOAuthStateConsumed
		}

		return nil, errors.Wrap(err, "failed to record oauth callback")
	}

	event := &service.OAuthCallbackEvent{
		RequestID:  deliverycontext.GetRequestIDFromContext(ctx),
		CallbackID: callback.ID.String(),
		Provider:   state.Provider.String(),
	}
	if err := srv.publisher.PublishOAuthCallback(ctx, event); err != nil {
		srv.log(ctx).Error("Failed to publish oauth callback",
			slog.String(constants.AttrCallbackID, event.CallbackID),
			slog.Any("error", err),
		)
		// The state accepts a single callback, so the flow cannot be resumed.
		if markErr := srv.callbacks.MarkProcessed(ctx, callback.ID, "publish failed: "+err.Error()); markErr != nil {
			srv.log(ctx).Error("Failed to mark unpublished callback", slog.Any("error", markErr))
		}

		return nil, domainerrors.ErrEventPublishFailed
	}

	srv.log(ctx).Info("OAuth callback recorded",
		slog.String(constants.AttrCallbackID, event.CallbackID),
		slog.String(constants.AttrProvider, event.Provider),
	)

	return &usecase.ReceiveCallbackOutput{CallbackID: callback.ID, State: input.State}, nil
}

// PollCompletion answers one poll of the completion contract: a missing or expired state
// fails at once, a completed state succeeds, and an incomplete state stays pending until
// the caller's attempt reaches the cap.
func (srv *oauthService) PollCompletion(ctx context.Context, input *usecase.PollCompletionInput) (*usecase.PollCompletionOutput, error) {
	if input.State == "" {
		return nil, domainerrors.ErrValidationFailed.WithDetails("state is required")
	}
	if input.Attempt < 0 || input.Attempt > constants.CompletionPollMaxAttempts {
		return nil, domainerrors.ErrValidationFailed.WithDetails("attempt is out of range")
	}

	out := &usecase.PollCompletionOutput{
		Attempt:     input.Attempt,
		MaxAttempts: constants.CompletionPollMaxAttempts,
	}

	state, err := srv.states.FindByState(ctx, input.State)
	if errors.Is(err, repository.ErrOAuthStateNotFound) {
		out.Status = usecase.PollStatusFailed
		out.Reason = reasonStateNotFound

		return out, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find oauth state")
	}

	// Expiry wins over completion: past its TTL a completed state no longer yields a session.
	switch {
	case state.IsExpired(srv.now()):
		out.Status = usecase.PollStatusFailed
		out.Reason = reasonStateExpired
	case state.IsComplete():
		out.Status = usecase.PollStatusComplete
		out.AccountID = *state.AccountID
		out.SessionID = *state.SessionID
	case input.Attempt >= constants.CompletionPollMaxAttempts:
		out.Status = usecase.PollStatusFailed
		out.Reason = reasonPollTimeout
	default:
		out.Status = usecase.PollStatusPending
		out.NextAttempt = input.Attempt + 1
		out.RetryAfter = constants.CompletionPollInterval
	}

	return out, nil
}
