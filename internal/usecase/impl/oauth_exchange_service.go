package impl

import (
	"context"
	"log/slog"
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

	"github.com/google/uuid"
	"go.uber.org/fx"
)

const defaultExchangeTimeout = 30 * time.Second

// Exchange outcomes recorded on metrics.
const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

// oauthExchangeService implements the OAuthExchangeUsecase interface.
type oauthExchangeService struct {
	txManager   repository.TransactionManager
	accounts    repository.AccountRepository
	states      repository.OAuthStateRepository
	callbacks   repository.OAuthCallbackRepository
	socials     repository.SocialAccountRepository
	providers   service.OAuthProviderRegistry
	provisioner *AccountProvisioner
	issuer      *SessionIssuer
	metrics     service.AuthMetrics
	timeout     time.Duration
	now         func() time.Time
	logger      *slog.Logger
}

// OAuthExchangeServiceParams holds dependencies for OAuthExchangeService, injected by Fx.
type OAuthExchangeServiceParams struct {
	fx.In

	Config      *config.Config
	TxManager   repository.TransactionManager
	Accounts    repository.AccountRepository
	States      repository.OAuthStateRepository
	Callbacks   repository.OAuthCallbackRepository
	Socials     repository.SocialAccountRepository
	Providers   service.OAuthProviderRegistry
	Provisioner *AccountProvisioner
	Issuer      *SessionIssuer
	Metrics     service.AuthMetrics
	Logger      *slog.Logger
}

// NewOAuthExchangeService is the constructor for oauthExchangeService.
func NewOAuthExchangeService(params OAuthExchangeServiceParams) usecase.OAuthExchangeUsecase {
	timeout := params.Config.OAuth.ExchangeTimeout
	if timeout <= 0 {
		timeout = defaultExchangeTimeout
	}

	return &oauthExchangeService{
		txManager:   params.TxManager,
		accounts:    params.Accounts,
		states:      params.States,
		callbacks:   params.Callbacks,
		socials:     params.Socials,
		providers:   params.Providers,
		provisioner: params.Provisioner,
		issuer:      params.Issuer,
		metrics:     params.Metrics,
		timeout:     timeout,
		now:         time.Now,
		logger:      params.Logger,
	}
}

func (srv *oauthExchangeService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// ProcessCallback claims the callback and runs the exchange once. Whatever the exchange
// does, the callback ends processed; a failure is stored as its error and never retried.
func (srv *oauthExchangeService) ProcessCallback(ctx context.Context, callbackID uuid.UUID) error {
	logger := srv.log(ctx).With(slog.String(constants.AttrCallbackID, callbackID.String()))

	callback, err := srv.callbacks.FindByID(ctx, callbackID)
	if errors.Is(err, repository.ErrCallbackNotFound) {
		logger.Warn("Callback not found, dropping event")

		return nil
	}
	if err != nil {
		return errors.Wrap(err, "failed to load oauth callback")
	}
	if callback.Processed {
		logger.Info("Callback already processed, skipping")

		return nil
	}

	claimed, err := srv.callbacks.Claim(ctx, callbackID)
	if err != nil {
		return errors.Wrap(err, "failed to claim oauth callback")
	}
	if !claimed {
		logger.Info("Callback claimed by another consumer, skipping")

		return nil
	}

	exchangeCtx, cancel := context.WithTimeout(ctx, srv.timeout)
	defer cancel()

	started := srv.now()
	result, flowErr := srv.exchange(exchangeCtx, callback)

	errMsg := ""
	outcome := outcomeSuccess
	if flowErr != nil {
		errMsg = flowErr.Error()
		outcome = outcomeFailure
		logger.Error("OAuth exchange failed",
			slog.String(constants.AttrProvider, callback.Provider.String()),
			slog.Any("error", flowErr),
		)
	} else {
		logger.Info("OAuth exchange completed",
			slog.String(constants.AttrProvider, callback.Provider.String()),
			slog.String("account_id", result.accountID.String()),
			slog.String("session_id", result.sessionID.String()),
			slog.Duration("elapsed", srv.now().Sub(started)),
		)
	}
	srv.metrics.OAuthExchangeFinished(callback.Provider.String(), outcome)

	// The exchange context may have expired; the terminal write must still land.
	if err := srv.callbacks.MarkProcessed(context.WithoutCancel(ctx), callbackID, errMsg); err != nil {
		logger.Error("Failed to mark callback processed", slog.Any("error", err))
	}

	return nil
}

type exchangeResult struct {
	accountID uuid.UUID
	sessionID uuid.UUID
}

func (srv *oauthExchangeService) exchange(ctx context.Context, callback *entity.OAuthCallback) (*exchangeResult, error) {
	// 1. Correlate with the authorization request.
	state, err := srv.states.FindByState(ctx, callback.State)
	if err != nil {
		if errors.Is(err, repository.ErrOAuthStateNotFound) {
			return nil, domainerrors.ErrOAuthStateNotFound
		}

		return nil, errors.Wrap(err, "failed to find oauth state")
	}
	if state.IsExpired(srv.now()) {
		return nil, domainerrors.ErrOAuthStateExpired
	}
	if state.IsComplete() {
		return nil, domainerrors.ErrOAuthStateConsumed
	}
	if state.Provider != callback.Provider {
		return nil, domainerrors.ErrUnsupportedProvider.WithDetails("callback provider does not match state")
	}

	provider, ok := srv.providers.Get(state.Provider)
	if !ok {
		return nil, domainerrors.ErrUnsupportedProvider.WithDetails(state.Provider.String() + " is not configured")
	}

	// 2. Trade the code for tokens with the PKCE verifier.
	tokens, err := provider.Exchange(ctx, callback.Code, state.CodeVerifier, state.RedirectURI)
	if err != nil {
		return nil, domainerrors.ErrTokenExchangeFailed.WithDetails(err.Error())
	}

	// 3. Fetch the provider profile.
	profile, err := provider.FetchProfile(ctx, tokens)
	if err != nil {
		return nil, domainerrors.ErrProfileFetchFailed.WithDetails(err.Error())
	}

	// 4. Resolve the account.
	account, social, err := srv.resolveAccount(ctx, state.Provider, profile)
	if err != nil {
		return nil, err
	}

	// 5. Give the account a handle if it has none.
	basis := profile.Name
	if entity.NormalizeHandleBasis(basis) == "" {
		basis = entity.EmailLocalPart(account.Email)
	}
	if err := srv.provisioner.EnsureHandle(ctx, account, basis); err != nil {
		return nil, err
	}

	// 6. Store the current tokens and raw profile.
	if err := srv.upsertSocialAccount(ctx, account, social, state.Provider, tokens, profile); err != nil {
		return nil, err
	}

	// 7 and 8. Open the session and publish completion on the state together, so a state
	// that lost the race never leaves an orphan session behind.
	var session *entity.Session
	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		var err error
		session, err = srv.issuer.Create(ctx, repoFactory.SessionRepo(), account.ID, entity.DeviceInfo{}, methodOAuth)
		if err != nil {
			return err
		}

		if err := repoFactory.OAuthStateRepo().Complete(ctx, state.ID, account.ID, session.ID); err != nil {
			if errors.Is(err, repository.ErrOAuthStateCompleted) {
				return domainerrors.ErrOAuthStateConsumed
			}

			return errors.Wrap(err, "failed to complete oauth state")
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &exchangeResult{accountID: account.ID, sessionID: session.ID}, nil
}

// resolveAccount follows an existing provider link, then an account with the same email,
// and creates a verified account otherwise. The returned social account is nil when the
// provider identity is not linked yet.
func (srv *oauthExchangeService) resolveAccount(
	ctx context.Context,
	provider entity.Provider,
	profile *entity.ProviderProfile,
) (*entity.Account, *entity.SocialAccount, error) {
	social, err := srv.socials.FindByProvider(ctx, provider, profile.ProviderAccountID)
	switch {
	case err == nil:
		account, err := srv.accounts.FindByID(ctx, social.AccountID)
		if err != nil {
			return nil, nil, errors.Wrap(err, "failed to load linked account")
		}

		return account, social, nil
	case !errors.Is(err, repository.ErrSocialAccountNotFound):
		return nil, nil, errors.Wrap(err, "failed to find social account")
	}

	email := normalizeEmail(profile.Email)
	if email == "" {
		return nil, nil, domainerrors.ErrProfileFetchFailed.WithDetails("provider returned no email address")
	}

	account, err := srv.accounts.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return srv.linkExistingAccount(ctx, account, profile)
	case !errors.Is(err, repository.ErrAccountNotFound):
		return nil, nil, errors.Wrap(err, "failed to find account by email")
	}

	account = &entity.Account{
		Email:         email,
		EmailVerified: true,
		Name:          profile.Name,
		Image:         profile.Image,
	}
	if err := srv.accounts.Create(ctx, account); err != nil {
		if !errors.Is(err, repository.ErrEmailTaken) {
			return nil, nil, errors.Wrap(err, "failed to create account")
		}
		// Another flow created the account after our lookup.
		existing, findErr := srv.accounts.FindByEmail(ctx, email)
		if findErr != nil {
			return nil, nil, errors.Wrap(findErr, "failed to reload account")
		}

		return srv.linkExistingAccount(ctx, existing, profile)
	}
	srv.log(ctx).Info("Account created from provider profile",
		slog.String("account_id", account.ID.String()),
		slog.String(constants.AttrProvider, provider.String()),
	)

	return account, nil, nil
}

// linkExistingAccount fills missing display fields from the profile and marks the email
// verified, since the provider vouched for it.
func (srv *oauthExchangeService) linkExistingAccount(
	ctx context.Context,
	account *entity.Account,
	profile *entity.ProviderProfile,
) (*entity.Account, *entity.SocialAccount, error) {
	changed := !account.EmailVerified
	account.EmailVerified = true
	if account.Name == "" && profile.Name != "" {
		account.Name = profile.Name
		changed = true
	}
	if account.Image == "" && profile.Image != "" {
		account.Image = profile.Image
		changed = true
	}

	if changed {
		if err := srv.accounts.UpdateProfile(ctx, account); err != nil {
			return nil, nil, errors.Wrap(err, "failed to update linked account")
		}
	}

	return account, nil, nil
}

func (srv *oauthExchangeService) upsertSocialAccount(
	ctx context.Context,
	account *entity.Account,
	social *entity.SocialAccount,
	provider entity.Provider,
	tokens *entity.ProviderTokens,
	profile *entity.ProviderProfile,
) error {
	if social != nil {
		social.ApplyTokens(tokens)
		social.ProviderData = profile.Raw
		if err := srv.socials.UpdateTokens(ctx, social); err != nil {
			return errors.Wrap(err, "failed to update social account")
		}

		return nil
	}

	social = &entity.SocialAccount{
		AccountID:         account.ID,
		Provider:          provider,
		ProviderAccountID: profile.ProviderAccountID,
		ProviderData:      profile.Raw,
	}
	social.ApplyTokens(tokens)

	if err := srv.socials.Create(ctx, social); err != nil {
		if errors.Is(err, repository.ErrSocialAccountExists) {
			return domainerrors.ErrSocialAccountLinked
		}

		return errors.Wrap(err, "failed to create social account")
	}

	return nil
}
