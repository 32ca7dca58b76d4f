package impl

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"authflow/config"
	"authflow/internal/domain/entity"
	"authflow/internal/domain/repository"
	"authflow/internal/domain/service"
	"authflow/internal/infra/auth"
	"authflow/internal/infra/persistence/memory"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newDiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestConfig() *config.Config {
	cfg := &config.Config{}
	cfg.SecretKey.Session = "test-session-secret"
	cfg.Session = config.SessionConfig{Issuer: "authflow-test", TTL: 720 * time.Hour}
	cfg.PasswordStrength = &config.PasswordStrengthConfig{MinLength: 8, MaxLength: 72}
	cfg.OAuth.ExchangeTimeout = 5 * time.Second

	return cfg
}

// testClock is a settable time source shared by the services under test. It starts slightly
// in the past so that real-time JWT validation accepts tokens minted with it.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Now().Add(-time.Minute).Truncate(time.Second)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingSender keeps every message and optionally fails.
type recordingSender struct {
	mu   sync.Mutex
	sent []service.OTPMessage
	err  error
}

func (s *recordingSender) SendOTP(_ context.Context, msg *service.OTPMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, *msg)

	return nil
}

func (s *recordingSender) messages() []service.OTPMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]service.OTPMessage(nil), s.sent...)
}

func (s *recordingSender) last(t *testing.T) service.OTPMessage {
	t.Helper()
	msgs := s.messages()
	require.NotEmpty(t, msgs, "no otp email was sent")

	return msgs[len(msgs)-1]
}

type allowAll struct{}

func (allowAll) Allow(context.Context, string) (bool, error) { return true, nil }

type denyAll struct{}

func (denyAll) Allow(context.Context, string) (bool, error) { return false, nil }

type noopMetrics struct{}

func (noopMetrics) OAuthAuthorizationStarted(string)     {}
func (noopMetrics) OAuthExchangeFinished(string, string) {}
func (noopMetrics) EmailAuthAction(string, string)       {}
func (noopMetrics) OTPIssued(string)                     {}
func (noopMetrics) OTPEmailFailed()                      {}
func (noopMetrics) SessionIssued(string)                 {}

// recordingPublisher captures published callback events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []*service.OAuthCallbackEvent
	err    error
}

func (p *recordingPublisher) PublishOAuthCallback(_ context.Context, event *service.OAuthCallbackEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)

	return nil
}

func (p *recordingPublisher) Close() error { return nil }

// mockProvider is a testify mock of service.OAuthProvider.
type mockProvider struct {
	mock.Mock
	name entity.Provider
}

func (m *mockProvider) Name() entity.Provider { return m.name }

func (m *mockProvider) AuthCodeURL(state, verifier, redirectURI string) string {
	args := m.Called(state, verifier, redirectURI)

	return args.String(0)
}

func (m *mockProvider) Exchange(ctx context.Context, code, verifier, redirectURI string) (*entity.ProviderTokens, error) {
	args := m.Called(ctx, code, verifier, redirectURI)
	tokens, _ := args.Get(0).(*entity.ProviderTokens)

	return tokens, args.Error(1)
}

func (m *mockProvider) FetchProfile(ctx context.Context, tokens *entity.ProviderTokens) (*entity.ProviderProfile, error) {
	args := m.Called(ctx, tokens)
	profile, _ := args.Get(0).(*entity.ProviderProfile)

	return profile, args.Error(1)
}

type staticRegistry map[entity.Provider]service.OAuthProvider

func (r staticRegistry) Get(name entity.Provider) (service.OAuthProvider, bool) {
	p, ok := r[name]

	return p, ok
}

func (r staticRegistry) Enabled() []entity.Provider {
	out := make([]entity.Provider, 0, len(r))
	for name := range r {
		out = append(out, name)
	}

	return out
}

// testEnv wires the services over an in-memory store.
type testEnv struct {
	cfg         *config.Config
	clock       *testClock
	repos       repository.RepositoryFactory
	txManager   repository.TransactionManager
	tokens      service.SessionTokenService
	sender      *recordingSender
	publisher   *recordingPublisher
	provisioner *AccountProvisioner
	otp         *OTPEngine
	issuer      *SessionIssuer
	logger      *slog.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := newTestConfig()
	store := memory.NewStore()
	repos := memory.NewRepositoryFactory(store)
	clock := newTestClock()
	logger := newDiscardLogger()

	tokens, err := auth.NewJWTSessionTokenService(cfg)
	require.NoError(t, err)

	provisioner := NewAccountProvisioner(AccountProvisionerParams{
		Accounts: repos.AccountRepo(),
		Profiles: repos.ProfileRepo(),
		Logger:   logger,
	})

	otp := NewOTPEngine(OTPEngineParams{
		Accounts: repos.AccountRepo(),
		Throttle: allowAll{},
		Metrics:  noopMetrics{},
		Logger:   logger,
	})
	otp.now = clock.Now

	issuer := NewSessionIssuer(SessionIssuerParams{Tokens: tokens, Metrics: noopMetrics{}})
	issuer.now = clock.Now

	return &testEnv{
		cfg:         cfg,
		clock:       clock,
		repos:       repos,
		txManager:   memory.NewTransactionManager(store),
		tokens:      tokens,
		sender:      &recordingSender{},
		publisher:   &recordingPublisher{},
		provisioner: provisioner,
		otp:         otp,
		issuer:      issuer,
		logger:      logger,
	}
}

func (e *testEnv) emailAuth() *emailAuthService {
	return NewEmailAuthService(EmailAuthServiceParams{
		Config:      e.cfg,
		TxManager:   e.txManager,
		Accounts:    e.repos.AccountRepo(),
		Sessions:    e.repos.SessionRepo(),
		Hasher:      auth.NewBcryptHasherWithCost(bcrypt.MinCost),
		Sender:      e.sender,
		Provisioner: e.provisioner,
		OTP:         e.otp,
		Issuer:      e.issuer,
		Metrics:     noopMetrics{},
		Logger:      e.logger,
	}).(*emailAuthService)
}

func (e *testEnv) oauth(registry service.OAuthProviderRegistry) *oauthService {
	srv := NewOAuthService(OAuthServiceParams{
		Config:    e.cfg,
		States:    e.repos.OAuthStateRepo(),
		Callbacks: e.repos.OAuthCallbackRepo(),
		Providers: registry,
		Publisher: e.publisher,
		Metrics:   noopMetrics{},
		Logger:    e.logger,
	}).(*oauthService)
	srv.now = e.clock.Now

	return srv
}

func (e *testEnv) exchange(registry service.OAuthProviderRegistry) *oauthExchangeService {
	srv := NewOAuthExchangeService(OAuthExchangeServiceParams{
		Config:      e.cfg,
		TxManager:   e.txManager,
		Accounts:    e.repos.AccountRepo(),
		States:      e.repos.OAuthStateRepo(),
		Callbacks:   e.repos.OAuthCallbackRepo(),
		Socials:     e.repos.SocialAccountRepo(),
		Providers:   registry,
		Provisioner: e.provisioner,
		Issuer:      e.issuer,
		Metrics:     noopMetrics{},
		Logger:      e.logger,
	}).(*oauthExchangeService)
	srv.now = e.clock.Now

	return srv
}

func (e *testEnv) sessions() *sessionService {
	srv := NewSessionService(SessionServiceParams{
		Accounts: e.repos.AccountRepo(),
		Profiles: e.repos.ProfileRepo(),
		Sessions: e.repos.SessionRepo(),
		Tokens:   e.tokens,
		Issuer:   e.issuer,
		Logger:   e.logger,
	}).(*sessionService)
	srv.now = e.clock.Now

	return srv
}

// createAccount inserts an account and, when handle is non-empty, assigns it directly.
func (e *testEnv) createAccount(t *testing.T, email, handle string) *entity.Account {
	t.Helper()
	ctx := context.Background()

	account := &entity.Account{Email: email}
	require.NoError(t, e.repos.AccountRepo().Create(ctx, account))
	if handle != "" {
		require.NoError(t, e.repos.AccountRepo().AssignHandle(ctx, account.ID, handle))
		account.Handle = handle
	}

	return account
}
