package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"authflow/config"
	"authflow/internal/delivery/api/validator"
	"authflow/internal/domain/constants"
	"authflow/internal/domain/entity"
	domainerrors "authflow/internal/domain/errors"
	"authflow/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockOAuthUsecase struct{ mock.Mock }

func (m *mockOAuthUsecase) StartAuthorization(ctx context.Context, in *usecase.StartAuthorizationInput) (*usecase.StartAuthorizationOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*usecase.StartAuthorizationOutput)

	return out, args.Error(1)
}

func (m *mockOAuthUsecase) ReceiveCallback(ctx context.Context, in *usecase.ReceiveCallbackInput) (*usecase.ReceiveCallbackOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*usecase.ReceiveCallbackOutput)

	return out, args.Error(1)
}

func (m *mockOAuthUsecase) PollCompletion(ctx context.Context, in *usecase.PollCompletionInput) (*usecase.PollCompletionOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*usecase.PollCompletionOutput)

	return out, args.Error(1)
}

type mockSessionUsecase struct{ mock.Mock }

func (m *mockSessionUsecase) Finalize(ctx context.Context, in *usecase.FinalizeSessionInput) (*usecase.SessionToken, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*usecase.SessionToken)

	return out, args.Error(1)
}

func (m *mockSessionUsecase) Authenticate(ctx context.Context, token string) (*usecase.AuthenticatedSession, error) {
	args := m.Called(ctx, token)
	out, _ := args.Get(0).(*usecase.AuthenticatedSession)

	return out, args.Error(1)
}

func (m *mockSessionUsecase) Current(ctx context.Context, id uuid.UUID) (*usecase.CurrentSession, error) {
	args := m.Called(ctx, id)
	out, _ := args.Get(0).(*usecase.CurrentSession)

	return out, args.Error(1)
}

func (m *mockSessionUsecase) Logout(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

type mockEmailAuthUsecase struct{ mock.Mock }

func (m *mockEmailAuthUsecase) Dispatch(ctx context.Context, cmd usecase.EmailAuthCommand) (*usecase.EmailAuthResult, error) {
	args := m.Called(ctx, cmd)
	out, _ := args.Get(0).(*usecase.EmailAuthResult)

	return out, args.Error(1)
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Session.CookieName = "authflow_session"

	return cfg
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEcho() *echo.Echo {
	e := echo.New()
	e.Validator = validator.New()

	return e
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	return req
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details any    `json:"details"`
	} `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, data any) envelope {
	t.Helper()

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	if data != nil && env.Data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}

	return env
}

func TestOAuthHandler_Authorize(t *testing.T) {
	oauthUC := new(mockOAuthUsecase)
	h := NewOAuthHandler(OAuthHandlerParams{Config: testConfig(), OAuthUC: oauthUC, Sessions: new(mockSessionUsecase), Logger: discardLogger()})
	e := newTestEcho()

	expires := time.Date(2026, 1, 1, 0, 10, 0, 0, time.UTC)
	oauthUC.On("StartAuthorization", mock.Anything, &usecase.StartAuthorizationInput{
		Provider:    "google",
		RedirectURI: "https://app.example.com/cb",
	}).Return(&usecase.StartAuthorizationOutput{
		AuthorizationURL: "https://accounts.example.com/auth",
		State:            "st",
		ExpiresAt:        expires,
	}, nil)

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/auth/oauth/authorize", `{"provider":"google","redirect_uri":"https://app.example.com/cb"}`), rec)
	require.NoError(t, h.Authorize(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	var body AuthorizeResponse
	decode(t, rec, &body)
	assert.Equal(t, "https://accounts.example.com/auth", body.AuthorizationURL)
	assert.Equal(t, "st", body.State)
	assert.True(t, expires.Equal(body.ExpiresAt))
}

func TestOAuthHandler_AuthorizeValidation(t *testing.T) {
	h := NewOAuthHandler(OAuthHandlerParams{Config: testConfig(), OAuthUC: new(mockOAuthUsecase), Sessions: new(mockSessionUsecase), Logger: discardLogger()})
	e := newTestEcho()

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/auth/oauth/authorize", `{"provider":"google"}`), rec)
	require.NoError(t, h.Authorize(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decode(t, rec, nil)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)
}

func TestOAuthHandler_Callback(t *testing.T) {
	callbackID := uuid.New()

	t.Run("redirects to the completion page", func(t *testing.T) {
		oauthUC := new(mockOAuthUsecase)
		cfg := testConfig()
		cfg.OAuth.CompletionRedirectURL = "https://app.example.com/auth/complete"
		h := NewOAuthHandler(OAuthHandlerParams{Config: cfg, OAuthUC: oauthUC, Sessions: new(mockSessionUsecase), Logger: discardLogger()})

		oauthUC.On("ReceiveCallback", mock.Anything, &usecase.ReceiveCallbackInput{Code: "c", State: "st"}).
			Return(&usecase.ReceiveCallbackOutput{CallbackID: callbackID, State: "st"}, nil)

		rec := httptest.NewRecorder()
		c := newTestEcho().NewContext(httptest.NewRequest(http.MethodGet, "/auth/oauth/callback?code=c&state=st", nil), rec)
		require.NoError(t, h.Callback(c))

		assert.Equal(t, http.StatusFound, rec.Code)
		location, err := url.Parse(rec.Header().Get(echo.HeaderLocation))
		require.NoError(t, err)
		assert.Equal(t, "app.example.com", location.Host)
		assert.Equal(t, "st", location.Query().Get("state"))
		assert.Equal(t, "0", location.Query().Get("attempt"))
	})

	t.Run("accepted without a completion page", func(t *testing.T) {
		oauthUC := new(mockOAuthUsecase)
		h := NewOAuthHandler(OAuthHandlerParams{Config: testConfig(), OAuthUC: oauthUC, Sessions: new(mockSessionUsecase), Logger: discardLogger()})

		oauthUC.On("ReceiveCallback", mock.Anything, mock.Anything).
			Return(&usecase.ReceiveCallbackOutput{CallbackID: callbackID, State: "st"}, nil)

		rec := httptest.NewRecorder()
		c := newTestEcho().NewContext(httptest.NewRequest(http.MethodGet, "/auth/oauth/callback?code=c&state=st", nil), rec)
		require.NoError(t, h.Callback(c))

		assert.Equal(t, http.StatusAccepted, rec.Code)
		var body CallbackAcceptedResponse
		decode(t, rec, &body)
		assert.Equal(t, VerifyPath+"?attempt=0&state=st", body.PollURL)
		assert.Equal(t, int64(2000), body.PollIntervalMs)
		assert.Equal(t, constants.CompletionPollMaxAttempts, body.MaxAttempts)
	})

	t.Run("provider error", func(t *testing.T) {
		oauthUC := new(mockOAuthUsecase)
		h := NewOAuthHandler(OAuthHandlerParams{Config: testConfig(), OAuthUC: oauthUC, Sessions: new(mockSessionUsecase), Logger: discardLogger()})

		oauthUC.On("ReceiveCallback", mock.Anything, &usecase.ReceiveCallbackInput{State: "st", Error: "access_denied"}).
			Return(nil, domainerrors.ErrOAuthProviderDenied.WithDetails("access_denied"))

		rec := httptest.NewRecorder()
		c := newTestEcho().NewContext(httptest.NewRequest(http.MethodGet, "/auth/oauth/callback?state=st&error=access_denied", nil), rec)
		require.NoError(t, h.Callback(c))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		env := decode(t, rec, nil)
		assert.Equal(t, "OAUTH_PROVIDER_DENIED", env.Error.Code)
		assert.Nil(t, env.Error.Details, "auth errors carry no details")
	})
}

func TestOAuthHandler_Verify(t *testing.T) {
	accountID, sessionID := uuid.New(), uuid.New()

	t.Run("pending", func(t *testing.T) {
		oauthUC := new(mockOAuthUsecase)
		sessions := new(mockSessionUsecase)
		h := NewOAuthHandler(OAuthHandlerParams{Config: testConfig(), OAuthUC: oauthUC, Sessions: sessions, Logger: discardLogger()})

		oauthUC.On("PollCompletion", mock.Anything, &usecase.PollCompletionInput{State: "st", Attempt: 3}).
			Return(&usecase.PollCompletionOutput{
				Status:      usecase.PollStatusPending,
				Attempt:     3,
				NextAttempt: 4,
				MaxAttempts: constants.CompletionPollMaxAttempts,
				RetryAfter:  constants.CompletionPollInterval,
			}, nil)

		rec := httptest.NewRecorder()
		c := newTestEcho().NewContext(httptest.NewRequest(http.MethodGet, "/auth/oauth/verify?state=st&attempt=3", nil), rec)
		require.NoError(t, h.Verify(c))

		var body VerifyResponse
		decode(t, rec, &body)
		assert.Equal(t, usecase.PollStatusPending, body.Status)
		assert.Equal(t, 4, body.NextAttempt)
		assert.Equal(t, int64(2000), body.RetryAfterMs)
		assert.Empty(t, rec.Result().Cookies())
		sessions.AssertNotCalled(t, "Finalize", mock.Anything, mock.Anything)
	})

	t.Run("complete sets the cookie", func(t *testing.T) {
		oauthUC := new(mockOAuthUsecase)
		sessions := new(mockSessionUsecase)
		h := NewOAuthHandler(OAuthHandlerParams{Config: testConfig(), OAuthUC: oauthUC, Sessions: sessions, Logger: discardLogger()})

		oauthUC.On("PollCompletion", mock.Anything, mock.Anything).
			Return(&usecase.PollCompletionOutput{
				Status:      usecase.PollStatusComplete,
				Attempt:     1,
				MaxAttempts: constants.CompletionPollMaxAttempts,
				AccountID:   accountID,
				SessionID:   sessionID,
			}, nil)
		sessions.On("Finalize", mock.Anything, &usecase.FinalizeSessionInput{SessionID: sessionID, AccountID: accountID}).
			Return(&usecase.SessionToken{Token: "jwt", SessionID: sessionID, AccountID: accountID}, nil)

		rec := httptest.NewRecorder()
		c := newTestEcho().NewContext(httptest.NewRequest(http.MethodGet, "/auth/oauth/verify?state=st&attempt=1", nil), rec)
		require.NoError(t, h.Verify(c))

		var body VerifyResponse
		decode(t, rec, &body)
		assert.Equal(t, usecase.PollStatusComplete, body.Status)
		assert.Equal(t, "jwt", body.Token)
		require.NotNil(t, body.SessionID)
		assert.Equal(t, sessionID, *body.SessionID)

		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, "authflow_session", cookies[0].Name)
		assert.Equal(t, "jwt", cookies[0].Value)
		assert.True(t, cookies[0].HttpOnly)
	})

	t.Run("non numeric attempt", func(t *testing.T) {
		h := NewOAuthHandler(OAuthHandlerParams{Config: testConfig(), OAuthUC: new(mockOAuthUsecase), Sessions: new(mockSessionUsecase), Logger: discardLogger()})

		rec := httptest.NewRecorder()
		c := newTestEcho().NewContext(httptest.NewRequest(http.MethodGet, "/auth/oauth/verify?state=st&attempt=x", nil), rec)
		require.NoError(t, h.Verify(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestEmailAuthHandler_Dispatch(t *testing.T) {
	accountID, sessionID := uuid.New(), uuid.New()

	tests := []struct {
		name    string
		body    string
		command usecase.EmailAuthCommand
		result  *usecase.EmailAuthResult
		check   func(t *testing.T, resp map[string]any)
	}{
		{
			name:    "check-email",
			body:    `{"action":"check-email","email":"foo@bar.com"}`,
			command: usecase.CheckEmailCommand{Email: "foo@bar.com"},
			result:  &usecase.EmailAuthResult{Action: usecase.ActionCheckEmail, Success: true, Exists: false},
			check: func(t *testing.T, resp map[string]any) {
				assert.Equal(t, false, resp["exists"])
				assert.Equal(t, false, resp["hasPassword"])
				assert.NotContains(t, resp, "accountId")
			},
		},
		{
			name:    "signup",
			body:    `{"action":"signup","email":"foo@bar.com","password":"secret-pass"}`,
			command: usecase.SignupCommand{Email: "foo@bar.com", Password: "secret-pass"},
			result:  &usecase.EmailAuthResult{Action: usecase.ActionSignup, Success: true, AccountID: accountID, Handle: "foo", RequiresOTP: true, OTPSent: true},
			check: func(t *testing.T, resp map[string]any) {
				assert.Equal(t, accountID.String(), resp["accountId"])
				assert.Equal(t, true, resp["requiresOTP"])
				assert.Equal(t, "foo", resp["handle"])
			},
		},
		{
			name:    "send-otp",
			body:    `{"action":"send-otp","email":"foo@bar.com"}`,
			command: usecase.SendOTPCommand{Email: "foo@bar.com"},
			result:  &usecase.EmailAuthResult{Action: usecase.ActionSendOTP, Success: true, OTPSent: true},
			check: func(t *testing.T, resp map[string]any) {
				assert.Equal(t, true, resp["otpSent"])
			},
		},
		{
			name:    "inline failure",
			body:    `{"action":"signup-otp","email":"nope"}`,
			command: usecase.SignupOTPCommand{Email: "nope"},
			result:  &usecase.EmailAuthResult{Action: usecase.ActionSignupOTP, Success: false, Error: "Invalid email address"},
			check: func(t *testing.T, resp map[string]any) {
				assert.Equal(t, false, resp["success"])
				assert.Equal(t, "Invalid email address", resp["error"])
			},
		},
		{
			name: "signin passes createSession",
			body: `{"action":"signin","email":"foo@bar.com","password":"secret-pass","createSession":true}`,
			command: usecase.SigninCommand{Email: "foo@bar.com", Password: "secret-pass", CreateSession: true, Device: entity.DeviceInfo{
				Browser:        "Firefox",
				BrowserVersion: "128.0",
				OS:             "Linux",
				DeviceType:     "web",
				UserAgent:      "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0",
				IPAddress:      "192.0.2.1",
			}},
			result: &usecase.EmailAuthResult{Action: usecase.ActionSignin, Success: true, AccountID: accountID, SessionID: sessionID, Handle: "foo"},
			check: func(t *testing.T, resp map[string]any) {
				assert.Equal(t, sessionID.String(), resp["sessionId"])
				assert.Equal(t, "foo", resp["handle"])
			},
		},
		{
			name: "verify-otp carries the device",
			body: `{"action":"verify-otp","email":"foo@bar.com","otp":"123456"}`,
			command: usecase.VerifyOTPCommand{Email: "foo@bar.com", OTP: "123456", Device: entity.DeviceInfo{
				Browser:        "Firefox",
				BrowserVersion: "128.0",
				OS:             "Linux",
				DeviceType:     "web",
				UserAgent:      "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0",
				IPAddress:      "192.0.2.1",
			}},
			result: &usecase.EmailAuthResult{Action: usecase.ActionVerifyOTP, Success: true, AccountID: accountID, SessionID: sessionID, EmailVerified: true},
			check: func(t *testing.T, resp map[string]any) {
				assert.Equal(t, sessionID.String(), resp["sessionId"])
				assert.Equal(t, true, resp["emailVerified"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := new(mockEmailAuthUsecase)
			uc.On("Dispatch", mock.Anything, tt.command).Return(tt.result, nil)
			h := NewEmailAuthHandler(EmailAuthHandlerParams{EmailAuthUC: uc, Logger: discardLogger()})

			req := jsonRequest(http.MethodPost, "/auth/email", tt.body)
			req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0")
			req.RemoteAddr = "192.0.2.1:1234"
			rec := httptest.NewRecorder()
			require.NoError(t, h.Dispatch(newTestEcho().NewContext(req, rec)))

			assert.Equal(t, http.StatusOK, rec.Code)
			var resp map[string]any
			decode(t, rec, &resp)
			tt.check(t, resp)
			uc.AssertExpectations(t)
		})
	}
}

func TestEmailAuthHandler_UnknownAction(t *testing.T) {
	uc := new(mockEmailAuthUsecase)
	h := NewEmailAuthHandler(EmailAuthHandlerParams{EmailAuthUC: uc, Logger: discardLogger()})

	rec := httptest.NewRecorder()
	c := newTestEcho().NewContext(jsonRequest(http.MethodPost, "/auth/email", `{"action":"reset","email":"foo@bar.com"}`), rec)
	require.NoError(t, h.Dispatch(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	uc.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
}

func TestSessionHandler_Finalize(t *testing.T) {
	sessions := new(mockSessionUsecase)
	h := NewSessionHandler(SessionHandlerParams{Config: testConfig(), Sessions: sessions, Logger: discardLogger()})
	accountID, sessionID := uuid.New(), uuid.New()
	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)

	sessions.On("Finalize", mock.Anything, &usecase.FinalizeSessionInput{SessionID: sessionID, AccountID: accountID}).
		Return(&usecase.SessionToken{Token: "jwt", SessionID: sessionID, AccountID: accountID, ExpiresAt: &expires}, nil)

	body := `{"session_id":"` + sessionID.String() + `","account_id":"` + accountID.String() + `"}`
	rec := httptest.NewRecorder()
	require.NoError(t, h.Finalize(newTestEcho().NewContext(jsonRequest(http.MethodPost, "/auth/session/finalize", body), rec)))

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp TokenResponse
	decode(t, rec, &resp)
	assert.Equal(t, "jwt", resp.Token)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "jwt", cookies[0].Value)

	t.Run("malformed ids", func(t *testing.T) {
		rec := httptest.NewRecorder()
		require.NoError(t, h.Finalize(newTestEcho().NewContext(jsonRequest(http.MethodPost, "/auth/session/finalize", `{"session_id":"x","account_id":"y"}`), rec)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown session", func(t *testing.T) {
		other := uuid.New()
		sessions.On("Finalize", mock.Anything, &usecase.FinalizeSessionInput{SessionID: other, AccountID: accountID}).
			Return(nil, domainerrors.ErrSessionNotFound)

		body := `{"session_id":"` + other.String() + `","account_id":"` + accountID.String() + `"}`
		rec := httptest.NewRecorder()
		require.NoError(t, h.Finalize(newTestEcho().NewContext(jsonRequest(http.MethodPost, "/auth/session/finalize", body), rec)))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestDeviceFromRequest(t *testing.T) {
	tests := []struct {
		name string
		ua   string
		want entity.DeviceInfo
	}{
		{
			name: "chrome on macos",
			ua:   "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
			want: entity.DeviceInfo{Browser: "Chrome", BrowserVersion: "126.0.0.0", OS: "macOS", OSVersion: "10.15.7", DeviceType: "web"},
		},
		{
			name: "safari on iphone",
			ua:   "Mozilla/5.0 (iPhone; CPU iPhone OS 17_5 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Mobile/15E148 Safari/604.1",
			want: entity.DeviceInfo{Browser: "Safari", BrowserVersion: "17.5", OS: "iOS", OSVersion: "17.5", DeviceType: "mobile"},
		},
		{
			name: "edge on windows",
			ua:   "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36 Edg/126.0.2592.87",
			want: entity.DeviceInfo{Browser: "Edge", BrowserVersion: "126.0.2592.87", OS: "Windows", OSVersion: "10.0", DeviceType: "web"},
		},
		{
			name: "chrome on android",
			ua:   "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Mobile Safari/537.36",
			want: entity.DeviceInfo{Browser: "Chrome", BrowserVersion: "126.0.0.0", OS: "Android", OSVersion: "14", DeviceType: "mobile"},
		},
		{
			name: "unknown client",
			ua:   "curl/8.5.0",
			want: entity.DeviceInfo{DeviceType: "web"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("User-Agent", tt.ua)
			req.RemoteAddr = "198.51.100.7:4000"
			c := echo.New().NewContext(req, httptest.NewRecorder())

			got := deviceFromRequest(c)
			tt.want.UserAgent = tt.ua
			tt.want.IPAddress = "198.51.100.7"
			assert.Equal(t, tt.want, got)
		})
	}
}
