package impl

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"authflow/internal/domain/constants"
	"authflow/internal/domain/entity"
	"authflow/internal/usecase"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dispatch(t *testing.T, srv *emailAuthService, cmd usecase.EmailAuthCommand) *usecase.EmailAuthResult {
	t.Helper()

	result, err := srv.Dispatch(context.Background(), cmd)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, cmd.Action(), result.Action)

	return result
}

func TestEmailAuth_CheckEmail(t *testing.T) {
	env := newTestEnv(t)
	srv := env.emailAuth()

	t.Run("unknown email is not created", func(t *testing.T) {
		result := dispatch(t, srv, usecase.CheckEmailCommand{Email: "nobody@bar.com"})
		assert.True(t, result.Success)
		assert.False(t, result.Exists)

		_, err := env.repos.AccountRepo().FindByEmail(context.Background(), "nobody@bar.com")
		assert.Error(t, err)
		assert.Empty(t, env.sender.messages())
	})

	t.Run("existing email reports password", func(t *testing.T) {
		signup := dispatch(t, srv, usecase.SignupCommand{Email: "Has@Bar.com", Password: "correct-horse"})
		require.True(t, signup.Success)

		result := dispatch(t, srv, usecase.CheckEmailCommand{Email: "  has@bar.COM "})
		assert.True(t, result.Success)
		assert.True(t, result.Exists)
		assert.True(t, result.HasPassword)
		assert.False(t, result.EmailVerified)
		assert.Equal(t, signup.AccountID, result.AccountID)
	})

	t.Run("malformed email", func(t *testing.T) {
		result := dispatch(t, srv, usecase.CheckEmailCommand{Email: "not-an-email"})
		assert.False(t, result.Success)
		assert.Equal(t, msgInvalidEmail, result.Error)
	})
}

func TestEmailAuth_SignupOTPThenVerify(t *testing.T) {
	env := newTestEnv(t)
	srv := env.emailAuth()
	ctx := context.Background()

	signup := dispatch(t, srv, usecase.SignupOTPCommand{Email: "foo@bar.com"})
	require.True(t, signup.Success, signup.Error)
	assert.True(t, signup.RequiresOTP)
	assert.True(t, signup.OTPSent)
	assert.Equal(t, "foo", signup.Handle)

	account, err := env.repos.AccountRepo().FindByEmail(ctx, "foo@bar.com")
	require.NoError(t, err)
	assert.False(t, account.EmailVerified)
	assert.False(t, account.HasPassword())
	assert.Equal(t, "foo", account.Handle)

	profile, err := env.repos.ProfileRepo().FindByAccountID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "foo", profile.Username)
	assert.False(t, profile.OnboardingCompleted)

	msg := env.sender.last(t)
	assert.Equal(t, "foo@bar.com", msg.To)
	assert.Equal(t, entity.OTPTypeSignUp, msg.Type)
	assert.Equal(t, constants.OTPTTL, msg.ExpiresIn)
	assert.Len(t, msg.Code, constants.OTPLength)

	wrong := "000000"
	if msg.Code == wrong {
		wrong = "111111"
	}
	bad := dispatch(t, srv, usecase.VerifyOTPCommand{Email: "foo@bar.com", OTP: wrong})
	assert.False(t, bad.Success)
	assert.Equal(t, "Invalid code", bad.Error)

	account, err = env.repos.AccountRepo().FindByEmail(ctx, "foo@bar.com")
	require.NoError(t, err)
	assert.Equal(t, 1, account.EmailOTPAttempts)

	ok := dispatch(t, srv, usecase.VerifyOTPCommand{
		Email:  "foo@bar.com",
		OTP:    " " + msg.Code + " ",
		Device: entity.DeviceInfo{Browser: "Firefox", OS: "Linux"},
	})
	require.True(t, ok.Success, ok.Error)
	assert.True(t, ok.EmailVerified)
	assert.Equal(t, "foo", ok.Handle)
	assert.NotEqual(t, uuid.Nil, ok.SessionID)

	session, err := env.repos.SessionRepo().FindByID(ctx, ok.SessionID)
	require.NoError(t, err)
	assert.Equal(t, account.ID, session.AccountID)
	assert.Equal(t, "Firefox", session.Device.Browser)
	assert.Equal(t, entity.UnknownDeviceValue, session.Device.OSVersion)
	assert.Equal(t, "web", session.Device.DeviceType)

	account, err = env.repos.AccountRepo().FindByEmail(ctx, "foo@bar.com")
	require.NoError(t, err)
	assert.True(t, account.EmailVerified)
	assert.Empty(t, account.EmailOTP)
	assert.Zero(t, account.EmailOTPAttempts)

	replay := dispatch(t, srv, usecase.VerifyOTPCommand{Email: "foo@bar.com", OTP: msg.Code})
	assert.False(t, replay.Success, "a redeemed code cannot be reused")
}

func TestEmailAuth_VerifyOTPLockout(t *testing.T) {
	env := newTestEnv(t)
	srv := env.emailAuth()
	env.otp.generate = func() (string, error) { return "424242", nil }

	require.True(t, dispatch(t, srv, usecase.SignupOTPCommand{Email: "lock@bar.com"}).Success)

	for range constants.OTPMaxAttempts {
		result := dispatch(t, srv, usecase.VerifyOTPCommand{Email: "lock@bar.com", OTP: "999999"})
		assert.Equal(t, "Invalid code", result.Error)
	}

	result := dispatch(t, srv, usecase.VerifyOTPCommand{Email: "lock@bar.com", OTP: "424242"})
	assert.False(t, result.Success)
	assert.Equal(t, "Too many attempts", result.Error)

	resend := dispatch(t, srv, usecase.SendOTPCommand{Email: "lock@bar.com"})
	require.True(t, resend.Success)

	result = dispatch(t, srv, usecase.VerifyOTPCommand{Email: "lock@bar.com", OTP: "424242"})
	assert.True(t, result.Success, result.Error)
}

func TestEmailAuth_ConcurrentVerifyOTPOpensOneSession(t *testing.T) {
	env := newTestEnv(t)
	srv := env.emailAuth()
	env.otp.generate = func() (string, error) { return "737373", nil }

	require.True(t, dispatch(t, srv, usecase.SignupOTPCommand{Email: "race@bar.com"}).Success)

	const n = 6
	results := make([]*usecase.EmailAuthResult, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = srv.Dispatch(context.Background(), usecase.VerifyOTPCommand{Email: "race@bar.com", OTP: "737373"})
		}()
	}
	wg.Wait()

	succeeded := 0
	for i := range n {
		require.NoError(t, errs[i])
		if results[i].Success {
			succeeded++
			assert.NotEqual(t, uuid.Nil, results[i].SessionID)

			continue
		}
		assert.Equal(t, "Invalid code", results[i].Error)
	}
	assert.Equal(t, 1, succeeded, "a code opens exactly one session")
}

func TestEmailAuth_VerifyOTPExpired(t *testing.T) {
	env := newTestEnv(t)
	srv := env.emailAuth()

	require.True(t, dispatch(t, srv, usecase.SignupOTPCommand{Email: "late@bar.com"}).Success)
	code := env.sender.last(t).Code

	env.clock.Advance(constants.OTPTTL + 1)
	result := dispatch(t, srv, usecase.VerifyOTPCommand{Email: "late@bar.com", OTP: code})
	assert.False(t, result.Success)
	assert.Equal(t, "Code expired", result.Error)
}

func TestEmailAuth_ConcurrentSignupsShareLocalPart(t *testing.T) {
	env := newTestEnv(t)
	srv := env.emailAuth()

	const n = 6
	results := make([]*usecase.EmailAuthResult, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := srv.Dispatch(context.Background(), usecase.SignupOTPCommand{
				Email: fmt.Sprintf("foo@domain%d.com", i),
			})
			assert.NoError(t, err)
			results[i] = res
		}()
	}
	wg.Wait()

	handles := make(map[string]bool, n)
	for _, res := range results {
		require.NotNil(t, res)
		require.True(t, res.Success, res.Error)
		assert.True(t, strings.HasPrefix(res.Handle, "foo"))
		assert.False(t, handles[res.Handle], "duplicate handle %q", res.Handle)
		handles[res.Handle] = true
	}
	assert.True(t, handles["foo"])
}

func TestEmailAuth_SignupValidation(t *testing.T) {
	env := newTestEnv(t)
	srv := env.emailAuth()

	tests := []struct {
		name string
		cmd  usecase.EmailAuthCommand
		want string
	}{
		{name: "invalid email", cmd: usecase.SignupCommand{Email: "foo@", Password: "long-enough"}, want: msgInvalidEmail},
		{name: "display name form", cmd: usecase.SignupCommand{Email: "Foo <foo@bar.com>", Password: "long-enough"}, want: msgInvalidEmail},
		{name: "missing password", cmd: usecase.SignupCommand{Email: "foo@bar.com"}, want: msgPasswordRequired},
		{name: "short password", cmd: usecase.SignupCommand{Email: "foo@bar.com", Password: "short"}, want: "Password does not meet strength requirements"},
		{name: "long password", cmd: usecase.SignupCommand{Email: "foo@bar.com", Password: strings.Repeat("p", 73)}, want: "Password does not meet strength requirements"},
		{name: "otp signup invalid email", cmd: usecase.SignupOTPCommand{Email: ""}, want: msgInvalidEmail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := dispatch(t, srv, tt.cmd)
			assert.False(t, result.Success)
			assert.Equal(t, tt.want, result.Error)
		})
	}

	_, err := env.repos.AccountRepo().FindByEmail(context.Background(), "foo@bar.com")
	assert.Error(t, err, "no account is created by a rejected signup")
}

func TestEmailAuth_DuplicateSignup(t *testing.T) {
	env := newTestEnv(t)
	srv := env.emailAuth()

	require.True(t, dispatch(t, srv, usecase.SignupCommand{Email: "dup@bar.com", Password: "password-1"}).Success)

	again := dispatch(t, srv, usecase.SignupOTPCommand{Email: "DUP@bar.com"})
	assert.False(t, again.Success)
	assert.Equal(t, "An account with this email already exists", again.Error)
}

func TestEmailAuth_Signin(t *testing.T) {
	env := newTestEnv(t)
	srv := env.emailAuth()

	signup := dispatch(t, srv, usecase.SignupCommand{Email: "me@bar.com", Password: "hunter2hunter2"})
	require.True(t, signup.Success)

	t.Run("wrong password", func(t *testing.T) {
		result := dispatch(t, srv, usecase.SigninCommand{Email: "me@bar.com", Password: "nope-nope"})
		assert.False(t, result.Success)
		assert.Equal(t, msgInvalidCredentials, result.Error)
	})

	t.Run("unknown email gets the same message", func(t *testing.T) {
		result := dispatch(t, srv, usecase.SigninCommand{Email: "ghost@bar.com", Password: "hunter2hunter2"})
		assert.False(t, result.Success)
		assert.Equal(t, msgInvalidCredentials, result.Error)
	})

	t.Run("passwordless account", func(t *testing.T) {
		require.True(t, dispatch(t, srv, usecase.SignupOTPCommand{Email: "otp@bar.com"}).Success)

		result := dispatch(t, srv, usecase.SigninCommand{Email: "otp@bar.com", Password: "anything-at-all"})
		assert.False(t, result.Success)
		assert.Equal(t, msgInvalidCredentials, result.Error)
	})

	t.Run("correct password reports the account without a session", func(t *testing.T) {
		result := dispatch(t, srv, usecase.SigninCommand{Email: "ME@bar.com", Password: "hunter2hunter2"})
		require.True(t, result.Success, result.Error)
		assert.Equal(t, signup.AccountID, result.AccountID)
		assert.Equal(t, "me", result.Handle)
		assert.Equal(t, uuid.Nil, result.SessionID)
	})

	t.Run("session on request", func(t *testing.T) {
		result := dispatch(t, srv, usecase.SigninCommand{Email: "me@bar.com", Password: "hunter2hunter2", CreateSession: true})
		require.True(t, result.Success, result.Error)
		assert.Equal(t, "me", result.Handle)

		session, err := env.repos.SessionRepo().FindByID(context.Background(), result.SessionID)
		require.NoError(t, err)
		assert.Equal(t, signup.AccountID, session.AccountID)
	})
}

func TestEmailAuth_SigninAssignsMissingHandle(t *testing.T) {
	env := newTestEnv(t)
	srv := env.emailAuth()
	ctx := context.Background()

	hash, err := srv.hasher.Hash("legacy-password")
	require.NoError(t, err)
	legacy := &entity.Account{Email: "legacy@bar.com", PasswordHash: hash}
	require.NoError(t, env.repos.AccountRepo().Create(ctx, legacy))

	plain := dispatch(t, srv, usecase.SigninCommand{Email: "legacy@bar.com", Password: "legacy-password"})
	require.True(t, plain.Success, plain.Error)
	assert.Empty(t, plain.Handle, "a plain sign in does not write")

	result := dispatch(t, srv, usecase.SigninCommand{Email: "legacy@bar.com", Password: "legacy-password", CreateSession: true})
	require.True(t, result.Success, result.Error)
	assert.Equal(t, "legacy", result.Handle)

	profile, err := env.repos.ProfileRepo().FindByAccountID(ctx, legacy.ID)
	require.NoError(t, err)
	assert.Equal(t, "legacy", profile.Username)
}

func TestEmailAuth_SendOTP(t *testing.T) {
	t.Run("unknown email looks like success", func(t *testing.T) {
		env := newTestEnv(t)
		result := dispatch(t, env.emailAuth(), usecase.SendOTPCommand{Email: "ghost@bar.com"})
		assert.True(t, result.Success)
		assert.True(t, result.OTPSent)
		assert.Empty(t, env.sender.messages())
	})

	t.Run("known email gets a sign-in code", func(t *testing.T) {
		env := newTestEnv(t)
		srv := env.emailAuth()
		require.True(t, dispatch(t, srv, usecase.SignupOTPCommand{Email: "known@bar.com"}).Success)

		result := dispatch(t, srv, usecase.SendOTPCommand{Email: "known@bar.com"})
		assert.True(t, result.Success)
		assert.True(t, result.OTPSent)
		assert.Equal(t, entity.OTPTypeSignIn, env.sender.last(t).Type)
	})

	t.Run("delivery failure", func(t *testing.T) {
		env := newTestEnv(t)
		srv := env.emailAuth()
		require.True(t, dispatch(t, srv, usecase.SignupOTPCommand{Email: "known@bar.com"}).Success)

		env.sender.err = errors.New("smtp down")
		result := dispatch(t, srv, usecase.SendOTPCommand{Email: "known@bar.com"})
		assert.False(t, result.Success)
		assert.Equal(t, msgSendFailed, result.Error)
	})

	t.Run("throttled", func(t *testing.T) {
		env := newTestEnv(t)
		srv := env.emailAuth()
		require.True(t, dispatch(t, srv, usecase.SignupOTPCommand{Email: "known@bar.com"}).Success)

		env.otp.throttle = denyAll{}
		result := dispatch(t, srv, usecase.SendOTPCommand{Email: "known@bar.com"})
		assert.False(t, result.Success)
		assert.Equal(t, "Too many codes requested, try again later", result.Error)
	})
}

func TestEmailAuth_SignupSurvivesDeliveryFailure(t *testing.T) {
	env := newTestEnv(t)
	env.sender.err = errors.New("smtp down")

	result := dispatch(t, env.emailAuth(), usecase.SignupOTPCommand{Email: "foo@bar.com"})
	assert.True(t, result.Success)
	assert.False(t, result.OTPSent)
	assert.True(t, result.RequiresOTP)

	account, err := env.repos.AccountRepo().FindByEmail(context.Background(), "foo@bar.com")
	require.NoError(t, err)
	assert.NotEmpty(t, account.EmailOTP, "the code is stored even though the email failed")
}

func TestEmailAuth_VerifyOTPRequiresCode(t *testing.T) {
	env := newTestEnv(t)

	result := dispatch(t, env.emailAuth(), usecase.VerifyOTPCommand{Email: "foo@bar.com", OTP: "  "})
	assert.False(t, result.Success)
	assert.Equal(t, msgCodeRequired, result.Error)
}
