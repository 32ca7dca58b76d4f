package impl

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"time"

	deliverycontext "authflow/internal/delivery/context"
	"authflow/internal/domain/constants"
	"authflow/internal/domain/entity"
	domainerrors "authflow/internal/domain/errors"
	"authflow/internal/domain/repository"
	"authflow/internal/domain/service"
	"authflow/internal/errors"

	"go.uber.org/fx"
)

// OTPEngine issues and checks the one-time codes stored on accounts.
type OTPEngine struct {
	accounts repository.AccountRepository
	throttle service.OTPThrottle
	metrics  service.AuthMetrics
	generate func() (string, error)
	now      func() time.Time
	logger   *slog.Logger
}

// OTPEngineParams holds dependencies for OTPEngine, injected by Fx.
type OTPEngineParams struct {
	fx.In

	Accounts repository.AccountRepository
	Throttle service.OTPThrottle
	Metrics  service.AuthMetrics
	Logger   *slog.Logger
}

// NewOTPEngine is the constructor for OTPEngine.
func NewOTPEngine(params OTPEngineParams) *OTPEngine {
	return &OTPEngine{
		accounts: params.Accounts,
		throttle: params.Throttle,
		metrics:  params.Metrics,
		generate: generateOTP,
		now:      time.Now,
		logger:   params.Logger,
	}
}

func (e *OTPEngine) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, e.logger)
}

// IssuedOTP is a freshly stored code.
type IssuedOTP struct {
	Code      string
	Type      entity.OTPType
	ExpiresAt time.Time
}

// Issue stores a new code on account, replacing any pending one and resetting the attempt
// counter. Issuances per email are throttled, which bounds how often a resend can reset
// the counter.
func (e *OTPEngine) Issue(ctx context.Context, account *entity.Account, otpType entity.OTPType) (*IssuedOTP, error) {
	allowed, err := e.throttle.Allow(ctx, account.Email)
	if err != nil {
		return nil, errors.Wrap(err, "failed to check otp throttle")
	}
	if !allowed {
		e.log(ctx).Warn("OTP issuance throttled", slog.String("account_id", account.ID.String()))

		return nil, domainerrors.ErrOTPThrottled
	}

	code, err := e.generate()
	if err != nil {
		return nil, err
	}
	expiresAt := e.now().Add(constants.OTPTTL)

	if err := e.accounts.SetOTP(ctx, account.ID, repository.OTPUpdate{
		Code:      code,
		ExpiresAt: expiresAt,
		Type:      otpType,
	}); err != nil {
		return nil, errors.Wrap(err, "failed to store otp")
	}

	account.EmailOTP = code
	account.EmailOTPExpiresAt = &expiresAt
	account.EmailOTPType = otpType
	account.EmailOTPAttempts = 0

	e.metrics.OTPIssued(string(otpType))
	e.log(ctx).Debug("OTP issued",
		slog.String("account_id", account.ID.String()),
		slog.String("type", string(otpType)),
	)

	return &IssuedOTP{Code: code, Type: otpType, ExpiresAt: expiresAt}, nil
}

// Check validates candidate against the code pending on account. The checks run in a fixed
// order: attempt limit, expiry, then the code itself. A mismatch is counted against the
// issuance with a conditional write, so guesses racing on stale copies of the account cannot
// exceed the limit. Check does not consume the code; see Consume.
func (e *OTPEngine) Check(ctx context.Context, account *entity.Account, candidate string) error {
	if err := e.pendingError(account); err != nil {
		return err
	}

	if subtle.ConstantTimeCompare([]byte(account.EmailOTP), []byte(candidate)) == 1 {
		return nil
	}

	attempts, err := e.accounts.RecordOTPAttempt(ctx, account.ID, constants.OTPMaxAttempts)
	if errors.Is(err, repository.ErrOTPAttemptsExhausted) {
		account.EmailOTPAttempts = constants.OTPMaxAttempts

		return domainerrors.ErrOTPTooManyAttempts
	}
	if err != nil {
		return errors.Wrap(err, "failed to record otp attempt")
	}
	account.EmailOTPAttempts = attempts
	e.log(ctx).Info("OTP mismatch",
		slog.String("account_id", account.ID.String()),
		slog.Int("attempts", attempts),
	)

	return domainerrors.ErrOTPInvalid
}

// pendingError reports why the code on account cannot be redeemed, or nil when it can.
func (e *OTPEngine) pendingError(account *entity.Account) error {
	switch {
	case account.EmailOTPAttempts >= constants.OTPMaxAttempts:
		return domainerrors.ErrOTPTooManyAttempts
	case account.EmailOTP == "" || account.EmailOTPExpiresAt == nil:
		return domainerrors.ErrOTPInvalid
	case e.now().After(*account.EmailOTPExpiresAt):
		return domainerrors.ErrOTPExpired
	}

	return nil
}

// Consume redeems code, clearing it and marking the email verified. The write only lands while
// code is still the live pending code, so a code checked by two requests is redeemed by one.
// accounts may be bound to a transaction.
func (e *OTPEngine) Consume(ctx context.Context, accounts repository.AccountRepository, account *entity.Account, code string) error {
	err := accounts.RedeemOTP(ctx, account.ID, code, constants.OTPMaxAttempts, e.now())
	if errors.Is(err, repository.ErrOTPNotPending) {
		current, findErr := accounts.FindByID(ctx, account.ID)
		if findErr != nil {
			return errors.Wrap(findErr, "failed to reload account")
		}
		if pendingErr := e.pendingError(current); pendingErr != nil {
			return pendingErr
		}

		return domainerrors.ErrOTPInvalid
	}
	if err != nil {
		return errors.Wrap(err, "failed to redeem otp")
	}
	account.ClearOTP()
	account.EmailVerified = true

	return nil
}
