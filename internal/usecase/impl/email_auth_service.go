package impl

import (
	"context"
	"log/slog"
	"net/mail"
	"strings"

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
)

// Inline messages. Authentication failures share one message per credential type so that
// responses do not reveal whether an account exists.
const (
	msgInvalidEmail       = "Invalid email address"
	msgPasswordRequired   = "Password is required"
	msgCodeRequired       = "Code is required"
	msgInvalidCredentials = "Invalid email or password"
	msgInvalidCode        = "Invalid code"
	msgSignupFailed       = "Failed to create account"
	msgSendFailed         = "Failed to send code"
	msgVerifyFailed       = "Verification failed"
	msgSigninFailed       = "Sign in failed"
)

const (
	defaultPasswordMinLength = 8
	defaultPasswordMaxLength = 72
)

// emailAuthService implements the EmailAuthUsecase interface.
type emailAuthService struct {
	txManager   repository.TransactionManager
	accounts    repository.AccountRepository
	sessions    repository.SessionRepository
	hasher      service.PasswordHasher
	sender      service.EmailSender
	provisioner *AccountProvisioner
	otp         *OTPEngine
	issuer      *SessionIssuer
	metrics     service.AuthMetrics
	minPassword int
	maxPassword int
	logger      *slog.Logger
}

// EmailAuthServiceParams holds dependencies for EmailAuthService, injected by Fx.
type EmailAuthServiceParams struct {
	fx.In

	Config      *config.Config
	TxManager   repository.TransactionManager
	Accounts    repository.AccountRepository
	Sessions    repository.SessionRepository
	Hasher      service.PasswordHasher
	Sender      service.EmailSender
	Provisioner *AccountProvisioner
	OTP         *OTPEngine
	Issuer      *SessionIssuer
	Metrics     service.AuthMetrics
	Logger      *slog.Logger
}

// NewEmailAuthService is the constructor for emailAuthService.
func NewEmailAuthService(params EmailAuthServiceParams) usecase.EmailAuthUsecase {
	minPassword, maxPassword := defaultPasswordMinLength, defaultPasswordMaxLength
	if ps := params.Config.PasswordStrength; ps != nil {
		if ps.MinLength > 0 {
			minPassword = ps.MinLength
		}
		if ps.MaxLength > 0 {
			maxPassword = ps.MaxLength
		}
	}

	return &emailAuthService{
		txManager:   params.TxManager,
		accounts:    params.Accounts,
		sessions:    params.Sessions,
		hasher:      params.Hasher,
		sender:      params.Sender,
		provisioner: params.Provisioner,
		otp:         params.OTP,
		issuer:      params.Issuer,
		metrics:     params.Metrics,
		minPassword: minPassword,
		maxPassword: maxPassword,
		logger:      params.Logger,
	}
}

func (srv *emailAuthService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// Dispatch routes cmd to its handler.
func (srv *emailAuthService) Dispatch(ctx context.Context, cmd usecase.EmailAuthCommand) (*usecase.EmailAuthResult, error) {
	var (
		result *usecase.EmailAuthResult
		err    error
	)

	switch c := cmd.(type) {
	case usecase.CheckEmailCommand:
		result, err = srv.checkEmail(ctx, c)
	case usecase.SignupCommand:
		result, err = srv.signup(ctx, c.Email, c.Password, true)
	case usecase.SignupOTPCommand:
		result, err = srv.signup(ctx, c.Email, "", false)
	case usecase.SigninCommand:
		result, err = srv.signin(ctx, c)
	case usecase.SendOTPCommand:
		result, err = srv.sendOTP(ctx, c)
	case usecase.VerifyOTPCommand:
		result, err = srv.verifyOTP(ctx, c)
	default:
		return nil, errors.Errorf("unhandled email auth command %T", cmd)
	}
	if err != nil {
		srv.metrics.EmailAuthAction(string(cmd.Action()), "error")
		srv.log(ctx).Error("Email auth action failed",
			slog.String("action", string(cmd.Action())),
			slog.Any("error", err),
		)

		return nil, err
	}

	result.Action = cmd.Action()
	outcome := outcomeSuccess
	if !result.Success {
		outcome = outcomeFailure
	}
	srv.metrics.EmailAuthAction(string(cmd.Action()), outcome)

	return result, nil
}

func failed(msg string) *usecase.EmailAuthResult {
	return &usecase.EmailAuthResult{Success: false, Error: msg}
}

// checkEmail discloses whether an account exists. It never writes.
func (srv *emailAuthService) checkEmail(ctx context.Context, cmd usecase.CheckEmailCommand) (*usecase.EmailAuthResult, error) {
	email, ok := parseEmail(cmd.Email)
	if !ok {
		return failed(msgInvalidEmail), nil
	}

	account, err := srv.accounts.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrAccountNotFound) {
		return &usecase.EmailAuthResult{Success: true, Exists: false}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find account")
	}

	return &usecase.EmailAuthResult{
		Success:       true,
		Exists:        true,
		HasPassword:   account.HasPassword(),
		AccountID:     account.ID,
		EmailVerified: account.EmailVerified,
	}, nil
}

// signup creates an unverified account with a handle and sends a sign-up code. The
// password is optional only for the passwordless variant.
func (srv *emailAuthService) signup(ctx context.Context, rawEmail, password string, withPassword bool) (*usecase.EmailAuthResult, error) {
	email, ok := parseEmail(rawEmail)
	if !ok {
		return failed(msgInvalidEmail), nil
	}

	account := &entity.Account{Email: email}
	if withPassword {
		if msg := srv.validatePassword(password); msg != "" {
			return failed(msg), nil
		}
		hash, err := srv.hasher.Hash(password)
		if err != nil {
			return nil, errors.Wrap(err, "failed to hash password")
		}
		account.PasswordHash = hash
	}

	if err := srv.provisioner.CreateAccount(ctx, account, entity.EmailLocalPart(email)); err != nil {
		switch {
		case errors.Is(err, domainerrors.ErrAccountAlreadyExists):
			return failed(domainerrors.ErrAccountAlreadyExists.Message()), nil
		case errors.Is(err, domainerrors.ErrHandleProvisioningFailed):
			return failed(domainerrors.ErrHandleProvisioningFailed.Message()), nil
		}

		return nil, err
	}

	result := &usecase.EmailAuthResult{
		Success:     true,
		AccountID:   account.ID,
		Handle:      account.Handle,
		RequiresOTP: true,
	}

	sent, err := srv.issueAndSend(ctx, account, entity.OTPTypeSignUp)
	if err != nil {
		if errors.Is(err, domainerrors.ErrOTPThrottled) {
			// The account exists; the caller can ask for a code later.
			return result, nil
		}

		return nil, err
	}
	result.OTPSent = sent

	return result, nil
}

// issueAndSend stores a code and emails it. A delivery failure is logged and counted but
// does not fail the action: the code is stored and the caller can resend.
func (srv *emailAuthService) issueAndSend(ctx context.Context, account *entity.Account, otpType entity.OTPType) (bool, error) {
	issued, err := srv.otp.Issue(ctx, account, otpType)
	if err != nil {
		return false, err
	}

	err = srv.sender.SendOTP(ctx, &service.OTPMessage{
		To:        account.Email,
		Code:      issued.Code,
		Type:      otpType,
		ExpiresIn: constants.OTPTTL,
	})
	if err != nil {
		srv.metrics.OTPEmailFailed()
		srv.log(ctx).Error("Failed to send otp email",
			slog.String("account_id", account.ID.String()),
			slog.String("type", string(otpType)),
			slog.Any("error", err),
		)

		return false, nil
	}

	return true, nil
}

// signin checks the password. It reports the account and handle only; a session is opened
// when the caller asks for one with CreateSession.
func (srv *emailAuthService) signin(ctx context.Context, cmd usecase.SigninCommand) (*usecase.EmailAuthResult, error) {
	email, ok := parseEmail(cmd.Email)
	if !ok {
		return failed(msgInvalidEmail), nil
	}
	if cmd.Password == "" {
		return failed(msgPasswordRequired), nil
	}

	account, err := srv.accounts.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrAccountNotFound) {
		// Burn a hash so unknown emails take as long as wrong passwords.
		_, _ = srv.hasher.Hash(cmd.Password)

		return failed(msgInvalidCredentials), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find account")
	}
	if !srv.hasher.Check(cmd.Password, account.PasswordHash) {
		srv.log(ctx).Info("Password check failed", slog.String("account_id", account.ID.String()))

		return failed(msgInvalidCredentials), nil
	}

	result := &usecase.EmailAuthResult{
		Success:       true,
		AccountID:     account.ID,
		Handle:        account.Handle,
		HasPassword:   true,
		EmailVerified: account.EmailVerified,
	}
	if !cmd.CreateSession {
		return result, nil
	}

	if err := srv.provisioner.EnsureHandle(ctx, account, entity.EmailLocalPart(email)); err != nil {
		srv.log(ctx).Error("Failed to provision handle at sign in", slog.Any("error", err))

		return failed(msgSigninFailed), nil
	}

	session, err := srv.issuer.Create(ctx, srv.sessions, account.ID, cmd.Device, methodPassword)
	if err != nil {
		return nil, err
	}
	result.Handle = account.Handle
	result.SessionID = session.ID

	return result, nil
}

// sendOTP issues a sign-in code. Unknown emails get the same answer as known ones.
func (srv *emailAuthService) sendOTP(ctx context.Context, cmd usecase.SendOTPCommand) (*usecase.EmailAuthResult, error) {
	email, ok := parseEmail(cmd.Email)
	if !ok {
		return failed(msgInvalidEmail), nil
	}

	account, err := srv.accounts.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrAccountNotFound) {
		srv.log(ctx).Info("Code requested for unknown email")

		return &usecase.EmailAuthResult{Success: true, OTPSent: true}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find account")
	}

	sent, err := srv.issueAndSend(ctx, account, entity.OTPTypeSignIn)
	if err != nil {
		if errors.Is(err, domainerrors.ErrOTPThrottled) {
			return failed(domainerrors.ErrOTPThrottled.Message()), nil
		}

		return nil, err
	}
	if !sent {
		return failed(msgSendFailed), nil
	}

	return &usecase.EmailAuthResult{Success: true, AccountID: account.ID, OTPSent: true}, nil
}

// verifyOTP redeems a code. On success the email is marked verified and a session is
// opened in the same transaction.
func (srv *emailAuthService) verifyOTP(ctx context.Context, cmd usecase.VerifyOTPCommand) (*usecase.EmailAuthResult, error) {
	email, ok := parseEmail(cmd.Email)
	if !ok {
		return failed(msgInvalidEmail), nil
	}
	code := strings.TrimSpace(cmd.OTP)
	if code == "" {
		return failed(msgCodeRequired), nil
	}

	account, err := srv.accounts.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrAccountNotFound) {
		return failed(msgInvalidCode), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find account")
	}

	if err := srv.otp.Check(ctx, account, code); err != nil {
		if appErr, ok := errors.AsType[domainerrors.AppError](err); ok && appErr.Kind() == domainerrors.KindAuth {
			return failed(appErr.Message()), nil
		}

		return nil, err
	}

	if err := srv.provisioner.EnsureHandle(ctx, account, entity.EmailLocalPart(email)); err != nil {
		srv.log(ctx).Error("Failed to provision handle at verification", slog.Any("error", err))

		return failed(msgVerifyFailed), nil
	}

	var session *entity.Session
	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		if err := srv.otp.Consume(ctx, repoFactory.AccountRepo(), account, code); err != nil {
			return err
		}

		var err error
		session, err = srv.issuer.Create(ctx, repoFactory.SessionRepo(), account.ID, cmd.Device, methodOTP)

		return err
	})
	if appErr, ok := errors.AsType[domainerrors.AppError](err); ok && appErr.Kind() == domainerrors.KindAuth {
		return failed(appErr.Message()), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to complete otp verification")
	}

	return &usecase.EmailAuthResult{
		Success:       true,
		AccountID:     account.ID,
		SessionID:     session.ID,
		Handle:        account.Handle,
		HasPassword:   account.HasPassword(),
		EmailVerified: true,
	}, nil
}

func (srv *emailAuthService) validatePassword(password string) string {
	switch {
	case password == "":
		return msgPasswordRequired
	case len(password) < srv.minPassword || len(password) > srv.maxPassword:
		return domainerrors.ErrPasswordStrength.Message()
	}

	return ""
}

// parseEmail trims, lowercases and checks that s is a bare address.
func parseEmail(s string) (string, bool) {
	email := normalizeEmail(s)
	if email == "" {
		return "", false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", false
	}

	return email, true
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
