package usecase

import (
	"context"

	"authflow/internal/domain/entity"

	"github.com/google/uuid"
)

// EmailAuthAction names a variant of EmailAuthCommand on the wire.
type EmailAuthAction string

const (
	ActionCheckEmail EmailAuthAction = "check-email"
	ActionSignup     EmailAuthAction = "signup"
	ActionSignupOTP  EmailAuthAction = "signup-otp"
	ActionSignin     EmailAuthAction = "signin"
	ActionSendOTP    EmailAuthAction = "send-otp"
	ActionVerifyOTP  EmailAuthAction = "verify-otp"
)

// EmailAuthCommand is one email authentication request. The set of variants is closed.
type EmailAuthCommand interface {
	Action() EmailAuthAction
	emailAuthCommand()
}

// CheckEmailCommand reports whether an account exists for Email.
type CheckEmailCommand struct {
	Email string
}

// SignupCommand creates a password account and sends a verification code.
type SignupCommand struct {
	Email    string
	Password string
}

// SignupOTPCommand creates a passwordless account and sends a verification code.
type SignupOTPCommand struct {
	Email string
}

// SigninCommand checks a password. No session is opened unless CreateSession is set, in
// which case the caller receives its SessionID as with verify-otp.
type SigninCommand struct {
	Email         string
	Password      string
	CreateSession bool
	Device        entity.DeviceInfo
}

// SendOTPCommand sends a sign-in code.
type SendOTPCommand struct {
	Email string
}

// VerifyOTPCommand redeems a code and opens a session.
type VerifyOTPCommand struct {
	Email  string
	OTP    string
	Device entity.DeviceInfo
}

func (CheckEmailCommand) Action() EmailAuthAction { return ActionCheckEmail }
func (SignupCommand) Action() EmailAuthAction     { return ActionSignup }
func (SignupOTPCommand) Action() EmailAuthAction  { return ActionSignupOTP }
func (SigninCommand) Action() EmailAuthAction     { return ActionSignin }
func (SendOTPCommand) Action() EmailAuthAction    { return ActionSendOTP }
func (VerifyOTPCommand) Action() EmailAuthAction  { return ActionVerifyOTP }

func (CheckEmailCommand) emailAuthCommand() {}
func (SignupCommand) emailAuthCommand()     {}
func (SignupOTPCommand) emailAuthCommand()  {}
func (SigninCommand) emailAuthCommand()     {}
func (SendOTPCommand) emailAuthCommand()    {}
func (VerifyOTPCommand) emailAuthCommand()  {}

// EmailAuthResult is the inline outcome of a command. Failures are reported through
// Success and Error; zero IDs mean "not set".
type EmailAuthResult struct {
	Action        EmailAuthAction
	Success       bool
	Error         string
	Exists        bool
	HasPassword   bool
	AccountID     uuid.UUID
	SessionID     uuid.UUID
	Handle        string
	RequiresOTP   bool
	OTPSent       bool
	EmailVerified bool
}

// EmailAuthUsecase dispatches email authentication commands.
type EmailAuthUsecase interface {
	// Dispatch executes cmd. The error return is reserved for infrastructure failures;
	// authentication and validation failures are reported inline in the result.
	Dispatch(ctx context.Context, cmd EmailAuthCommand) (*EmailAuthResult, error)
}
