package errors

import (
	"net/http"

	"authflow/internal/errors"
)

// Kind classifies an application error independently of its transport mapping.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindAuth         Kind = "auth"
	KindUpstream     Kind = "upstream"
	KindProvisioning Kind = "provisioning"
	KindInternal     Kind = "internal"
)

// AppError defines the interface for application-specific errors
type AppError interface {
	error
	HTTPCode() int     // HTTP status code
	ErrorCode() string // Business error code
	Message() string   // User-friendly error message
	Details() string   // Detailed error information (optional)
	Kind() Kind        // Taxonomy bucket
}

// BaseError is a basic error structure that implements the AppError interface
type BaseError struct {
	kind      Kind
	httpCode  int
	errorCode string
	message   string
	details   string
}

// NewBaseError creates a new base error
func NewBaseError(kind Kind, httpCode int, errorCode, message, details string) *BaseError {
	return &BaseError{
		kind:      kind,
		httpCode:  httpCode,
		errorCode: errorCode,
		message:   message,
		details:   details,
	}
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.details != "" {
		return e.message + ": " + e.details
	}

	return e.message
}

// WrapMessage wraps the error with additional context message
func (e *BaseError) WrapMessage(message string) error {
	return errors.Wrap(e, message)
}

// HTTPCode returns the HTTP status code
func (e *BaseError) HTTPCode() int {
	return e.httpCode
}

// ErrorCode returns the business error code
func (e *BaseError) ErrorCode() string {
	return e.errorCode
}

// Message returns the user-friendly error message
func (e *BaseError) Message() string {
	return e.message
}

// Details returns detailed error information
func (e *BaseError) Details() string {
	return e.details
}

// Kind returns the taxonomy bucket of the error.
func (e *BaseError) Kind() Kind {
	return e.kind
}

// WithDetails adds detailed error information
func (e *BaseError) WithDetails(details string) *BaseError {
	return &BaseError{
		kind:      e.kind,
		httpCode:  e.httpCode,
		errorCode: e.errorCode,
		message:   e.message,
		details:   details,
	}
}

// Is matches errors by business code so that WithDetails copies still satisfy errors.Is.
func (e *BaseError) Is(target error) bool {
	t, ok := target.(*BaseError)
	if !ok {
		return false
	}

	return t.errorCode == e.errorCode
}

// Predefined error types
var (
	// Validation errors
	ErrValidationFailed = NewBaseError(KindValidation, http.StatusBadRequest,
		"VALIDATION_FAILED", "Input validation failed", "")

	ErrUnsupportedProvider = NewBaseError(KindValidation, http.StatusBadRequest,
		"UNSUPPORTED_PROVIDER", "Unsupported OAuth provider", "")

	ErrInvalidRedirectURI = NewBaseError(KindValidation, http.StatusBadRequest,
		"INVALID_REDIRECT_URI", "Redirect URI must be an absolute URL without query parameters", "")

	ErrMissingCallbackParams = NewBaseError(KindValidation, http.StatusBadRequest,
		"MISSING_CALLBACK_PARAMS", "Missing code or state", "")

	ErrPasswordStrength = NewBaseError(KindValidation, http.StatusBadRequest,
		"PASSWORD_STRENGTH", "Password does not meet strength requirements", "")

	// Not found errors
	ErrOAuthStateNotFound = NewBaseError(KindNotFound, http.StatusNotFound,
		"OAUTH_STATE_NOT_FOUND", "OAuth state not found or expired", "")

	ErrOAuthStateExpired = NewBaseError(KindNotFound, http.StatusNotFound,
		"OAUTH_STATE_EXPIRED", "OAuth state expired", "")

	ErrAccountNotFound = NewBaseError(KindNotFound, http.StatusNotFound,
		"ACCOUNT_NOT_FOUND", "Account not found", "")

	ErrSessionNotFound = NewBaseError(KindNotFound, http.StatusNotFound,
		"SESSION_NOT_FOUND", "Session not found", "")

	// Conflict errors
	ErrAccountAlreadyExists = NewBaseError(KindConflict, http.StatusConflict,
		"ACCOUNT_ALREADY_EXISTS", "An account with this email already exists", "")

	ErrOAuthStateConsumed = NewBaseError(KindConflict, http.StatusConflict,
		"OAUTH_STATE_CONSUMED", "OAuth state has already been used", "")

	ErrSocialAccountLinked = NewBaseError(KindConflict, http.StatusConflict,
		"SOCIAL_ACCOUNT_LINKED", "Provider account is already linked", "")

	// Authentication errors
	ErrInvalidCredentials = NewBaseError(KindAuth, http.StatusUnauthorized,
		"INVALID_CREDENTIALS", "Invalid email or password", "")

	ErrOTPTooManyAttempts = NewBaseError(KindAuth, http.StatusUnauthorized,
		"OTP_TOO_MANY_ATTEMPTS", "Too many attempts", "")

	ErrOTPExpired = NewBaseError(KindAuth, http.StatusUnauthorized,
		"OTP_EXPIRED", "Code expired", "")

	ErrOTPInvalid = NewBaseError(KindAuth, http.StatusUnauthorized,
		"OTP_INVALID", "Invalid code", "")

	ErrOTPThrottled = NewBaseError(KindAuth, http.StatusTooManyRequests,
		"OTP_THROTTLED", "Too many codes requested, try again later", "")

	ErrUnauthenticated = NewBaseError(KindAuth, http.StatusUnauthorized,
		"UNAUTHENTICATED", "Authentication required", "")

	ErrSessionExpired = NewBaseError(KindAuth, http.StatusUnauthorized,
		"SESSION_EXPIRED", "Session expired", "")

	ErrOAuthProviderDenied = NewBaseError(KindAuth, http.StatusUnauthorized,
		"OAUTH_PROVIDER_DENIED", "Authorization was denied by the provider", "")

	// Upstream errors
	ErrTokenExchangeFailed = NewBaseError(KindUpstream, http.StatusBadGateway,
		"TOKEN_EXCHANGE_FAILED", "Failed to exchange authorization code", "")

	ErrProfileFetchFailed = NewBaseError(KindUpstream, http.StatusBadGateway,
		"PROFILE_FETCH_FAILED", "Failed to fetch provider profile", "")

	ErrEventPublishFailed = NewBaseError(KindUpstream, http.StatusServiceUnavailable,
		"EVENT_PUBLISH_FAILED", "Failed to enqueue callback processing", "")

	// Provisioning errors
	ErrHandleProvisioningFailed = NewBaseError(KindProvisioning, http.StatusInternalServerError,
		"HANDLE_PROVISIONING_FAILED", "Failed to create account after multiple attempts", "")

	// General errors
	ErrInternalError = NewBaseError(KindInternal, http.StatusInternalServerError,
		"INTERNAL_ERROR", "Internal server error", "")
)

// KindOf returns the taxonomy bucket of err, or KindInternal when err carries no AppError.
func KindOf(err error) Kind {
	if appErr, ok := errors.AsType[AppError](err); ok {
		return appErr.Kind()
	}

	return KindInternal
}

// DatabaseExecuteError represents a database execution error, implementing the AppError interface
type DatabaseExecuteError struct {
	err     error
	details string
}

// NewDatabaseExecuteError creates a database-related error
func NewDatabaseExecuteError(err error, details string) AppError {
	return &DatabaseExecuteError{
		err:     err,
		details: details,
	}
}

// Error implements the error interface
func (e *DatabaseExecuteError) Error() string {
	return errors.Wrap(e.err, "database execution failed: "+e.details).Error()
}

// Unwrap exposes the driver error.
func (e *DatabaseExecuteError) Unwrap() error {
	return e.err
}

// HTTPCode returns the HTTP status code
func (e *DatabaseExecuteError) HTTPCode() int {
	return http.StatusInternalServerError
}

// ErrorCode returns the business error code
func (e *DatabaseExecuteError) ErrorCode() string {
	return "DATABASE_EXECUTE_FAILED"
}

// Message returns the user-friendly error message
func (e *DatabaseExecuteError) Message() string {
	return "Database execution failed"
}

// Details returns detailed error information
func (e *DatabaseExecuteError) Details() string {
	return e.details
}

// Kind returns KindInternal.
func (e *DatabaseExecuteError) Kind() Kind {
	return KindInternal
}
