package handler

import (
	"log/slog"
	"net/http"

	"authflow/internal/delivery/api/response"
	"authflow/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// EmailAuthHandlerParams holds dependencies for EmailAuthHandler, injected by Fx.
type EmailAuthHandlerParams struct {
	fx.In

	EmailAuthUC usecase.EmailAuthUsecase
	Logger      *slog.Logger
}

// EmailAuthHandler exposes the email auth dispatcher.
type EmailAuthHandler struct {
	emailAuthUC usecase.EmailAuthUsecase
	logger      *slog.Logger
}

// NewEmailAuthHandler is the constructor for EmailAuthHandler
func NewEmailAuthHandler(params EmailAuthHandlerParams) *EmailAuthHandler {
	return &EmailAuthHandler{
		emailAuthUC: params.EmailAuthUC,
		logger:      params.Logger,
	}
}

// EmailAuthRequest is the single request shape for every email auth action.
type EmailAuthRequest struct {
	Action   string `json:"action" validate:"required,oneof=check-email signup signup-otp signin send-otp verify-otp"`
	Email    string `json:"email" validate:"required"`
	Password string `json:"password,omitempty"`
	OTP      string `json:"otp,omitempty"`
	// CreateSession asks signin to open a session as well.
	CreateSession bool `json:"createSession,omitempty"`
}

// EmailAuthResponse carries the outcome inline; failures of the action itself are not HTTP errors.
type EmailAuthResponse struct {
	Action        string     `json:"action"`
	Success       bool       `json:"success"`
	Error         string     `json:"error,omitempty"`
	Exists        *bool      `json:"exists,omitempty"`
	HasPassword   *bool      `json:"hasPassword,omitempty"`
	AccountID     *uuid.UUID `json:"accountId,omitempty"`
	SessionID     *uuid.UUID `json:"sessionId,omitempty"`
	Handle        string     `json:"handle,omitempty"`
	RequiresOTP   bool       `json:"requiresOTP,omitempty"`
	OTPSent       bool       `json:"otpSent,omitempty"`
	EmailVerified bool       `json:"emailVerified,omitempty"`
}

// Dispatch runs one email auth action.
func (h *EmailAuthHandler) Dispatch(c echo.Context) error {
	var req EmailAuthRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, "INVALID_INPUT", "Invalid email auth request")
	}
	if err := c.Validate(&req); err != nil {
		return response.HandleAppError(c, err)
	}

	result, err := h.emailAuthUC.Dispatch(c.Request().Context(), commandFor(c, &req))
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, toEmailAuthResponse(result))
}

func commandFor(c echo.Context, req *EmailAuthRequest) usecase.EmailAuthCommand {
	switch usecase.EmailAuthAction(req.Action) {
	case usecase.ActionSignup:
		return usecase.SignupCommand{Email: req.Email, Password: req.Password}
	case usecase.ActionSignupOTP:
		return usecase.SignupOTPCommand{Email: req.Email}
	case usecase.ActionSignin:
		return usecase.SigninCommand{
			Email:         req.Email,
			Password:      req.Password,
			CreateSession: req.CreateSession,
			Device:        deviceFromRequest(c),
		}
	case usecase.ActionSendOTP:
		return usecase.SendOTPCommand{Email: req.Email}
	case usecase.ActionVerifyOTP:
		return usecase.VerifyOTPCommand{Email: req.Email, OTP: req.OTP, Device: deviceFromRequest(c)}
	default:
		return usecase.CheckEmailCommand{Email: req.Email}
	}
}

func toEmailAuthResponse(result *usecase.EmailAuthResult) EmailAuthResponse {
	resp := EmailAuthResponse{
		Action:        string(result.Action),
		Success:       result.Success,
		Error:         result.Error,
		Handle:        result.Handle,
		RequiresOTP:   result.RequiresOTP,
		OTPSent:       result.OTPSent,
		EmailVerified: result.EmailVerified,
	}
	if result.AccountID != uuid.Nil {
		resp.AccountID = &result.AccountID
	}
	if result.SessionID != uuid.Nil {
		resp.SessionID = &result.SessionID
	}
	if result.Action == usecase.ActionCheckEmail && result.Success {
		exists, hasPassword := result.Exists, result.HasPassword
		resp.Exists = &exists
		resp.HasPassword = &hasPassword
	}

	return resp
}
