package service

// AuthMetrics records authentication outcomes.
type AuthMetrics interface {
	OAuthAuthorizationStarted(provider string)
	OAuthExchangeFinished(provider, outcome string)
	EmailAuthAction(action, outcome string)
	OTPIssued(otpType string)
	OTPEmailFailed()
	SessionIssued(method string)
}
