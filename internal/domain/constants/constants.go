// Package constants holds values shared across layers that must not drift apart.
package constants

import "time"

// Deployment environments.
const (
	EnvDevelop    = "develop"
	EnvStaging    = "staging"
	EnvProduction = "production"
)

// Pub/Sub providers for the OAuth callback work queue.
const (
	PubSubProviderLocal     = "local"
	PubSubProviderGoogle    = "google"
	PubSubProviderInProcess = "inprocess"
)

// Storage drivers.
const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

// Email senders.
const (
	EmailProviderResend = "resend"
	EmailProviderLog    = "log"
)

// OAuth state and completion poll contract. The poll values are observed by clients
// and must stay fixed: a client polls every CompletionPollInterval, at most
// CompletionPollMaxAttempts times.
const (
	OAuthStateTTL             = 10 * time.Minute
	CompletionPollInterval    = 2 * time.Second
	CompletionPollMaxAttempts = 8
)

// One-time code policy.
const (
	OTPLength      = 6
	OTPTTL         = 10 * time.Minute
	OTPMaxAttempts = 3
)

// Handle provisioning policy.
const (
	HandleMinLength          = 3
	HandleFallbackPrefix     = "user"
	HandleMaxAttempts        = 10
	HandleMaxRandomSuffixLen = 6
)

// Event attribute keys.
const (
	AttrRequestID  = "request_id"
	AttrCallbackID = "callback_id"
	AttrProvider   = "provider"
)
