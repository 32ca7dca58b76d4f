package service

import "context"

// OTPThrottle limits how often codes can be issued for one email address.
type OTPThrottle interface {
	// Allow records an issuance attempt for key and reports whether it is within the limit.
	Allow(ctx context.Context, key string) (bool, error)
}
