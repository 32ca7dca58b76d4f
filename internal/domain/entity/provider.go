package entity

import "slices"

// Provider identifies an external OAuth identity provider.
type Provider string

const (
	ProviderGoogle Provider = "google"
	ProviderGitHub Provider = "github"
	ProviderLinear Provider = "linear"
)

// SupportedProviders is the fixed allow-list of identity providers.
var SupportedProviders = []Provider{ProviderGoogle, ProviderGitHub, ProviderLinear}

// IsSupported reports whether p is on the allow-list.
func (p Provider) IsSupported() bool {
	return slices.Contains(SupportedProviders, p)
}

// String implements fmt.Stringer.
func (p Provider) String() string {
	return string(p)
}
