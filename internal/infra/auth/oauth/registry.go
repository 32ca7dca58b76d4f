package oauth

import (
	"time"

	"authflow/config"
	"authflow/internal/domain/entity"
	"authflow/internal/domain/service"
)

type providerFactory func(cfg *config.OAuthProviderConfig, timeout time.Duration) *baseProvider

// registry holds the providers that are both allow-listed and configured.
type registry struct {
	providers map[entity.Provider]service.OAuthProvider
	enabled   []entity.Provider
}

// NewRegistry builds a provider for every allow-listed provider with client credentials.
func NewRegistry(cfg *config.Config) service.OAuthProviderRegistry {
	factories := map[entity.Provider]struct {
		cfg     *config.OAuthProviderConfig
		factory providerFactory
	}{
		entity.ProviderGoogle: {cfg.OAuth.Google, newGoogleProvider},
		entity.ProviderGitHub: {cfg.OAuth.GitHub, newGitHubProvider},
		entity.ProviderLinear: {cfg.OAuth.Linear, newLinearProvider},
	}

	r := &registry{providers: make(map[entity.Provider]service.OAuthProvider)}
	for _, name := range entity.SupportedProviders {
		f, ok := factories[name]
		if !ok || !f.cfg.Enabled() {
			continue
		}
		r.providers[name] = f.factory(f.cfg, cfg.OAuth.HTTPTimeout)
		r.enabled = append(r.enabled, name)
	}

	return r
}

// Get returns the provider, or false when it is not on the allow-list or not configured.
func (r *registry) Get(name entity.Provider) (service.OAuthProvider, bool) {
	if !name.IsSupported() {
		return nil, false
	}
	p, ok := r.providers[name]

	return p, ok
}

// Enabled lists configured providers in allow-list order.
func (r *registry) Enabled() []entity.Provider {
	return r.enabled
}
