// Package oauth implements the identity provider legs of the authorization code flow on top of
// golang.org/x/oauth2: PKCE authorization URLs, code exchange and profile retrieval.
package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"authflow/config"
	"authflow/internal/domain/entity"
	"authflow/internal/errors"

	"golang.org/x/oauth2"
)

// maxProfileBodySize caps provider responses read into memory.
const maxProfileBodySize = 1 << 20

// profileFetcher turns an access token into a normalized profile.
type profileFetcher func(ctx context.Context, p *baseProvider, accessToken string) (*entity.ProviderProfile, error)

// baseProvider holds what all providers share; each provider only differs in endpoints and
// in how the profile is read.
type baseProvider struct {
	name         entity.Provider
	oauthConfig  oauth2.Config
	userInfoURL  string
	emailsURL    string
	httpClient   *http.Client
	fetchProfile profileFetcher
}

func newBaseProvider(
	name entity.Provider,
	cfg *config.OAuthProviderConfig,
	endpoint oauth2.Endpoint,
	defaultScopes []string,
	timeout time.Duration,
	fetch profileFetcher,
) *baseProvider {
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = defaultScopes
	}

	return &baseProvider{
		name: name,
		oauthConfig: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     endpoint,
			Scopes:       scopes,
		},
		httpClient:   &http.Client{Timeout: timeout},
		fetchProfile: fetch,
	}
}

// Name returns the provider identifier.
func (p *baseProvider) Name() entity.Provider {
	return p.name
}

// AuthCodeURL builds the authorization URL. x/oauth2 adds response_type=code, client_id,
// redirect_uri, scope and state; S256ChallengeOption adds code_challenge and
// code_challenge_method=S256.
func (p *baseProvider) AuthCodeURL(state, verifier, redirectURI string) string {
	conf := p.oauthConfig
	conf.RedirectURL = redirectURI

	return conf.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

// Exchange trades the code for tokens, proving possession of the PKCE verifier.
func (p *baseProvider) Exchange(ctx context.Context, code, verifier, redirectURI string) (*entity.ProviderTokens, error) {
	conf := p.oauthConfig
	conf.RedirectURL = redirectURI

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	token, err := conf.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		if retrieveErr, ok := errors.AsType[*oauth2.RetrieveError](err); ok && retrieveErr.ErrorCode != "" {
			return nil, errors.Errorf("%s token endpoint rejected the code: %s %s",
				p.name, retrieveErr.ErrorCode, retrieveErr.ErrorDescription)
		}

		return nil, errors.Wrapf(err, "%s token exchange failed", p.name)
	}

	return normalizeToken(token), nil
}

// FetchProfile retrieves the provider profile for the access token.
func (p *baseProvider) FetchProfile(ctx context.Context, tokens *entity.ProviderTokens) (*entity.ProviderProfile, error) {
	if tokens == nil || tokens.AccessToken == "" {
		return nil, errors.Errorf("%s profile fetch requires an access token", p.name)
	}

	profile, err := p.fetchProfile(ctx, p, tokens.AccessToken)
	if err != nil {
		return nil, err
	}
	if profile.ProviderAccountID == "" {
		return nil, errors.Errorf("%s profile has no account id", p.name)
	}

	return profile, nil
}

// normalizeToken flattens an oauth2.Token into the fields stored on a social account.
func normalizeToken(token *oauth2.Token) *entity.ProviderTokens {
	out := &entity.ProviderTokens{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.Type(),
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry
		out.ExpiresAt = &expiry
	}
	if scope, ok := token.Extra("scope").(string); ok {
		out.Scope = scope
	}
	if idToken, ok := token.Extra("id_token").(string); ok {
		out.IDToken = idToken
	}

	return out
}

// getJSON performs an authenticated GET and returns the raw body.
func (p *baseProvider) getJSON(ctx context.Context, url, accessToken string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create profile request")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return p.do(req, accessToken)
}

// postJSON performs an authenticated POST with a JSON payload and returns the raw body.
func (p *baseProvider) postJSON(ctx context.Context, url, accessToken string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create profile request")
	}
	req.Header.Set("Content-Type", "application/json")

	return p.do(req, accessToken)
}

func (p *baseProvider) do(req *http.Request, accessToken string) ([]byte, error) {
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s request failed", p.name)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProfileBodySize))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s response", p.name)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("%s request failed with status %d: %s", p.name, resp.StatusCode, string(body))
	}

	return body, nil
}
