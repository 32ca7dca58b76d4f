package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalizeEnvKey_UsesExistingCamelCaseKeys(t *testing.T) {
	existing := map[string]any{
		"postgres": map[string]any{
			"sslMode": "disable",
			"master": map[string]any{
				"userName": "user",
			},
		},
		"pubsub": map[string]any{
			"topicId": "",
		},
		"secretKey": map[string]any{
			"session": "",
		},
		"oauth": map[string]any{
			"github": map[string]any{
				"clientSecret": "",
			},
			"completionRedirectUrl": "",
		},
	}

	tests := []struct {
		envKey string
		want   string
	}{
		{envKey: "POSTGRES_SSLMODE", want: "postgres.sslMode"},
		{envKey: "POSTGRES_MASTER_USERNAME", want: "postgres.master.userName"},
		{envKey: "PUBSUB_TOPICID", want: "pubsub.topicId"},
		{envKey: "SECRETKEY_SESSION", want: "secretKey.session"},
		{envKey: "OAUTH_GITHUB_CLIENTSECRET", want: "oauth.github.clientSecret"},
		{envKey: "OAUTH_COMPLETIONREDIRECTURL", want: "oauth.completionRedirectUrl"},
		{envKey: "NEW_FEATURE_FLAG", want: "new.feature.flag"},
	}

	for _, tt := range tests {
		t.Run(tt.envKey, func(t *testing.T) {
			assert.Equal(t, tt.want, canonicalizeEnvKey(tt.envKey, existing))
		})
	}
}

func TestLoadWithEnv_AppliesEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	yamlBody := []byte(`
env:
  env: develop
session:
  ttl: 1h
oauth:
  github:
    clientId: from-file
    clientSecret: ""
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.yaml"), yamlBody, 0o600))

	t.Setenv("OAUTH_GITHUB_CLIENTSECRET", "from-env")
	t.Setenv("SESSION_TTL", "2h")

	wd, err := os.Getwd()
	require.NoError(t, err)
	rel, err := filepath.Rel(wd, dir)
	require.NoError(t, err)

	cfg, err := LoadWithEnv[Config]("test", rel)
	require.NoError(t, err)

	require.NotNil(t, cfg.OAuth.GitHub)
	assert.Equal(t, "from-file", cfg.OAuth.GitHub.ClientID)
	assert.Equal(t, "from-env", cfg.OAuth.GitHub.ClientSecret)
	assert.True(t, cfg.OAuth.GitHub.Enabled())
	assert.Equal(t, 2*time.Hour, cfg.Session.TTL)
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)

	assert.Equal(t, defaultOAuthHTTPTimeout, cfg.OAuth.HTTPTimeout)
	assert.Equal(t, defaultExchangeTimeout, cfg.OAuth.ExchangeTimeout)
	assert.Equal(t, defaultSessionCookieName, cfg.Session.CookieName)
	assert.Equal(t, defaultSessionIssuer, cfg.Session.Issuer)
	assert.Equal(t, defaultOTPResendLimit, cfg.OTP.ResendLimit)
	assert.Equal(t, defaultOTPResendWindow, cfg.OTP.ResendWindow)
	assert.Equal(t, defaultMetricsPath, cfg.Metrics.Path)
	assert.Zero(t, cfg.Session.TTL)
}

func TestOAuthProviderConfig_Enabled(t *testing.T) {
	var nilCfg *OAuthProviderConfig
	assert.False(t, nilCfg.Enabled())
	assert.False(t, (&OAuthProviderConfig{ClientID: "id"}).Enabled())
	assert.True(t, (&OAuthProviderConfig{ClientID: "id", ClientSecret: "secret"}).Enabled())
}
