package oauth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"authflow/config"
	"authflow/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const testVerifier = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"

type fakeIdP struct {
	t          *testing.T
	server     *httptest.Server
	tokenForm  url.Values
	userBody   string
	emailsBody string
	graphQL    string
	authHeader string
}

func newFakeIdP(t *testing.T) *fakeIdP {
	t.Helper()
	f := &fakeIdP{t: t}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		f.tokenForm = r.PostForm
		if r.PostForm.Get("code") != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"invalid_grant","error_description":"bad code"}`)

			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"at-1","refresh_token":"rt-1","token_type":"bearer","expires_in":3600,"scope":"read","id_token":"idt"}`)
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		f.authHeader = r.Header.Get("Authorization")
		_, _ = io.WriteString(w, f.userBody)
	})
	mux.HandleFunc("/user/emails", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, f.emailsBody)
	})
	mux.HandleFunc("/graphql", func(w http.ResponseWriter, r *http.Request) {
		f.authHeader = r.Header.Get("Authorization")
		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, linearViewerQuery, payload["query"])
		_, _ = io.WriteString(w, f.graphQL)
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)

	return f
}

func (f *fakeIdP) providerConfig() *config.OAuthProviderConfig {
	return &config.OAuthProviderConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		AuthURL:      f.server.URL + "/authorize",
		TokenURL:     f.server.URL + "/token",
		UserInfoURL:  f.server.URL + "/user",
		EmailsURL:    f.server.URL + "/user/emails",
	}
}

func TestAuthCodeURL_CarriesPKCEAndState(t *testing.T) {
	idp := newFakeIdP(t)
	p := newGitHubProvider(idp.providerConfig(), time.Second)

	raw := p.AuthCodeURL("state-123", testVerifier, "https://app.example.com/auth/callback")
	u, err := url.Parse(raw)
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, idp.server.URL+"/authorize", u.Scheme+"://"+u.Host+u.Path)
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "state-123", q.Get("state"))
	assert.Equal(t, "https://app.example.com/auth/callback", q.Get("redirect_uri"))
	assert.Equal(t, "read:user user:email", q.Get("scope"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.Equal(t, oauth2.S256ChallengeFromVerifier(testVerifier), q.Get("code_challenge"))
}

func TestExchange_SendsVerifierAndNormalizesTokens(t *testing.T) {
	idp := newFakeIdP(t)
	p := newGoogleProvider(idp.providerConfig(), time.Second)

	before := time.Now()
	tokens, err := p.Exchange(context.Background(), "good-code", testVerifier, "https://app.example.com/cb")
	require.NoError(t, err)

	assert.Equal(t, testVerifier, idp.tokenForm.Get("code_verifier"))
	assert.Equal(t, "https://app.example.com/cb", idp.tokenForm.Get("redirect_uri"))
	assert.Equal(t, "authorization_code", idp.tokenForm.Get("grant_type"))

	assert.Equal(t, "at-1", tokens.AccessToken)
	assert.Equal(t, "rt-1", tokens.RefreshToken)
	assert.Equal(t, "Bearer", tokens.TokenType)
	assert.Equal(t, "read", tokens.Scope)
	assert.Equal(t, "idt", tokens.IDToken)
	require.NotNil(t, tokens.ExpiresAt)
	assert.True(t, tokens.ExpiresAt.After(before.Add(59*time.Minute)))
}

func TestExchange_ProviderRejection(t *testing.T) {
	idp := newFakeIdP(t)
	p := newLinearProvider(idp.providerConfig(), time.Second)

	_, err := p.Exchange(context.Background(), "bad-code", testVerifier, "https://app.example.com/cb")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_grant")
}

func TestGoogleProfile(t *testing.T) {
	idp := newFakeIdP(t)
	idp.userBody = `{"id":"g-1","email":"foo@bar.com","name":"Foo Bar","picture":"https://img/foo.png"}`
	p := newGoogleProvider(idp.providerConfig(), time.Second)

	profile, err := p.FetchProfile(context.Background(), &entity.ProviderTokens{AccessToken: "at-1"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer at-1", idp.authHeader)
	assert.Equal(t, "g-1", profile.ProviderAccountID)
	assert.Equal(t, "foo@bar.com", profile.Email)
	assert.Equal(t, "Foo Bar", profile.Name)
	assert.Equal(t, "https://img/foo.png", profile.Image)
	assert.JSONEq(t, idp.userBody, string(profile.Raw))
}

func TestGitHubProfile(t *testing.T) {
	tests := []struct {
		name      string
		userBody  string
		emails    string
		wantEmail string
		wantName  string
	}{
		{
			name:      "public email",
			userBody:  `{"id":42,"login":"octo","name":"Octo Cat","email":"octo@example.com","avatar_url":"https://a/1"}`,
			wantEmail: "octo@example.com",
			wantName:  "Octo Cat",
		},
		{
			name:      "primary email fallback",
			userBody:  `{"id":42,"login":"octo","email":null}`,
			emails:    `[{"email":"other@example.com","primary":false},{"email":"primary@example.com","primary":true}]`,
			wantEmail: "primary@example.com",
			wantName:  "octo",
		},
		{
			name:      "first email when none is primary",
			userBody:  `{"id":42,"login":"octo"}`,
			emails:    `[{"email":"first@example.com"},{"email":"second@example.com"}]`,
			wantEmail: "first@example.com",
			wantName:  "octo",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idp := newFakeIdP(t)
			idp.userBody = tt.userBody
			idp.emailsBody = tt.emails
			p := newGitHubProvider(idp.providerConfig(), time.Second)

			profile, err := p.FetchProfile(context.Background(), &entity.ProviderTokens{AccessToken: "at-1"})
			require.NoError(t, err)
			assert.Equal(t, "42", profile.ProviderAccountID)
			assert.Equal(t, tt.wantEmail, profile.Email)
			assert.Equal(t, tt.wantName, profile.Name)
		})
	}
}

func TestGitHubProfile_NoEmails(t *testing.T) {
	idp := newFakeIdP(t)
	idp.userBody = `{"id":42,"login":"octo"}`
	idp.emailsBody = `[]`
	p := newGitHubProvider(idp.providerConfig(), time.Second)

	_, err := p.FetchProfile(context.Background(), &entity.ProviderTokens{AccessToken: "at-1"})
	assert.Error(t, err)
}

func TestLinearProfile(t *testing.T) {
	idp := newFakeIdP(t)
	idp.graphQL = `{"data":{"viewer":{"id":"lin-1","email":"lin@example.com","name":"Lin Ear"}}}`
	cfg := idp.providerConfig()
	cfg.UserInfoURL = idp.server.URL + "/graphql"
	p := newLinearProvider(cfg, time.Second)

	profile, err := p.FetchProfile(context.Background(), &entity.ProviderTokens{AccessToken: "at-2"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer at-2", idp.authHeader)
	assert.Equal(t, "lin-1", profile.ProviderAccountID)
	assert.Equal(t, "lin@example.com", profile.Email)
	assert.Equal(t, "Lin Ear", profile.Name)
}

func TestLinearProfile_GraphQLErrors(t *testing.T) {
	idp := newFakeIdP(t)
	idp.graphQL = `{"errors":[{"message":"authentication required"}]}`
	cfg := idp.providerConfig()
	cfg.UserInfoURL = idp.server.URL + "/graphql"
	p := newLinearProvider(cfg, time.Second)

	_, err := p.FetchProfile(context.Background(), &entity.ProviderTokens{AccessToken: "at-2"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "authentication required")
}

func TestFetchProfile_UpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	p := newGoogleProvider(&config.OAuthProviderConfig{
		ClientID: "id", ClientSecret: "secret", UserInfoURL: server.URL,
	}, time.Second)

	_, err := p.FetchProfile(context.Background(), &entity.ProviderTokens{AccessToken: "at"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")

	_, err = p.FetchProfile(context.Background(), &entity.ProviderTokens{})
	assert.Error(t, err)
}

func TestRegistry_OnlyConfiguredProviders(t *testing.T) {
	cfg := &config.Config{}
	cfg.OAuth.HTTPTimeout = time.Second
	cfg.OAuth.GitHub = &config.OAuthProviderConfig{ClientID: "id", ClientSecret: "secret"}
	cfg.OAuth.Google = &config.OAuthProviderConfig{ClientID: "id"}

	reg := NewRegistry(cfg)

	assert.Equal(t, []entity.Provider{entity.ProviderGitHub}, reg.Enabled())

	p, ok := reg.Get(entity.ProviderGitHub)
	require.True(t, ok)
	assert.Equal(t, entity.ProviderGitHub, p.Name())

	_, ok = reg.Get(entity.ProviderGoogle)
	assert.False(t, ok)
	_, ok = reg.Get(entity.Provider("facebook"))
	assert.False(t, ok)
}
