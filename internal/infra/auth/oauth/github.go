package oauth

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"authflow/config"
	"authflow/internal/domain/entity"
	"authflow/internal/errors"

	"golang.org/x/oauth2/github"
)

const (
	githubUserURL   = "https://api.github.com/user"
	githubEmailsURL = "https://api.github.com/user/emails"
)

var (
	githubDefaultScopes = []string{"read:user", "user:email"}
	githubHeaders       = map[string]string{"Accept": "application/vnd.github+json"}
)

type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

func newGitHubProvider(cfg *config.OAuthProviderConfig, timeout time.Duration) *baseProvider {
	p := newBaseProvider(entity.ProviderGitHub, cfg, github.Endpoint, githubDefaultScopes, timeout, fetchGitHubProfile)
	p.userInfoURL = firstNonEmpty(cfg.UserInfoURL, githubUserURL)
	p.emailsURL = firstNonEmpty(cfg.EmailsURL, githubEmailsURL)

	return p
}

// fetchGitHubProfile reads /user and, when the public email is hidden, falls back to the
// primary entry of /user/emails, or the first entry when none is primary.
func fetchGitHubProfile(ctx context.Context, p *baseProvider, accessToken string) (*entity.ProviderProfile, error) {
	raw, err := p.getJSON(ctx, p.userInfoURL, accessToken, githubHeaders)
	if err != nil {
		return nil, err
	}

	var user githubUser
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, errors.Wrap(err, "failed to decode github user")
	}
	if user.ID == 0 {
		return nil, errors.New("github user has no id")
	}

	email := user.Email
	if email == "" {
		email, err = fetchGitHubPrimaryEmail(ctx, p, accessToken)
		if err != nil {
			return nil, err
		}
	}

	name := user.Name
	if name == "" {
		name = user.Login
	}

	return &entity.ProviderProfile{
		ProviderAccountID: strconv.FormatInt(user.ID, 10),
		Email:             email,
		Name:              name,
		Image:             user.AvatarURL,
		Raw:               raw,
	}, nil
}

func fetchGitHubPrimaryEmail(ctx context.Context, p *baseProvider, accessToken string) (string, error) {
	raw, err := p.getJSON(ctx, p.emailsURL, accessToken, githubHeaders)
	if err != nil {
		return "", err
	}

	var emails []githubEmail
	if err := json.Unmarshal(raw, &emails); err != nil {
		return "", errors.Wrap(err, "failed to decode github emails")
	}
	if len(emails) == 0 {
		return "", errors.New("github account has no email address")
	}

	for _, e := range emails {
		if e.Primary {
			return e.Email, nil
		}
	}

	return emails[0].Email, nil
}
