package oauth

import (
	"context"
	"encoding/json"
	"time"

	"authflow/config"
	"authflow/internal/domain/entity"
	"authflow/internal/errors"

	"golang.org/x/oauth2/google"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

var googleDefaultScopes = []string{"openid", "email", "profile"}

type googleUser struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

func newGoogleProvider(cfg *config.OAuthProviderConfig, timeout time.Duration) *baseProvider {
	p := newBaseProvider(entity.ProviderGoogle, cfg, google.Endpoint, googleDefaultScopes, timeout, fetchGoogleProfile)
	p.userInfoURL = firstNonEmpty(cfg.UserInfoURL, googleUserInfoURL)

	return p
}

func fetchGoogleProfile(ctx context.Context, p *baseProvider, accessToken string) (*entity.ProviderProfile, error) {
	raw, err := p.getJSON(ctx, p.userInfoURL, accessToken, nil)
	if err != nil {
		return nil, err
	}

	var user googleUser
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, errors.Wrap(err, "failed to decode google user info")
	}

	return &entity.ProviderProfile{
		ProviderAccountID: user.ID,
		Email:             user.Email,
		Name:              user.Name,
		Image:             user.Picture,
		Raw:               raw,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}
