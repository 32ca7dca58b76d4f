package oauth

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"authflow/config"
	"authflow/internal/domain/entity"
	"authflow/internal/errors"

	"golang.org/x/oauth2"
)

const linearGraphQLURL = "https://api.linear.app/graphql"

var (
	linearEndpoint = oauth2.Endpoint{
		AuthURL:   "https://linear.app/oauth/authorize",
		TokenURL:  "https://api.linear.app/oauth/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
	linearDefaultScopes = []string{"read"}
)

const linearViewerQuery = `{ viewer { id email name avatarUrl } }`

type linearViewerResponse struct {
	Data struct {
		Viewer *struct {
			ID        string `json:"id"`
			Email     string `json:"email"`
			Name      string `json:"name"`
			AvatarURL string `json:"avatarUrl"`
		} `json:"viewer"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func newLinearProvider(cfg *config.OAuthProviderConfig, timeout time.Duration) *baseProvider {
	p := newBaseProvider(entity.ProviderLinear, cfg, linearEndpoint, linearDefaultScopes, timeout, fetchLinearProfile)
	p.userInfoURL = firstNonEmpty(cfg.UserInfoURL, linearGraphQLURL)

	return p
}

func fetchLinearProfile(ctx context.Context, p *baseProvider, accessToken string) (*entity.ProviderProfile, error) {
	raw, err := p.postJSON(ctx, p.userInfoURL, accessToken, map[string]string{"query": linearViewerQuery})
	if err != nil {
		return nil, err
	}

	var resp linearViewerResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, errors.Wrap(err, "failed to decode linear viewer")
	}
	if len(resp.Errors) > 0 {
		msgs := make([]string, 0, len(resp.Errors))
		for _, e := range resp.Errors {
			msgs = append(msgs, e.Message)
		}

		return nil, errors.Errorf("linear graphql error: %s", strings.Join(msgs, "; "))
	}
	if resp.Data.Viewer == nil {
		return nil, errors.New("linear response has no viewer")
	}

	viewer := resp.Data.Viewer

	return &entity.ProviderProfile{
		ProviderAccountID: viewer.ID,
		Email:             viewer.Email,
		Name:              viewer.Name,
		Image:             viewer.AvatarURL,
		Raw:               raw,
	}, nil
}
