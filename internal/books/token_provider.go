package books

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/khanghh/kbooks/internal/common"
	"github.com/khanghh/kbooks/internal/zoho"
)

type TokenProvider interface {
	GetTokens(ctx context.Context, userIdentifier string) (*zoho.TokenBundle, error)
}

type tokensEnvelope struct {
	Success bool              `json:"success"`
	Data    *zoho.TokenBundle `json:"data"`
	Error   string            `json:"error"`
}

// AuthServiceTokens reads valid tokens from the auth service's /tokens endpoint.
type AuthServiceTokens struct {
	baseURL    string
	httpClient *http.Client
}

func (p *AuthServiceTokens) GetTokens(ctx context.Context, userIdentifier string) (*zoho.TokenBundle, error) {
	var env tokensEnvelope
	err := common.DoJSON(ctx, p.httpClient, common.JSONRequest{
		URL:   p.baseURL + "/tokens",
		Query: url.Values{"user": {userIdentifier}},
	}, &env)
	if env.Error != "" {
		return nil, errors.New(env.Error)
	}
	var httpErr *common.HTTPError
	if errors.As(err, &httpErr) {
		return nil, errors.New("unknown error from auth service")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tokens: %w", err)
	}
	if !env.Success || env.Data == nil {
		return nil, errors.New("failed to get tokens")
	}
	return env.Data, nil
}

func NewAuthServiceTokens(baseURL string, httpClient *http.Client) *AuthServiceTokens {
	return &AuthServiceTokens{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}
