package zoho

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/khanghh/kbooks/internal/config"
	"github.com/spf13/cast"
	"golang.org/x/oauth2"
)

const (
	opExchangeCode = "exchange code"
	opRefreshToken = "refresh token"
)

// TokenBundle is the token set issued by the Zoho accounts server. CreatedAt is
// the epoch millisecond time at which this service received the tokens.
type TokenBundle struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	APIDomain    string `json:"api_domain"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	CreatedAt    int64  `json:"created_at"`
}

// ExpiresAt is the absolute expiry in epoch milliseconds.
func (b *TokenBundle) ExpiresAt() int64 {
	return b.CreatedAt + b.ExpiresIn*1000
}

// TokenExchangeError is returned when the accounts server answers a grant
// with an error. Transport failures are returned unwrapped instead.
type TokenExchangeError struct {
	Op          string
	Code        string
	Description string
	StatusCode  int
}

func (e *TokenExchangeError) Error() string {
	return fmt.Sprintf("failed to %s: %s", e.Op, e.Code)
}

type Client struct {
	oauthConfig *oauth2.Config
	httpClient  *http.Client
	now         func() time.Time
}

func (c *Client) context(ctx context.Context) context.Context {
	if c.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

// AuthCodeURL builds the consent page URL. Offline access and a forced consent
// prompt make Zoho issue a refresh token on every authorization.
func (c *Client) AuthCodeURL(state string) string {
	return c.oauthConfig.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

func (c *Client) ExchangeCode(ctx context.Context, code string) (*TokenBundle, error) {
	token, err := c.oauthConfig.Exchange(c.context(ctx), code)
	if err != nil {
		return nil, translateError(opExchangeCode, err)
	}
	return c.bundleFromToken(token), nil
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenBundle, error) {
	source := c.oauthConfig.TokenSource(c.context(ctx), &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		return nil, translateError(opRefreshToken, err)
	}
	bundle := c.bundleFromToken(token)
	if bundle.RefreshToken == "" {
		bundle.RefreshToken = refreshToken
	}
	return bundle, nil
}

func (c *Client) bundleFromToken(token *oauth2.Token) *TokenBundle {
	now := c.now()
	expiresIn := cast.ToInt64(token.Extra("expires_in"))
	if expiresIn == 0 && !token.Expiry.IsZero() {
		expiresIn = int64(token.Expiry.Sub(now).Round(time.Second).Seconds())
	}
	return &TokenBundle{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		APIDomain:    cast.ToString(token.Extra("api_domain")),
		TokenType:    token.TokenType,
		ExpiresIn:    expiresIn,
		CreatedAt:    now.UnixMilli(),
	}
}

func translateError(op string, err error) error {
	var retrieveErr *oauth2.RetrieveError
	if !errors.As(err, &retrieveErr) {
		return err
	}
	exchangeErr := &TokenExchangeError{
		Op:          op,
		Code:        retrieveErr.ErrorCode,
		Description: retrieveErr.ErrorDescription,
	}
	if retrieveErr.Response != nil {
		exchangeErr.StatusCode = retrieveErr.Response.StatusCode
	}
	if exchangeErr.Code == "" {
		exchangeErr.Code = "Unknown error"
	}
	return exchangeErr
}

func NewClient(cfg config.ZohoConfig, httpClient *http.Client) *Client {
	return &Client{
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       cfg.Scope,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: httpClient,
		now:        time.Now,
	}
}
