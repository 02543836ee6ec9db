package upstox

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	apperrors "github.com/jrsteele09/fingreat/internal/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const (
	dialogPath = "/v2/login/authorization/dialog"
	tokenPath  = "/v2/login/authorization/token"
)

// TokenExchangeResult is what a successful code exchange yields.
type TokenExchangeResult struct {
	AccessToken string
	UserID      string
	UserName    string
	// ExpiresAt comes from the access token's exp claim; zero when the
	// token is not a JWT.
	ExpiresAt time.Time
}

// Exchanger turns an authorization code into a token.
type Exchanger interface {
	Exchange(ctx context.Context, code string) (TokenExchangeResult, error)
}

// Client talks to the Upstox authorization server.
type Client struct {
	oauth      *oauth2.Config
	httpClient *http.Client
}

var _ Exchanger = (*Client)(nil)

// NewClient builds a client for the authorization server at baseURL
// (e.g. "https://api.upstox.com"). A nil httpClient uses a 30s timeout.
func NewClient(baseURL, clientID, clientSecret, redirectURI string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	base := strings.TrimRight(baseURL, "/")

	transport := httpClient.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	withAccept := *httpClient
	withAccept.Transport = acceptJSON{next: transport}

	return &Client{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Endpoint: oauth2.Endpoint{
				AuthURL:   base + dialogPath,
				TokenURL:  base + tokenPath,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: &withAccept,
	}
}

// AuthorizationDialogURL is where the popup is pointed:
// response_type=code&client_id=...&redirect_uri=...
func (c *Client) AuthorizationDialogURL() string {
	return c.oauth.AuthCodeURL("")
}

// Exchange trades code for an access token with a single form-encoded POST.
// A non-2xx status or a body without user_id is ErrExchangeFailed.
func (c *Client) Exchange(ctx context.Context, code string) (TokenExchangeResult, error) {
	if code == "" {
		return TokenExchangeResult{}, apperrors.ErrMissingCode
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	token, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if apperrors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			log.Err(err).Int("status", retrieveErr.Response.StatusCode).Msg("Upstox token exchange rejected")
		}
		return TokenExchangeResult{}, apperrors.Wrapf(apperrors.ErrExchangeFailed, "[Exchange] %v", err)
	}

	userID, _ := token.Extra("user_id").(string)
	if userID == "" {
		return TokenExchangeResult{}, apperrors.Wrapf(apperrors.ErrExchangeFailed, "[Exchange] no user_id in response")
	}
	userName, _ := token.Extra("user_name").(string)

	return TokenExchangeResult{
		AccessToken: token.AccessToken,
		UserID:      userID,
		UserName:    userName,
		ExpiresAt:   accessTokenExpiry(token.AccessToken),
	}, nil
}

// accessTokenExpiry reads exp without verifying the signature; the token is
// only ever forwarded, never trusted here.
func accessTokenExpiry(accessToken string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

type acceptJSON struct {
	next http.RoundTripper
}

func (a acceptJSON) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.Header.Set("Accept", "application/json")
	return a.next.RoundTrip(r)
}
