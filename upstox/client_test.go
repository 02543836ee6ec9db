package upstox_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	apperrors "github.com/jrsteele09/fingreat/internal/errors"
	"github.com/jrsteele09/fingreat/upstox"
	"github.com/stretchr/testify/require"
)

const (
	testClientID     = "client-1"
	testClientSecret = "secret-1"
	testRedirectURI  = "http://localhost:3000/auth"
)

type tokenServer struct {
	status int
	body   map[string]any
	form   url.Values
	accept string
	calls  int
}

func (ts *tokenServer) start(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.calls++
		require.Equal(t, "/v2/login/authorization/token", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		ts.form = r.PostForm
		ts.accept = r.Header.Get("Accept")

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(ts.status)
		_ = json.NewEncoder(w).Encode(ts.body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newClient(baseURL string) *upstox.Client {
	return upstox.NewClient(baseURL, testClientID, testClientSecret, testRedirectURI, nil)
}

func TestAuthorizationDialogURL(t *testing.T) {
	c := newClient("https://api.upstox.com/")
	u, err := url.Parse(c.AuthorizationDialogURL())
	require.NoError(t, err)

	require.Equal(t, "api.upstox.com", u.Host)
	require.Equal(t, "/v2/login/authorization/dialog", u.Path)
	q := u.Query()
	require.Equal(t, "code", q.Get("response_type"))
	require.Equal(t, testClientID, q.Get("client_id"))
	require.Equal(t, testRedirectURI, q.Get("redirect_uri"))
	require.False(t, q.Has("state"))
}

func TestExchange(t *testing.T) {
	t.Run("success sends the full form", func(t *testing.T) {
		ts := &tokenServer{status: http.StatusOK, body: map[string]any{
			"access_token": "tok", "token_type": "Bearer", "user_id": "u1", "user_name": "Asha",
		}}
		srv := ts.start(t)

		res, err := newClient(srv.URL).Exchange(context.Background(), "abc123")
		require.NoError(t, err)
		require.Equal(t, "tok", res.AccessToken)
		require.Equal(t, "u1", res.UserID)
		require.Equal(t, "Asha", res.UserName)
		require.True(t, res.ExpiresAt.IsZero())

		require.Equal(t, "abc123", ts.form.Get("code"))
		require.Equal(t, testClientID, ts.form.Get("client_id"))
		require.Equal(t, testClientSecret, ts.form.Get("client_secret"))
		require.Equal(t, testRedirectURI, ts.form.Get("redirect_uri"))
		require.Equal(t, "authorization_code", ts.form.Get("grant_type"))
		require.Equal(t, "application/json", ts.accept)
	})

	t.Run("missing user_id fails regardless of status", func(t *testing.T) {
		for _, status := range []int{http.StatusOK, http.StatusCreated} {
			ts := &tokenServer{status: status, body: map[string]any{"access_token": "tok"}}
			srv := ts.start(t)

			_, err := newClient(srv.URL).Exchange(context.Background(), "abc123")
			require.ErrorIs(t, err, apperrors.ErrExchangeFailed)
		}
	})

	t.Run("non-2xx fails even with user_id", func(t *testing.T) {
		ts := &tokenServer{status: http.StatusUnauthorized, body: map[string]any{
			"access_token": "tok", "user_id": "u1",
		}}
		srv := ts.start(t)

		_, err := newClient(srv.URL).Exchange(context.Background(), "abc123")
		require.ErrorIs(t, err, apperrors.ErrExchangeFailed)
		require.Equal(t, 1, ts.calls)
	})

	t.Run("empty code never reaches the server", func(t *testing.T) {
		ts := &tokenServer{status: http.StatusOK}
		srv := ts.start(t)

		_, err := newClient(srv.URL).Exchange(context.Background(), "")
		require.ErrorIs(t, err, apperrors.ErrMissingCode)
		require.Zero(t, ts.calls)
	})

	t.Run("jwt access token exposes expiry", func(t *testing.T) {
		exp := time.Now().Add(6 * time.Hour).Truncate(time.Second)
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "u1",
			"exp": exp.Unix(),
		}).SignedString([]byte("test-key"))
		require.NoError(t, err)

		ts := &tokenServer{status: http.StatusOK, body: map[string]any{"access_token": signed, "user_id": "u1"}}
		srv := ts.start(t)

		res, err := newClient(srv.URL).Exchange(context.Background(), "abc123")
		require.NoError(t, err)
		require.True(t, exp.Equal(res.ExpiresAt))
	})
}
