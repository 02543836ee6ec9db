package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/jrsteele09/fingreat/internal/errors"
	"github.com/jrsteele09/fingreat/market"
)

const (
	pathSaveAccessToken = "/upstox/save_access_token"
	pathUserSignedIn    = "/upstox/user_signed_in"
	pathLogout          = "/upstox/logout"
	pathStocks          = "/stocks"
	pathAgentChat       = "/agent/chat"
)

// Client talks to the FinGReaT backend API.
type Client struct {
	HTTPClient *http.Client
	BaseURL    string
}

var _ market.Source = (*Client)(nil)

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		HTTPClient: &http.Client{Timeout: timeout},
		BaseURL:    strings.TrimRight(baseURL, "/"),
	}
}

type saveAccessTokenRequest struct {
	AccessToken string `json:"access_token"`
	UserID      string `json:"user_id"`
}

type signedInResponse struct {
	IsSignedIn bool `json:"is_signed_in"`
}

// SaveAccessToken hands the brokerage token to the backend, which places
// trades with it.
func (c *Client) SaveAccessToken(ctx context.Context, accessToken, userID string) error {
	body := saveAccessTokenRequest{AccessToken: accessToken, UserID: userID}
	if err := c.do(ctx, http.MethodPost, pathSaveAccessToken, nil, body, nil); err != nil {
		return apperrors.Wrapf(apperrors.ErrBackendSync, "[SaveAccessToken] %v", err)
	}
	return nil
}

// IsSignedIn asks whether userID still has a live brokerage session.
func (c *Client) IsSignedIn(ctx context.Context, userID string) (bool, error) {
	var resp signedInResponse
	query := url.Values{"user_id": {userID}}
	if err := c.do(ctx, http.MethodGet, pathUserSignedIn, query, nil, &resp); err != nil {
		return false, apperrors.Wrapf(apperrors.ErrSessionCheckFailed, "[IsSignedIn] %v", err)
	}
	return resp.IsSignedIn, nil
}

// Logout revokes the brokerage session server-side.
func (c *Client) Logout(ctx context.Context, userID string) error {
	query := url.Values{"user_id": {userID}}
	if err := c.do(ctx, http.MethodGet, pathLogout, query, nil, nil); err != nil {
		return fmt.Errorf("[Logout] %w", err)
	}
	return nil
}

// FetchStocks returns the dashboard quote list.
func (c *Client) FetchStocks(ctx context.Context) ([]market.Stock, error) {
	var stocks []market.Stock
	if err := c.do(ctx, http.MethodGet, pathStocks, nil, nil, &stocks); err != nil {
		return nil, fmt.Errorf("[FetchStocks] %w", err)
	}
	return stocks, nil
}

// ChatTurn is one line of agent conversation history.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	UserID  string     `json:"user_id"`
	Company string     `json:"company"`
	Agent   string     `json:"agent"`
	Query   string     `json:"query"`
	History []ChatTurn `json:"history,omitempty"`
}

type ChatReply struct {
	Response string `json:"response"`
	Agent    string `json:"agent,omitempty"`
}

// Chat forwards one question to the backend agent.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (ChatReply, error) {
	var reply ChatReply
	if err := c.do(ctx, http.MethodPost, pathAgentChat, nil, req, &reply); err != nil {
		return ChatReply{}, fmt.Errorf("[Chat] %w", err)
	}
	return reply, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	endpoint := c.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apperrors.Wrapf(apperrors.ErrUpstream, "%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
