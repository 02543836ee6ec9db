package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jrsteele09/fingreat/agent"
	"github.com/jrsteele09/fingreat/authcallback"
	"github.com/jrsteele09/fingreat/backend/backendfake"
	"github.com/jrsteele09/fingreat/company"
	"github.com/jrsteele09/fingreat/internal/config"
	"github.com/jrsteele09/fingreat/kvstore/storefake"
	"github.com/jrsteele09/fingreat/market"
	"github.com/jrsteele09/fingreat/server"
	"github.com/jrsteele09/fingreat/session"
	"github.com/jrsteele09/fingreat/upstox"
	"github.com/jrsteele09/fingreat/window"
	"github.com/jrsteele09/fingreat/window/windowfake"
	"github.com/stretchr/testify/require"
)

const origin = "http://localhost:3000"

type stubExchanger struct{}

func (stubExchanger) Exchange(_ context.Context, code string) (upstox.TokenExchangeResult, error) {
	return upstox.TokenExchangeResult{AccessToken: "tok-" + code, UserID: "U123"}, nil
}

type testServer struct {
	srv     *server.Server
	ctrl    *session.Controller
	backend *backendfake.FakeBackend
	store   *storefake.FakeStore
	opener  *windowfake.FakeOpener
	bus     *window.Bus
	hub     *server.Hub
	flow    *session.Flow
}

func newTestServer(t *testing.T, relay bool) *testServer {
	t.Helper()
	for _, v := range []string{"BASE_URL", "ALLOWED_ORIGINS", "ENV"} {
		t.Setenv(v, "")
	}
	c := config.FromFile(nil)

	ts := &testServer{
		backend: backendfake.NewFakeBackend(),
		store:   storefake.NewFakeStore(),
		opener:  windowfake.NewFakeOpener(),
		bus:     window.NewBus(),
	}
	ts.hub = server.NewHub(ts.bus, c.GetAllowedOrigins())
	var opener window.PopupOpener = ts.opener
	if relay {
		opener = ts.hub
	}
	ts.backend.SetStocks([]market.Stock{{Symbol: "TCS", Name: "Tata Consultancy", Price: 3900}})
	ts.backend.ChatReply = "Looks steady."

	ts.flow = session.NewFlow(stubExchanger{}, ts.store, ts.backend)
	ts.ctrl = session.NewController(ts.flow, ts.store, ts.backend, opener, ts.bus, session.Options{
		Origin:       origin,
		DialogURL:    "https://api.upstox.com/v2/login/authorization/dialog?client_id=abc",
		PollInterval: time.Hour,
	})
	poller := market.NewPoller(ts.backend, time.Hour)
	poller.Start(context.Background())
	selection := company.NewSelection()

	ts.srv = server.New(c, server.Deps{
		Controller: ts.ctrl,
		Callback:   authcallback.NewHandler(ts.flow, 0),
		Bus:        ts.bus,
		Hub:        ts.hub,
		Poller:     poller,
		Company:    selection,
		Agent:      agent.NewService(ts.backend, ts.ctrl, selection, agent.NewInMemoryRepo()),
	})

	t.Cleanup(func() {
		poller.Stop()
		ts.ctrl.Close()
		ts.flow.Wait()
		ts.hub.Close()
	})
	return ts
}

func (ts *testServer) do(method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	ts.srv.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestSessionConnectConflict(t *testing.T) {
	ts := newTestServer(t, false)

	rec := ts.do(http.MethodGet, "/api/session", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "idle", decode(t, rec)["status"])

	rec = ts.do(http.MethodPost, "/api/session/connect", "", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	body := decode(t, rec)
	require.NotEmpty(t, body["attemptId"])
	require.Contains(t, body["dialogUrl"], "/v2/login/authorization/dialog")
	require.Equal(t, session.PopupName, ts.opener.Last().Name)

	rec = ts.do(http.MethodPost, "/api/session/connect", "", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "Already connecting to Upstox.", decode(t, rec)["error"])
}

func TestIndexRedirectsAfterCode(t *testing.T) {
	ts := newTestServer(t, false)

	rec := ts.do(http.MethodGet, "/?code=abc123", "", nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/", rec.Header().Get("Location"))
	require.Equal(t, "U123", ts.ctrl.Snapshot().UserID)

	ts.backend.SetSignedIn("U123", true)
	rec = ts.do(http.MethodGet, "/", "", map[string]string{"Accept": "application/json"})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	require.Equal(t, "signed_in", body["session"].(map[string]any)["status"])
}

func TestIndexRendersHTML(t *testing.T) {
	ts := newTestServer(t, false)

	rec := ts.do(http.MethodGet, "/", "", map[string]string{"Accept": "text/html"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "/static/fingreat.js")
	require.Equal(t, "SAMEORIGIN", rec.Header().Get("X-Frame-Options"))
}

func TestAuthCallbackResolvesPendingConnect(t *testing.T) {
	ts := newTestServer(t, false)

	rec := ts.do(http.MethodPost, "/api/session/connect", "", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = ts.do(http.MethodGet, "/auth?code=abc123", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Success!")
	require.Contains(t, rec.Body.String(), "10000")

	require.Eventually(t, func() bool {
		return ts.ctrl.Snapshot().Status == session.StatusSignedIn
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, 1, ts.opener.Last().Popup.Closes())
	require.Equal(t, 1, ts.store.Sets())
}

func TestAuthCallbackWithoutCode(t *testing.T) {
	ts := newTestServer(t, false)

	rec := ts.do(http.MethodGet, "/auth", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "No authorization code found in URL.")
	require.Zero(t, ts.store.Sets())
}

func TestStocksAndCompany(t *testing.T) {
	ts := newTestServer(t, false)

	require.Eventually(t, func() bool {
		body := decode(t, ts.do(http.MethodGet, "/api/stocks", "", nil))
		return body["loading"] == false
	}, time.Second, 5*time.Millisecond)

	body := decode(t, ts.do(http.MethodGet, "/api/stocks", "", nil))
	stocks := body["stocks"].([]any)
	require.Len(t, stocks, 1)
	require.Equal(t, "TCS", stocks[0].(map[string]any)["symbol"])

	rec := ts.do(http.MethodPut, "/api/company", `{"symbol":" tcs "}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "TCS", decode(t, rec)["symbol"])

	rec = ts.do(http.MethodPut, "/api/company", `not json`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAgentChat(t *testing.T) {
	ts := newTestServer(t, false)

	rec := ts.do(http.MethodPost, "/api/agent/chat", `{"message":"hi"}`, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	ts.do(http.MethodGet, "/?code=abc123", "", nil)

	rec = ts.do(http.MethodPost, "/api/agent/chat", `{"message":"hi"}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, decode(t, rec)["error"], "select a company")

	ts.do(http.MethodPut, "/api/company", `{"symbol":"infy"}`, nil)

	rec = ts.do(http.MethodPost, "/api/agent/chat", `{"agent":"financial","message":"margins?"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	require.Equal(t, "Looks steady.", body["response"])
	require.Equal(t, "financial", body["agent"])

	rec = ts.do(http.MethodGet, "/api/agent/history?agent=financial", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode(t, rec)["messages"], 2)

	rec = ts.do(http.MethodPost, "/api/agent/chat", `{"agent":"oracle","message":"?"}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDisconnect(t *testing.T) {
	ts := newTestServer(t, false)
	ts.do(http.MethodGet, "/?code=abc123", "", nil)

	rec := ts.do(http.MethodPost, "/api/session/disconnect", "", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, []string{"U123"}, ts.backend.Logouts())
	require.Equal(t, session.StatusSignedOut, ts.ctrl.Snapshot().Status)
}

func TestCorsPreflight(t *testing.T) {
	ts := newTestServer(t, false)

	rec := ts.do(http.MethodOptions, "/api/session", "", map[string]string{"Origin": origin})
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, origin, rec.Header().Get("Access-Control-Allow-Origin"))

	rec = ts.do(http.MethodOptions, "/api/session", "", map[string]string{"Origin": "https://evil.example.com"})
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStaticFiles(t *testing.T) {
	ts := newTestServer(t, false)

	rec := ts.do(http.MethodGet, "/static/fingreat.js", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "javascript")

	rec = ts.do(http.MethodGet, "/static/missing.js", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
