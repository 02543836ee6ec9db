package server_test

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/jrsteele09/fingreat/session"
	"github.com/jrsteele09/fingreat/window"
	"github.com/stretchr/testify/require"
)

type event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func dialRelay(t *testing.T, httpSrv *httptest.Server, from string) (net.Conn, error) {
	t.Helper()
	dialer := ws.Dialer{Header: ws.HandshakeHeaderHTTP(http.Header{"Origin": []string{from}})}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, _, err := dialer.Dial(ctx, "ws"+strings.TrimPrefix(httpSrv.URL, "http")+"/ws")
	return conn, err
}

// readUntil reads events until one of the wanted type arrives.
func readUntil(t *testing.T, conn net.Conn, want string) event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		data, err := wsutil.ReadServerText(conn)
		require.NoError(t, err)
		var ev event
		require.NoError(t, json.Unmarshal(data, &ev))
		if ev.Type == want {
			return ev
		}
	}
}

func TestRelayConnectRoundTrip(t *testing.T) {
	ts := newTestServer(t, true)
	httpSrv := httptest.NewServer(ts.srv)
	defer httpSrv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ts.srv.Start(ctx)

	conn, err := dialRelay(t, httpSrv, origin)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return ts.hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	rec := ts.do(http.MethodPost, "/api/session/connect", "", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	open := readUntil(t, conn, "open_popup")
	var popup struct {
		URL      string `json:"url"`
		Name     string `json:"name"`
		Features string `json:"features"`
	}
	require.NoError(t, json.Unmarshal(open.Data, &popup))
	require.Equal(t, session.PopupName, popup.Name)
	require.Equal(t, "width=600,height=700,left=300,top=200", popup.Features)
	require.Contains(t, popup.URL, "client_id=abc")

	cmd, err := json.Marshal(map[string]any{
		"type":         "post_message",
		"data":         window.AuthSuccess("U777"),
		"targetOrigin": origin,
	})
	require.NoError(t, err)
	require.NoError(t, wsutil.WriteClientText(conn, cmd))

	closed := readUntil(t, conn, "close_popup")
	require.Contains(t, string(closed.Data), session.PopupName)
	require.Equal(t, "U777", ts.ctrl.Snapshot().UserID)
}

func TestRelayWithoutBrowser(t *testing.T) {
	ts := newTestServer(t, true)

	rec := ts.do(http.MethodPost, "/api/session/connect", "", nil)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Equal(t, session.StatusSignedOut, ts.ctrl.Snapshot().Status)
	require.Zero(t, ts.bus.Listeners())
}

func TestRelayRejectsForeignOrigin(t *testing.T) {
	ts := newTestServer(t, true)
	httpSrv := httptest.NewServer(ts.srv)
	defer httpSrv.Close()

	_, err := dialRelay(t, httpSrv, "https://evil.example.com")
	require.Error(t, err)
	require.Zero(t, ts.hub.Clients())
}

func TestRelayForwardsSessionUpdates(t *testing.T) {
	ts := newTestServer(t, false)
	httpSrv := httptest.NewServer(ts.srv)
	defer httpSrv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ts.srv.Start(ctx)

	conn, err := dialRelay(t, httpSrv, origin)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return ts.hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	ts.do(http.MethodGet, "/?code=abc123", "", nil)

	ev := readUntil(t, conn, "session")
	for !strings.Contains(string(ev.Data), "signed_in") {
		ev = readUntil(t, conn, "session")
	}
	require.Contains(t, string(ev.Data), "U123")
}
