package server

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/jrsteele09/fingreat/authcallback"
	apperrors "github.com/jrsteele09/fingreat/internal/errors"
	"github.com/jrsteele09/fingreat/session"
	"github.com/jrsteele09/fingreat/window"
	"github.com/rs/zerolog/log"
)

// dashboardResponse is the main page state.
type dashboardResponse struct {
	Session    session.Snapshot `json:"session"`
	Stocks     stocksResponse   `json:"stocks"`
	Company    string           `json:"company"`
	Processing bool             `json:"processing"`
}

// IndexHandler mounts the main window. A code in the URL is exchanged in
// place and the browser is sent to the cleaned URL.
func (s *Server) IndexHandler() http.HandlerFunc {
	if _, err := ParseTemplate("index.html"); err != nil {
		panic("Failed to parse index template: " + err.Error())
	}

	return func(w http.ResponseWriter, r *http.Request) {
		loc := window.NewStaticLocation(s.origin + r.URL.RequestURI())
		if err := s.controller.Init(r.Context(), loc); err != nil {
			log.Err(err).Msg("Failed to complete sign in from redirect")
		}

		if loc.Replaced() {
			http.Redirect(w, r, relativeURL(loc.Href()), http.StatusSeeOther)
			return
		}

		data := s.dashboard()
		if wantsHTML(r) {
			renderTemplate(w, http.StatusOK, "index.html", map[string]any{
				"AppName": s.config.GetAppName(),
				"Session": data.Session,
			})
			return
		}
		writeJSON(w, http.StatusOK, data)
	}
}

func (s *Server) dashboard() dashboardResponse {
	return dashboardResponse{
		Session:    s.controller.Snapshot(),
		Stocks:     stocksResponse{Loading: s.poller.Loading(), Stocks: s.poller.Snapshot()},
		Company:    s.company.Get(),
		Processing: s.agent.Processing(),
	}
}

// AuthCallbackHandler is where the authorization server sends the user
// back. It runs one attempt and renders the result.
func (s *Server) AuthCallbackHandler() http.HandlerFunc {
	if _, err := ParseTemplate("auth.html"); err != nil {
		panic("Failed to parse auth template: " + err.Error())
	}

	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()

		var opener window.MessageTarget
		if s.controller.Connecting() || query.Get("popup") == "1" {
			opener = s.bus.Sender(s.origin)
		}

		res := s.callback.Handle(r.Context(), query, opener, s.origin)

		status := http.StatusOK
		if res.State == authcallback.StateError {
			status = http.StatusBadRequest
		}
		renderTemplate(w, status, "auth.html", map[string]any{
			"AppName":      s.config.GetAppName(),
			"State":        string(res.State),
			"Message":      res.Message,
			"CloseAfterMs": res.CloseAfter.Milliseconds(),
		})
	}
}

func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

// relativeURL drops scheme and host so redirects stay on this server.
func relativeURL(href string) string {
	u, err := url.Parse(href)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.RequestURI()
}

func statusFor(err error) int {
	switch {
	case apperrors.Is(err, apperrors.ErrAlreadyConnecting), apperrors.Is(err, apperrors.ErrAlreadySignedIn):
		return http.StatusConflict
	case apperrors.Is(err, apperrors.ErrNotSignedIn):
		return http.StatusUnauthorized
	case apperrors.Is(err, apperrors.ErrNoCompany), apperrors.Is(err, apperrors.ErrInvalidRequest):
		return http.StatusBadRequest
	case apperrors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound
	case apperrors.Is(err, apperrors.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
