package server

import (
	"encoding/json"
	"net/http"

	"github.com/jrsteele09/fingreat/agent"
	apperrors "github.com/jrsteele09/fingreat/internal/errors"
	"github.com/jrsteele09/fingreat/market"
	"github.com/rs/zerolog/log"
)

const (
	contentTypeHTML = "text/html; charset=utf-8"
	contentTypeJSON = "application/json; charset=utf-8"
)

type connectResponse struct {
	AttemptID string `json:"attemptId"`
	DialogURL string `json:"dialogUrl"`
}

type stocksResponse struct {
	Loading bool            `json:"loading"`
	Stocks  []*market.Stock `json:"stocks"`
}

type companyResponse struct {
	Symbol string `json:"symbol"`
}

type chatRequest struct {
	Agent   string `json:"agent"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes {"error": <user message>} with a status derived from err
func writeJSONError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": apperrors.UserMessage(err)})
}

func (s *Server) SessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.controller.Snapshot())
	}
}

func (s *Server) ConnectHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attempt, err := s.controller.Connect(r.Context())
		if err != nil {
			log.Err(err).Msg("Connect failed")
			writeJSONError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, connectResponse{AttemptID: attempt.ID, DialogURL: attempt.DialogURL})
	}
}

func (s *Server) DisconnectHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := s.controller.UserID()
		if err := s.controller.Disconnect(r.Context()); err != nil {
			log.Err(err).Msg("Disconnect error")
		}
		if err := s.agent.Clear(userID); err != nil {
			log.Err(err).Msg("Failed to clear conversations")
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) StocksHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, stocksResponse{Loading: s.poller.Loading(), Stocks: s.poller.Snapshot()})
	}
}

func (s *Server) GetCompanyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, companyResponse{Symbol: s.company.Get()})
	}
}

// PutCompanyHandler changes the selection; refused while the agent is
// answering.
func (s *Server) PutCompanyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req companyResponse
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, apperrors.Wrapf(apperrors.ErrInvalidRequest, "decode company"))
			return
		}
		if !s.agent.WhenIdle(func() { s.company.Set(req.Symbol) }) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "The agent is still answering."})
			return
		}
		writeJSON(w, http.StatusOK, companyResponse{Symbol: s.company.Get()})
	}
}

func (s *Server) AgentChatHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, apperrors.Wrapf(apperrors.ErrInvalidRequest, "decode chat request"))
			return
		}
		agentType, err := agent.ParseType(req.Agent)
		if err != nil {
			writeJSONError(w, err)
			return
		}
		reply, err := s.agent.Ask(r.Context(), agentType, req.Message)
		if err != nil {
			writeJSONError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, reply)
	}
}

func (s *Server) AgentHistoryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agentType, err := agent.ParseType(r.URL.Query().Get("agent"))
		if err != nil {
			writeJSONError(w, err)
			return
		}
		conv, err := s.agent.History(agentType)
		if err != nil {
			writeJSONError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, conv)
	}
}
