package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/fingreat/agent"
	"github.com/jrsteele09/fingreat/authcallback"
	"github.com/jrsteele09/fingreat/company"
	"github.com/jrsteele09/fingreat/internal/config"
	"github.com/jrsteele09/fingreat/market"
	"github.com/jrsteele09/fingreat/session"
	"github.com/jrsteele09/fingreat/window"
	"github.com/rs/zerolog/log"
)

// Deps are the components the HTTP surface drives.
type Deps struct {
	Controller *session.Controller
	Callback   *authcallback.Handler
	Bus        *window.Bus
	Hub        *Hub
	Poller     *market.Poller
	Company    *company.Selection
	Agent      *agent.Service
}

type Server struct {
	env    string // Environment (e.g., "DEV", "PROD")
	mux    *http.ServeMux
	routes []string
	config config.Config
	origin string

	controller *session.Controller
	callback   *authcallback.Handler
	bus        *window.Bus
	hub        *Hub
	poller     *market.Poller
	company    *company.Selection
	agent      *agent.Service
}

func New(c config.Config, deps Deps) *Server {
	s := &Server{
		env:        c.GetEnv(),
		mux:        http.NewServeMux(),
		config:     c,
		origin:     c.GetOrigin(),
		controller: deps.Controller,
		callback:   deps.Callback,
		bus:        deps.Bus,
		hub:        deps.Hub,
		poller:     deps.Poller,
		company:    deps.Company,
		agent:      deps.Agent,
	}

	s.initRoutes()
	s.logRoutes()

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// Start runs the relay pumps until ctx is done: bus messages, session
// changes, quote updates and company changes are pushed to connected tabs.
func (s *Server) Start(ctx context.Context) {
	go s.hub.Run(ctx, s.origin)
	go s.pumpSession(ctx)
	go s.pumpStocks(ctx)
	go s.pumpCompany(ctx)
}

func (s *Server) pumpSession(ctx context.Context) {
	updates, unsubscribe := s.controller.Subscribe()
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-updates:
			s.hub.Broadcast(eventSession, snap)
		}
	}
}

func (s *Server) pumpStocks(ctx context.Context) {
	updates := make(chan []*market.Stock, 1)
	s.poller.Subscribe(updates)
	defer s.poller.Unsubscribe(updates)
	for {
		select {
		case <-ctx.Done():
			return
		case stocks := <-updates:
			s.hub.Broadcast(eventStocks, stocks)
		}
	}
}

func (s *Server) pumpCompany(ctx context.Context) {
	updates, unsubscribe := s.company.Subscribe()
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case symbol := <-updates:
			s.hub.Broadcast(eventCompany, companyResponse{Symbol: symbol})
		}
	}
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func colouredMethod(method string) string {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		return color + paddedMethod + ResetColor
	}
	return Gray + paddedMethod + ResetColor
}

func logRoute(method, path string) {
	log.Info().Msgf("[%-19s] %s", colouredMethod(method), path)
}

func logError(method, path, error string) {
	log.Error().Msgf("[%-19s] %s %s", colouredMethod(method), path, Red+error+ResetColor)
}
