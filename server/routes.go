package server

import (
	"net/http"
	"strings"
)

func (s *Server) initRoutes() {
	s.RegisterRouteHandler("GET "+RouteIndex, ChainMiddleware(s.IndexHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteAuthCallback, ChainMiddleware(s.AuthCallbackHandler(), s.HTMLMiddleWare()...))

	// Session
	s.RegisterRouteHandler("GET "+RouteAPISession, ChainMiddleware(s.SessionHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAPISessionConnect, ChainMiddleware(s.ConnectHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAPISessionDisconnect, ChainMiddleware(s.DisconnectHandler(), s.APIMiddleware()...))

	// Dashboard
	s.RegisterRouteHandler("GET "+RouteAPIStocks, ChainMiddleware(s.StocksHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAPICompany, ChainMiddleware(s.GetCompanyHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("PUT "+RouteAPICompany, ChainMiddleware(s.PutCompanyHandler(), s.APIMiddleware()...))

	// Agent
	s.RegisterRouteHandler("POST "+RouteAPIAgentChat, ChainMiddleware(s.AgentChatHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAPIAgentHistory, ChainMiddleware(s.AgentHistoryHandler(), s.APIMiddleware()...))

	// Preflight for every API route
	s.RegisterRouteHandler("OPTIONS "+RouteAPIPrefix, ChainMiddleware(func(http.ResponseWriter, *http.Request) {}, s.APIMiddleware()...))

	s.RegisterRouteFunc("GET "+RouteWebSocket, s.hub.ServeWS)
	s.RegisterRouteHandler("GET "+RouteStatic, ChainMiddleware(s.serveFileHandler(), s.HTMLMiddleWare(s.CacheMiddleware, s.CompressionMiddleware)...))
}

func (s *Server) serveFileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filePath := strings.TrimPrefix(r.URL.Path, "/static/")
		if filePath == "" {
			http.Error(w, "404 - Page Not Found", http.StatusNotFound)
			return
		}
		err := StreamFile(w, r, filePath)
		if err != nil {
			logError("GET", filePath, err.Error())
			http.Error(w, "404 - Page Not Found", http.StatusNotFound)
			return
		}
	}
}
