package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Pages
	RouteIndex        = "/{$}"
	RouteAuthCallback = "/auth"

	// Session API
	RouteAPIPrefix            = "/api/"
	RouteAPISession           = "/api/session"
	RouteAPISessionConnect    = "/api/session/connect"
	RouteAPISessionDisconnect = "/api/session/disconnect"

	// Dashboard API
	RouteAPIStocks  = "/api/stocks"
	RouteAPICompany = "/api/company"

	// Agent API
	RouteAPIAgentChat    = "/api/agent/chat"
	RouteAPIAgentHistory = "/api/agent/history"

	// Browser relay
	RouteWebSocket = "/ws"

	// Static Asset Routes (patterns)
	RouteStatic = "/static/{file}"
)
