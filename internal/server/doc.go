// Package server assembles the supplydash HTTP server.
//
// Routes:
//
//	POST /api/auth/token        code exchange (alias /api/qlik/token)
//	GET|POST /api/auth/guest    guest login (alias /api/qlik/guest)
//	GET /api/...                sales data API, when a database is configured
//	GET /health                 liveness with database and tunnel status
//	<tunnel prefixes>           WebSocket upgrade proxy
//	/                           static frontend, when server.staticDir is set
//
// Upgrade requests outside the tunnel prefixes are dropped without a
// response.
//
//	browser ──HTTP──▶ [ CORS / logging ] ──▶ mux ──▶ broker ──HTTPS──▶ provider
//	   │                                      │
//	   └──WS upgrade──▶ [ upgrade guard ] ──▶ proxy ──WSS──▶ analytics engine
package server
