// Package api provides the HTTP interface of the memory match game.
//
// Endpoints:
//
// Session Management:
//   - POST /api/sessions - Create a session ({"deck_id": "easy"}, optional)
//   - GET /api/sessions - List sessions (sort=created|accessed, order=asc|desc, limit)
//   - GET /api/sessions/{id} - Get a session with its board
//   - DELETE /api/sessions/{id} - Delete a session
//
// Game Operations:
//   - GET /api/sessions/{id}/board - Current board, face-down values hidden
//   - POST /api/sessions/{id}/flip - Reveal one card ({"index": 3})
//   - POST /api/sessions/{id}/bulk-flip - Reveal several cards ({"indices": [0, 5]})
//   - POST /api/sessions/{id}/cpu-turn - Let the opponent play a turn
//   - POST /api/sessions/{id}/new-game - Deal a fresh game in the session
//   - GET /api/sessions/{id}/history - Paginated reveal history (page, limit, order)
//
// Configuration:
//   - GET /api/configs - List decks
//   - GET /api/configs/{name} - Get one deck
//   - POST /api/configs - Save a deck (deck fields plus an optional "id")
//
// Browser game (enabled with WithCookies):
//   - GET / - Start a game and serve static/index.html when present
//   - GET /game - Current game of the cookie's session
//   - POST /flip/{index} - Reveal a card; the body is the engine move result
//   - POST /new-game - Deal again, returns {"success": true}
//   - POST /cpu-turn - Let the opponent play a turn
//
// The browser cookie is an HS256 token naming the session. It is refreshed
// on every request and expires after the configured TTL.
//
// Other:
//   - GET /ws?session={id} - WebSocket board updates
//   - GET /health - Health check
//   - /mcp - MCP endpoint (WithMCPHandler)
//
// Move results are relayed unchanged: a rejected reveal is a 200 response
// with "valid": false and a reason.
//
// Error Handling:
//
// Errors are returned as JSON, {"error": "message"}, with these statuses:
//   - 400 malformed requests and invalid decks or session ids
//   - 404 unknown sessions and decks
//   - 409 CPU turns requested mid-turn or after the game ended
//   - 429 rate limited; the body carries "backoff" in seconds
//
// Usage:
//
//	srv := api.NewServer(gameService, hub,
//		api.WithLogger(logger),
//		api.WithCookies(cookies),
//		api.WithRateLimiter(limiter),
//	)
//	http.ListenAndServe(":8080", srv)
package api
