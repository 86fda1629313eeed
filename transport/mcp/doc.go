// Package mcp provides the Model Context Protocol interface of the memory match game.
//
// The Client registers MCP tools that proxy every call to the REST API, so an
// agent plays exactly the same game as a browser or an HTTP client.
//
// MCP Tools:
//   - create_session: Create a session, optionally with a deck_id
//   - list_sessions: List active sessions
//   - get_session: Session details with its board
//   - board: Current board; face-down cards print as [??]
//   - flip_card: Reveal one card by index
//   - bulk_flip: Reveal several cards in order
//   - cpu_turn: Let the computer opponent play a turn
//   - new_game: Deal again in the same session
//   - move_history: Paginated reveal history
//   - list_configs: Available decks
//   - game_instructions: Rules and board legend
//
// Transport Modes:
//   - Stdio: server.ServeStdio(client.GetMCPServer())
//   - HTTP: client.HTTPHandler() mounted on /mcp
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	if err := server.ServeStdio(client.GetMCPServer()); err != nil {
//		log.Fatal(err)
//	}
package mcp
