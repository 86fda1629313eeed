// Package websocket provides live board updates for the memory match game.
//
// Architecture:
//
// A central Hub owns every connection. Registration, removal, broadcasting
// and client counts all go through channels served by Hub.Run, so the
// session map is only touched by that goroutine. Each client has a read
// pump (keeps the connection alive, detects disconnects) and a write pump
// (delivers queued messages and pings).
//
// Message Protocol:
//
// Outgoing messages are JSON:
//   - {"session_id": "...", "event": "board_update", "board": {...}}
//   - {"session_id": "...", "event": "game_events", "events": [...]}
//
// Boards are client views: values of face-down cards are never sent.
// Incoming messages are ignored.
//
// Usage:
//
//	hub := websocket.NewHub(logger, "https://game.example")
//	go hub.Run(ctx)
//
//	router.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
//		hub.ServeWS(w, r, r.URL.Query().Get("session"))
//	})
//	hub.BroadcastBoard(sessionID, board)
package websocket
