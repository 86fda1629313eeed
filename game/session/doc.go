// Package session provides session management for the memory match game.
//
// The session package implements:
//   - Thread-safe session storage and retrieval
//   - UUID session ID generation
//   - Session lifecycle management and expiry
//   - Pluggable persistence (files, Redis, SQLite, BoltDB)
//
// Core Types:
//
// Manager keeps live sessions in memory, keyed case-insensitively, and falls
// back to its SessionPersistence when a session is not loaded. Every store
// writes the same PersistedSessionData JSON record: the deck id, timestamps,
// the engine record of the board, the CPU opponent's memory, the scoreboard
// and the move history.
//
// Concurrency:
//
// The manager lock guards the session map and access times. Game state is
// guarded by each session's own lock, which the game service holds from
// load to save; Save and UpdateLastAccessed expect the caller to hold it.
//
// Corrupt records:
//
// Loading a record whose game state cannot be restored returns a
// *service.CorruptSessionError. The record is left in place; creating a
// session under the same id overwrites it.
//
// Usage:
//
//	store, err := session.NewFilePersistence("sessions", configManager)
//	manager := session.NewManagerWithPersistence(store, logger)
//	if err := manager.LoadPersistedSessions(); err != nil {
//		log.Fatal(err)
//	}
//
//	sess, err := manager.Create("", "classic", configManager.GetDefault())
//	sess, err = manager.Get(sess.ID)
package session
