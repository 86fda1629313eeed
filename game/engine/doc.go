// Package engine provides the core game logic for the memory match game.
//
// A game is a shuffled deck of paired values laid out face down. Each turn
// reveals two cards: a matching pair stays face up and scores a point, a
// mismatch is turned face down again immediately. The game is won when every
// pair is matched.
//
// Core Types:
//
// GameState holds the whole game and is passed around explicitly; the
// engine keeps no state of its own between calls. GameEngine builds new
// games from a DeckConfig. Record is the storage form of a GameState used to
// carry it between stateless requests, and Memory is the optional CPU
// opponent that plays through the same ApplyMove entry point as a player.
//
// Usage:
//
//	gameEngine, err := engine.NewEngine(engine.DefaultDeckConfig())
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	state := gameEngine.NewGame()
//	result := state.ApplyMove(0)
//	if !result.Valid {
//		fmt.Println(result.Reason)
//	}
//
//	record := engine.Serialize(state)
//	restored, err := engine.Deserialize(record)
//
// GameState is not safe for concurrent use. Callers serialize moves per game.
package engine
