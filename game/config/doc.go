// Package config provides deck configuration management for the memory match game.
//
// The config package handles:
//   - Loading deck configurations from JSON or YAML files
//   - Configuration validation
//   - Default deck management
//   - Deck discovery and listing
//
// Configuration Format:
//
// Decks are stored as .json, .yaml or .yml files in the configs directory;
// the file name without extension is the deck id used when creating a
// session. Each deck defines:
//   - The number of pairs on the board
//   - How many cards the CPU opponent can remember (0 for no limit)
//   - Messages shown on welcome, match, mismatch, rejection and victory
//
// Usage:
//
//	manager, err := config.NewManager("configs")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	deck, err := manager.LoadConfig("easy")
//	defaultDeck := manager.GetDefault()
//	decks, err := manager.ListConfigs()
//
// When the directory holds no classic deck, the first valid deck becomes the
// default, and when it holds none at all the built-in 22 pair deck is used.
package config
