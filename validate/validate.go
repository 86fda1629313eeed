// Package validate checks deck files before the server loads them. Unlike
// the loader, which stops at the first problem, it collects every error in
// a file and adds a short summary of the decks that pass.
package validate

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wricardo/mcp-training/memorygame/game/engine"
)

// Result captures the outcome of validating a single file.
type Result struct {
	File   string   `json:"file"`
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
	// Notes describe a valid deck
	Notes []string `json:"notes,omitempty"`
}

func (r *Result) fail(format string, args ...interface{}) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// IsDeckFile reports whether name has a deck file extension
func IsDeckFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}

// File loads and validates a single deck file.
func File(path string) Result {
	result := Result{
		File:  filepath.Base(path),
		Valid: true,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		result.fail("Failed to read file: %v", err)
		return result
	}

	deck, err := engine.ParseDeckConfig(data, filepath.Ext(path))
	if err != nil {
		result.fail("Invalid %s: %v", formatName(path), err)
		return result
	}

	Deck(deck, &result)
	return result
}

// Deck checks deck into result
func Deck(deck *engine.DeckConfig, result *Result) {
	if strings.TrimSpace(deck.Name) == "" {
		result.fail("name is required")
	}
	if strings.TrimSpace(deck.Description) == "" {
		result.fail("description is required")
	}

	if deck.Pairs < engine.MinPairs || deck.Pairs > engine.MaxPairs {
		result.fail("pairs must be between %d and %d, got %d", engine.MinPairs, engine.MaxPairs, deck.Pairs)
	}
	if deck.OpponentMemory < 0 {
		result.fail("opponent_memory cannot be negative, got %d", deck.OpponentMemory)
	} else if deck.Pairs > 0 && deck.OpponentMemory > deck.Cards() {
		result.fail("opponent_memory (%d) cannot exceed the card count (%d)", deck.OpponentMemory, deck.Cards())
	}

	messages := []struct {
		key      string
		value    string
		required bool
		verbs    int
	}{
		{"welcome", deck.Messages.Welcome, true, 0},
		{"match", deck.Messages.Match, false, 1},
		{"no_match", deck.Messages.NoMatch, false, 0},
		{"victory", deck.Messages.Victory, true, 1},
		{"rejected", deck.Messages.Rejected, false, 0},
	}
	for _, msg := range messages {
		if msg.value == "" {
			if msg.required {
				result.fail("Missing required message: %s", msg.key)
			}
			continue
		}
		if got := countVerbs(msg.value); got != msg.verbs {
			result.fail("messages.%s must contain %d %%d placeholder(s), found %d", msg.key, msg.verbs, got)
		}
	}

	// the loader's rules are authoritative
	if result.Valid {
		if err := engine.ValidateDeckConfig(deck); err != nil {
			result.fail("%v", err)
		}
	}

	if !result.Valid {
		return
	}

	memory := "perfect recall"
	if deck.OpponentMemory > 0 {
		memory = fmt.Sprintf("remembers %d of %d cards", deck.OpponentMemory, deck.Cards())
	}
	result.Notes = append(result.Notes,
		fmt.Sprintf("✓ Name: %s", deck.Name),
		fmt.Sprintf("✓ Board: %d cards (%d pairs)", deck.Cards(), deck.Pairs),
		fmt.Sprintf("✓ CPU: %s", memory),
	)
}

// Dir validates every deck file in dir, sorted by file name
func Dir(dir string) ([]Result, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read deck directory: %w", err)
	}

	var results []Result
	for _, entry := range entries {
		if entry.IsDir() || !IsDeckFile(entry.Name()) {
			continue
		}
		results = append(results, File(filepath.Join(dir, entry.Name())))
	}

	sort.Slice(results, func(i, j int) bool { return results[i].File < results[j].File })
	return results, nil
}

// countVerbs counts %d verbs, ignoring escaped percent signs
func countVerbs(s string) int {
	n := 0
	for i := 0; i < len(s)-1; i++ {
		if s[i] != '%' {
			continue
		}
		if s[i+1] == 'd' {
			n++
		}
		i++
	}
	return n
}

func formatName(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "YAML"
	default:
		return "JSON"
	}
}
