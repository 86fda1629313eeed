package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DeckMessages are the texts shown to players at key moments of a game
type DeckMessages struct {
	Welcome  string `json:"welcome" yaml:"welcome"`
	Match    string `json:"match" yaml:"match"`
	NoMatch  string `json:"no_match" yaml:"no_match"`
	Victory  string `json:"victory" yaml:"victory"`
	Rejected string `json:"rejected" yaml:"rejected"`
}

// DeckConfig describes one playable deck
type DeckConfig struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Pairs       int    `json:"pairs" yaml:"pairs"`
	// OpponentMemory caps how many revealed cards the CPU remembers; 0 means no limit.
	OpponentMemory int          `json:"opponent_memory" yaml:"opponent_memory"`
	Messages       DeckMessages `json:"messages" yaml:"messages"`
}

// Cards returns the number of cards on the board
func (c *DeckConfig) Cards() int {
	return c.Pairs * 2
}

// ValidateDeckConfig validates a deck configuration for correctness and playability
func ValidateDeckConfig(config *DeckConfig) error {
	if config.Name == "" {
		return fmt.Errorf("config validation: name is required")
	}
	if config.Description == "" {
		return fmt.Errorf("config validation: description is required")
	}

	if config.Pairs < MinPairs || config.Pairs > MaxPairs {
		return fmt.Errorf("config validation: pairs must be between %d and %d, got %d", MinPairs, MaxPairs, config.Pairs)
	}
	if config.OpponentMemory < 0 || config.OpponentMemory > config.Cards() {
		return fmt.Errorf("config validation: opponent_memory must be between 0 and %d, got %d",
			config.Cards(), config.OpponentMemory)
	}

	if config.Messages.Welcome == "" {
		return fmt.Errorf("config validation: messages.welcome is required")
	}
	if config.Messages.Victory == "" {
		return fmt.Errorf("config validation: messages.victory is required")
	}
	if config.Messages.Match != "" && !strings.Contains(config.Messages.Match, "%d") {
		return fmt.Errorf("config validation: messages.match must contain %%d for score")
	}
	if !strings.Contains(config.Messages.Victory, "%d") {
		return fmt.Errorf("config validation: messages.victory must contain %%d for pair count")
	}

	return nil
}

// DefaultDeckConfig returns the classic 22 pair deck
func DefaultDeckConfig() *DeckConfig {
	return &DeckConfig{
		Name:           "Classic",
		Description:    "Twenty-two pairs, a CPU opponent with perfect recall",
		Pairs:          DefaultPairs,
		OpponentMemory: 0,
		Messages: DeckMessages{
			Welcome:  "Find all the pairs! Reveal two cards per turn.",
			Match:    "It's a match! Score: %d",
			NoMatch:  "No match, try again.",
			Victory:  "Victory! All %d pairs found!",
			Rejected: "That card can't be revealed.",
		},
	}
}

// LoadDeckConfig loads a deck configuration from a JSON or YAML file
func LoadDeckConfig(filename string) (*DeckConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	config, err := ParseDeckConfig(data, filepath.Ext(filename))
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file '%s': %w", filepath.Base(filename), err)
	}

	if err := ValidateDeckConfig(config); err != nil {
		return nil, err
	}
	return config, nil
}

// ParseDeckConfig decodes a deck from data; ext selects the format (".yaml",
// ".yml", anything else is JSON).
func ParseDeckConfig(data []byte, ext string) (*DeckConfig, error) {
	var config DeckConfig
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, err
		}
	default:
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, err
		}
	}
	return &config, nil
}
