package engine

import (
	"fmt"
	"math/rand/v2"
	"sync"
)

// Engine creates games for one deck configuration. Game state itself is
// never held by the engine; it is passed in and out explicitly.
type Engine interface {
	NewGame() *GameState
	GetConfig() *DeckConfig
	Pairs() int
}

// GameEngine implements the Engine interface
type GameEngine struct {
	config *DeckConfig

	// rng is only used when set through WithRand; access is guarded by mu
	// because *rand.Rand is not safe for concurrent use.
	rng *rand.Rand
	mu  sync.Mutex
}

// Option customises a GameEngine
type Option func(*GameEngine)

// WithRand makes shuffles use the given source, which gives reproducible decks
func WithRand(rng *rand.Rand) Option {
	return func(e *GameEngine) {
		e.rng = rng
	}
}

// NewEngine creates a new game engine with the provided deck configuration
func NewEngine(config *DeckConfig, opts ...Option) (*GameEngine, error) {
	if config == nil {
		return nil, fmt.Errorf("config validation: config is required")
	}
	if err := ValidateDeckConfig(config); err != nil {
		return nil, err
	}

	e := &GameEngine{config: config}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// NewEngineWithDefaults creates a new game engine with the classic deck
func NewEngineWithDefaults(opts ...Option) *GameEngine {
	e := &GameEngine{config: DefaultDeckConfig()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// GetConfig returns the deck configuration
func (e *GameEngine) GetConfig() *DeckConfig {
	return e.config
}

// Pairs returns the number of distinct values in a deck
func (e *GameEngine) Pairs() int {
	return e.config.Pairs
}

// NewGame builds a freshly shuffled game: values 1..N each twice, all face
// down, score zero and no pending card.
func (e *GameEngine) NewGame() *GameState {
	values := NewDeck(e.config.Pairs)
	e.shuffle(values)
	return newState(values)
}

func (e *GameEngine) shuffle(values []int) {
	swap := func(i, j int) { values[i], values[j] = values[j], values[i] }
	if e.rng == nil {
		rand.Shuffle(len(values), swap)
		return
	}
	e.mu.Lock()
	e.rng.Shuffle(len(values), swap)
	e.mu.Unlock()
}

// NewGameWithDeck builds a game from an already ordered deck. The deck must
// hold every value in 1..N exactly twice.
func NewGameWithDeck(values []int) (*GameState, error) {
	if err := ValidateDeck(values); err != nil {
		return nil, err
	}
	deck := make([]int, len(values))
	copy(deck, values)
	return newState(deck), nil
}

func newState(values []int) *GameState {
	cards := make([]Card, len(values))
	for i, v := range values {
		cards[i] = Card{Value: v}
	}
	return &GameState{
		Cards: cards,
		Score: 0,
	}
}
