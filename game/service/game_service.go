package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wricardo/mcp-training/memorygame/game/engine"
)

var (
	ErrTurnInProgress = errors.New("a turn is in progress")
	ErrGameOver       = errors.New("game is over")
	ErrInvalidRequest = errors.New("invalid request")
	// ErrDeckNotFound is wrapped by deck stores when a deck id is unknown
	ErrDeckNotFound   = errors.New("configuration not found")
)

// GameService defines all game-related operations
type GameService interface {
	// Session Management
	CreateSession(ctx context.Context, deckID string) (*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Game Operations
	Flip(ctx context.Context, sessionID string, index int) (*MoveOutcome, error)
	BulkFlip(ctx context.Context, sessionID string, indices []int) (*BulkFlipResult, error)
	CPUTurn(ctx context.Context, sessionID string) (*CPUTurnResult, error)
	NewGame(ctx context.Context, sessionID string) (*SessionInfo, error)

	// Game State
	GetBoard(ctx context.Context, sessionID string) (*engine.BoardView, error)
	GetMoveHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error)

	// Configuration
	ListConfigs(ctx context.Context) ([]*ConfigInfo, error)
	LoadConfig(ctx context.Context, deckID string) (*engine.DeckConfig, error)
	SaveConfig(ctx context.Context, deckID string, config *engine.DeckConfig) error
}

// SessionManager defines session storage operations
type SessionManager interface {
	Create(id, deckID string, deck *engine.DeckConfig) (*Session, error)
	Get(id string) (*Session, error)
	List() []*Session
	Delete(id string) error
	UpdateLastAccessed(id string) error
	Save(id string) error
}

// ConfigManager handles deck configuration loading
type ConfigManager interface {
	LoadConfig(name string) (*engine.DeckConfig, error)
	ListConfigs() ([]*ConfigInfo, error)
	GetDefault() *engine.DeckConfig
	DefaultName() string
	SaveConfig(name string, config *engine.DeckConfig) error
}

// EventPublisher fans game events out to other processes
type EventPublisher interface {
	Publish(ctx context.Context, sessionID string, events []GameEvent) error
}

// Session represents an active game session.
//
// Everything below the identifying fields is guarded by the session lock;
// the service holds it across load, move and save.
type Session struct {
	ID             string
	DeckID         string
	Deck           *engine.DeckConfig
	Engine         *engine.GameEngine
	CreatedAt      time.Time
	LastAccessedAt time.Time

	State       *engine.GameState
	Opponent    *engine.Memory
	Scores      Scoreboard
	History     []MoveHistoryEntry
	GamesPlayed int

	mu sync.Mutex
}

// NewSession starts a session with a freshly shuffled game
func NewSession(id, deckID string, deck *engine.DeckConfig) (*Session, error) {
	eng, err := engine.NewEngine(deck)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	now := time.Now()
	return &Session{
		ID:             id,
		DeckID:         deckID,
		Deck:           deck,
		Engine:         eng,
		CreatedAt:      now,
		LastAccessedAt: now,
		State:          eng.NewGame(),
		Opponent:       engine.NewMemory(deck.OpponentMemory),
		GamesPlayed:    1,
	}, nil
}

// Lock acquires the session for a load-modify-save cycle
func (s *Session) Lock() {
	s.mu.Lock()
}

// Unlock releases the session
func (s *Session) Unlock() {
	s.mu.Unlock()
}

// CorruptSessionError is returned by session stores when a stored session
// exists but its game state cannot be restored.
type CorruptSessionError struct {
	ID     string
	DeckID string
	Err    error
}

func (e *CorruptSessionError) Error() string {
	return fmt.Sprintf("session %s has corrupt state: %v", e.ID, e.Err)
}

func (e *CorruptSessionError) Unwrap() error {
	return e.Err
}
