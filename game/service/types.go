package service

import (
	"time"

	"github.com/wricardo/mcp-training/memorygame/game/engine"
)

// Actors recorded in history and scoreboards
const (
	ActorPlayer = "player"
	ActorCPU    = "cpu"
)

// MaxHistoryEntries bounds the moves a session keeps; older ones are dropped
const MaxHistoryEntries = 500

// Event types
const (
	EventMove       = "move"
	EventMatch      = "match"
	EventMismatch   = "mismatch"
	EventRejected   = "rejected"
	EventVictory    = "victory"
	EventNewGame    = "new_game"
	EventCPUTurn    = "cpu_turn"
	EventStateReset = "state_reset"
)

// Scoreboard attributes matched pairs to whoever found them
type Scoreboard struct {
	Player int `json:"player"`
	CPU    int `json:"cpu"`
}

// SessionInfo provides information about a game session
type SessionInfo struct {
	ID             string             `json:"id"`
	DeckID         string             `json:"deck_id"`
	DeckName       string             `json:"deck_name"`
	CreatedAt      time.Time          `json:"created_at"`
	LastAccessedAt time.Time          `json:"last_accessed_at"`
	Board          engine.BoardView   `json:"board"`
	Scores         Scoreboard         `json:"scores"`
	GamesPlayed    int                `json:"games_played"`
	TotalMoves     int                `json:"total_moves"`
	Message        string             `json:"message,omitempty"`
	Deck           *engine.DeckConfig `json:"deck,omitempty"`
	Events         []GameEvent        `json:"events,omitempty"`
}

// MoveOutcome is the result of one player reveal. Result is the engine's
// move result, unchanged.
type MoveOutcome struct {
	Result  engine.MoveResult `json:"result"`
	Board   engine.BoardView  `json:"board"`
	Scores  Scoreboard        `json:"scores"`
	Message string            `json:"message"`
	Events  []GameEvent       `json:"events,omitempty"`
}

// BulkFlipResult contains the result of several reveals in one call
type BulkFlipResult struct {
	RequestedFlips int                 `json:"requested_flips"`
	FlipsExecuted  int                 `json:"flips_executed"`
	Success        bool                `json:"success"`
	Results        []engine.MoveResult `json:"results"`
	StoppedReason  string              `json:"stopped_reason,omitempty"`   // Human-readable reason
	StopReasonCode string              `json:"stop_reason_code,omitempty"` // out_of_range|already_matched|already_flipped|victory
	StoppedOnFlip  int                 `json:"stopped_on_flip,omitempty"`  // 1-based index of the flip that caused stop
	Truncated      bool                `json:"truncated,omitempty"`
	Limit          int                 `json:"limit,omitempty"`
	ScoreDelta     int                 `json:"score_delta"`
	GameOver       bool                `json:"game_over"`
	Board          engine.BoardView    `json:"board"`
	Scores         Scoreboard          `json:"scores"`
	Message        string              `json:"message,omitempty"`
	Events         []GameEvent         `json:"events"`
}

// CPUTurnResult contains both reveals of a CPU turn
type CPUTurnResult struct {
	Moves    []engine.MoveResult `json:"moves"`
	Match    bool                `json:"match"`
	GameOver bool                `json:"game_over"`
	Board    engine.BoardView    `json:"board"`
	Scores   Scoreboard          `json:"scores"`
	Message  string              `json:"message,omitempty"`
	Events   []GameEvent         `json:"events"`
}

// GameEvent represents an event that occurred during gameplay
type GameEvent struct {
	Type      string    `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
	Actor     string    `json:"actor,omitempty"`
	Message   string    `json:"message"`
	CardIndex *int      `json:"card_index,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// MoveHistoryEntry records one reveal attempt
type MoveHistoryEntry struct {
	MoveNumber   int       `json:"move_number"`
	Game         int       `json:"game"`
	Actor        string    `json:"actor"`
	CardIndex    int       `json:"card_index"`
	Valid        bool      `json:"valid"`
	Reason       string    `json:"reason,omitempty"`
	Value        int       `json:"value,omitempty"`
	TurnComplete bool      `json:"turn_complete"`
	IsMatch      bool      `json:"is_match"`
	Score        int       `json:"score"`
	Timestamp    time.Time `json:"timestamp"`
}

// HistoryOptions configures move history retrieval
type HistoryOptions struct {
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Order string `json:"order"` // "asc" or "desc"
}

// HistoryResponse contains paginated move history
type HistoryResponse struct {
	Moves       []MoveHistoryEntry `json:"moves"`
	TotalMoves  int                `json:"total_moves"`
	Page        int                `json:"page"`
	PageSize    int                `json:"page_size"`
	TotalPages  int                `json:"total_pages"`
	HasNext     bool               `json:"has_next"`
	HasPrevious bool               `json:"has_previous"`
}

// ConfigInfo provides information about a deck configuration
type ConfigInfo struct {
	Filename       string `json:"filename"`
	ConfigID       string `json:"config_id"` // The identifier to use for session creation
	Name           string `json:"name"`      // Display name
	Description    string `json:"description"`
	Pairs          int    `json:"pairs"`
	OpponentMemory int    `json:"opponent_memory"`
}
