package session

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/wricardo/mcp-training/memorygame/game/engine"
	"github.com/wricardo/mcp-training/memorygame/game/service"
)

// SessionPersistence defines the interface for persisting sessions.
//
// Save reads session fields without locking; callers hold the session lock.
type SessionPersistence interface {
	// Save persists a session to storage
	Save(session *service.Session) error

	// Load retrieves a session from storage by ID. A record whose game state
	// cannot be restored yields a *service.CorruptSessionError.
	Load(id string) (*service.Session, error)

	// Delete removes a session from storage
	Delete(id string) error

	// ListAll returns all persisted session IDs
	ListAll() ([]string, error)

	// Exists checks if a session exists in storage
	Exists(id string) bool
}

// PersistedSessionData represents the JSON structure for persisted sessions
type PersistedSessionData struct {
	ID             string                     `json:"id"`
	DeckID         string                     `json:"deck_id"`
	CreatedAt      time.Time                  `json:"created_at"`
	LastAccessedAt time.Time                  `json:"last_accessed_at"`
	GameState      json.RawMessage            `json:"game_state"`
	Opponent       engine.MemoryRecord        `json:"opponent"`
	Scores         service.Scoreboard         `json:"scores"`
	History        []service.MoveHistoryEntry `json:"history"`
	GamesPlayed    int                        `json:"games_played"`
}

// sessionCodec converts sessions to and from their stored JSON form. Every
// backend shares it so the record layout is the same in each store.
type sessionCodec struct {
	configs service.ConfigManager
	indent  bool
}

func (c sessionCodec) encode(session *service.Session) ([]byte, error) {
	if session == nil {
		return nil, fmt.Errorf("session cannot be nil")
	}
	if session.State == nil {
		return nil, fmt.Errorf("session %s has no game state", session.ID)
	}

	state, err := engine.EncodeRecord(session.State)
	if err != nil {
		return nil, fmt.Errorf("failed to encode game state: %w", err)
	}

	data := PersistedSessionData{
		ID:             session.ID,
		DeckID:         session.DeckID,
		CreatedAt:      session.CreatedAt,
		LastAccessedAt: session.LastAccessedAt,
		GameState:      state,
		Scores:         session.Scores,
		History:        session.History,
		GamesPlayed:    session.GamesPlayed,
	}
	if session.Opponent != nil {
		data.Opponent = session.Opponent.Snapshot()
	}

	if c.indent {
		return json.MarshalIndent(data, "", "  ")
	}
	return json.Marshal(data)
}

// decode rebuilds a session. Records that cannot be turned back into a
// playable game are reported as *service.CorruptSessionError.
func (c sessionCodec) decode(id string, raw []byte) (*service.Session, error) {
	var data PersistedSessionData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, &service.CorruptSessionError{
			ID:  id,
			Err: fmt.Errorf("%w: %v", engine.ErrMalformedState, err),
		}
	}
	if data.ID == "" {
		data.ID = id
	}

	corrupt := func(err error) error {
		return &service.CorruptSessionError{ID: data.ID, DeckID: data.DeckID, Err: err}
	}

	deck, err := c.configs.LoadConfig(data.DeckID)
	if err != nil {
		return nil, corrupt(fmt.Errorf("deck %q unavailable: %w", data.DeckID, err))
	}

	state, err := engine.DecodeRecord(data.GameState)
	if err != nil {
		return nil, corrupt(err)
	}
	if len(state.Cards) != deck.Cards() {
		return nil, corrupt(fmt.Errorf("%w: deck %q has %d cards, stored game has %d",
			engine.ErrMalformedState, data.DeckID, deck.Cards(), len(state.Cards)))
	}

	eng, err := engine.NewEngine(deck)
	if err != nil {
		return nil, fmt.Errorf("failed to create game engine: %w", err)
	}

	opponent := engine.RestoreMemory(data.Opponent)
	if data.Opponent.Capacity == 0 && len(data.Opponent.Entries) == 0 {
		opponent = engine.NewMemory(deck.OpponentMemory)
	}

	gamesPlayed := data.GamesPlayed
	if gamesPlayed < 1 {
		gamesPlayed = 1
	}

	return &service.Session{
		ID:             data.ID,
		DeckID:         data.DeckID,
		Deck:           deck,
		Engine:         eng,
		CreatedAt:      data.CreatedAt,
		LastAccessedAt: data.LastAccessedAt,
		State:          state,
		Opponent:       opponent,
		Scores:         data.Scores,
		History:        data.History,
		GamesPlayed:    gamesPlayed,
	}, nil
}
