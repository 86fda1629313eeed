package engine

// Rejection reasons reported in MoveResult.Reason
const (
	ReasonOutOfRange     = "out_of_range"
	ReasonAlreadyMatched = "already matched"
	ReasonAlreadyFlipped = "already flipped"
)

const (
	// Validation constants
	MinPairs     = 1
	MaxPairs     = 100
	DefaultPairs = 22
	MaxBulkFlips = 50

	WebSocketBufferSize = 256
)

// Card is a single position on the board
type Card struct {
	Value   int  `json:"value"`
	FaceUp  bool `json:"faceUp"`
	Matched bool `json:"matched"`
}

// GameState is the complete snapshot of one game.
//
// Cards keep the order chosen at creation. PendingFirstIndex is set only
// between the first and second reveal of a turn.
type GameState struct {
	Cards             []Card `json:"cards"`
	Score             int    `json:"score"`
	PendingFirstIndex *int   `json:"pendingFirstIndex"`
}

// MoveResult is the outcome of a single reveal. Its JSON field names are the
// response contract relayed to clients.
type MoveResult struct {
	Valid        bool   `json:"valid"`
	Reason       string `json:"reason,omitempty"`
	TurnComplete bool   `json:"turnComplete"`
	IsMatch      bool   `json:"isMatch"`
	CardIndex    int    `json:"cardIndex"`
	CardValue    int    `json:"cardValue,omitempty"`
	FirstIndex   *int   `json:"firstIndex,omitempty"`
	SecondIndex  *int   `json:"secondIndex,omitempty"`
	FirstValue   int    `json:"firstValue,omitempty"`
	Score        int    `json:"score"`
	GameOver     bool   `json:"gameOver"`
}

// Err maps a rejected result onto the engine's sentinel errors. It returns
// nil for accepted moves.
func (r MoveResult) Err() error {
	if r.Valid {
		return nil
	}
	if r.Reason == ReasonOutOfRange {
		return ErrInvalidIndex
	}
	return ErrInvalidMove
}

// CardView is the client-safe projection of a card: face-down values are hidden.
type CardView struct {
	Index   int  `json:"index"`
	FaceUp  bool `json:"faceUp"`
	Matched bool `json:"matched"`
	Value   int  `json:"value,omitempty"`
}

// BoardView is what callers outside the server may see of a GameState
type BoardView struct {
	Cards             []CardView `json:"cards"`
	Score             int        `json:"score"`
	PendingFirstIndex *int       `json:"pendingFirstIndex,omitempty"`
	PairsTotal        int        `json:"pairsTotal"`
	PairsRemaining    int        `json:"pairsRemaining"`
	GameOver          bool       `json:"gameOver"`
}
