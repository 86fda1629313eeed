package engine

import "errors"

var (
	// ErrInvalidIndex is the error form of a reveal outside the board
	ErrInvalidIndex = errors.New("card index out of range")
	// ErrInvalidMove is the error form of a reveal on a matched or face-up card
	ErrInvalidMove = errors.New("invalid move")
	// ErrMalformedState is returned when a record cannot be turned back into a GameState
	ErrMalformedState = errors.New("malformed game state")
	// ErrInvalidDeck is returned for decks that are not made of complete pairs
	ErrInvalidDeck = errors.New("invalid deck")
)

var (
	// ErrTurnPending is returned when the opponent is asked to play while a
	// first card is still waiting for its partner
	ErrTurnPending = errors.New("a turn is already in progress")
	// ErrGameComplete is returned when there is nothing left to reveal
	ErrGameComplete = errors.New("game is already complete")
)
