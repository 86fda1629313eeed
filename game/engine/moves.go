package engine

// ApplyMove reveals the card at index and resolves the turn when it is the
// second reveal. Rejected moves leave the state untouched and come back as
// results with Valid set to false; they are never returned as errors.
//
// A non-matching pair is turned face-down again before ApplyMove returns, so
// showing both values for a moment is up to the caller, which has them in
// the result.
func (gs *GameState) ApplyMove(index int) MoveResult {
	if index < 0 || index >= len(gs.Cards) {
		return MoveResult{Valid: false, Reason: ReasonOutOfRange, CardIndex: index, Score: gs.Score}
	}

	card := &gs.Cards[index]
	if card.Matched {
		return MoveResult{Valid: false, Reason: ReasonAlreadyMatched, CardIndex: index, Score: gs.Score}
	}
	if card.FaceUp {
		return MoveResult{Valid: false, Reason: ReasonAlreadyFlipped, CardIndex: index, Score: gs.Score}
	}

	card.FaceUp = true

	if gs.PendingFirstIndex == nil {
		gs.PendingFirstIndex = intPtr(index)
		return MoveResult{
			Valid:     true,
			CardIndex: index,
			CardValue: card.Value,
			Score:     gs.Score,
		}
	}

	firstIndex := *gs.PendingFirstIndex
	first := &gs.Cards[firstIndex]
	gs.PendingFirstIndex = nil

	result := MoveResult{
		Valid:        true,
		TurnComplete: true,
		CardIndex:    index,
		CardValue:    card.Value,
		FirstIndex:   intPtr(firstIndex),
		SecondIndex:  intPtr(index),
		FirstValue:   first.Value,
	}

	if first.Value == card.Value {
		first.Matched = true
		card.Matched = true
		gs.Score++
		result.IsMatch = true
	} else {
		first.FaceUp = false
		card.FaceUp = false
	}

	result.Score = gs.Score
	result.GameOver = gs.IsComplete()
	return result
}

// IsPending reports whether a turn is waiting for its second reveal
func (gs *GameState) IsPending() bool {
	return gs.PendingFirstIndex != nil
}

// IsComplete reports whether every card has been matched
func (gs *GameState) IsComplete() bool {
	if len(gs.Cards) == 0 {
		return false
	}
	for _, c := range gs.Cards {
		if !c.Matched {
			return false
		}
	}
	return true
}

// PairsTotal returns the number of pairs in the deck
func (gs *GameState) PairsTotal() int {
	return len(gs.Cards) / 2
}

// PairsRemaining returns the number of pairs not yet matched
func (gs *GameState) PairsRemaining() int {
	return gs.PairsTotal() - CountMatchedPairs(gs.Cards)
}

// Clone returns a deep copy of the state
func (gs *GameState) Clone() *GameState {
	clone := &GameState{
		Cards: make([]Card, len(gs.Cards)),
		Score: gs.Score,
	}
	copy(clone.Cards, gs.Cards)
	if gs.PendingFirstIndex != nil {
		clone.PendingFirstIndex = intPtr(*gs.PendingFirstIndex)
	}
	return clone
}

// View projects the state for clients. Values of face-down cards are left out.
func (gs *GameState) View() BoardView {
	view := BoardView{
		Cards:          make([]CardView, len(gs.Cards)),
		Score:          gs.Score,
		PairsTotal:     gs.PairsTotal(),
		PairsRemaining: gs.PairsRemaining(),
		GameOver:       gs.IsComplete(),
	}
	for i, c := range gs.Cards {
		cv := CardView{Index: i, FaceUp: c.FaceUp, Matched: c.Matched}
		if c.FaceUp || c.Matched {
			cv.Value = c.Value
		}
		view.Cards[i] = cv
	}
	if gs.PendingFirstIndex != nil {
		view.PendingFirstIndex = intPtr(*gs.PendingFirstIndex)
	}
	return view
}
