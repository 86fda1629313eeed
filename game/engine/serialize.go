package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// CardRecord is the stored form of a Card. Fields are pointers so that a
// missing field can be told apart from a zero value.
type CardRecord struct {
	Value   *int  `json:"value"`
	FaceUp  *bool `json:"faceUp"`
	Matched *bool `json:"matched"`
}

// Record is the storage-agnostic form of a GameState. Numeric fields are
// integers, so decoding 1.5 or "1" into a Record fails instead of coercing.
type Record struct {
	Cards             []CardRecord `json:"cards"`
	Score             *int         `json:"score"`
	PendingFirstIndex *int         `json:"pendingFirstIndex"`
}

// Serialize converts a state into a Record that shares no memory with it
func Serialize(gs *GameState) Record {
	rec := Record{
		Cards: make([]CardRecord, len(gs.Cards)),
		Score: intPtr(gs.Score),
	}
	for i, c := range gs.Cards {
		value, faceUp, matched := c.Value, c.FaceUp, c.Matched
		rec.Cards[i] = CardRecord{Value: &value, FaceUp: &faceUp, Matched: &matched}
	}
	if gs.PendingFirstIndex != nil {
		rec.PendingFirstIndex = intPtr(*gs.PendingFirstIndex)
	}
	return rec
}

// Deserialize rebuilds a GameState from a Record. Partial records and records
// that break the game invariants are rejected with an error wrapping
// ErrMalformedState; nothing is repaired.
func Deserialize(rec Record) (*GameState, error) {
	n := len(rec.Cards)
	if n == 0 || n%2 != 0 {
		return nil, fmt.Errorf("%w: need an even, non-zero number of cards, got %d", ErrMalformedState, n)
	}
	if rec.Score == nil {
		return nil, fmt.Errorf("%w: score is missing", ErrMalformedState)
	}

	pairs := n / 2
	gs := &GameState{Cards: make([]Card, n), Score: *rec.Score}
	seen := make(map[int][]int, pairs)
	openCount := 0

	for i, cr := range rec.Cards {
		if cr.Value == nil || cr.FaceUp == nil || cr.Matched == nil {
			return nil, fmt.Errorf("%w: card %d is missing fields", ErrMalformedState, i)
		}
		card := Card{Value: *cr.Value, FaceUp: *cr.FaceUp, Matched: *cr.Matched}
		if card.Value < 1 || card.Value > pairs {
			return nil, fmt.Errorf("%w: card %d has value %d outside 1..%d", ErrMalformedState, i, card.Value, pairs)
		}
		if card.Matched && !card.FaceUp {
			return nil, fmt.Errorf("%w: card %d is matched but face down", ErrMalformedState, i)
		}
		if card.FaceUp && !card.Matched {
			openCount++
		}
		seen[card.Value] = append(seen[card.Value], i)
		gs.Cards[i] = card
	}

	matchedPairs := 0
	for v := 1; v <= pairs; v++ {
		idx := seen[v]
		if len(idx) != 2 {
			return nil, fmt.Errorf("%w: value %d appears %d times", ErrMalformedState, v, len(idx))
		}
		a, b := gs.Cards[idx[0]], gs.Cards[idx[1]]
		if a.Matched != b.Matched {
			return nil, fmt.Errorf("%w: value %d is only half matched", ErrMalformedState, v)
		}
		if a.Matched {
			matchedPairs++
		}
	}
	if gs.Score != matchedPairs {
		return nil, fmt.Errorf("%w: score %d does not equal %d matched pairs", ErrMalformedState, gs.Score, matchedPairs)
	}

	if rec.PendingFirstIndex == nil {
		if openCount != 0 {
			return nil, fmt.Errorf("%w: %d unmatched cards face up with no pending turn", ErrMalformedState, openCount)
		}
		return gs, nil
	}

	p := *rec.PendingFirstIndex
	if p < 0 || p >= n {
		return nil, fmt.Errorf("%w: pending index %d out of range", ErrMalformedState, p)
	}
	if !gs.Cards[p].FaceUp || gs.Cards[p].Matched {
		return nil, fmt.Errorf("%w: pending card %d is not face up and unmatched", ErrMalformedState, p)
	}
	if openCount != 1 {
		return nil, fmt.Errorf("%w: %d unmatched cards face up during a pending turn", ErrMalformedState, openCount)
	}
	gs.PendingFirstIndex = intPtr(p)
	return gs, nil
}

// EncodeRecord serializes a state to JSON
func EncodeRecord(gs *GameState) ([]byte, error) {
	return json.Marshal(Serialize(gs))
}

// DecodeRecord parses JSON produced by EncodeRecord and deserializes it.
// Type mismatches and unknown fields are reported as ErrMalformedState.
func DecodeRecord(data []byte) (*GameState, error) {
	var rec Record
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedState, err)
	}
	return Deserialize(rec)
}
