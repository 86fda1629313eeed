package engine

import "fmt"

// NewDeck returns the unshuffled values of a deck with the given number of
// pairs: 1..pairs followed by 1..pairs again.
func NewDeck(pairs int) []int {
	values := make([]int, 0, pairs*2)
	for round := 0; round < 2; round++ {
		for v := 1; v <= pairs; v++ {
			values = append(values, v)
		}
	}
	return values
}

// ValidateDeck checks that values form complete pairs over 1..N
func ValidateDeck(values []int) error {
	if len(values) == 0 || len(values)%2 != 0 {
		return fmt.Errorf("%w: need an even, non-zero number of cards, got %d", ErrInvalidDeck, len(values))
	}
	pairs := len(values) / 2
	counts := make(map[int]int, pairs)
	for i, v := range values {
		if v < 1 || v > pairs {
			return fmt.Errorf("%w: value %d at index %d outside 1..%d", ErrInvalidDeck, v, i, pairs)
		}
		counts[v]++
		if counts[v] > 2 {
			return fmt.Errorf("%w: value %d appears more than twice", ErrInvalidDeck, v)
		}
	}
	return nil
}

// CountMatchedPairs counts pairs whose two cards are both matched
func CountMatchedPairs(cards []Card) int {
	matched := 0
	for _, c := range cards {
		if c.Matched {
			matched++
		}
	}
	return matched / 2
}

// CountFaceDown counts the cards still in play and hidden
func CountFaceDown(cards []Card) int {
	count := 0
	for _, c := range cards {
		if !c.FaceUp && !c.Matched {
			count++
		}
	}
	return count
}

// UnmatchedIndices lists the indices of cards that are not yet matched
func UnmatchedIndices(cards []Card) []int {
	var indices []int
	for i, c := range cards {
		if !c.Matched {
			indices = append(indices, i)
		}
	}
	return indices
}

func intPtr(v int) *int {
	return &v
}
