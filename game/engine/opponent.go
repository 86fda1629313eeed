package engine

import (
	"fmt"
	"math/rand/v2"
	"slices"
)

// Memory is what the CPU opponent remembers of cards it has seen revealed:
// a bounded mapping from board index to value. When full, the oldest
// observation is forgotten first.
//
// Memory never touches cards directly. It plays only through ApplyMove.
type Memory struct {
	capacity int
	values   map[int]int
	order    []int
}

// MemoryRecord is the stored form of a Memory. Entries are kept in
// observation order, oldest first.
type MemoryRecord struct {
	Capacity int           `json:"capacity"`
	Entries  []MemoryEntry `json:"entries"`
}

// MemoryEntry is one remembered card
type MemoryEntry struct {
	Index int `json:"index"`
	Value int `json:"value"`
}

// NewMemory creates an empty memory holding at most capacity cards; zero or
// less means unbounded.
func NewMemory(capacity int) *Memory {
	if capacity < 0 {
		capacity = 0
	}
	return &Memory{
		capacity: capacity,
		values:   make(map[int]int),
	}
}

// Capacity returns the memory limit, 0 when unbounded
func (m *Memory) Capacity() int {
	return m.capacity
}

// Len returns the number of remembered cards
func (m *Memory) Len() int {
	return len(m.order)
}

// Observe records that the card at index showed value
func (m *Memory) Observe(index, value int) {
	if _, ok := m.values[index]; ok {
		m.values[index] = value
		return
	}
	if m.capacity > 0 && len(m.order) >= m.capacity {
		oldest := m.order[0]
		m.order = m.order[1:]
		delete(m.values, oldest)
	}
	m.values[index] = value
	m.order = append(m.order, index)
}

// ObserveResult records every value exposed by a move result and forgets
// cards that were matched by it.
func (m *Memory) ObserveResult(r MoveResult) {
	if !r.Valid {
		return
	}
	if r.FirstIndex != nil {
		m.Observe(*r.FirstIndex, r.FirstValue)
	}
	m.Observe(r.CardIndex, r.CardValue)
	if r.IsMatch {
		m.Forget(*r.FirstIndex)
		m.Forget(*r.SecondIndex)
	}
}

// Forget drops the card at index
func (m *Memory) Forget(index int) {
	if _, ok := m.values[index]; !ok {
		return
	}
	delete(m.values, index)
	m.order = slices.DeleteFunc(m.order, func(i int) bool { return i == index })
}

// Recall returns the remembered value of the card at index
func (m *Memory) Recall(index int) (int, bool) {
	v, ok := m.values[index]
	return v, ok
}

// Reset forgets everything
func (m *Memory) Reset() {
	m.values = make(map[int]int)
	m.order = nil
}

// sync forgets cards that are matched on the board, whoever matched them
func (m *Memory) sync(gs *GameState) {
	for _, idx := range slices.Clone(m.order) {
		if idx >= len(gs.Cards) || gs.Cards[idx].Matched {
			m.Forget(idx)
		}
	}
}

// knownPair finds two remembered cards with the same value, oldest first
func (m *Memory) knownPair() (int, int, bool) {
	for i, a := range m.order {
		for _, b := range m.order[i+1:] {
			if m.values[a] == m.values[b] {
				return a, b, true
			}
		}
	}
	return 0, 0, false
}

// partnerOf finds a remembered card other than index showing value
func (m *Memory) partnerOf(index, value int) (int, bool) {
	for _, i := range m.order {
		if i != index && m.values[i] == value {
			return i, true
		}
	}
	return 0, false
}

// PlayTurn plays one full turn for the CPU on gs. It reveals a remembered
// pair when it knows one; otherwise it reveals an unseen card and then its
// remembered partner, or another unseen card. A nil rng uses the global
// source. Both move results are returned in order.
func (m *Memory) PlayTurn(gs *GameState, rng *rand.Rand) ([]MoveResult, error) {
	if gs.IsComplete() {
		return nil, ErrGameComplete
	}
	if gs.IsPending() {
		return nil, ErrTurnPending
	}
	m.sync(gs)

	first, second, ok := m.knownPair()
	if ok {
		return m.reveal(gs, first, second)
	}

	first = m.pickCard(gs, rng, -1)
	r1 := gs.ApplyMove(first)
	if !r1.Valid {
		return []MoveResult{r1}, fmt.Errorf("opponent reveal %d: %w", first, r1.Err())
	}
	m.ObserveResult(r1)

	second, ok = m.partnerOf(first, r1.CardValue)
	if !ok {
		second = m.pickCard(gs, rng, first)
	}
	r2 := gs.ApplyMove(second)
	if !r2.Valid {
		return []MoveResult{r1, r2}, fmt.Errorf("opponent reveal %d: %w", second, r2.Err())
	}
	m.ObserveResult(r2)
	return []MoveResult{r1, r2}, nil
}

func (m *Memory) reveal(gs *GameState, first, second int) ([]MoveResult, error) {
	results := make([]MoveResult, 0, 2)
	for _, idx := range []int{first, second} {
		r := gs.ApplyMove(idx)
		results = append(results, r)
		if !r.Valid {
			return results, fmt.Errorf("opponent reveal %d: %w", idx, r.Err())
		}
		m.ObserveResult(r)
	}
	return results, nil
}

// pickCard chooses a face-down card, preferring ones not yet remembered
func (m *Memory) pickCard(gs *GameState, rng *rand.Rand, exclude int) int {
	var unseen, hidden []int
	for i, c := range gs.Cards {
		if c.FaceUp || c.Matched || i == exclude {
			continue
		}
		hidden = append(hidden, i)
		if _, known := m.values[i]; !known {
			unseen = append(unseen, i)
		}
	}
	candidates := unseen
	if len(candidates) == 0 {
		candidates = hidden
	}
	if len(candidates) == 0 {
		return -1
	}
	if rng == nil {
		return candidates[rand.IntN(len(candidates))]
	}
	return candidates[rng.IntN(len(candidates))]
}

// Snapshot returns the stored form of the memory
func (m *Memory) Snapshot() MemoryRecord {
	rec := MemoryRecord{Capacity: m.capacity, Entries: make([]MemoryEntry, 0, len(m.order))}
	for _, idx := range m.order {
		rec.Entries = append(rec.Entries, MemoryEntry{Index: idx, Value: m.values[idx]})
	}
	return rec
}

// RestoreMemory rebuilds a memory from its stored form
func RestoreMemory(rec MemoryRecord) *Memory {
	m := NewMemory(rec.Capacity)
	for _, e := range rec.Entries {
		m.Observe(e.Index, e.Value)
	}
	return m
}
