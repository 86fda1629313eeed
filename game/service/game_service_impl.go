package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wricardo/mcp-training/memorygame/game/engine"
)

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	sessions  SessionManager
	configs   ConfigManager
	publisher EventPublisher
	logger    *zap.Logger
}

// Option configures the game service
type Option func(*gameServiceImpl)

// WithLogger sets the service logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *gameServiceImpl) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPublisher sends every batch of game events to publisher
func WithPublisher(publisher EventPublisher) Option {
	return func(s *gameServiceImpl) {
		s.publisher = publisher
	}
}

// NewGameService creates a new game service instance
func NewGameService(sessions SessionManager, configs ConfigManager, opts ...Option) GameService {
	s := &gameServiceImpl{
		sessions: sessions,
		configs:  configs,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSession creates a new game session
func (s *gameServiceImpl) CreateSession(ctx context.Context, deckID string) (*SessionInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var deck *engine.DeckConfig
	var err error
	if deckID != "" {
		deck, err = s.configs.LoadConfig(deckID)
		if err != nil {
			// Provide helpful error message with available options
			if errors.Is(err, ErrDeckNotFound) {
				availableConfigs, listErr := s.configs.ListConfigs()
				if listErr == nil && len(availableConfigs) > 0 {
					var configIDs []string
					for _, cfg := range availableConfigs {
						configIDs = append(configIDs, cfg.ConfigID)
					}
					return nil, fmt.Errorf("%w: deck '%s'. Available decks: %v", ErrDeckNotFound, deckID, configIDs)
				}
				return nil, fmt.Errorf("%w: deck '%s'. Use /api/configs to list available decks", ErrDeckNotFound, deckID)
			}
			return nil, fmt.Errorf("failed to load deck %s: %w", deckID, err)
		}
	} else {
		deck = s.configs.GetDefault()
		deckID = s.configs.DefaultName()
	}

	sess, err := s.sessions.Create("", deckID, deck)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	sess.Lock()
	defer sess.Unlock()

	events := []GameEvent{s.event(sess, EventNewGame, "", deck.Messages.Welcome, nil)}
	s.publish(ctx, sess.ID, events)

	s.logger.Info("session created",
		zap.String("session_id", sess.ID),
		zap.String("deck_id", deckID),
		zap.Int("pairs", deck.Pairs))

	info := s.info(sess, deck.Messages.Welcome)
	info.Events = events
	return info, nil
}

// GetSession retrieves session information
func (s *gameServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	sess, events, err := s.acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer sess.Unlock()

	s.persist(sess)
	s.publish(ctx, sess.ID, events)

	info := s.info(sess, "")
	info.Events = events
	return info, nil
}

// ListSessions returns all active sessions, oldest first
func (s *gameServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sessions := s.sessions.List()
	result := make([]*SessionInfo, 0, len(sessions))

	for _, sess := range sessions {
		sess.Lock()
		info := s.info(sess, "")
		sess.Unlock()
		info.Deck = nil
		result = append(result, info)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// DeleteSession removes a session
func (s *gameServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.sessions.Delete(sessionID); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	s.logger.Info("session deleted", zap.String("session_id", sessionID))
	return nil
}

// Flip reveals one card for the player
func (s *gameServiceImpl) Flip(ctx context.Context, sessionID string, index int) (*MoveOutcome, error) {
	sess, events, err := s.acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer sess.Unlock()

	result := sess.State.ApplyMove(index)
	sess.Opponent.ObserveResult(result)
	s.record(sess, ActorPlayer, result)

	message := s.message(sess, result)
	events = append(events, s.resultEvents(sess, ActorPlayer, result, message)...)

	s.persist(sess)
	s.publish(ctx, sess.ID, events)

	return &MoveOutcome{
		Result:  result,
		Board:   sess.State.View(),
		Scores:  sess.Scores,
		Message: message,
		Events:  events,
	}, nil
}

// BulkFlip reveals several cards in order, stopping at the first rejected
// reveal or when the game is won.
func (s *gameServiceImpl) BulkFlip(ctx context.Context, sessionID string, indices []int) (*BulkFlipResult, error) {
	if len(indices) == 0 {
		return nil, fmt.Errorf("%w: no card indices given", ErrInvalidRequest)
	}

	sess, events, err := s.acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer sess.Unlock()

	result := &BulkFlipResult{
		RequestedFlips: len(indices),
		Success:        true,
		Results:        make([]engine.MoveResult, 0, len(indices)),
		Events:         events,
	}
	if result.Events == nil {
		result.Events = make([]GameEvent, 0)
	}

	// Limit flips to prevent abuse
	if len(indices) > engine.MaxBulkFlips {
		result.Truncated = true
		result.Limit = engine.MaxBulkFlips
		indices = indices[:engine.MaxBulkFlips]
	}

	startScore := sess.State.Score
	for i, index := range indices {
		if sess.State.IsComplete() {
			result.StoppedReason = "game is already over"
			result.StopReasonCode = "game_over"
			result.StoppedOnFlip = i + 1
			break
		}

		r := sess.State.ApplyMove(index)
		sess.Opponent.ObserveResult(r)
		s.record(sess, ActorPlayer, r)
		result.Results = append(result.Results, r)

		message := s.message(sess, r)
		result.Message = message
		result.Events = append(result.Events, s.resultEvents(sess, ActorPlayer, r, message)...)

		if !r.Valid {
			result.Success = false
			result.StoppedReason = fmt.Sprintf("flip %d rejected: %s", i+1, r.Reason)
			result.StopReasonCode = strings.ReplaceAll(r.Reason, " ", "_")
			result.StoppedOnFlip = i + 1
			break
		}
		result.FlipsExecuted++

		if r.GameOver {
			result.StoppedReason = "all pairs found"
			result.StopReasonCode = "victory"
			if i < len(indices)-1 {
				result.StoppedOnFlip = i + 1
			}
			break
		}
	}

	result.ScoreDelta = sess.State.Score - startScore
	result.GameOver = sess.State.IsComplete()
	result.Board = sess.State.View()
	result.Scores = sess.Scores

	s.persist(sess)
	s.publish(ctx, sess.ID, result.Events)

	return result, nil
}

// CPUTurn lets the opponent play one full turn
func (s *gameServiceImpl) CPUTurn(ctx context.Context, sessionID string) (*CPUTurnResult, error) {
	sess, events, err := s.acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer sess.Unlock()

	if sess.State.IsComplete() {
		return nil, fmt.Errorf("%w: start a new game", ErrGameOver)
	}
	if sess.State.IsPending() {
		return nil, fmt.Errorf("%w: finish the current turn first", ErrTurnInProgress)
	}

	moves, err := sess.Opponent.PlayTurn(sess.State, nil)
	for _, r := range moves {
		s.record(sess, ActorCPU, r)
	}
	if err != nil {
		s.persist(sess)
		return nil, fmt.Errorf("cpu turn: %w", err)
	}

	last := moves[len(moves)-1]
	message := s.message(sess, last)

	events = append(events, s.event(sess, EventCPUTurn, ActorCPU,
		fmt.Sprintf("CPU revealed cards %d and %d", moves[0].CardIndex, last.CardIndex), nil))
	for _, r := range moves {
		events = append(events, s.resultEvents(sess, ActorCPU, r, message)...)
	}

	s.persist(sess)
	s.publish(ctx, sess.ID, events)

	return &CPUTurnResult{
		Moves:    moves,
		Match:    last.IsMatch,
		GameOver: last.GameOver,
		Board:    sess.State.View(),
		Scores:   sess.Scores,
		Message:  message,
		Events:   events,
	}, nil
}

// NewGame deals a fresh deck in an existing session. History is kept.
func (s *gameServiceImpl) NewGame(ctx context.Context, sessionID string) (*SessionInfo, error) {
	sess, events, err := s.acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer sess.Unlock()

	s.restart(sess)
	events = append(events, s.event(sess, EventNewGame, "", sess.Deck.Messages.Welcome, nil))

	s.persist(sess)
	s.publish(ctx, sess.ID, events)

	info := s.info(sess, sess.Deck.Messages.Welcome)
	info.Events = events
	return info, nil
}

// GetBoard returns the client view of the current game
func (s *gameServiceImpl) GetBoard(ctx context.Context, sessionID string) (*engine.BoardView, error) {
	sess, events, err := s.acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer sess.Unlock()

	s.persist(sess)
	s.publish(ctx, sess.ID, events)

	view := sess.State.View()
	return &view, nil
}

// GetMoveHistory returns paginated move history
func (s *gameServiceImpl) GetMoveHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error) {
	sess, _, err := s.acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	history := make([]MoveHistoryEntry, len(sess.History))
	copy(history, sess.History)
	sess.Unlock()

	total := len(history)

	// Apply defaults
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if opts.Limit > 100 {
		opts.Limit = 100
	}
	if opts.Order == "" {
		opts.Order = "desc"
	}

	// Calculate pagination
	totalPages := (total + opts.Limit - 1) / opts.Limit
	if totalPages == 0 {
		totalPages = 1
	}

	start := (opts.Page - 1) * opts.Limit
	end := start + opts.Limit
	if end > total {
		end = total
	}

	var moves []MoveHistoryEntry
	if opts.Order == "desc" {
		// Most recent first
		for i := total - 1 - start; i >= 0 && i >= total-end; i-- {
			moves = append(moves, history[i])
		}
	} else if start < total {
		moves = history[start:end]
	}

	if moves == nil {
		moves = []MoveHistoryEntry{}
	}

	return &HistoryResponse{
		Moves:       moves,
		TotalMoves:  total,
		Page:        opts.Page,
		PageSize:    opts.Limit,
		TotalPages:  totalPages,
		HasNext:     opts.Page < totalPages,
		HasPrevious: opts.Page > 1,
	}, nil
}

// ListConfigs returns available deck configurations
func (s *gameServiceImpl) ListConfigs(ctx context.Context) ([]*ConfigInfo, error) {
	return s.configs.ListConfigs()
}

// LoadConfig loads a specific deck configuration
func (s *gameServiceImpl) LoadConfig(ctx context.Context, deckID string) (*engine.DeckConfig, error) {
	return s.configs.LoadConfig(deckID)
}

// SaveConfig saves a deck configuration to disk
func (s *gameServiceImpl) SaveConfig(ctx context.Context, deckID string, config *engine.DeckConfig) error {
	return s.configs.SaveConfig(deckID, config)
}

// acquire fetches a session and locks it. Stored sessions whose game state
// is corrupt are replaced by a fresh game under the same id and a
// state_reset event is returned for the caller to pass on.
func (s *gameServiceImpl) acquire(ctx context.Context, sessionID string) (*Session, []GameEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	sess, err := s.sessions.Get(sessionID)
	if err == nil {
		sess.Lock()
		return sess, nil, nil
	}

	var corrupt *CorruptSessionError
	if !errors.As(err, &corrupt) {
		return nil, nil, fmt.Errorf("failed to get session %s: %w", sessionID, err)
	}

	sess, err = s.replaceCorrupt(corrupt)
	if err != nil {
		return nil, nil, err
	}
	sess.Lock()
	events := []GameEvent{s.event(sess, EventStateReset, "", "Saved game could not be restored, a new game was started", nil)}
	return sess, events, nil
}

func (s *gameServiceImpl) replaceCorrupt(corrupt *CorruptSessionError) (*Session, error) {
	s.logger.Warn("discarding corrupt session state",
		zap.String("session_id", corrupt.ID),
		zap.String("deck_id", corrupt.DeckID),
		zap.Error(corrupt.Err))

	deckID := corrupt.DeckID
	deck, err := s.configs.LoadConfig(deckID)
	if deckID == "" || err != nil {
		deckID = s.configs.DefaultName()
		deck = s.configs.GetDefault()
	}

	sess, err := s.sessions.Create(corrupt.ID, deckID, deck)
	if err != nil {
		// another request may have replaced it first
		if existing, getErr := s.sessions.Get(corrupt.ID); getErr == nil {
			return existing, nil
		}
		return nil, fmt.Errorf("failed to replace corrupt session %s: %w", corrupt.ID, err)
	}
	return sess, nil
}

// restart deals a new game in sess; the caller holds the session lock
func (s *gameServiceImpl) restart(sess *Session) {
	sess.State = sess.Engine.NewGame()
	sess.Opponent.Reset()
	sess.Scores = Scoreboard{}
	sess.GamesPlayed++
}

// record appends a reveal to the history and credits matches. Only the
// newest MaxHistoryEntries moves are kept; move numbers keep counting.
func (s *gameServiceImpl) record(sess *Session, actor string, r engine.MoveResult) {
	moveNumber := 1
	if n := len(sess.History); n > 0 {
		moveNumber = sess.History[n-1].MoveNumber + 1
	}
	entry := MoveHistoryEntry{
		MoveNumber:   moveNumber,
		Game:         sess.GamesPlayed,
		Actor:        actor,
		CardIndex:    r.CardIndex,
		Valid:        r.Valid,
		Reason:       r.Reason,
		Value:        r.CardValue,
		TurnComplete: r.TurnComplete,
		IsMatch:      r.IsMatch,
		Score:        r.Score,
		Timestamp:    time.Now(),
	}
	sess.History = append(sess.History, entry)
	if over := len(sess.History) - MaxHistoryEntries; over > 0 {
		sess.History = slices.Delete(sess.History, 0, over)
	}

	if r.IsMatch {
		switch actor {
		case ActorCPU:
			sess.Scores.CPU++
		default:
			sess.Scores.Player++
		}
	}
}

// persist refreshes the access time and saves the session
func (s *gameServiceImpl) persist(sess *Session) {
	if err := s.sessions.UpdateLastAccessed(sess.ID); err != nil {
		s.logger.Warn("failed to update session access time", zap.String("session_id", sess.ID), zap.Error(err))
	}
	if err := s.sessions.Save(sess.ID); err != nil {
		s.logger.Warn("failed to persist session", zap.String("session_id", sess.ID), zap.Error(err))
	}
}

func (s *gameServiceImpl) publish(ctx context.Context, sessionID string, events []GameEvent) {
	if s.publisher == nil || len(events) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, sessionID, events); err != nil {
		s.logger.Warn("failed to publish game events",
			zap.String("session_id", sessionID),
			zap.Int("events", len(events)),
			zap.Error(err))
	}
}

// message picks the deck message describing a move result
func (s *gameServiceImpl) message(sess *Session, r engine.MoveResult) string {
	msgs := sess.Deck.Messages
	switch {
	case !r.Valid:
		if msgs.Rejected != "" {
			return fmt.Sprintf("%s (%s)", msgs.Rejected, r.Reason)
		}
		return fmt.Sprintf("Invalid move: %s", r.Reason)
	case r.GameOver:
		return fmt.Sprintf(msgs.Victory, sess.State.PairsTotal())
	case r.IsMatch:
		if msgs.Match == "" {
			return fmt.Sprintf("Match! Score: %d", r.Score)
		}
		return fmt.Sprintf(msgs.Match, r.Score)
	case r.TurnComplete:
		return msgs.NoMatch
	default:
		return ""
	}
}

// resultEvents turns one move result into game events
func (s *gameServiceImpl) resultEvents(sess *Session, actor string, r engine.MoveResult, message string) []GameEvent {
	index := r.CardIndex
	if !r.Valid {
		return []GameEvent{s.event(sess, EventRejected, actor,
			fmt.Sprintf("Card %d rejected: %s", index, r.Reason), &index)}
	}

	if !r.TurnComplete {
		return []GameEvent{s.event(sess, EventMove, actor,
			fmt.Sprintf("Card %d revealed: %d", index, r.CardValue), &index)}
	}

	var events []GameEvent
	if r.IsMatch {
		events = append(events, s.event(sess, EventMatch, actor,
			fmt.Sprintf("Cards %d and %d match! Score: %d", *r.FirstIndex, index, r.Score), &index))
	} else {
		events = append(events, s.event(sess, EventMismatch, actor,
			fmt.Sprintf("Cards %d (%d) and %d (%d) do not match", *r.FirstIndex, r.FirstValue, index, r.CardValue), &index))
	}
	if r.GameOver {
		events = append(events, s.event(sess, EventVictory, actor, message, nil))
	}
	return events
}

func (s *gameServiceImpl) event(sess *Session, eventType, actor, message string, index *int) GameEvent {
	return GameEvent{
		Type:      eventType,
		SessionID: sess.ID,
		Actor:     actor,
		Message:   message,
		CardIndex: index,
		Timestamp: time.Now(),
	}
}

// info builds the client view of a session; the caller holds the session lock
func (s *gameServiceImpl) info(sess *Session, message string) *SessionInfo {
	return &SessionInfo{
		ID:             sess.ID,
		DeckID:         sess.DeckID,
		DeckName:       sess.Deck.Name,
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.LastAccessedAt,
		Board:          sess.State.View(),
		Scores:         sess.Scores,
		GamesPlayed:    sess.GamesPlayed,
		TotalMoves:     len(sess.History),
		Message:        message,
		Deck:           sess.Deck,
	}
}
