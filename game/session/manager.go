package session

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wricardo/mcp-training/memorygame/game/engine"
	"github.com/wricardo/mcp-training/memorygame/game/service"
)

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionAlreadyExists = errors.New("session already exists")
	ErrInvalidSessionID     = errors.New("invalid session ID")
)

// session ids double as file names and store keys
var validSessionID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Manager handles game session lifecycle
type Manager struct {
	sessions    map[string]*service.Session
	persistence SessionPersistence
	logger      *zap.Logger
	mu          sync.RWMutex
}

// NewManager creates a new in-memory session manager
func NewManager(logger *zap.Logger) *Manager {
	return NewManagerWithPersistence(nil, logger)
}

// NewManagerWithPersistence creates a new session manager with persistence
func NewManagerWithPersistence(persistence SessionPersistence, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		sessions:    make(map[string]*service.Session),
		persistence: persistence,
		logger:      logger,
	}
}

// ValidSessionID reports whether id can name a session
func ValidSessionID(id string) bool {
	return validSessionID.MatchString(id)
}

// Create creates a new session with a fresh game of deck. An empty id gets a
// generated UUID. A record already in persistence under id is overwritten.
func (m *Manager) Create(id, deckID string, deck *engine.DeckConfig) (*service.Session, error) {
	if id == "" {
		id = m.generateSessionID()
	} else if !ValidSessionID(id) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSessionID, id)
	}

	session, err := service.NewSession(id, deckID, deck)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	// Check if session already exists (case-insensitive)
	if m.sessionExists(id) {
		m.mu.Unlock()
		return nil, ErrSessionAlreadyExists
	}
	m.sessions[strings.ToLower(id)] = session
	m.mu.Unlock()

	if m.persistence != nil {
		session.Lock()
		err := m.persistence.Save(session)
		session.Unlock()
		if err != nil {
			// Log error but don't fail the creation
			m.logger.Warn("failed to persist new session", zap.String("session_id", id), zap.Error(err))
		}
	}

	m.logger.Debug("session created", zap.String("session_id", id), zap.String("deck_id", deckID))
	return session, nil
}

// Get retrieves a session by ID (case-insensitive), loading it from
// persistence when it is not in memory
func (m *Manager) Get(id string) (*service.Session, error) {
	if !ValidSessionID(id) {
		return nil, ErrSessionNotFound
	}

	m.mu.RLock()
	session, exists := m.sessions[strings.ToLower(id)]
	m.mu.RUnlock()

	if exists {
		return session, nil
	}

	storedID := m.storedID(id)
	if storedID == "" {
		return nil, ErrSessionNotFound
	}

	loaded, err := m.persistence.Load(storedID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load persisted session: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// A concurrent Get may have loaded it first; one id maps to one session
	if session, exists := m.sessions[strings.ToLower(id)]; exists {
		return session, nil
	}
	m.sessions[strings.ToLower(id)] = loaded
	return loaded, nil
}

// GetOrCreate gets an existing session or creates a new one
func (m *Manager) GetOrCreate(id, deckID string, deck *engine.DeckConfig) (*service.Session, error) {
	session, err := m.Get(id)
	if err == nil {
		return session, nil
	}

	if errors.Is(err, ErrSessionNotFound) {
		return m.Create(id, deckID, deck)
	}

	return nil, err
}

// List returns all active sessions
func (m *Manager) List() []*service.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*service.Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		result = append(result, session)
	}

	return result
}

// Delete removes a session from memory and persistence. It waits for any
// operation holding the session lock, so a save in flight cannot write the
// record back after it is removed.
func (m *Manager) Delete(id string) error {
	key := strings.ToLower(id)
	m.mu.Lock()
	session, inMemory := m.sessions[key]
	delete(m.sessions, key)
	m.mu.Unlock()

	storedID := ""
	if inMemory {
		session.Lock()
		defer session.Unlock()
		if m.persistence != nil && m.persistence.Exists(session.ID) {
			storedID = session.ID
		}
	} else {
		storedID = m.storedID(id)
	}

	if storedID != "" {
		if err := m.persistence.Delete(storedID); err != nil && !errors.Is(err, ErrSessionNotFound) {
			return fmt.Errorf("failed to delete persisted session: %w", err)
		}
		return nil
	}

	if !inMemory {
		return ErrSessionNotFound
	}

	return nil
}

// DeleteFromMemory removes a session from memory only (not from persistence)
func (m *Manager) DeleteFromMemory(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.ToLower(id)
	if _, exists := m.sessions[key]; !exists {
		return ErrSessionNotFound
	}
	delete(m.sessions, key)
	return nil
}

// UpdateLastAccessed updates the last accessed time for a session. The
// caller holds the session lock.
func (m *Manager) UpdateLastAccessed(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, exists := m.sessions[strings.ToLower(id)]
	if !exists {
		return ErrSessionNotFound
	}

	session.LastAccessedAt = time.Now()
	return nil
}

// Save saves a specific session to persistence. The caller holds the
// session lock.
func (m *Manager) Save(id string) error {
	if m.persistence == nil {
		return nil // No persistence configured
	}

	m.mu.RLock()
	session, exists := m.sessions[strings.ToLower(id)]
	m.mu.RUnlock()
	if !exists {
		return ErrSessionNotFound
	}

	return m.persistence.Save(session)
}

// CleanupExpiredSessions removes sessions that haven't been accessed in the
// given duration, from memory and from persistence
func (m *Manager) CleanupExpiredSessions(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	m.mu.Lock()
	var expired []*service.Session
	for key, session := range m.sessions {
		if session.LastAccessedAt.Before(cutoff) {
			delete(m.sessions, key)
			expired = append(expired, session)
		}
	}
	m.mu.Unlock()

	if m.persistence != nil {
		for _, session := range expired {
			session.Lock()
			err := m.persistence.Delete(session.ID)
			session.Unlock()
			if err != nil && !errors.Is(err, ErrSessionNotFound) {
				m.logger.Warn("failed to delete expired session", zap.String("session_id", session.ID), zap.Error(err))
			}
		}
	}

	if len(expired) > 0 {
		m.logger.Info("expired sessions removed", zap.Int("count", len(expired)))
	}
	return len(expired)
}

// Count returns the number of active sessions
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// generateSessionID generates a random UUIDv4 session ID
func (m *Manager) generateSessionID() string {
	return uuid.NewString()
}

// storedID returns the key a session not held in memory is stored under,
// trying id as given and then lowercased, or "" when there is no record
func (m *Manager) storedID(id string) string {
	if m.persistence == nil || !ValidSessionID(id) {
		return ""
	}
	if m.persistence.Exists(id) {
		return id
	}
	if lower := strings.ToLower(id); lower != id && m.persistence.Exists(lower) {
		return lower
	}
	return ""
}

// sessionExists checks if a session exists (case-insensitive); the caller
// holds m.mu
func (m *Manager) sessionExists(id string) bool {
	_, exists := m.sessions[strings.ToLower(id)]
	return exists
}

// LoadPersistedSessions loads all persisted sessions into memory. Records
// that cannot be restored are left in place; they are replaced the first
// time a request reaches them.
func (m *Manager) LoadPersistedSessions() error {
	if m.persistence == nil {
		return nil // No persistence configured
	}

	sessionIDs, err := m.persistence.ListAll()
	if err != nil {
		return fmt.Errorf("failed to list persisted sessions: %w", err)
	}

	loadedCount := 0
	for _, id := range sessionIDs {
		if !ValidSessionID(id) {
			continue
		}

		m.mu.RLock()
		_, exists := m.sessions[strings.ToLower(id)]
		m.mu.RUnlock()
		if exists {
			continue
		}

		session, err := m.persistence.Load(id)
		if err != nil {
			m.logger.Warn("failed to load persisted session", zap.String("session_id", id), zap.Error(err))
			continue
		}

		m.mu.Lock()
		if !m.sessionExists(id) {
			m.sessions[strings.ToLower(id)] = session
			loadedCount++
		}
		m.mu.Unlock()
	}

	if loadedCount > 0 {
		m.logger.Info("loaded persisted sessions", zap.Int("count", loadedCount))
	}

	return nil
}

// SaveAllSessions saves all in-memory sessions to persistence
func (m *Manager) SaveAllSessions() error {
	if m.persistence == nil {
		return nil // No persistence configured
	}

	sessions := m.List()

	errorCount := 0
	for _, session := range sessions {
		session.Lock()
		err := m.persistence.Save(session)
		session.Unlock()
		if err != nil {
			m.logger.Warn("failed to save session", zap.String("session_id", session.ID), zap.Error(err))
			errorCount++
		}
	}

	if errorCount > 0 {
		return fmt.Errorf("failed to save %d sessions", errorCount)
	}

	return nil
}

// PruneOrphans drops in-memory sessions whose stored record has disappeared,
// for example after another instance deleted it or a Redis TTL expired
func (m *Manager) PruneOrphans() int {
	if m.persistence == nil {
		return 0
	}

	pruned := 0
	for _, session := range m.List() {
		if m.persistence.Exists(session.ID) {
			continue
		}
		if err := m.DeleteFromMemory(session.ID); err == nil {
			pruned++
		}
	}

	if pruned > 0 {
		m.logger.Info("orphaned sessions pruned", zap.Int("count", pruned))
	}
	return pruned
}
