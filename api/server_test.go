package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/wricardo/mcp-training/memorygame/game/config"
	"github.com/wricardo/mcp-training/memorygame/game/engine"
	"github.com/wricardo/mcp-training/memorygame/game/service"
	"github.com/wricardo/mcp-training/memorygame/game/session"
	"github.com/wricardo/mcp-training/memorygame/transport/websocket"
)

// MockGameService implements service.GameService for testing
type MockGameService struct {
	// Session Management
	CreateSessionFunc func(ctx context.Context, deckID string) (*service.SessionInfo, error)
	GetSessionFunc    func(ctx context.Context, sessionID string) (*service.SessionInfo, error)
	ListSessionsFunc  func(ctx context.Context) ([]*service.SessionInfo, error)
	DeleteSessionFunc func(ctx context.Context, sessionID string) error

	// Game Operations
	FlipFunc     func(ctx context.Context, sessionID string, index int) (*service.MoveOutcome, error)
	BulkFlipFunc func(ctx context.Context, sessionID string, indices []int) (*service.BulkFlipResult, error)
	CPUTurnFunc  func(ctx context.Context, sessionID string) (*service.CPUTurnResult, error)
	NewGameFunc  func(ctx context.Context, sessionID string) (*service.SessionInfo, error)

	// Game State
	GetBoardFunc       func(ctx context.Context, sessionID string) (*engine.BoardView, error)
	GetMoveHistoryFunc func(ctx context.Context, sessionID string, opts service.HistoryOptions) (*service.HistoryResponse, error)

	// Configuration
	ListConfigsFunc func(ctx context.Context) ([]*service.ConfigInfo, error)
	LoadConfigFunc  func(ctx context.Context, deckID string) (*engine.DeckConfig, error)
	SaveConfigFunc  func(ctx context.Context, deckID string, config *engine.DeckConfig) error
}

// Session Management
func (m *MockGameService) CreateSession(ctx context.Context, deckID string) (*service.SessionInfo, error) {
	if m.CreateSessionFunc != nil {
		return m.CreateSessionFunc(ctx, deckID)
	}
	return &service.SessionInfo{
		ID:        "test-session",
		DeckID:    deckID,
		CreatedAt: time.Now(),
	}, nil
}

func (m *MockGameService) GetSession(ctx context.Context, sessionID string) (*service.SessionInfo, error) {
	if m.GetSessionFunc != nil {
		return m.GetSessionFunc(ctx, sessionID)
	}
	return &service.SessionInfo{
		ID:        sessionID,
		DeckID:    "classic",
		CreatedAt: time.Now(),
	}, nil
}

func (m *MockGameService) ListSessions(ctx context.Context) ([]*service.SessionInfo, error) {
	if m.ListSessionsFunc != nil {
		return m.ListSessionsFunc(ctx)
	}
	return []*service.SessionInfo{}, nil
}

func (m *MockGameService) DeleteSession(ctx context.Context, sessionID string) error {
	if m.DeleteSessionFunc != nil {
		return m.DeleteSessionFunc(ctx, sessionID)
	}
	return nil
}

// Game Operations
func (m *MockGameService) Flip(ctx context.Context, sessionID string, index int) (*service.MoveOutcome, error) {
	if m.FlipFunc != nil {
		return m.FlipFunc(ctx, sessionID, index)
	}
	return &service.MoveOutcome{
		Result: engine.MoveResult{Valid: true, CardIndex: index, CardValue: 1},
	}, nil
}

func (m *MockGameService) BulkFlip(ctx context.Context, sessionID string, indices []int) (*service.BulkFlipResult, error) {
	if m.BulkFlipFunc != nil {
		return m.BulkFlipFunc(ctx, sessionID, indices)
	}
	return &service.BulkFlipResult{
		RequestedFlips: len(indices),
		FlipsExecuted:  len(indices),
		Success:        true,
	}, nil
}

func (m *MockGameService) CPUTurn(ctx context.Context, sessionID string) (*service.CPUTurnResult, error) {
	if m.CPUTurnFunc != nil {
		return m.CPUTurnFunc(ctx, sessionID)
	}
	return &service.CPUTurnResult{
		Moves: []engine.MoveResult{{Valid: true}, {Valid: true, TurnComplete: true}},
	}, nil
}

func (m *MockGameService) NewGame(ctx context.Context, sessionID string) (*service.SessionInfo, error) {
	if m.NewGameFunc != nil {
		return m.NewGameFunc(ctx, sessionID)
	}
	return &service.SessionInfo{ID: sessionID, GamesPlayed: 2}, nil
}

// Game State
func (m *MockGameService) GetBoard(ctx context.Context, sessionID string) (*engine.BoardView, error) {
	if m.GetBoardFunc != nil {
		return m.GetBoardFunc(ctx, sessionID)
	}
	return &engine.BoardView{PairsTotal: 2, PairsRemaining: 2}, nil
}

func (m *MockGameService) GetMoveHistory(ctx context.Context, sessionID string, opts service.HistoryOptions) (*service.HistoryResponse, error) {
	if m.GetMoveHistoryFunc != nil {
		return m.GetMoveHistoryFunc(ctx, sessionID, opts)
	}
	return &service.HistoryResponse{
		Moves:      []service.MoveHistoryEntry{},
		TotalMoves: 0,
		Page:       opts.Page,
		PageSize:   opts.Limit,
		TotalPages: 1,
	}, nil
}

// Configuration
func (m *MockGameService) ListConfigs(ctx context.Context) ([]*service.ConfigInfo, error) {
	if m.ListConfigsFunc != nil {
		return m.ListConfigsFunc(ctx)
	}
	return []*service.ConfigInfo{}, nil
}

func (m *MockGameService) LoadConfig(ctx context.Context, deckID string) (*engine.DeckConfig, error) {
	if m.LoadConfigFunc != nil {
		return m.LoadConfigFunc(ctx, deckID)
	}
	return &engine.DeckConfig{
		Name:        deckID,
		Description: "Test deck",
		Pairs:       2,
	}, nil
}

func (m *MockGameService) SaveConfig(ctx context.Context, deckID string, config *engine.DeckConfig) error {
	if m.SaveConfigFunc != nil {
		return m.SaveConfigFunc(ctx, deckID, config)
	}
	return nil
}

// Test helpers
func setupTestServer(t *testing.T, mockService service.GameService, opts ...Option) *Server {
	t.Helper()
	hub := websocket.NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return NewServer(mockService, hub, append([]Option{WithStaticDir("")}, opts...)...)
}

func makeRequest(method, path string, body interface{}) *http.Request {
	var bodyBytes []byte
	switch b := body.(type) {
	case nil:
	case string:
		bodyBytes = []byte(b)
	default:
		bodyBytes, _ = json.Marshal(b)
	}
	req := httptest.NewRequest(method, path, bytes.NewBuffer(bodyBytes))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), target); err != nil {
		t.Fatalf("Failed to parse response: %v (body %s)", err, w.Body.String())
	}
}

func intPtr(i int) *int {
	return &i
}

// Session Management Tests

func TestCreateSession(t *testing.T) {
	tests := []struct {
		name           string
		requestBody    interface{}
		expectedDeck   string
		createErr      error
		expectedStatus int
	}{
		{
			name:           "Create session with default deck",
			requestBody:    nil,
			expectedDeck:   "",
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "Create session with deck_id",
			requestBody:    map[string]string{"deck_id": "easy"},
			expectedDeck:   "easy",
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "config_id is accepted as an alias",
			requestBody:    map[string]string{"config_id": "forgetful"},
			expectedDeck:   "forgetful",
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "Unknown deck",
			requestBody:    map[string]string{"deck_id": "nope"},
			expectedDeck:   "nope",
			createErr:      fmt.Errorf("%w: deck 'nope'", service.ErrDeckNotFound),
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "Malformed body",
			requestBody:    "{not json",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotDeck string
			mock := &MockGameService{
				CreateSessionFunc: func(ctx context.Context, deckID string) (*service.SessionInfo, error) {
					gotDeck = deckID
					if tt.createErr != nil {
						return nil, tt.createErr
					}
					return &service.SessionInfo{ID: "sess-123", DeckID: deckID}, nil
				},
			}
			server := setupTestServer(t, mock)

			w := httptest.NewRecorder()
			server.ServeHTTP(w, makeRequest("POST", "/api/sessions", tt.requestBody))

			if w.Code != tt.expectedStatus {
				t.Fatalf("Expected status %d, got %d: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
			if gotDeck != tt.expectedDeck {
				t.Errorf("Expected deck %q, got %q", tt.expectedDeck, gotDeck)
			}
			if w.Code == http.StatusCreated {
				var resp service.SessionInfo
				parseResponse(t, w, &resp)
				if resp.ID != "sess-123" {
					t.Errorf("Expected session ID sess-123, got %s", resp.ID)
				}
			}
		})
	}
}

func TestListSessions(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	sessions := func() []*service.SessionInfo {
		return []*service.SessionInfo{
			{ID: "a", CreatedAt: base, LastAccessedAt: base.Add(3 * time.Hour)},
			{ID: "b", CreatedAt: base.Add(time.Hour), LastAccessedAt: base.Add(time.Hour)},
			{ID: "c", CreatedAt: base.Add(2 * time.Hour), LastAccessedAt: base.Add(2 * time.Hour)},
		}
	}

	tests := []struct {
		name          string
		query         string
		expectedOrder []string
		expectedTotal int
	}{
		{"default sorts by last access, newest first", "", []string{"a", "c", "b"}, 3},
		{"created ascending", "?sort=created&order=asc", []string{"a", "b", "c"}, 3},
		{"created descending with limit", "?sort=created&limit=2", []string{"c", "b"}, 3},
		{"limit above count is ignored", "?limit=10", []string{"a", "c", "b"}, 3},
		{"bad limit is ignored", "?limit=x", []string{"a", "c", "b"}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &MockGameService{
				ListSessionsFunc: func(ctx context.Context) ([]*service.SessionInfo, error) {
					return sessions(), nil
				},
			}
			server := setupTestServer(t, mock)

			w := httptest.NewRecorder()
			server.ServeHTTP(w, makeRequest("GET", "/api/sessions"+tt.query, nil))

			if w.Code != http.StatusOK {
				t.Fatalf("Expected status 200, got %d", w.Code)
			}

			var resp struct {
				Count    int                    `json:"count"`
				Total    int                    `json:"total"`
				Sessions []*service.SessionInfo `json:"sessions"`
			}
			parseResponse(t, w, &resp)

			if resp.Total != tt.expectedTotal {
				t.Errorf("Expected total %d, got %d", tt.expectedTotal, resp.Total)
			}
			if resp.Count != len(tt.expectedOrder) {
				t.Errorf("Expected count %d, got %d", len(tt.expectedOrder), resp.Count)
			}
			var got []string
			for _, s := range resp.Sessions {
				got = append(got, s.ID)
			}
			if strings.Join(got, ",") != strings.Join(tt.expectedOrder, ",") {
				t.Errorf("Expected order %v, got %v", tt.expectedOrder, got)
			}
		})
	}
}

func TestGetSession(t *testing.T) {
	tests := []struct {
		name           string
		sessionID      string
		err            error
		expectedStatus int
	}{
		{"existing session", "sess-1", nil, http.StatusOK},
		{"unknown session", "missing", fmt.Errorf("failed to get session missing: %w", session.ErrSessionNotFound), http.StatusNotFound},
		{"store failure", "broken", errors.New("disk on fire"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &MockGameService{
				GetSessionFunc: func(ctx context.Context, sessionID string) (*service.SessionInfo, error) {
					if tt.err != nil {
						return nil, tt.err
					}
					return &service.SessionInfo{ID: sessionID, DeckID: "classic"}, nil
				},
			}
			server := setupTestServer(t, mock)

			w := httptest.NewRecorder()
			server.ServeHTTP(w, makeRequest("GET", "/api/sessions/"+tt.sessionID, nil))

			if w.Code != tt.expectedStatus {
				t.Fatalf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if tt.err == nil {
				var resp service.SessionInfo
				parseResponse(t, w, &resp)
				if resp.ID != tt.sessionID {
					t.Errorf("Expected session %s, got %s", tt.sessionID, resp.ID)
				}
			} else {
				var resp map[string]string
				parseResponse(t, w, &resp)
				if resp["error"] == "" {
					t.Error("Expected an error message")
				}
			}
		})
	}
}

func TestDeleteSession(t *testing.T) {
	var deleted string
	mock := &MockGameService{
		DeleteSessionFunc: func(ctx context.Context, sessionID string) error {
			if sessionID == "missing" {
				return fmt.Errorf("failed to delete session %s: %w", sessionID, session.ErrSessionNotFound)
			}
			deleted = sessionID
			return nil
		},
	}
	server := setupTestServer(t, mock)

	w := httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("DELETE", "/api/sessions/sess-9", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if deleted != "sess-9" {
		t.Errorf("Expected sess-9 to be deleted, got %q", deleted)
	}

	w = httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("DELETE", "/api/sessions/missing", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

// Game Operation Tests

func TestGetBoard(t *testing.T) {
	mock := &MockGameService{
		GetBoardFunc: func(ctx context.Context, sessionID string) (*engine.BoardView, error) {
			return &engine.BoardView{
				Cards:          []engine.CardView{{Index: 0, FaceUp: true, Value: 2}, {Index: 1}},
				PairsTotal:     1,
				PairsRemaining: 1,
			}, nil
		},
	}
	server := setupTestServer(t, mock)

	w := httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("GET", "/api/sessions/sess-1/board", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var raw map[string]interface{}
	parseResponse(t, w, &raw)
	cards := raw["cards"].([]interface{})
	if _, hasValue := cards[1].(map[string]interface{})["value"]; hasValue {
		t.Error("Face-down card should not carry a value")
	}
	if raw["pairsTotal"].(float64) != 1 {
		t.Errorf("Expected pairsTotal 1, got %v", raw["pairsTotal"])
	}
}

func TestFlip(t *testing.T) {
	tests := []struct {
		name           string
		body           interface{}
		flipErr        error
		result         engine.MoveResult
		expectedStatus int
		expectedIndex  int
	}{
		{
			name:           "first card of a turn",
			body:           map[string]interface{}{"index": 3},
			result:         engine.MoveResult{Valid: true, CardIndex: 3, CardValue: 2},
			expectedStatus: http.StatusOK,
			expectedIndex:  3,
		},
		{
			name:           "index zero is a valid request",
			body:           map[string]interface{}{"index": 0},
			result:         engine.MoveResult{Valid: true, CardIndex: 0, CardValue: 1},
			expectedStatus: http.StatusOK,
			expectedIndex:  0,
		},
		{
			name:           "rejected reveal is still a 200",
			body:           map[string]interface{}{"index": 99},
			result:         engine.MoveResult{Valid: false, Reason: engine.ReasonOutOfRange, CardIndex: 99},
			expectedStatus: http.StatusOK,
			expectedIndex:  99,
		},
		{
			name:           "missing index",
			body:           map[string]interface{}{},
			expectedStatus: http.StatusBadRequest,
			expectedIndex:  -1,
		},
		{
			name:           "non-numeric index",
			body:           `{"index": "three"}`,
			expectedStatus: http.StatusBadRequest,
			expectedIndex:  -1,
		},
		{
			name:           "unknown session",
			body:           map[string]interface{}{"index": 1},
			flipErr:        fmt.Errorf("failed to get session missing: %w", session.ErrSessionNotFound),
			expectedStatus: http.StatusNotFound,
			expectedIndex:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotIndex := -1
			mock := &MockGameService{
				FlipFunc: func(ctx context.Context, sessionID string, index int) (*service.MoveOutcome, error) {
					gotIndex = index
					if tt.flipErr != nil {
						return nil, tt.flipErr
					}
					return &service.MoveOutcome{Result: tt.result, Message: "ok"}, nil
				},
			}
			server := setupTestServer(t, mock)

			w := httptest.NewRecorder()
			server.ServeHTTP(w, makeRequest("POST", "/api/sessions/sess-1/flip", tt.body))

			if w.Code != tt.expectedStatus {
				t.Fatalf("Expected status %d, got %d: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
			if gotIndex != tt.expectedIndex {
				t.Errorf("Expected flip of %d, got %d", tt.expectedIndex, gotIndex)
			}
			if w.Code == http.StatusOK {
				var resp service.MoveOutcome
				parseResponse(t, w, &resp)
				if resp.Result != tt.result {
					t.Errorf("Expected result %+v relayed unchanged, got %+v", tt.result, resp.Result)
				}
			}
		})
	}
}

func TestBulkFlip(t *testing.T) {
	var got []int
	mock := &MockGameService{
		BulkFlipFunc: func(ctx context.Context, sessionID string, indices []int) (*service.BulkFlipResult, error) {
			if len(indices) == 0 {
				return nil, fmt.Errorf("%w: no card indices given", service.ErrInvalidRequest)
			}
			got = indices
			return &service.BulkFlipResult{
				RequestedFlips: len(indices),
				FlipsExecuted:  1,
				StopReasonCode: "already_matched",
				StoppedOnFlip:  2,
			}, nil
		},
	}
	server := setupTestServer(t, mock)

	w := httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("POST", "/api/sessions/sess-1/bulk-flip", map[string][]int{"indices": {0, 1}}))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if len(got) != 2 || got[0] != 0 || got[1] != 1 {
		t.Errorf("Expected indices [0 1], got %v", got)
	}
	var resp service.BulkFlipResult
	parseResponse(t, w, &resp)
	if resp.StopReasonCode != "already_matched" || resp.StoppedOnFlip != 2 {
		t.Errorf("Unexpected stop info: %+v", resp)
	}

	w = httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("POST", "/api/sessions/sess-1/bulk-flip", map[string][]int{"indices": {}}))
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for empty indices, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("POST", "/api/sessions/sess-1/bulk-flip", "[]"))
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for malformed body, got %d", w.Code)
	}
}

func TestCPUTurn(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
	}{
		{"cpu plays", nil, http.StatusOK},
		{"turn pending", fmt.Errorf("%w: finish the current turn first", service.ErrTurnInProgress), http.StatusConflict},
		{"game over", fmt.Errorf("%w: start a new game", service.ErrGameOver), http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &MockGameService{
				CPUTurnFunc: func(ctx context.Context, sessionID string) (*service.CPUTurnResult, error) {
					if tt.err != nil {
						return nil, tt.err
					}
					return &service.CPUTurnResult{
						Moves:  []engine.MoveResult{{Valid: true, CardIndex: 0}, {Valid: true, CardIndex: 1, TurnComplete: true, IsMatch: true}},
						Match:  true,
						Scores: service.Scoreboard{CPU: 1},
					}, nil
				},
			}
			server := setupTestServer(t, mock)

			w := httptest.NewRecorder()
			server.ServeHTTP(w, makeRequest("POST", "/api/sessions/sess-1/cpu-turn", nil))
			if w.Code != tt.expectedStatus {
				t.Fatalf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if tt.err == nil {
				var resp service.CPUTurnResult
				parseResponse(t, w, &resp)
				if len(resp.Moves) != 2 || !resp.Match || resp.Scores.CPU != 1 {
					t.Errorf("Unexpected cpu turn response: %+v", resp)
				}
			}
		})
	}
}

func TestNewGame(t *testing.T) {
	var restarted string
	mock := &MockGameService{
		NewGameFunc: func(ctx context.Context, sessionID string) (*service.SessionInfo, error) {
			restarted = sessionID
			return &service.SessionInfo{ID: sessionID, GamesPlayed: 3}, nil
		},
	}
	server := setupTestServer(t, mock)

	w := httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("POST", "/api/sessions/sess-1/new-game", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if restarted != "sess-1" {
		t.Errorf("Expected sess-1 to restart, got %q", restarted)
	}
	var resp service.SessionInfo
	parseResponse(t, w, &resp)
	if resp.GamesPlayed != 3 {
		t.Errorf("Expected games_played 3, got %d", resp.GamesPlayed)
	}
}

func TestGetHistory(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		expected service.HistoryOptions
	}{
		{"defaults", "", service.HistoryOptions{Page: 1, Limit: 20, Order: "desc"}},
		{"explicit", "?page=2&limit=5&order=asc", service.HistoryOptions{Page: 2, Limit: 5, Order: "asc"}},
		{"invalid values fall back", "?page=-1&limit=abc&order=sideways", service.HistoryOptions{Page: 1, Limit: 20, Order: "desc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got service.HistoryOptions
			mock := &MockGameService{
				GetMoveHistoryFunc: func(ctx context.Context, sessionID string, opts service.HistoryOptions) (*service.HistoryResponse, error) {
					got = opts
					return &service.HistoryResponse{Moves: []service.MoveHistoryEntry{}, Page: opts.Page, PageSize: opts.Limit}, nil
				},
			}
			server := setupTestServer(t, mock)

			w := httptest.NewRecorder()
			server.ServeHTTP(w, makeRequest("GET", "/api/sessions/sess-1/history"+tt.query, nil))
			if w.Code != http.StatusOK {
				t.Fatalf("Expected status 200, got %d", w.Code)
			}
			if got != tt.expected {
				t.Errorf("Expected options %+v, got %+v", tt.expected, got)
			}
		})
	}
}

// Configuration Tests

func TestListConfigs(t *testing.T) {
	mock := &MockGameService{
		ListConfigsFunc: func(ctx context.Context) ([]*service.ConfigInfo, error) {
			return []*service.ConfigInfo{
				{ConfigID: "classic", Name: "Classic", Pairs: 22},
				{ConfigID: "easy", Name: "Easy", Pairs: 8},
			}, nil
		},
	}
	server := setupTestServer(t, mock)

	w := httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("GET", "/api/configs", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var resp []*service.ConfigInfo
	parseResponse(t, w, &resp)
	if len(resp) != 2 || resp[1].ConfigID != "easy" {
		t.Errorf("Unexpected configs: %+v", resp)
	}
}

func TestGetConfig(t *testing.T) {
	tests := []struct {
		name           string
		path           string
		expectedName   string
		expectedStatus int
	}{
		{"plain name", "/api/configs/easy", "easy", http.StatusOK},
		{"json extension trimmed", "/api/configs/classic.json", "classic", http.StatusOK},
		{"yaml extension trimmed", "/api/configs/easy.yaml", "easy", http.StatusOK},
		{"unknown deck", "/api/configs/nope", "nope", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			mock := &MockGameService{
				LoadConfigFunc: func(ctx context.Context, deckID string) (*engine.DeckConfig, error) {
					got = deckID
					if deckID == "nope" {
						return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, deckID)
					}
					return &engine.DeckConfig{Name: deckID, Pairs: 4}, nil
				},
			}
			server := setupTestServer(t, mock)

			w := httptest.NewRecorder()
			server.ServeHTTP(w, makeRequest("GET", tt.path, nil))
			if w.Code != tt.expectedStatus {
				t.Fatalf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if got != tt.expectedName {
				t.Errorf("Expected lookup of %q, got %q", tt.expectedName, got)
			}
		})
	}
}

func TestCreateConfig(t *testing.T) {
	deck := engine.DeckConfig{
		Name:        "Tiny",
		Description: "Two pairs",
		Pairs:       2,
		Messages:    engine.DeckMessages{Welcome: "hi", Victory: "done %d"},
	}

	tests := []struct {
		name           string
		body           interface{}
		saveErr        error
		expectedID     string
		expectedStatus int
	}{
		{
			name: "explicit id",
			body: map[string]interface{}{
				"id": "tiny", "name": deck.Name, "description": deck.Description, "pairs": deck.Pairs,
				"messages": map[string]string{"welcome": "hi", "victory": "done %d"},
			},
			expectedID:     "tiny",
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "name used as id",
			body:           deck,
			expectedID:     "Tiny",
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "missing name",
			body:           map[string]interface{}{"pairs": 2},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid deck",
			body:           deck,
			saveErr:        fmt.Errorf("%w: pairs must be between", config.ErrInvalidConfig),
			expectedID:     "Tiny",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotID string
			var gotDeck *engine.DeckConfig
			mock := &MockGameService{
				SaveConfigFunc: func(ctx context.Context, deckID string, cfg *engine.DeckConfig) error {
					gotID = deckID
					gotDeck = cfg
					return tt.saveErr
				},
			}
			server := setupTestServer(t, mock)

			w := httptest.NewRecorder()
			server.ServeHTTP(w, makeRequest("POST", "/api/configs", tt.body))
			if w.Code != tt.expectedStatus {
				t.Fatalf("Expected status %d, got %d: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
			if gotID != tt.expectedID {
				t.Errorf("Expected save as %q, got %q", tt.expectedID, gotID)
			}
			if gotDeck != nil && (gotDeck.Pairs != 2 || gotDeck.Messages.Welcome != "hi") {
				t.Errorf("Deck fields were not decoded: %+v", gotDeck)
			}
		})
	}
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{session.ErrSessionNotFound, http.StatusNotFound},
		{fmt.Errorf("wrapped: %w", service.ErrDeckNotFound), http.StatusNotFound},
		{service.ErrInvalidRequest, http.StatusBadRequest},
		{config.ErrInvalidConfig, http.StatusBadRequest},
		{session.ErrInvalidSessionID, http.StatusBadRequest},
		{engine.ErrInvalidDeck, http.StatusBadRequest},
		{service.ErrTurnInProgress, http.StatusConflict},
		{service.ErrGameOver, http.StatusConflict},
		{context.Canceled, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := statusForError(tt.err); got != tt.want {
			t.Errorf("statusForError(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestHealth(t *testing.T) {
	server := setupTestServer(t, &MockGameService{})

	w := httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("GET", "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var resp map[string]string
	parseResponse(t, w, &resp)
	if resp["status"] != "healthy" {
		t.Errorf("Expected healthy, got %q", resp["status"])
	}
}

func TestWebSocket(t *testing.T) {
	mock := &MockGameService{
		GetSessionFunc: func(ctx context.Context, sessionID string) (*service.SessionInfo, error) {
			return nil, session.ErrSessionNotFound
		},
	}
	server := setupTestServer(t, mock)

	w := httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("GET", "/ws", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 without session, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("GET", "/ws?session=missing", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for unknown session, got %d", w.Code)
	}

	noHub := NewServer(mock, nil, WithStaticDir(""))
	w = httptest.NewRecorder()
	noHub.ServeHTTP(w, makeRequest("GET", "/ws?session=x", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503 without a hub, got %d", w.Code)
	}
}

func TestMCPHandlerMounted(t *testing.T) {
	called := false
	mcp := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusAccepted)
	})
	server := setupTestServer(t, &MockGameService{}, WithMCPHandler(mcp))

	w := httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("POST", "/mcp", `{}`))
	if !called || w.Code != http.StatusAccepted {
		t.Errorf("Expected /mcp to reach the MCP handler, got %d", w.Code)
	}
}
