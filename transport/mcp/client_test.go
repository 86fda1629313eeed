package mcp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap/zaptest"

	"github.com/wricardo/mcp-training/memorygame/api"
	"github.com/wricardo/mcp-training/memorygame/game/config"
	"github.com/wricardo/mcp-training/memorygame/game/engine"
	"github.com/wricardo/mcp-training/memorygame/game/service"
	"github.com/wricardo/mcp-training/memorygame/game/session"
)

func callTool(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), name string, args map[string]interface{}) (string, bool) {
	t.Helper()
	request := mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}

	result, err := handler(context.Background(), request)
	if err != nil {
		t.Fatalf("%s returned error: %v", name, err)
	}
	if result == nil || len(result.Content) == 0 {
		t.Fatalf("%s returned no content", name)
	}

	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("%s: expected TextContent, got %T", name, result.Content[0])
	}
	return text.Text, result.IsError
}

func intPtr(i int) *int { return &i }

func TestNewClient(t *testing.T) {
	client := NewClient("http://localhost:8080/")

	if client.baseURL != "http://localhost:8080" {
		t.Errorf("Expected trailing slash trimmed, got %s", client.baseURL)
	}

	if client.httpClient == nil {
		t.Error("Expected HTTP client to be initialized")
	}

	if client.GetMCPServer() == nil {
		t.Error("Expected MCP server to be initialized")
	}
}

func TestClient_apiCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Expected JSON content type, got %q", r.Header.Get("Content-Type"))
		}
		var body map[string]int
		json.NewDecoder(r.Body).Decode(&body)
		json.NewEncoder(w).Encode(map[string]int{"echo": body["index"]})
	}))
	defer server.Close()

	client := NewClient(server.URL)

	var response map[string]int
	if err := client.apiCall(context.Background(), "POST", "/api", map[string]int{"index": 3}, &response); err != nil {
		t.Fatalf("apiCall failed: %v", err)
	}
	if response["echo"] != 3 {
		t.Errorf("Expected echo 3, got %d", response["echo"])
	}
}

func TestClient_apiCall_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"api error message", http.StatusNotFound, `{"error":"session not found"}`, "session not found"},
		{"plain failure", http.StatusInternalServerError, "Internal Server Error", "API error: 500"},
		{"rate limited", http.StatusTooManyRequests, `{"error":"rate limit exceeded","backoff":2}`, "retry in 2s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			err := NewClient(server.URL).apiCall(context.Background(), "GET", "/api", nil, nil)
			if err == nil {
				t.Fatal("Expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %q", tt.wantErr, err.Error())
			}
		})
	}
}

func TestClient_apiCall_Unreachable(t *testing.T) {
	client := NewClient("http://127.0.0.1:1")

	if err := client.apiCall(context.Background(), "GET", "/api", nil, nil); err == nil {
		t.Error("Expected error for unreachable server")
	}
}

func TestHandleFlipCard(t *testing.T) {
	var gotPath string
	var gotIndex int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		var body map[string]int
		json.NewDecoder(r.Body).Decode(&body)
		gotIndex = body["index"]

		json.NewEncoder(w).Encode(service.MoveOutcome{
			Result: engine.MoveResult{
				Valid: true, TurnComplete: true, IsMatch: true,
				CardIndex: 5, CardValue: 3, FirstIndex: intPtr(1), FirstValue: 3, Score: 1,
			},
			Board: engine.BoardView{
				Cards:          []engine.CardView{{Index: 0}, {Index: 1, Matched: true, FaceUp: true, Value: 3}},
				Score:          1,
				PairsTotal:     3,
				PairsRemaining: 2,
			},
			Scores:  service.Scoreboard{Player: 1},
			Message: "Match!",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	text, isError := callTool(t, client.handleFlipCard, "flip_card", map[string]interface{}{
		"session_id": "abc",
		"index":      float64(5),
		"intent":     "partner of card 1",
	})

	if isError {
		t.Fatalf("Unexpected error result: %s", text)
	}
	if gotPath != "/api/sessions/abc/flip" {
		t.Errorf("Expected flip path, got %s", gotPath)
	}
	if gotIndex != 5 {
		t.Errorf("Expected index 5, got %d", gotIndex)
	}
	for _, want := range []string{"MATCH with card 1", "Message: Match!", "You 1 - CPU 0", "<03>", "[??]", "Pairs left: 2/3"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected %q in output:\n%s", want, text)
		}
	}
}

func TestHandleFlipCard_InvalidArguments(t *testing.T) {
	client := NewClient("http://127.0.0.1:1")

	tests := []struct {
		name string
		args map[string]interface{}
		want string
	}{
		{"missing session", map[string]interface{}{"index": float64(1)}, "session_id is required"},
		{"missing index", map[string]interface{}{"session_id": "abc"}, "index must be an integer"},
		{"fractional index", map[string]interface{}{"session_id": "abc", "index": 1.5}, "index must be an integer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, isError := callTool(t, client.handleFlipCard, "flip_card", tt.args)
			if !isError {
				t.Error("Expected error result")
			}
			if !strings.Contains(text, tt.want) {
				t.Errorf("Expected %q, got %q", tt.want, text)
			}
		})
	}
}

func TestHandleBulkFlip_SendsIndices(t *testing.T) {
	var got []int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Indices []int `json:"indices"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		got = body.Indices

		json.NewEncoder(w).Encode(service.BulkFlipResult{
			RequestedFlips: 3,
			FlipsExecuted:  2,
			Results: []engine.MoveResult{
				{Valid: true, CardIndex: 0, CardValue: 2},
				{Valid: false, CardIndex: 0, Reason: engine.ReasonAlreadyFlipped},
			},
			StoppedReason:  "card already flipped",
			StopReasonCode: "already_flipped",
			StoppedOnFlip:  2,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	text, isError := callTool(t, client.handleBulkFlip, "bulk_flip", map[string]interface{}{
		"session_id": "abc",
		"indices":    []interface{}{float64(0), float64(0), float64(4)},
	})

	if isError {
		t.Fatalf("Unexpected error result: %s", text)
	}
	if len(got) != 3 || got[0] != 0 || got[2] != 4 {
		t.Errorf("Expected indices [0 0 4], got %v", got)
	}
	if !strings.Contains(text, "Executed 2 of 3 flips") {
		t.Errorf("Expected executed count in output:\n%s", text)
	}
	if !strings.Contains(text, "Stopped on flip 2") {
		t.Errorf("Expected stop reason in output:\n%s", text)
	}
	if !strings.Contains(text, "rejected: already flipped") {
		t.Errorf("Expected rejection in output:\n%s", text)
	}
}

func TestHandleBulkFlip_BadIndex(t *testing.T) {
	client := NewClient("http://127.0.0.1:1")

	text, isError := callTool(t, client.handleBulkFlip, "bulk_flip", map[string]interface{}{
		"session_id": "abc",
		"indices":    []interface{}{float64(1), "two"},
	})
	if !isError || !strings.Contains(text, "indices[1]") {
		t.Errorf("Expected indices[1] error, got %q", text)
	}
}

func TestHandleMoveHistory_Query(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		json.NewEncoder(w).Encode(service.HistoryResponse{
			Moves: []service.MoveHistoryEntry{
				{MoveNumber: 1, Game: 1, Actor: service.ActorPlayer, CardIndex: 3, Valid: true, Value: 7},
				{MoveNumber: 2, Game: 1, Actor: service.ActorPlayer, CardIndex: 3, Reason: engine.ReasonAlreadyFlipped},
			},
			TotalMoves: 12,
			Page:       2,
			PageSize:   2,
			TotalPages: 6,
			HasNext:    true,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	text, _ := callTool(t, client.handleMoveHistory, "move_history", map[string]interface{}{
		"session_id": "abc",
		"page":       float64(2),
		"limit":      float64(2),
		"order":      "asc",
	})

	if gotQuery != "limit=2&order=asc&page=2" {
		t.Errorf("Unexpected query %q", gotQuery)
	}
	if !strings.Contains(text, "Page 2/6, Total: 12") {
		t.Errorf("Expected page header in output:\n%s", text)
	}
	if !strings.Contains(text, "player flipped 3: value 7") {
		t.Errorf("Expected first move in output:\n%s", text)
	}
	if !strings.Contains(text, "✗ #2") {
		t.Errorf("Expected rejected move marker in output:\n%s", text)
	}
	if !strings.Contains(text, "Next page available") {
		t.Errorf("Expected pagination hint in output:\n%s", text)
	}
}

func TestHandleGameInstructions(t *testing.T) {
	client := NewClient("http://127.0.0.1:1")

	text, isError := callTool(t, client.handleGameInstructions, "game_instructions", map[string]interface{}{})
	if isError {
		t.Fatal("Unexpected error result")
	}
	for _, want := range []string{"GAME OBJECTIVE", engine.ReasonAlreadyMatched, "cpu_turn"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected %q in instructions", want)
		}
	}
}

func TestFormatBoard(t *testing.T) {
	board := &engine.BoardView{
		Cards: []engine.CardView{
			{Index: 0},
			{Index: 1, FaceUp: true, Value: 12},
			{Index: 2, FaceUp: true, Matched: true, Value: 4},
		},
		Score:             1,
		PendingFirstIndex: intPtr(1),
		PairsTotal:        2,
		PairsRemaining:    1,
	}

	out := formatBoard(board)
	lines := strings.Split(out, "\n")
	if lines[0] != "   0    1    2 " {
		t.Errorf("Unexpected index row %q", lines[0])
	}
	if lines[1] != "[??] [12] <04> " {
		t.Errorf("Unexpected card row %q", lines[1])
	}
	if !strings.Contains(out, "first: 1") {
		t.Errorf("Expected pending card in output:\n%s", out)
	}
}

func TestFormatBoard_Wraps(t *testing.T) {
	cards := make([]engine.CardView, boardColumns+2)
	for i := range cards {
		cards[i].Index = i
	}

	out := formatBoard(&engine.BoardView{Cards: cards, GameOver: true})
	if strings.Count(out, "[??]") != len(cards) {
		t.Errorf("Expected %d hidden cards", len(cards))
	}
	// two rows of index and card lines
	if got := strings.Count(out, "\n"); got != 6 {
		t.Errorf("Expected 6 lines, got %d:\n%s", got, out)
	}
	if !strings.Contains(out, "GAME OVER") {
		t.Error("Expected game over marker")
	}
}

func TestFormatMoveResult(t *testing.T) {
	tests := []struct {
		name   string
		result engine.MoveResult
		want   string
	}{
		{"first reveal", engine.MoveResult{Valid: true, CardIndex: 2, CardValue: 9}, "Card 2 is 9"},
		{"rejected", engine.MoveResult{CardIndex: 40, Reason: engine.ReasonOutOfRange}, "Card 40 rejected: out_of_range"},
		{"match", engine.MoveResult{Valid: true, TurnComplete: true, IsMatch: true, CardIndex: 3, CardValue: 1, FirstIndex: intPtr(0)}, "Card 3 is 1 - MATCH with card 0"},
		{"mismatch", engine.MoveResult{Valid: true, TurnComplete: true, CardIndex: 3, CardValue: 1, FirstIndex: intPtr(0), FirstValue: 2}, "no match with card 0 (2), both turned back"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatMoveResult(tt.result); !strings.Contains(got, tt.want) {
				t.Errorf("Expected %q in %q", tt.want, got)
			}
		})
	}
}

// startAPI runs the real REST API over the repo decks
func startAPI(t *testing.T) *httptest.Server {
	t.Helper()
	logger := zaptest.NewLogger(t)

	configs, err := config.NewManager("../../configs")
	if err != nil {
		t.Fatalf("Failed to load decks: %v", err)
	}
	svc := service.NewGameService(session.NewManager(logger), configs, service.WithLogger(logger))

	srv := httptest.NewServer(api.NewServer(svc, nil, api.WithLogger(logger), api.WithStaticDir("")))
	t.Cleanup(srv.Close)
	return srv
}

func TestTools_AgainstLiveAPI(t *testing.T) {
	srv := startAPI(t)
	client := NewClient(srv.URL)

	var created service.SessionInfo
	if err := client.apiCall(context.Background(), "POST", "/api/sessions", map[string]string{"deck_id": "easy"}, &created); err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	text, isError := callTool(t, client.handleBoard, "board", map[string]interface{}{"session_id": created.ID})
	if isError {
		t.Fatalf("board failed: %s", text)
	}
	if strings.Count(text, "[??]") != 16 {
		t.Errorf("Expected 16 hidden cards on the easy deck:\n%s", text)
	}

	text, isError = callTool(t, client.handleFlipCard, "flip_card", map[string]interface{}{
		"session_id": created.ID,
		"index":      float64(0),
	})
	if isError || !strings.Contains(text, "Card 0 is") {
		t.Errorf("Unexpected flip output: %s", text)
	}

	// the opponent waits for the pending turn
	text, isError = callTool(t, client.handleCPUTurn, "cpu_turn", map[string]interface{}{"session_id": created.ID})
	if !isError {
		t.Errorf("Expected cpu_turn to be refused mid-turn, got %s", text)
	}

	text, isError = callTool(t, client.handleFlipCard, "flip_card", map[string]interface{}{
		"session_id": created.ID,
		"index":      float64(99),
	})
	if isError || !strings.Contains(text, "rejected: "+engine.ReasonOutOfRange) {
		t.Errorf("Expected out of range rejection, got %s", text)
	}

	text, _ = callTool(t, client.handleListConfigs, "list_configs", map[string]interface{}{})
	if !strings.Contains(text, "deck_id: easy") || !strings.Contains(text, "remembers 4 cards") {
		t.Errorf("Expected easy deck in configs:\n%s", text)
	}

	text, _ = callTool(t, client.handleListSessions, "list_sessions", map[string]interface{}{})
	if !strings.Contains(text, created.ID) {
		t.Errorf("Expected session in list:\n%s", text)
	}

	text, isError = callTool(t, client.handleNewGame, "new_game", map[string]interface{}{"session_id": created.ID})
	if isError || !strings.Contains(text, "New game dealt (game 2)") {
		t.Errorf("Unexpected new_game output: %s", text)
	}

	text, isError = callTool(t, client.handleGetSession, "get_session", map[string]interface{}{"session_id": "missing"})
	if !isError || !strings.Contains(text, "not found") {
		t.Errorf("Expected not found error, got %s", text)
	}
}

func TestHTTPHandler(t *testing.T) {
	client := NewClient("http://127.0.0.1:1")
	srv := httptest.NewServer(client.HTTPHandler())
	defer srv.Close()

	body := `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`
	resp, err := http.Post(srv.URL, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	data, _ := io.ReadAll(resp.Body)
	for _, tool := range []string{"flip_card", "bulk_flip", "cpu_turn", "game_instructions"} {
		if !strings.Contains(string(data), tool) {
			t.Errorf("Expected %s in tools/list", tool)
		}
	}

	resp, err = http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405 for GET, got %d", resp.StatusCode)
	}
}
