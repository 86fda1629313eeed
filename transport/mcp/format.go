package mcp

import (
	"fmt"
	"strings"

	"github.com/wricardo/mcp-training/memorygame/game/engine"
	"github.com/wricardo/mcp-training/memorygame/game/service"
)

// boardColumns is the number of cards per printed row
const boardColumns = 8

// Formatting helpers

func formatCard(card engine.CardView) string {
	switch {
	case card.Matched:
		return fmt.Sprintf("<%02d>", card.Value)
	case card.FaceUp:
		return fmt.Sprintf("[%2d]", card.Value)
	default:
		return "[??]"
	}
}

func formatBoard(board *engine.BoardView) string {
	var b strings.Builder

	for start := 0; start < len(board.Cards); start += boardColumns {
		end := start + boardColumns
		if end > len(board.Cards) {
			end = len(board.Cards)
		}
		row := board.Cards[start:end]

		for _, card := range row {
			fmt.Fprintf(&b, "%4d ", card.Index)
		}
		b.WriteString("\n")
		for _, card := range row {
			b.WriteString(formatCard(card))
			b.WriteString(" ")
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\nScore: %d | Pairs left: %d/%d", board.Score, board.PairsRemaining, board.PairsTotal)
	if board.PendingFirstIndex != nil {
		fmt.Fprintf(&b, " | Waiting for second card (first: %d)", *board.PendingFirstIndex)
	}
	if board.GameOver {
		b.WriteString(" | GAME OVER")
	}
	b.WriteString("\n")
	return b.String()
}

func formatScores(scores service.Scoreboard) string {
	return fmt.Sprintf("You %d - CPU %d", scores.Player, scores.CPU)
}

func formatSessionInfo(session *service.SessionInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session: %s\n", session.ID)
	fmt.Fprintf(&b, "Deck: %s (%s)\n", session.DeckName, session.DeckID)
	fmt.Fprintf(&b, "Created: %s\n", session.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Last Accessed: %s\n", session.LastAccessedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Games: %d | Moves: %d | %s\n\n", session.GamesPlayed, session.TotalMoves, formatScores(session.Scores))
	b.WriteString(formatBoard(&session.Board))
	if len(session.Events) > 0 {
		b.WriteString("\n")
		b.WriteString(formatEvents(session.Events))
	}
	return b.String()
}

// formatMoveResult describes one engine result on a single line
func formatMoveResult(r engine.MoveResult) string {
	if !r.Valid {
		return fmt.Sprintf("Card %d rejected: %s", r.CardIndex, r.Reason)
	}
	if !r.TurnComplete {
		return fmt.Sprintf("Card %d is %d", r.CardIndex, r.CardValue)
	}
	if r.IsMatch {
		return fmt.Sprintf("Card %d is %d - MATCH with card %d", r.CardIndex, r.CardValue, derefIndex(r.FirstIndex))
	}
	return fmt.Sprintf("Card %d is %d - no match with card %d (%d), both turned back",
		r.CardIndex, r.CardValue, derefIndex(r.FirstIndex), r.FirstValue)
}

func derefIndex(i *int) int {
	if i == nil {
		return -1
	}
	return *i
}

func formatMoveOutcome(outcome *service.MoveOutcome) string {
	var b strings.Builder
	b.WriteString(formatMoveResult(outcome.Result))
	b.WriteString("\n")
	if outcome.Message != "" {
		fmt.Fprintf(&b, "Message: %s\n", outcome.Message)
	}
	if outcome.Result.GameOver {
		b.WriteString("🏆 All pairs found!\n")
	}
	fmt.Fprintf(&b, "Scores: %s\n\n", formatScores(outcome.Scores))
	b.WriteString(formatBoard(&outcome.Board))
	return b.String()
}

func formatBulkFlipResult(sessionID string, result *service.BulkFlipResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Bulk flip for session %s\n", sessionID)
	fmt.Fprintf(&b, "Executed %d of %d flips", result.FlipsExecuted, result.RequestedFlips)
	if result.Truncated {
		fmt.Fprintf(&b, " (truncated to %d)", result.Limit)
	}
	b.WriteString("\n")

	for i, r := range result.Results {
		fmt.Fprintf(&b, "%d. %s\n", i+1, formatMoveResult(r))
	}

	if result.StoppedReason != "" {
		fmt.Fprintf(&b, "Stopped on flip %d: %s\n", result.StoppedOnFlip, result.StoppedReason)
	}
	fmt.Fprintf(&b, "Pairs found: %+d | Scores: %s\n", result.ScoreDelta, formatScores(result.Scores))
	if result.GameOver {
		b.WriteString("🏆 All pairs found!\n")
	}
	b.WriteString("\n")
	b.WriteString(formatBoard(&result.Board))
	return b.String()
}

func formatCPUTurn(result *service.CPUTurnResult) string {
	var b strings.Builder
	b.WriteString("CPU turn:\n")
	for i, r := range result.Moves {
		fmt.Fprintf(&b, "%d. %s\n", i+1, formatMoveResult(r))
	}
	if result.Match {
		b.WriteString("The CPU found a pair\n")
	}
	if result.Message != "" {
		fmt.Fprintf(&b, "Message: %s\n", result.Message)
	}
	fmt.Fprintf(&b, "Scores: %s\n\n", formatScores(result.Scores))
	b.WriteString(formatBoard(&result.Board))
	return b.String()
}

func formatHistory(history *service.HistoryResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Move History (Page %d/%d, Total: %d)\n\n", history.Page, history.TotalPages, history.TotalMoves)

	for _, move := range history.Moves {
		status := "✓"
		detail := fmt.Sprintf("value %d", move.Value)
		switch {
		case !move.Valid:
			status = "✗"
			detail = move.Reason
		case move.IsMatch:
			detail += ", match"
		case move.TurnComplete:
			detail += ", no match"
		}
		fmt.Fprintf(&b, "%s #%d [game %d] %s flipped %d: %s (score %d)\n",
			status, move.MoveNumber, move.Game, move.Actor, move.CardIndex, detail, move.Score)
	}

	if history.HasPrevious || history.HasNext {
		b.WriteString("\n")
		if history.HasPrevious {
			b.WriteString("← Previous page available  ")
		}
		if history.HasNext {
			b.WriteString("Next page available →")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func formatEvents(events []service.GameEvent) string {
	var b strings.Builder
	b.WriteString("Events:\n")
	for _, e := range events {
		fmt.Fprintf(&b, "  - [%s] %s\n", e.Type, e.Message)
	}
	return b.String()
}
