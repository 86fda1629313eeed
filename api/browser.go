package api

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/wricardo/mcp-training/memorygame/game/session"
)

// Browser routes identify the player by cookie instead of by path. Each
// request refreshes the cookie; a cookie that does not name a live session
// starts a new game.

// handleIndex starts a fresh game and serves the page
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	info, err := s.service.CreateSession(r.Context(), "")
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	if err := s.cookies.Issue(w, info.ID); err != nil {
		s.respondServiceError(w, err)
		return
	}

	if index := s.indexPage(); index != "" {
		http.ServeFile(w, r, index)
		return
	}
	respondJSON(w, http.StatusOK, info)
}

// indexPage returns the static index.html path when one exists
func (s *Server) indexPage() string {
	if s.staticDir == "" {
		return ""
	}
	path := filepath.Join(s.staticDir, "index.html")
	if st, err := os.Stat(path); err != nil || st.IsDir() {
		return ""
	}
	return path
}

// handleBrowserGame returns the cookie's session, creating one if needed
func (s *Server) handleBrowserGame(w http.ResponseWriter, r *http.Request) {
	sessionID, created, err := s.browserSession(w, r)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	info, err := s.service.GetSession(r.Context(), sessionID)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	if !created && len(info.Events) > 0 {
		s.broadcast(sessionID, info.Board, info.Events)
	}

	respondJSON(w, http.StatusOK, info)
}

// handleBrowserFlip reveals a card and returns the engine result as is
func (s *Server) handleBrowserFlip(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "card index must be an integer")
		return
	}

	sessionID, _, err := s.browserSession(w, r)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	outcome, err := s.flip(r.Context(), sessionID, index)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, outcome.Result)
}

func (s *Server) handleBrowserNewGame(w http.ResponseWriter, r *http.Request) {
	sessionID, created, err := s.browserSession(w, r)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	// a session created just now already holds a fresh deal
	if !created {
		if _, err := s.newGame(r.Context(), sessionID); err != nil {
			s.respondServiceError(w, err)
			return
		}
	}

	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleBrowserCPUTurn(w http.ResponseWriter, r *http.Request) {
	sessionID, _, err := s.browserSession(w, r)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	result, err := s.cpuTurn(r.Context(), sessionID)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// browserSession resolves the cookie's session and refreshes the cookie.
// created reports whether a new session had to be started.
func (s *Server) browserSession(w http.ResponseWriter, r *http.Request) (string, bool, error) {
	sessionID, err := s.cookies.SessionID(r)
	if err == nil {
		if _, err = s.service.GetSession(r.Context(), sessionID); err == nil {
			return sessionID, false, s.cookies.Issue(w, sessionID)
		}
		if !errors.Is(err, session.ErrSessionNotFound) {
			return "", false, err
		}
	}

	s.logger.Debug("starting browser session", zap.NamedError("cookie", err))
	sessionID, err = s.startBrowserSession(r.Context())
	if err != nil {
		return "", false, err
	}
	return sessionID, true, s.cookies.Issue(w, sessionID)
}

func (s *Server) startBrowserSession(ctx context.Context) (string, error) {
	info, err := s.service.CreateSession(ctx, "")
	if err != nil {
		return "", err
	}
	return info.ID, nil
}
