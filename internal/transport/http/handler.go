package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/intelogroup/usmle-trivia-sub009/internal/app"
	"github.com/intelogroup/usmle-trivia-sub009/internal/domain"
)

// API wires the quiz engine's operations onto an HTTP surface.
type API struct {
	sessions *app.SessionManager
	stats    *app.StatsAggregator
	board    *app.LeaderboardAggregator
	feed     *LeaderboardFeed
}

func NewAPI(sessions *app.SessionManager, stats *app.StatsAggregator, board *app.LeaderboardAggregator, feed *LeaderboardFeed) *API {
	return &API{sessions: sessions, stats: stats, board: board, feed: feed}
}

// Router builds the route table.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Route("/api", func(r chi.Router) {
		r.Post("/sessions", a.createSession)
		r.Get("/sessions/{sessionID}", a.getSession)
		r.Post("/sessions/{sessionID}/answers", a.applyAnswer)
		r.Post("/sessions/{sessionID}/complete", a.completeSession)
		r.Post("/sessions/{sessionID}/abandon", a.abandonSession)
		r.Get("/users/{userID}/stats", a.getUserStats)
		r.Get("/leaderboard", a.leaderboard)
	})
	if a.feed != nil {
		r.Get("/ws/leaderboard", a.feed.ServeWS)
	}
	return r
}

type createSessionRequest struct {
	UserID      string      `json:"userId"`
	DisplayName string      `json:"displayName"`
	Mode        domain.Mode `json:"mode"`
	QuestionIDs []string    `json:"questionIds"`
}

func (a *API) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// The identity provider is the caller's concern; we only mirror the
	// display name it supplies into the stats profile for leaderboards.
	if _, err := a.stats.EnsureProfile(r.Context(), req.UserID, req.DisplayName); err != nil {
		writeError(w, err)
		return
	}

	session, err := a.sessions.Create(r.Context(), req.UserID, req.Mode, req.QuestionIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (a *API) getSession(w http.ResponseWriter, r *http.Request) {
	session, err := a.sessions.Get(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

type applyAnswerRequest struct {
	QuestionIndex  int `json:"questionIndex"`
	SelectedOption int `json:"selectedOption"`
	TimeSpentSec   int `json:"timeSpentSec"`
}

func (a *API) applyAnswer(w http.ResponseWriter, r *http.Request) {
	var req applyAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	session, err := a.sessions.ApplyAnswer(r.Context(), chi.URLParam(r, "sessionID"), req.QuestionIndex, req.SelectedOption, req.TimeSpentSec)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

type completeSessionRequest struct {
	TimeSpentSec int `json:"timeSpentSec"`
}

func (a *API) completeSession(w http.ResponseWriter, r *http.Request) {
	var req completeSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	outcome, err := a.sessions.Complete(r.Context(), chi.URLParam(r, "sessionID"), req.TimeSpentSec)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (a *API) abandonSession(w http.ResponseWriter, r *http.Request) {
	session, err := a.sessions.Abandon(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (a *API) getUserStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.stats.Get(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *API) leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeErrorMessage(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = parsed
	}
	entries, err := a.board.Rank(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

type errorResponse struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrQuestionNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrInvalidArgument):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrInvalidState):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrConflict):
		// CAS retries exhausted; state is unambiguous so a full retry is safe.
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Retryable: true})
	default:
		log.Printf("internal error: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func writeErrorMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}
