package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fakhriadk/calmbot/internal/app/conversation"
	"github.com/fakhriadk/calmbot/internal/app/entitlement"
	"github.com/fakhriadk/calmbot/internal/app/journal"
	"github.com/fakhriadk/calmbot/internal/app/mood"
	"github.com/fakhriadk/calmbot/internal/domain"
	"github.com/fakhriadk/calmbot/internal/identity"
	"github.com/fakhriadk/calmbot/internal/observability"
)

// Services are the application services exposed over HTTP.
type Services struct {
	Sessions     *conversation.Hub
	Journal      *journal.Service
	Moods        *mood.Service
	Entitlements *entitlement.Service
	Identity     identity.Resolver
}

type Server struct {
	svc Services
}

func NewServer(svc Services) http.Handler {
	s := &Server{svc: svc}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(withRequestContext)
	r.Use(withLogging)
	r.Use(middleware.Recoverer)
	r.Use(withCORS)

	r.Get("/healthz", s.handleHealthz)

	r.Route("/api", func(api chi.Router) {
		api.Use(identity.Middleware(svc.Identity))

		api.Route("/chat", func(chat chi.Router) {
			chat.Post("/session", s.handleStartSession)
			chat.Delete("/session", s.handleStopSession)
			chat.Get("/messages", s.handleGetMessages)
			chat.Post("/messages", s.handleSendMessage)
			chat.Get("/ws", s.handleWebSocket)
		})

		api.Get("/journal", s.handleListJournal)
		api.Post("/journal", s.handleAddJournal)

		api.Get("/moods", s.handleListMoods)
		api.Post("/moods", s.handleLogMood)
		api.Get("/statistics", s.handleStatistics)

		api.Get("/premium", s.handleGetPremium)
		api.Post("/premium/upgrade", s.handleUpgrade)
	})

	return r
}

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

type sendMessageRequest struct {
	Text string `json:"text"`
}

type sendMessageResponse struct {
	Result conversation.SendResult `json:"result"`
	// Error is the completion failure of a rolled back send.
	Error string            `json:"error,omitempty"`
	View  conversation.View `json:"view"`
}

type addJournalRequest struct {
	Content string `json:"content"`
}

type logMoodRequest struct {
	Date  string `json:"date"`
	Value int    `json:"value"`
}

// ─────────────────────────────────────────────
// Chat
// ─────────────────────────────────────────────

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	m, err := s.svc.Sessions.Start(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m.View())
}

func (s *Server) handleStopSession(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Sessions.Stop(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	m, err := s.svc.Sessions.Session(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m.View())
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	m, err := s.svc.Sessions.Session(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := m.Send(r.Context(), req.Text)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if res.User == nil {
		// blank input
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := sendMessageResponse{Result: res, View: m.View()}
	if res.Err != nil {
		resp.Error = res.Err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// ─────────────────────────────────────────────
// Journal, moods, premium
// ─────────────────────────────────────────────

func (s *Server) handleListJournal(w http.ResponseWriter, r *http.Request) {
	uid := currentUser(r)
	entries, err := s.svc.Journal.GetUserJournal(r.Context(), uid, queryLimit(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handleAddJournal(w http.ResponseWriter, r *http.Request) {
	var req addJournalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	uid := currentUser(r)
	ent, err := s.svc.Entitlements.Resolve(r.Context(), uid)
	if err != nil {
		writeError(w, r, err)
		return
	}

	entry, err := s.svc.Journal.AddEntry(r.Context(), uid, req.Content, ent)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleListMoods(w http.ResponseWriter, r *http.Request) {
	moods, err := s.svc.Moods.Recent(r.Context(), currentUser(r), queryLimit(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if moods == nil {
		moods = []*domain.MoodSnapshot{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"moods": moods})
}

func (s *Server) handleLogMood(w http.ResponseWriter, r *http.Request) {
	var req logMoodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	snap, err := s.svc.Moods.LogMood(r.Context(), currentUser(r), req.Date, req.Value)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.Moods.Statistics(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleGetPremium(w http.ResponseWriter, r *http.Request) {
	ent, err := s.svc.Entitlements.Resolve(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ent)
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	ent, err := s.svc.Entitlements.Upgrade(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ent)
}

// ─────────────────────────────────────────────
// HTTP Helpers
// ─────────────────────────────────────────────

// currentUser is always set behind identity.Middleware.
func currentUser(r *http.Request) domain.UserID {
	uid, _ := identity.UserFrom(r.Context())
	return uid
}

func queryLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error": msg,
	})
}

// writeError maps application errors to status codes.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, conversation.ErrAuthMissing):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	case errors.Is(err, journal.ErrEmptyContent),
		errors.Is(err, mood.ErrInvalidMood),
		errors.Is(err, mood.ErrInvalidDate):
		badRequest(w, err.Error())
	case errors.Is(err, journal.ErrLimitReached):
		writeJSON(w, http.StatusPaymentRequired, map[string]string{"error": err.Error()})
	case errors.Is(err, conversation.ErrSessionClosed),
		errors.Is(err, conversation.ErrSendInFlight):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		observability.LoggerFromContext(r.Context()).Error("request failed",
			"path", r.URL.Path,
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "internal server error",
		})
	}
}
