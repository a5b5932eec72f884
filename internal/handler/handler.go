package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dsadeck/dsadeck/internal/content"
	"github.com/dsadeck/dsadeck/internal/grader"
	"github.com/dsadeck/dsadeck/internal/session"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	content  *content.Store
	sessions *session.Manager
	grader   grader.Grader
}

// New creates a new Handler.
func New(c *content.Store, m *session.Manager, g grader.Grader) *Handler {
	return &Handler{content: c, sessions: m, grader: g}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/api/topics", h.handleListTopics)
	r.Get("/api/topics/{key}", h.handleGetTopic)
	r.Get("/api/topics/{key}/snippets/{language}", h.handleGetSnippet)
	r.Get("/api/questions", h.handleListQuestions)
	r.Get("/api/questions/{slug}", h.handleGetQuestion)

	r.Post("/api/grade", h.handleGrade)

	r.Post("/api/sessions", h.handleStartSession)
	r.Get("/api/sessions/{sessionID}", h.handleGetSession)
	r.Delete("/api/sessions/{sessionID}", h.handleDiscardSession)
	r.Post("/api/sessions/{sessionID}/select", h.handleSelectQuestion)
	r.Post("/api/sessions/{sessionID}/flag", h.handleToggleFlag)
	r.Put("/api/sessions/{sessionID}/code", h.handleSetCode)
	r.Delete("/api/sessions/{sessionID}/code", h.handleResetCode)
	r.Post("/api/sessions/{sessionID}/grade", h.handleGradeQuestion)
	r.Post("/api/sessions/{sessionID}/finish", h.handleFinishSession)
}

// envelope is the uniform response shape: ok with a result, or not ok with
// an error message.
type envelope struct {
	OK     bool   `json:"ok"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

func writeResult(w http.ResponseWriter, result any) {
	writeJSON(w, http.StatusOK, envelope{OK: true, Result: result})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{OK: false, Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// decodeBody parses a JSON request body into dst, reporting a 400 to the
// client on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}
