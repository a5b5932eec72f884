package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dsadeck/dsadeck/internal/grader"
	"github.com/dsadeck/dsadeck/internal/i18n"
	"github.com/dsadeck/dsadeck/internal/model"
	"github.com/dsadeck/dsadeck/internal/session"
)

// sessionView is the wire shape of a session snapshot.
type sessionView struct {
	ID           string              `json:"id"`
	Mode         session.Mode        `json:"mode"`
	Config       model.SessionConfig `json:"config"`
	Questions    []model.Question    `json:"questions"`
	CurrentIndex int                 `json:"currentIndex"`
	StartedAt    time.Time           `json:"startedAt"`
	EndsAt       time.Time           `json:"endsAt"`
	RemainingMs  int64               `json:"remainingMs"`
	Code         map[string]string   `json:"code"`
	Feedback     map[string]string   `json:"feedback"`
	Correct      map[string]bool     `json:"correct"`
	Flagged      map[string]bool     `json:"flagged"`
}

func viewOf(snap session.Snapshot) sessionView {
	// Reference solutions never travel with a live session.
	questions := make([]model.Question, len(snap.Questions))
	for i, q := range snap.Questions {
		q.Solution = nil
		questions[i] = q
	}
	return sessionView{
		ID:           snap.ID,
		Mode:         snap.Mode,
		Config:       snap.Config,
		Questions:    questions,
		CurrentIndex: snap.CurrentIndex,
		StartedAt:    snap.StartedAt,
		EndsAt:       snap.EndsAt,
		RemainingMs:  snap.RemainingMs,
		Code:         snap.Code,
		Feedback:     snap.Feedback,
		Correct:      snap.Correct,
		Flagged:      snap.Flagged,
	}
}

func (h *Handler) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var cfg model.SessionConfig
	if !decodeBody(w, r, &cfg) {
		return
	}
	if cfg.Pool == "" {
		cfg.Pool = model.PoolMixed
	}
	if !cfg.Pool.Valid() {
		writeError(w, http.StatusBadRequest, "unknown pool: "+string(cfg.Pool))
		return
	}
	if !cfg.Language.Valid() {
		writeError(w, http.StatusBadRequest, "unsupported language: "+string(cfg.Language))
		return
	}

	pool, err := h.content.Pool(cfg.Pool)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s, err := h.sessions.Start(cfg, pool)
	if errors.Is(err, session.ErrEmptyPool) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	slog.Info("session started", "id", s.ID(),
		"pool", cfg.Pool, "questions", s.Config().QuestionCount,
		"duration_min", s.Config().DurationMinutes)
	writeResult(w, viewOf(s.Snapshot()))
}

// lookupSession resolves the session from the URL, writing a 404 on miss.
func (h *Handler) lookupSession(w http.ResponseWriter, r *http.Request) *session.Session {
	id := chi.URLParam(r, "sessionID")
	s, err := h.sessions.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, i18n.T(r.Context(), "SessionNotFound"))
		return nil
	}
	return s
}

// writeSessionError maps session state machine errors onto HTTP statuses.
func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotRunning):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, session.ErrUnknownQuestion):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrIndexOutOfRange):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	s := h.lookupSession(w, r)
	if s == nil {
		return
	}
	writeResult(w, viewOf(s.Snapshot()))
}

func (h *Handler) handleDiscardSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if err := h.sessions.Discard(id); err != nil {
		writeError(w, http.StatusNotFound, i18n.T(r.Context(), "SessionNotFound"))
		return
	}
	slog.Info("session discarded", "id", id)
	writeResult(w, map[string]string{"id": id})
}

func (h *Handler) handleSelectQuestion(w http.ResponseWriter, r *http.Request) {
	s := h.lookupSession(w, r)
	if s == nil {
		return
	}
	var req struct {
		Index int `json:"index"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.SelectQuestion(req.Index); err != nil {
		writeSessionError(w, err)
		return
	}
	writeResult(w, map[string]int{"currentIndex": req.Index})
}

func (h *Handler) handleToggleFlag(w http.ResponseWriter, r *http.Request) {
	s := h.lookupSession(w, r)
	if s == nil {
		return
	}
	var req struct {
		Slug string `json:"slug"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	flagged, err := s.ToggleFlag(req.Slug)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeResult(w, map[string]bool{"flagged": flagged})
}

func (h *Handler) handleSetCode(w http.ResponseWriter, r *http.Request) {
	s := h.lookupSession(w, r)
	if s == nil {
		return
	}
	var req struct {
		Slug string `json:"slug"`
		Code string `json:"code"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.SetCode(req.Slug, req.Code); err != nil {
		writeSessionError(w, err)
		return
	}
	writeResult(w, map[string]string{"slug": req.Slug})
}

func (h *Handler) handleResetCode(w http.ResponseWriter, r *http.Request) {
	s := h.lookupSession(w, r)
	if s == nil {
		return
	}
	slug := r.URL.Query().Get("slug")
	if err := s.ResetCode(slug); err != nil {
		writeSessionError(w, err)
		return
	}
	code, err := s.Code(slug)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeResult(w, map[string]string{"slug": slug, "code": code})
}

// handleGradeQuestion sends the learner's current code for one question to
// the grader and stores the outcome on the session. At most one grade call
// per question may be in flight.
func (h *Handler) handleGradeQuestion(w http.ResponseWriter, r *http.Request) {
	s := h.lookupSession(w, r)
	if s == nil {
		return
	}
	var req struct {
		Slug string `json:"slug"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	q, err := s.Question(req.Slug)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	code, err := s.Code(req.Slug)
	if err != nil {
		writeSessionError(w, err)
		return
	}

	ok, err := s.BeginGrade(req.Slug)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusConflict, i18n.T(r.Context(), "GradeInFlight"))
		return
	}

	result, err := h.grader.Grade(r.Context(), grader.Submission{
		Language: string(s.Config().Language),
		Topic:    q.Title,
		Code:     code,
	})
	if err != nil {
		msg := i18n.Td(r.Context(), "GradeFailed", map[string]any{"Message": err.Error()})
		if recErr := s.RecordResult(req.Slug, msg, nil); recErr != nil {
			slog.Warn("record failed grade", "slug", req.Slug, "error", recErr)
		}
		slog.Error("grading failed", "session", s.ID(), "slug", req.Slug, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	feedback := composeFeedback(r, result)
	if err := s.RecordResult(req.Slug, feedback, &result.Correct); err != nil {
		writeSessionError(w, err)
		return
	}

	writeResult(w, struct {
		Slug     string        `json:"slug"`
		Correct  bool          `json:"correct"`
		Feedback string        `json:"feedback"`
		Result   grader.Result `json:"result"`
	}{Slug: req.Slug, Correct: result.Correct, Feedback: feedback, Result: *result})
}

// composeFeedback renders a grading result as the multi-line text shown in
// the feedback panel: verdict, prose feedback, then one bullet per
// suggestion.
func composeFeedback(r *http.Request, result *grader.Result) string {
	var lines []string
	if result.Correct {
		lines = append(lines, i18n.T(r.Context(), "VerdictCorrect"))
	} else {
		lines = append(lines, i18n.T(r.Context(), "VerdictIncorrect"))
	}
	if result.Feedback != "" {
		lines = append(lines, result.Feedback)
	}
	for _, s := range result.Suggestions {
		lines = append(lines, "- "+s)
	}
	if result.TimeComplexity != "" && result.TimeComplexity != "-" {
		lines = append(lines, i18n.Td(r.Context(), "TimeComplexityLine", map[string]any{
			"Complexity": result.TimeComplexity,
			"Reason":     result.ComplexityReason,
		}))
	}
	return strings.Join(lines, "\n")
}

// questionResult is one row of the finish screen.
type questionResult struct {
	Slug     string `json:"slug"`
	Title    string `json:"title"`
	Graded   bool   `json:"graded"`
	Correct  bool   `json:"correct"`
	Feedback string `json:"feedback,omitempty"`
	Flagged  bool   `json:"flagged,omitempty"`
	Code     string `json:"code,omitempty"`
}

func (h *Handler) handleFinishSession(w http.ResponseWriter, r *http.Request) {
	s := h.lookupSession(w, r)
	if s == nil {
		return
	}

	s.Finish()
	snap := s.Snapshot()
	got, total := s.Score()

	results := make([]questionResult, 0, len(snap.Questions))
	for _, q := range snap.Questions {
		correct, graded := snap.Correct[q.Slug]
		results = append(results, questionResult{
			Slug:     q.Slug,
			Title:    q.Title,
			Graded:   graded,
			Correct:  correct,
			Feedback: snap.Feedback[q.Slug],
			Flagged:  snap.Flagged[q.Slug],
			Code:     snap.Code[q.Slug],
		})
	}

	slog.Info("session finished", "id", s.ID(), "score", got, "total", total)
	writeResult(w, struct {
		Score     int              `json:"score"`
		Total     int              `json:"total"`
		ScoreLine string           `json:"scoreLine"`
		Results   []questionResult `json:"results"`
	}{
		Score:     got,
		Total:     total,
		ScoreLine: i18n.Td(r.Context(), "ScoreLine", map[string]any{"Got": got, "Total": total}),
		Results:   results,
	})
}
