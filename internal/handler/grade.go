package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dsadeck/dsadeck/internal/grader"
)

// handleGrade grades a standalone code submission. Malformed model output
// never surfaces here: the normalizer always produces a result, so errors
// mean configuration or upstream failures.
func (h *Handler) handleGrade(w http.ResponseWriter, r *http.Request) {
	var sub grader.Submission
	if !decodeBody(w, r, &sub) {
		return
	}

	result, err := h.grader.Grade(r.Context(), sub)
	if err != nil {
		var cfgErr *grader.ConfigError
		var upErr *grader.UpstreamError
		switch {
		case errors.As(err, &cfgErr):
			slog.Error("grader misconfigured", "error", err)
		case errors.As(err, &upErr):
			slog.Error("grading upstream failed", "status", upErr.Status)
		default:
			slog.Error("grading failed", "error", err)
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeResult(w, result)
}
