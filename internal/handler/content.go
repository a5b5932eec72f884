package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dsadeck/dsadeck/internal/content"
	"github.com/dsadeck/dsadeck/internal/i18n"
	"github.com/dsadeck/dsadeck/internal/model"
)

func (h *Handler) handleListTopics(w http.ResponseWriter, r *http.Request) {
	topics, err := h.content.ListTopics()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if topics == nil {
		topics = []model.Topic{}
	}
	writeResult(w, topics)
}

func (h *Handler) handleGetTopic(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	topic, err := h.content.GetTopic(key)
	if errors.Is(err, content.ErrNotFound) {
		writeError(w, http.StatusNotFound, "unknown topic: "+key)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	snippets, err := h.content.Snippets(key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeResult(w, struct {
		model.Topic
		Snippets map[model.Language]string `json:"snippets"`
	}{Topic: topic, Snippets: snippets})
}

func (h *Handler) handleGetSnippet(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	lang := model.Language(chi.URLParam(r, "language"))
	if !lang.Valid() {
		writeError(w, http.StatusBadRequest, "unsupported language: "+string(lang))
		return
	}

	code, err := h.content.GetSnippet(key, lang)
	if errors.Is(err, content.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no snippet for this topic and language")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeResult(w, map[string]string{"code": code})
}

func (h *Handler) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	difficulty := model.Difficulty(r.URL.Query().Get("difficulty"))
	if difficulty != "" && !difficulty.Valid() {
		writeError(w, http.StatusBadRequest, "unknown difficulty: "+string(difficulty))
		return
	}

	questions, err := h.content.ListQuestions(difficulty)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if questions == nil {
		questions = []model.Question{}
	}
	writeResult(w, struct {
		Questions []model.Question `json:"questions"`
		Summary   string           `json:"summary"`
	}{
		Questions: questions,
		Summary:   i18n.Tp(r.Context(), "QuestionsAvailable", len(questions)),
	})
}

func (h *Handler) handleGetQuestion(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	q, err := h.content.GetQuestion(slug)
	if errors.Is(err, content.ErrNotFound) {
		writeError(w, http.StatusNotFound, "unknown question: "+slug)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeResult(w, q)
}
