package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/dsadeck/dsadeck/internal/content"
	"github.com/dsadeck/dsadeck/internal/grader"
	"github.com/dsadeck/dsadeck/internal/i18n"
	"github.com/dsadeck/dsadeck/internal/model"
	"github.com/dsadeck/dsadeck/internal/session"
)

// stubGrader returns a canned result or error and counts calls.
type stubGrader struct {
	mu     sync.Mutex
	result *grader.Result
	err    error
	calls  int
}

func (g *stubGrader) Grade(ctx context.Context, sub grader.Submission) (*grader.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return g.result, nil
}

func newTestRouter(t *testing.T, g grader.Grader) chi.Router {
	t.Helper()
	if err := i18n.Init("en"); err != nil {
		t.Fatalf("i18n.Init: %v", err)
	}

	store, err := content.New(":memory:")
	if err != nil {
		t.Fatalf("content.New: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	for i := 0; i < 6; i++ {
		q := model.Question{
			ID:         fmt.Sprintf("%02d", i),
			Slug:       fmt.Sprintf("question-%d", i),
			Title:      fmt.Sprintf("Question %d", i),
			Difficulty: model.DifficultyEasy,
			Statement:  "Solve it.",
			StarterCode: map[model.Language]string{
				model.LangPython: "def solve():\n    pass\n",
			},
			Solution: map[model.Language]string{
				model.LangPython: "def solve():\n    return 42\n",
			},
		}
		if err := store.UpsertQuestion(q); err != nil {
			t.Fatalf("UpsertQuestion: %v", err)
		}
	}
	if err := store.UpsertTopic(model.Topic{Key: "arrays", Title: "Arrays"}, 0); err != nil {
		t.Fatalf("UpsertTopic: %v", err)
	}
	if err := store.UpsertSnippet("arrays", model.LangPython, "nums = []"); err != nil {
		t.Fatalf("UpsertSnippet: %v", err)
	}

	h := New(store, session.NewManager(), g)
	r := chi.NewRouter()
	r.Use(i18n.Middleware("en"))
	h.Routes(r)
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var env envelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("%s %s: decode response: %v", method, path, err)
	}
	return rec.Code, env
}

func resultInto(t *testing.T, env envelope, dst any) {
	t.Helper()
	raw, err := json.Marshal(env.Result)
	if err != nil {
		t.Fatalf("re-marshal result: %v", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		t.Fatalf("decode result: %v", err)
	}
}

func TestGradeEndpoint(t *testing.T) {
	g := &stubGrader{result: &grader.Result{
		Correct:          true,
		Feedback:         "Clean two-pointer solution.",
		Suggestions:      []string{"Name the pointers descriptively."},
		TimeComplexity:   "O(n)",
		ComplexityReason: "single pass",
	}}
	r := newTestRouter(t, g)

	status, env := doJSON(t, r, http.MethodPost, "/api/grade", grader.Submission{
		Language: "python",
		Topic:    "Two Sum",
		Code:     "def solve(): pass",
	})
	if status != http.StatusOK || !env.OK {
		t.Fatalf("status = %d, ok = %v, error = %q", status, env.OK, env.Error)
	}

	var result grader.Result
	resultInto(t, env, &result)
	if !result.Correct || result.TimeComplexity != "O(n)" {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestGradeEndpointUpstreamFailure(t *testing.T) {
	g := &stubGrader{err: &grader.UpstreamError{Status: 429, Body: "quota exceeded"}}
	r := newTestRouter(t, g)

	status, env := doJSON(t, r, http.MethodPost, "/api/grade", grader.Submission{
		Language: "python", Topic: "Two Sum", Code: "x",
	})
	if status != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", status)
	}
	if env.OK || env.Error == "" {
		t.Errorf("expected failure envelope, got ok=%v error=%q", env.OK, env.Error)
	}
}

func TestGradeEndpointMissingKey(t *testing.T) {
	g := &stubGrader{err: &grader.ConfigError{Reason: "missing Gemini API key"}}
	r := newTestRouter(t, g)

	status, env := doJSON(t, r, http.MethodPost, "/api/grade", grader.Submission{
		Language: "python", Topic: "Two Sum", Code: "x",
	})
	if status != http.StatusInternalServerError || env.OK {
		t.Errorf("status = %d, ok = %v, want failure envelope", status, env.OK)
	}
}

func TestContentEndpoints(t *testing.T) {
	r := newTestRouter(t, &stubGrader{})

	status, env := doJSON(t, r, http.MethodGet, "/api/topics", nil)
	if status != http.StatusOK || !env.OK {
		t.Fatalf("GET /api/topics: status %d, error %q", status, env.Error)
	}

	status, env = doJSON(t, r, http.MethodGet, "/api/topics/arrays/snippets/python", nil)
	if status != http.StatusOK || !env.OK {
		t.Fatalf("GET snippet: status %d, error %q", status, env.Error)
	}

	status, _ = doJSON(t, r, http.MethodGet, "/api/topics/arrays/snippets/cobol", nil)
	if status != http.StatusBadRequest {
		t.Errorf("unsupported language: status %d, want 400", status)
	}

	status, env = doJSON(t, r, http.MethodGet, "/api/questions?difficulty=easy", nil)
	if status != http.StatusOK || !env.OK {
		t.Fatalf("GET questions: status %d, error %q", status, env.Error)
	}
	var listing struct {
		Questions []model.Question `json:"questions"`
		Summary   string           `json:"summary"`
	}
	resultInto(t, env, &listing)
	if len(listing.Questions) != 6 {
		t.Errorf("got %d questions, want 6", len(listing.Questions))
	}
	if listing.Summary != "6 questions available." {
		t.Errorf("summary = %q", listing.Summary)
	}

	status, _ = doJSON(t, r, http.MethodGet, "/api/questions/no-such", nil)
	if status != http.StatusNotFound {
		t.Errorf("unknown question: status %d, want 404", status)
	}
}

func startSession(t *testing.T, r http.Handler) sessionView {
	t.Helper()
	status, env := doJSON(t, r, http.MethodPost, "/api/sessions", model.SessionConfig{
		Pool:            model.PoolMixed,
		QuestionCount:   3,
		Language:        model.LangPython,
		DurationMinutes: 30,
	})
	if status != http.StatusOK || !env.OK {
		t.Fatalf("start session: status %d, error %q", status, env.Error)
	}
	var view sessionView
	resultInto(t, env, &view)
	return view
}

func TestSessionLifecycle(t *testing.T) {
	g := &stubGrader{result: &grader.Result{
		Correct:          true,
		Feedback:         "Nice.",
		TimeComplexity:   "O(n)",
		ComplexityReason: "single pass",
	}}
	r := newTestRouter(t, g)

	view := startSession(t, r)
	if view.Mode != session.ModeRunning {
		t.Fatalf("mode = %s, want running", view.Mode)
	}
	if len(view.Questions) != 3 {
		t.Fatalf("got %d questions, want 3", len(view.Questions))
	}
	for _, q := range view.Questions {
		if len(q.Solution) != 0 {
			t.Errorf("question %s leaked its reference solution", q.Slug)
		}
	}
	slug := view.Questions[0].Slug
	base := "/api/sessions/" + view.ID

	status, _ := doJSON(t, r, http.MethodPost, base+"/select", map[string]int{"index": 2})
	if status != http.StatusOK {
		t.Errorf("select: status %d", status)
	}
	status, _ = doJSON(t, r, http.MethodPost, base+"/select", map[string]int{"index": 9})
	if status != http.StatusBadRequest {
		t.Errorf("select out of range: status %d, want 400", status)
	}

	status, env := doJSON(t, r, http.MethodPost, base+"/flag", map[string]string{"slug": slug})
	if status != http.StatusOK {
		t.Errorf("flag: status %d, error %q", status, env.Error)
	}

	status, _ = doJSON(t, r, http.MethodPut, base+"/code", map[string]string{
		"slug": slug, "code": "def solve(): return 1",
	})
	if status != http.StatusOK {
		t.Errorf("set code: status %d", status)
	}

	status, env = doJSON(t, r, http.MethodPost, base+"/grade", map[string]string{"slug": slug})
	if status != http.StatusOK || !env.OK {
		t.Fatalf("grade: status %d, error %q", status, env.Error)
	}
	var graded struct {
		Correct  bool   `json:"correct"`
		Feedback string `json:"feedback"`
	}
	resultInto(t, env, &graded)
	if !graded.Correct {
		t.Error("grade result should be correct")
	}
	if graded.Feedback != "Correct ✅\nNice.\nTime complexity: O(n) (single pass)" {
		t.Errorf("feedback = %q", graded.Feedback)
	}
	if g.calls != 1 {
		t.Errorf("grader called %d times, want 1", g.calls)
	}

	status, env = doJSON(t, r, http.MethodPost, base+"/finish", nil)
	if status != http.StatusOK || !env.OK {
		t.Fatalf("finish: status %d, error %q", status, env.Error)
	}
	var finished struct {
		Score     int    `json:"score"`
		Total     int    `json:"total"`
		ScoreLine string `json:"scoreLine"`
	}
	resultInto(t, env, &finished)
	if finished.Score != 1 || finished.Total != 3 {
		t.Errorf("score = %d/%d, want 1/3", finished.Score, finished.Total)
	}
	if finished.ScoreLine != "Score: 1/3" {
		t.Errorf("scoreLine = %q", finished.ScoreLine)
	}

	// Mutations are rejected once finished.
	status, _ = doJSON(t, r, http.MethodPut, base+"/code", map[string]string{"slug": slug, "code": "late"})
	if status != http.StatusConflict {
		t.Errorf("set code after finish: status %d, want 409", status)
	}

	status, _ = doJSON(t, r, http.MethodDelete, base, nil)
	if status != http.StatusOK {
		t.Errorf("discard: status %d", status)
	}
	status, _ = doJSON(t, r, http.MethodGet, base, nil)
	if status != http.StatusNotFound {
		t.Errorf("get after discard: status %d, want 404", status)
	}
}

func TestSessionGradeFailureKeepsQuestionUngraded(t *testing.T) {
	g := &stubGrader{err: &grader.UpstreamError{Status: 503, Body: "overloaded"}}
	r := newTestRouter(t, g)

	view := startSession(t, r)
	slug := view.Questions[0].Slug
	base := "/api/sessions/" + view.ID

	status, env := doJSON(t, r, http.MethodPost, base+"/grade", map[string]string{"slug": slug})
	if status != http.StatusInternalServerError || env.OK {
		t.Fatalf("grade: status %d, ok %v", status, env.OK)
	}

	status, env = doJSON(t, r, http.MethodGet, base, nil)
	if status != http.StatusOK {
		t.Fatalf("get session: status %d", status)
	}
	var after sessionView
	resultInto(t, env, &after)
	if after.Feedback[slug] == "" {
		t.Error("failure message should be stored as feedback")
	}
	if _, graded := after.Correct[slug]; graded {
		t.Error("failed grade must not mark the question graded")
	}

	// The in-flight mark was released, so grading can be retried.
	g.mu.Lock()
	g.err = nil
	g.result = &grader.Result{Correct: true, Feedback: "Recovered."}
	g.mu.Unlock()

	status, _ = doJSON(t, r, http.MethodPost, base+"/grade", map[string]string{"slug": slug})
	if status != http.StatusOK {
		t.Errorf("retry grade: status %d, want 200", status)
	}
}

func TestStartSessionValidation(t *testing.T) {
	r := newTestRouter(t, &stubGrader{})

	status, _ := doJSON(t, r, http.MethodPost, "/api/sessions", model.SessionConfig{
		Pool: "brutal", QuestionCount: 3, Language: model.LangPython, DurationMinutes: 30,
	})
	if status != http.StatusBadRequest {
		t.Errorf("unknown pool: status %d, want 400", status)
	}

	status, _ = doJSON(t, r, http.MethodPost, "/api/sessions", model.SessionConfig{
		Pool: model.PoolMixed, QuestionCount: 3, Language: "cobol", DurationMinutes: 30,
	})
	if status != http.StatusBadRequest {
		t.Errorf("unknown language: status %d, want 400", status)
	}

	// Out-of-range numbers are clamped, not rejected.
	status, env := doJSON(t, r, http.MethodPost, "/api/sessions", model.SessionConfig{
		Pool: model.PoolMixed, QuestionCount: 100, Language: model.LangPython, DurationMinutes: 1000,
	})
	if status != http.StatusOK {
		t.Fatalf("clamped start: status %d", status)
	}
	var view sessionView
	resultInto(t, env, &view)
	if view.Config.QuestionCount != 6 {
		t.Errorf("QuestionCount = %d, want clamped to pool size 6", view.Config.QuestionCount)
	}
	if view.Config.DurationMinutes != 180 {
		t.Errorf("DurationMinutes = %d, want 180", view.Config.DurationMinutes)
	}
}
