package session

import (
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/dsadeck/dsadeck/internal/model"
	"github.com/google/uuid"
)

// Mode is the session state machine discriminator.
type Mode string

const (
	ModeSetup    Mode = "setup"
	ModeRunning  Mode = "running"
	ModeFinished Mode = "finished"
)

var (
	ErrEmptyPool       = errors.New("question pool is empty")
	ErrNotRunning      = errors.New("session is not running")
	ErrUnknownQuestion = errors.New("question is not part of this session")
	ErrIndexOutOfRange = errors.New("question index out of range")
)

// Session is the mutable aggregate for one timed mock test. The question
// list is fixed at start and never resampled; all per-question state is
// keyed by slug so revisiting a question preserves prior code and feedback.
// All methods are safe for concurrent use.
type Session struct {
	mu sync.Mutex

	id        string
	cfg       model.SessionConfig
	questions []model.Question
	current   int
	startedAt time.Time
	endsAt    time.Time
	mode      Mode

	code     map[string]string
	feedback map[string]string
	correct  map[string]bool // presence means the question has been graded
	flagged  map[string]bool
	grading  map[string]struct{} // slugs with a grade call in flight

	now    func() time.Time
	expiry *time.Timer
}

// Option customizes session construction, mainly for tests.
type Option func(*options)

type options struct {
	now  func() time.Time
	rand *rand.Rand
}

// WithClock substitutes the wall clock.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithRand substitutes the sampling source, making question selection
// reproducible.
func WithRand(r *rand.Rand) Option {
	return func(o *options) { o.rand = r }
}

// New starts a session over the given candidate pool: clamps the requested
// count to [1, len(pool)] and the duration to [5, 180] minutes, samples the
// questions without replacement, and arms the expiry task. The returned
// session is already in the running state.
func New(cfg model.SessionConfig, pool []model.Question, opts ...Option) (*Session, error) {
	if len(pool) == 0 {
		return nil, ErrEmptyPool
	}

	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.rand == nil {
		o.rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	if cfg.QuestionCount < 1 {
		cfg.QuestionCount = 1
	}
	if cfg.QuestionCount > len(pool) {
		cfg.QuestionCount = len(pool)
	}
	if cfg.DurationMinutes < model.MinDurationMinutes {
		cfg.DurationMinutes = model.MinDurationMinutes
	}
	if cfg.DurationMinutes > model.MaxDurationMinutes {
		cfg.DurationMinutes = model.MaxDurationMinutes
	}

	now := o.now()
	s := &Session{
		id:        uuid.NewString(),
		cfg:       cfg,
		questions: Sample(o.rand, pool, cfg.QuestionCount),
		startedAt: now,
		endsAt:    now.Add(time.Duration(cfg.DurationMinutes) * time.Minute),
		mode:      ModeRunning,
		code:      make(map[string]string),
		feedback:  make(map[string]string),
		correct:   make(map[string]bool),
		flagged:   make(map[string]bool),
		grading:   make(map[string]struct{}),
		now:       o.now,
	}
	s.expiry = time.AfterFunc(s.endsAt.Sub(now), s.expire)
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Mode returns the current state machine mode.
func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Config returns the clamped configuration the session started with.
func (s *Session) Config() model.SessionConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Questions returns the sampled question list in session order.
func (s *Session) Questions() []model.Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Question, len(s.questions))
	copy(out, s.questions)
	return out
}

// Remaining recomputes the time left from the fixed deadline rather
// than a decremented counter, so missed ticks resolve correctly. Reaching
// zero forces the running to finished transition.
func (s *Session) Remaining() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remainingLocked()
}

func (s *Session) remainingLocked() time.Duration {
	left := s.endsAt.Sub(s.now())
	if left <= 0 {
		left = 0
		s.finishLocked()
	}
	return left
}

// SelectQuestion moves the cursor. It never touches the timer or the stored
// per-question state.
func (s *Session) SelectQuestion(idx int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != ModeRunning {
		return ErrNotRunning
	}
	if idx < 0 || idx >= len(s.questions) {
		return ErrIndexOutOfRange
	}
	s.current = idx
	return nil
}

// CurrentIndex returns the cursor position.
func (s *Session) CurrentIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// ToggleFlag flips the advisory flag for a question. Flags have no effect
// on grading or scoring.
func (s *Session) ToggleFlag(slug string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != ModeRunning {
		return false, ErrNotRunning
	}
	if !s.hasQuestionLocked(slug) {
		return false, ErrUnknownQuestion
	}
	s.flagged[slug] = !s.flagged[slug]
	return s.flagged[slug], nil
}

// SetCode stores the learner's working code for a question. Content is not
// validated.
func (s *Session) SetCode(slug, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != ModeRunning {
		return ErrNotRunning
	}
	if !s.hasQuestionLocked(slug) {
		return ErrUnknownQuestion
	}
	s.code[slug] = code
	return nil
}

// ResetCode discards the stored code so the question falls back to its
// starter code.
func (s *Session) ResetCode(slug string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != ModeRunning {
		return ErrNotRunning
	}
	if !s.hasQuestionLocked(slug) {
		return ErrUnknownQuestion
	}
	delete(s.code, slug)
	return nil
}

// Code returns the effective code for a question: the stored text, or the
// question's starter code for the session language if nothing was submitted
// yet.
func (s *Session) Code(slug string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.questionLocked(slug)
	if q == nil {
		return "", ErrUnknownQuestion
	}
	if code, ok := s.code[slug]; ok {
		return code, nil
	}
	return q.StarterCode[s.cfg.Language], nil
}

// Question returns the session's question with the given slug.
func (s *Session) Question(slug string) (model.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.questionLocked(slug)
	if q == nil {
		return model.Question{}, ErrUnknownQuestion
	}
	return *q, nil
}

// BeginGrade marks a grade call in flight for the slug. It returns false if
// one is already pending, keeping the at-most-one-in-flight-per-slug
// discipline.
func (s *Session) BeginGrade(slug string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != ModeRunning {
		return false, ErrNotRunning
	}
	if !s.hasQuestionLocked(slug) {
		return false, ErrUnknownQuestion
	}
	if _, inflight := s.grading[slug]; inflight {
		return false, nil
	}
	s.grading[slug] = struct{}{}
	return true, nil
}

// RecordResult stores grading output for a question and releases the
// in-flight mark. A nil correct leaves the question ungraded for scoring
// purposes (the grade call failed; the message is still shown as feedback).
// Recording is allowed after the timer expires so an in-flight reply is not
// lost, and never alters the timer or the question list.
func (s *Session) RecordResult(slug, feedbackText string, correct *bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.grading, slug)
	if s.mode == ModeSetup {
		return ErrNotRunning
	}
	if !s.hasQuestionLocked(slug) {
		return ErrUnknownQuestion
	}
	s.feedback[slug] = feedbackText
	if correct != nil {
		s.correct[slug] = *correct
	}
	return nil
}

// Finish transitions to finished. Safe to call when the timer already fired;
// the transition happens at most once.
func (s *Session) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finishLocked()
}

func (s *Session) finishLocked() {
	if s.mode != ModeRunning {
		return
	}
	s.mode = ModeFinished
	if s.expiry != nil {
		s.expiry.Stop()
	}
}

// expire is the expiry task body. It runs at most once; a manual finish or
// reset stops the timer first.
func (s *Session) expire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finishLocked()
}

// Score counts questions graded correct out of the session total.
func (s *Session) Score() (got, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range s.questions {
		if s.correct[q.Slug] {
			got++
		}
	}
	return got, len(s.questions)
}

// Reset cancels the expiry task, clears every mutable field, and re-enters
// setup. The session is effectively discarded.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expiry != nil {
		s.expiry.Stop()
	}
	s.mode = ModeSetup
	s.questions = nil
	s.current = 0
	s.code = make(map[string]string)
	s.feedback = make(map[string]string)
	s.correct = make(map[string]bool)
	s.flagged = make(map[string]bool)
	s.grading = make(map[string]struct{})
}

// Snapshot is a point-in-time copy of the session for rendering.
type Snapshot struct {
	ID           string
	Mode         Mode
	Config       model.SessionConfig
	Questions    []model.Question
	CurrentIndex int
	StartedAt    time.Time
	EndsAt       time.Time
	RemainingMs  int64
	Code         map[string]string
	Feedback     map[string]string
	Correct      map[string]bool
	Flagged      map[string]bool
}

// Snapshot copies the session state under the lock.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:           s.id,
		Config:       s.cfg,
		Questions:    make([]model.Question, len(s.questions)),
		CurrentIndex: s.current,
		StartedAt:    s.startedAt,
		EndsAt:       s.endsAt,
		RemainingMs:  s.remainingLocked().Milliseconds(),
		Code:         make(map[string]string, len(s.code)),
		Feedback:     make(map[string]string, len(s.feedback)),
		Correct:      make(map[string]bool, len(s.correct)),
		Flagged:      make(map[string]bool, len(s.flagged)),
	}
	// remainingLocked may have just flipped the mode.
	snap.Mode = s.mode
	copy(snap.Questions, s.questions)
	for k, v := range s.code {
		snap.Code[k] = v
	}
	for k, v := range s.feedback {
		snap.Feedback[k] = v
	}
	for k, v := range s.correct {
		snap.Correct[k] = v
	}
	for k, v := range s.flagged {
		snap.Flagged[k] = v
	}
	return snap
}

func (s *Session) hasQuestionLocked(slug string) bool {
	return s.questionLocked(slug) != nil
}

func (s *Session) questionLocked(slug string) *model.Question {
	for i := range s.questions {
		if s.questions[i].Slug == slug {
			return &s.questions[i]
		}
	}
	return nil
}
