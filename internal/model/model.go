package model

// Difficulty represents question difficulty level.
type Difficulty string

const (
	DifficultyEasy         Difficulty = "easy"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyHard         Difficulty = "hard"
)

// Valid reports whether d is one of the known difficulty levels.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyIntermediate, DifficultyHard:
		return true
	}
	return false
}

// Pool is the difficulty-based subset of questions eligible for sampling.
// PoolMixed is the union of all difficulties.
type Pool string

const (
	PoolEasy         Pool = "easy"
	PoolIntermediate Pool = "intermediate"
	PoolHard         Pool = "hard"
	PoolMixed        Pool = "mixed"
)

// Valid reports whether p is a known pool selector.
func (p Pool) Valid() bool {
	return p == PoolMixed || Difficulty(p).Valid()
}

// Language is one of the programming languages supported by the editor
// and the grading prompts.
type Language string

const (
	LangJavaScript Language = "javascript"
	LangPython     Language = "python"
	LangJava       Language = "java"
	LangCPP        Language = "cpp"
	LangC          Language = "c"
)

// Languages lists all supported languages in display order.
var Languages = []Language{LangJavaScript, LangPython, LangJava, LangCPP, LangC}

// Valid reports whether l is a supported language.
func (l Language) Valid() bool {
	for _, known := range Languages {
		if l == known {
			return true
		}
	}
	return false
}

// Example is a worked input/output example attached to a question.
type Example struct {
	Input       string `json:"input"`
	Output      string `json:"output"`
	Explanation string `json:"explanation,omitempty"`
}

// Question represents a practice question. Question content is reference
// data: immutable, owned by the content store, read-only to the session
// controller and grader.
type Question struct {
	ID          string              `json:"id"`
	Slug        string              `json:"slug"`
	Title       string              `json:"title"`
	Difficulty  Difficulty          `json:"difficulty"`
	Tags        []string            `json:"tags"`
	Statement   string              `json:"statement"`
	Examples    []Example           `json:"examples,omitempty"`
	Constraints []string            `json:"constraints,omitempty"`
	StarterCode map[Language]string `json:"starterCode"`
	Hints       []string            `json:"hints"`
	Solution    map[Language]string `json:"solution,omitempty"`
}

// Topic is a revision topic with a short description.
type Topic struct {
	Key         string `json:"key"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// SessionConfig holds the parameters a learner picks on the setup screen.
// Out-of-range values are clamped at session start, not rejected.
type SessionConfig struct {
	Pool            Pool     `json:"pool"`
	QuestionCount   int      `json:"questionCount"`
	Language        Language `json:"language"`
	DurationMinutes int      `json:"durationMinutes"`
}

// Duration bounds for a mock test, in minutes.
const (
	MinDurationMinutes = 5
	MaxDurationMinutes = 180
)
