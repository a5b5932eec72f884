package content

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dsadeck/dsadeck/internal/model"

	_ "modernc.org/sqlite"
)

// ErrNotFound means the requested content row does not exist.
var ErrNotFound = errors.New("content not found")

// Store holds the read-mostly reference content: practice questions,
// revision topics, and per-language code snippets. Session state is never
// written here.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the content database at dbPath.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS questions (
		slug TEXT PRIMARY KEY,
		id TEXT NOT NULL,
		title TEXT NOT NULL,
		difficulty TEXT NOT NULL,
		tags TEXT NOT NULL DEFAULT '[]',
		statement TEXT NOT NULL,
		examples TEXT NOT NULL DEFAULT '[]',
		constraints TEXT NOT NULL DEFAULT '[]',
		starter_code TEXT NOT NULL DEFAULT '{}',
		hints TEXT NOT NULL DEFAULT '[]',
		solution TEXT NOT NULL DEFAULT '{}'
	);

	CREATE TABLE IF NOT EXISTS topics (
		key TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		position INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS snippets (
		topic_key TEXT NOT NULL,
		language TEXT NOT NULL,
		code TEXT NOT NULL,
		PRIMARY KEY (topic_key, language),
		FOREIGN KEY (topic_key) REFERENCES topics(key)
	);

	CREATE TABLE IF NOT EXISTS imported_files (
		path TEXT PRIMARY KEY,
		sha256 TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// UpsertQuestion stores or replaces a question by slug.
func (s *Store) UpsertQuestion(q model.Question) error {
	tags, err := json.Marshal(q.Tags)
	if err != nil {
		return err
	}
	examples, err := json.Marshal(q.Examples)
	if err != nil {
		return err
	}
	constraints, err := json.Marshal(q.Constraints)
	if err != nil {
		return err
	}
	starter, err := json.Marshal(q.StarterCode)
	if err != nil {
		return err
	}
	hints, err := json.Marshal(q.Hints)
	if err != nil {
		return err
	}
	solution, err := json.Marshal(q.Solution)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(
		`INSERT INTO questions (slug, id, title, difficulty, tags, statement, examples, constraints, starter_code, hints, solution)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(slug) DO UPDATE SET
			id = excluded.id, title = excluded.title, difficulty = excluded.difficulty,
			tags = excluded.tags, statement = excluded.statement, examples = excluded.examples,
			constraints = excluded.constraints, starter_code = excluded.starter_code,
			hints = excluded.hints, solution = excluded.solution`,
		q.Slug, q.ID, q.Title, q.Difficulty, string(tags), q.Statement,
		string(examples), string(constraints), string(starter), string(hints), string(solution),
	)
	return err
}

const questionColumns = `slug, id, title, difficulty, tags, statement, examples, constraints, starter_code, hints, solution`

func scanQuestion(row interface{ Scan(...any) error }) (model.Question, error) {
	var q model.Question
	var tags, examples, constraints, starter, hints, solution string
	err := row.Scan(&q.Slug, &q.ID, &q.Title, &q.Difficulty, &tags, &q.Statement,
		&examples, &constraints, &starter, &hints, &solution)
	if err != nil {
		return q, err
	}
	for _, field := range []struct {
		raw  string
		dest any
	}{
		{tags, &q.Tags},
		{examples, &q.Examples},
		{constraints, &q.Constraints},
		{starter, &q.StarterCode},
		{hints, &q.Hints},
		{solution, &q.Solution},
	} {
		if err := json.Unmarshal([]byte(field.raw), field.dest); err != nil {
			return q, fmt.Errorf("decode question %s: %w", q.Slug, err)
		}
	}
	return q, nil
}

// GetQuestion returns a question by slug.
func (s *Store) GetQuestion(slug string) (model.Question, error) {
	row := s.db.QueryRow(`SELECT `+questionColumns+` FROM questions WHERE slug = ?`, slug)
	q, err := scanQuestion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return q, ErrNotFound
	}
	return q, err
}

// ListQuestions returns all questions of the given difficulty, or every
// question when difficulty is empty. Rows come back in id order so pool
// contents are stable between calls.
func (s *Store) ListQuestions(difficulty model.Difficulty) ([]model.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions`
	var args []any
	if difficulty != "" {
		query += ` WHERE difficulty = ?`
		args = append(args, difficulty)
	}
	query += ` ORDER BY id`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// Pool returns the questions eligible for sampling under the given pool
// selector (a single difficulty, or the union for mixed).
func (s *Store) Pool(p model.Pool) ([]model.Question, error) {
	if p == model.PoolMixed {
		return s.ListQuestions("")
	}
	return s.ListQuestions(model.Difficulty(p))
}

// QuestionCount returns the number of stored questions.
func (s *Store) QuestionCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM questions`).Scan(&count)
	return count, err
}

// UpsertTopic stores or replaces a revision topic at the given position.
func (s *Store) UpsertTopic(t model.Topic, position int) error {
	_, err := s.db.Exec(
		`INSERT INTO topics (key, title, description, position) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET title = excluded.title,
			description = excluded.description, position = excluded.position`,
		t.Key, t.Title, t.Description, position,
	)
	return err
}

// ListTopics returns all topics in curriculum order.
func (s *Store) ListTopics() ([]model.Topic, error) {
	rows, err := s.db.Query(`SELECT key, title, description FROM topics ORDER BY position, key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var topics []model.Topic
	for rows.Next() {
		var t model.Topic
		if err := rows.Scan(&t.Key, &t.Title, &t.Description); err != nil {
			return nil, err
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

// GetTopic returns a topic by key.
func (s *Store) GetTopic(key string) (model.Topic, error) {
	var t model.Topic
	err := s.db.QueryRow(
		`SELECT key, title, description FROM topics WHERE key = ?`, key,
	).Scan(&t.Key, &t.Title, &t.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return t, ErrNotFound
	}
	return t, err
}

// UpsertSnippet stores or replaces the code snippet for a topic/language pair.
func (s *Store) UpsertSnippet(topicKey string, lang model.Language, code string) error {
	_, err := s.db.Exec(
		`INSERT INTO snippets (topic_key, language, code) VALUES (?, ?, ?)
		 ON CONFLICT(topic_key, language) DO UPDATE SET code = excluded.code`,
		topicKey, lang, code,
	)
	return err
}

// GetSnippet returns the snippet for a topic in the given language.
func (s *Store) GetSnippet(topicKey string, lang model.Language) (string, error) {
	var code string
	err := s.db.QueryRow(
		`SELECT code FROM snippets WHERE topic_key = ? AND language = ?`, topicKey, lang,
	).Scan(&code)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return code, err
}

// Snippets returns all snippets for a topic keyed by language.
func (s *Store) Snippets(topicKey string) (map[model.Language]string, error) {
	rows, err := s.db.Query(`SELECT language, code FROM snippets WHERE topic_key = ?`, topicKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[model.Language]string)
	for rows.Next() {
		var lang model.Language
		var code string
		if err := rows.Scan(&lang, &code); err != nil {
			return nil, err
		}
		out[lang] = code
	}
	return out, rows.Err()
}

// ImportedFileHash returns the recorded content hash for an imported file,
// or "" if the file was never imported.
func (s *Store) ImportedFileHash(path string) (string, error) {
	var hash string
	err := s.db.QueryRow(`SELECT sha256 FROM imported_files WHERE path = ?`, path).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return hash, err
}

// SetImportedFileHash records the content hash for an imported file.
func (s *Store) SetImportedFileHash(path, hash string) error {
	_, err := s.db.Exec(
		`INSERT INTO imported_files (path, sha256) VALUES (?, ?)
		 ON CONFLICT(path) DO UPDATE SET sha256 = excluded.sha256`,
		path, hash,
	)
	return err
}
