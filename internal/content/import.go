package content

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/dsadeck/dsadeck/internal/model"
)

// topicFile is the on-disk shape of a topics JSON file entry.
type topicFile struct {
	Key         string                    `json:"key"`
	Title       string                    `json:"title"`
	Description string                    `json:"description"`
	Snippets    map[model.Language]string `json:"snippets"`
}

// ImportQuestions loads a questions JSON file into the store. Files whose
// content hash matches the previous import are skipped, so re-running the
// import on unchanged content is a no-op.
func (s *Store) ImportQuestions(path string) (int, error) {
	data, changed, err := s.readIfChanged(path)
	if err != nil {
		return 0, err
	}
	if !changed {
		slog.Debug("questions file unchanged, skipping import", "path", path)
		return 0, nil
	}

	var questions []model.Question
	if err := json.Unmarshal(data, &questions); err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}

	imported := 0
	for _, q := range questions {
		if q.Slug == "" {
			return imported, fmt.Errorf("%s: question %q has no slug", path, q.Title)
		}
		if !q.Difficulty.Valid() {
			return imported, fmt.Errorf("%s: question %s has invalid difficulty %q", path, q.Slug, q.Difficulty)
		}
		if err := s.UpsertQuestion(q); err != nil {
			return imported, fmt.Errorf("store question %s: %w", q.Slug, err)
		}
		imported++
	}

	if err := s.markImported(path, data); err != nil {
		return imported, err
	}
	slog.Info("imported questions", "path", path, "count", imported)
	return imported, nil
}

// ImportTopics loads a topics JSON file, including per-language snippets,
// into the store. Unchanged files are skipped by content hash.
func (s *Store) ImportTopics(path string) (int, error) {
	data, changed, err := s.readIfChanged(path)
	if err != nil {
		return 0, err
	}
	if !changed {
		slog.Debug("topics file unchanged, skipping import", "path", path)
		return 0, nil
	}

	var topics []topicFile
	if err := json.Unmarshal(data, &topics); err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}

	imported := 0
	for i, t := range topics {
		if t.Key == "" {
			return imported, fmt.Errorf("%s: topic %q has no key", path, t.Title)
		}
		err := s.UpsertTopic(model.Topic{Key: t.Key, Title: t.Title, Description: t.Description}, i)
		if err != nil {
			return imported, fmt.Errorf("store topic %s: %w", t.Key, err)
		}
		for lang, code := range t.Snippets {
			if !lang.Valid() {
				return imported, fmt.Errorf("%s: topic %s has invalid language %q", path, t.Key, lang)
			}
			if err := s.UpsertSnippet(t.Key, lang, code); err != nil {
				return imported, fmt.Errorf("store snippet %s/%s: %w", t.Key, lang, err)
			}
		}
		imported++
	}

	if err := s.markImported(path, data); err != nil {
		return imported, err
	}
	slog.Info("imported topics", "path", path, "count", imported)
	return imported, nil
}

func (s *Store) readIfChanged(path string) (data []byte, changed bool, err error) {
	data, err = os.ReadFile(path)
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", path, err)
	}
	prev, err := s.ImportedFileHash(path)
	if err != nil {
		return nil, false, err
	}
	return data, hashOf(data) != prev, nil
}

func (s *Store) markImported(path string, data []byte) error {
	return s.SetImportedFileHash(path, hashOf(data))
}

func hashOf(data []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(data))
}
