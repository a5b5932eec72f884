package i18n

import (
	"context"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init(lang); err != nil {
		t.Fatalf("Init(%q): %v", lang, err)
	}
	loc := NewLocalizer(lang)
	return WithLocalizer(context.Background(), loc)
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "AppTitle")
	if got != "DSA Deck" {
		t.Errorf("T(AppTitle) = %q, want 'DSA Deck'", got)
	}

	got = T(ctx, "VerdictCorrect")
	if got != "Correct ✅" {
		t.Errorf("T(VerdictCorrect) = %q, want 'Correct ✅'", got)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "ScoreLine", map[string]any{"Got": 3, "Total": 5})
	if got != "Score: 3/5" {
		t.Errorf("Td(ScoreLine) = %q, want 'Score: 3/5'", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got1 := Tp(ctx, "QuestionsAvailable", 1)
	if got1 != "1 question available." {
		t.Errorf("Tp(QuestionsAvailable, 1) = %q, want '1 question available.'", got1)
	}

	got5 := Tp(ctx, "QuestionsAvailable", 5)
	if got5 != "5 questions available." {
		t.Errorf("Tp(QuestionsAvailable, 5) = %q, want '5 questions available.'", got5)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "NonExistentKey")
	if got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want the key itself", got)
	}
}

func TestNoLocalizerInContext(t *testing.T) {
	initLang(t, "en")

	got := T(context.Background(), "AppTitle")
	if got != "DSA Deck" {
		t.Errorf("T without localizer = %q, want English fallback", got)
	}
}
