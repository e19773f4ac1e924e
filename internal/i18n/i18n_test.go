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

	got := T(ctx, "VerdictPassed")
	if got != "Passed" {
		t.Errorf("T(VerdictPassed) = %q, want 'Passed'", got)
	}

	got = T(ctx, "VerdictFailed")
	if got != "Failed" {
		t.Errorf("T(VerdictFailed) = %q, want 'Failed'", got)
	}
}

func TestTranslateRussian(t *testing.T) {
	ctx := initLang(t, "ru")

	got := T(ctx, "VerdictPassed")
	if got != "Сдал" {
		t.Errorf("T(VerdictPassed) = %q, want 'Сдал'", got)
	}

	got = T(ctx, "SourceFallback")
	if got != "Автоматическая проверка" {
		t.Errorf("T(SourceFallback) = %q, want 'Автоматическая проверка'", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got1 := Tp(ctx, "QuestionsGraded", 1)
	if got1 != "1 question graded." {
		t.Errorf("Tp(QuestionsGraded, 1) = %q, want '1 question graded.'", got1)
	}

	got5 := Tp(ctx, "QuestionsGraded", 5)
	if got5 != "5 questions graded." {
		t.Errorf("Tp(QuestionsGraded, 5) = %q, want '5 questions graded.'", got5)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "ScoreLine", map[string]any{"Correct": 7, "Total": 10, "Percentage": 70})
	if got != "Score: 7 of 10 (70%)" {
		t.Errorf("Td(ScoreLine) = %q, want 'Score: 7 of 10 (70%%)'", got)
	}
}

func TestDefaultLanguageWithoutLocalizer(t *testing.T) {
	if err := Init("ru"); err != nil {
		t.Fatalf("Init(ru): %v", err)
	}

	// A context that never went through the middleware must still localize
	// in the configured default language.
	got := T(context.Background(), "VerdictPassed")
	if got != "Сдал" {
		t.Errorf("T(VerdictPassed) = %q, want 'Сдал'", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "NonExistentKey")
	if got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}
