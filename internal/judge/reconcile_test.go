package judge

import (
	"testing"

	"github.com/abenov/zanexam/internal/model"
)

func plainItem() model.GradingItem {
	return model.GradingItem{
		Ordinal:       1,
		Question:      "Что такое преступление?",
		CorrectAnswer: "Виновно совершенное общественно опасное деяние",
		UserAnswer:    "плохой поступок",
	}
}

func TestReconcileNudge(t *testing.T) {
	tests := []struct {
		name     string
		score    int
		wantCat  model.Category
		wantScor int
	}{
		{"just below nudge window", 44, model.CategoryIncorrect, 44},
		{"bottom of nudge window", 45, model.CategoryPartial, 50},
		{"inside nudge window", 49, model.CategoryPartial, 50},
		{"at promotion threshold", 50, model.CategoryPartial, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := model.NewJudgment(1, model.CategoryIncorrect, "x", tt.score, model.SourceRemote)
			got := Reconcile(j, plainItem())
			if got.Score != tt.wantScor {
				t.Errorf("Score = %d, want %d", got.Score, tt.wantScor)
			}
			if got.Category != tt.wantCat {
				t.Errorf("Category = %s, want %s", got.Category, tt.wantCat)
			}
		})
	}
}

func TestReconcilePromotions(t *testing.T) {
	tests := []struct {
		name  string
		cat   model.Category
		score int
		want  model.Category
	}{
		{"incorrect with passing score becomes partial", model.CategoryIncorrect, 60, model.CategoryPartial},
		{"partial with high score becomes correct", model.CategoryPartial, 80, model.CategoryCorrect},
		{"partial below threshold stays partial", model.CategoryPartial, 74, model.CategoryPartial},
		{"correct stays correct", model.CategoryCorrect, 30, model.CategoryCorrect},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := model.NewJudgment(1, tt.cat, "x", tt.score, model.SourceRemote)
			got := Reconcile(j, plainItem())
			if got.Category != tt.want {
				t.Errorf("Category = %s, want %s", got.Category, tt.want)
			}
			if got.IsCorrect != (got.Category == model.CategoryCorrect) {
				t.Error("IsCorrect out of sync with category")
			}
		})
	}
}

func TestReconcileCitationOverride(t *testing.T) {
	item := model.GradingItem{
		Ordinal:       1,
		Question:      "Какая статья УК предусматривает ответственность за кражу?",
		CorrectAnswer: "Статья 345 УК",
		UserAnswer:    "345",
	}
	j := model.NewJudgment(1, model.CategoryIncorrect, "судья ошибся", 10, model.SourceRemote)

	got := Reconcile(j, item)
	if got.Category != model.CategoryCorrect {
		t.Errorf("Category = %s, want %s: citation match must override", got.Category, model.CategoryCorrect)
	}
	if !got.IsCorrect {
		t.Error("IsCorrect must follow the overridden category")
	}
}

func TestReconcileKeyTermRescue(t *testing.T) {
	item := model.GradingItem{
		Ordinal:       1,
		Question:      "Что такое наказание?",
		CorrectAnswer: "наказание конфискация арест ограничение",
		UserAnswer:    "наказание и арест",
	}

	// Coverage is 0.5, above the leniency bar; a low-scored Incorrect is
	// rescued to Partial.
	j := model.NewJudgment(1, model.CategoryIncorrect, "x", 20, model.SourceRemote)
	got := Reconcile(j, item)
	if got.Category != model.CategoryPartial {
		t.Errorf("Category = %s, want %s", got.Category, model.CategoryPartial)
	}
	if got.Score != 20 {
		t.Errorf("Score = %d, want 20: rescue adjusts category only", got.Score)
	}
}

func TestReconcileClampsScore(t *testing.T) {
	j := model.Judgment{Ordinal: 1, Category: model.CategoryCorrect, Score: 150, Source: model.SourceRemote}
	got := Reconcile(j, plainItem())
	if got.Score != 100 {
		t.Errorf("Score = %d, want 100", got.Score)
	}
}
