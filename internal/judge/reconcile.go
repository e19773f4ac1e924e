package judge

import (
	"github.com/abenov/zanexam/internal/match"
	"github.com/abenov/zanexam/internal/model"
)

// Reconciliation thresholds.
const (
	nudgeLow         = 45 // scores in [45,50) are pushed up to 50
	partialPromotion = 50 // Incorrect with this score becomes Partial
	correctPromotion = 75 // Partial with this score becomes Correct
	keyTermLeniency  = 0.3
)

// Reconcile applies the leniency-override rules to a judgment, whatever its
// origin, so remote-parsed and fallback results converge on the same policy.
// A citation match forces Correct outright; otherwise high scores promote
// the category and key-term coverage rescues near-misses. The score is
// clamped on the way in and the result is rebuilt through NewJudgment.
func Reconcile(j model.Judgment, item model.GradingItem) model.Judgment {
	score := model.ClampScore(j.Score)
	if score >= nudgeLow && score < partialPromotion {
		score = partialPromotion
	}

	cat := j.Category
	switch {
	case match.CitationMatch(item.UserAnswer, item.CorrectAnswer, item.Question):
		cat = model.CategoryCorrect
	case score >= partialPromotion && cat == model.CategoryIncorrect:
		cat = model.CategoryPartial
	case score >= correctPromotion && cat == model.CategoryPartial:
		cat = model.CategoryCorrect
	case cat != model.CategoryCorrect &&
		match.KeyTermCoverage(item.UserAnswer, item.CorrectAnswer) >= keyTermLeniency:
		if score >= partialPromotion {
			cat = model.CategoryCorrect
		} else {
			cat = model.CategoryPartial
		}
	}

	return model.NewJudgment(j.Ordinal, cat, j.Explanation, score, j.Source)
}
