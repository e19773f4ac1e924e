package judge

import (
	"math/rand/v2"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/abenov/zanexam/internal/match"
	"github.com/abenov/zanexam/internal/model"
)

// Fallback score thresholds and bases. The advisory track is deliberately
// more forgiving than the authoritative matcher's 0.7 coverage bar.
const (
	correctSimilarity = 0.5
	partialSimilarity = 0.3
	attemptMinRunes   = 10

	emptyScore     = 0
	attemptScore   = 50
	correctBase    = 85
	correctRange   = 15
	partialBase    = 60
	partialRange   = 30
	incorrectBase  = 20
	incorrectRange = 60
)

// Candidate explanations per verdict branch. One is picked at random so many
// items with the same verdict do not read as identical canned text.
var (
	explEmpty = []string{
		"Ответ отсутствует, поэтому невозможно оценить понимание материала студентом.",
		"Студент не предоставил ответа на данный вопрос.",
		"К сожалению, ответ не был дан, что не позволяет произвести оценку.",
	}
	explCitation = []string{
		"Ответ студента верно указывает на правовые нормы, упомянутые в эталонном ответе.",
		"Студент правильно идентифицировал соответствующие нормативные положения.",
		"Числовые обозначения статей в ответе соответствуют правильному ответу.",
	}
	explHigh = []string{
		"Ответ студента демонстрирует глубокое понимание вопроса и содержит ключевые элементы правильного ответа.",
		"Формулировка может отличаться от эталонной, но суть ответа полностью соответствует правильному.",
		"Ответ содержит все необходимые элементы и корректно раскрывает тему вопроса.",
	}
	explMedium = []string{
		"Ответ частично правильный, содержит некоторые верные элементы, но не является полным.",
		"Студент продемонстрировал понимание темы, но ответ не включает все ключевые аспекты.",
		"В ответе присутствуют правильные моменты, но он требует дополнения.",
	}
	explAttempt = []string{
		"Ответ имеет некоторое отношение к вопросу, но не содержит достаточно конкретики.",
		"Видно, что студент имеет некоторое представление о теме, но ответ нуждается в значительном уточнении.",
		"Ответ слишком общий, но демонстрирует попытку рассуждения на данную тему.",
	}
	explLow = []string{
		"Ответ существенно отличается от правильного и не содержит ключевых элементов.",
		"В ответе отсутствуют важные аспекты, необходимые для правильного решения вопроса.",
		"Ответ не отражает понимания основных принципов, изложенных в правильном ответе.",
	}
)

var articleNumberRegex = regexp.MustCompile(`(?i)статья\s+(\d+(?:\.\d+)?)|(\d+(?:\.\d+)?)\s*(?:ук|гк|дк|ак)`)

// Fallback is the deterministic, always-available grading path used whenever
// the remote judge is unavailable, exhausted or unusable. The randomness is
// confined to explanation wording; verdicts and scores are rule-based.
type Fallback struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewFallback creates a fallback evaluator. A nil rng gets a time-seeded
// source; tests inject a fixed seed to pin template choice.
func NewFallback(rng *rand.Rand) *Fallback {
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	return &Fallback{rng: rng}
}

// Evaluate grades a single item by rule. Decision order: empty answer,
// citation match, then similarity bands with a benefit-of-the-doubt floor
// for non-trivial answers.
func (f *Fallback) Evaluate(item model.GradingItem) model.Judgment {
	user := strings.TrimSpace(item.UserAnswer)
	ref := strings.TrimSpace(item.CorrectAnswer)

	if user == "" {
		return model.NewJudgment(item.Ordinal, model.CategoryIncorrect,
			f.explain(explEmpty, item, false), emptyScore, model.SourceFallback)
	}

	if match.CitationMatch(user, ref, item.Question) {
		return model.NewJudgment(item.Ordinal, model.CategoryCorrect,
			f.explain(explCitation, item, true), match.CitationScore, model.SourceFallback)
	}

	s := match.Similarity(user, ref)
	switch {
	case s > correctSimilarity:
		return model.NewJudgment(item.Ordinal, model.CategoryCorrect,
			f.explain(explHigh, item, true), correctBase+int(s*correctRange), model.SourceFallback)
	case s > partialSimilarity:
		return model.NewJudgment(item.Ordinal, model.CategoryPartial,
			f.explain(explMedium, item, true), partialBase+int(s*partialRange), model.SourceFallback)
	case utf8.RuneCountInString(user) > attemptMinRunes:
		return model.NewJudgment(item.Ordinal, model.CategoryPartial,
			f.explain(explAttempt, item, true), attemptScore, model.SourceFallback)
	default:
		return model.NewJudgment(item.Ordinal, model.CategoryIncorrect,
			f.explain(explLow, item, true), incorrectBase+int(s*incorrectRange), model.SourceFallback)
	}
}

// explain picks one candidate explanation and, for citation-bearing
// questions, appends a personalization clause naming the article number when
// one can be identified in the reference answer.
func (f *Fallback) explain(candidates []string, item model.GradingItem, personalize bool) string {
	f.mu.Lock()
	text := candidates[f.rng.IntN(len(candidates))]
	f.mu.Unlock()

	if personalize && match.CitationBearing(item.Question) {
		if num := referenceArticleNumber(item.CorrectAnswer); num != "" {
			text += " Особенно важно было упомянуть статью " + num + "."
		} else {
			text += " В юридических вопросах точность формулировок имеет решающее значение."
		}
	}
	return text
}

// referenceArticleNumber extracts an article number from the reference
// answer, or "" if none is identifiable.
func referenceArticleNumber(reference string) string {
	m := articleNumberRegex.FindStringSubmatch(reference)
	if m == nil {
		return ""
	}
	if m[1] != "" {
		return m[1]
	}
	return m[2]
}
