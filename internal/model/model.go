package model

import (
	"time"
	"unicode/utf8"
)

// Category is the three-way verdict assigned to a graded answer. The values
// are the exact Russian labels the remote judge is instructed to use.
type Category string

const (
	CategoryCorrect   Category = "Правильно"
	CategoryPartial   Category = "Частично правильно"
	CategoryIncorrect Category = "Не правильно"
)

// JudgmentSource records which grading path produced a judgment.
type JudgmentSource string

const (
	// SourceRemote marks judgments parsed from the remote judge's reply.
	SourceRemote JudgmentSource = "remote"
	// SourceFallback marks judgments produced by the local rule-based evaluator.
	SourceFallback JudgmentSource = "fallback"
)

// AdvisoryStatus tracks the background advisory grading of a submission.
type AdvisoryStatus string

const (
	AdvisoryPending  AdvisoryStatus = "pending"
	AdvisoryComplete AdvisoryStatus = "complete"
)

// PassThreshold is the percentage at or above which a submission passes.
const PassThreshold = 70

// maxExplanationRunes caps judgment explanation length.
const maxExplanationRunes = 300

// GradingItem is one (question, reference answer, submitted answer) triple.
// Ordinal is 1-based and stable across batching. Items are immutable once a
// submission is created.
type GradingItem struct {
	Ordinal       int    `json:"ordinal"`
	Question      string `json:"question"`
	CorrectAnswer string `json:"correct_answer"`
	UserAnswer    string `json:"user_answer"`
}

// Judgment is a single graded verdict. IsCorrect always equals
// Category == CategoryCorrect and Score is always in [0,100]; construct
// judgments through NewJudgment so the invariants hold.
type Judgment struct {
	Ordinal     int            `json:"ordinal"`
	Category    Category       `json:"category"`
	Explanation string         `json:"explanation"`
	Score       int            `json:"score"`
	IsCorrect   bool           `json:"is_correct"`
	Source      JudgmentSource `json:"source"`
}

// NewJudgment builds a Judgment with its invariants enforced: the score is
// clamped to [0,100], the explanation is capped, and IsCorrect is derived
// from the category rather than set independently.
func NewJudgment(ordinal int, cat Category, explanation string, score int, source JudgmentSource) Judgment {
	if utf8.RuneCountInString(explanation) > maxExplanationRunes {
		runes := []rune(explanation)
		explanation = string(runes[:maxExplanationRunes-3]) + "..."
	}
	return Judgment{
		Ordinal:     ordinal,
		Category:    cat,
		Explanation: explanation,
		Score:       ClampScore(score),
		IsCorrect:   cat == CategoryCorrect,
		Source:      source,
	}
}

// ClampScore bounds a score to [0,100].
func ClampScore(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}

// ScoreSummary is the aggregate verdict over a set of graded items.
type ScoreSummary struct {
	Correct    int  `json:"correct"`
	Total      int  `json:"total"`
	Percentage int  `json:"percentage"`
	IsPassing  bool `json:"is_passing"`
}

// Summarize reduces a correct count over a total into a ScoreSummary.
// A zero total yields a zero percentage rather than a division fault.
func Summarize(correct, total int) ScoreSummary {
	pct := 0
	if total > 0 {
		pct = int(float64(correct)/float64(total)*100 + 0.5)
	}
	return ScoreSummary{
		Correct:    correct,
		Total:      total,
		Percentage: pct,
		IsPassing:  pct >= PassThreshold,
	}
}

// Aggregate reduces a judgment list into a ScoreSummary using the derived
// IsCorrect flags.
func Aggregate(judgments []Judgment) ScoreSummary {
	correct := 0
	for _, j := range judgments {
		if j.IsCorrect {
			correct++
		}
	}
	return Summarize(correct, len(judgments))
}

// Student is identity metadata attached to a submission. It is stored and
// logged but never used by grading logic.
type Student struct {
	Name       string `json:"name"`
	ExternalID string `json:"external_id"`
}

// Submission is one graded exam submission. StrictCorrect holds the
// authoritative per-item verdicts, parallel to Items. Judgments is the
// advisory result list, empty until background grading completes.
type Submission struct {
	ID             string
	Student        Student
	CreatedAt      time.Time
	Items          []GradingItem
	StrictCorrect  []bool
	Authoritative  ScoreSummary
	AdvisoryStatus AdvisoryStatus
	Judgments      []Judgment
}

// GraderConfig holds runtime grading parameters set via CLI flags.
type GraderConfig struct {
	JudgeURL        string        // OpenAI-compatible API base URL
	JudgeKey        string        // API key for the remote judge
	JudgeModel      string        // model name
	JudgeTimeout    time.Duration // per remote call
	MaxRemoteCalls  int           // process-lifetime budget
	MaxBatchRetries int           // retried batches per submission
	Lang            string        // response label language (en, ru)
}
