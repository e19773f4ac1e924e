// Package prompts renders the instruction block sent to the remote judge for
// a batch of grading items. The question-number and field markers in the
// template are fixed strings; the reply parser depends on their exact
// spelling.
package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/abenov/zanexam/internal/model"
)

//go:embed prompts/batch_eval.txt
var promptFS embed.FS

// Markers shared with the reply parser. Not configurable.
const (
	QuestionMarker    = "ВОПРОС"
	CategoryPrefix    = "КАТЕГОРИЯ:"
	ExplanationPrefix = "ОБЪЯСНЕНИЕ:"
	ScorePrefix       = "ОЦЕНКА:"
)

// UnansweredText substitutes for an empty submitted answer in the prompt.
const UnansweredText = "Не ответил"

// maxAnswerRunes bounds a single answer's contribution to the prompt.
const maxAnswerRunes = 2000

var markerLineRegex = regexp.MustCompile(`(?im)^\s*(ВОПРОС\s+\d+:|КАТЕГОРИЯ:|ОБЪЯСНЕНИЕ:|ОЦЕНКА:)`)

var (
	loadOnce  sync.Once
	loadErr   error
	batchTmpl *template.Template
)

// batchData is the template payload for one batch.
type batchData struct {
	Items []model.GradingItem
}

// Load parses the embedded prompt template. Safe to call repeatedly.
func Load() error {
	loadOnce.Do(func() {
		content, err := promptFS.ReadFile("prompts/batch_eval.txt")
		if err != nil {
			loadErr = errors.New("read prompt file batch_eval.txt: " + err.Error())
			return
		}
		batchTmpl, loadErr = template.New("batch_eval").Parse(string(content))
	})
	return loadErr
}

// BuildBatchPrompt renders the instruction block for a batch of items.
// Empty submitted answers are replaced with a fixed unanswered marker and
// answers are sanitized so student text cannot forge field markers.
func BuildBatchPrompt(items []model.GradingItem) (string, error) {
	if err := Load(); err != nil {
		return "", fmt.Errorf("load prompt templates: %w", err)
	}
	if len(items) == 0 {
		return "", errors.New("empty batch")
	}

	safe := make([]model.GradingItem, len(items))
	for i, item := range items {
		item.UserAnswer = sanitizeAnswer(item.UserAnswer)
		item.CorrectAnswer = strings.TrimSpace(item.CorrectAnswer)
		safe[i] = item
	}

	var buf bytes.Buffer
	if err := batchTmpl.Execute(&buf, batchData{Items: safe}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// sanitizeAnswer trims, substitutes the unanswered marker, neutralizes lines
// that start with a reply field marker and bounds the length.
func sanitizeAnswer(answer string) string {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return UnansweredText
	}

	answer = markerLineRegex.ReplaceAllString(answer, "- $1")

	if utf8.RuneCountInString(answer) > maxAnswerRunes {
		runes := []rune(answer)
		answer = string(runes[:maxAnswerRunes]) + " [ответ сокращен]"
	}
	return answer
}
