package judge

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/abenov/zanexam/internal/judge/prompts"
	"github.com/abenov/zanexam/internal/model"
)

// DefaultScore substitutes for an unparsable score field. The record still
// commits with the default: dropping it would force a fallback for an item
// the judge did answer, amplifying remote-call cost.
const DefaultScore = 50

var (
	questionLineRegex = regexp.MustCompile(`(?i)^` + prompts.QuestionMarker + `\s+(\d+):`)
	leadingIntRegex   = regexp.MustCompile(`^-?\d+`)
)

// record accumulates the three fields for one question while scanning.
type record struct {
	ordinal     int
	category    model.Category
	hasCategory bool
	explanation string
	hasExpl     bool
	score       int
	hasScore    bool
}

func (r *record) complete() bool {
	return r != nil && r.hasCategory && r.hasExpl && r.hasScore
}

// ParseReply extracts per-item judgments from the judge's free-form reply.
// The scan is line-oriented: a question marker opens a record, the previous
// record commits only once all three fields were collected, and incomplete
// records are discarded whole. Every batch item that never received a
// committed record is backfilled from the fallback evaluator, so the result
// always contains exactly one judgment per batch item, sorted by ordinal.
// Replies are not assumed to answer questions in order.
func ParseReply(reply string, batch []model.GradingItem, fb *Fallback) []model.Judgment {
	inBatch := make(map[int]model.GradingItem, len(batch))
	for _, item := range batch {
		inBatch[item.Ordinal] = item
	}

	committed := make(map[int]model.Judgment, len(batch))
	commit := func(r *record) {
		if !r.complete() {
			return
		}
		if _, ok := inBatch[r.ordinal]; !ok {
			return
		}
		// Last complete record for an ordinal wins.
		committed[r.ordinal] = model.NewJudgment(
			r.ordinal, r.category, r.explanation, r.score, model.SourceRemote)
	}

	var current *record
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)

		if m := questionLineRegex.FindStringSubmatch(line); m != nil {
			if current != nil {
				commit(current)
			}
			n, err := strconv.Atoi(m[1])
			if err != nil {
				current = nil
				continue
			}
			current = &record{ordinal: n}
			continue
		}
		if current == nil {
			continue
		}

		switch {
		case strings.HasPrefix(line, prompts.CategoryPrefix):
			raw := strings.TrimSpace(line[len(prompts.CategoryPrefix):])
			if cat, ok := normalizeCategory(raw); ok {
				current.category = cat
				current.hasCategory = true
			}
		case strings.HasPrefix(line, prompts.ExplanationPrefix):
			current.explanation = strings.TrimSpace(line[len(prompts.ExplanationPrefix):])
			current.hasExpl = true
		case strings.HasPrefix(line, prompts.ScorePrefix):
			current.score = parseScore(strings.TrimSpace(line[len(prompts.ScorePrefix):]))
			current.hasScore = true
		}
	}
	if current != nil {
		commit(current)
	}

	judgments := make([]model.Judgment, 0, len(batch))
	for _, item := range batch {
		if j, ok := committed[item.Ordinal]; ok {
			judgments = append(judgments, j)
		} else {
			judgments = append(judgments, fb.Evaluate(item))
		}
	}
	sort.Slice(judgments, func(i, k int) bool {
		return judgments[i].Ordinal < judgments[k].Ordinal
	})
	return judgments
}

// normalizeCategory maps the judge's category wording onto the three labels
// by substring containment, lenient over exact spelling. Unrecognized text
// leaves the field uncollected.
func normalizeCategory(raw string) (model.Category, bool) {
	lower := strings.ToLower(raw)
	switch {
	case strings.Contains(lower, "частично"):
		return model.CategoryPartial, true
	case strings.Contains(lower, "не правильно"), strings.Contains(lower, "неправильно"):
		return model.CategoryIncorrect, true
	case strings.Contains(lower, "правильно"):
		return model.CategoryCorrect, true
	default:
		return "", false
	}
}

// parseScore reads the leading integer of a score field, tolerating suffixes
// like "85/100" or "85 баллов". Out-of-range values are left for the
// judgment constructor to clamp. Unparsable text yields DefaultScore.
func parseScore(raw string) int {
	digits := leadingIntRegex.FindString(raw)
	if digits == "" {
		return DefaultScore
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return DefaultScore
	}
	return n
}

// remoteCount reports how many judgments were parsed from the reply rather
// than backfilled. Zero means the reply was entirely unusable.
func remoteCount(judgments []model.Judgment) int {
	n := 0
	for _, j := range judgments {
		if j.Source == model.SourceRemote {
			n++
		}
	}
	return n
}
