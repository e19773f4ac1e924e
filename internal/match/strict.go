package match

import "strings"

// strictCoverage is the key-term coverage required by the authoritative
// matcher. Deliberately stricter than the advisory track's thresholds.
const strictCoverage = 0.7

// Negation words that contradict a reference answer lacking them.
var negationWords = []string{"не", "нет", "нельзя", "никогда"}

// Antonym pairs: answers landing on opposite sides contradict each other.
var oppositePairs = [][2]string{
	{"разрешено", "запрещено"},
	{"можно", "нельзя"},
	{"всегда", "никогда"},
}

// Matches is the authoritative correctness decision. It never touches the
// network and is deterministic for a given triple: a citation match wins
// outright, an empty answer loses outright, otherwise at least 70% of the
// reference answer's key terms must appear in the user answer with no
// contradiction.
func Matches(userAnswer, referenceAnswer, question string) bool {
	if CitationMatch(userAnswer, referenceAnswer, question) {
		return true
	}

	user := strings.ToLower(strings.TrimSpace(userAnswer))
	if user == "" {
		return false
	}
	ref := strings.ToLower(strings.TrimSpace(referenceAnswer))

	coverage := KeyTermCoverage(user, ref)
	return coverage >= strictCoverage && !contradicts(user, ref)
}

// contradicts reports whether the user answer negates or opposes the
// reference answer. Both inputs must already be lowercased.
func contradicts(user, ref string) bool {
	for _, w := range negationWords {
		if strings.Contains(user, w) && !strings.Contains(ref, w) {
			return true
		}
	}
	for _, pair := range oppositePairs {
		if (strings.Contains(ref, pair[0]) && strings.Contains(user, pair[1])) ||
			(strings.Contains(ref, pair[1]) && strings.Contains(user, pair[0])) {
			return true
		}
	}
	return false
}
