package match

import (
	"regexp"
	"strings"
)

// CitationScore is the fixed score awarded when a citation match overrides
// other signals: naming the right article or code is sufficient on its own.
const CitationScore = 90

// Terms that mark a question as citation-bearing (article, criminal-code
// abbreviation, code, law).
var citationTerms = []string{"статья", "ук", "кодекс", "закон"}

// Two-letter legal-code abbreviations accepted as a match on their own when
// present in both answers.
var codeAbbrevs = []string{"ук", "ак", "гк"}

var numberPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

// CitationBearing reports whether a question asks about a legal provision.
func CitationBearing(question string) bool {
	q := strings.ToLower(question)
	for _, t := range citationTerms {
		if strings.Contains(q, t) {
			return true
		}
	}
	return false
}

// Numbers extracts all decimal numeric tokens from a string.
func Numbers(s string) []string {
	return numberPattern.FindAllString(s, -1)
}

// CitationMatch reports whether the user answer names the right legal
// provision for a citation-bearing question: a numeric token from the user
// answer appears verbatim in the reference text, or both answers share a
// code abbreviation. Requires at least one numeric token in the user answer.
func CitationMatch(userAnswer, referenceAnswer, question string) bool {
	if !CitationBearing(question) {
		return false
	}

	user := strings.ToLower(userAnswer)
	ref := strings.ToLower(referenceAnswer)

	userNumbers := Numbers(user)
	if len(userNumbers) == 0 {
		return false
	}

	for _, n := range userNumbers {
		if strings.Contains(ref, n) {
			return true
		}
	}
	for _, code := range codeAbbrevs {
		if strings.Contains(user, code) && strings.Contains(ref, code) {
			return true
		}
	}
	return false
}
