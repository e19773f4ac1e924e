// Package match implements the fully local answer-matching primitives: a
// lenient token-overlap similarity, a legal-citation detector, and the strict
// matcher that produces the authoritative pass/fail verdict. Nothing in this
// package touches the network.
package match

import (
	"strings"
	"unicode/utf8"
)

// punctCutset covers the punctuation stripped from key terms.
const punctCutset = ".,;:()!?\"«»"

// Stop words excluded from key-term extraction.
var stopWords = map[string]struct{}{
	"этот": {}, "того": {}, "быть": {}, "весь": {}, "один": {},
	"такой": {}, "свой": {}, "наш": {}, "ваш": {}, "мочь": {},
	"если": {}, "когда": {}, "только": {}, "также": {},
}

// tokens splits on whitespace, lowercases and drops tokens of length <= 2.
func tokens(s string) []string {
	fields := strings.Fields(strings.ToLower(s))
	out := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) > 2 {
			out = append(out, f)
		}
	}
	return out
}

// Similarity scores the token overlap of two strings in [0,1]. A verbatim
// token match counts 1.0; a substring match either way counts 0.7 for tokens
// longer than 4 runes. The total is scaled by 1.2 and capped at 1 so that
// paraphrase is forgiven over exact recall.
func Similarity(a, b string) float64 {
	wordsA := tokens(a)
	wordsB := tokens(b)
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}

	setB := make(map[string]struct{}, len(wordsB))
	for _, w := range wordsB {
		setB[w] = struct{}{}
	}

	var matched float64
	for _, wa := range wordsA {
		if _, ok := setB[wa]; ok {
			matched += 1.0
			continue
		}
		if utf8.RuneCountInString(wa) > 4 {
			for _, wb := range wordsB {
				if strings.Contains(wb, wa) || strings.Contains(wa, wb) {
					matched += 0.7
					break
				}
			}
		}
	}

	longest := len(wordsA)
	if len(wordsB) > longest {
		longest = len(wordsB)
	}
	sim := matched / float64(longest) * 1.2
	if sim > 1 {
		sim = 1
	}
	return sim
}

// KeyTerms extracts the reference answer's key terms: lowercased tokens
// longer than 4 runes with surrounding punctuation stripped, excluding stop
// words.
func KeyTerms(s string) []string {
	var terms []string
	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = strings.Trim(w, punctCutset)
		if utf8.RuneCountInString(w) <= 4 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		terms = append(terms, w)
	}
	return terms
}

// KeyTermCoverage returns the fraction of the reference answer's key terms
// present as substrings of the user answer, or 0 when the reference has no
// key terms.
func KeyTermCoverage(userAnswer, referenceAnswer string) float64 {
	terms := KeyTerms(referenceAnswer)
	if len(terms) == 0 {
		return 0
	}
	user := strings.ToLower(userAnswer)
	found := 0
	for _, t := range terms {
		if strings.Contains(user, t) {
			found++
		}
	}
	return float64(found) / float64(len(terms))
}
