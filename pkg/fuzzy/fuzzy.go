package fuzzy

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// LevenshteinDistance calculates the edit distance between two strings
// This measures how many single-character edits (insertions, deletions, or substitutions)
// are required to change one string into another
func LevenshteinDistance(s1, s2 string) int {
	s1 = normalizeString(s1)
	s2 = normalizeString(s2)

	r1 := []rune(s1)
	r2 := []rune(s2)
	if len(r1) == 0 {
		return len(r2)
	}
	if len(r2) == 0 {
		return len(r1)
	}

	prev := make([]int, len(r2)+1)
	curr := make([]int, len(r2)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(r1); i++ {
		curr[0] = i
		for j := 1; j <= len(r2); j++ {
			cost := 0
			if r1[i-1] != r2[j-1] {
				cost = 1
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(r2)]
}

// FuzzyMatch checks if query fuzzy-matches text within a given threshold
// threshold is the maximum allowed edit distance
func FuzzyMatch(query, text string, threshold int) bool {
	query = normalizeString(query)
	text = normalizeString(text)
	if query == "" {
		return false
	}

	if strings.Contains(text, query) {
		return true
	}

	for _, word := range strings.Fields(text) {
		if LevenshteinDistance(query, word) <= threshold {
			return true
		}
	}

	return false
}

// Threshold picks the typo tolerance for a query of the given length.
func Threshold(query string) int {
	switch n := len([]rune(query)); {
	case n <= 3:
		return 0
	case n <= 5:
		return 1
	default:
		return 2
	}
}

// ContactScore scores how well query names a contact. Zero means no match.
func ContactScore(query, name, email string) float64 {
	query = normalizeString(query)
	if query == "" {
		return 0
	}
	score := 0.0

	nameNorm := normalizeString(name)
	if nameNorm == query {
		score += 150
	} else if containsWord(nameNorm, query) {
		score += 100
	} else if strings.Contains(nameNorm, query) {
		score += 60
	} else {
		threshold := Threshold(query)
		for _, word := range strings.Fields(nameNorm) {
			if dist := LevenshteinDistance(query, word); dist <= threshold {
				score += 50 - float64(dist)*15
			}
		}
	}

	emailNorm := normalizeString(email)
	localPart := emailNorm
	if idx := strings.Index(emailNorm, "@"); idx > 0 {
		localPart = emailNorm[:idx]
	}
	if strings.HasPrefix(localPart, query) {
		score += 40
	} else if strings.Contains(emailNorm, query) {
		score += 20
	}

	return score
}

func containsWord(text, query string) bool {
	for _, word := range strings.Fields(text) {
		if word == query {
			return true
		}
	}
	return false
}

// normalizeString lowercases, strips accents and collapses whitespace so
// "José" and "jose" compare equal.
func normalizeString(s string) string {
	s = strings.ToLower(s)
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if out, _, err := transform.String(t, s); err == nil {
		s = out
	}
	return strings.Join(strings.Fields(s), " ")
}
