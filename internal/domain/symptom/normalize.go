package symptom

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Fold canonicalizes free text for matching: NFKC normalization, lowercase,
// punctuation collapsed to single spaces. Both patient input and dataset
// indications text go through the same fold so matches line up.
func Fold(s string) string {
	s = norm.NFKC.String(s)
	s = strings.ToLower(s)
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := true
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastSpace = false
			continue
		}
		if !lastSpace {
			b.WriteRune(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

// Words folds s and splits it into words.
func Words(s string) []string {
	folded := Fold(s)
	if folded == "" {
		return nil
	}
	return strings.Fields(folded)
}

// Extract returns the canonical symptoms present in free text, in
// first-mention order with duplicates removed. Multi-word aliases match
// greedily before single words; words that resolve to nothing are dropped.
func Extract(v Vocabulary, text string) []string {
	words := Words(text)
	if len(words) == 0 {
		return nil
	}
	var out []string
	seen := make(map[string]bool)
	for i := 0; i < len(words); {
		span := v.maxSpan
		if rem := len(words) - i; span > rem {
			span = rem
		}
		advance := 1
		for n := span; n >= 1; n-- {
			phrase := strings.Join(words[i:i+n], " ")
			canonical, ok := v.Canonical(phrase)
			if !ok {
				continue
			}
			if !seen[canonical] {
				seen[canonical] = true
				out = append(out, canonical)
			}
			advance = n
			break
		}
		i += advance
	}
	return out
}
