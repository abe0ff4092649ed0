package symptom

import (
	"fmt"
	"strings"
)

// Vocabulary is the fixed set of canonical symptom tokens the pipeline
// understands, plus an alias table mapping colloquial phrasings onto them.
// Immutable after construction and safe for concurrent reads.
type Vocabulary struct {
	tokens  []string
	index   map[string]int
	aliases map[string]string
	maxSpan int
}

// New validates and creates a Vocabulary. Tokens must be unique, non-empty,
// lowercase single words. Every alias must resolve to a known token.
func New(tokens []string, aliases map[string]string) (Vocabulary, error) {
	if len(tokens) == 0 {
		return Vocabulary{}, fmt.Errorf("vocabulary requires at least one token")
	}
	index := make(map[string]int, len(tokens))
	for i, tok := range tokens {
		if tok == "" {
			return Vocabulary{}, fmt.Errorf("empty token at position %d", i)
		}
		if tok != strings.ToLower(tok) || strings.ContainsAny(tok, " \t") {
			return Vocabulary{}, fmt.Errorf("token %q must be a lowercase single word", tok)
		}
		if _, dup := index[tok]; dup {
			return Vocabulary{}, fmt.Errorf("duplicate token: %s", tok)
		}
		index[tok] = i
	}
	maxSpan := 1
	for alias, canonical := range aliases {
		if _, ok := index[canonical]; !ok {
			return Vocabulary{}, fmt.Errorf("alias %q maps to unknown token %q", alias, canonical)
		}
		if n := len(strings.Fields(alias)); n > maxSpan {
			maxSpan = n
		}
	}
	return Vocabulary{tokens: tokens, index: index, aliases: aliases, maxSpan: maxSpan}, nil
}

// Tokens returns the canonical tokens in declaration order.
func (v Vocabulary) Tokens() []string { return v.tokens }

// Size returns the number of canonical tokens.
func (v Vocabulary) Size() int { return len(v.tokens) }

// Contains reports whether tok is a canonical token.
func (v Vocabulary) Contains(tok string) bool {
	_, ok := v.index[tok]
	return ok
}

// Index returns the declaration position of a canonical token.
func (v Vocabulary) Index(tok string) (int, bool) {
	i, ok := v.index[tok]
	return i, ok
}

// Canonical resolves a word or phrase to its canonical token: either the
// token itself or an alias mapping onto one.
func (v Vocabulary) Canonical(word string) (string, bool) {
	if _, ok := v.index[word]; ok {
		return word, true
	}
	if canonical, ok := v.aliases[word]; ok {
		return canonical, true
	}
	return "", false
}

// Aliases returns the alias table.
func (v Vocabulary) Aliases() map[string]string { return v.aliases }

// Set is the ordered set of canonical symptoms extracted from one patient
// query. Request-scoped; order is first mention in the input.
type Set struct {
	tokens []string
}

// NewSet creates a Set, dropping duplicates while preserving first-mention
// order. Tokens are assumed canonical; the normalizer guarantees that.
func NewSet(tokens []string) Set {
	if len(tokens) == 0 {
		return Set{}
	}
	seen := make(map[string]bool, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if tok == "" || seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}
	return Set{tokens: out}
}

// Tokens returns the canonical tokens in first-mention order.
func (s Set) Tokens() []string { return s.tokens }

// Len returns the number of symptoms.
func (s Set) Len() int { return len(s.tokens) }

// IsEmpty reports whether no symptoms were recognized.
func (s Set) IsEmpty() bool { return len(s.tokens) == 0 }

// Has reports whether the set contains a canonical token.
func (s Set) Has(tok string) bool {
	for _, t := range s.tokens {
		if t == tok {
			return true
		}
	}
	return false
}

// String joins the tokens for logs and prompts.
func (s Set) String() string { return strings.Join(s.tokens, ", ") }
