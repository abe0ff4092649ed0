package model

import (
	"context"

	"github.com/doshi-kevin/medrec/internal/domain"
)

// Lexical scores a candidate by how much of the patient's symptom set its
// indications text covers. It is derived live from the loaded dataset, so
// it is always available and always at the current schema version.
type Lexical struct {
	lookup        TokenLookup
	schemaVersion int
}

// NewLexical creates the lexical coverage scorer.
func NewLexical(lookup TokenLookup, schemaVersion int) *Lexical {
	return &Lexical{lookup: lookup, schemaVersion: schemaVersion}
}

// Name implements domain.Model.
func (l *Lexical) Name() string { return NameLexical }

// SchemaVersion implements domain.Model.
func (l *Lexical) SchemaVersion() int { return l.schemaVersion }

// Ready implements domain.Model.
func (l *Lexical) Ready() bool { return l.lookup != nil }

// Score returns, per candidate, the fraction of query symptoms present in
// the candidate's indications text.
func (l *Lexical) Score(_ context.Context, q domain.ModelQuery) (map[string]float64, error) {
	if q.SchemaVersion != l.schemaVersion {
		return nil, domain.NewSchemaMismatch(l.schemaVersion, q.SchemaVersion)
	}
	if len(q.SymptomTokens) == 0 {
		return map[string]float64{}, nil
	}

	query := make(map[string]bool, len(q.SymptomTokens))
	for _, tok := range q.SymptomTokens {
		query[tok] = true
	}

	scores := make(map[string]float64, len(q.CandidateIDs))
	for _, id := range q.CandidateIDs {
		overlap := 0
		for _, tok := range l.lookup.TokensOf(id) {
			if query[tok] {
				overlap++
			}
		}
		if overlap > 0 {
			scores[id] = float64(overlap) / float64(len(q.SymptomTokens))
		}
	}
	return scores, nil
}
