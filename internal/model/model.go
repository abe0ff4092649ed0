// Package model holds the constituent scorers of the recommendation
// ensemble. Every scorer implements domain.Model: it sees the same
// request-scoped query and returns per-candidate confidence in [0,1],
// independently of the other scorers. All scorers are read-only after
// construction and safe for concurrent Score calls.
package model

import "github.com/doshi-kevin/medrec/internal/domain/medicine"

// Model names as they appear in manifests, outcomes, and logs.
const (
	NameLexical = "lexical"
	NameBayes   = "bayes"
	NameCluster = "cluster"
)

// TokenLookup resolves the canonical symptoms of a record's uses text.
type TokenLookup interface {
	TokensOf(id string) []string
}

// RecordLookup resolves a medicine record by id.
type RecordLookup interface {
	Get(id string) (medicine.Record, error)
}
