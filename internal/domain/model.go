package domain

import "context"

// Model is one constituent scorer of the ensemble. Implementations hold
// read-only data prepared at startup and must be safe for concurrent Score
// calls.
type Model interface {
	// Name identifies the model in outcomes and logs.
	Name() string
	// SchemaVersion is the feature schema version the model's artifact was
	// built against. Must match the version of the vectors it is scored with.
	SchemaVersion() int
	// Ready reports whether the model loaded everything it needs.
	Ready() bool
	// Score returns per-candidate confidence in [0,1], keyed by medicine id.
	// Candidates absent from the result are treated as zero.
	Score(ctx context.Context, q ModelQuery) (map[string]float64, error)
}

// ModelQuery is the request-scoped scoring input shared by all models.
type ModelQuery struct {
	// SymptomTokens are the canonical symptoms in first-mention order.
	SymptomTokens []string
	// QueryVector is the feature vector built for the symptoms.
	QueryVector []float64
	// SchemaVersion is the schema version of QueryVector.
	SchemaVersion int
	// CandidateIDs is the pool of medicine ids to score.
	CandidateIDs []string
}
