package recommend

import (
	"context"

	"github.com/doshi-kevin/medrec/internal/domain/candidate"
	"github.com/doshi-kevin/medrec/internal/domain/feature"
	"github.com/doshi-kevin/medrec/internal/domain/medicine"
	"github.com/doshi-kevin/medrec/internal/domain/recommendation"
	"github.com/doshi-kevin/medrec/internal/domain/symptom"
)

// Normalizer turns free text into a canonical symptom set.
type Normalizer interface {
	Normalize(ctx context.Context, text string) symptom.Set
}

// FeatureBuilder builds the query-side feature vector for a symptom set.
type FeatureBuilder interface {
	BuildQuery(set symptom.Set) feature.Vector
}

// Scorer runs the model ensemble over a symptom set. It returns the ordered
// candidate list and the names of the models that contributed scores.
type Scorer interface {
	Score(ctx context.Context, set symptom.Set, vec feature.Vector, topK int) ([]candidate.Prediction, []string, error)
}

// ClassContext reports therapeutic classes clustered near a candidate's class.
type ClassContext interface {
	Related(class string) []string
}

// RecordReader resolves medicine ids to records.
type RecordReader interface {
	Get(id string) (medicine.Record, error)
}

// OutcomeStore persists and retrieves completed outcomes.
type OutcomeStore interface {
	Save(ctx context.Context, o recommendation.Outcome) error
	Get(ctx context.Context, id string) (recommendation.Outcome, error)
	ListRecent(ctx context.Context, limit int) ([]recommendation.Outcome, error)
}
