package candidate

import (
	"fmt"
	"sort"

	"github.com/doshi-kevin/medrec/internal/domain/medicine"
)

// Prediction is one medicine proposed by the ensemble with a combined
// confidence and the per-model scores that produced it (immutable value
// object).
type Prediction struct {
	med         medicine.Record
	confidence  float64
	modelScores map[string]float64
}

// New validates and creates a Prediction. Confidence must be in [0,1].
func New(med medicine.Record, confidence float64, modelScores map[string]float64) (Prediction, error) {
	if med.IsZero() {
		return Prediction{}, fmt.Errorf("prediction requires a medicine record")
	}
	if confidence < 0 || confidence > 1 {
		return Prediction{}, fmt.Errorf("confidence %f out of range [0,1] for %s", confidence, med.ID())
	}
	return Prediction{med: med, confidence: confidence, modelScores: modelScores}, nil
}

// Reconstruct creates a Prediction without validation (storage hydration).
func Reconstruct(med medicine.Record, confidence float64, modelScores map[string]float64) Prediction {
	return Prediction{med: med, confidence: confidence, modelScores: modelScores}
}

// Medicine returns the proposed medicine.
func (p Prediction) Medicine() medicine.Record { return p.med }

// Confidence returns the combined confidence in [0,1].
func (p Prediction) Confidence() float64 { return p.confidence }

// ModelScores returns the per-model confidences behind the combination.
func (p Prediction) ModelScores() map[string]float64 { return p.modelScores }

// BestModelScore returns the highest single-model confidence.
func (p Prediction) BestModelScore() float64 {
	best := 0.0
	for _, s := range p.modelScores {
		if s > best {
			best = s
		}
	}
	return best
}

// Sort orders predictions by descending confidence, preserving input order
// for equal confidences.
func Sort(preds []Prediction) {
	sort.SliceStable(preds, func(i, j int) bool {
		return preds[i].confidence > preds[j].confidence
	})
}
