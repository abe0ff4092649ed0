package recommendation

import (
	"time"

	"github.com/doshi-kevin/medrec/internal/domain/candidate"
	"github.com/doshi-kevin/medrec/internal/domain/medicine"
)

// Ranked is one final recommendation: a candidate prediction augmented with
// the ranking service's explanation and contraindication notes. The order of
// Ranked items in an Outcome is authoritative.
type Ranked struct {
	rank              int
	pred              candidate.Prediction
	explanation       string
	contraindications []string
	relatedClasses    []string
}

// NewRanked creates a Ranked recommendation. Rank is 1-based.
func NewRanked(
	rank int, pred candidate.Prediction,
	explanation string, contraindications, relatedClasses []string,
) Ranked {
	return Ranked{
		rank:              rank,
		pred:              pred,
		explanation:       explanation,
		contraindications: contraindications,
		relatedClasses:    relatedClasses,
	}
}

// Rank returns the 1-based final position.
func (r Ranked) Rank() int { return r.rank }

// Medicine returns the recommended medicine.
func (r Ranked) Medicine() medicine.Record { return r.pred.Medicine() }

// Confidence returns the ensemble confidence.
func (r Ranked) Confidence() float64 { return r.pred.Confidence() }

// ModelScores returns the per-model confidences.
func (r Ranked) ModelScores() map[string]float64 { return r.pred.ModelScores() }

// Explanation returns the ranking service's explanation, empty when
// explanations are unavailable.
func (r Ranked) Explanation() string { return r.explanation }

// Contraindications returns the flagged contraindication notes.
func (r Ranked) Contraindications() []string { return r.contraindications }

// RelatedClasses returns therapeutic classes clustered near this medicine.
func (r Ranked) RelatedClasses() []string { return r.relatedClasses }

// Source names where the final ordering came from.
type Source string

const (
	// SourceRankingService means the external service produced the order.
	SourceRankingService Source = "ranking-service"
	// SourceEnsemble means the ensemble order was kept (ranking skipped or
	// failed).
	SourceEnsemble Source = "ensemble-order"
)

// StageTiming records how long one pipeline stage took.
type StageTiming struct {
	Stage    string
	Duration time.Duration
}

// Outcome is the assembled result of one recommendation request.
type Outcome struct {
	id                    string
	createdAt             time.Time
	symptoms              []string
	items                 []Ranked
	modelsUsed            []string
	explanationsAvailable bool
	source                Source
	trace                 []StageTiming
}

// NewOutcome assembles an Outcome for a completed request.
func NewOutcome(
	id string, symptoms []string, items []Ranked, modelsUsed []string,
	explanationsAvailable bool, source Source, trace []StageTiming,
) Outcome {
	return Outcome{
		id:                    id,
		createdAt:             time.Now().UTC(),
		symptoms:              symptoms,
		items:                 items,
		modelsUsed:            modelsUsed,
		explanationsAvailable: explanationsAvailable,
		source:                source,
		trace:                 trace,
	}
}

// Reconstruct creates an Outcome from persisted state.
func Reconstruct(
	id string, createdAt time.Time, symptoms []string, items []Ranked,
	modelsUsed []string, explanationsAvailable bool, source Source,
) Outcome {
	return Outcome{
		id:                    id,
		createdAt:             createdAt,
		symptoms:              symptoms,
		items:                 items,
		modelsUsed:            modelsUsed,
		explanationsAvailable: explanationsAvailable,
		source:                source,
	}
}

// ID returns the request identifier.
func (o Outcome) ID() string { return o.id }

// CreatedAt returns the completion time (UTC).
func (o Outcome) CreatedAt() time.Time { return o.createdAt }

// Symptoms returns the canonical symptoms the request normalized to.
func (o Outcome) Symptoms() []string { return o.symptoms }

// Items returns the final recommendations in authoritative order.
func (o Outcome) Items() []Ranked { return o.items }

// ModelsUsed returns the names of models that contributed scores.
func (o Outcome) ModelsUsed() []string { return o.modelsUsed }

// ExplanationsAvailable reports whether the ranking service annotated the
// items. False means the ensemble order was preserved and explanations are
// empty.
func (o Outcome) ExplanationsAvailable() bool { return o.explanationsAvailable }

// OrderSource returns where the final ordering came from.
func (o Outcome) OrderSource() Source { return o.source }

// Trace returns per-stage durations for the request.
func (o Outcome) Trace() []StageTiming { return o.trace }
