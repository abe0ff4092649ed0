package model

import (
	"context"
	"fmt"

	"github.com/doshi-kevin/medrec/internal/domain"
)

// Bayes scores a candidate by the posterior probability of its therapeutic
// class given the query symptoms, computed from offline-trained priors and
// per-class symptom likelihoods. Classes absent from the tables score zero.
type Bayes struct {
	priors        map[string]float64
	likelihoods   map[string]map[string]float64
	smoothing     float64
	records       RecordLookup
	schemaVersion int
}

// NewBayes creates the naive-Bayes class scorer from artifact tables.
// artifactVersion is the schema version the tables were trained against;
// a difference from currentVersion is a hard schema mismatch.
func NewBayes(
	priors map[string]float64,
	likelihoods map[string]map[string]float64,
	smoothing float64,
	records RecordLookup,
	artifactVersion, currentVersion int,
) (*Bayes, error) {
	if artifactVersion != currentVersion {
		return nil, domain.NewSchemaMismatch(artifactVersion, currentVersion)
	}
	if len(priors) == 0 {
		return nil, fmt.Errorf("bayes model requires class priors")
	}
	if smoothing <= 0 {
		smoothing = 0.01
	}
	return &Bayes{
		priors:        priors,
		likelihoods:   likelihoods,
		smoothing:     smoothing,
		records:       records,
		schemaVersion: currentVersion,
	}, nil
}

// Name implements domain.Model.
func (b *Bayes) Name() string { return NameBayes }

// SchemaVersion implements domain.Model.
func (b *Bayes) SchemaVersion() int { return b.schemaVersion }

// Ready implements domain.Model.
func (b *Bayes) Ready() bool { return len(b.priors) > 0 && b.records != nil }

// Score computes class posteriors once per query and assigns each
// candidate the posterior of its own class.
func (b *Bayes) Score(_ context.Context, q domain.ModelQuery) (map[string]float64, error) {
	if q.SchemaVersion != b.schemaVersion {
		return nil, domain.NewSchemaMismatch(b.schemaVersion, q.SchemaVersion)
	}
	if len(q.SymptomTokens) == 0 {
		return map[string]float64{}, nil
	}

	posteriors := b.classPosteriors(q.SymptomTokens)

	scores := make(map[string]float64, len(q.CandidateIDs))
	for _, id := range q.CandidateIDs {
		rec, err := b.records.Get(id)
		if err != nil {
			continue // unknown candidate scores zero
		}
		if p, ok := posteriors[rec.TherapeuticClass()]; ok && p > 0 {
			scores[id] = p
		}
	}
	return scores, nil
}

// classPosteriors returns P(class | symptoms) for every trained class,
// normalized to sum to 1.
func (b *Bayes) classPosteriors(tokens []string) map[string]float64 {
	joint := make(map[string]float64, len(b.priors))
	var total float64
	for class, prior := range b.priors {
		p := prior
		perToken := b.likelihoods[class]
		for _, tok := range tokens {
			if l, ok := perToken[tok]; ok && l > 0 {
				p *= l
			} else {
				p *= b.smoothing
			}
		}
		joint[class] = p
		total += p
	}
	if total <= 0 {
		return map[string]float64{}
	}
	for class := range joint {
		joint[class] /= total
	}
	return joint
}
