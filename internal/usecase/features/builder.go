package features

import (
	"github.com/doshi-kevin/medrec/internal/domain"
	"github.com/doshi-kevin/medrec/internal/domain/feature"
	"github.com/doshi-kevin/medrec/internal/domain/medicine"
	"github.com/doshi-kevin/medrec/internal/domain/symptom"
)

// Builder converts symptom sets and medicine records into fixed-length
// feature vectors under the current schema. Building is pure and cheap;
// vectors are never padded or truncated, so a vector either conforms to
// the schema exactly or the versions differ and nothing downstream may
// consume it.
type Builder struct {
	vocab  symptom.Vocabulary
	schema feature.Schema
	codes  ClassCoder
}

// New creates a builder for a vocabulary. The schema layout derives from
// the vocabulary's declaration order.
func New(vocab symptom.Vocabulary, codes ClassCoder) *Builder {
	return &Builder{
		vocab:  vocab,
		schema: feature.ForVocabulary(vocab),
		codes:  codes,
	}
}

// Schema returns the schema the builder emits vectors under.
func (b *Builder) Schema() feature.Schema { return b.schema }

// SchemaVersion returns the current schema version.
func (b *Builder) SchemaVersion() int { return b.schema.Version() }

// VerifyArtifactVersion checks a model artifact's recorded schema version
// against the running builder's. Any difference is a hard mismatch.
func (b *Builder) VerifyArtifactVersion(artifactVersion int) error {
	if artifactVersion != b.schema.Version() {
		return domain.NewSchemaMismatch(artifactVersion, b.schema.Version())
	}
	return nil
}

// BuildQuery encodes a symptom set: one presence flag per canonical
// symptom, then the symptom count and the vocabulary coverage ratio.
func (b *Builder) BuildQuery(set symptom.Set) feature.Vector {
	values := make([]float64, 0, b.schema.QueryLen())
	for _, tok := range b.vocab.Tokens() {
		values = append(values, flag(set.Has(tok)))
	}
	values = append(values, float64(set.Len()))

	coverage := 0.0
	if b.vocab.Size() > 0 {
		coverage = float64(set.Len()) / float64(b.vocab.Size())
	}
	values = append(values, coverage)

	return feature.NewVector(feature.VectorQuery, b.schema.Version(), values)
}

// BuildRecord encodes a medicine record: one flag per canonical symptom
// mentioned in its uses text, then the encoded therapeutic class and the
// side-effect and substitute counts. Uses text goes through the same fold
// as patient input so the flags line up with query vectors.
func (b *Builder) BuildRecord(rec medicine.Record) feature.Vector {
	found := symptom.NewSet(symptom.Extract(b.vocab, rec.Uses()))

	values := make([]float64, 0, b.schema.RecordLen())
	for _, tok := range b.vocab.Tokens() {
		values = append(values, flag(found.Has(tok)))
	}

	code := 0
	if b.codes != nil {
		if c, ok := b.codes.ClassCode(rec.TherapeuticClass()); ok {
			code = c
		}
	}
	values = append(values,
		float64(code),
		float64(len(rec.SideEffects())),
		float64(len(rec.Substitutes())),
	)

	return feature.NewVector(feature.VectorRecord, b.schema.Version(), values)
}

func flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
