package feature

import (
	"fmt"

	"github.com/doshi-kevin/medrec/internal/domain/symptom"
)

// CurrentVersion is the schema version emitted by the running builder.
// v1 carried symptom flags and the symptom count only; v2 added vocabulary
// coverage on the query side and the encoded class and metadata counts on
// the record side. Model artifacts persist the version they were trained
// against; any difference is a hard mismatch.
const CurrentVersion = 2

// Kind describes how a field's value is encoded.
type Kind string

const (
	// KindFlag is a 0/1 presence flag.
	KindFlag Kind = "flag"
	// KindCount is a non-negative integer count.
	KindCount Kind = "count"
	// KindRatio is a value in [0,1].
	KindRatio Kind = "ratio"
	// KindCode is an ordinal category code.
	KindCode Kind = "code"
)

// Field is one named position of a feature vector.
type Field struct {
	name string
	kind Kind
}

// Name returns the field name.
func (f Field) Name() string { return f.name }

// FieldKind returns the field encoding kind.
func (f Field) FieldKind() Kind { return f.kind }

// Schema is the versioned specification of feature vector layout: field
// names, order, and encoding rules for both vector kinds. Immutable.
type Schema struct {
	version int
	query   []Field
	record  []Field
}

// ForVocabulary builds the current schema for a vocabulary. Flag positions
// follow the vocabulary's declaration order.
func ForVocabulary(v symptom.Vocabulary) Schema {
	query := make([]Field, 0, v.Size()+2)
	record := make([]Field, 0, v.Size()+3)
	for _, tok := range v.Tokens() {
		query = append(query, Field{name: "symptom:" + tok, kind: KindFlag})
		record = append(record, Field{name: "uses:" + tok, kind: KindFlag})
	}
	query = append(query,
		Field{name: "symptom_count", kind: KindCount},
		Field{name: "vocab_coverage", kind: KindRatio},
	)
	record = append(record,
		Field{name: "class_code", kind: KindCode},
		Field{name: "side_effect_count", kind: KindCount},
		Field{name: "substitute_count", kind: KindCount},
	)
	return Schema{version: CurrentVersion, query: query, record: record}
}

// Version returns the schema version.
func (s Schema) Version() int { return s.version }

// QueryFields returns the query vector layout.
func (s Schema) QueryFields() []Field { return s.query }

// RecordFields returns the record vector layout.
func (s Schema) RecordFields() []Field { return s.record }

// QueryLen returns the expected query vector length.
func (s Schema) QueryLen() int { return len(s.query) }

// RecordLen returns the expected record vector length.
func (s Schema) RecordLen() int { return len(s.record) }

// ExpectedLen returns the vector length for a kind.
func (s Schema) ExpectedLen(kind VectorKind) (int, error) {
	switch kind {
	case VectorQuery:
		return s.QueryLen(), nil
	case VectorRecord:
		return s.RecordLen(), nil
	default:
		return 0, fmt.Errorf("unknown vector kind %q", kind)
	}
}
