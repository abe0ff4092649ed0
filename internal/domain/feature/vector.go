package feature

// VectorKind distinguishes the two vector layouts of a schema.
type VectorKind string

const (
	// VectorQuery is a vector built from a symptom set.
	VectorQuery VectorKind = "query"
	// VectorRecord is a vector built from a medicine record.
	VectorRecord VectorKind = "record"
)

// Vector is a fixed-length numeric feature array tagged with the schema
// version it was built under (immutable value object).
type Vector struct {
	kind          VectorKind
	schemaVersion int
	values        []float64
}

// NewVector creates a Vector.
func NewVector(kind VectorKind, schemaVersion int, values []float64) Vector {
	return Vector{kind: kind, schemaVersion: schemaVersion, values: values}
}

// Kind returns the vector kind.
func (v Vector) Kind() VectorKind { return v.kind }

// SchemaVersion returns the schema version the vector was built under.
func (v Vector) SchemaVersion() int { return v.schemaVersion }

// Values returns the raw feature values.
func (v Vector) Values() []float64 { return v.values }

// Len returns the vector length.
func (v Vector) Len() int { return len(v.values) }

// At returns the value at position i.
func (v Vector) At(i int) float64 { return v.values[i] }

// MatchesSchema reports whether the vector's version and length conform to
// the schema.
func (v Vector) MatchesSchema(s Schema) bool {
	if v.schemaVersion != s.Version() {
		return false
	}
	want, err := s.ExpectedLen(v.kind)
	if err != nil {
		return false
	}
	return len(v.values) == want
}
