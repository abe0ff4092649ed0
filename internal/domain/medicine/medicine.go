package medicine

import "fmt"

// Record is one reference medicine (immutable value object).
// The full record set is loaded once at startup and is read-only to the
// pipeline, so records are safe to share across concurrent requests.
type Record struct {
	id               string
	name             string
	composition      string
	therapeuticClass string
	uses             string
	sideEffects      []string
	substitutes      []string
	manufacturer     string
}

// New validates and creates a Record. ID and name are required.
func New(
	id, name, composition, therapeuticClass, uses string,
	sideEffects, substitutes []string, manufacturer string,
) (Record, error) {
	if id == "" {
		return Record{}, fmt.Errorf("medicine id is required")
	}
	if name == "" {
		return Record{}, fmt.Errorf("medicine name is required (id %s)", id)
	}
	return Record{
		id:               id,
		name:             name,
		composition:      composition,
		therapeuticClass: therapeuticClass,
		uses:             uses,
		sideEffects:      sideEffects,
		substitutes:      substitutes,
		manufacturer:     manufacturer,
	}, nil
}

// Reconstruct creates a Record without validation (storage hydration).
func Reconstruct(
	id, name, composition, therapeuticClass, uses string,
	sideEffects, substitutes []string, manufacturer string,
) Record {
	return Record{
		id:               id,
		name:             name,
		composition:      composition,
		therapeuticClass: therapeuticClass,
		uses:             uses,
		sideEffects:      sideEffects,
		substitutes:      substitutes,
		manufacturer:     manufacturer,
	}
}

// ID returns the medicine identifier.
func (r Record) ID() string { return r.id }

// Name returns the medicine name.
func (r Record) Name() string { return r.name }

// Composition returns the active composition text.
func (r Record) Composition() string { return r.composition }

// TherapeuticClass returns the therapeutic class label.
func (r Record) TherapeuticClass() string { return r.therapeuticClass }

// Uses returns the indications text.
func (r Record) Uses() string { return r.uses }

// SideEffects returns the known side effects.
func (r Record) SideEffects() []string { return r.sideEffects }

// Substitutes returns alternative medicines.
func (r Record) Substitutes() []string { return r.substitutes }

// Manufacturer returns the manufacturer name.
func (r Record) Manufacturer() string { return r.manufacturer }

// IsZero reports whether the record is the zero value.
func (r Record) IsZero() bool { return r.id == "" }
