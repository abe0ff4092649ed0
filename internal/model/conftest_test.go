package model

import (
	"fmt"
	"math"

	"github.com/doshi-kevin/medrec/internal/domain"
	"github.com/doshi-kevin/medrec/internal/domain/medicine"
)

// fakeRecords implements RecordLookup over a fixed map.
type fakeRecords map[string]medicine.Record

func (f fakeRecords) Get(id string) (medicine.Record, error) {
	rec, ok := f[id]
	if !ok {
		return medicine.Record{}, fmt.Errorf("%w: %s", domain.ErrMedicineNotFound, id)
	}
	return rec, nil
}

// fakeTokens implements TokenLookup over a fixed map.
type fakeTokens map[string][]string

func (f fakeTokens) TokensOf(id string) []string { return f[id] }

func med(id, class string) medicine.Record {
	return medicine.Reconstruct(id, "med-"+id, "", class, "", nil, nil, "")
}

func query(version int, symptoms []string, candidates ...string) domain.ModelQuery {
	return domain.ModelQuery{
		SymptomTokens: symptoms,
		SchemaVersion: version,
		CandidateIDs:  candidates,
	}
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }
