package ensemble

import "github.com/doshi-kevin/medrec/internal/domain/medicine"

// MatchCounter finds candidate medicines for canonical symptoms.
type MatchCounter interface {
	// MatchCounts returns, per medicine id, how many of the given symptoms
	// its indications text mentions. Ids with zero matches are absent.
	MatchCounts(tokens []string) map[string]int
}

// RecordReader reads medicine records by id.
type RecordReader interface {
	Get(id string) (medicine.Record, error)
}
