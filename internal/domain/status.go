package domain

// Status reports what the pipeline has loaded and which collaborators are
// configured. Snapshot of immutable startup state; cheap to build per call.
type Status struct {
	DatasetLoaded   bool
	TotalMedicines  int
	SchemaVersion   int
	ModelsLoaded    []string
	RankingProvider string
	RankingModel    string
	CacheEnabled    bool
	ResultsEnabled  bool
}
