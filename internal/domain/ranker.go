package domain

import "context"

// Ranker reorders and annotates a candidate list using an external service.
// Implementations must honor ctx cancellation; on any error callers keep the
// input order and mark explanations unavailable, so a Ranker failure never
// loses candidates.
type Ranker interface {
	Rank(ctx context.Context, req RankRequest) (RankResult, error)
}

// RankRequest is the context sent across the trust boundary for ranking.
type RankRequest struct {
	// Symptoms are the canonical tokens of the patient query.
	Symptoms []string
	// Items are the ensemble's candidates in ensemble order.
	Items []RankItem
}

// RankItem is one candidate as presented to the ranking service.
type RankItem struct {
	ID               string
	Name             string
	TherapeuticClass string
	Uses             string
	SideEffects      []string
	Confidence       float64
}

// RankedItem is one annotated candidate returned by the ranking service.
type RankedItem struct {
	ID                string
	Explanation       string
	Contraindications []string
}

// RankResult is a validated ranking response: Items is an equal-length
// permutation of the request's candidates, in the service's preferred order.
type RankResult struct {
	Items []RankedItem

	// FromCache marks a result served by a caching decorator without a
	// provider call. Budget accounting must skip such results. Never
	// persisted: a stored entry is by definition not from the cache yet.
	FromCache bool `json:"-"`
}

// SafetyChecker verifies a patient profile against proposed candidates.
// Failures degrade to SafetyUnknown; they never block a recommendation.
type SafetyChecker interface {
	CheckSafety(ctx context.Context, profile PatientProfile, items []RankItem) (SafetyReport, error)
}
