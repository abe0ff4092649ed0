package chi

import (
	"time"

	"github.com/doshi-kevin/medrec/internal/domain"
	"github.com/doshi-kevin/medrec/internal/domain/recommendation"
)

// Error codes carried in error responses.
const (
	codeBadRequest             = "bad_request"
	codeValidationFailed       = "validation_failed"
	codeUnauthorized           = "unauthorized"
	codeInputRejected          = "input_rejected"
	codeRecommendationNotFound = "recommendation_not_found"
	codeMedicineNotFound       = "medicine_not_found"
	codeRankingQuotaExceeded   = "ranking_quota_exceeded"
	codeRankingUnavailable     = "ranking_unavailable"
	codeModelUnavailable       = "model_unavailable"
	codeSchemaMismatch         = "schema_mismatch"
	codeInternalError          = "internal_error"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// recommendRequest is the POST /api/v1/recommend body.
type recommendRequest struct {
	Symptoms string `json:"symptoms"`
	TopK     *int   `json:"top_k,omitempty"`
}

// interactionsRequest is the POST /api/v1/interactions body.
type interactionsRequest struct {
	Medicines    []string `json:"medicines,omitempty"`
	Allergies    []string `json:"allergies,omitempty"`
	Conditions   []string `json:"conditions,omitempty"`
	CandidateIDs []string `json:"candidate_ids,omitempty"`
}

// recommendationResponse is the outcome document returned for one request.
type recommendationResponse struct {
	ID                    string                `json:"id"`
	CreatedAt             time.Time             `json:"created_at"`
	Symptoms              []string              `json:"symptoms"`
	Items                 []rankedItemResponse  `json:"items"`
	ModelsUsed            []string              `json:"models_used"`
	ExplanationsAvailable bool                  `json:"explanations_available"`
	OrderSource           string                `json:"order_source"`
	Trace                 []stageTimingResponse `json:"trace,omitempty"`
}

type rankedItemResponse struct {
	Rank              int                `json:"rank"`
	ID                string             `json:"id"`
	Name              string             `json:"name"`
	TherapeuticClass  string             `json:"therapeutic_class,omitempty"`
	Composition       string             `json:"composition,omitempty"`
	Uses              string             `json:"uses,omitempty"`
	Manufacturer      string             `json:"manufacturer,omitempty"`
	Confidence        float64            `json:"confidence"`
	ModelScores       map[string]float64 `json:"model_scores,omitempty"`
	Explanation       string             `json:"explanation,omitempty"`
	Contraindications []string           `json:"contraindications,omitempty"`
	RelatedClasses    []string           `json:"related_classes,omitempty"`
	SideEffects       []string           `json:"side_effects,omitempty"`
	Substitutes       []string           `json:"substitutes,omitempty"`
}

type stageTimingResponse struct {
	Stage      string  `json:"stage"`
	DurationMs float64 `json:"duration_ms"`
}

type recommendationListResponse struct {
	Items []recommendationResponse `json:"items"`
	Total int                      `json:"total"`
}

type safetyResponse struct {
	Status   string   `json:"status"`
	Warnings []string `json:"warnings,omitempty"`
}

type statusResponse struct {
	DatasetLoaded   bool     `json:"dataset_loaded"`
	TotalMedicines  int      `json:"total_medicines"`
	SchemaVersion   int      `json:"schema_version"`
	ModelsLoaded    []string `json:"models_loaded"`
	RankingProvider string   `json:"ranking_provider"`
	RankingModel    string   `json:"ranking_model,omitempty"`
	CacheEnabled    bool     `json:"cache_enabled"`
	ResultsEnabled  bool     `json:"results_enabled"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func outcomeToResponse(o recommendation.Outcome) recommendationResponse {
	items := make([]rankedItemResponse, len(o.Items()))
	for i, it := range o.Items() {
		items[i] = rankedToResponse(it)
	}

	resp := recommendationResponse{
		ID:                    o.ID(),
		CreatedAt:             o.CreatedAt(),
		Symptoms:              o.Symptoms(),
		Items:                 items,
		ModelsUsed:            o.ModelsUsed(),
		ExplanationsAvailable: o.ExplanationsAvailable(),
		OrderSource:           string(o.OrderSource()),
	}

	for _, t := range o.Trace() {
		resp.Trace = append(resp.Trace, stageTimingResponse{
			Stage:      t.Stage,
			DurationMs: t.Duration.Seconds() * 1000,
		})
	}

	return resp
}

func rankedToResponse(r recommendation.Ranked) rankedItemResponse {
	med := r.Medicine()
	return rankedItemResponse{
		Rank:              r.Rank(),
		ID:                med.ID(),
		Name:              med.Name(),
		TherapeuticClass:  med.TherapeuticClass(),
		Composition:       med.Composition(),
		Uses:              med.Uses(),
		Manufacturer:      med.Manufacturer(),
		Confidence:        r.Confidence(),
		ModelScores:       r.ModelScores(),
		Explanation:       r.Explanation(),
		Contraindications: r.Contraindications(),
		RelatedClasses:    r.RelatedClasses(),
		SideEffects:       med.SideEffects(),
		Substitutes:       med.Substitutes(),
	}
}

func safetyToResponse(r domain.SafetyReport) safetyResponse {
	return safetyResponse{
		Status:   string(r.Status),
		Warnings: r.Warnings,
	}
}

func statusToResponse(st domain.Status) statusResponse {
	return statusResponse{
		DatasetLoaded:   st.DatasetLoaded,
		TotalMedicines:  st.TotalMedicines,
		SchemaVersion:   st.SchemaVersion,
		ModelsLoaded:    st.ModelsLoaded,
		RankingProvider: st.RankingProvider,
		RankingModel:    st.RankingModel,
		CacheEnabled:    st.CacheEnabled,
		ResultsEnabled:  st.ResultsEnabled,
	}
}
