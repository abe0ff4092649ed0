package medrec

import "github.com/doshi-kevin/medrec/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInputRejected          = domain.ErrInputRejected
	ErrSchemaMismatch         = domain.ErrSchemaMismatch
	ErrModelUnavailable       = domain.ErrModelUnavailable
	ErrRankingUnavailable     = domain.ErrRankingUnavailable
	ErrRankingQuotaExceeded   = domain.ErrRankingQuotaExceeded
	ErrDatasetLoad            = domain.ErrDatasetLoad
	ErrMedicineNotFound       = domain.ErrMedicineNotFound
	ErrRecommendationNotFound = domain.ErrRecommendationNotFound
)
