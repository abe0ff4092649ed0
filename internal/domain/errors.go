package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInputRejected signals input with no recognizable symptoms.
	ErrInputRejected = errors.New("no recognizable symptoms in input")
	// ErrSchemaMismatch signals feature/model schema version drift.
	ErrSchemaMismatch = errors.New("feature schema mismatch")
	// ErrModelUnavailable signals an ensemble with zero usable models.
	ErrModelUnavailable = errors.New("no usable models loaded")
	// ErrRankingUnavailable signals a ranking service failure (recoverable,
	// callers fall back to the ensemble order).
	ErrRankingUnavailable = errors.New("ranking service unavailable")
	// ErrRankingQuotaExceeded signals an exhausted ranking call budget.
	ErrRankingQuotaExceeded = errors.New("ranking call budget exceeded")
	// ErrDatasetLoad signals a reference dataset that could not be loaded. Startup-fatal.
	ErrDatasetLoad = errors.New("dataset load failed")
	// ErrMedicineNotFound signals a missing medicine record.
	ErrMedicineNotFound = errors.New("medicine not found")
	// ErrRecommendationNotFound signals a missing persisted recommendation.
	ErrRecommendationNotFound = errors.New("recommendation not found")
)

// SchemaMismatchError wraps ErrSchemaMismatch with the versions on both sides.
type SchemaMismatchError struct {
	ArtifactVersion int
	CurrentVersion  int
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("%s: artifact built against schema v%d, current schema is v%d",
		ErrSchemaMismatch.Error(), e.ArtifactVersion, e.CurrentVersion)
}

func (e *SchemaMismatchError) Unwrap() error { return ErrSchemaMismatch }

// NewSchemaMismatch creates a schema mismatch error.
func NewSchemaMismatch(artifactVersion, currentVersion int) error {
	return &SchemaMismatchError{ArtifactVersion: artifactVersion, CurrentVersion: currentVersion}
}

// MissingColumnsError wraps ErrDatasetLoad with the missing required columns.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("%s: missing required columns %v", ErrDatasetLoad.Error(), e.Columns)
}

func (e *MissingColumnsError) Unwrap() error { return ErrDatasetLoad }

// NewMissingColumns creates a dataset load error for absent required columns.
func NewMissingColumns(columns []string) error {
	return &MissingColumnsError{Columns: columns}
}
