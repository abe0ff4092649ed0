package domain

import (
	"errors"
	"fmt"
)

// Stage identifies a step of the recommendation pipeline. One request moves
// Received → Normalized → FeaturesBuilt → Scored → Ranked → Completed;
// a failure at any step terminates the request with that stage recorded.
type Stage string

const (
	// StageReceived is the initial state of an accepted request.
	StageReceived Stage = "received"
	// StageNormalized means symptom extraction succeeded.
	StageNormalized Stage = "normalized"
	// StageFeaturesBuilt means the feature vector was built.
	StageFeaturesBuilt Stage = "features_built"
	// StageScored means the ensemble produced a candidate list.
	StageScored Stage = "scored"
	// StageRanked means the external ranking completed (or fell back).
	StageRanked Stage = "ranked"
	// StageCompleted is the successful terminal state.
	StageCompleted Stage = "completed"
)

// StageError marks a pipeline failure with the stage it occurred at.
// It unwraps to the underlying cause so sentinel checks keep working.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// FailAt wraps err with the failing stage. Returns nil for a nil err.
func FailAt(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

// StageOf extracts the failing stage from an error chain.
func StageOf(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}
