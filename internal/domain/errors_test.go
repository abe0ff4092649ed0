package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestSchemaMismatchError_Unwraps(t *testing.T) {
	err := NewSchemaMismatch(1, 2)

	if !errors.Is(err, ErrSchemaMismatch) {
		t.Error("expected errors.Is(err, ErrSchemaMismatch)")
	}
	want := "feature schema mismatch: artifact built against schema v1, current schema is v2"
	if err.Error() != want {
		t.Errorf("unexpected message:\ngot:  %q\nwant: %q", err.Error(), want)
	}
}

func TestMissingColumnsError_Unwraps(t *testing.T) {
	err := NewMissingColumns([]string{"uses", "manufacturer"})

	if !errors.Is(err, ErrDatasetLoad) {
		t.Error("expected errors.Is(err, ErrDatasetLoad)")
	}
	var mc *MissingColumnsError
	if !errors.As(err, &mc) || len(mc.Columns) != 2 {
		t.Errorf("expected MissingColumnsError with 2 columns, got %v", err)
	}
}

func TestFailAt_WrapsStageAndCause(t *testing.T) {
	err := FailAt(StageScored, fmt.Errorf("scoring: %w", ErrModelUnavailable))

	stage, ok := StageOf(err)
	if !ok || stage != StageScored {
		t.Errorf("expected stage scored, got (%s, %v)", stage, ok)
	}
	if !errors.Is(err, ErrModelUnavailable) {
		t.Error("expected sentinel to survive stage wrapping")
	}
	want := "stage scored: scoring: no usable models loaded"
	if err.Error() != want {
		t.Errorf("unexpected message:\ngot:  %q\nwant: %q", err.Error(), want)
	}
}

func TestFailAt_NilErr(t *testing.T) {
	if err := FailAt(StageRanked, nil); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestStageOf_NoStage(t *testing.T) {
	if _, ok := StageOf(errors.New("plain")); ok {
		t.Error("expected no stage for plain error")
	}
}
