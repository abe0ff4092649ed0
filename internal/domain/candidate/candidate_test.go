package candidate

import (
	"testing"

	"github.com/doshi-kevin/medrec/internal/domain/medicine"
)

func med(t *testing.T, id string) medicine.Record {
	t.Helper()
	m, err := medicine.New(id, "Med "+id, "", "analgesic", "pain", nil, nil, "")
	if err != nil {
		t.Fatalf("medicine: %v", err)
	}
	return m
}

func TestNew_RejectsOutOfRangeConfidence(t *testing.T) {
	for _, conf := range []float64{-0.1, 1.1} {
		if _, err := New(med(t, "m1"), conf, nil); err == nil {
			t.Errorf("expected error for confidence %f", conf)
		}
	}
}

func TestNew_RejectsZeroMedicine(t *testing.T) {
	if _, err := New(medicine.Record{}, 0.5, nil); err == nil {
		t.Fatal("expected error for zero medicine")
	}
}

func TestBestModelScore(t *testing.T) {
	p, err := New(med(t, "m1"), 0.7, map[string]float64{"lexical": 0.4, "bayes": 0.9})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := p.BestModelScore(); got != 0.9 {
		t.Errorf("expected best score 0.9, got %f", got)
	}
}

func TestSort_DescendingStable(t *testing.T) {
	a, _ := New(med(t, "a"), 0.5, nil)
	b, _ := New(med(t, "b"), 0.9, nil)
	c, _ := New(med(t, "c"), 0.5, nil)
	preds := []Prediction{a, b, c}

	Sort(preds)

	wantOrder := []string{"b", "a", "c"} // ties keep input order
	for i, want := range wantOrder {
		if preds[i].Medicine().ID() != want {
			t.Errorf("position %d: expected %s, got %s", i, want, preds[i].Medicine().ID())
		}
	}
}
