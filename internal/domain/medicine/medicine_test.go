package medicine

import "testing"

func TestNew_Valid(t *testing.T) {
	rec, err := New(
		"m1", "Paracip 500", "Paracetamol (500mg)", "analgesic",
		"fever headache pain",
		[]string{"nausea"}, []string{"Dolo 650"}, "Cipla",
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.ID() != "m1" {
		t.Errorf("expected id m1, got %q", rec.ID())
	}
	if rec.Name() != "Paracip 500" {
		t.Errorf("expected name, got %q", rec.Name())
	}
	if rec.TherapeuticClass() != "analgesic" {
		t.Errorf("expected class analgesic, got %q", rec.TherapeuticClass())
	}
	if len(rec.SideEffects()) != 1 || rec.SideEffects()[0] != "nausea" {
		t.Errorf("unexpected side effects: %v", rec.SideEffects())
	}
	if rec.IsZero() {
		t.Error("valid record reported as zero")
	}
}

func TestNew_MissingID(t *testing.T) {
	if _, err := New("", "Name", "", "", "", nil, nil, ""); err == nil {
		t.Fatal("expected error for missing id")
	}
}

func TestNew_MissingName(t *testing.T) {
	if _, err := New("m1", "", "", "", "", nil, nil, ""); err == nil {
		t.Fatal("expected error for missing name")
	}
}

func TestReconstruct_SkipsValidation(t *testing.T) {
	rec := Reconstruct("", "", "", "", "", nil, nil, "")
	if !rec.IsZero() {
		t.Error("expected zero record")
	}
}
