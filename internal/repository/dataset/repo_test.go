package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/doshi-kevin/medrec/internal/domain"
	"github.com/doshi-kevin/medrec/internal/domain/symptom"
)

const fixtureCSV = `id,name,therapeutic_class,uses,side_effects,substitutes,manufacturer,composition
m1,Paracip 500,Analgesic,"treatment of fever and pain relief","nausea; rash",Dolo 650|Calpol,Cipla,Paracetamol 500mg
m2,Coughex Syrup,Cough suppressant,"relief of dry cough and sore throat",drowsiness,Benadryl,Glenmark,
m3,Amoxil 250,Antibiotic,"bacterial infection of the throat","diarrhea, vomiting",Mox 250,GSK,Amoxicillin
m4,Feverol,Analgesic,"reduces high temperature in children",,,Sun Pharma,
`

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "medicines.csv")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestLoad_BuildsRecordsAndIndex(t *testing.T) {
	repo, err := Load(writeFixture(t, fixtureCSV), symptom.Default(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if repo.Count() != 4 {
		t.Fatalf("expected 4 records, got %d", repo.Count())
	}

	rec, err := repo.Get("m1")
	if err != nil {
		t.Fatalf("Get(m1): %v", err)
	}
	if rec.Name() != "Paracip 500" || rec.TherapeuticClass() != "Analgesic" {
		t.Errorf("unexpected record: %s / %s", rec.Name(), rec.TherapeuticClass())
	}
	if len(rec.SideEffects()) != 2 || rec.SideEffects()[0] != "nausea" {
		t.Errorf("unexpected side effects: %v", rec.SideEffects())
	}
	if len(rec.Substitutes()) != 2 || rec.Substitutes()[1] != "Calpol" {
		t.Errorf("unexpected substitutes: %v", rec.Substitutes())
	}
}

func TestLoad_IndexesCanonicalSymptoms(t *testing.T) {
	repo, err := Load(writeFixture(t, fixtureCSV), symptom.Default(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	counts := repo.MatchCounts([]string{"fever", "pain"})
	if counts["m1"] != 2 {
		t.Errorf("expected m1 to match both symptoms, got %d", counts["m1"])
	}
	// "high temperature" in m4's uses aliases onto fever.
	if counts["m4"] != 1 {
		t.Errorf("expected m4 to match fever via alias, got %d", counts["m4"])
	}
	if _, ok := counts["m2"]; ok {
		t.Error("m2 must not match fever or pain")
	}
}

func TestLoad_TokensOf(t *testing.T) {
	repo, err := Load(writeFixture(t, fixtureCSV), symptom.Default(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	toks := repo.TokensOf("m3")
	if len(toks) != 1 || toks[0] != "infection" {
		t.Errorf("expected [infection], got %v", toks)
	}
	if repo.TokensOf("nope") != nil {
		t.Error("expected nil tokens for unknown id")
	}
}

func TestLoad_MissingRequiredColumns(t *testing.T) {
	csv := "name,uses,manufacturer\nParacip,fever,Cipla\n"
	_, err := Load(writeFixture(t, csv), symptom.Default(), 0)

	if !errors.Is(err, domain.ErrDatasetLoad) {
		t.Fatalf("expected ErrDatasetLoad, got %v", err)
	}
	var mc *domain.MissingColumnsError
	if !errors.As(err, &mc) {
		t.Fatalf("expected MissingColumnsError, got %v", err)
	}
	if len(mc.Columns) != 4 {
		t.Errorf("expected 4 missing columns, got %v", mc.Columns)
	}
}

func TestLoad_AcceptsRawExportHeaders(t *testing.T) {
	csv := "id,name_248k,therapeutic_class_248k,use0,sideeffect0,substitute0,manufacturer\n" +
		"m1,Paracip,Analgesic,fever,nausea,Dolo,Cipla\n"
	repo, err := Load(writeFixture(t, csv), symptom.Default(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec, err := repo.Get("m1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Name() != "Paracip" || rec.Uses() != "fever" {
		t.Errorf("raw headers not resolved: %s / %s", rec.Name(), rec.Uses())
	}
}

func TestLoad_SkipsUnusableRows(t *testing.T) {
	csv := fixtureCSV +
		",No ID,Analgesic,fever,,,Cipla,\n" +
		"m1,Duplicate,Analgesic,fever,,,Cipla,\n"
	repo, err := Load(writeFixture(t, csv), symptom.Default(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.Count() != 4 {
		t.Errorf("expected 4 records, got %d", repo.Count())
	}
	if repo.Skipped() != 2 {
		t.Errorf("expected 2 skipped rows, got %d", repo.Skipped())
	}
}

func TestLoad_MaxRecordsCap(t *testing.T) {
	repo, err := Load(writeFixture(t, fixtureCSV), symptom.Default(), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.Count() != 2 {
		t.Errorf("expected 2 records, got %d", repo.Count())
	}
}

func TestLoad_EmptyDataset(t *testing.T) {
	csv := "id,name,therapeutic_class,uses,side_effects,substitutes,manufacturer\n"
	_, err := Load(writeFixture(t, csv), symptom.Default(), 0)
	if !errors.Is(err, domain.ErrDatasetLoad) {
		t.Fatalf("expected ErrDatasetLoad for empty dataset, got %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.csv"), symptom.Default(), 0)
	if !errors.Is(err, domain.ErrDatasetLoad) {
		t.Fatalf("expected ErrDatasetLoad, got %v", err)
	}
}

func TestClassCodes_StableAndSorted(t *testing.T) {
	repo, err := Load(writeFixture(t, fixtureCSV), symptom.Default(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	classes := repo.Classes()
	want := []string{"Analgesic", "Antibiotic", "Cough suppressant"}
	if len(classes) != len(want) {
		t.Fatalf("expected %v, got %v", want, classes)
	}
	for i := range want {
		if classes[i] != want[i] {
			t.Errorf("classes[%d] = %q, want %q", i, classes[i], want[i])
		}
	}

	if code, ok := repo.ClassCode("Analgesic"); !ok || code != 1 {
		t.Errorf("ClassCode(Analgesic) = (%d, %v), want (1, true)", code, ok)
	}
	if code, ok := repo.ClassCode("Unheard Of"); ok || code != 0 {
		t.Errorf("ClassCode(unknown) = (%d, %v), want (0, false)", code, ok)
	}
}
