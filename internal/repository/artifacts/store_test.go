package artifacts

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeArtifact(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "manifest.json",
		`{"schema_version": 2, "generated_at": "2026-08-01T00:00:00Z",
		  "model_weights": {"lexical": 1.0, "bayes": 2.0, "cluster": 0.5}}`)

	m, err := New(dir).LoadManifest()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.SchemaVersion != 2 {
		t.Errorf("schema version = %d, want 2", m.SchemaVersion)
	}
	if m.Weights["bayes"] != 2.0 {
		t.Errorf("bayes weight = %f, want 2.0", m.Weights["bayes"])
	}
}

func TestLoadManifest_Missing(t *testing.T) {
	_, err := New(t.TempDir()).LoadManifest()
	if !errors.Is(err, ErrMissing) {
		t.Fatalf("expected ErrMissing, got %v", err)
	}
}

func TestLoadManifest_EmptyDir(t *testing.T) {
	_, err := New("").LoadManifest()
	if !errors.Is(err, ErrMissing) {
		t.Fatalf("expected ErrMissing for unconfigured dir, got %v", err)
	}
}

func TestLoadManifest_InvalidVersion(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "manifest.json", `{"schema_version": 0}`)

	if _, err := New(dir).LoadManifest(); err == nil {
		t.Fatal("expected error for zero schema version")
	}
}

func TestLoadManifest_NegativeWeight(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "manifest.json",
		`{"schema_version": 2, "model_weights": {"bayes": -1}}`)

	if _, err := New(dir).LoadManifest(); err == nil {
		t.Fatal("expected error for negative weight")
	}
}

func TestLoadManifest_Corrupt(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "manifest.json", `{not json`)

	_, err := New(dir).LoadManifest()
	if err == nil || errors.Is(err, ErrMissing) {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestLoadBayes(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "bayes.json",
		`{"schema_version": 2,
		  "class_priors": {"Analgesic": 0.6, "Antibiotic": 0.4},
		  "token_likelihoods": {"Analgesic": {"fever": 0.8, "pain": 0.9}},
		  "smoothing": 0.02}`)

	b, err := New(dir).LoadBayes()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.ClassPriors["Analgesic"] != 0.6 {
		t.Errorf("prior = %f, want 0.6", b.ClassPriors["Analgesic"])
	}
	if b.TokenLikelihoods["Analgesic"]["pain"] != 0.9 {
		t.Errorf("likelihood = %f, want 0.9", b.TokenLikelihoods["Analgesic"]["pain"])
	}
	if b.Smoothing != 0.02 {
		t.Errorf("smoothing = %f, want 0.02", b.Smoothing)
	}
}

func TestLoadBayes_DefaultSmoothing(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "bayes.json",
		`{"schema_version": 2, "class_priors": {"Analgesic": 1}}`)

	b, err := New(dir).LoadBayes()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Smoothing != 0.01 {
		t.Errorf("smoothing = %f, want default 0.01", b.Smoothing)
	}
}

func TestLoadBayes_EmptyPriors(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "bayes.json", `{"schema_version": 2, "class_priors": {}}`)

	if _, err := New(dir).LoadBayes(); err == nil {
		t.Fatal("expected error for empty priors")
	}
}

func TestLoadClusters(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "clusters.json",
		`{"schema_version": 2, "clusters": [
		   {"cluster_id": 0, "size": 120, "primary_class": "Analgesic",
		    "classes": ["Analgesic", "Antipyretic"],
		    "top_medicines": ["Paracip 500", "Dolo 650"]},
		   {"cluster_id": 1, "size": 45, "primary_class": "Antibiotic",
		    "classes": ["Antibiotic"], "top_medicines": ["Amoxil 250"]}]}`)

	c, err := New(dir).LoadClusters()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(c.Clusters) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(c.Clusters))
	}
	if c.Clusters[0].PrimaryClass != "Analgesic" || c.Clusters[0].Size != 120 {
		t.Errorf("unexpected first cluster: %+v", c.Clusters[0])
	}
}

func TestLoadClusters_Missing(t *testing.T) {
	_, err := New(t.TempDir()).LoadClusters()
	if !errors.Is(err, ErrMissing) {
		t.Fatalf("expected ErrMissing, got %v", err)
	}
}
