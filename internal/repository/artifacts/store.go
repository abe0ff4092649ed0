package artifacts

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Artifact file names inside the artifacts directory.
const (
	manifestFile = "manifest.json"
	bayesFile    = "bayes.json"
	clustersFile = "clusters.json"
)

// ErrMissing marks an artifact file that is not present. Callers treat it
// as "model not loaded" and degrade; any other error is a corrupt bundle.
var ErrMissing = errors.New("artifact not present")

// Manifest describes a trained artifact bundle: the feature schema version
// the bundle was built against and the ensemble combination weights.
type Manifest struct {
	SchemaVersion int                `json:"schema_version"`
	GeneratedAt   string             `json:"generated_at"`
	Weights       map[string]float64 `json:"model_weights"`
}

// Bayes holds the naive-Bayes scoring tables: per-class priors and
// per-class symptom likelihoods, with additive smoothing for absent tokens.
type Bayes struct {
	SchemaVersion    int                           `json:"schema_version"`
	ClassPriors      map[string]float64            `json:"class_priors"`
	TokenLikelihoods map[string]map[string]float64 `json:"token_likelihoods"`
	Smoothing        float64                       `json:"smoothing"`
}

// Cluster is one offline-computed medicine cluster.
type Cluster struct {
	ID           int      `json:"cluster_id"`
	Size         int      `json:"size"`
	PrimaryClass string   `json:"primary_class"`
	Classes      []string `json:"classes"`
	Medicines    []string `json:"top_medicines"`
}

// Clusters is the offline clustering artifact.
type Clusters struct {
	SchemaVersion int       `json:"schema_version"`
	Clusters      []Cluster `json:"clusters"`
}

// Store reads model artifacts from a directory.
type Store struct {
	dir string
}

// New creates an artifact store over a directory. The directory may be
// empty or absent; individual loads then report ErrMissing.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// LoadManifest reads and validates manifest.json.
func (s *Store) LoadManifest() (Manifest, error) {
	var m Manifest
	if err := s.read(manifestFile, &m); err != nil {
		return Manifest{}, err
	}
	if m.SchemaVersion <= 0 {
		return Manifest{}, fmt.Errorf("%s: schema_version must be positive, got %d", manifestFile, m.SchemaVersion)
	}
	for name, w := range m.Weights {
		if w < 0 {
			return Manifest{}, fmt.Errorf("%s: negative weight %f for model %q", manifestFile, w, name)
		}
	}
	return m, nil
}

// LoadBayes reads and validates bayes.json.
func (s *Store) LoadBayes() (Bayes, error) {
	var b Bayes
	if err := s.read(bayesFile, &b); err != nil {
		return Bayes{}, err
	}
	if b.SchemaVersion <= 0 {
		return Bayes{}, fmt.Errorf("%s: schema_version must be positive, got %d", bayesFile, b.SchemaVersion)
	}
	if len(b.ClassPriors) == 0 {
		return Bayes{}, fmt.Errorf("%s: class_priors is empty", bayesFile)
	}
	if b.Smoothing <= 0 {
		b.Smoothing = 0.01
	}
	return b, nil
}

// LoadClusters reads and validates clusters.json.
func (s *Store) LoadClusters() (Clusters, error) {
	var c Clusters
	if err := s.read(clustersFile, &c); err != nil {
		return Clusters{}, err
	}
	if c.SchemaVersion <= 0 {
		return Clusters{}, fmt.Errorf("%s: schema_version must be positive, got %d", clustersFile, c.SchemaVersion)
	}
	for _, cl := range c.Clusters {
		if cl.Size < 0 {
			return Clusters{}, fmt.Errorf("%s: cluster %d has negative size", clustersFile, cl.ID)
		}
	}
	return c, nil
}

func (s *Store) read(name string, out any) error {
	if s.dir == "" {
		return fmt.Errorf("%s: %w", name, ErrMissing)
	}
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s: %w", name, ErrMissing)
		}
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}
