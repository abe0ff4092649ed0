package model

import (
	"context"

	"github.com/doshi-kevin/medrec/internal/domain"
)

// ClusterGroup is one offline-computed medicine cluster as the cluster
// scorer consumes it.
type ClusterGroup struct {
	Size         int
	PrimaryClass string
	Classes      []string
}

// Cluster scores a candidate by the cohesion of the cluster its
// therapeutic class leads: large, pure clusters mean the class is a
// well-established grouping for the matched symptoms. Candidates whose
// class leads no cluster score zero.
type Cluster struct {
	byClass       map[string]ClusterGroup
	maxSize       int
	records       RecordLookup
	schemaVersion int
}

// NewCluster creates the cluster-affinity scorer from the offline
// clustering artifact. When two clusters share a primary class the larger
// one wins. artifactVersion mismatching currentVersion is a hard error.
func NewCluster(
	groups []ClusterGroup,
	records RecordLookup,
	artifactVersion, currentVersion int,
) (*Cluster, error) {
	if artifactVersion != currentVersion {
		return nil, domain.NewSchemaMismatch(artifactVersion, currentVersion)
	}
	byClass := make(map[string]ClusterGroup, len(groups))
	maxSize := 0
	for _, g := range groups {
		if g.PrimaryClass == "" || g.Size <= 0 {
			continue
		}
		if prev, ok := byClass[g.PrimaryClass]; !ok || g.Size > prev.Size {
			byClass[g.PrimaryClass] = g
		}
		if g.Size > maxSize {
			maxSize = g.Size
		}
	}
	return &Cluster{
		byClass:       byClass,
		maxSize:       maxSize,
		records:       records,
		schemaVersion: currentVersion,
	}, nil
}

// Name implements domain.Model.
func (c *Cluster) Name() string { return NameCluster }

// SchemaVersion implements domain.Model.
func (c *Cluster) SchemaVersion() int { return c.schemaVersion }

// Ready implements domain.Model.
func (c *Cluster) Ready() bool { return len(c.byClass) > 0 && c.records != nil }

// Score combines cluster purity (few distinct classes) with prominence
// (cluster size relative to the largest cluster).
func (c *Cluster) Score(_ context.Context, q domain.ModelQuery) (map[string]float64, error) {
	if q.SchemaVersion != c.schemaVersion {
		return nil, domain.NewSchemaMismatch(c.schemaVersion, q.SchemaVersion)
	}

	scores := make(map[string]float64, len(q.CandidateIDs))
	for _, id := range q.CandidateIDs {
		rec, err := c.records.Get(id)
		if err != nil {
			continue
		}
		g, ok := c.byClass[rec.TherapeuticClass()]
		if !ok {
			continue
		}
		purity := 1.0
		if n := len(g.Classes); n > 1 {
			purity = 1.0 / float64(n)
		}
		prominence := 1.0
		if c.maxSize > 0 {
			prominence = float64(g.Size) / float64(c.maxSize)
		}
		if s := purity * prominence; s > 0 {
			scores[id] = s
		}
	}
	return scores, nil
}

// Related returns the other therapeutic classes sharing a cluster with the
// given class, in artifact order. Nil when the class leads no cluster.
func (c *Cluster) Related(class string) []string {
	g, ok := c.byClass[class]
	if !ok {
		return nil
	}
	var out []string
	for _, other := range g.Classes {
		if other != class {
			out = append(out, other)
		}
	}
	return out
}
