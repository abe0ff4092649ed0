package results

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/doshi-kevin/medrec/internal/domain"
	"github.com/doshi-kevin/medrec/internal/domain/candidate"
	"github.com/doshi-kevin/medrec/internal/domain/medicine"
	"github.com/doshi-kevin/medrec/internal/domain/recommendation"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "results.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testOutcome(id string, createdAt time.Time) recommendation.Outcome {
	m1 := medicine.Reconstruct("m1", "Paracip 500", "", "Antipyretic", "", nil, nil, "")
	m2 := medicine.Reconstruct("m2", "Coughnil", "", "Antitussive", "", nil, nil, "")

	items := []recommendation.Ranked{
		recommendation.NewRanked(1,
			candidate.Reconstruct(m1, 0.94, map[string]float64{"lexical": 1.0, "bayes": 0.9}),
			"reduces the fever", nil, []string{"Analgesic"}),
		recommendation.NewRanked(2,
			candidate.Reconstruct(m2, 0.87, map[string]float64{"lexical": 0.9}),
			"targets the cough", []string{"avoid with sedatives"}, nil),
	}

	return recommendation.Reconstruct(
		id, createdAt, []string{"fever", "cough"}, items,
		[]string{"lexical", "bayes"}, true, recommendation.SourceRankingService,
	)
}

func TestStore_SaveAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	if err := s.Save(ctx, testOutcome("req-1", created)); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	got, err := s.Get(ctx, "req-1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}

	if got.ID() != "req-1" {
		t.Errorf("id = %s, want req-1", got.ID())
	}
	if !got.CreatedAt().Equal(created) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt(), created)
	}
	if len(got.Symptoms()) != 2 || got.Symptoms()[0] != "fever" {
		t.Errorf("symptoms = %v", got.Symptoms())
	}
	if !got.ExplanationsAvailable() {
		t.Error("expected explanations available")
	}
	if got.OrderSource() != recommendation.SourceRankingService {
		t.Errorf("order source = %s", got.OrderSource())
	}

	items := got.Items()
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	first := items[0]
	if first.Rank() != 1 || first.Medicine().ID() != "m1" {
		t.Errorf("first item = rank %d, id %s", first.Rank(), first.Medicine().ID())
	}
	if first.Medicine().Name() != "Paracip 500" {
		t.Errorf("first item name = %s", first.Medicine().Name())
	}
	if first.Confidence() != 0.94 {
		t.Errorf("first item confidence = %f", first.Confidence())
	}
	if first.ModelScores()["bayes"] != 0.9 {
		t.Errorf("first item model scores = %v", first.ModelScores())
	}
	if first.Explanation() != "reduces the fever" {
		t.Errorf("first item explanation = %q", first.Explanation())
	}
	second := items[1]
	if len(second.Contraindications()) != 1 || second.Contraindications()[0] != "avoid with sedatives" {
		t.Errorf("second item contraindications = %v", second.Contraindications())
	}
}

func TestStore_GetMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), "nope")
	if !errors.Is(err, domain.ErrRecommendationNotFound) {
		t.Fatalf("expected domain.ErrRecommendationNotFound, got %v", err)
	}
}

func TestStore_SaveReplaces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	created := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	if err := s.Save(ctx, testOutcome("req-1", created)); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if err := s.Save(ctx, testOutcome("req-1", created)); err != nil {
		t.Fatalf("second Save() error: %v", err)
	}

	n, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 row after replace, got %d", n)
	}
}

func TestStore_ListRecent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"req-a", "req-b", "req-c"} {
		o := testOutcome(id, base.Add(time.Duration(i)*time.Minute))
		if err := s.Save(ctx, o); err != nil {
			t.Fatalf("Save(%s) error: %v", id, err)
		}
	}

	got, err := s.ListRecent(ctx, 2)
	if err != nil {
		t.Fatalf("ListRecent() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(got))
	}
	if got[0].ID() != "req-c" || got[1].ID() != "req-b" {
		t.Errorf("expected newest first [req-c req-b], got [%s %s]", got[0].ID(), got[1].ID())
	}
}

func TestStore_ListRecentEmpty(t *testing.T) {
	s := newTestStore(t)

	got, err := s.ListRecent(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListRecent() error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no outcomes, got %d", len(got))
	}
}

func TestStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "results.db")
	ctx := context.Background()
	created := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	s1, err := Open(path, zap.NewNop())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if err := s1.Save(ctx, testOutcome("req-1", created)); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if err := s1.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	s2, err := Open(path, zap.NewNop())
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer s2.Close()

	got, err := s2.Get(ctx, "req-1")
	if err != nil {
		t.Fatalf("Get() after reopen error: %v", err)
	}
	if got.Items()[0].Medicine().Name() != "Paracip 500" {
		t.Errorf("unexpected item after reopen: %s", got.Items()[0].Medicine().Name())
	}
}
