package ranking

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/doshi-kevin/medrec/internal/db"
	"github.com/doshi-kevin/medrec/internal/domain"
	"github.com/doshi-kevin/medrec/internal/repository/rankcache"
)

type fakeRanker struct {
	calls  int
	result domain.RankResult
	err    error
}

func (f *fakeRanker) Rank(_ context.Context, _ domain.RankRequest) (domain.RankResult, error) {
	f.calls++
	return f.result, f.err
}

type fakeSafety struct {
	calls  int
	report domain.SafetyReport
	err    error
}

func (f *fakeSafety) CheckSafety(_ context.Context, _ domain.PatientProfile, _ []domain.RankItem) (domain.SafetyReport, error) {
	f.calls++
	return f.report, f.err
}

type fakeBudget struct {
	checkErr  error
	recorded  int64
	remaining int64
}

func (f *fakeBudget) Check(_ context.Context) error { return f.checkErr }
func (f *fakeBudget) Record(calls int64)            { f.recorded += calls }
func (f *fakeBudget) RemainingDaily() int64         { return f.remaining }

func rankRequest() domain.RankRequest {
	return domain.RankRequest{
		Symptoms: []string{"fever", "cough"},
		Items: []domain.RankItem{
			{ID: "m1", Name: "Paracip 500", TherapeuticClass: "Antipyretic", Confidence: 0.94},
			{ID: "m2", Name: "Coughnil", TherapeuticClass: "Antitussive", Confidence: 0.87},
		},
	}
}

func TestInstrumentedRanker_BudgetRejectSkipsProvider(t *testing.T) {
	inner := &fakeRanker{}
	budget := &fakeBudget{checkErr: domain.ErrRankingQuotaExceeded}
	r := NewInstrumentedRanker(inner, nil, "test", budget, zap.NewNop())

	_, err := r.Rank(context.Background(), rankRequest())

	if !errors.Is(err, domain.ErrRankingQuotaExceeded) {
		t.Fatalf("expected domain.ErrRankingQuotaExceeded, got %v", err)
	}
	if inner.calls != 0 {
		t.Errorf("expected 0 provider calls when budget rejects, got %d", inner.calls)
	}
	if budget.recorded != 0 {
		t.Errorf("expected no recorded calls, got %d", budget.recorded)
	}
}

func TestInstrumentedRanker_SuccessRecordsCall(t *testing.T) {
	inner := &fakeRanker{result: domain.RankResult{
		Items: []domain.RankedItem{{ID: "m1"}, {ID: "m2"}},
	}}
	budget := &fakeBudget{remaining: 99}
	r := NewInstrumentedRanker(inner, nil, "test", budget, zap.NewNop())

	result, err := r.Rank(context.Background(), rankRequest())
	if err != nil {
		t.Fatalf("Rank() error: %v", err)
	}
	if len(result.Items) != 2 {
		t.Fatalf("expected 2 ranked items, got %d", len(result.Items))
	}
	if inner.calls != 1 {
		t.Errorf("expected 1 provider call, got %d", inner.calls)
	}
	if budget.recorded != 1 {
		t.Errorf("expected 1 recorded call, got %d", budget.recorded)
	}
}

func TestInstrumentedRanker_CachedResultSkipsBudget(t *testing.T) {
	inner := &fakeRanker{result: domain.RankResult{
		Items:     []domain.RankedItem{{ID: "m1"}, {ID: "m2"}},
		FromCache: true,
	}}
	budget := &fakeBudget{remaining: 99}
	r := NewInstrumentedRanker(inner, nil, "test", budget, zap.NewNop())

	if _, err := r.Rank(context.Background(), rankRequest()); err != nil {
		t.Fatalf("Rank() error: %v", err)
	}
	if budget.recorded != 0 {
		t.Errorf("cache-served results must not consume budget, got %d recorded", budget.recorded)
	}
}

type memKVStore struct {
	data map[string][]byte
}

func (m *memKVStore) Get(_ context.Context, key string) ([]byte, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return nil, db.ErrKeyNotFound
}

func (m *memKVStore) SetWithTTL(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.data[key] = value
	return nil
}

// Budget sits outside the cache, so only the call that misses and reaches
// the provider may be recorded. Repeats served warm stay free.
func TestInstrumentedRanker_BudgetCountsProviderCallsOnly(t *testing.T) {
	provider := &fakeRanker{result: domain.RankResult{
		Items: []domain.RankedItem{{ID: "m2"}, {ID: "m1"}},
	}}
	cached := rankcache.New(provider, &memKVStore{data: map[string][]byte{}},
		time.Hour, nil, zap.NewNop())
	budget := &fakeBudget{remaining: 99}
	r := NewInstrumentedRanker(cached, nil, "test", budget, zap.NewNop())

	for i := 0; i < 2; i++ {
		if _, err := r.Rank(context.Background(), rankRequest()); err != nil {
			t.Fatalf("Rank() error: %v", err)
		}
	}

	if provider.calls != 1 {
		t.Fatalf("expected 1 provider call across repeats, got %d", provider.calls)
	}
	if budget.recorded != 1 {
		t.Errorf("budget recorded %d provider calls, want 1", budget.recorded)
	}
}

func TestInstrumentedRanker_ProviderErrorNotRecorded(t *testing.T) {
	inner := &fakeRanker{err: domain.ErrRankingUnavailable}
	budget := &fakeBudget{}
	r := NewInstrumentedRanker(inner, nil, "test", budget, zap.NewNop())

	_, err := r.Rank(context.Background(), rankRequest())

	if !errors.Is(err, domain.ErrRankingUnavailable) {
		t.Fatalf("expected domain.ErrRankingUnavailable, got %v", err)
	}
	if budget.recorded != 0 {
		t.Errorf("failed calls must not consume budget, got %d recorded", budget.recorded)
	}
}

func TestInstrumentedRanker_NilBudgetAllows(t *testing.T) {
	inner := &fakeRanker{result: domain.RankResult{Items: []domain.RankedItem{{ID: "m1"}, {ID: "m2"}}}}
	r := NewInstrumentedRanker(inner, nil, "test", nil, zap.NewNop())

	if _, err := r.Rank(context.Background(), rankRequest()); err != nil {
		t.Fatalf("Rank() error with nil budget: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("expected 1 provider call, got %d", inner.calls)
	}
}

func TestInstrumentedRanker_CheckSafety(t *testing.T) {
	safety := &fakeSafety{report: domain.SafetyReport{
		Status:   domain.SafetyCaution,
		Warnings: []string{"possible interaction with warfarin"},
	}}
	budget := &fakeBudget{remaining: 10}
	r := NewInstrumentedRanker(&fakeRanker{}, safety, "test", budget, zap.NewNop())

	report, err := r.CheckSafety(context.Background(),
		domain.PatientProfile{Medicines: []string{"warfarin"}}, rankRequest().Items)
	if err != nil {
		t.Fatalf("CheckSafety() error: %v", err)
	}
	if report.Status != domain.SafetyCaution {
		t.Errorf("expected status caution, got %s", report.Status)
	}
	if safety.calls != 1 {
		t.Errorf("expected 1 safety call, got %d", safety.calls)
	}
	if budget.recorded != 1 {
		t.Errorf("expected 1 recorded call, got %d", budget.recorded)
	}
}

func TestInstrumentedRanker_CheckSafety_NoChecker(t *testing.T) {
	r := NewInstrumentedRanker(&fakeRanker{}, nil, "test", &fakeBudget{}, zap.NewNop())

	_, err := r.CheckSafety(context.Background(), domain.PatientProfile{}, rankRequest().Items)

	if !errors.Is(err, domain.ErrRankingUnavailable) {
		t.Fatalf("expected domain.ErrRankingUnavailable, got %v", err)
	}
}

func TestInstrumentedRanker_CheckSafety_BudgetReject(t *testing.T) {
	safety := &fakeSafety{}
	budget := &fakeBudget{checkErr: domain.ErrRankingQuotaExceeded}
	r := NewInstrumentedRanker(&fakeRanker{}, safety, "test", budget, zap.NewNop())

	_, err := r.CheckSafety(context.Background(), domain.PatientProfile{}, rankRequest().Items)

	if !errors.Is(err, domain.ErrRankingQuotaExceeded) {
		t.Fatalf("expected domain.ErrRankingQuotaExceeded, got %v", err)
	}
	if safety.calls != 0 {
		t.Errorf("expected 0 safety calls when budget rejects, got %d", safety.calls)
	}
}
