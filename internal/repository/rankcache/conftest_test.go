package rankcache

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/doshi-kevin/medrec/internal/db"
	"github.com/doshi-kevin/medrec/internal/domain"
)

type mockRanker struct {
	result domain.RankResult
	err    error
	calls  int
}

func (m *mockRanker) Rank(_ context.Context, _ domain.RankRequest) (domain.RankResult, error) {
	m.calls++
	return m.result, m.err
}

// mockKVStore implements the consumer interface for tests.
type mockKVStore struct {
	getFn func(ctx context.Context, key string) ([]byte, error)
	setFn func(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

func (m *mockKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockKVStore) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.setFn != nil {
		return m.setFn(ctx, key, value, ttl)
	}
	return nil
}

func newTestCachedRanker(t *testing.T, inner *mockRanker) (*CachedRanker, *mockKVStore) {
	t.Helper()
	ms := &mockKVStore{}
	cr := New(inner, ms, time.Hour, nil, zap.NewNop())
	return cr, ms
}

func testRequest() domain.RankRequest {
	return domain.RankRequest{
		Symptoms: []string{"fever", "cough"},
		Items: []domain.RankItem{
			{ID: "m1", Name: "Paracip 500", Confidence: 0.94},
			{ID: "m2", Name: "Coughnil", Confidence: 0.87},
		},
	}
}

func testResult() domain.RankResult {
	return domain.RankResult{Items: []domain.RankedItem{
		{ID: "m2", Explanation: "targets the cough directly"},
		{ID: "m1", Explanation: "reduces the fever"},
	}}
}
