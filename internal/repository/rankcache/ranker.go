package rankcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/doshi-kevin/medrec/internal/db"
	"github.com/doshi-kevin/medrec/internal/domain"
)

var cacheKeyPrefix = domain.KeyPrefix + "rank_cache:"

// store is the consumer interface for the ranking cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedRanker caches ranking results in a key-value store. Entries expire
// after a TTL so re-ranked explanations refresh without manual invalidation.
type CachedRanker struct {
	inner      domain.Ranker
	store      store
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(
	inner domain.Ranker,
	s store,
	ttl time.Duration,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedRanker {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CachedRanker{
		inner:      inner,
		store:      s,
		ttl:        ttl,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Rank returns a cached ranking or calls the inner ranker.
// Cache hits consume no provider budget since they never reach the inner
// ranker; they carry FromCache so outer decorators can tell them apart.
func (c *CachedRanker) Rank(ctx context.Context, req domain.RankRequest) (domain.RankResult, error) {
	key := c.cacheKey(req)

	if result, ok := c.getFromCache(ctx, key, req); ok {
		c.incCache("hit")
		result.FromCache = true
		return result, nil
	}

	c.incCache("miss")

	result, err := c.inner.Rank(ctx, req)
	if err != nil {
		return domain.RankResult{}, fmt.Errorf("rank candidates: %w", err)
	}

	c.putToCache(ctx, key, result)
	return result, nil
}

func (c *CachedRanker) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

// cacheKey hashes everything that shapes the ranking: the query symptoms
// plus each candidate's id and presented confidence. A retrain that shifts
// confidences therefore misses the old entries instead of serving them.
func (c *CachedRanker) cacheKey(req domain.RankRequest) string {
	var sb strings.Builder
	sb.WriteString(strings.Join(req.Symptoms, ","))
	for _, item := range req.Items {
		fmt.Fprintf(&sb, "|%s:%.2f", item.ID, item.Confidence)
	}
	h := sha256.Sum256([]byte(sb.String()))
	return cacheKeyPrefix + hex.EncodeToString(h[:])
}

func (c *CachedRanker) getFromCache(
	ctx context.Context, key string, req domain.RankRequest,
) (domain.RankResult, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached ranking", zap.String("key", key), zap.Error(err))
		}
		return domain.RankResult{}, false
	}
	if len(data) == 0 {
		return domain.RankResult{}, false
	}

	var result domain.RankResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Warn("Failed to parse cached ranking", zap.String("key", key), zap.Error(err))
		return domain.RankResult{}, false
	}

	// Entries written by older builds may not match the current candidate
	// shape; a cached entry must still be a permutation of the requested ids.
	if !matchesRequest(result, req) {
		c.logger.Warn("Cached ranking does not match request candidates", zap.String("key", key))
		return domain.RankResult{}, false
	}

	return result, true
}

func (c *CachedRanker) putToCache(ctx context.Context, key string, result domain.RankResult) {
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Warn("Failed to encode ranking for cache", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.store.SetWithTTL(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("Failed to cache ranking", zap.String("key", key), zap.Error(err))
	}
}

func matchesRequest(result domain.RankResult, req domain.RankRequest) bool {
	if len(result.Items) != len(req.Items) {
		return false
	}
	want := make(map[string]bool, len(req.Items))
	for _, item := range req.Items {
		want[item.ID] = true
	}
	for _, item := range result.Items {
		if !want[item.ID] {
			return false
		}
		delete(want, item.ID)
	}
	return true
}
