package ranking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/doshi-kevin/medrec/internal/domain"
)

// BudgetAction defines behavior when the call budget is exceeded.
type BudgetAction string

const (
	// BudgetActionWarn logs a warning but allows the call.
	BudgetActionWarn BudgetAction = "warn"
	// BudgetActionReject blocks the call.
	BudgetActionReject BudgetAction = "reject"
)

// BudgetStore is the persistence interface for budget counters.
// Implementations must be idempotent (IncrBy can be called repeatedly).
type BudgetStore interface {
	IncrBy(ctx context.Context, key string, val int64) error
	Get(ctx context.Context, key string) (int64, error)
}

// CallBudget is an in-memory daily call budget with optional persistence,
// for providers billed or throttled per request. Hot path (Check) is
// in-memory only; Record updates memory first, then write-behind to store.
type CallBudget struct {
	mu           sync.Mutex
	used         int64
	limit        int64
	action       BudgetAction
	provider     string
	lastDayReset time.Time
	store        BudgetStore
	logger       *zap.Logger
}

// NewCallBudget creates a daily call budget. limit 0 means unlimited.
func NewCallBudget(provider string, dailyLimit int64, action BudgetAction, logger *zap.Logger) *CallBudget {
	if action == "" {
		action = BudgetActionWarn
	}
	return &CallBudget{
		limit:        dailyLimit,
		action:       action,
		provider:     provider,
		lastDayReset: truncateToDay(time.Now().UTC()),
		logger:       logger,
	}
}

// WithStore attaches a persistence store and loads today's counter.
func (b *CallBudget) WithStore(ctx context.Context, store BudgetStore) *CallBudget {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.store = store
	if val, err := store.Get(ctx, b.dailyKey(time.Now().UTC())); err == nil {
		b.used = val
		b.logger.Info("Ranking call budget loaded from store",
			zap.String("provider", b.provider),
			zap.Int64("daily_used", b.used),
		)
	} else {
		b.logger.Warn("Failed to load call budget from store", zap.Error(err))
	}
	return b
}

func (b *CallBudget) dailyKey(t time.Time) string {
	return fmt.Sprintf("%sbudget:ranking:%s:daily:%s",
		domain.KeyPrefix, b.provider, t.Format("2006-01-02"))
}

// Check verifies the budget allows a new call. In-memory only (hot path).
func (b *CallBudget) Check(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.resetIfNeeded()

	if b.limit <= 0 || b.used < b.limit {
		return nil
	}

	if b.action == BudgetActionReject {
		return domain.ErrRankingQuotaExceeded
	}

	// action=warn: log but allow the call through
	b.logger.Warn("Ranking call budget exceeded",
		zap.String("provider", b.provider),
		zap.Int64("daily_used", b.used),
		zap.Int64("daily_limit", b.limit),
	)
	return nil
}

// Record registers completed calls. Updates the in-memory counter, then
// write-behind to store (if attached).
func (b *CallBudget) Record(calls int64) {
	b.mu.Lock()
	b.resetIfNeeded()
	b.used += calls
	store := b.store
	key := b.dailyKey(time.Now().UTC())
	b.mu.Unlock()

	if store == nil {
		return
	}

	// Write-behind: fire-and-forget INCRBY so store writes don't block the
	// request path.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := store.IncrBy(ctx, key, calls); err != nil {
		b.logger.Warn("Failed to persist call budget", zap.String("key", key), zap.Error(err))
	}
}

// RemainingDaily returns calls left today (-1 if unlimited).
func (b *CallBudget) RemainingDaily() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.resetIfNeeded()
	if b.limit <= 0 {
		return -1 // unlimited
	}
	remaining := b.limit - b.used
	if remaining < 0 {
		return 0
	}
	return remaining
}

// DailyLimit returns the daily call cap.
func (b *CallBudget) DailyLimit() int64 { return b.limit }

// DailyUsed returns calls made today.
func (b *CallBudget) DailyUsed() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetIfNeeded()
	return b.used
}

// resetIfNeeded zeroes the counter when the day rolls over.
func (b *CallBudget) resetIfNeeded() {
	today := truncateToDay(time.Now().UTC())
	if today.After(b.lastDayReset) {
		b.used = 0
		b.lastDayReset = today
	}
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
