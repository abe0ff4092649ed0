package ranking

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/doshi-kevin/medrec/internal/domain"
	"github.com/doshi-kevin/medrec/internal/metrics"
)

// InstrumentedRanker wraps a Ranker with budget enforcement and logging.
// Transport metrics (requests, duration, tokens) are recorded in the
// provider transports. This layer owns budget tracking and budget-related
// metrics only.
type InstrumentedRanker struct {
	inner    domain.Ranker
	safety   domain.SafetyChecker
	provider string
	budget   BudgetChecker
	logger   *zap.Logger
}

// NewInstrumentedRanker wraps a ranker with budget and observability. The
// safety checker may be nil when the inner ranker does not support it.
func NewInstrumentedRanker(
	inner domain.Ranker, safety domain.SafetyChecker,
	provider string, budget BudgetChecker, logger *zap.Logger,
) *InstrumentedRanker {
	return &InstrumentedRanker{
		inner:    inner,
		safety:   safety,
		provider: provider,
		budget:   budget,
		logger:   logger,
	}
}

// Rank checks the budget, delegates, and records the call when the inner
// ranker actually reached the provider.
func (r *InstrumentedRanker) Rank(
	ctx context.Context, req domain.RankRequest,
) (domain.RankResult, error) {
	if err := r.checkBudget(ctx, len(req.Items)); err != nil {
		return domain.RankResult{}, err
	}

	start := time.Now()
	result, err := r.inner.Rank(ctx, req)
	duration := time.Since(start)

	if err != nil {
		r.logger.Warn("Ranking failed",
			zap.String("provider", r.provider),
			zap.Int("candidates", len(req.Items)),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.RankResult{}, err
	}

	// Cache-served results never reached the provider; only real provider
	// calls count against the daily budget.
	if !result.FromCache {
		r.recordCall()
	}

	r.logger.Debug("Ranking completed",
		zap.String("provider", r.provider),
		zap.Int("candidates", len(req.Items)),
		zap.Bool("cached", result.FromCache),
		zap.Duration("duration", duration),
	)

	return result, nil
}

// CheckSafety checks the budget, delegates, and records the consumed call.
func (r *InstrumentedRanker) CheckSafety(
	ctx context.Context, profile domain.PatientProfile, items []domain.RankItem,
) (domain.SafetyReport, error) {
	if r.safety == nil {
		return domain.SafetyReport{}, fmt.Errorf(
			"%w: provider %s has no safety check", domain.ErrRankingUnavailable, r.provider)
	}
	if err := r.checkBudget(ctx, len(items)); err != nil {
		return domain.SafetyReport{}, err
	}

	start := time.Now()
	report, err := r.safety.CheckSafety(ctx, profile, items)
	duration := time.Since(start)

	if err != nil {
		r.logger.Warn("Safety check failed",
			zap.String("provider", r.provider),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.SafetyReport{}, err
	}

	r.recordCall()

	r.logger.Debug("Safety check completed",
		zap.String("provider", r.provider),
		zap.String("status", string(report.Status)),
		zap.Duration("duration", duration),
	)

	return report, nil
}

func (r *InstrumentedRanker) checkBudget(ctx context.Context, candidates int) error {
	if r.budget == nil {
		return nil
	}
	if err := r.budget.Check(ctx); err != nil {
		r.logger.Warn("Ranking call budget exhausted",
			zap.String("provider", r.provider),
			zap.Int("candidates", candidates),
			zap.Error(err),
		)
		return fmt.Errorf("budget check: %w", err)
	}
	return nil
}

func (r *InstrumentedRanker) recordCall() {
	if r.budget == nil {
		return
	}
	r.budget.Record(1)
	metrics.RankingBudgetCallsRemaining.
		WithLabelValues(r.provider).
		Set(float64(r.budget.RemainingDaily()))
}
