package recommend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/doshi-kevin/medrec/internal/domain"
	"github.com/doshi-kevin/medrec/internal/domain/candidate"
	"github.com/doshi-kevin/medrec/internal/domain/medicine"
	"github.com/doshi-kevin/medrec/internal/domain/recommendation"
	"github.com/doshi-kevin/medrec/internal/domain/symptom"
	"github.com/doshi-kevin/medrec/internal/metrics"
)

// Request outcome labels for metrics.
const (
	outcomeCompleted     = "completed"
	outcomeInputRejected = "input_rejected"
	outcomeFailed        = "failed"
)

// Ranking fallback reasons for metrics.
const (
	fallbackDisabled    = "disabled"
	fallbackQuota       = "quota"
	fallbackUnavailable = "unavailable"
)

// Request is one recommendation request. TopK overrides the configured
// final list size when positive.
type Request struct {
	Text string
	TopK int
}

// Service drives a request through the pipeline stages. Normalizing,
// feature building and scoring are mandatory; ranking, safety checks,
// class context and persistence are optional collaborators that degrade
// gracefully when absent or failing. The only hard failures past input
// validation are scoring errors and a caller that went away.
type Service struct {
	normalizer Normalizer
	features   FeatureBuilder
	ensemble   Scorer
	records    RecordReader
	logger     *zap.Logger

	ranker  domain.Ranker
	safety  domain.SafetyChecker
	classes ClassContext
	store   OutcomeStore
}

// New creates the orchestrator with its mandatory collaborators.
func New(
	normalizer Normalizer, features FeatureBuilder, ensemble Scorer,
	records RecordReader, logger *zap.Logger,
) *Service {
	return &Service{
		normalizer: normalizer,
		features:   features,
		ensemble:   ensemble,
		records:    records,
		logger:     logger,
	}
}

// WithRanker sets the ranking service. Without one every request keeps
// the ensemble order.
func (s *Service) WithRanker(r domain.Ranker) *Service {
	s.ranker = r
	return s
}

// WithSafety sets the interaction checker.
func (s *Service) WithSafety(c domain.SafetyChecker) *Service {
	s.safety = c
	return s
}

// WithClassContext sets the therapeutic class neighborhood source.
func (s *Service) WithClassContext(c ClassContext) *Service {
	s.classes = c
	return s
}

// WithStore sets the outcome store. Without one outcomes are not
// persisted and lookups report not found.
func (s *Service) WithStore(store OutcomeStore) *Service {
	s.store = store
	return s
}

// Recommend runs one request through the pipeline and returns the
// completed outcome. A ranking failure is not an error: the outcome keeps
// the ensemble order and reports explanations unavailable. Recognized
// symptoms that match no medicine complete with an empty list.
func (s *Service) Recommend(ctx context.Context, req Request) (recommendation.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return s.failed(domain.StageReceived, err)
	}

	id := uuid.NewString()
	log := s.logger.With(zap.String("request_id", id))
	started := time.Now()
	var trace []recommendation.StageTiming

	stageDone := func(stage domain.Stage, t0 time.Time) {
		d := time.Since(t0)
		trace = append(trace, recommendation.StageTiming{Stage: string(stage), Duration: d})
		metrics.StageDuration.WithLabelValues(string(stage)).Observe(d.Seconds())
	}

	t0 := time.Now()
	set := s.normalizer.Normalize(ctx, req.Text)
	stageDone(domain.StageNormalized, t0)
	if set.IsEmpty() {
		metrics.RecommendationsTotal.WithLabelValues(outcomeInputRejected).Inc()
		log.Info("No recognizable symptoms in input", zap.Int("input_len", len(req.Text)))
		return recommendation.Outcome{}, domain.FailAt(domain.StageNormalized, domain.ErrInputRejected)
	}

	t0 = time.Now()
	vec := s.features.BuildQuery(set)
	stageDone(domain.StageFeaturesBuilt, t0)

	if err := ctx.Err(); err != nil {
		return s.failed(domain.StageScored, err)
	}
	t0 = time.Now()
	preds, modelsUsed, err := s.ensemble.Score(ctx, set, vec, req.TopK)
	stageDone(domain.StageScored, t0)
	if err != nil {
		log.Error("Ensemble scoring failed", zap.Error(err))
		return s.failed(domain.StageScored, err)
	}

	var (
		items     []recommendation.Ranked
		explained bool
	)
	source := recommendation.SourceEnsemble
	if len(preds) == 0 {
		log.Info("No candidates for recognized symptoms", zap.String("symptoms", set.String()))
	} else {
		if err := ctx.Err(); err != nil {
			return s.failed(domain.StageRanked, err)
		}
		t0 = time.Now()
		items, explained, source, err = s.rank(ctx, log, set, preds)
		stageDone(domain.StageRanked, t0)
		if err != nil {
			return s.failed(domain.StageRanked, err)
		}
	}

	total := time.Since(started)
	trace = append(trace, recommendation.StageTiming{Stage: string(domain.StageCompleted), Duration: total})
	metrics.StageDuration.WithLabelValues(string(domain.StageCompleted)).Observe(total.Seconds())

	outcome := recommendation.NewOutcome(
		id, set.Tokens(), items, modelsUsed, explained, source, trace,
	)
	metrics.RecommendationsTotal.WithLabelValues(outcomeCompleted).Inc()
	s.persist(ctx, log, outcome)

	log.Info("Recommendation completed",
		zap.String("symptoms", set.String()),
		zap.Int("items", len(items)),
		zap.String("order_source", string(source)),
		zap.Bool("explanations", explained),
		zap.Duration("duration", total),
	)
	return outcome, nil
}

// rank reorders and annotates the candidates through the ranking service.
// Every service-side failure falls back to the ensemble order; the only
// error returned is an abandoned request context.
func (s *Service) rank(
	ctx context.Context, log *zap.Logger,
	set symptom.Set, preds []candidate.Prediction,
) ([]recommendation.Ranked, bool, recommendation.Source, error) {
	if s.ranker == nil {
		metrics.RankingFallbacksTotal.WithLabelValues(fallbackDisabled).Inc()
		log.Debug("Ranking disabled, keeping ensemble order")
		return s.assemble(preds, nil), false, recommendation.SourceEnsemble, nil
	}

	res, err := s.ranker.Rank(ctx, rankRequestFor(set, preds))
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, recommendation.SourceEnsemble, ctx.Err()
		}
		reason := fallbackUnavailable
		if errors.Is(err, domain.ErrRankingQuotaExceeded) {
			reason = fallbackQuota
		}
		metrics.RankingFallbacksTotal.WithLabelValues(reason).Inc()
		log.Warn("Ranking failed, keeping ensemble order",
			zap.String("reason", reason),
			zap.Error(err),
		)
		return s.assemble(preds, nil), false, recommendation.SourceEnsemble, nil
	}

	ordered, ok := reorder(preds, res.Items)
	if !ok {
		metrics.RankingFallbacksTotal.WithLabelValues(fallbackUnavailable).Inc()
		log.Warn("Ranking response is not a permutation of the candidates, keeping ensemble order",
			zap.Int("candidates", len(preds)),
			zap.Int("returned", len(res.Items)),
		)
		return s.assemble(preds, nil), false, recommendation.SourceEnsemble, nil
	}
	return s.assemble(ordered, res.Items), true, recommendation.SourceRankingService, nil
}

// assemble builds the final list from ordered predictions. annotations,
// when present, is aligned with preds; nil means no explanations.
func (s *Service) assemble(preds []candidate.Prediction, annotations []domain.RankedItem) []recommendation.Ranked {
	items := make([]recommendation.Ranked, 0, len(preds))
	for i, p := range preds {
		explanation := ""
		var contraindications []string
		if annotations != nil {
			explanation = annotations[i].Explanation
			contraindications = annotations[i].Contraindications
		}
		var related []string
		if s.classes != nil {
			related = s.classes.Related(p.Medicine().TherapeuticClass())
		}
		items = append(items, recommendation.NewRanked(i+1, p, explanation, contraindications, related))
	}
	return items
}

// reorder arranges preds into the order of items. Reports false unless
// items is an exact permutation of the prediction ids.
func reorder(preds []candidate.Prediction, items []domain.RankedItem) ([]candidate.Prediction, bool) {
	if len(items) != len(preds) {
		return nil, false
	}
	byID := make(map[string]candidate.Prediction, len(preds))
	for _, p := range preds {
		byID[p.Medicine().ID()] = p
	}
	ordered := make([]candidate.Prediction, 0, len(items))
	for _, it := range items {
		p, ok := byID[it.ID]
		if !ok {
			return nil, false
		}
		delete(byID, it.ID)
		ordered = append(ordered, p)
	}
	return ordered, true
}

// persist saves a completed outcome. Persistence failures are logged and
// swallowed; the caller already has the result.
func (s *Service) persist(ctx context.Context, log *zap.Logger, o recommendation.Outcome) {
	if s.store == nil {
		return
	}
	if err := s.store.Save(ctx, o); err != nil {
		log.Warn("Failed to persist outcome", zap.Error(err))
	}
}

func (s *Service) failed(stage domain.Stage, err error) (recommendation.Outcome, error) {
	metrics.RecommendationsTotal.WithLabelValues(outcomeFailed).Inc()
	return recommendation.Outcome{}, domain.FailAt(stage, err)
}

// CheckInteractions verifies a patient profile against candidate
// medicines. A missing or failing checker degrades to SafetyUnknown; an
// unknown candidate id or an empty request is the caller's error.
func (s *Service) CheckInteractions(
	ctx context.Context, profile domain.PatientProfile, candidateIDs []string,
) (domain.SafetyReport, error) {
	if profile.IsEmpty() && len(candidateIDs) == 0 {
		return domain.SafetyReport{}, fmt.Errorf("%w: empty interaction profile", domain.ErrInputRejected)
	}

	items := make([]domain.RankItem, 0, len(candidateIDs))
	for _, id := range candidateIDs {
		rec, err := s.records.Get(id)
		if err != nil {
			return domain.SafetyReport{}, fmt.Errorf("resolve candidate %s: %w", id, err)
		}
		items = append(items, rankItemFor(rec, 0))
	}

	if s.safety == nil {
		return domain.SafetyReport{Status: domain.SafetyUnknown}, nil
	}
	report, err := s.safety.CheckSafety(ctx, profile, items)
	if err != nil {
		if ctx.Err() != nil {
			return domain.SafetyReport{}, ctx.Err()
		}
		s.logger.Warn("Safety check failed, reporting unknown", zap.Error(err))
		return domain.SafetyReport{Status: domain.SafetyUnknown}, nil
	}
	return report, nil
}

// Get returns a persisted outcome by request id.
func (s *Service) Get(ctx context.Context, id string) (recommendation.Outcome, error) {
	if s.store == nil {
		return recommendation.Outcome{}, fmt.Errorf("%w: %s", domain.ErrRecommendationNotFound, id)
	}
	return s.store.Get(ctx, id)
}

// Recent returns the most recently persisted outcomes, newest first.
func (s *Service) Recent(ctx context.Context, limit int) ([]recommendation.Outcome, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.ListRecent(ctx, limit)
}

func rankRequestFor(set symptom.Set, preds []candidate.Prediction) domain.RankRequest {
	items := make([]domain.RankItem, 0, len(preds))
	for _, p := range preds {
		items = append(items, rankItemFor(p.Medicine(), p.Confidence()))
	}
	return domain.RankRequest{Symptoms: set.Tokens(), Items: items}
}

func rankItemFor(rec medicine.Record, confidence float64) domain.RankItem {
	return domain.RankItem{
		ID:               rec.ID(),
		Name:             rec.Name(),
		TherapeuticClass: rec.TherapeuticClass(),
		Uses:             rec.Uses(),
		SideEffects:      rec.SideEffects(),
		Confidence:       confidence,
	}
}
