package ensemble

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/doshi-kevin/medrec/internal/domain"
	"github.com/doshi-kevin/medrec/internal/domain/candidate"
	"github.com/doshi-kevin/medrec/internal/domain/feature"
	"github.com/doshi-kevin/medrec/internal/domain/symptom"
)

// Service runs the model ensemble: it selects a candidate pool for the
// query symptoms, scores the pool with every usable model, and combines
// the scores into an ordered candidate list. Models that fail at scoring
// time are skipped; only a schema mismatch or a total loss of models is a
// hard error.
type Service struct {
	models   []domain.Model
	weights  map[string]float64
	matches  MatchCounter
	records  RecordReader
	poolSize int
	topK     int
	logger   *zap.Logger
}

// New creates the ensemble service. weights maps model names to their
// manifest weights; models missing from the map weigh 1.
func New(
	models []domain.Model, weights map[string]float64,
	matches MatchCounter, records RecordReader,
	poolSize, topK int, logger *zap.Logger,
) *Service {
	return &Service{
		models:   models,
		weights:  weights,
		matches:  matches,
		records:  records,
		poolSize: poolSize,
		topK:     topK,
		logger:   logger,
	}
}

// DefaultTopK returns the configured final list size.
func (s *Service) DefaultTopK() int { return s.topK }

// PoolSize returns the configured candidate pool cap.
func (s *Service) PoolSize() int { return s.poolSize }

// ModelNames returns the names of all configured models, loaded or not.
func (s *Service) ModelNames() []string {
	names := make([]string, 0, len(s.models))
	for _, m := range s.models {
		names = append(names, m.Name())
	}
	return names
}

// ReadyModels returns the names of models that report ready.
func (s *Service) ReadyModels() []string {
	var names []string
	for _, m := range s.models {
		if m.Ready() {
			names = append(names, m.Name())
		}
	}
	return names
}

// SelectPool returns the candidate pool for a symptom set: medicines whose
// indications mention at least one query symptom, ordered by descending
// match count then ascending id, capped at the pool size.
func (s *Service) SelectPool(set symptom.Set) []string {
	counts := s.matches.MatchCounts(set.Tokens())
	if len(counts) == 0 {
		return nil
	}

	type match struct {
		id    string
		count int
	}
	pool := make([]match, 0, len(counts))
	for id, n := range counts {
		pool = append(pool, match{id: id, count: n})
	}
	sort.Slice(pool, func(i, j int) bool {
		if pool[i].count != pool[j].count {
			return pool[i].count > pool[j].count
		}
		return pool[i].id < pool[j].id
	})

	if s.poolSize > 0 && len(pool) > s.poolSize {
		pool = pool[:s.poolSize]
	}

	ids := make([]string, len(pool))
	for i, m := range pool {
		ids[i] = m.id
	}
	return ids
}

// Score builds the ordered candidate list for a symptom set and its query
// vector. topK overrides the configured list size when positive; it is
// bounded by the pool size. The returned names are the models that
// actually contributed scores.
func (s *Service) Score(
	ctx context.Context, set symptom.Set, vec feature.Vector, topK int,
) ([]candidate.Prediction, []string, error) {
	ids := s.SelectPool(set)
	if len(ids) == 0 {
		s.logger.Info("No medicines match the query symptoms",
			zap.String("symptoms", set.String()),
		)
		return nil, nil, nil
	}

	query := domain.ModelQuery{
		SymptomTokens: set.Tokens(),
		QueryVector:   vec.Values(),
		SchemaVersion: vec.SchemaVersion(),
		CandidateIDs:  ids,
	}

	perModel := make(map[string]map[string]float64, len(s.models))
	var used []string
	for _, m := range s.models {
		if !m.Ready() {
			s.logger.Warn("Model not ready, skipping", zap.String("model", m.Name()))
			continue
		}
		scores, err := m.Score(ctx, query)
		if err != nil {
			if errors.Is(err, domain.ErrSchemaMismatch) {
				return nil, nil, fmt.Errorf("model %s: %w", m.Name(), err)
			}
			s.logger.Warn("Model failed to score, skipping",
				zap.String("model", m.Name()),
				zap.Error(err),
			)
			continue
		}
		perModel[m.Name()] = scores
		used = append(used, m.Name())
	}

	if len(used) == 0 {
		return nil, nil, domain.ErrModelUnavailable
	}

	merged := combineScores(ids, perModel, s.weights)

	limit := s.topK
	if topK > 0 {
		limit = topK
	}
	if s.poolSize > 0 && limit > s.poolSize {
		limit = s.poolSize
	}
	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}

	preds := make([]candidate.Prediction, 0, len(merged))
	for _, c := range merged {
		rec, err := s.records.Get(c.id)
		if err != nil {
			return nil, nil, fmt.Errorf("hydrate candidate %s: %w", c.id, err)
		}
		pred, err := candidate.New(rec, c.confidence, c.perModel)
		if err != nil {
			return nil, nil, fmt.Errorf("build prediction %s: %w", c.id, err)
		}
		preds = append(preds, pred)
	}

	s.logger.Debug("Ensemble scored",
		zap.Int("pool", len(ids)),
		zap.Int("returned", len(preds)),
		zap.Strings("models_used", used),
	)

	return preds, used, nil
}
