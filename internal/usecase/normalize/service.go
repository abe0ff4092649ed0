package normalize

import (
	"context"

	"go.uber.org/zap"

	"github.com/doshi-kevin/medrec/internal/domain/symptom"
)

// Service maps free-text patient input onto the canonical symptom
// vocabulary. Words that resolve to no canonical token are dropped
// silently; an input with nothing recognizable yields an empty set and the
// caller decides what that means.
type Service struct {
	vocab  symptom.Vocabulary
	logger *zap.Logger
}

// New creates a normalizer over the given vocabulary.
func New(vocab symptom.Vocabulary, logger *zap.Logger) *Service {
	return &Service{vocab: vocab, logger: logger}
}

// Normalize extracts canonical symptoms from raw text. Output order is
// first mention in the input, duplicates removed.
func (s *Service) Normalize(_ context.Context, text string) symptom.Set {
	words := symptom.Words(text)
	set := symptom.NewSet(symptom.Extract(s.vocab, text))

	s.logger.Debug("Symptoms normalized",
		zap.Int("input_words", len(words)),
		zap.Int("recognized", set.Len()),
		zap.String("symptoms", set.String()),
	)

	return set
}

// Vocabulary returns the vocabulary the normalizer matches against.
func (s *Service) Vocabulary() symptom.Vocabulary { return s.vocab }
