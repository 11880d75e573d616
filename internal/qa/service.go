// Package qa combines retrieval and answer synthesis into the
// question-answering service consumed by the front-end.
package qa

import (
	"context"

	"go.uber.org/zap"

	"docqa/internal/domain"
	"docqa/internal/retriever"
)

type Service struct {
	retriever    *retriever.Retriever
	synthesizer  domain.Summarizer
	maxSentences int
	logger       *zap.Logger
}

func New(r *retriever.Retriever, synth domain.Summarizer, maxSentences int, logger *zap.Logger) *Service {
	if maxSentences <= 0 {
		maxSentences = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{retriever: r, synthesizer: synth, maxSentences: maxSentences, logger: logger}
}

// Ask retrieves supporting chunks for the question and synthesizes an answer
// from them. No chunks means no answer; synthesis failures degrade to an
// empty answer with the chunks still returned.
func (s *Service) Ask(question string, topK int) (string, []domain.SearchResult) {
	results := s.retriever.Retrieve(context.Background(), question, topK, nil)
	if len(results) == 0 {
		return "", nil
	}
	answer, err := s.synthesizer.Synthesize(results, s.maxSentences)
	if err != nil {
		s.logger.Error("answer synthesis failed", zap.Error(err))
		return "", results
	}
	return answer, results
}
