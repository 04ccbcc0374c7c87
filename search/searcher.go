// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package search

import (
	"context"
	"log/slog"

	"github.com/poiesic/frontdesk/ai"
	"github.com/poiesic/frontdesk/core"
	"github.com/poiesic/frontdesk/storage"
)

// Searcher runs similarity searches over the answer index and hydrates the
// hits with answer text and the query each answer was originally given for.
type Searcher struct {
	answers  storage.AnswerStore
	index    storage.VectorIndex
	embedder ai.Embedder
	logger   *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(
	answers storage.AnswerStore,
	index storage.VectorIndex,
	embedder ai.Embedder,
	opts ...Option,
) (*Searcher, error) {
	if answers == nil {
		return nil, ErrAnswerStoreRequired
	}
	if index == nil {
		return nil, ErrVectorIndexRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	s := &Searcher{
		answers:  answers,
		index:    index,
		embedder: embedder,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// FindSimilar embeds text and returns up to topK answers ranked by similarity.
func (s *Searcher) FindSimilar(ctx context.Context, text string, topK int) ([]core.MatchResult, error) {
	return s.FindSimilarWithMonitor(ctx, text, topK, nil)
}

// FindSimilarWithMonitor is FindSimilar with callbacks at each stage.
func (s *Searcher) FindSimilarWithMonitor(ctx context.Context, text string, topK int, monitor SearchMonitor) ([]core.MatchResult, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	monitor.Start(text)

	embedding, err := s.embedder.EmbedText(ctx, text)
	if err != nil {
		s.logger.Error("error generating embedding for query", "query", text, "err", err)
		return nil, err
	}
	monitor.AfterEmbedding(embedding)

	return s.search(ctx, embedding, topK, monitor)
}

// FindSimilarVector returns up to topK answers ranked by similarity to a
// caller-supplied embedding.
func (s *Searcher) FindSimilarVector(ctx context.Context, embedding []float32, topK int) ([]core.MatchResult, error) {
	return s.search(ctx, embedding, topK, &noopMonitor{})
}

func (s *Searcher) search(ctx context.Context, embedding []float32, topK int, monitor SearchMonitor) ([]core.MatchResult, error) {
	matches, err := s.index.Search(embedding, topK)
	if err != nil {
		return nil, err
	}
	monitor.AfterIndexSearch(matches)

	if len(matches) == 0 {
		results := []core.MatchResult{}
		monitor.Finish(results)
		return results, nil
	}

	ids := make([]core.ID, len(matches))
	for i, m := range matches {
		ids[i] = m.AnswerID
	}
	answers, err := s.answers.GetAnswers(ctx, ids...)
	if err != nil {
		s.logger.Error("error retrieving answers", "answerCount", len(ids), "err", err)
		return nil, err
	}
	monitor.AfterAnswerRetrieval(answers)

	byID := make(map[core.ID]*core.Answer, len(answers))
	for _, a := range answers {
		byID[a.Id] = a
	}

	// Index order is the ranking; keep it.
	results := make([]core.MatchResult, 0, len(matches))
	for _, m := range matches {
		answer, ok := byID[m.AnswerID]
		if !ok {
			// A search may race the removal of an orphaned answer.
			s.logger.Debug("index entry without stored answer", "answerID", m.AnswerID)
			continue
		}
		results = append(results, core.MatchResult{
			AnswerID:  answer.Id,
			QueryID:   answer.QueryID,
			Score:     m.Score,
			Text:      answer.Text,
			CreatedAt: answer.CreatedAt,
		})
	}
	monitor.Finish(results)

	return results, nil
}
