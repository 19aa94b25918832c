package memory

import (
	"context"

	"github.com/memlayer/memcore/internal/reranker"
	"github.com/memlayer/memcore/internal/storage"
)

// candidateExpansionLimit is the search call's ceiling for spec §4.5's
// adaptive candidate-pool expansion: MaxCandidates caps it regardless.
const candidateExpansionLimit = 50

// rerankCandidates scores candidates[].Memory.Content against query
// through the configured reranker, falling back to the candidate's
// original similarity when no reranker is wired.
func (s *Service) rerankCandidates(ctx context.Context, query string, candidates []storage.ScoredMemory) []ScoredResult {
	results := make([]ScoredResult, len(candidates))
	if s.reranker == nil || len(candidates) == 0 {
		for i, c := range candidates {
			results[i] = ScoredResult{Memory: c.Memory, Score: c.Similarity}
		}
		return results
	}

	documents := make([]string, len(candidates))
	for i, c := range candidates {
		documents[i] = c.Memory.Content
	}

	scores, err := s.reranker.Rerank(ctx, query, documents, "")
	if err != nil || len(scores) != len(candidates) {
		s.logger.Warn("memory: rerank failed, falling back to uniform scores", "error", err)
		for i, c := range candidates {
			results[i] = ScoredResult{Memory: c.Memory, Score: 0.5}
		}
		return results
	}

	for i, c := range candidates {
		results[i] = ScoredResult{Memory: c.Memory, Score: scores[i]}
	}
	return results
}

// adaptiveCandidateLimit grows effectiveLimit when the initial pool's
// top-k similarity is weak (spec §4.5 "Adaptive candidate sizing").
// storage.SearchMemories reports no total matching-document count, so
// candidateExpansionLimit stands in for the available count alongside the
// MaxCandidates ceiling; the follow-up search returns fewer rows when fewer
// match.
func adaptiveCandidateLimit(requested int, candidates []storage.ScoredMemory) int {
	if len(candidates) == 0 {
		return requested
	}
	similarities := make([]float64, len(candidates))
	for i, c := range candidates {
		similarities[i] = c.Similarity
	}
	meanTop := reranker.MeanTopScore(similarities, requested)
	sizing := reranker.DefaultAdaptiveSizing()
	sizing.MaxCandidates = candidateExpansionLimit
	return sizing.CandidateCount(requested, meanTop, candidateExpansionLimit)
}
