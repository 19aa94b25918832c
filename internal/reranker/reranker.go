// Package reranker scores a candidate pool of documents against a query
// (spec §4.5). Three strategies are provided — a local cross-encoder
// stand-in, HyDE, and RRF — plus adaptive candidate-pool sizing shared by
// the recall pipeline.
package reranker

import "context"

// Strategy is the set of reranker kinds spec §4.5 names.
type Strategy string

const (
	StrategyNone  Strategy = "none"
	StrategyLocal Strategy = "local"
	StrategyHyDE  Strategy = "hyde"
	StrategyRRF   Strategy = "rrf"
)

// Reranker scores documents against a query, preserving input order in its
// returned slice.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string, instruction string) ([]float64, error)
}

// AdaptiveSizing implements spec §4.5's "adaptive candidate sizing": the
// candidate pool may grow beyond the naive requested*overfetch size when
// the pool's current quality signal is weak.
type AdaptiveSizing struct {
	MinCandidates    int
	MaxCandidates    int
	QualityThreshold float64
	Expansion        float64
}

// DefaultAdaptiveSizing matches spec §4.5's stated defaults.
func DefaultAdaptiveSizing() AdaptiveSizing {
	return AdaptiveSizing{
		MinCandidates:    10,
		MaxCandidates:    50,
		QualityThreshold: 0.7,
		Expansion:        1.0,
	}
}

// CandidateCount computes the effective candidate-pool size given the
// requested result count, the available candidate count, and the mean of
// the top-requested initial similarity scores.
//
//	candidates = max(requested*3, MinCandidates)
//	if meanTopScore < QualityThreshold:
//	    candidates = candidates * (1 + Expansion*(1-meanTopScore/QualityThreshold))
//	capped at MaxCandidates, capped at available.
func (a AdaptiveSizing) CandidateCount(requested int, meanTopScore float64, available int) int {
	if a.MinCandidates <= 0 {
		a = DefaultAdaptiveSizing()
	}
	base := requested * 3
	if base < a.MinCandidates {
		base = a.MinCandidates
	}
	if meanTopScore < a.QualityThreshold && a.QualityThreshold > 0 {
		ratio := meanTopScore / a.QualityThreshold
		growth := 1 + a.Expansion*(1-ratio)
		base = int(float64(base) * growth)
	}
	if base > a.MaxCandidates {
		base = a.MaxCandidates
	}
	if base > available {
		base = available
	}
	return base
}

// MeanTopScore returns the mean of the first min(k, len(scores)) scores.
func MeanTopScore(scores []float64, k int) float64 {
	if len(scores) == 0 {
		return 0
	}
	if k > len(scores) {
		k = len(scores)
	}
	if k <= 0 {
		return 0
	}
	var sum float64
	for _, s := range scores[:k] {
		sum += s
	}
	return sum / float64(k)
}

// uniformFallback is returned by every strategy when it fails, preserving
// the candidate pool's original ordering by leaving every score equal
// (spec §4.5 "fall back to uniform 0.5 scores").
func uniformFallback(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 0.5
	}
	return out
}
