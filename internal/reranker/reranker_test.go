package reranker

import (
	"context"
	"errors"
	"testing"

	"github.com/memlayer/memcore/internal/providers"
	"github.com/stretchr/testify/require"
)

func TestNoneRerankerReturnsUniformOne(t *testing.T) {
	scores, err := NoneReranker{}.Rerank(context.Background(), "q", []string{"a", "b", "c"}, "")
	require.NoError(t, err)
	require.Equal(t, []float64{1.0, 1.0, 1.0}, scores)
}

func TestAdaptiveSizingBaselineCase(t *testing.T) {
	a := DefaultAdaptiveSizing()
	// requested=5 -> base 15, meanTopScore high enough, no growth
	n := a.CandidateCount(5, 0.9, 100)
	require.Equal(t, 15, n)
}

func TestAdaptiveSizingGrowsOnWeakScore(t *testing.T) {
	a := DefaultAdaptiveSizing()
	n := a.CandidateCount(5, 0.0, 100)
	// base=15, ratio=0, growth=1+1*(1-0)=2 -> 30
	require.Equal(t, 30, n)
}

func TestAdaptiveSizingCapsAtMaxAndAvailable(t *testing.T) {
	a := DefaultAdaptiveSizing()
	n := a.CandidateCount(50, 0.0, 1000)
	require.Equal(t, a.MaxCandidates, n)

	n2 := a.CandidateCount(5, 0.9, 3)
	require.Equal(t, 3, n2)
}

func TestMeanTopScore(t *testing.T) {
	require.Equal(t, 0.0, MeanTopScore(nil, 5))
	require.InDelta(t, 0.6, MeanTopScore([]float64{0.8, 0.4}, 5), 0.0001)
	require.InDelta(t, 0.8, MeanTopScore([]float64{0.8, 0.4}, 1), 0.0001)
}

func TestDecomposeQuerySplitsSentencesAndKeywords(t *testing.T) {
	sub := decomposeQuery("The cat sat. The dog ran!", "", DefaultMinQueries)
	require.Contains(t, sub, "The cat sat. The dog ran!")
	require.Contains(t, sub, "The cat sat.")
	require.Contains(t, sub, "The dog ran!")
	require.Contains(t, sub, "cat sat dog ran")
}

func TestDecomposeQueryDeduplicatesCaseInsensitively(t *testing.T) {
	sub := decomposeQuery("hello", "", DefaultMinQueries)
	seen := make(map[string]bool)
	for _, s := range sub {
		require.False(t, seen[s])
		seen[s] = true
	}
}

func TestComputeRRFScoresNormalizedToUnitRange(t *testing.T) {
	rankings := [][]int{{0, 1, 2}, {1, 0, 2}}
	scores := computeRRFScores(rankings, 3, 60)
	require.Len(t, scores, 3)
	for _, s := range scores {
		require.GreaterOrEqual(t, s, 0.0)
		require.LessOrEqual(t, s, 1.0001)
	}
	// doc 0 and doc 1 both ranked first once, second once; doc 2 always last
	require.Greater(t, scores[0], scores[2])
	require.Greater(t, scores[1], scores[2])
}

func TestComputeRRFScoresEmptyInput(t *testing.T) {
	require.Nil(t, computeRRFScores(nil, 3, 60))
	require.Nil(t, computeRRFScores([][]int{{0}}, 0, 60))
}

type stubEmbedder struct {
	vectors map[string][]float64
	err     error
}

func (s *stubEmbedder) Dimension() int { return 2 }

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	return []float64{0, 0}, nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		v, _ := s.Embed(ctx, t)
		out[i] = v
	}
	return out, nil
}

func TestRRFRerankerRanksBySimilarity(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float64{
		"cats":     {1, 0},
		"dogs":     {0, 1},
		"felines":  {1, 0},
		"canines":  {0, 1},
	}}
	r := NewRRFReranker(embedder, 0, 0, nil)
	scores, err := r.Rerank(context.Background(), "cats", []string{"felines", "canines"}, "")
	require.NoError(t, err)
	require.Len(t, scores, 2)
	require.Greater(t, scores[0], scores[1])
}

func TestRRFRerankerFallsBackOnEmbeddingError(t *testing.T) {
	embedder := &stubEmbedder{err: errors.New("boom")}
	r := NewRRFReranker(embedder, 0, 0, nil)
	scores, err := r.Rerank(context.Background(), "q", []string{"a", "b"}, "")
	require.NoError(t, err)
	require.Equal(t, []float64{0.5, 0.5}, scores)
}

func TestHyDERerankerScoresBySimilarityToHypothetical(t *testing.T) {
	llm := providers.NewLLMRegistry(&providers.NoopLLM{Response: "hypothetical answer"})
	embedder := &stubEmbedder{vectors: map[string][]float64{
		"hypothetical answer": {1, 0},
		"matching doc":         {1, 0},
		"unrelated doc":        {0, 1},
	}}
	h := NewHyDEReranker(llm, embedder, 0, 0, nil)
	scores, err := h.Rerank(context.Background(), "query", []string{"matching doc", "unrelated doc"}, "")
	require.NoError(t, err)
	require.InDelta(t, 1.0, scores[0], 0.001)
	require.InDelta(t, 0.0, scores[1], 0.001)
}

func TestHyDERerankerFallsBackOnEmbeddingError(t *testing.T) {
	llm := providers.NewLLMRegistry(&providers.NoopLLM{Response: "x"})
	embedder := &stubEmbedder{err: errors.New("boom")}
	h := NewHyDEReranker(llm, embedder, 0, 0, nil)
	scores, err := h.Rerank(context.Background(), "q", []string{"a", "b", "c"}, "")
	require.NoError(t, err)
	require.Equal(t, []float64{0.5, 0.5, 0.5}, scores)
}

type stubCrossEncoder struct {
	scores map[string]float64
}

func (s *stubCrossEncoder) Score(ctx context.Context, query, document string) (float64, error) {
	return s.scores[document], nil
}

func TestLocalRerankerAppliesSigmoid(t *testing.T) {
	model := &stubCrossEncoder{scores: map[string]float64{"a": 10, "b": -10}}
	l := NewLocalReranker(model)
	scores, err := l.Rerank(context.Background(), "q", []string{"a", "b"}, "")
	require.NoError(t, err)
	require.Greater(t, scores[0], 0.9)
	require.Less(t, scores[1], 0.1)
}
