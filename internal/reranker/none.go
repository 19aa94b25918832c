package reranker

import "context"

// NoneReranker returns a uniform 1.0 score for every document — disabling
// reranking while keeping the Reranker interface satisfied (spec §4.5
// "rerank=none").
type NoneReranker struct{}

func (NoneReranker) Rerank(ctx context.Context, query string, documents []string, instruction string) ([]float64, error) {
	scores := make([]float64, len(documents))
	for i := range scores {
		scores[i] = 1.0
	}
	return scores, nil
}
