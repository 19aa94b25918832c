package reranker

import (
	"context"
	"math"
)

// CrossEncoder scores a (query, document) pair and returns a raw logit,
// the shape a local cross-encoder model produces. Concrete model loading
// is out of scope for this core; LocalReranker wires whatever CrossEncoder
// implementation the embedding process makes available.
type CrossEncoder interface {
	Score(ctx context.Context, query, document string) (float64, error)
}

// LocalReranker wraps a CrossEncoder, normalizing its raw logits to [0, 1]
// via sigmoid (spec §4.5 "Cross-encoder (local)").
type LocalReranker struct {
	model CrossEncoder
}

// NewLocalReranker constructs a LocalReranker over model.
func NewLocalReranker(model CrossEncoder) *LocalReranker {
	return &LocalReranker{model: model}
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

func (l *LocalReranker) Rerank(ctx context.Context, query string, documents []string, instruction string) ([]float64, error) {
	if len(documents) == 0 {
		return nil, nil
	}
	effectiveQuery := query
	if instruction != "" {
		effectiveQuery = instruction + " " + query
	}

	scores := make([]float64, len(documents))
	for i, doc := range documents {
		logit, err := l.model.Score(ctx, effectiveQuery, doc)
		if err != nil {
			return uniformFallback(len(documents)), nil
		}
		scores[i] = sigmoid(logit)
	}
	return scores, nil
}
