package providers

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
)

// NoopEmbedder is a deterministic embedding provider with no external
// dependency: each dimension is derived by hashing the text with a
// dimension-specific salt, so identical text always yields an identical
// vector and distinct texts yield (with overwhelming probability) distinct
// vectors, without calling out to a real model. Useful for tests and for
// running the core with no embedding provider configured.
type NoopEmbedder struct {
	dim int
}

// NewNoopEmbedder builds a NoopEmbedder producing vectors of the given
// dimension. dim defaults to 8 when zero or negative.
func NewNoopEmbedder(dim int) *NoopEmbedder {
	if dim <= 0 {
		dim = 8
	}
	return &NoopEmbedder{dim: dim}
}

func (n *NoopEmbedder) Dimension() int { return n.dim }

func (n *NoopEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	vec := make([]float64, n.dim)
	for i := 0; i < n.dim; i++ {
		h := sha256.Sum256([]byte{byte(i)})
		h2 := sha256.Sum256(append(h[:], text...))
		bits := binary.BigEndian.Uint64(h2[:8])
		vec[i] = (float64(bits%1000000) / 1000000.0) - 0.5
	}
	return vec, nil
}

func (n *NoopEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, t := range texts {
		v, err := n.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// NoopLLM is a deterministic LLMProvider that echoes a fixed response
// without calling any external service. Used as the fallback "default"
// profile when no real provider is configured.
type NoopLLM struct {
	Response string
}

func (n *NoopLLM) DefaultTemperature() float64 { return 0.7 }

func (n *NoopLLM) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	content := n.Response
	if content == "" {
		content = req.Prompt
	}
	return CompletionResponse{Content: content, Tokens: len(content), FinishReason: FinishStop}, nil
}

func (n *NoopLLM) CompleteStream(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error) {
	ch := make(chan StreamChunk, 1)
	resp, _ := n.Complete(ctx, req)
	ch <- StreamChunk{Content: resp.Content, IsFinal: true, FinishReason: resp.FinishReason}
	close(ch)
	return ch, nil
}

// NoopReranker returns documents' scores unchanged in input order, each
// scored by position so the original ranking is preserved when no reranker
// is configured (spec §4.5 "rerank=none is a no-op").
type NoopReranker struct{}

func (NoopReranker) Rerank(ctx context.Context, query string, documents []string, instruction string) ([]float64, error) {
	scores := make([]float64, len(documents))
	n := len(documents)
	for i := range documents {
		if n <= 1 {
			scores[i] = 1.0
			continue
		}
		scores[i] = 1.0 - float64(i)/float64(n-1)
	}
	return scores, nil
}
