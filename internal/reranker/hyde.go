package reranker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/memlayer/memcore/internal/providers"
)

// DefaultHyDEMaxTokens and DefaultHyDETemperature match the original
// service's HyDE prompt call parameters.
const (
	DefaultHyDEMaxTokens   = 2048
	DefaultHyDETemperature = 0.7
)

const hydePromptTemplate = `Generate a hypothetical answer to the user's query by using your own knowledge. Assume that you know everything about the said topic. Do not use factual information, instead use placeholders to complete your answer. Your answer should feel like it has been written by a human.

query: %s`

// HyDEReranker implements Hypothetical Document Embeddings reranking: it
// asks the LLM registry (profile "reranker") for a hypothetical answer to
// the query, embeds it, and scores each document by cosine similarity to
// that embedding (spec §4.5).
type HyDEReranker struct {
	llm         *providers.LLMRegistry
	embedder    providers.EmbeddingProvider
	maxTokens   int
	temperature float64
	logger      *slog.Logger
}

// NewHyDEReranker constructs a HyDEReranker. maxTokens/temperature fall
// back to the package defaults when zero.
func NewHyDEReranker(llm *providers.LLMRegistry, embedder providers.EmbeddingProvider, maxTokens int, temperature float64, logger *slog.Logger) *HyDEReranker {
	if maxTokens <= 0 {
		maxTokens = DefaultHyDEMaxTokens
	}
	if temperature <= 0 {
		temperature = DefaultHyDETemperature
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HyDEReranker{llm: llm, embedder: embedder, maxTokens: maxTokens, temperature: temperature, logger: logger}
}

func (h *HyDEReranker) generateHypothetical(ctx context.Context, query, instruction string) (string, error) {
	fullQuery := query
	if instruction != "" {
		fullQuery = instruction + "\n\n" + query
	}
	prompt := fmt.Sprintf(hydePromptTemplate, fullQuery)

	resp, err := h.llm.Complete(ctx, providers.CompletionRequest{
		Prompt:      prompt,
		MaxTokens:   h.maxTokens,
		Temperature: h.temperature,
	}, "reranker")
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (h *HyDEReranker) Rerank(ctx context.Context, query string, documents []string, instruction string) ([]float64, error) {
	if len(documents) == 0 {
		return nil, nil
	}

	hypothetical, err := h.generateHypothetical(ctx, query, instruction)
	if err != nil {
		h.logger.Error("hyde: hypothetical answer generation failed", "error", err)
		return uniformFallback(len(documents)), nil
	}
	h.logger.Debug("hyde: generated hypothetical answer", "chars", len(hypothetical))

	hypEmbedding, err := h.embedder.Embed(ctx, hypothetical)
	if err != nil {
		h.logger.Error("hyde: hypothetical embedding failed", "error", err)
		return uniformFallback(len(documents)), nil
	}

	docEmbeddings, err := h.embedder.EmbedBatch(ctx, documents)
	if err != nil {
		h.logger.Error("hyde: document embedding failed", "error", err)
		return uniformFallback(len(documents)), nil
	}

	scores := make([]float64, len(documents))
	for i, docEmb := range docEmbeddings {
		sim := cosineSimilarity(hypEmbedding, docEmb)
		if sim < 0 {
			sim = 0
		}
		if sim > 1 {
			sim = 1
		}
		scores[i] = sim
	}
	return scores, nil
}
