// Package providers defines the external-boundary interfaces the core
// depends on (spec §6.1): embeddings, a named-profile LLM registry, and a
// reranker. Concrete provider SDKs are out of scope — this package ships
// only deterministic noop implementations, plus the circuit-breaker and
// timeout wiring every real provider call must go through (spec §5, §7).
package providers

import (
	"context"
	"errors"
	"time"
)

// ErrProviderTimeout is returned when a provider call exceeds its deadline
// (spec §7 ProviderTimeout).
var ErrProviderTimeout = errors.New("providers: call exceeded deadline")

// ErrProviderUnavailable is returned when the circuit breaker is open or the
// provider is otherwise unreachable (spec §7 ProviderUnavailable).
var ErrProviderUnavailable = errors.New("providers: unavailable")

// DefaultCallTimeout bounds every provider call issued through Guard when
// the caller's context carries no earlier deadline (spec §5 "deadline for
// every provider call").
const DefaultCallTimeout = 10 * time.Second

// EmbeddingProvider embeds text into fixed-length float vectors (spec
// §6.1). Vector dimensionality is fixed per workspace configuration; the
// provider itself makes no ordering or deduplication guarantees.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
	Dimension() int
}

// FinishReason is the normalized completion-stop reason (spec §6.1).
type FinishReason string

const (
	FinishStop          FinishReason = "stop"
	FinishLength        FinishReason = "length"
	FinishContentFilter FinishReason = "content_filter"
)

// CompletionRequest is a single LLM completion call.
type CompletionRequest struct {
	Prompt            string
	MaxTokens         int
	Temperature       float64
	TemperatureFactor float64 // used when Temperature is unset (spec §6.1 resolution order)
}

// CompletionResponse is the normalized result of a completion call.
type CompletionResponse struct {
	Content      string
	Tokens       int
	FinishReason FinishReason
}

// StreamChunk is one piece of a streamed completion.
type StreamChunk struct {
	Content      string
	IsFinal      bool
	FinishReason FinishReason
}

// LLMProvider is a single backing LLM the registry dispatches profiles to.
type LLMProvider interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
	CompleteStream(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error)
	DefaultTemperature() float64
}

// RerankerProvider scores documents against a query, in input order, each
// score in [0, 1] (spec §6.1).
type RerankerProvider interface {
	Rerank(ctx context.Context, query string, documents []string, instruction string) ([]float64, error)
}
