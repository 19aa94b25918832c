package providers

import (
	"context"
	"fmt"
	"sync"
)

// LLMRegistry resolves a named profile ("default", "recall", "reranker",
// "tier_generation", "extraction", "ontology", ...) to a backing
// LLMProvider, falling back to "default" when a profile has no explicit
// mapping (spec §6.1). Each resolved provider call runs through its own
// Guard so one profile's outage doesn't trip another's breaker.
type LLMRegistry struct {
	mu       sync.RWMutex
	profiles map[string]LLMProvider
	guards   map[string]*Guard
	fallback LLMProvider
}

// NewLLMRegistry builds a registry whose "default" profile backs every
// unmapped profile name.
func NewLLMRegistry(defaultProvider LLMProvider) *LLMRegistry {
	r := &LLMRegistry{
		profiles: make(map[string]LLMProvider),
		guards:   make(map[string]*Guard),
		fallback: defaultProvider,
	}
	r.Register("default", defaultProvider)
	return r
}

// Register maps a profile name to a provider.
func (r *LLMRegistry) Register(profile string, provider LLMProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[profile] = provider
	r.guards[profile] = NewGuard("llm:" + profile)
}

func (r *LLMRegistry) resolve(profile string) (LLMProvider, *Guard) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.profiles[profile]; ok {
		return p, r.guards[profile]
	}
	return r.fallback, r.guards["default"]
}

// Complete resolves profile (falling back to "default") and issues the
// completion through that profile's circuit breaker with a bounded
// deadline.
func (r *LLMRegistry) Complete(ctx context.Context, req CompletionRequest, profile string) (CompletionResponse, error) {
	provider, guard := r.resolve(profile)
	if provider == nil {
		return CompletionResponse{}, fmt.Errorf("providers: no provider registered for profile %q or default", profile)
	}
	req = resolveTemperature(req, provider.DefaultTemperature())

	result, err := guard.Call(ctx, func(ctx context.Context) (interface{}, error) {
		return provider.Complete(ctx, req)
	})
	if err != nil {
		return CompletionResponse{}, err
	}
	return result.(CompletionResponse), nil
}

// CompleteStream resolves profile and returns a streamed completion.
func (r *LLMRegistry) CompleteStream(ctx context.Context, req CompletionRequest, profile string) (<-chan StreamChunk, error) {
	provider, _ := r.resolve(profile)
	if provider == nil {
		return nil, fmt.Errorf("providers: no provider registered for profile %q or default", profile)
	}
	req = resolveTemperature(req, provider.DefaultTemperature())
	return provider.CompleteStream(ctx, req)
}

// OntologyCompleter adapts the registry to internal/ontology.Completer's
// Complete(ctx, profile, prompt string) (string, error) signature, a thin
// single-string wrapper over the full CompletionRequest shape.
type OntologyCompleter struct {
	Registry *LLMRegistry
}

func (c OntologyCompleter) Complete(ctx context.Context, profile, prompt string) (string, error) {
	resp, err := c.Registry.Complete(ctx, CompletionRequest{Prompt: prompt}, profile)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// resolveTemperature applies the spec §6.1 resolution order: explicit
// request value -> temperature_factor * provider default -> provider
// default.
func resolveTemperature(req CompletionRequest, providerDefault float64) CompletionRequest {
	if req.Temperature != 0 {
		return req
	}
	if req.TemperatureFactor != 0 {
		req.Temperature = req.TemperatureFactor * providerDefault
		return req
	}
	req.Temperature = providerDefault
	return req
}
