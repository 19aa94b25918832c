package providers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNoopEmbedderDeterministic(t *testing.T) {
	e := NewNoopEmbedder(4)
	ctx := context.Background()
	a, err := e.Embed(ctx, "hello world")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "hello world")
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.Len(t, a, 4)

	c, err := e.Embed(ctx, "something else")
	require.NoError(t, err)
	require.NotEqual(t, a, c)
}

func TestNoopEmbedderDefaultDimension(t *testing.T) {
	e := NewNoopEmbedder(0)
	require.Equal(t, 8, e.Dimension())
}

func TestNoopRerankerPreservesOrderByDescendingScore(t *testing.T) {
	scores, err := NoopReranker{}.Rerank(context.Background(), "q", []string{"a", "b", "c"}, "")
	require.NoError(t, err)
	require.Len(t, scores, 3)
	require.True(t, scores[0] > scores[1])
	require.True(t, scores[1] > scores[2])
}

func TestLLMRegistryFallsBackToDefault(t *testing.T) {
	def := &NoopLLM{Response: "default-response"}
	reg := NewLLMRegistry(def)

	resp, err := reg.Complete(context.Background(), CompletionRequest{Prompt: "hi"}, "unmapped-profile")
	require.NoError(t, err)
	require.Equal(t, "default-response", resp.Content)
}

func TestLLMRegistryUsesRegisteredProfile(t *testing.T) {
	def := &NoopLLM{Response: "default-response"}
	recall := &NoopLLM{Response: "recall-response"}
	reg := NewLLMRegistry(def)
	reg.Register("recall", recall)

	resp, err := reg.Complete(context.Background(), CompletionRequest{Prompt: "hi"}, "recall")
	require.NoError(t, err)
	require.Equal(t, "recall-response", resp.Content)
}

func TestLLMRegistryResolvesTemperature(t *testing.T) {
	def := &NoopLLM{}
	reg := NewLLMRegistry(def)

	resp, err := reg.Complete(context.Background(), CompletionRequest{Prompt: "plain"}, "default")
	require.NoError(t, err)
	require.Equal(t, "plain", resp.Content)

	require.Equal(t, 0.3, resolveTemperature(CompletionRequest{Temperature: 0.3}, def.DefaultTemperature()).Temperature)
	require.InDelta(t, 0.35, resolveTemperature(CompletionRequest{TemperatureFactor: 0.5}, def.DefaultTemperature()).Temperature, 1e-9)
	require.Equal(t, 0.7, resolveTemperature(CompletionRequest{}, def.DefaultTemperature()).Temperature)
}

func TestOntologyCompleterAdaptsRegistry(t *testing.T) {
	def := &NoopLLM{Response: "causes"}
	reg := NewLLMRegistry(def)
	adapter := OntologyCompleter{Registry: reg}

	result, err := adapter.Complete(context.Background(), "ontology", "classify this")
	require.NoError(t, err)
	require.Equal(t, "causes", result)
}

type flakyProvider struct {
	calls     int
	failUntil int
}

func (f *flakyProvider) DefaultTemperature() float64 { return 0.5 }

func (f *flakyProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	f.calls++
	if f.calls <= f.failUntil {
		return CompletionResponse{}, errors.New("boom")
	}
	return CompletionResponse{Content: "ok", FinishReason: FinishStop}, nil
}

func (f *flakyProvider) CompleteStream(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error) {
	return nil, errors.New("not implemented")
}

func TestGuardTripsOpenAfterConsecutiveFailures(t *testing.T) {
	g := NewGuardWithConfig(GuardConfig{
		Name:        "test",
		MaxFailures: 2,
		OpenTimeout: 50 * time.Millisecond,
		CallTimeout: time.Second,
	})

	call := func() (interface{}, error) {
		return g.Call(context.Background(), func(ctx context.Context) (interface{}, error) {
			return nil, errors.New("boom")
		})
	}

	_, err := call()
	require.Error(t, err)
	_, err = call()
	require.Error(t, err)

	require.Equal(t, "open", g.State())

	_, err = call()
	require.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestGuardNormalizesDeadlineExceeded(t *testing.T) {
	g := NewGuardWithConfig(GuardConfig{
		Name:        "timeout-test",
		MaxFailures: 10,
		OpenTimeout: time.Second,
		CallTimeout: 10 * time.Millisecond,
	})

	_, err := g.Call(context.Background(), func(ctx context.Context) (interface{}, error) {
		select {
		case <-time.After(100 * time.Millisecond):
			return "too slow", nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	require.ErrorIs(t, err, ErrProviderTimeout)
}

func TestGuardClosedStateOnSuccess(t *testing.T) {
	g := NewGuard("healthy")
	result, err := g.Call(context.Background(), func(ctx context.Context) (interface{}, error) {
		return "fine", nil
	})
	require.NoError(t, err)
	require.Equal(t, "fine", result)
	require.Equal(t, "closed", g.State())
}
