package tiering

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/memlayer/memcore/internal/providers"
	"github.com/memlayer/memcore/internal/storage/sqlite"
	"github.com/memlayer/memcore/pkg/types"
	"github.com/stretchr/testify/require"
)

type failingLLM struct{}

func (failingLLM) DefaultTemperature() float64 { return 0.7 }
func (failingLLM) Complete(ctx context.Context, req providers.CompletionRequest) (providers.CompletionResponse, error) {
	return providers.CompletionResponse{}, errors.New("llm unavailable")
}
func (failingLLM) CompleteStream(ctx context.Context, req providers.CompletionRequest) (<-chan providers.StreamChunk, error) {
	return nil, errors.New("llm unavailable")
}

func TestGenerateOverviewFallsBackToTruncation(t *testing.T) {
	reg := providers.NewLLMRegistry(failingLLM{})
	svc := New(reg, nil, nil)

	content := strings.Repeat("x", 600)
	overview := svc.GenerateOverview(context.Background(), content, 0)
	require.True(t, strings.HasSuffix(overview, "..."))
	require.Equal(t, overviewFallbackLength+len("..."), len(overview))
}

func TestGenerateAbstractFallsBackToTruncation(t *testing.T) {
	reg := providers.NewLLMRegistry(failingLLM{})
	svc := New(reg, nil, nil)

	content := strings.Repeat("y", 200)
	abstract := svc.GenerateAbstract(context.Background(), content, 0)
	require.True(t, strings.HasSuffix(abstract, "..."))
	require.Equal(t, abstractFallbackLength+len("..."), len(abstract))
}

func TestGenerateOverviewShortContentNoTruncation(t *testing.T) {
	reg := providers.NewLLMRegistry(failingLLM{})
	svc := New(reg, nil, nil)

	content := "short"
	require.Equal(t, content, svc.GenerateOverview(context.Background(), content, 0))
}

func TestGenerateTiersSkipsWhenAlreadyPresent(t *testing.T) {
	store, err := sqlite.NewMemoryStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	mem := &types.Memory{
		ID:          uuid.NewString(),
		WorkspaceID: "ws1",
		Content:     "full content here",
		ContentHash: "hash1",
		Type:        types.TypeSemantic,
		Status:      types.StatusActive,
		Abstract:    "existing abstract",
		Overview:    "existing overview",
	}
	require.NoError(t, store.CreateMemory(context.Background(), mem))

	reg := providers.NewLLMRegistry(&providers.NoopLLM{Response: "should not be called"})
	svc := New(reg, store, nil)

	err = svc.GenerateTiers(context.Background(), "ws1", mem.ID, false)
	require.NoError(t, err)

	reloaded, err := store.GetMemory(context.Background(), "ws1", mem.ID, false)
	require.NoError(t, err)
	require.Equal(t, "existing abstract", reloaded.Abstract)
	require.Equal(t, "existing overview", reloaded.Overview)
}

func TestGenerateTiersGeneratesAndPersists(t *testing.T) {
	store, err := sqlite.NewMemoryStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	mem := &types.Memory{
		ID:          uuid.NewString(),
		WorkspaceID: "ws1",
		Content:     "full content here",
		ContentHash: "hash2",
		Type:        types.TypeSemantic,
		Status:      types.StatusActive,
	}
	require.NoError(t, store.CreateMemory(context.Background(), mem))

	reg := providers.NewLLMRegistry(&providers.NoopLLM{Response: "generated text"})
	svc := New(reg, store, nil)

	err = svc.GenerateTiers(context.Background(), "ws1", mem.ID, false)
	require.NoError(t, err)

	reloaded, err := store.GetMemory(context.Background(), "ws1", mem.ID, false)
	require.NoError(t, err)
	require.Equal(t, "generated text", reloaded.Abstract)
	require.Equal(t, "generated text", reloaded.Overview)
}
