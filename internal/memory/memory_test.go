package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/memlayer/memcore/internal/association"
	"github.com/memlayer/memcore/internal/dedup"
	"github.com/memlayer/memcore/internal/extraction"
	"github.com/memlayer/memcore/internal/ontology"
	"github.com/memlayer/memcore/internal/providers"
	"github.com/memlayer/memcore/internal/storage"
	"github.com/memlayer/memcore/internal/storage/sqlite"
	"github.com/memlayer/memcore/pkg/types"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *sqlite.MemoryStore {
	t.Helper()
	store, err := sqlite.NewMemoryStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestService(t *testing.T, store *sqlite.MemoryStore, llm *providers.LLMRegistry, withExtraction bool) *Service {
	t.Helper()
	assoc := association.New(store, ontology.New(nil, nil))
	dedupSvc := dedup.New(store, dedup.Config{}, nil)
	var extractionSvc *extraction.Service
	if withExtraction {
		extractionSvc = extraction.New(llm, nil)
	}
	return New(Deps{
		Store:       store,
		Embedder:    providers.NewNoopEmbedder(4),
		LLM:         llm,
		Dedup:       dedupSvc,
		Association: assoc,
		Extraction:  extractionSvc,
	}, Config{DecomposeEnabled: true})
}

func rawMemory(workspaceID, content string, embedding []float64) *types.Memory {
	now := time.Now().UTC()
	return &types.Memory{
		ID:             "mem_" + uuid.NewString(),
		WorkspaceID:    workspaceID,
		Content:        content,
		ContentHash:    uuid.NewString(),
		Type:           types.TypeSemantic,
		Status:         types.StatusActive,
		Importance:     0.5,
		Embedding:      embedding,
		CreatedAt:      now,
		UpdatedAt:      now,
		LastAccessedAt: now,
	}
}

func TestRememberCreatesNewMemory(t *testing.T) {
	store := newTestStore(t)
	svc := newTestService(t, store, providers.NewLLMRegistry(&providers.NoopLLM{}), false)

	mem, err := svc.Remember(context.Background(), "ws1", RememberInput{Content: "Python is great"})
	require.NoError(t, err)
	require.NotEmpty(t, mem.ID)

	loaded, err := store.GetMemory(context.Background(), "ws1", mem.ID, false)
	require.NoError(t, err)
	require.Equal(t, "Python is great", loaded.Content)
}

// TestRememberDedupSkipReturnsSameMemory is scenario S1.
func TestRememberDedupSkipReturnsSameMemory(t *testing.T) {
	store := newTestStore(t)
	svc := newTestService(t, store, providers.NewLLMRegistry(&providers.NoopLLM{}), false)
	ctx := context.Background()

	first, err := svc.Remember(ctx, "W", RememberInput{Content: "Python is great"})
	require.NoError(t, err)

	second, err := svc.Remember(ctx, "W", RememberInput{Content: "Python is great"})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	page, err := store.List(ctx, storage.ListOptions{WorkspaceID: "W"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
}

func TestIngestFactReturnsNilOnDedupSkip(t *testing.T) {
	store := newTestStore(t)
	svc := newTestService(t, store, providers.NewLLMRegistry(&providers.NoopLLM{}), false)
	ctx := context.Background()

	_, err := svc.Remember(ctx, "W", RememberInput{Content: "a fact"})
	require.NoError(t, err)

	fact, err := svc.IngestFact(ctx, "W", IngestFactInput{Content: "a fact"}, nil, nil)
	require.NoError(t, err)
	require.Nil(t, fact)
}

func TestResolveMinRelevanceToleranceTable(t *testing.T) {
	require.Equal(t, 0.0, resolveMinRelevance(types.ToleranceLoose, 0.9))
	require.Equal(t, 0.5, resolveMinRelevance(types.ToleranceModerate, 0))
	require.Equal(t, 0.6, resolveMinRelevance(types.ToleranceModerate, 0.6))
	require.Equal(t, 0.8, resolveMinRelevance(types.ToleranceStrict, 0.2))
	require.Equal(t, 0.9, resolveMinRelevance(types.ToleranceStrict, 0.9))
}

// TestApplyRecencyBoostHalfLifeHalvesScore is quantified invariant #7.
func TestApplyRecencyBoostHalfLifeHalvesScore(t *testing.T) {
	now := time.Now()
	mem := rawMemory("W", "x", nil)
	mem.UpdatedAt = now.Add(-168 * time.Hour)
	results := []ScoredResult{{Memory: mem, Score: 0.8}}

	boosted := applyRecencyBoost(results, 168, 1.0, now)
	require.InDelta(t, 0.4, boosted[0].Score, 0.01)
}

func TestApplyRecencyBoostZeroWeightLeavesScoresUnchanged(t *testing.T) {
	now := time.Now()
	mem := rawMemory("W", "x", nil)
	results := []ScoredResult{{Memory: mem, Score: 0.8}}
	boosted := applyRecencyBoost(results, 168, 0, now)
	require.Equal(t, 0.8, boosted[0].Score)
}

// TestRecallRecencyReordersTies is scenario S2.
func TestRecallRecencyReordersTies(t *testing.T) {
	store := newTestStore(t)
	svc := newTestService(t, store, providers.NewLLMRegistry(&providers.NoopLLM{}), false)
	ctx := context.Background()

	embedding := []float64{1, 0, 0, 0}
	m1 := rawMemory("W", "m1", embedding)
	m1.UpdatedAt = time.Now().Add(-14 * 24 * time.Hour)
	m2 := rawMemory("W", "m2", embedding)
	m2.UpdatedAt = time.Now().Add(-1 * time.Hour)
	require.NoError(t, store.CreateMemory(ctx, m1))
	require.NoError(t, store.CreateMemory(ctx, m2))

	svc.cfg.RecencyWeight = 0.3
	svc.cfg.RecencyHalfLifeHours = 168

	resp, err := svc.Recall(ctx, "W", RecallInput{Query: "content", Limit: 10, Tolerance: types.ToleranceLoose})
	require.NoError(t, err)
	require.Len(t, resp.Memories, 2)
	require.Equal(t, m2.ID, resp.Memories[0].Memory.ID)
	require.Greater(t, resp.Memories[0].Score, resp.Memories[1].Score)
}

// TestRecallLimitsResultsRegardlessOfOverfetch is quantified invariant #4.
func TestRecallLimitsResultsRegardlessOfOverfetch(t *testing.T) {
	store := newTestStore(t)
	svc := newTestService(t, store, providers.NewLLMRegistry(&providers.NoopLLM{}), false)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, store.CreateMemory(ctx, rawMemory("W", "content", []float64{1, 0, 0, 0})))
	}

	resp, err := svc.Recall(ctx, "W", RecallInput{Query: "content", Limit: 2, Tolerance: types.ToleranceLoose})
	require.NoError(t, err)
	require.LessOrEqual(t, len(resp.Memories), 2)
}

// TestRecallOnlyReturnsActiveMemories is quantified invariant #5.
func TestRecallOnlyReturnsActiveMemories(t *testing.T) {
	store := newTestStore(t)
	svc := newTestService(t, store, providers.NewLLMRegistry(&providers.NoopLLM{}), false)
	ctx := context.Background()

	active := rawMemory("W", "active memory", []float64{1, 0, 0, 0})
	require.NoError(t, store.CreateMemory(ctx, active))
	archived := rawMemory("W", "archived memory", []float64{1, 0, 0, 0})
	require.NoError(t, store.CreateMemory(ctx, archived))
	archivedStatus := types.StatusArchived
	_, err := store.UpdateMemory(ctx, "W", archived.ID, storage.MemoryUpdate{Status: &archivedStatus})
	require.NoError(t, err)

	resp, err := svc.Recall(ctx, "W", RecallInput{Query: "memory", Limit: 10, Tolerance: types.ToleranceLoose})
	require.NoError(t, err)
	for _, r := range resp.Memories {
		require.Equal(t, types.StatusActive, r.Memory.Status)
	}
	require.Len(t, resp.Memories, 1)
}

// TestExpandGraphDiamondMergesAllNodes is scenario S4.
func TestExpandGraphDiamondMergesAllNodes(t *testing.T) {
	store := newTestStore(t)
	svc := newTestService(t, store, providers.NewLLMRegistry(&providers.NoopLLM{}), false)
	ctx := context.Background()

	a := rawMemory("W", "a", []float64{1, 0, 0, 0})
	b := rawMemory("W", "b", []float64{1, 0, 0, 0})
	c := rawMemory("W", "c", []float64{1, 0, 0, 0})
	d := rawMemory("W", "d", []float64{1, 0, 0, 0})
	for _, m := range []*types.Memory{a, b, c, d} {
		require.NoError(t, store.CreateMemory(ctx, m))
	}
	for _, edge := range [][2]string{{a.ID, b.ID}, {a.ID, c.ID}, {b.ID, d.ID}, {c.ID, d.ID}} {
		_, err := svc.assoc.Associate(ctx, association.Input{WorkspaceID: "W", SourceID: edge[0], TargetID: edge[1], Relationship: "leads_to"})
		require.NoError(t, err)
	}

	results := []ScoredResult{{Memory: a, Score: 1.0}}
	merged := svc.expandGraph(ctx, "W", results, 3)

	ids := map[string]bool{}
	for _, r := range merged {
		ids[r.Memory.ID] = true
	}
	require.True(t, ids[a.ID])
	require.True(t, ids[b.ID])
	require.True(t, ids[c.ID])
	require.True(t, ids[d.ID])
}

// TestHybridFallsBackToLLM is scenario S5.
func TestHybridFallsBackToLLM(t *testing.T) {
	store := newTestStore(t)
	llm := providers.NewLLMRegistry(&providers.NoopLLM{Response: "rewritten query"})
	svc := newTestService(t, store, llm, false)
	ctx := context.Background()

	mem := rawMemory("W", "unrelated content", []float64{0, 1, 0, 0})
	require.NoError(t, store.CreateMemory(ctx, mem))

	resp, err := svc.Recall(ctx, "W", RecallInput{
		Query:        "something else entirely",
		Mode:         types.ModeHybrid,
		Limit:        5,
		Tolerance:    types.ToleranceLoose,
		RAGThreshold: 0.99,
	})
	require.NoError(t, err)
	require.Equal(t, types.ModeLLM, resp.ModeUsed)
	require.NotNil(t, resp.QueryRewritten)
	require.Equal(t, "rewritten query", *resp.QueryRewritten)
}

// TestDecomposeFactsArchivesParentAndCreatesPartOfEdges is scenario S3.
func TestDecomposeFactsArchivesParentAndCreatesPartOfEdges(t *testing.T) {
	store := newTestStore(t)
	llm := providers.NewLLMRegistry(&providers.NoopLLM{
		Response: `[{"content": "Drew likes Python for backend.", "category": "preferences"}, ` +
			`{"content": "He also prefers vim.", "category": "preferences"}]`,
	})
	svc := newTestService(t, store, llm, true)
	ctx := context.Background()

	parent := rawMemory("W", "Drew likes Python for backend. He also prefers vim.", nil)
	require.NoError(t, store.CreateMemory(ctx, parent))

	err := svc.DecomposeFacts(ctx, "W", parent.ID)
	require.NoError(t, err)

	reloaded, err := store.GetMemory(ctx, "W", parent.ID, false)
	require.NoError(t, err)
	require.Equal(t, types.StatusArchived, reloaded.Status)

	page, err := store.List(ctx, storage.ListOptions{WorkspaceID: "W", Limit: 100})
	require.NoError(t, err)
	var factIDs []string
	for _, m := range page.Items {
		if m.SourceMemoryID == parent.ID {
			factIDs = append(factIDs, m.ID)
		}
	}
	require.Len(t, factIDs, 2)

	for _, factID := range factIDs {
		edges, err := store.GetAssociations(ctx, "W", factID, storage.AssociationFilters{Direction: types.DirectionOutgoing})
		require.NoError(t, err)
		require.Len(t, edges, 1)
		require.Equal(t, "part_of", edges[0].Relationship)
		require.Equal(t, parent.ID, edges[0].TargetID)
	}
}
