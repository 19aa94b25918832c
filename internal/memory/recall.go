package memory

import (
	"context"
	"sort"
	"time"

	"github.com/memlayer/memcore/internal/association"
	"github.com/memlayer/memcore/internal/decay"
	"github.com/memlayer/memcore/internal/providers"
	"github.com/memlayer/memcore/internal/storage"
	"github.com/memlayer/memcore/pkg/types"
)

const recallProfile = "recall"

const rewriteSystemPrompt = "Rewrite the user's query into a clear, standalone search query suitable for " +
	"semantic retrieval, using the conversation context to resolve pronouns and references. " +
	"Return ONLY the rewritten query, nothing else.\n\n"

// RecallInput is the caller-supplied shape for Recall (spec §4.5).
type RecallInput struct {
	Query               string
	Mode                types.RecallMode
	Tolerance           types.Tolerance
	Limit               int
	MinRelevance        float64
	Types               []types.MemoryType
	Subtypes            []string
	Tags                []string
	CreatedAfter        time.Time
	CreatedBefore       time.Time
	IncludeAssociations bool
	TraverseDepth       int
	IncludeGlobal       bool
	RAGThreshold        float64 // hybrid mode only
	Context             []string
}

// ScoredResult pairs a memory with its final adjusted recall score.
type ScoredResult struct {
	Memory *types.Memory
	Score  float64
}

// RecallResponse is the response shape spec §4.5 names.
type RecallResponse struct {
	Memories        []ScoredResult
	TotalCount      int
	ModeUsed        types.RecallMode
	QueryRewritten  *string
	SearchLatencyMs int64
	QueryTokens     int
}

// resolveMinRelevance implements the tolerance table (spec §4.5). A
// non-positive caller value is treated as "not supplied" — 0.0 is
// indistinguishable from the loose floor itself, so this package has no
// separate unset sentinel for this field.
func resolveMinRelevance(tolerance types.Tolerance, callerValue float64) float64 {
	switch tolerance {
	case types.ToleranceStrict:
		if callerValue > 0.8 {
			return callerValue
		}
		return 0.8
	case types.ToleranceLoose:
		return 0.0
	default: // moderate, or unset
		if callerValue > 0 {
			return callerValue
		}
		return 0.5
	}
}

// Recall implements recall(workspace_id, input) (spec §4.5).
func (s *Service) Recall(ctx context.Context, workspaceID string, input RecallInput) (RecallResponse, error) {
	start := time.Now()
	limit := input.Limit
	if limit <= 0 {
		limit = 10
	}

	mode := input.Mode
	if mode == "" {
		mode = types.ModeRAG
	}

	var resp RecallResponse
	var err error

	switch mode {
	case types.ModeLLM:
		resp, err = s.recallLLM(ctx, workspaceID, input, limit)
	case types.ModeHybrid:
		resp, err = s.recallHybrid(ctx, workspaceID, input, limit)
	default:
		resp, err = s.recallRAG(ctx, workspaceID, input, limit, s.cfg.OverfetchMultiplier, "")
	}
	if err != nil {
		return RecallResponse{}, err
	}

	resp.SearchLatencyMs = time.Since(start).Milliseconds()
	resp.QueryTokens = estimateTokens(input.Query)
	s.trackAccess(ctx, workspaceID, resp.Memories)
	return resp, nil
}

// estimateTokens approximates token count at ~4 characters per token,
// the same heuristic the teacher's internal/llm chunker uses for English
// text with GPT-style tokenizers.
func estimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// recallRAG embeds the query, over-fetches from storage, reranks, applies
// the recency boost, expands through the association graph, and trims to
// limit (spec §4.5 "rag" mode). queryOverride, when non-empty, replaces
// input.Query for embedding/rerank purposes without mutating input (used
// by llm-mode after query rewrite).
func (s *Service) recallRAG(ctx context.Context, workspaceID string, input RecallInput, limit, overfetchMultiplier int, queryOverride string) (RecallResponse, error) {
	query := input.Query
	if queryOverride != "" {
		query = queryOverride
	}

	var queryEmbedding []float64
	if s.embedder != nil {
		vec, err := s.embedder.Embed(ctx, query)
		if err != nil {
			s.logger.Warn("memory: query embedding failed", "error", err)
		} else {
			queryEmbedding = vec
		}
	}

	effectiveLimit := limit * overfetchMultiplier
	minRelevance := resolveMinRelevance(input.Tolerance, input.MinRelevance)

	filters := storage.MemoryFilters{
		Types:         input.Types,
		Subtypes:      input.Subtypes,
		Tags:          input.Tags,
		CreatedAfter:  input.CreatedAfter,
		CreatedBefore: input.CreatedBefore,
		IncludeGlobal: input.IncludeGlobal,
	}

	candidates, err := s.store.SearchMemories(ctx, workspaceID, storage.SearchOptions{
		QueryEmbedding: queryEmbedding,
		Limit:          effectiveLimit,
		MinRelevance:   minRelevance,
		Filters:        filters,
	})
	if err != nil {
		return RecallResponse{}, err
	}

	if s.reranker != nil {
		if adaptive := adaptiveCandidateLimit(limit, candidates); adaptive > len(candidates) {
			expanded, err := s.store.SearchMemories(ctx, workspaceID, storage.SearchOptions{
				QueryEmbedding: queryEmbedding,
				Limit:          adaptive,
				MinRelevance:   minRelevance,
				Filters:        filters,
			})
			if err == nil {
				candidates = expanded
			}
		}
	}

	scored := s.rerankCandidates(ctx, query, candidates)
	scored = applyRecencyBoost(scored, s.cfg.RecencyHalfLifeHours, s.cfg.RecencyWeight, time.Now())

	if input.IncludeAssociations {
		scored = s.expandGraph(ctx, workspaceID, scored, input.TraverseDepth)
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > limit {
		scored = scored[:limit]
	}

	return RecallResponse{
		Memories:   scored,
		TotalCount: len(scored),
		ModeUsed:   types.ModeRAG,
	}, nil
}

// recallLLM rewrites the query via the LLM registry's "recall" profile,
// then runs the rag path on the rewritten query (spec §4.5 "llm" mode).
func (s *Service) recallLLM(ctx context.Context, workspaceID string, input RecallInput, limit int) (RecallResponse, error) {
	rewritten := input.Query
	if s.llm != nil {
		resp, err := s.llm.Complete(ctx, providers.CompletionRequest{
			Prompt: rewriteQueryPrompt(input.Query, input.Context),
		}, recallProfile)
		if err != nil {
			s.logger.Warn("memory: query rewrite failed, using original query", "error", err)
		} else {
			rewritten = resp.Content
		}
	}

	result, err := s.recallRAG(ctx, workspaceID, input, limit, s.cfg.OverfetchMultiplier, rewritten)
	if err != nil {
		return RecallResponse{}, err
	}
	result.ModeUsed = types.ModeLLM
	result.QueryRewritten = &rewritten
	return result, nil
}

// recallHybrid runs rag with a reduced over-fetch first; if the mean score
// of the top-limit results clears rag_threshold, those results are
// returned as-is; otherwise it falls back to llm mode (spec §4.5 "hybrid").
func (s *Service) recallHybrid(ctx context.Context, workspaceID string, input RecallInput, limit int) (RecallResponse, error) {
	ragResult, err := s.recallRAG(ctx, workspaceID, input, limit, s.cfg.HybridOverfetchMultiplier, "")
	if err != nil {
		return RecallResponse{}, err
	}

	threshold := input.RAGThreshold
	if threshold <= 0 {
		threshold = s.cfg.HybridRAGThreshold
	}

	if meanScore(ragResult.Memories) >= threshold {
		return ragResult, nil
	}

	return s.recallLLM(ctx, workspaceID, input, limit)
}

// rewriteQueryPrompt builds the llm-mode query-rewrite prompt from the
// caller's chat context (spec §4.5 "llm" mode).
func rewriteQueryPrompt(query string, context []string) string {
	prompt := rewriteSystemPrompt
	if len(context) > 0 {
		prompt += "Conversation so far:\n"
		for _, line := range context {
			prompt += "- " + line + "\n"
		}
		prompt += "\n"
	}
	return prompt + "Query: " + query
}

func meanScore(results []ScoredResult) float64 {
	if len(results) == 0 {
		return 0
	}
	var sum float64
	for _, r := range results {
		sum += r.Score
	}
	return sum / float64(len(results))
}

// expandGraph implements spec §4.5 "Graph expansion": for every top
// result, walk the association graph up to traverseDepth hops (defaults:
// depth 1, outgoing, strength >= 0.3) and merge reached neighbors into the
// result set with a score equal to the source's score multiplied by the
// average edge strength along the path.
func (s *Service) expandGraph(ctx context.Context, workspaceID string, results []ScoredResult, traverseDepth int) []ScoredResult {
	if s.assoc == nil {
		return results
	}
	depth := traverseDepth
	if depth <= 0 {
		depth = s.cfg.GraphExpansionDepth
	}
	minStrength := s.cfg.GraphExpansionStrength

	byID := make(map[string]int, len(results))
	for i, r := range results {
		byID[r.Memory.ID] = i
	}

	merged := append([]ScoredResult{}, results...)
	for _, r := range results {
		traversal, err := s.assoc.Traverse(ctx, workspaceID, r.Memory.ID, association.TraverseOptions{
			MaxDepth:    depth,
			Direction:   types.DirectionOutgoing,
			MinStrength: &minStrength,
		})
		if err != nil {
			s.logger.Warn("memory: graph expansion traversal failed", "memory_id", r.Memory.ID, "error", err)
			continue
		}
		for _, path := range traversal.Paths {
			lastStep := path.Steps[len(path.Steps)-1]
			neighborID := lastStep.Node
			if idx, ok := byID[neighborID]; ok {
				_ = idx
				continue // already present; don't duplicate or downgrade its score
			}
			neighbor, err := s.store.GetMemory(ctx, workspaceID, neighborID, false)
			if err != nil {
				continue
			}
			score := r.Score * averageEdgeStrength(path.Steps)
			merged = append(merged, ScoredResult{Memory: neighbor, Score: score})
			byID[neighborID] = len(merged) - 1
		}
	}
	return merged
}

func averageEdgeStrength(steps []association.Step) float64 {
	if len(steps) == 0 {
		return 1.0
	}
	var sum float64
	for _, step := range steps {
		sum += step.Edge.Strength
	}
	return sum / float64(len(steps))
}

// trackAccess increments access_count/last_accessed_at and applies the
// access-boost to importance for every memory returned from recall (spec
// §4.5 "Access tracking"), skipped for pinned memories.
func (s *Service) trackAccess(ctx context.Context, workspaceID string, results []ScoredResult) {
	for _, r := range results {
		if _, err := s.store.GetMemory(ctx, workspaceID, r.Memory.ID, true); err != nil {
			s.logger.Warn("memory: access tracking failed", "memory_id", r.Memory.ID, "error", err)
			continue
		}
		if r.Memory.Pinned {
			continue
		}
		boosted := decay.AccessBoost(r.Memory, decay.Config{}.WithDefaults())
		if _, err := s.store.UpdateMemory(ctx, workspaceID, r.Memory.ID, storage.MemoryUpdate{Importance: &boosted}); err != nil {
			s.logger.Warn("memory: access-boost write failed", "memory_id", r.Memory.ID, "error", err)
		}
	}
}
