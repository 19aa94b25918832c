// Package contradiction checks a newly stored memory against its nearest
// neighbors for conflicting claims and wires a "contradicts" edge when the
// LLM registry judges two memories incompatible (spec §4.4 step 3).
package contradiction

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/memlayer/memcore/internal/association"
	"github.com/memlayer/memcore/internal/providers"
	"github.com/memlayer/memcore/internal/storage"
	"github.com/memlayer/memcore/pkg/types"
)

const (
	contradictionProfile   = "contradiction"
	defaultNeighborCount   = 5
	defaultConfidenceFloor = 0.6
)

var contradictionPrompt = `Compare the following two memory statements. Answer whether they directly ` +
	`contradict each other (cannot both be true at the same time). Return ONLY a JSON object of the form ` +
	`{"contradicts": true|false, "confidence": 0.0-1.0}.

Statement A: %s

Statement B: %s`

// Config tunes neighbor scan size and the confidence floor an LLM verdict
// must clear before an edge is created.
type Config struct {
	NeighborCount   int
	ConfidenceFloor float64
}

func (c Config) withDefaults() Config {
	if c.NeighborCount <= 0 {
		c.NeighborCount = defaultNeighborCount
	}
	if c.ConfidenceFloor <= 0 {
		c.ConfidenceFloor = defaultConfidenceFloor
	}
	return c
}

// Service checks a memory against its nearest neighbors for contradictions.
type Service struct {
	llm    *providers.LLMRegistry
	store  storage.Backend
	assoc  *association.Service
	cfg    Config
	logger *slog.Logger
}

// New constructs a contradiction Service.
func New(llm *providers.LLMRegistry, store storage.Backend, assoc *association.Service, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{llm: llm, store: store, assoc: assoc, cfg: cfg.withDefaults(), logger: logger}
}

type verdict struct {
	Contradicts bool    `json:"contradicts"`
	Confidence  float64 `json:"confidence"`
}

// Check scans memory's nearest neighbors (via its own embedding) and
// creates a "contradicts" edge for every neighbor the LLM judges
// incompatible above the configured confidence floor. It never returns an
// error for an individual neighbor's check failing; those are logged and
// skipped so one bad comparison doesn't block the others.
func (s *Service) Check(ctx context.Context, workspaceID string, memory *types.Memory) error {
	if s.llm == nil || len(memory.Embedding) == 0 {
		return nil
	}

	neighbors, err := s.store.SearchMemories(ctx, workspaceID, storage.SearchOptions{
		QueryEmbedding: memory.Embedding,
		Limit:          s.cfg.NeighborCount + 1,
	})
	if err != nil {
		return fmt.Errorf("contradiction: neighbor search failed: %w", err)
	}

	for _, n := range neighbors {
		if n.Memory.ID == memory.ID {
			continue
		}

		v, err := s.compare(ctx, memory.Content, n.Memory.Content)
		if err != nil {
			s.logger.Warn("contradiction: comparison failed, skipping", "memory_id", memory.ID, "neighbor_id", n.Memory.ID, "error", err)
			continue
		}
		if !v.Contradicts || v.Confidence < s.cfg.ConfidenceFloor {
			continue
		}

		_, err = s.assoc.Associate(ctx, association.Input{
			WorkspaceID:  workspaceID,
			SourceID:     memory.ID,
			TargetID:     n.Memory.ID,
			Relationship: "contradicts",
			Strength:     v.Confidence,
		})
		if err != nil && err != storage.ErrUniqueConstraint {
			s.logger.Warn("contradiction: edge creation failed", "memory_id", memory.ID, "neighbor_id", n.Memory.ID, "error", err)
		}
	}
	return nil
}

func (s *Service) compare(ctx context.Context, a, b string) (verdict, error) {
	resp, err := s.llm.Complete(ctx, providers.CompletionRequest{
		Prompt: fmt.Sprintf(contradictionPrompt, a, b),
	}, contradictionProfile)
	if err != nil {
		return verdict{}, err
	}

	var v verdict
	clean := strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(resp.Content, "```json", ""), "```", ""))
	if err := json.Unmarshal([]byte(clean), &v); err != nil {
		return verdict{}, fmt.Errorf("contradiction: unparseable verdict: %w", err)
	}
	return v, nil
}
