// Package dedup decides, for each candidate memory, whether it should be
// skipped as an exact duplicate, merged into an existing memory, flagged as
// a merge candidate, or created fresh (spec §4.2).
package dedup

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/memlayer/memcore/internal/storage"
	"github.com/memlayer/memcore/pkg/types"
)

// DefaultDuplicateThreshold is the similarity at or above which a candidate
// is treated as updating an existing memory rather than creating a new one.
const DefaultDuplicateThreshold = 0.95

// DefaultMergeThreshold is the similarity at or above which a candidate is
// surfaced as a merge candidate.
const DefaultMergeThreshold = 0.85

// probeLimit is the top-k size of the similarity probe (spec §4.2: "k=5").
const probeLimit = 5

// Result is the outcome of a duplicate check.
type Result struct {
	Action           types.DedupAction
	ExistingMemoryID string
	SimilarityScore  float64
	Reason           string
}

// Service decides the deduplication action for an incoming candidate.
type Service struct {
	store               storage.Backend
	duplicateThreshold  float64
	mergeThreshold      float64
	logger              *slog.Logger
}

// Config holds the two tunable thresholds.
type Config struct {
	DuplicateThreshold float64
	MergeThreshold     float64
}

// New constructs a Service. Zero-valued threshold fields fall back to the
// package defaults.
func New(store storage.Backend, cfg Config, logger *slog.Logger) *Service {
	if cfg.DuplicateThreshold <= 0 {
		cfg.DuplicateThreshold = DefaultDuplicateThreshold
	}
	if cfg.MergeThreshold <= 0 {
		cfg.MergeThreshold = DefaultMergeThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, duplicateThreshold: cfg.DuplicateThreshold, mergeThreshold: cfg.MergeThreshold, logger: logger}
}

// CheckDuplicate implements the three-step probe from spec §4.2: exact
// content_hash match (SKIP), then a workspace-scoped top-5 similarity probe
// against embedding, dispatching on the best match's score.
func (s *Service) CheckDuplicate(ctx context.Context, workspaceID, contentHash string, embedding []float64) (Result, error) {
	existing, err := s.store.GetMemoryByHash(ctx, workspaceID, contentHash)
	if err != nil && err != storage.ErrNotFound {
		return Result{}, fmt.Errorf("dedup: hash lookup failed: %w", err)
	}
	if existing != nil {
		s.logger.Debug("dedup: exact content duplicate", "memory_id", existing.ID)
		return Result{
			Action:           types.DedupSkip,
			ExistingMemoryID: existing.ID,
			SimilarityScore:  1.0,
			Reason:           "Exact content duplicate",
		}, nil
	}

	if len(embedding) == 0 {
		return Result{Action: types.DedupCreate, Reason: "New unique memory"}, nil
	}

	matches, err := s.store.SearchMemories(ctx, workspaceID, storage.SearchOptions{
		QueryEmbedding: embedding,
		Limit:          probeLimit,
		MinRelevance:   s.mergeThreshold,
	})
	if err != nil {
		return Result{}, fmt.Errorf("dedup: similarity probe failed: %w", err)
	}

	if len(matches) == 0 {
		return Result{Action: types.DedupCreate, Reason: "New unique memory"}, nil
	}

	top := matches[0]
	switch {
	case top.Similarity >= s.duplicateThreshold:
		s.logger.Debug("dedup: semantic duplicate", "memory_id", top.Memory.ID, "similarity", top.Similarity)
		return Result{
			Action:           types.DedupUpdate,
			ExistingMemoryID: top.Memory.ID,
			SimilarityScore:  top.Similarity,
			Reason:           fmt.Sprintf("Semantic duplicate (similarity: %.3f)", top.Similarity),
		}, nil
	case top.Similarity >= s.mergeThreshold:
		s.logger.Debug("dedup: merge candidate", "memory_id", top.Memory.ID, "similarity", top.Similarity)
		return Result{
			Action:           types.DedupMerge,
			ExistingMemoryID: top.Memory.ID,
			SimilarityScore:  top.Similarity,
			Reason:           fmt.Sprintf("Potential merge candidate (similarity: %.3f)", top.Similarity),
		}, nil
	default:
		return Result{Action: types.DedupCreate, Reason: "New unique memory"}, nil
	}
}
