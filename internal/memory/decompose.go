package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/memlayer/memcore/internal/association"
	"github.com/memlayer/memcore/internal/storage"
	"github.com/memlayer/memcore/pkg/types"
)

// DecomposeFacts implements the fact decomposition task handler (spec
// §4.8) for {memory_id, workspace_id}. It is registered with the task
// scheduler under "decompose_facts" and also called inline by Remember
// when no scheduler is wired or scheduling fails.
func (s *Service) DecomposeFacts(ctx context.Context, workspaceID, memoryID string) error {
	parent, err := s.store.GetMemory(ctx, workspaceID, memoryID, false)
	if err == storage.ErrNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("memory: loading parent memory failed: %w", err)
	}
	if parent.Status == types.StatusArchived {
		return nil
	}
	if s.extraction == nil {
		return nil
	}

	facts, err := s.extraction.DecomposeToFacts(ctx, parent.Content)
	if err != nil {
		return fmt.Errorf("memory: fact decomposition failed: %w", err)
	}

	if len(facts) <= 1 && (len(facts) == 0 || strings.TrimSpace(facts[0]) == strings.TrimSpace(parent.Content)) {
		s.logger.Debug("memory: content is atomic, skipping decomposition", "memory_id", memoryID)
		return nil
	}

	for _, fact := range facts {
		factMemory, err := s.IngestFact(ctx, workspaceID, IngestFactInput{Content: fact}, &parent.ID, nil)
		if err != nil {
			s.logger.Warn("memory: ingesting decomposed fact failed", "memory_id", memoryID, "error", err)
			continue
		}
		if factMemory == nil {
			continue // dedup SKIP: caller omits graph-wiring for skipped facts (spec §4.3)
		}
		_, err = s.assoc.Associate(ctx, association.Input{
			WorkspaceID:  workspaceID,
			SourceID:     factMemory.ID,
			TargetID:     parent.ID,
			Relationship: "part_of",
			Strength:     1.0,
		})
		if err != nil && err != storage.ErrUniqueConstraint {
			s.logger.Warn("memory: part_of association failed", "fact_id", factMemory.ID, "parent_id", parent.ID, "error", err)
		}
	}

	archived := types.StatusArchived
	if _, err := s.store.UpdateMemory(ctx, workspaceID, parent.ID, storage.MemoryUpdate{Status: &archived}); err != nil {
		return fmt.Errorf("memory: archiving decomposed parent failed: %w", err)
	}
	return nil
}
