package memory

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/memlayer/memcore/internal/association"
	"github.com/memlayer/memcore/internal/extraction"
	"github.com/memlayer/memcore/internal/storage"
	"github.com/memlayer/memcore/pkg/types"
)

// postStorePipeline runs the three post-store steps (spec §4.4). Each step
// catches and logs its own errors without aborting the others, so the
// errgroup here is used purely for concurrency, never for error
// propagation: every step function always returns nil.
func (s *Service) postStorePipeline(ctx context.Context, workspaceID string, memory *types.Memory, embedding []float64, inline, classifyType bool) {
	group, gctx := errgroup.WithContext(ctx)
	_ = gctx // each step uses the parent ctx directly; a failing step must not cancel its siblings

	group.Go(func() error {
		s.dispatchOrRun(inline, "auto_enrich", memory.ID, workspaceID, func() {
			s.autoAssociate(ctx, workspaceID, memory, embedding, classifyType)
		})
		return nil
	})

	group.Go(func() error {
		s.dispatchOrRun(inline, "generate_tiers", memory.ID, workspaceID, func() {
			if s.tiering == nil {
				return
			}
			if err := s.tiering.GenerateTiers(ctx, workspaceID, memory.ID, false); err != nil {
				s.logger.Warn("memory: tier generation failed", "memory_id", memory.ID, "error", err)
			}
		})
		return nil
	})

	group.Go(func() error {
		if s.contradiction != nil {
			if err := s.contradiction.Check(ctx, workspaceID, memory); err != nil {
				s.logger.Warn("memory: contradiction check failed", "memory_id", memory.ID, "error", err)
			}
		}
		return nil
	})

	_ = group.Wait()
}

// dispatchOrRun schedules taskType in background mode, falling back to
// running fn synchronously when inline is requested, no scheduler is
// wired, or scheduling itself fails (spec §7 TaskDispatchFailure: "fall
// back to inline execution").
func (s *Service) dispatchOrRun(inline bool, taskType, memoryID, workspaceID string, fn func()) {
	if !inline && s.scheduler != nil {
		_, err := s.scheduler.ScheduleTask(taskType, map[string]interface{}{
			"memory_id":    memoryID,
			"workspace_id": workspaceID,
		})
		if err == nil {
			return
		}
		s.logger.Warn("memory: scheduling task failed, running inline", "task_type", taskType, "memory_id", memoryID, "error", err)
	}
	fn()
}

// HandleAutoEnrich re-runs the auto-association step for a memory already
// in storage. It is the handler a scheduler registers under the
// "auto_enrich" task type dispatched by dispatchOrRun: unlike the inline
// path, a scheduled handler only gets the task payload back, not the
// in-memory embedding, so it reloads the memory and recomputes one.
func (s *Service) HandleAutoEnrich(ctx context.Context, workspaceID, memoryID string) error {
	mem, err := s.store.GetMemory(ctx, workspaceID, memoryID, false)
	if err != nil {
		return fmt.Errorf("memory: load memory for auto-enrich: %w", err)
	}
	embedding := s.embed(ctx, mem.Content, false)
	s.autoAssociate(ctx, workspaceID, mem, embedding, true)
	return nil
}

// autoAssociate implements spec §4.4 step 1: link memory to its top-N
// nearest neighbors above the similarity threshold, and optionally
// reclassify its type from content.
func (s *Service) autoAssociate(ctx context.Context, workspaceID string, memory *types.Memory, embedding []float64, classifyType bool) {
	if len(embedding) > 0 && s.assoc != nil {
		neighbors, err := s.store.SearchMemories(ctx, workspaceID, storage.SearchOptions{
			QueryEmbedding: embedding,
			Limit:          s.cfg.AutoAssocTopN + 1,
			MinRelevance:   s.cfg.AutoAssocThreshold,
		})
		if err != nil {
			s.logger.Warn("memory: auto-association neighbor search failed", "memory_id", memory.ID, "error", err)
		} else {
			linked := 0
			for _, n := range neighbors {
				if n.Memory.ID == memory.ID || linked >= s.cfg.AutoAssocTopN {
					continue
				}
				_, err := s.assoc.Associate(ctx, association.Input{
					WorkspaceID:  workspaceID,
					SourceID:     memory.ID,
					TargetID:     n.Memory.ID,
					Relationship: "related_to",
					Strength:     n.Similarity,
				})
				if err != nil && err != storage.ErrUniqueConstraint && err != association.ErrSelfAssociation {
					s.logger.Warn("memory: auto-association edge creation failed", "memory_id", memory.ID, "neighbor_id", n.Memory.ID, "error", err)
					continue
				}
				linked++
			}
		}
	}

	if !classifyType {
		return
	}
	newType, newSubtype := extraction.ClassifyContent(memory.Content)
	if newType == memory.Type && newSubtype == memory.Subtype {
		return
	}
	if _, err := s.store.UpdateMemory(ctx, workspaceID, memory.ID, storage.MemoryUpdate{
		Type:    &newType,
		Subtype: &newSubtype,
	}); err != nil {
		s.logger.Warn("memory: type reclassification write failed", "memory_id", memory.ID, "error", err)
		return
	}
	memory.Type = newType
	memory.Subtype = newSubtype
}
