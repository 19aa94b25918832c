package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/memlayer/memcore/internal/storage"
	"github.com/memlayer/memcore/pkg/types"
)

// RememberInput is the caller-supplied shape for Remember (spec §4.3).
type RememberInput struct {
	Content     string
	Type        *types.MemoryType
	Subtype     string
	Importance  float64
	Pinned      bool
	Tags        []string
	Metadata    map[string]interface{}
	ContextID   string
	TenantID    string
	NonSemantic bool // skips embedding computation (spec §4.3 step 2)
}

// IngestFactInput is the per-fact shape ingest_fact accepts (spec §4.3).
// It carries no Type: facts are always created as plain semantic content
// unless the caller classifies them via the post-store pipeline.
type IngestFactInput struct {
	Content    string
	Importance float64
	Tags       []string
	Metadata   map[string]interface{}
	ContextID  string
	TenantID   string
}

func newMemoryRow(workspaceID, content, hash string, memType types.MemoryType) *types.Memory {
	now := time.Now().UTC()
	return &types.Memory{
		ID:             "mem_" + uuid.NewString(),
		WorkspaceID:    workspaceID,
		Content:        content,
		ContentHash:    hash,
		Type:           memType,
		Status:         types.StatusActive,
		Importance:     0.5,
		CreatedAt:      now,
		UpdatedAt:      now,
		LastAccessedAt: now,
	}
}

// embed computes an embedding unless skip is true or no embedder is wired.
// A provider failure is logged and treated as "no embedding" rather than
// aborting ingestion (spec §7 ProviderUnavailable has no ingestion-specific
// row; treating embedding failure like the non-semantic path keeps
// ingestion available when the embedding provider is down).
func (s *Service) embed(ctx context.Context, content string, skip bool) []float64 {
	if skip || s.embedder == nil {
		return nil
	}
	vec, err := s.embedder.Embed(ctx, content)
	if err != nil {
		s.logger.Warn("memory: embedding failed, storing without one", "error", err)
		return nil
	}
	return vec
}

// Remember implements the remember(workspace_id, input) operation (spec
// §4.3).
func (s *Service) Remember(ctx context.Context, workspaceID string, input RememberInput) (*types.Memory, error) {
	if workspaceID == "" || input.Content == "" {
		return nil, fmt.Errorf("%w: workspace_id and content are required", storage.ErrInvalidInput)
	}

	memType := types.TypeSemantic
	explicitType := input.Type != nil
	if explicitType {
		memType = *input.Type
	}

	hash := contentHash(input.Content)
	embedding := s.embed(ctx, input.Content, input.NonSemantic)

	memory, action, err := s.writeOrSkip(ctx, workspaceID, input.Content, hash, memType, input.Subtype, input.Importance, input.Pinned, input.Tags, input.Metadata, input.ContextID, input.TenantID, embedding, nil)
	if err != nil {
		return nil, err
	}
	if action == types.DedupSkip {
		return memory, nil
	}

	if memory.Decomposable(s.cfg.DecomposeMinLength) && s.cfg.DecomposeEnabled {
		if s.scheduler != nil {
			_, err := s.scheduler.ScheduleTask("decompose_facts", map[string]interface{}{
				"memory_id":    memory.ID,
				"workspace_id": workspaceID,
			})
			if err == nil {
				return memory, nil
			}
			s.logger.Warn("memory: scheduling decompose_facts failed, decomposing inline", "memory_id", memory.ID, "error", err)
		}
		if err := s.DecomposeFacts(ctx, workspaceID, memory.ID); err != nil {
			s.logger.Warn("memory: inline fact decomposition failed", "memory_id", memory.ID, "error", err)
		}
		return memory, nil
	}

	s.postStorePipeline(ctx, workspaceID, memory, embedding, false, !explicitType)
	return memory, nil
}

// IngestFact implements ingest_fact(workspace_id, input, source_memory_id,
// embedding) (spec §4.3): the same dedup+write path as Remember, but always
// runs the post-store pipeline inline and always records source_memory_id.
// Returns nil, nil when dedup yields SKIP.
func (s *Service) IngestFact(ctx context.Context, workspaceID string, input IngestFactInput, sourceMemoryID *string, embedding []float64) (*types.Memory, error) {
	if workspaceID == "" || input.Content == "" {
		return nil, fmt.Errorf("%w: workspace_id and content are required", storage.ErrInvalidInput)
	}

	hash := contentHash(input.Content)
	if embedding == nil {
		embedding = s.embed(ctx, input.Content, false)
	}

	memory, action, err := s.writeOrSkip(ctx, workspaceID, input.Content, hash, types.TypeSemantic, "", input.Importance, false, input.Tags, input.Metadata, input.ContextID, input.TenantID, embedding, sourceMemoryID)
	if err != nil {
		return nil, err
	}
	if action == types.DedupSkip {
		return nil, nil
	}

	s.postStorePipeline(ctx, workspaceID, memory, embedding, true, true)
	return memory, nil
}

// writeOrSkip runs the shared dedup-probe-then-write path both Remember and
// IngestFact use (spec §4.3 steps 3-4).
func (s *Service) writeOrSkip(ctx context.Context, workspaceID, content, hash string, memType types.MemoryType, subtype string, importance float64, pinned bool, tags []string, metadata map[string]interface{}, contextID, tenantID string, embedding []float64, sourceMemoryID *string) (*types.Memory, types.DedupAction, error) {
	result, err := s.dedup.CheckDuplicate(ctx, workspaceID, hash, embedding)
	if err != nil {
		return nil, "", fmt.Errorf("memory: dedup check failed: %w", err)
	}

	switch result.Action {
	case types.DedupSkip:
		existing, err := s.store.GetMemory(ctx, workspaceID, result.ExistingMemoryID, false)
		if err != nil {
			return nil, "", fmt.Errorf("memory: loading duplicate memory failed: %w", err)
		}
		return existing, types.DedupSkip, nil

	case types.DedupUpdate:
		updated, err := s.store.UpdateMemory(ctx, workspaceID, result.ExistingMemoryID, storage.MemoryUpdate{
			Content:   &content,
			Embedding: embedding,
		})
		if err != nil {
			return nil, "", fmt.Errorf("memory: updating duplicate memory failed: %w", err)
		}
		return updated, types.DedupUpdate, nil

	default: // DedupCreate, DedupMerge
		memory := newMemoryRow(workspaceID, content, hash, memType)
		memory.Subtype = subtype
		if importance > 0 {
			memory.Importance = importance
		}
		memory.Pinned = pinned
		memory.Tags = tags
		memory.Metadata = metadata
		memory.ContextID = contextID
		memory.TenantID = tenantID
		memory.Embedding = embedding
		if sourceMemoryID != nil {
			memory.SourceMemoryID = *sourceMemoryID
		}
		if result.Action == types.DedupMerge {
			// No auto-merge algorithm exists for this candidate; surface it
			// as metadata so a caller-facing review step can act on it,
			// since spec §4.3 step 4 only names CREATE/UPDATE/SKIP outcomes.
			if memory.Metadata == nil {
				memory.Metadata = map[string]interface{}{}
			}
			memory.Metadata["merge_candidate_id"] = result.ExistingMemoryID
			memory.Metadata["merge_candidate_score"] = result.SimilarityScore
		}

		if err := s.store.CreateMemory(ctx, memory); err != nil {
			if err == storage.ErrUniqueConstraint {
				existing, getErr := s.store.GetMemoryByHash(ctx, workspaceID, hash)
				if getErr == nil {
					return existing, types.DedupSkip, nil
				}
			}
			return nil, "", fmt.Errorf("memory: creating memory failed: %w", err)
		}
		return memory, result.Action, nil
	}
}
