// Package storage abstracts the durable store (spec §4.1). A single
// interface runs the core over either an embedded single-file engine
// (sqlite) or a networked equivalent (postgres); small composable
// interfaces follow the Interface Segregation Principle so a backend only
// implements the capabilities it actually has (e.g. FTS5 search is sqlite-
// only, pgvector-native search is postgres-only).
package storage

import (
	"context"

	"github.com/memlayer/memcore/pkg/types"
)

// MemoryStore is the durable store for memories (spec §4.1).
//
// CreateMemory enforces the (workspace_id, content_hash) uniqueness
// constraint and must return ErrUniqueConstraint on violation rather than a
// generic integrity error, so ingestion can treat it as a benign collision
// (spec §4.1 "Failure model", §7).
type MemoryStore interface {
	CreateMemory(ctx context.Context, memory *types.Memory) error

	// GetMemory retrieves a memory by workspace and id. When trackAccess is
	// true, it atomically increments access_count and updates
	// last_accessed_at as part of the same read.
	GetMemory(ctx context.Context, workspaceID, id string, trackAccess bool) (*types.Memory, error)

	GetMemoryByHash(ctx context.Context, workspaceID, contentHash string) (*types.Memory, error)

	// UpdateMemory applies a partial update. Only non-nil fields are
	// touched; updated_at is always refreshed by the implementation.
	UpdateMemory(ctx context.Context, workspaceID, id string, fields MemoryUpdate) (*types.Memory, error)

	// DeleteMemory soft-deletes (tombstone via deleted_at) unless hard is
	// true, in which case the row is removed.
	DeleteMemory(ctx context.Context, workspaceID, id string, hard bool) error

	List(ctx context.Context, opts ListOptions) (*PaginatedResult[types.Memory], error)

	// GetMemoriesForDecay returns non-pinned memories at least minAgeDays
	// old, for the decay pass (spec §4.6).
	GetMemoriesForDecay(ctx context.Context, workspaceID string, minAgeDays int, excludePinned bool) ([]*types.Memory, error)

	// GetArchivalCandidates returns memories eligible for archival
	// (spec §4.6).
	GetArchivalCandidates(ctx context.Context, workspaceID string, maxImportance float64, maxAccessCount int, minAgeDays int) ([]*types.Memory, error)

	ListAllWorkspaceIDs(ctx context.Context) ([]string, error)

	Close() error
}

// MemoryUpdate is a partial update to a Memory; nil fields are left
// untouched.
type MemoryUpdate struct {
	Content    *string
	Abstract   *string
	Overview   *string
	Type       *types.MemoryType
	Subtype    *string
	Importance *float64
	Pinned     *bool
	Status     *types.MemoryStatus
	Tags       []string
	Metadata   map[string]interface{}
	Embedding  []float64
}

// SearchProvider performs similarity search over stored memories
// (spec §4.1 search_memories).
type SearchProvider interface {
	SearchMemories(ctx context.Context, workspaceID string, opts SearchOptions) ([]ScoredMemory, error)
}

// AssociationStore persists typed directed edges between memories
// (spec §4.1, §4.7).
type AssociationStore interface {
	// CreateAssociation enforces source_id != target_id and the
	// (source_id, target_id, relationship) uniqueness constraint, returning
	// ErrUniqueConstraint on violation.
	CreateAssociation(ctx context.Context, assoc *types.Association) error

	GetAssociations(ctx context.Context, workspaceID, memoryID string, filters AssociationFilters) ([]*types.Association, error)

	DeleteAssociation(ctx context.Context, workspaceID, id string) error
}

// EmbeddingProvider manages vector embeddings with dimension tracking. Both
// backends in this module keep the embedding on the memory row and do not
// implement it.
type EmbeddingProvider interface {
	StoreEmbedding(ctx context.Context, memoryID string, embedding []float64, dimension int, model string) error
	GetEmbedding(ctx context.Context, memoryID string) ([]float64, error)
	DeleteEmbedding(ctx context.Context, memoryID string) error
	GetDimension(ctx context.Context, model string) (int, error)
}

// Backend is the full storage capability set a MemoryService depends on.
// Concrete backends (sqlite, postgres) implement all three facets;
// component code should depend on the narrowest interface it needs.
type Backend interface {
	MemoryStore
	SearchProvider
	AssociationStore
}
