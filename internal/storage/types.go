package storage

import (
	"errors"
	"time"

	"github.com/memlayer/memcore/pkg/types"
)

var (
	// ErrNotFound indicates that the requested resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates that the input parameters are invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUniqueConstraint indicates a duplicate memory content_hash or a
	// duplicate (source_id, target_id, relationship) association (spec §4.1,
	// §4.7). Ingestion treats this as a benign concurrent-write collision;
	// associate surfaces it directly (spec §7).
	ErrUniqueConstraint = errors.New("unique constraint violation")

	// ErrGraphBoundsExceeded indicates that graph traversal exceeded bounds.
	ErrGraphBoundsExceeded = errors.New("graph bounds exceeded")
)

// PaginatedResult is a generic page of results with a total count.
type PaginatedResult[T any] struct {
	Items    []T
	Total    int
	Page     int
	PageSize int
	HasMore  bool
}

// ListOptions provides pagination, sorting, and filtering for List.
type ListOptions struct {
	Page      int
	Limit     int
	SortBy    string
	SortOrder string

	WorkspaceID string
	Status      types.MemoryStatus
}

var allowedSortFields = map[string]bool{
	"created_at":   true,
	"updated_at":   true,
	"id":           true,
	"importance":   true,
	"access_count": true,
}

// Normalize applies defaults and whitelists SortBy against a fixed set of
// columns to keep callers from injecting arbitrary SQL via the sort field.
func (o *ListOptions) Normalize() {
	if !allowedSortFields[o.SortBy] {
		o.SortBy = "created_at"
	}
	if o.SortOrder != "asc" && o.SortOrder != "desc" {
		o.SortOrder = "desc"
	}
	if o.Page < 1 {
		o.Page = 1
	}
	if o.Limit < 1 {
		o.Limit = 10
	}
	if o.Limit > 100 {
		o.Limit = 100
	}
}

// Offset calculates the SQL offset from Page and Limit.
func (o *ListOptions) Offset() int {
	return (o.Page - 1) * o.Limit
}

// MemoryFilters restricts a search_memories call (spec §4.1): types,
// subtypes, and tags apply with AND semantics; the temporal window and
// status/pinned flags further narrow the candidate set. IncludeGlobal is
// carried but neither backend reads it.
type MemoryFilters struct {
	Types         []types.MemoryType
	Subtypes      []string
	Tags          []string
	CreatedAfter  time.Time
	CreatedBefore time.Time
	Status        types.MemoryStatus // empty means StatusActive
	Pinned        *bool
	IncludeGlobal bool
}

// SearchOptions configures search_memories (spec §4.1).
type SearchOptions struct {
	QueryEmbedding []float64
	Limit          int
	MinRelevance   float64
	Filters        MemoryFilters
}

// Normalize applies defaults.
func (o *SearchOptions) Normalize() {
	if o.Limit < 1 {
		o.Limit = 10
	}
	if o.Limit > 500 {
		o.Limit = 500
	}
	if o.MinRelevance < 0 {
		o.MinRelevance = 0
	}
	if o.MinRelevance > 1 {
		o.MinRelevance = 1
	}
}

// ScoredMemory pairs a memory with its similarity score from search_memories.
type ScoredMemory struct {
	Memory     *types.Memory
	Similarity float64
}

// AssociationFilters narrows get_associations (spec §4.1, §4.7).
type AssociationFilters struct {
	Direction         types.Direction
	RelationshipTypes []string
	MinStrength       *float64
}

// GraphBounds prevents combinatorial explosion during graph traversal
// (spec §4.7, §5).
type GraphBounds struct {
	MaxHops     int
	MaxNodes    int
	MaxEdges    int
	Timeout     time.Duration
	MinStrength float64
}

// Normalize applies defaults and caps.
func (g *GraphBounds) Normalize() {
	if g.MaxHops < 0 {
		g.MaxHops = 3
	}
	if g.MaxHops > 10 {
		g.MaxHops = 10
	}
	if g.MaxNodes < 1 {
		g.MaxNodes = 500
	}
	if g.MaxNodes > 5000 {
		g.MaxNodes = 5000
	}
	if g.MaxEdges < 1 {
		g.MaxEdges = 2000
	}
	if g.MaxEdges > 20000 {
		g.MaxEdges = 20000
	}
	if g.Timeout == 0 {
		g.Timeout = 30 * time.Second
	}
	if g.Timeout > 5*time.Minute {
		g.Timeout = 5 * time.Minute
	}
}
