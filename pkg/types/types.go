// Package types defines the core data structures shared across memcore:
// memories, associations, workspaces, contexts, ontology entries, and
// scheduler task records.
package types

// MemoryType classifies the nature of a memory's content.
type MemoryType string

const (
	TypeSemantic   MemoryType = "semantic"
	TypeEpisodic   MemoryType = "episodic"
	TypeProcedural MemoryType = "procedural"
	TypeWorking    MemoryType = "working"
)

// ValidMemoryTypes lists every accepted MemoryType value.
var ValidMemoryTypes = []MemoryType{TypeSemantic, TypeEpisodic, TypeProcedural, TypeWorking}

// IsValidMemoryType reports whether t is one of ValidMemoryTypes.
func IsValidMemoryType(t MemoryType) bool {
	for _, v := range ValidMemoryTypes {
		if v == t {
			return true
		}
	}
	return false
}

// MemoryStatus is the lifecycle state of a memory row.
type MemoryStatus string

const (
	StatusActive   MemoryStatus = "active"
	StatusArchived MemoryStatus = "archived"
	StatusDeleted  MemoryStatus = "deleted"
)

// DedupAction is the outcome of a deduplication probe (spec §4.2).
type DedupAction string

const (
	DedupSkip   DedupAction = "skip"
	DedupUpdate DedupAction = "update"
	DedupMerge  DedupAction = "merge"
	DedupCreate DedupAction = "create"
)

// RecallMode selects how the recall pipeline resolves a query (spec §4.5).
type RecallMode string

const (
	ModeRAG    RecallMode = "rag"
	ModeLLM    RecallMode = "llm"
	ModeHybrid RecallMode = "hybrid"
)

// Tolerance maps to the similarity floor passed to storage (spec §4.5).
type Tolerance string

const (
	ToleranceLoose    Tolerance = "loose"
	ToleranceModerate Tolerance = "moderate"
	ToleranceStrict   Tolerance = "strict"
)

// Direction constrains graph traversal to outgoing, incoming, or both.
type Direction string

const (
	DirectionOutgoing Direction = "outgoing"
	DirectionIncoming Direction = "incoming"
	DirectionBoth     Direction = "both"
)

// TaskState is the lifecycle state of a scheduler task record.
type TaskState string

const (
	TaskPending   TaskState = "pending"
	TaskRunning   TaskState = "running"
	TaskCompleted TaskState = "completed"
	TaskFailed    TaskState = "failed"
	TaskCancelled TaskState = "cancelled"
	TaskNotFound  TaskState = "not_found"
)
