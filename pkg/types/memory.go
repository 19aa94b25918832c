package types

import "time"

// Memory is the unit of stored knowledge (spec §3): content plus embedding,
// tiered summaries, lifecycle timestamps, and importance, scoped to a
// workspace and optionally a context within it.
type Memory struct {
	ID          string `json:"id"`
	WorkspaceID string `json:"workspace_id"`
	TenantID    string `json:"tenant_id"`
	ContextID   string `json:"context_id,omitempty"`

	Content     string `json:"content"`
	ContentHash string `json:"content_hash"`
	Abstract    string `json:"abstract,omitempty"`
	Overview    string `json:"overview,omitempty"`

	Type    MemoryType `json:"type"`
	Subtype string     `json:"subtype,omitempty"`

	Importance float64                `json:"importance"`
	Pinned     bool                   `json:"pinned"`
	Status     MemoryStatus           `json:"status"`
	Tags       []string               `json:"tags,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`

	// Embedding is a dense vector of fixed dimensionality per workspace.
	// Not marshaled directly; storage backends persist it in their own
	// column/table shape.
	Embedding []float64 `json:"-"`

	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	LastAccessedAt time.Time  `json:"last_accessed_at"`
	AccessCount    int        `json:"access_count"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`

	// SourceMemoryID is set when this memory was produced by decomposing
	// another memory (spec §4.8).
	SourceMemoryID string `json:"source_memory_id,omitempty"`
}

// HasTag reports whether the memory carries the given tag.
func (m *Memory) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// DefaultMinDecomposableLength is the fallback for Decomposable when no
// configuration value is supplied (spec §4.3 step 5: "default 20 characters").
const DefaultMinDecomposableLength = 20

// Decomposable reports whether the memory is a candidate for fact
// decomposition: not a working memory, long enough, and structurally
// composite (multiple sentence terminators or clause separators).
func (m *Memory) Decomposable(minLength int) bool {
	if m.Type == TypeWorking {
		return false
	}
	if minLength <= 0 {
		minLength = DefaultMinDecomposableLength
	}
	if len(m.Content) < minLength {
		return false
	}
	return hasMultipleClauses(m.Content)
}

func hasMultipleClauses(s string) bool {
	terminators := 0
	separators := 0
	for _, r := range s {
		switch r {
		case '.', '!', '?', ';':
			terminators++
		case ',':
			separators++
		}
	}
	return terminators > 1 || separators > 1
}
