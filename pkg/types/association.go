package types

import "time"

// Association is a directed typed edge between two memories in the same
// workspace (spec §3). Symmetric/inverse semantics live on the Ontology
// entry for the relationship type, not on the edge instance.
type Association struct {
	ID          string `json:"id"`
	WorkspaceID string `json:"workspace_id"`

	SourceID     string  `json:"source_id"`
	TargetID     string  `json:"target_id"`
	Relationship string  `json:"relationship"`
	Strength     float64 `json:"strength"`

	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time               `json:"created_at"`
}
