package types

import "time"

// WorkspaceSettings is the tunable policy carried by a Workspace or
// Context (spec §3): default importance, decay parameters, auto-remember
// policy, embedding dimensionality, and tier day-counts. A Context may
// leave any field at its zero value to inherit the Workspace's.
type WorkspaceSettings struct {
	DefaultImportance   float64 `json:"default_importance,omitempty"`
	DecayRate           float64 `json:"decay_rate,omitempty"`
	MinImportanceFloor  float64 `json:"min_importance_floor,omitempty"`
	AutoRememberEnabled bool    `json:"auto_remember_enabled,omitempty"`
	EmbeddingDimension  int     `json:"embedding_dimension,omitempty"`
	TierOverviewDays    int     `json:"tier_overview_days,omitempty"`
	TierAbstractDays    int     `json:"tier_abstract_days,omitempty"`
}

// Workspace is the top-level isolation unit for memories and associations.
type Workspace struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Settings  WorkspaceSettings `json:"settings"`
	CreatedAt time.Time         `json:"created_at"`
}

// Context is an optional finer partition inside a Workspace. Contexts
// inherit workspace settings for any field left unset.
type Context struct {
	ID                 string            `json:"id"`
	WorkspaceID        string            `json:"workspace_id"`
	ParentWorkspaceID  string            `json:"parent_workspace_id,omitempty"`
	Name                string            `json:"name"`
	Settings            WorkspaceSettings `json:"settings"`
	CreatedAt            time.Time         `json:"created_at"`
}

// Merge returns the effective settings for a context: any zero-valued
// field falls back to the parent workspace's value.
func (c Context) Merge(parent WorkspaceSettings) WorkspaceSettings {
	s := c.Settings
	if s.DefaultImportance == 0 {
		s.DefaultImportance = parent.DefaultImportance
	}
	if s.DecayRate == 0 {
		s.DecayRate = parent.DecayRate
	}
	if s.MinImportanceFloor == 0 {
		s.MinImportanceFloor = parent.MinImportanceFloor
	}
	if s.EmbeddingDimension == 0 {
		s.EmbeddingDimension = parent.EmbeddingDimension
	}
	if s.TierOverviewDays == 0 {
		s.TierOverviewDays = parent.TierOverviewDays
	}
	if s.TierAbstractDays == 0 {
		s.TierAbstractDays = parent.TierAbstractDays
	}
	if !s.AutoRememberEnabled {
		s.AutoRememberEnabled = parent.AutoRememberEnabled
	}
	return s
}
