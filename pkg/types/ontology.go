package types

// OntologyEntry describes one relationship type in the closed vocabulary
// used on Association edges (spec §3, §4.10).
type OntologyEntry struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Symmetric   bool   `json:"symmetric,omitempty"`
	Transitive  bool   `json:"transitive,omitempty"`
	Inverse     string `json:"inverse,omitempty"`
}
