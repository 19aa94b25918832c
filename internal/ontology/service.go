package ontology

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/memlayer/memcore/pkg/types"
)

// DefaultRelationship is returned by ClassifyRelationship whenever the LLM
// is unavailable or its answer can't be resolved to a known type (spec
// §4.10).
const DefaultRelationship = "related_to"

// Completer is the minimal LLM dependency ontology classification needs.
// internal/providers.OntologyCompleter adapts an LLMRegistry to this
// interface; kept narrow here so this package never imports
// internal/providers (spec §2 dependency order: ontology has no dependents
// below it).
type Completer interface {
	Complete(ctx context.Context, profile, prompt string) (string, error)
}

// Service holds the base relationship registry and validates edges against
// it (spec §4.10). The OSS registry has no per-tenant customization; every
// call effectively reads the same base map.
type Service struct {
	ontology map[string]types.OntologyEntry
	llm      Completer
	logger   *slog.Logger
}

// New constructs a Service over the hard-coded base ontology. llm may be
// nil, in which case ClassifyRelationship always falls back to
// DefaultRelationship.
func New(llm Completer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{ontology: BaseOntology, llm: llm, logger: logger}
}

// Validate returns nil if relationshipType is a known type, or an error
// naming the sorted list of valid types otherwise (spec §4.10).
func (s *Service) Validate(relationshipType string) error {
	if _, ok := s.ontology[relationshipType]; ok {
		return nil
	}
	return fmt.Errorf("invalid relationship type %q: valid types: %s", relationshipType, strings.Join(s.ListTypes(), ", "))
}

// Get returns the full entry for a relationship type.
func (s *Service) Get(relationshipType string) (types.OntologyEntry, error) {
	entry, ok := s.ontology[relationshipType]
	if !ok {
		return types.OntologyEntry{}, fmt.Errorf("invalid relationship type %q: valid types: %s", relationshipType, strings.Join(s.ListTypes(), ", "))
	}
	entry.Type = relationshipType
	return entry, nil
}

// ListTypes returns every known relationship type, sorted.
func (s *Service) ListTypes() []string {
	out := make([]string, 0, len(s.ontology))
	for t := range s.ontology {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// ByCategory returns the sorted relationship types belonging to category.
func (s *Service) ByCategory(category string) ([]string, error) {
	valid := false
	for _, c := range RelationshipCategories {
		if c == category {
			valid = true
			break
		}
	}
	if !valid {
		return nil, fmt.Errorf("invalid category %q: valid categories: %s", category, strings.Join(RelationshipCategories, ", "))
	}
	var out []string
	for t, entry := range s.ontology {
		if entry.Category == category {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out, nil
}

// ClassifyRelationship asks the LLM to pick the best relationship type
// describing contentA -> contentB, normalizes the answer, and resolves it
// against the ontology with a unique-prefix fallback for truncated
// responses. Falls back to DefaultRelationship whenever no LLM is wired or
// classification fails (spec §4.10).
func (s *Service) ClassifyRelationship(ctx context.Context, contentA, contentB string) string {
	if s.llm == nil {
		s.logger.Debug("ontology: no LLM wired, falling back to default relationship")
		return DefaultRelationship
	}

	prompt := s.buildClassificationPrompt(contentA, contentB)
	raw, err := s.llm.Complete(ctx, "ontology", prompt)
	if err != nil {
		s.logger.Warn("ontology: classification call failed, falling back to default relationship", "error", err)
		return DefaultRelationship
	}

	result := normalizeRelationship(raw)
	if _, ok := s.ontology[result]; ok {
		s.logger.Debug("ontology: classified relationship", "relationship", result)
		return result
	}

	if result != "" {
		if matched, ok := s.uniquePrefixMatch(result); ok {
			s.logger.Debug("ontology: prefix-matched truncated relationship", "truncated", result, "matched", matched)
			return matched
		}
	}

	s.logger.Warn("ontology: LLM returned unknown relationship type, falling back to default", "raw", raw)
	return DefaultRelationship
}

func (s *Service) buildClassificationPrompt(contentA, contentB string) string {
	var b strings.Builder
	b.WriteString("Given two pieces of content, classify the relationship between them.\n\n")
	fmt.Fprintf(&b, "Content A: %s\n\n", contentA)
	fmt.Fprintf(&b, "Content B: %s\n\n", contentB)
	b.WriteString("Available relationship types (A -> B):\n")
	for _, t := range s.ListTypes() {
		fmt.Fprintf(&b, "  %s: %s\n", t, s.ontology[t].Description)
	}
	b.WriteString("\nRespond with ONLY the relationship type name (e.g., \"causes\", \"similar_to\").\n")
	b.WriteString("If unsure, respond with \"related_to\".")
	return b.String()
}

func (s *Service) uniquePrefixMatch(prefix string) (string, bool) {
	var matches []string
	for t := range s.ontology {
		if strings.HasPrefix(t, prefix) {
			matches = append(matches, t)
		}
	}
	if len(matches) == 1 {
		return matches[0], true
	}
	return "", false
}

func normalizeRelationship(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, `"`, "")
	s = strings.ReplaceAll(s, "'", "")
	s = strings.TrimRight(s, ".")
	return s
}
